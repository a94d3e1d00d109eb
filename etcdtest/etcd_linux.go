//go:build linux

package etcdtest

import "syscall"

// sysProcAttr runs etcd in its own process group, so that an interrupt of
// the test binary is left to its deferred shutdown, and has the kernel
// terminate etcd should the test binary exit without reaching it.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}

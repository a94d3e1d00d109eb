// Package etcdtest provides test support for obtaining a client to an Etcd server.
package etcdtest

import (
	"context"
	"log"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// TestClient returns a client of the embedded Etcd test server, or skips the
// test if no `etcd` binary is available. It asserts that the Etcd keyspace is
// empty before returning to the client, and removes all keys when the test
// completes.
func TestClient(t testing.TB) *clientv3.Client {
	if _etcdClient == nil {
		t.Skip("etcd binary is not available")
	}
	var resp, err = _etcdClient.Get(context.Background(), "", clientv3.WithPrefix(), clientv3.WithLimit(5))
	if err != nil {
		t.Fatal(err)
	} else if len(resp.Kvs) != 0 {
		t.Fatalf("etcd not empty; did a previous test not clean up?\n%+v", resp)
	}
	t.Cleanup(cleanup)
	return _etcdClient
}

// cleanup removes any remaining key/value fixtures in the Etcd store.
func cleanup() {
	if _, err := _etcdClient.Delete(context.Background(), "", clientv3.WithPrefix()); err != nil {
		log.Fatal(err)
	}
}

// Endpoint returns the client endpoint of the embedded Etcd test server.
func Endpoint() string { return _endpoint }

var (
	_cmd        *exec.Cmd
	_etcdClient *clientv3.Client
	_endpoint   string
)

// TestMainWithEtcd is to be called by other packages which require
// functionality of the etcdtest package, before those tests run, as:
//
//	func TestMain(m *testing.M) { etcdtest.TestMainWithEtcd(m) }
//
// If `etcd` isn't on the PATH, tests run without a server and TestClient skips.
func TestMainWithEtcd(m *testing.M) {
	if _, err := exec.LookPath("etcd"); err != nil {
		log.Println("etcd not found; tests requiring it will be skipped")
		os.Exit(m.Run())
	}

	_cmd = exec.Command("etcd",
		"--listen-peer-urls", "unix://peer.sock:0",
		"--listen-client-urls", "unix://client.sock:0",
		"--advertise-client-urls", "unix://client.sock:0",
	)
	_cmd.Env = append(_cmd.Env, "ETCD_LOG_LEVEL=error", "ETCD_LOGGER=zap")
	_cmd.Env = append(_cmd.Env, os.Environ()...)
	log.Println("Starting etcd: ", _cmd.Args)

	var err error
	if _cmd.Dir, err = os.MkdirTemp("", "etcdtest"); err != nil {
		log.Fatal(err)
	}
	_cmd.Stdout = os.Stdout
	_cmd.Stderr = os.Stderr
	_cmd.SysProcAttr = sysProcAttr()

	if err = _cmd.Start(); err != nil {
		log.Fatal(err)
	}

	os.Exit(func() int {
		defer func() {
			if err = _cmd.Process.Signal(syscall.SIGTERM); err != nil {
				log.Fatal("failed to TERM etcd: ", err)
			}
			_ = _cmd.Wait()

			if err = os.RemoveAll(_cmd.Dir); err != nil {
				log.Fatalf("failed to remove etcd tmp directory %v: %v", _cmd.Dir, err)
			}
		}()

		_endpoint = "unix://" + _cmd.Dir + "/client.sock:0"
		log.Println("using test endpoint: " + _endpoint)

		if _etcdClient, err = clientv3.New(clientv3.Config{
			Endpoints:   []string{_endpoint},
			DialTimeout: 5 * time.Second,
		}); err != nil {
			log.Fatal(err)
		}
		// Verify the test client works.
		if _, err = _etcdClient.Get(context.Background(), "", clientv3.WithPrefix(), clientv3.WithLimit(1)); err != nil {
			log.Fatal(err)
		}
		return m.Run()
	}())
}

// Package openssh copies files between local paths and remote hosts by
// invoking an external secure-copy command.
package openssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.urlrecord.dev/core/address"
)

// Transferer copies the file at the |src| endpoint to the |dst| endpoint.
// Endpoints are local paths or [user@]host:path remote specifications.
type Transferer interface {
	Transfer(ctx context.Context, src, dst string) error
}

// Command is a Transferer which runs the external copy command once per
// Transfer, as `Binary Args... src dst`.
type Command struct {
	// Binary to invoke. If empty, "scp" is used.
	Binary string
	// Args are passed before the source and destination endpoints.
	Args []string
}

// ExitError is a non-zero exit of the copy command.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("copy command exited with status %d", e.Code)
	}
	return fmt.Sprintf("copy command exited with status %d: %s", e.Code, e.Stderr)
}

// Transfer runs the copy command and awaits its exit.
func (c Command) Transfer(ctx context.Context, src, dst string) error {
	var binary = c.Binary
	if binary == "" {
		binary = "scp"
	}
	var args = append(append([]string(nil), c.Args...), src, dst)

	var cmd = exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.WithFields(log.Fields{"cmd": binary, "args": args}).Debug("running copy command")

	var err = cmd.Run()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{
			Code:   exitErr.ExitCode(),
			Stderr: strings.TrimSpace(stderr.String()),
		}
	} else if err != nil {
		return fmt.Errorf("running %s: %w", binary, err)
	}
	return nil
}

// Facade resolves Addresses into endpoints of a Transferer. Each of its
// operations makes exactly one Transfer attempt. A failed Transfer leaves the
// destination in an undefined state.
type Facade struct {
	Transferer Transferer
}

// New returns a Facade of the Transferer.
func New(t Transferer) *Facade { return &Facade{Transferer: t} }

// Copy the file at |src| to |dst|. Each may be a file:// or scp:// Address.
func (f *Facade) Copy(ctx context.Context, src, dst address.Address) error {
	var srcEP, err = Endpoint(src)
	if err != nil {
		return address.ExtendContext(err, "source")
	}
	dstEP, err := Endpoint(dst)
	if err != nil {
		return address.ExtendContext(err, "target")
	}
	return f.Transferer.Transfer(ctx, srcEP, dstEP)
}

// Upload the local file at |localPath| to the |remote| Address.
func (f *Facade) Upload(ctx context.Context, localPath string, remote address.Address) error {
	var dst, err = Endpoint(remote)
	if err != nil {
		return err
	}
	return f.Transferer.Transfer(ctx, localPath, dst)
}

// Download the |remote| Address to the local file at |localPath|.
func (f *Facade) Download(ctx context.Context, remote address.Address, localPath string) error {
	var src, err = Endpoint(remote)
	if err != nil {
		return err
	}
	return f.Transferer.Transfer(ctx, src, localPath)
}

// Endpoint returns the copy command endpoint of the Address. File Addresses
// map to their local path. Scp Addresses map to [user@]host:/path, or to the
// scp://[user@]host:port/path URI form when a port is present (as the
// host:path form cannot carry one).
func Endpoint(addr address.Address) (string, error) {
	switch addr.Scheme {
	case address.File:
		return addr.LocalPath()
	case address.Scp:
		if addr.Port() != "" {
			return addr.String(), nil
		}
		var host = addr.Hostname()
		if strings.Contains(host, ":") {
			host = "[" + host + "]" // IPv6.
		}
		if user := addr.User(); user != "" {
			host = user + "@" + host
		}
		return host + ":" + addr.Path, nil
	default:
		return "", address.NewValidationError(
			"scheme %q is not supported; only file and scp are valid", addr.Scheme)
	}
}

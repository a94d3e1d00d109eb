// Package scp implements the scp:// protocol Handler, which stages payloads
// through a private temporary directory and transfers them with an
// openssh.Facade.
package scp

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.urlrecord.dev/core/address"
	"go.urlrecord.dev/core/openssh"
	"go.urlrecord.dev/core/protocols"
)

// Config of the secure-copy command.
type Config struct {
	// Binary of the copy command. Defaults to "scp".
	Binary string `json:"binary,omitempty" toml:"binary,omitempty" yaml:"binary,omitempty"`
	// Args passed to the copy command before its endpoints, eg ["-q", "-o", "BatchMode=yes"].
	Args []string `json:"args,omitempty" toml:"args,omitempty" yaml:"args,omitempty"`
}

// Handler of scp:// Addresses. Only Fetch and Push are supported: the
// secure-copy protocol has no equivalent of the other operations.
type Handler struct {
	protocols.Unsupported
	facade *openssh.Facade
	tmpDir string // Parent of staging directories. Empty for the OS default.
}

var _ protocols.Handler = (*Handler)(nil)

// New returns a Handler which invokes the configured copy command.
func New(cfg Config) *Handler {
	return NewWithFacade(openssh.New(openssh.Command{Binary: cfg.Binary, Args: cfg.Args}))
}

// NewWithFacade returns a Handler of the given Facade.
func NewWithFacade(f *openssh.Facade) *Handler {
	return &Handler{facade: f}
}

// Fetch downloads the remote file into a staging directory, and reads it.
func (h *Handler) Fetch(ctx context.Context, addr address.Address) (string, bool, error) {
	var content string

	var err = h.staged(func(local string) error {
		if err := h.facade.Download(ctx, addr, local); err != nil {
			return err
		}
		var b, err = os.ReadFile(local)
		content = string(b)
		return errors.WithMessage(err, "reading downloaded file")
	})
	if err != nil {
		return "", false, err
	}
	return content, true, nil
}

// Push writes the content into a staging directory, and uploads it.
func (h *Handler) Push(ctx context.Context, addr address.Address, content string) error {
	return h.staged(func(local string) error {
		if err := os.WriteFile(local, []byte(content), 0600); err != nil {
			return errors.WithMessage(err, "writing staged file")
		}
		return h.facade.Upload(ctx, local, addr)
	})
}

// staged invokes |fn| with a file path of a new, private directory,
// which is removed upon return.
func (h *Handler) staged(fn func(local string) error) error {
	var dir, err = os.MkdirTemp(h.tmpDir, "urlrecord-scp-")
	if err != nil {
		return errors.WithMessage(err, "creating staging directory")
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.WithFields(log.Fields{"err": rmErr, "dir": dir}).
				Warn("failed to cleanup staging directory")
		}
	}()
	return fn(filepath.Join(dir, "payload"))
}

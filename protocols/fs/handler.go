// Package fs implements the file:// protocol Handler over an afero.Fs.
package fs

import (
	"context"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.urlrecord.dev/core/address"
	"go.urlrecord.dev/core/protocols"
)

// Handler of file:// Addresses. All operations are supported.
type Handler struct {
	fs afero.Fs
}

var _ protocols.Handler = (*Handler)(nil)

// New returns a Handler of the given afero.Fs.
func New(fs afero.Fs) *Handler { return &Handler{fs: fs} }

// NewOS returns a Handler of the local operating system file system.
func NewOS() *Handler { return New(afero.NewOsFs()) }

// Fetch reads the file at the Address.
func (h *Handler) Fetch(_ context.Context, addr address.Address) (string, bool, error) {
	var path, err = addr.LocalPath()
	if err != nil {
		return "", false, err
	}
	if info, err := h.fs.Stat(path); err != nil {
		return "", false, notFound(err)
	} else if info.IsDir() {
		return "", false, fmt.Errorf("%s is a directory", path)
	}
	b, err := afero.ReadFile(h.fs, path)
	if err != nil {
		return "", false, notFound(err)
	}
	return string(b), true, nil
}

// Push writes the file at the Address, creating missing parent directories.
// Content is written to a temporary file of the same directory, which is
// then renamed into place.
func (h *Handler) Push(_ context.Context, addr address.Address, content string) error {
	var path, err = addr.LocalPath()
	if err != nil {
		return err
	}
	if err = h.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WithMessage(err, "creating parent directory")
	}

	f, err := afero.TempFile(h.fs, filepath.Dir(path), ".partial-"+filepath.Base(path))
	if err != nil {
		return err
	}
	defer func(name string) {
		if rmErr := h.fs.Remove(name); rmErr != nil && !os.IsNotExist(rmErr) {
			log.WithFields(log.Fields{"err": rmErr, "path": path}).
				Warn("failed to cleanup temp file")
		}
	}(f.Name())

	if _, err = f.WriteString(content); err != nil {
		_ = f.Close()
		return err
	} else if err = f.Close(); err != nil {
		return err
	} else if err = h.fs.Chmod(f.Name(), 0644); err != nil {
		return err
	}
	return h.fs.Rename(f.Name(), path)
}

// Delete removes the file at the Address. Directories are not removed.
func (h *Handler) Delete(_ context.Context, addr address.Address) error {
	var path, err = addr.LocalPath()
	if err != nil {
		return err
	}
	if info, err := h.fs.Stat(path); err != nil {
		return notFound(err)
	} else if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return notFound(h.fs.Remove(path))
}

// CreateEmpty writes an empty file at the Address.
func (h *Handler) CreateEmpty(ctx context.Context, addr address.Address) error {
	return h.Push(ctx, addr, "")
}

// CreateContainer creates the directory at the Address with its ancestors.
func (h *Handler) CreateContainer(_ context.Context, addr address.Address) error {
	var path, err = addr.LocalPath()
	if err != nil {
		return err
	}
	return h.fs.MkdirAll(path, 0755)
}

// ListContainer returns the immediate children of the directory at the Address.
func (h *Handler) ListContainer(_ context.Context, addr address.Address) (address.Set, error) {
	var path, err = addr.LocalPath()
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(h.fs, path)
	if err != nil {
		return nil, notFound(err)
	}

	var out = make(address.Set, len(infos))
	for _, info := range infos {
		var child = addr.Join(info.Name())

		if err := child.Validate(); err != nil {
			log.WithFields(log.Fields{"dir": path, "name": info.Name(), "err": err}).
				Debug("skipping directory entry")
			continue
		}
		out.Add(child)
	}
	return out, nil
}

func notFound(err error) error {
	if err != nil && errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("%w: %w", protocols.ErrNotFound, err)
	}
	return err
}

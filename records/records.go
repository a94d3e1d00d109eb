// Package records stores and loads typed records at Addresses, composing a
// protocols.Registry which moves record text with a formats.Registry which
// encodes and decodes it.
package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.urlrecord.dev/core/address"
	"go.urlrecord.dev/core/formats"
	"go.urlrecord.dev/core/protocols"
)

var (
	// ErrMissingExtension is returned by Store (and LoadAs) of an Address
	// whose Path has no file extension to select a format.
	ErrMissingExtension = errors.New("address has no file extension")
	// ErrEmptyRecord is returned by Load of an Address which fetched no
	// content, or only whitespace.
	ErrEmptyRecord = errors.New("fetched no record content")
)

// Store encodes |record| in the format named by the extension of the
// Address' Path, and pushes it to the Address. The extension is required
// and checked before any I/O.
func Store[T any](ctx context.Context, addr address.Address, record T,
	pr *protocols.Registry, fr *formats.Registry) error {

	var ext = addr.Extension()
	if ext == "" {
		return fmt.Errorf("%w (%s)", ErrMissingExtension, addr)
	}
	var content, err = formats.EncodeAs(fr, record, ext)
	if err != nil {
		return err
	}
	if err = pr.Push(ctx, addr, content); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"address": addr.String(),
		"format":  ext,
		"bytes":   len(content),
	}).Debug("stored record")

	return nil
}

// Load fetches the Address and decodes its content as a T, probing each
// registered format in order.
func Load[T any](ctx context.Context, addr address.Address,
	pr *protocols.Registry, fr *formats.Registry) (T, error) {

	var out T
	var content, err = fetch(ctx, addr, pr)
	if err != nil {
		return out, err
	}
	return formats.DecodeAny[T](fr, content)
}

// LoadAs fetches the Address and decodes its content as a T in the format
// named by the extension of the Address' Path.
func LoadAs[T any](ctx context.Context, addr address.Address,
	pr *protocols.Registry, fr *formats.Registry) (T, error) {

	var out T
	var ext = addr.Extension()
	if ext == "" {
		return out, fmt.Errorf("%w (%s)", ErrMissingExtension, addr)
	}
	// Resolve the format before fetching.
	if _, err := fr.Codec(ext); err != nil {
		return out, err
	}
	var content, err = fetch(ctx, addr, pr)
	if err != nil {
		return out, err
	}
	return formats.DecodeAs[T](fr, content, ext)
}

// Copy loads a T from |src| and stores it to |dst|, converting between
// formats as their extensions require.
func Copy[T any](ctx context.Context, src, dst address.Address,
	pr *protocols.Registry, fr *formats.Registry) error {

	if dst.Extension() == "" {
		return fmt.Errorf("%w (%s)", ErrMissingExtension, dst)
	}
	var record, err = Load[T](ctx, src, pr, fr)
	if err != nil {
		return err
	}
	return Store(ctx, dst, record, pr, fr)
}

func fetch(ctx context.Context, addr address.Address, pr *protocols.Registry) (string, error) {
	var content, ok, err = pr.Fetch(ctx, addr)
	if err != nil {
		return "", err
	} else if !ok || strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w (%s)", ErrEmptyRecord, addr)
	}
	return content, nil
}

// Package protocols moves whole string payloads to and from Addresses.
//
// A Handler implements the string-level operations for a single backend, and
// a Registry dispatches operations to the Handler of an Address' scheme.
// Backends live in subpackages (fs, scp, web, s3, gcs, azure, etcd), and
// package builtin wires all of them into a Registry from a Config.
package protocols

import (
	"context"

	"go.urlrecord.dev/core/address"
)

// Handler performs string-level operations against one backend.
type Handler interface {
	// Fetch returns the full content at the Address. The returned bool is
	// false only if the backend has no content to return, which is reserved
	// and not produced by current backends: they return content or fail.
	Fetch(ctx context.Context, addr address.Address) (string, bool, error)
	// Push writes the full content at the Address, replacing any existing
	// content.
	Push(ctx context.Context, addr address.Address, content string) error
	// Delete removes the resource at the Address. It fails if absent.
	Delete(ctx context.Context, addr address.Address) error
	// CreateEmpty is equivalent to Push of an empty string.
	CreateEmpty(ctx context.Context, addr address.Address) error
	// CreateContainer creates a container at the Address, along with missing
	// ancestors. It succeeds if the container already exists.
	CreateContainer(ctx context.Context, addr address.Address) error
	// ListContainer enumerates the immediate children of the container at
	// the Address. Entries which cannot be represented as an Address are
	// skipped.
	ListContainer(ctx context.Context, addr address.Address) (address.Set, error)
}

// Unsupported is a Handler which fails every operation with
// ErrUnsupportedOperation. Backends embed it and override the operations they
// implement.
type Unsupported struct{}

// Fetch fails with ErrUnsupportedOperation.
func (Unsupported) Fetch(context.Context, address.Address) (string, bool, error) {
	return "", false, ErrUnsupportedOperation
}

// Push fails with ErrUnsupportedOperation.
func (Unsupported) Push(context.Context, address.Address, string) error {
	return ErrUnsupportedOperation
}

// Delete fails with ErrUnsupportedOperation.
func (Unsupported) Delete(context.Context, address.Address) error { return ErrUnsupportedOperation }

// CreateEmpty fails with ErrUnsupportedOperation.
func (Unsupported) CreateEmpty(context.Context, address.Address) error {
	return ErrUnsupportedOperation
}

// CreateContainer fails with ErrUnsupportedOperation.
func (Unsupported) CreateContainer(context.Context, address.Address) error {
	return ErrUnsupportedOperation
}

// ListContainer fails with ErrUnsupportedOperation.
func (Unsupported) ListContainer(context.Context, address.Address) (address.Set, error) {
	return nil, ErrUnsupportedOperation
}

var _ Handler = Unsupported{}

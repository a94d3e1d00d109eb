package protocols

import (
	"context"

	"go.urlrecord.dev/core/address"
)

// CallbackHandler implements Handler for testing with customizable behavior.
// Operations without a callback fail with ErrUnsupportedOperation.
type CallbackHandler struct {
	FetchFunc           func(ctx context.Context, addr address.Address) (string, bool, error)
	PushFunc            func(ctx context.Context, addr address.Address, content string) error
	DeleteFunc          func(ctx context.Context, addr address.Address) error
	CreateEmptyFunc     func(ctx context.Context, addr address.Address) error
	CreateContainerFunc func(ctx context.Context, addr address.Address) error
	ListContainerFunc   func(ctx context.Context, addr address.Address) (address.Set, error)
}

// Fetch calls FetchFunc if set.
func (c *CallbackHandler) Fetch(ctx context.Context, addr address.Address) (string, bool, error) {
	if c.FetchFunc != nil {
		return c.FetchFunc(ctx, addr)
	}
	return "", false, ErrUnsupportedOperation
}

// Push calls PushFunc if set.
func (c *CallbackHandler) Push(ctx context.Context, addr address.Address, content string) error {
	if c.PushFunc != nil {
		return c.PushFunc(ctx, addr, content)
	}
	return ErrUnsupportedOperation
}

// Delete calls DeleteFunc if set.
func (c *CallbackHandler) Delete(ctx context.Context, addr address.Address) error {
	if c.DeleteFunc != nil {
		return c.DeleteFunc(ctx, addr)
	}
	return ErrUnsupportedOperation
}

// CreateEmpty calls CreateEmptyFunc if set.
func (c *CallbackHandler) CreateEmpty(ctx context.Context, addr address.Address) error {
	if c.CreateEmptyFunc != nil {
		return c.CreateEmptyFunc(ctx, addr)
	}
	return ErrUnsupportedOperation
}

// CreateContainer calls CreateContainerFunc if set.
func (c *CallbackHandler) CreateContainer(ctx context.Context, addr address.Address) error {
	if c.CreateContainerFunc != nil {
		return c.CreateContainerFunc(ctx, addr)
	}
	return ErrUnsupportedOperation
}

// ListContainer calls ListContainerFunc if set.
func (c *CallbackHandler) ListContainer(ctx context.Context, addr address.Address) (address.Set, error) {
	if c.ListContainerFunc != nil {
		return c.ListContainerFunc(ctx, addr)
	}
	return nil, ErrUnsupportedOperation
}

var _ Handler = (*CallbackHandler)(nil)

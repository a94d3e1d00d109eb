package protocols

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.urlrecord.dev/core/address"
)

func TestRegistryDispatch(t *testing.T) {
	var ctx = context.Background()
	var calls []string
	var fixture = &CallbackHandler{
		FetchFunc: func(_ context.Context, addr address.Address) (string, bool, error) {
			calls = append(calls, "Fetch "+addr.Path)
			return "content", true, nil
		},
		PushFunc: func(_ context.Context, addr address.Address, content string) error {
			calls = append(calls, "Push "+addr.Path+" "+content)
			return nil
		},
		DeleteFunc: func(_ context.Context, addr address.Address) error {
			calls = append(calls, "Delete "+addr.Path)
			return nil
		},
		CreateEmptyFunc: func(_ context.Context, addr address.Address) error {
			calls = append(calls, "CreateEmpty "+addr.Path)
			return nil
		},
		CreateContainerFunc: func(_ context.Context, addr address.Address) error {
			calls = append(calls, "CreateContainer "+addr.Path)
			return nil
		},
		ListContainerFunc: func(_ context.Context, addr address.Address) (address.Set, error) {
			calls = append(calls, "ListContainer "+addr.Path)
			return address.NewSet(addr.Join("child")), nil
		},
	}
	var other = &CallbackHandler{}
	var reg = NewRegistry(map[address.Scheme]Handler{
		"test":  fixture,
		"other": other,
	})
	require.Equal(t, []address.Scheme{"other", "test"}, reg.Schemes())

	var h, err = reg.Handler("test")
	require.NoError(t, err)
	require.Equal(t, fixture, h)

	var addr = address.MustParse("test://host/a/b")

	content, ok, err := reg.Fetch(ctx, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "content", content)

	require.NoError(t, reg.Push(ctx, addr, "data"))
	require.NoError(t, reg.Delete(ctx, addr))
	require.NoError(t, reg.CreateEmpty(ctx, addr))
	require.NoError(t, reg.CreateContainer(ctx, addr))

	children, err := reg.ListContainer(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, address.NewSet(address.MustParse("test://host/a/b/child")), children)

	require.Equal(t, []string{
		"Fetch /a/b",
		"Push /a/b data",
		"Delete /a/b",
		"CreateEmpty /a/b",
		"CreateContainer /a/b",
		"ListContainer /a/b",
	}, calls)

	// Operations of the "other" Handler are unsupported, and errors are
	// wrapped with their operation and Address.
	var otherAddr = address.MustParse("other://host/x")
	err = reg.Delete(ctx, otherAddr)
	require.EqualError(t, err, "delete other://host/x: unsupported operation")
	require.True(t, errors.Is(err, ErrUnsupportedOperation))

	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	require.Equal(t, "delete", opErr.Op)
	require.Equal(t, otherAddr, opErr.Address)

	_, _, err = reg.Fetch(ctx, otherAddr)
	require.EqualError(t, err, "fetch other://host/x: unsupported operation")
	_, err = reg.ListContainer(ctx, otherAddr)
	require.EqualError(t, err, "list_container other://host/x: unsupported operation")
}

func TestRegistryUnknownScheme(t *testing.T) {
	var ctx = context.Background()
	var reg = NewRegistry(nil)
	var addr = address.MustParse("ftp://host/file.json")

	_, err := reg.Handler("ftp")
	require.EqualError(t, err, `"ftp": unsupported scheme`)
	require.True(t, errors.Is(err, ErrUnsupportedScheme))

	for _, err = range []error{
		reg.Push(ctx, addr, "x"),
		reg.Delete(ctx, addr),
		reg.CreateEmpty(ctx, addr),
		reg.CreateContainer(ctx, addr),
	} {
		require.True(t, errors.Is(err, ErrUnsupportedScheme))

		var opErr *OpError
		require.False(t, errors.As(err, &opErr))
	}
	_, _, err = reg.Fetch(ctx, addr)
	require.True(t, errors.Is(err, ErrUnsupportedScheme))
	_, err = reg.ListContainer(ctx, addr)
	require.True(t, errors.Is(err, ErrUnsupportedScheme))
}

func TestRegistryMetrics(t *testing.T) {
	var ctx = context.Background()
	var failErr = errors.New("whoops")
	var reg = NewRegistry(map[address.Scheme]Handler{
		"metrics": &CallbackHandler{
			FetchFunc: func(context.Context, address.Address) (string, bool, error) {
				return "12345", true, nil
			},
			PushFunc: func(context.Context, address.Address, string) error { return failErr },
		},
	})
	var addr = address.MustParse("metrics://host/x")

	var fetchOK = operationsTotal.WithLabelValues("metrics", "fetch", "success")
	var pushErr = operationsTotal.WithLabelValues("metrics", "push", "error")
	var fetchBytes = payloadBytesTotal.WithLabelValues("metrics", "fetch")
	var pushBytes = payloadBytesTotal.WithLabelValues("metrics", "push")

	var before = []float64{
		testutil.ToFloat64(fetchOK),
		testutil.ToFloat64(pushErr),
		testutil.ToFloat64(fetchBytes),
		testutil.ToFloat64(pushBytes),
	}

	var _, _, err = reg.Fetch(ctx, addr)
	require.NoError(t, err)
	_, _, err = reg.Fetch(ctx, addr)
	require.NoError(t, err)
	require.ErrorIs(t, reg.Push(ctx, addr, "abc"), failErr)

	require.Equal(t, before[0]+2, testutil.ToFloat64(fetchOK))
	require.Equal(t, before[1]+1, testutil.ToFloat64(pushErr))
	require.Equal(t, before[2]+10, testutil.ToFloat64(fetchBytes))
	require.Equal(t, before[3], testutil.ToFloat64(pushBytes)) // Failed pushes aren't counted.
}

func TestStatusError(t *testing.T) {
	var err error = &StatusError{Code: 404, Status: "404 Not Found"}
	require.EqualError(t, err, "unexpected HTTP status 404 Not Found")
	require.True(t, errors.Is(err, ErrNotFound))

	err = &StatusError{Code: 500}
	require.EqualError(t, err, "unexpected HTTP status 500 Internal Server Error")
	require.False(t, errors.Is(err, ErrNotFound))
}

func TestUnsupportedHandler(t *testing.T) {
	var ctx = context.Background()
	var h Handler = Unsupported{}
	var addr = address.MustParse("file:///tmp/x")

	var _, ok, err = h.Fetch(ctx, addr)
	require.False(t, ok)
	require.Equal(t, ErrUnsupportedOperation, err)
	require.Equal(t, ErrUnsupportedOperation, h.Push(ctx, addr, ""))
	require.Equal(t, ErrUnsupportedOperation, h.Delete(ctx, addr))
	require.Equal(t, ErrUnsupportedOperation, h.CreateEmpty(ctx, addr))
	require.Equal(t, ErrUnsupportedOperation, h.CreateContainer(ctx, addr))
	_, err = h.ListContainer(ctx, addr)
	require.Equal(t, ErrUnsupportedOperation, err)
}

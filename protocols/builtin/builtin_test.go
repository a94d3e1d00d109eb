package builtin

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.urlrecord.dev/core/address"
	"go.urlrecord.dev/core/protocols"
	"go.urlrecord.dev/core/protocols/etcd"
	"go.urlrecord.dev/core/protocols/web"
	"gopkg.in/yaml.v2"
)

func TestDefaultRegistrySchemes(t *testing.T) {
	var r = DefaultRegistry()
	require.Equal(t, []address.Scheme{
		address.Azure,
		address.Etcd,
		address.File,
		address.GS,
		address.HTTP,
		address.HTTPS,
		address.S3,
		address.Scp,
	}, r.Schemes())

	httpHandler, err := r.Handler(address.HTTP)
	require.NoError(t, err)
	httpsHandler, err := r.Handler(address.HTTPS)
	require.NoError(t, err)
	require.Same(t, httpHandler, httpsHandler)

	_, err = r.Handler("ftp")
	require.True(t, errors.Is(err, protocols.ErrUnsupportedScheme))
}

func TestFileRoundTrip(t *testing.T) {
	var ctx = context.Background()
	var r = DefaultRegistry()

	var addr, err = address.FromPath(filepath.Join(t.TempDir(), "nested", "record.json"))
	require.NoError(t, err)

	require.NoError(t, r.Push(ctx, addr, `{"a":1}`))
	content, ok, err := r.Fetch(ctx, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"a":1}`, content)

	require.NoError(t, r.Delete(ctx, addr))
	_, _, err = r.Fetch(ctx, addr)
	require.True(t, errors.Is(err, protocols.ErrNotFound))

	var opErr *protocols.OpError
	require.True(t, errors.As(err, &opErr))
	require.Equal(t, "fetch", opErr.Op)
}

func TestConfigValidation(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.UnmarshalStrict([]byte(`
http:
  hosts:
    api.example.com:
      bearer: token
      user: someone
`), &cfg))

	require.EqualError(t, cfg.Validate(),
		"http: hosts[api.example.com]: "+web.ErrConflictingAuth.Error())
	_, err := NewRegistry(cfg)
	require.True(t, errors.Is(err, web.ErrConflictingAuth))

	cfg = Config{Etcd: etcd.Config{Password: "secret"}}
	require.EqualError(t, cfg.Validate(), "etcd: password requires a username")

	cfg = Config{}
	require.NoError(t, yaml.UnmarshalStrict([]byte(`
scp:
  binary: /usr/bin/scp
  args: ["-q", "-o", "BatchMode=yes"]
etcd:
  dial_timeout: 2s
`), &cfg))
	require.NoError(t, cfg.Validate())
	require.Equal(t, []string{"-q", "-o", "BatchMode=yes"}, cfg.SCP.Args)

	_, err = NewRegistry(cfg)
	require.NoError(t, err)
}

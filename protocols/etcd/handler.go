// Package etcd implements the etcd:// protocol Handler, which maps the Path
// of an Address to a key of the Etcd keyspace served by the Address' host.
package etcd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.urlrecord.dev/core/address"
	"go.urlrecord.dev/core/protocols"
	"go.urlrecord.dev/core/protocols/objects"
)

// DefaultDialTimeout is used when Config.DialTimeout is zero.
const DefaultDialTimeout = 5 * time.Second

// Config of etcd:// clients.
type Config struct {
	// DialTimeout bounds establishment of client connections.
	DialTimeout Duration `json:"dial_timeout,omitempty" toml:"dial_timeout,omitempty" yaml:"dial_timeout,omitempty"`
	// Username and Password of Etcd authentication, if enabled.
	Username string `json:"username,omitempty" toml:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" toml:"password,omitempty" yaml:"password,omitempty"`
}

// Validate returns an error if the Config is not well-formed.
func (c Config) Validate() error {
	if c.DialTimeout < 0 {
		return fmt.Errorf("dial_timeout: must be non-negative (%s)", time.Duration(c.DialTimeout))
	} else if c.Password != "" && c.Username == "" {
		return errors.New("password requires a username")
	}
	return nil
}

// Duration is a time.Duration which encodes as a string, like "5s".
type Duration time.Duration

// UnmarshalText parses a time.ParseDuration string.
func (d *Duration) UnmarshalText(b []byte) error {
	var v, err = time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText returns the time.Duration string form.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// QueryArgs are parsed from the query arguments of an etcd:// Address.
// No arguments are currently defined.
type QueryArgs struct{}

// Handler of etcd://host:port/key Addresses. CreateContainer is not
// supported, as key prefixes exist implicitly.
type Handler struct {
	protocols.Unsupported
	clients   *objects.Cache
	newClient func(endpoint string) (clientv3.KV, error)
}

var _ protocols.Handler = (*Handler)(nil)

// New returns a Handler which dials a client of each distinct endpoint upon
// first use.
func New(cfg Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var timeout = time.Duration(cfg.DialTimeout)
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}

	return &Handler{
		clients: objects.NewCache(16),
		newClient: func(endpoint string) (clientv3.KV, error) {
			var client, err = clientv3.New(clientv3.Config{
				Endpoints:   []string{endpoint},
				DialTimeout: timeout,
				Username:    cfg.Username,
				Password:    cfg.Password,
			})
			if err != nil {
				return nil, err
			}
			log.WithFields(log.Fields{
				"endpoint":    endpoint,
				"dialTimeout": timeout,
			}).Info("constructed new etcd client")

			return client, nil
		},
	}, nil
}

// NewWithClient returns a Handler which uses |kv| for every endpoint.
// The Handler never closes |kv|.
func NewWithClient(kv clientv3.KV) *Handler {
	return &Handler{
		clients:   objects.NewCache(1),
		newClient: func(string) (clientv3.KV, error) { return borrowedKV{kv}, nil },
	}
}

// borrowedKV hides the Close of a client which the Handler doesn't own.
type borrowedKV struct{ clientv3.KV }

// Fetch the value of the Address' key.
func (h *Handler) Fetch(ctx context.Context, addr address.Address) (string, bool, error) {
	var kv, err = h.kv(addr)
	if err != nil {
		return "", false, err
	}
	resp, err := kv.Get(ctx, addr.Path)
	if err != nil {
		return "", false, err
	} else if len(resp.Kvs) == 0 {
		return "", false, fmt.Errorf("%w: key %s", protocols.ErrNotFound, addr.Path)
	}
	return string(resp.Kvs[0].Value), true, nil
}

// Push the content as the value of the Address' key.
func (h *Handler) Push(ctx context.Context, addr address.Address, content string) error {
	var kv, err = h.kv(addr)
	if err != nil {
		return err
	}
	_, err = kv.Put(ctx, addr.Path, content)
	return err
}

// Delete the Address' key, which must exist.
func (h *Handler) Delete(ctx context.Context, addr address.Address) error {
	var kv, err = h.kv(addr)
	if err != nil {
		return err
	}
	resp, err := kv.Delete(ctx, addr.Path)
	if err != nil {
		return err
	} else if resp.Deleted == 0 {
		return fmt.Errorf("%w: key %s", protocols.ErrNotFound, addr.Path)
	}
	return nil
}

// CreateEmpty puts an empty value.
func (h *Handler) CreateEmpty(ctx context.Context, addr address.Address) error {
	return h.Push(ctx, addr, "")
}

// ListContainer returns keys and key prefixes immediately under the
// Address' Path.
func (h *Handler) ListContainer(ctx context.Context, addr address.Address) (address.Set, error) {
	var kv, err = h.kv(addr)
	if err != nil {
		return nil, err
	}
	var prefix = "/" + objects.Prefix(addr)

	resp, err := kv.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, err
	}

	var keys, prefixes []string
	for _, kv := range resp.Kvs {
		var key = string(kv.Key)
		var rel = key[len(prefix):]

		if ind := strings.IndexByte(rel, '/'); ind != -1 {
			prefixes = append(prefixes, key[1:len(prefix)+ind+1])
		} else {
			keys = append(keys, key[1:])
		}
	}
	return objects.Children(addr, keys, prefixes), nil
}

func (h *Handler) kv(addr address.Address) (clientv3.KV, error) {
	var args QueryArgs
	if err := objects.ParseQueryArgs(addr, &args); err != nil {
		return nil, err
	}
	var endpoint = addr.Host()

	var c, err = h.clients.Get(endpoint, func() (interface{}, error) { return h.newClient(endpoint) })
	if err != nil {
		return nil, err
	}
	return c.(clientv3.KV), nil
}

// Package objects holds common support of object store Handlers, which map
// an Address to the bucket (its Authority) and object key (its Path) of a
// flat keyspace, with "/"-delimited prefixes acting as containers.
package objects

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/schema"
	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"
	"go.urlrecord.dev/core/address"
)

// ParseQueryArgs decodes the query of the Address into |args|, which is a
// pointer to a struct. Unknown arguments are an error.
func ParseQueryArgs(addr address.Address, args interface{}) error {
	var decoder = schema.NewDecoder()
	decoder.IgnoreUnknownKeys(false)

	if q, err := url.ParseQuery(addr.Query); err != nil {
		return err
	} else if err = decoder.Decode(args, q); err != nil {
		return fmt.Errorf("parsing address arguments: %s", err)
	}
	return nil
}

// Key returns the object key of the Address, which is its Path without the
// leading slash.
func Key(addr address.Address) string { return strings.TrimPrefix(addr.Path, "/") }

// Prefix returns the listing prefix of a container Address: its Key with a
// trailing slash, or empty if the Address is the bucket root.
func Prefix(addr address.Address) string {
	var key = strings.TrimSuffix(Key(addr), "/")
	if key == "" {
		return ""
	}
	return key + "/"
}

// Children builds the Set of child Addresses of |container| from listed
// object |keys| and common |prefixes|. Listed entries which aren't immediate
// children of the container's Prefix are skipped, as is the container itself.
func Children(container address.Address, keys, prefixes []string) address.Set {
	var prefix = Prefix(container)
	var out = make(address.Set, len(keys)+len(prefixes))

	var add = func(name string) {
		if !strings.HasPrefix(name, prefix) {
			return
		}
		var rel = strings.TrimSuffix(name[len(prefix):], "/")
		if rel == "" || strings.Contains(rel, "/") {
			return
		}
		var child = container
		child.Path, child.RawPath = "/"+prefix+rel, ""

		if child.Validate() == nil {
			out.Add(child)
		}
	}
	for _, k := range keys {
		add(k)
	}
	for _, p := range prefixes {
		add(p)
	}
	return out
}

// Cache of lazily constructed clients, keyed on the client arguments which
// built them.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

// NewCache returns a Cache holding up to |size| clients. Evicted clients
// which implement io.Closer are closed.
func NewCache(size int) *Cache {
	var c, err = lru.NewWithEvict(size, closeEvicted)
	if err != nil {
		panic(err) // Only for size <= 0.
	}
	return &Cache{lru: c}
}

func closeEvicted(key, value interface{}) {
	var closer, ok = value.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		log.WithFields(log.Fields{"key": key, "err": err}).
			Warn("failed to close evicted client")
	}
}

// Get returns the cached client of |key|, or invokes |build| to construct
// and cache one. Failed constructions are not cached.
func (c *Cache) Get(key string, build func() (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}
	var v, err = build()
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, v)
	return v, nil
}

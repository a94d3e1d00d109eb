// Package builtin assembles the protocols.Registry of every supported
// Address scheme.
package builtin

import (
	"github.com/pkg/errors"
	"go.urlrecord.dev/core/address"
	"go.urlrecord.dev/core/protocols"
	"go.urlrecord.dev/core/protocols/azure"
	"go.urlrecord.dev/core/protocols/etcd"
	"go.urlrecord.dev/core/protocols/fs"
	"go.urlrecord.dev/core/protocols/gcs"
	"go.urlrecord.dev/core/protocols/s3"
	"go.urlrecord.dev/core/protocols/scp"
	"go.urlrecord.dev/core/protocols/web"
)

// Config of the configurable protocol Handlers.
type Config struct {
	HTTP web.Config  `json:"http" toml:"http" yaml:"http"`
	SCP  scp.Config  `json:"scp" toml:"scp" yaml:"scp"`
	Etcd etcd.Config `json:"etcd" toml:"etcd" yaml:"etcd"`
}

// Validate returns an error if the Config is not well-formed.
func (c Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return errors.WithMessage(err, "http")
	} else if err = c.Etcd.Validate(); err != nil {
		return errors.WithMessage(err, "etcd")
	}
	return nil
}

// NewRegistry validates the Config and returns a Registry mapping each
// supported scheme to its Handler.
func NewRegistry(cfg Config) (*protocols.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	webHandler, err := web.New(cfg.HTTP)
	if err != nil {
		return nil, err
	}
	etcdHandler, err := etcd.New(cfg.Etcd)
	if err != nil {
		return nil, err
	}

	return protocols.NewRegistry(map[address.Scheme]protocols.Handler{
		address.File:  fs.NewOS(),
		address.Scp:   scp.New(cfg.SCP),
		address.HTTP:  webHandler,
		address.HTTPS: webHandler,
		address.S3:    s3.New(),
		address.GS:    gcs.New(),
		address.Azure: azure.New(),
		address.Etcd:  etcdHandler,
	}), nil
}

// DefaultRegistry returns the Registry of a zero-valued Config.
func DefaultRegistry() *protocols.Registry {
	var r, err = NewRegistry(Config{})
	if err != nil {
		panic(err) // A zero Config is always valid.
	}
	return r
}

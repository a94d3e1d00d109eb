package web

import (
	"errors"
	"fmt"
	"strings"

	"go.urlrecord.dev/core/address"
)

// Method is an HTTP request method. It decodes case-insensitively from
// text, such that "Get", "get" and "GET" are equivalent.
type Method string

// Methods which may be configured for a host.
const (
	MethodGet    Method = "GET"
	MethodHead   Method = "HEAD"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
)

var methods = []Method{MethodGet, MethodHead, MethodPost, MethodPut, MethodPatch, MethodDelete}

// ParseMethod returns the Method named by |s|, in any case.
func ParseMethod(s string) (Method, error) {
	for _, m := range methods {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("invalid HTTP method %q (expected one of %v)", s, methods)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) error {
	var parsed, err = ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) { return []byte(m), nil }

// Validate returns an error if the Method is neither empty nor a known method.
func (m Method) Validate() error {
	if m == "" {
		return nil
	}
	for _, known := range methods {
		if m == known {
			return nil
		}
	}
	return fmt.Errorf("invalid HTTP method %q (expected one of %v)", string(m), methods)
}

// ErrConflictingAuth is returned by Validate of a HostConfig having both
// bearer and basic authorization.
var ErrConflictingAuth = errors.New("bearer and basic (user) authorization are mutually exclusive")

// Config of HTTP hosts.
type Config struct {
	// Hosts is keyed on "host:port", or on a bare hostname which applies to
	// every port of the host.
	Hosts map[string]HostConfig `json:"hosts,omitempty" toml:"hosts,omitempty" yaml:"hosts,omitempty"`
}

// HostConfig overrides the requests made of a host. Headers are applied after
// authorization, and take precedence over it.
type HostConfig struct {
	// Headers set on every request.
	Headers map[string]string `json:"headers,omitempty" toml:"headers,omitempty" yaml:"headers,omitempty"`
	// PushMethod used in place of PUT.
	PushMethod Method `json:"push_method,omitempty" toml:"push_method,omitempty" yaml:"push_method,omitempty"`
	// FetchMethod used in place of GET.
	FetchMethod Method `json:"fetch_method,omitempty" toml:"fetch_method,omitempty" yaml:"fetch_method,omitempty"`
	// Bearer token applied as an Authorization header.
	Bearer string `json:"bearer,omitempty" toml:"bearer,omitempty" yaml:"bearer,omitempty"`
	// User of basic authorization. Password may be empty.
	User     string `json:"user,omitempty" toml:"user,omitempty" yaml:"user,omitempty"`
	Password string `json:"password,omitempty" toml:"password,omitempty" yaml:"password,omitempty"`
}

// Validate returns an error if the Config is not well-formed.
func (c Config) Validate() error {
	for host, hc := range c.Hosts {
		if host == "" {
			return fmt.Errorf("hosts: empty host key")
		} else if strings.ContainsAny(host, "/@?# ") {
			return fmt.Errorf("hosts: invalid host key %q", host)
		} else if err := hc.Validate(); err != nil {
			return fmt.Errorf("hosts[%s]: %w", host, err)
		}
	}
	return nil
}

// Validate returns an error if the HostConfig is not well-formed.
func (c HostConfig) Validate() error {
	if c.Bearer != "" && c.User != "" {
		return ErrConflictingAuth
	} else if c.Password != "" && c.User == "" {
		return fmt.Errorf("password requires a user")
	} else if err := c.PushMethod.Validate(); err != nil {
		return fmt.Errorf("push_method: %w", err)
	} else if err = c.FetchMethod.Validate(); err != nil {
		return fmt.Errorf("fetch_method: %w", err)
	}
	for name := range c.Headers {
		if name == "" || strings.ContainsAny(name, ": \t\r\n") {
			return fmt.Errorf("headers: invalid header name %q", name)
		}
	}
	return nil
}

// lookup returns the HostConfig of the Address, preferring a "host:port" key
// over a bare hostname.
func (c Config) lookup(addr address.Address) (HostConfig, bool) {
	if hc, ok := c.Hosts[addr.Host()]; ok {
		return hc, true
	}
	var hc, ok = c.Hosts[addr.Hostname()]
	return hc, ok
}

// Package address defines Address, the parsed and scheme-discriminated
// location of a single string record, along with its construction from URLs
// and local filesystem paths.
package address

import (
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Scheme discriminates the backend which serves an Address.
type Scheme string

const (
	// File is a path of the local file system.
	File Scheme = "file"
	// Scp is a path on a remote host, reachable by secure copy.
	Scp Scheme = "scp"
	// HTTP is a plain-text HTTP endpoint.
	HTTP Scheme = "http"
	// HTTPS is a TLS HTTP endpoint.
	HTTPS Scheme = "https"
	// S3 is an object of an Amazon S3 (or compatible) bucket.
	S3 Scheme = "s3"
	// GS is an object of a Google Cloud Storage bucket.
	GS Scheme = "gs"
	// Azure is a blob of an Azure Blob Storage container.
	Azure Scheme = "azure"
	// Etcd is a key of an Etcd keyspace.
	Etcd Scheme = "etcd"
)

// Address locates one string record. Addresses are immutable values which are
// compared structurally, and may be used as map keys.
//
// Examples:
//
//   - file:///var/lib/app/settings.toml
//   - scp://deploy@build-host/etc/app/settings.json
//   - https://config.example.com/v1/settings.json?env=prod
//   - s3://bucket-name/a/key.yaml?profile=a-shared-credentials-profile
//   - etcd://127.0.0.1:2379/app/settings.json
type Address struct {
	// Scheme of the Address, which selects its backend.
	Scheme Scheme
	// Authority is the [user@]host[:port] of remote Addresses, and the bucket
	// or container of object store Addresses. It's empty for File Addresses.
	// Like Query, it's held in its escaped URL form.
	Authority string
	// Path is the absolute, slash-separated path of the record.
	Path string
	// RawPath is an alternate escaping of Path (eg "/a%2Fb.json"), or empty
	// if Path's default escaping applies. It's always empty for File and Scp
	// Addresses.
	RawPath string
	// Query is the raw, encoded query of the Address. It's used only by HTTP
	// endpoints and as backend arguments of object stores.
	Query string
}

// Parse an Address from its URL form.
func Parse(raw string) (Address, error) {
	var u, err = url.Parse(raw)
	if err != nil {
		return Address{}, &ValidationError{Err: err}
	} else if !u.IsAbs() {
		return Address{}, NewValidationError("not absolute (%s)", raw)
	} else if u.Opaque != "" {
		return Address{}, NewValidationError("expected scheme://authority/path (%s)", raw)
	} else if u.Fragment != "" {
		return Address{}, NewValidationError("fragments are not supported (%s)", raw)
	}

	var a = Address{
		Scheme:    Scheme(strings.ToLower(u.Scheme)),
		Authority: strings.TrimPrefix((&url.URL{User: u.User, Host: u.Host}).String(), "//"),
		Path:      u.Path,
		RawPath:   rawPath(u.Path, u.RawPath),
		Query:     u.RawQuery,
	}

	switch a.Scheme {
	case File:
		if a.Authority == "localhost" {
			a.Authority = ""
		}
		a.Path, a.RawPath = cleanAbsolute(a.Path), ""
	case Scp:
		a.Path, a.RawPath = cleanAbsolute(a.Path), ""
	default:
		if a.Path == "" {
			a.Path = "/"
		}
	}
	return a, a.Validate()
}

// MustParse parses an Address, and panics on error.
func MustParse(raw string) Address {
	var a, err = Parse(raw)
	if err != nil {
		panic(err.Error())
	}
	return a
}

// FromPath builds a File Address from a local path, which is made absolute
// (relative to the working directory) without resolving symbolic links.
func FromPath(p string) (Address, error) {
	var abs, err = absolutize(p)
	if err != nil {
		return Address{}, err
	}
	return Address{Scheme: File, Path: abs}, nil
}

// FromPathWithHost builds a Scp Address of the path on remote |host|. The path
// is absolutized by the same rule as FromPath.
func FromPathWithHost(p, host string) (Address, error) {
	if host == "" {
		return Address{}, NewValidationError("expected a hostname")
	}
	var abs, err = absolutize(p)
	if err != nil {
		return Address{}, err
	}
	var a = Address{Scheme: Scp, Authority: host, Path: abs}
	return a, a.Validate()
}

// Validate returns an error if the Address is not well-formed.
func (a Address) Validate() error {
	if a.Scheme == "" {
		return NewValidationError("missing scheme")
	} else if !strings.HasPrefix(a.Path, "/") {
		return NewValidationError("path is not absolute (%s)", a.Path)
	} else if strings.ContainsRune(a.Path, 0) {
		return NewValidationError("path contains NUL")
	} else if a.RawPath != "" && rawPath(a.Path, a.RawPath) == "" {
		return NewValidationError("raw path %s is not an alternate escaping of %s", a.RawPath, a.Path)
	}

	switch a.Scheme {
	case File:
		if a.Authority != "" {
			return NewValidationError("file scheme cannot have host (%s)", a.Authority)
		} else if a.RawPath != "" {
			return NewValidationError("file scheme cannot have raw path (%s)", a.RawPath)
		} else if a.Query != "" {
			return NewValidationError("file scheme cannot have query (%s)", a.Query)
		}
	case Scp:
		if a.Hostname() == "" {
			return NewValidationError("missing host")
		} else if a.Query != "" {
			return NewValidationError("scp scheme cannot have query (%s)", a.Query)
		} else if a.RawPath != "" {
			return NewValidationError("scp scheme cannot have raw path (%s)", a.RawPath)
		}
	case HTTP, HTTPS, Etcd:
		if a.Hostname() == "" {
			return NewValidationError("missing host")
		}
	case S3, GS, Azure:
		if a.Authority == "" {
			return NewValidationError("missing bucket")
		}
	}
	if strings.ContainsAny(a.Authority, "/?#") {
		return NewValidationError("invalid authority (%s)", a.Authority)
	}
	return nil
}

// String returns the URL form of the Address, which round-trips through Parse.
func (a Address) String() string {
	var b strings.Builder
	b.WriteString(string(a.Scheme))
	b.WriteString("://")
	b.WriteString(a.Authority)
	b.WriteString((&url.URL{Path: a.Path, RawPath: a.RawPath}).EscapedPath())
	if a.Query != "" {
		b.WriteByte('?')
		b.WriteString(a.Query)
	}
	return b.String()
}

// URL returns the Address as a URL.
func (a Address) URL() (*url.URL, error) {
	var u, err = url.Parse(a.String())
	if err != nil {
		return nil, &ValidationError{Err: err}
	}
	return u, nil
}

// Hostname returns the (unescaped) host of the Authority, without user or port.
func (a Address) Hostname() string {
	return (&url.URL{Host: a.Host()}).Hostname()
}

// Port returns the port of the Authority, if any.
func (a Address) Port() string {
	return (&url.URL{Host: a.Host()}).Port()
}

// Host returns the (unescaped) host[:port] of the Authority, without user.
// An IPv6 zone is returned as "[fe80::1%eth0]:8080".
func (a Address) Host() string {
	if h, err := url.PathUnescape(a.host()); err == nil {
		return h
	}
	return a.host()
}

// User returns the (unescaped) user name of the Authority, if any.
func (a Address) User() string {
	var ind = strings.LastIndexByte(a.Authority, '@')
	if ind == -1 {
		return ""
	}
	var info = a.Authority[:ind]
	if i := strings.IndexByte(info, ':'); i != -1 {
		info = info[:i]
	}
	if u, err := url.PathUnescape(info); err == nil {
		return u
	}
	return info
}

func (a Address) host() string {
	return a.Authority[strings.LastIndexByte(a.Authority, '@')+1:]
}

// LocalPath returns the native file system path of a File Address.
func (a Address) LocalPath() (string, error) {
	if a.Scheme != File {
		return "", NewValidationError("not a local file address (%s)", a)
	}
	var p = a.Path
	// Windows paths are rooted as "/C:/path".
	if filepath.Separator == '\\' && len(p) > 2 && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p), nil
}

// Extension returns the lower-cased extension of the final path element,
// without its leading dot. A "dot-file" with no further dot (eg ".json") has
// no extension, and the empty string is returned.
func (a Address) Extension() string {
	var base = strings.TrimPrefix(path.Base(a.Path), ".")
	if ind := strings.LastIndexByte(base, '.'); ind != -1 {
		return strings.ToLower(base[ind+1:])
	}
	return ""
}

// Join returns a child Address having |name| joined to the Path.
// The Query of the Address is retained.
func (a Address) Join(name string) Address {
	var out = a
	out.Path = path.Join(a.Path, name)

	if a.RawPath != "" {
		out.RawPath = rawPath(out.Path,
			path.Join(a.RawPath, (&url.URL{Path: name}).EscapedPath()))
	}
	return out
}

// rawPath returns |raw| if it's an alternate escaping of |p|, or empty if
// |raw| is the default escaping of |p| or doesn't encode it.
func rawPath(p, raw string) string {
	if raw == "" || raw == (&url.URL{Path: p}).EscapedPath() {
		return ""
	} else if unescaped, err := url.PathUnescape(raw); err != nil || unescaped != p {
		return ""
	}
	return raw
}

// Set of Addresses.
type Set map[Address]struct{}

// NewSet returns a Set of the given Addresses.
func NewSet(addrs ...Address) Set {
	var s = make(Set, len(addrs))
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

// Add an Address to the Set.
func (s Set) Add(a Address) { s[a] = struct{}{} }

// Contains returns true iff the Address is a member of the Set.
func (s Set) Contains(a Address) bool {
	var _, ok = s[a]
	return ok
}

// Sorted returns the Set members ordered on their String forms.
func (s Set) Sorted() []Address {
	var out = make([]Address, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func absolutize(p string) (string, error) {
	if p == "" {
		return "", NewValidationError("expected a path")
	}
	var abs, err = filepath.Abs(p)
	if err != nil {
		return "", &ValidationError{Err: err}
	}
	abs = filepath.ToSlash(abs)
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs // Windows volume, eg "C:/path".
	}
	return abs, nil
}

func cleanAbsolute(p string) string {
	if p == "" {
		return p // Fails Validate.
	}
	return path.Clean(p)
}

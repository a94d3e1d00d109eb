package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/require"
	"go.urlrecord.dev/core/address"
	"go.urlrecord.dev/core/protocols"
	"gopkg.in/yaml.v2"
)

type recorded struct {
	method string
	path   string
	auth   string
	header http.Header
	body   string
}

// recordingServer responds with |status| and the request path as body,
// and records each request.
func recordingServer(t *testing.T, status int) (*httptest.Server, func() []recorded) {
	var mu sync.Mutex
	var reqs []recorded

	var srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body, _ = io.ReadAll(r.Body)

		mu.Lock()
		reqs = append(reqs, recorded{
			method: r.Method,
			path:   r.URL.RequestURI(),
			auth:   r.Header.Get("Authorization"),
			header: r.Header.Clone(),
			body:   string(body),
		})
		mu.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte("content of " + r.URL.Path))
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		var out = reqs
		reqs = nil
		return out
	}
}

func serverAddress(t *testing.T, srv *httptest.Server, path string) address.Address {
	var a, err = address.Parse(srv.URL + path)
	require.NoError(t, err)
	return a
}

func TestDefaultsWithoutHostConfig(t *testing.T) {
	var ctx = context.Background()
	var srv, requests = recordingServer(t, http.StatusOK)

	var h, err = NewWithClient(Config{}, srv.Client())
	require.NoError(t, err)

	content, ok, err := h.Fetch(ctx, serverAddress(t, srv, "/v1/settings.json?env=prod"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "content of /v1/settings.json", content)

	require.NoError(t, h.Push(ctx, serverAddress(t, srv, "/v1/out.toml"), "a = 1"))

	var reqs = requests()
	require.Len(t, reqs, 2)
	require.Equal(t, "GET", reqs[0].method)
	require.Equal(t, "/v1/settings.json?env=prod", reqs[0].path)
	require.Equal(t, "", reqs[0].auth)
	require.Equal(t, "PUT", reqs[1].method)
	require.Equal(t, "a = 1", reqs[1].body)
	require.Equal(t, "", reqs[1].auth)
}

func TestEscapedPathsAreRequestedVerbatim(t *testing.T) {
	var ctx = context.Background()
	var srv, requests = recordingServer(t, http.StatusOK)

	var h, err = NewWithClient(Config{}, srv.Client())
	require.NoError(t, err)

	_, _, err = h.Fetch(ctx, serverAddress(t, srv, "/a%2Fb.json"))
	require.NoError(t, err)
	require.NoError(t, h.Push(ctx, serverAddress(t, srv, "/c%2Fd.json?v=1"), "{}"))

	var reqs = requests()
	require.Len(t, reqs, 2)
	require.Equal(t, "/a%2Fb.json", reqs[0].path)
	require.Equal(t, "/c%2Fd.json?v=1", reqs[1].path)

	// An Address which doesn't form a URL fails without issuing a request.
	_, _, err = h.Fetch(ctx, address.Address{Scheme: address.HTTP, Authority: "a b", Path: "/x.json"})
	require.Error(t, err)
	require.True(t, errors.Is(err, address.ErrResolution))
	require.Empty(t, requests())
}

func TestHostConfigOverrides(t *testing.T) {
	var ctx = context.Background()
	var srv, requests = recordingServer(t, http.StatusOK)
	var u, _ = url.Parse(srv.URL) // Host is "127.0.0.1:port".

	var h, err = NewWithClient(Config{Hosts: map[string]HostConfig{
		u.Host: {
			FetchMethod: MethodPost,
			PushMethod:  MethodPatch,
			User:        "alice",
			Headers:     map[string]string{"X-Api-Version": "2"},
		},
		// Shadowed by the host:port entry.
		u.Hostname(): {Bearer: "unused"},
	}}, srv.Client())
	require.NoError(t, err)

	var addr = serverAddress(t, srv, "/record.json")
	_, _, err = h.Fetch(ctx, addr)
	require.NoError(t, err)
	require.NoError(t, h.Push(ctx, addr, "{}"))

	var reqs = requests()
	require.Len(t, reqs, 2)

	// Fetch uses fetch_method, and push uses push_method.
	require.Equal(t, "POST", reqs[0].method)
	require.Equal(t, "PATCH", reqs[1].method)

	for _, r := range reqs {
		// Basic auth, with an empty password.
		var req = &http.Request{Header: http.Header{"Authorization": {r.auth}}}
		var user, pass, ok = req.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "alice", user)
		require.Equal(t, "", pass)

		require.Equal(t, "2", r.header.Get("X-Api-Version"))
	}
}

func TestHostnameConfigAndHeaderPrecedence(t *testing.T) {
	var ctx = context.Background()
	var srv, requests = recordingServer(t, http.StatusOK)
	var u, _ = url.Parse(srv.URL)

	var h, err = NewWithClient(Config{Hosts: map[string]HostConfig{
		u.Hostname(): {Bearer: "s3cr3t"},
	}}, srv.Client())
	require.NoError(t, err)

	_, _, err = h.Fetch(ctx, serverAddress(t, srv, "/a"))
	require.NoError(t, err)
	require.Equal(t, "Bearer s3cr3t", requests()[0].auth)

	// An explicit Authorization header wins over bearer authorization.
	h, err = NewWithClient(Config{Hosts: map[string]HostConfig{
		u.Hostname(): {
			Bearer:  "s3cr3t",
			Headers: map[string]string{"Authorization": "Token explicit"},
		},
	}}, srv.Client())
	require.NoError(t, err)

	_, _, err = h.Fetch(ctx, serverAddress(t, srv, "/a"))
	require.NoError(t, err)
	require.Equal(t, "Token explicit", requests()[0].auth)
}

func TestNonSuccessStatus(t *testing.T) {
	var ctx = context.Background()

	var srv, _ = recordingServer(t, http.StatusNotFound)
	var h, err = NewWithClient(Config{}, srv.Client())
	require.NoError(t, err)

	_, ok, err := h.Fetch(ctx, serverAddress(t, srv, "/missing.json"))
	require.False(t, ok)
	require.EqualError(t, err, "unexpected HTTP status 404 Not Found")
	require.True(t, errors.Is(err, protocols.ErrNotFound))

	srv, _ = recordingServer(t, http.StatusForbidden)
	h, err = NewWithClient(Config{}, srv.Client())
	require.NoError(t, err)

	err = h.Push(ctx, serverAddress(t, srv, "/x.json"), "{}")
	var statusErr *protocols.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusForbidden, statusErr.Code)
	require.False(t, errors.Is(err, protocols.ErrNotFound))
}

func TestUnsupportedOperations(t *testing.T) {
	var ctx = context.Background()
	var srv, requests = recordingServer(t, http.StatusOK)
	var h, err = NewWithClient(Config{}, srv.Client())
	require.NoError(t, err)
	var addr = serverAddress(t, srv, "/dir")

	require.Equal(t, protocols.ErrUnsupportedOperation, h.Delete(ctx, addr))
	require.Equal(t, protocols.ErrUnsupportedOperation, h.CreateEmpty(ctx, addr))
	require.Equal(t, protocols.ErrUnsupportedOperation, h.CreateContainer(ctx, addr))
	_, err = h.ListContainer(ctx, addr)
	require.Equal(t, protocols.ErrUnsupportedOperation, err)

	require.Empty(t, requests())
}

func TestConfigValidation(t *testing.T) {
	var cases = []struct {
		cfg    Config
		expect string
	}{
		{Config{Hosts: map[string]HostConfig{"h": {Bearer: "b", User: "u"}}},
			"hosts[h]: bearer and basic (user) authorization are mutually exclusive"},
		{Config{Hosts: map[string]HostConfig{"h": {Password: "p"}}},
			"hosts[h]: password requires a user"},
		{Config{Hosts: map[string]HostConfig{"h": {PushMethod: "FETCH"}}},
			`hosts[h]: push_method: invalid HTTP method "FETCH" (expected one of [GET HEAD POST PUT PATCH DELETE])`},
		{Config{Hosts: map[string]HostConfig{"h": {Headers: map[string]string{"Bad Name": "x"}}}},
			`hosts[h]: headers: invalid header name "Bad Name"`},
		{Config{Hosts: map[string]HostConfig{"": {}}}, "hosts: empty host key"},
		{Config{Hosts: map[string]HostConfig{"http://h": {}}}, `hosts: invalid host key "http://h"`},
	}
	for _, tc := range cases {
		require.EqualError(t, tc.cfg.Validate(), tc.expect)
		var _, err = New(tc.cfg)
		require.EqualError(t, err, tc.expect)
	}

	var err = Config{Hosts: map[string]HostConfig{"h": {Bearer: "b", User: "u"}}}.Validate()
	require.True(t, errors.Is(err, ErrConflictingAuth))

	require.NoError(t, Config{Hosts: map[string]HostConfig{
		"example.com:8443": {User: "u", Password: "p", FetchMethod: MethodHead},
		"example.com":      {Bearer: "b"},
	}}.Validate())
}

func TestConfigDecoding(t *testing.T) {
	var expect = Config{Hosts: map[string]HostConfig{
		"example.com": {
			Headers:     map[string]string{"X-Key": "v"},
			PushMethod:  MethodPost,
			FetchMethod: MethodGet,
			User:        "alice",
			Password:    "pw",
		},
	}}

	var jsonDoc = `{"hosts": {"example.com": {
		"headers": {"X-Key": "v"}, "push_method": "Post", "fetch_method": "get",
		"user": "alice", "password": "pw"}}}`
	var tomlDoc = `
[hosts."example.com"]
push_method = "post"
fetch_method = "Get"
user = "alice"
password = "pw"

[hosts."example.com".headers]
X-Key = "v"
`
	var yamlDoc = `
hosts:
  example.com:
    headers: {X-Key: v}
    push_method: POST
    fetch_method: GET
    user: alice
    password: pw
`
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(jsonDoc), &cfg))
	require.Equal(t, expect, cfg)

	cfg = Config{}
	require.NoError(t, toml.Unmarshal([]byte(tomlDoc), &cfg))
	require.Equal(t, expect, cfg)

	cfg = Config{}
	require.NoError(t, yaml.UnmarshalStrict([]byte(yamlDoc), &cfg))
	require.Equal(t, expect, cfg)

	// Invalid methods fail to decode.
	require.Error(t, json.Unmarshal([]byte(`{"hosts": {"h": {"push_method": "FETCH"}}}`), &cfg))

	// Methods encode canonically.
	var b, err = json.Marshal(HostConfig{PushMethod: MethodPatch})
	require.NoError(t, err)
	require.Equal(t, `{"push_method":"PATCH"}`, string(b))
}

// Package web implements the http:// and https:// protocol Handler, with
// per-host overrides of request methods, authorization and headers.
package web

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.urlrecord.dev/core/address"
	"go.urlrecord.dev/core/protocols"
	"golang.org/x/oauth2"
)

// Handler of http:// and https:// Addresses. Only Fetch and Push are
// supported: there are no portable container semantics over HTTP.
type Handler struct {
	protocols.Unsupported
	cfg    Config
	client *http.Client
}

var _ protocols.Handler = (*Handler)(nil)

// New returns a Handler of the Config using http.DefaultClient.
func New(cfg Config) (*Handler, error) {
	return NewWithClient(cfg, http.DefaultClient)
}

// NewWithClient returns a Handler of the Config using the given http.Client.
func NewWithClient(cfg Config, client *http.Client) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Handler{cfg: cfg, client: client}, nil
}

// Fetch issues a GET, or the host's FetchMethod, and returns the response body.
func (h *Handler) Fetch(ctx context.Context, addr address.Address) (string, bool, error) {
	var req, err = h.newRequest(ctx, addr, MethodGet, nil)
	if err != nil {
		return "", false, err
	}
	body, err := h.do(req)
	if err != nil {
		return "", false, err
	}
	return string(body), true, nil
}

// Push issues a PUT, or the host's PushMethod, with the content as body.
func (h *Handler) Push(ctx context.Context, addr address.Address, content string) error {
	var req, err = h.newRequest(ctx, addr, MethodPut, strings.NewReader(content))
	if err != nil {
		return err
	}
	_, err = h.do(req)
	return err
}

func (h *Handler) newRequest(ctx context.Context, addr address.Address, method Method, body io.Reader) (*http.Request, error) {
	var hc, ok = h.cfg.lookup(addr)

	if ok && method == MethodGet && hc.FetchMethod != "" {
		method = hc.FetchMethod
	} else if ok && method == MethodPut && hc.PushMethod != "" {
		method = hc.PushMethod
	}

	var u, err = addr.URL()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, string(method), u.String(), body)
	if err != nil {
		return nil, errors.WithMessage(err, "building request")
	}
	if !ok {
		return req, nil
	}

	if hc.User != "" {
		req.SetBasicAuth(hc.User, hc.Password)
	}
	if hc.Bearer != "" {
		(&oauth2.Token{AccessToken: hc.Bearer}).SetAuthHeader(req)
	}
	// Headers are applied last, and win over authorization.
	for name, value := range hc.Headers {
		req.Header.Set(name, value)
	}
	return req, nil
}

func (h *Handler) do(req *http.Request) ([]byte, error) {
	var resp, err = h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	log.WithFields(log.Fields{
		"method": req.Method,
		"url":    req.URL.Redacted(),
		"status": resp.StatusCode,
	}).Debug("HTTP request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &protocols.StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithMessage(err, "reading response body")
	}
	return body, nil
}

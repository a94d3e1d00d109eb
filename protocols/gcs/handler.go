// Package gcs implements the gs:// protocol Handler over Google Cloud Storage.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	log "github.com/sirupsen/logrus"
	"go.urlrecord.dev/core/address"
	"go.urlrecord.dev/core/protocols"
	"go.urlrecord.dev/core/protocols/objects"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// QueryArgs are parsed from the query arguments of a gs:// Address.
// No arguments are currently defined.
type QueryArgs struct{}

// Handler of gs://bucket/key Addresses. CreateContainer is not supported, as
// prefixes exist implicitly.
type Handler struct {
	protocols.Unsupported
	clients   *objects.Cache
	newClient func(context.Context) (*storage.Client, error)
}

var _ protocols.Handler = (*Handler)(nil)

// New returns a Handler which builds a client from default credentials
// upon first use.
func New() *Handler {
	return &Handler{clients: objects.NewCache(1), newClient: newClient}
}

// NewWithClient returns a Handler of the given client.
func NewWithClient(client *storage.Client) *Handler {
	return &Handler{
		clients:   objects.NewCache(1),
		newClient: func(context.Context) (*storage.Client, error) { return client, nil },
	}
}

// Fetch the object of the Address.
func (h *Handler) Fetch(ctx context.Context, addr address.Address) (string, bool, error) {
	var obj, err = h.object(ctx, addr)
	if err != nil {
		return "", false, err
	}
	r, err := obj.NewReader(ctx)
	if err != nil {
		return "", false, classify(err)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// Push the content as the object of the Address.
func (h *Handler) Push(ctx context.Context, addr address.Address, content string) error {
	var obj, err = h.object(ctx, addr)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wc = obj.NewWriter(ctx)
	if _, err = io.Copy(wc, strings.NewReader(content)); err != nil {
		return classify(err)
	}
	return classify(wc.Close())
}

// Delete the object of the Address, which must exist.
func (h *Handler) Delete(ctx context.Context, addr address.Address) error {
	var obj, err = h.object(ctx, addr)
	if err != nil {
		return err
	}
	return classify(obj.Delete(ctx))
}

// CreateEmpty pushes an empty object.
func (h *Handler) CreateEmpty(ctx context.Context, addr address.Address) error {
	return h.Push(ctx, addr, "")
}

// ListContainer returns objects and prefixes immediately under the
// Address' prefix.
func (h *Handler) ListContainer(ctx context.Context, addr address.Address) (address.Set, error) {
	var client, err = h.client(ctx, addr)
	if err != nil {
		return nil, err
	}
	var (
		q = storage.Query{
			Prefix:    objects.Prefix(addr),
			Delimiter: "/",
		}
		it       = client.Bucket(addr.Authority).Objects(ctx, &q)
		obj      *storage.ObjectAttrs
		keys     []string
		prefixes []string
	)
	for obj, err = it.Next(); err == nil; obj, err = it.Next() {
		if obj.Prefix != "" {
			prefixes = append(prefixes, obj.Prefix)
		} else {
			keys = append(keys, obj.Name)
		}
	}
	if err != iterator.Done {
		return nil, classify(err)
	}
	return objects.Children(addr, keys, prefixes), nil
}

func (h *Handler) object(ctx context.Context, addr address.Address) (*storage.ObjectHandle, error) {
	var client, err = h.client(ctx, addr)
	if err != nil {
		return nil, err
	}
	return client.Bucket(addr.Authority).Object(objects.Key(addr)), nil
}

func (h *Handler) client(ctx context.Context, addr address.Address) (*storage.Client, error) {
	var args QueryArgs
	if err := objects.ParseQueryArgs(addr, &args); err != nil {
		return nil, err
	}
	var c, err = h.clients.Get("", func() (interface{}, error) { return h.newClient(ctx) })
	if err != nil {
		return nil, err
	}
	return c.(*storage.Client), nil
}

// to help identify when JSON credentials are an external account used by workload identity
type credentialsFile struct {
	Type string `json:"type"`
}

func newClient(_ context.Context) (*storage.Client, error) {
	// Clients outlive the context of the operation which built them.
	var ctx = context.Background()

	creds, err := google.FindDefaultCredentials(ctx, storage.ScopeFullControl)
	if err != nil {
		return nil, err
	}
	// best effort to determine if JWT credentials are for external account
	var externalAccount = false
	if creds.JSON != nil {
		var f credentialsFile
		if err := json.Unmarshal(creds.JSON, &f); err == nil {
			externalAccount = f.Type == "external_account"
		}
	}

	if creds.JSON != nil && !externalAccount {
		conf, err := google.JWTConfigFromJSON(creds.JSON, storage.ScopeFullControl)
		if err != nil {
			return nil, err
		}
		client, err := storage.NewClient(ctx, option.WithTokenSource(conf.TokenSource(ctx)))
		if err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"ProjectID":      creds.ProjectID,
			"GoogleAccessID": conf.Email,
			"PrivateKeyID":   conf.PrivateKeyID,
			"Scopes":         conf.Scopes,
		}).Info("constructed new GCS client")

		return client, nil
	}

	// Possible to use GCS without a service account (e.g. with a GCE instance and workload identity).
	client, err := storage.NewClient(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"ProjectID": creds.ProjectID,
	}).Info("constructed new GCS client without JWT")

	return client, nil
}

// classify maps GCS errors onto protocols.ErrNotFound and
// protocols.ErrAccessDenied.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %w", protocols.ErrNotFound, err)
	} else if errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %w", protocols.ErrAccessDenied, err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %w", protocols.ErrAccessDenied, err)
		case http.StatusNotFound:
			// Bucket-level 404s are authorization failures, not missing objects.
			if strings.Contains(gErr.Message, "bucket") {
				return fmt.Errorf("%w: %w", protocols.ErrAccessDenied, err)
			}
			return fmt.Errorf("%w: %w", protocols.ErrNotFound, err)
		}
	}
	return err
}

// Package azure implements the azure:// protocol Handler over Azure Blob
// Storage. The storage account and its credentials are taken from the
// environment:
//
//   - AZURE_ACCOUNT_NAME names the storage account (required).
//   - AZURE_ACCOUNT_KEY selects Shared Key authorization, or
//   - AZURE_TENANT_ID, AZURE_CLIENT_ID and AZURE_CLIENT_SECRET select
//     Azure AD authorization of a service principal.
//   - AZURE_BLOB_DOMAIN overrides the blob domain (default blob.core.windows.net).
package azure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	log "github.com/sirupsen/logrus"
	"go.urlrecord.dev/core/address"
	"go.urlrecord.dev/core/protocols"
	"go.urlrecord.dev/core/protocols/objects"
)

// QueryArgs are parsed from the query arguments of an azure:// Address.
// No arguments are currently defined.
type QueryArgs struct{}

// Blobs is the subset of blob service operations used by Handler.
type Blobs interface {
	Download(ctx context.Context, container, blob string) (io.ReadCloser, error)
	Upload(ctx context.Context, container, blob string, content []byte) error
	Delete(ctx context.Context, container, blob string) error
	// List returns blob names and virtual directory prefixes of the
	// container which are immediately under |prefix|.
	List(ctx context.Context, container, prefix string) (names, prefixes []string, err error)
}

// Handler of azure://container/blob Addresses. CreateContainer is not
// supported, as virtual directories exist implicitly.
type Handler struct {
	protocols.Unsupported
	clients  *objects.Cache
	newBlobs func() (Blobs, error)
}

var _ protocols.Handler = (*Handler)(nil)

// New returns a Handler which builds a client from the environment upon
// first use.
func New() *Handler {
	return &Handler{clients: objects.NewCache(1), newBlobs: newBlobsFromEnv}
}

// NewWithBlobs returns a Handler of the given Blobs.
func NewWithBlobs(b Blobs) *Handler {
	return &Handler{
		clients:  objects.NewCache(1),
		newBlobs: func() (Blobs, error) { return b, nil },
	}
}

// Fetch the blob of the Address.
func (h *Handler) Fetch(ctx context.Context, addr address.Address) (string, bool, error) {
	var blobs, err = h.blobs(addr)
	if err != nil {
		return "", false, err
	}
	rc, err := blobs.Download(ctx, addr.Authority, objects.Key(addr))
	if err != nil {
		return "", false, classify(err)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// Push the content as the blob of the Address.
func (h *Handler) Push(ctx context.Context, addr address.Address, content string) error {
	var blobs, err = h.blobs(addr)
	if err != nil {
		return err
	}
	return classify(blobs.Upload(ctx, addr.Authority, objects.Key(addr), []byte(content)))
}

// Delete the blob of the Address, which must exist.
func (h *Handler) Delete(ctx context.Context, addr address.Address) error {
	var blobs, err = h.blobs(addr)
	if err != nil {
		return err
	}
	return classify(blobs.Delete(ctx, addr.Authority, objects.Key(addr)))
}

// CreateEmpty pushes an empty blob.
func (h *Handler) CreateEmpty(ctx context.Context, addr address.Address) error {
	return h.Push(ctx, addr, "")
}

// ListContainer returns blobs and virtual directories immediately under the
// Address' prefix.
func (h *Handler) ListContainer(ctx context.Context, addr address.Address) (address.Set, error) {
	var blobs, err = h.blobs(addr)
	if err != nil {
		return nil, err
	}
	names, prefixes, err := blobs.List(ctx, addr.Authority, objects.Prefix(addr))
	if err != nil {
		return nil, classify(err)
	}
	return objects.Children(addr, names, prefixes), nil
}

func (h *Handler) blobs(addr address.Address) (Blobs, error) {
	var args QueryArgs
	if err := objects.ParseQueryArgs(addr, &args); err != nil {
		return nil, err
	}
	var b, err = h.clients.Get("", func() (interface{}, error) { return h.newBlobs() })
	if err != nil {
		return nil, err
	}
	return b.(Blobs), nil
}

func newBlobsFromEnv() (Blobs, error) {
	var storageAccount = os.Getenv("AZURE_ACCOUNT_NAME")
	if storageAccount == "" {
		return nil, fmt.Errorf("AZURE_ACCOUNT_NAME must be set for azure:// addresses")
	}
	var blobDomain = os.Getenv("AZURE_BLOB_DOMAIN")
	if blobDomain == "" {
		blobDomain = "blob.core.windows.net"
	}
	var serviceURL = fmt.Sprintf("https://%s.%s/", storageAccount, blobDomain)

	var client *azblob.Client
	var err error

	if accountKey := os.Getenv("AZURE_ACCOUNT_KEY"); accountKey != "" {
		var cred *azblob.SharedKeyCredential
		if cred, err = azblob.NewSharedKeyCredential(storageAccount, accountKey); err != nil {
			return nil, err
		} else if client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil); err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"storageAccount": storageAccount,
			"blobDomain":     blobDomain,
		}).Info("constructed new Azure Shared Key storage client")
	} else {
		var tenantID = os.Getenv("AZURE_TENANT_ID")
		var clientID = os.Getenv("AZURE_CLIENT_ID")
		var clientSecret = os.Getenv("AZURE_CLIENT_SECRET")

		if tenantID == "" || clientID == "" || clientSecret == "" {
			return nil, fmt.Errorf("either AZURE_ACCOUNT_KEY, or AZURE_TENANT_ID, AZURE_CLIENT_ID and AZURE_CLIENT_SECRET must be set for azure:// addresses")
		}
		var cred azcore.TokenCredential
		if cred, err = azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret,
			&azidentity.ClientSecretCredentialOptions{DisableInstanceDiscovery: true}); err != nil {
			return nil, err
		} else if client, err = azblob.NewClient(serviceURL, cred, nil); err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"storageAccount": storageAccount,
			"blobDomain":     blobDomain,
			"tenantID":       tenantID,
			"clientID":       clientID,
		}).Info("constructed new Azure AD storage client")
	}
	return sdkBlobs{client: client}, nil
}

// sdkBlobs implements Blobs with an azblob.Client.
type sdkBlobs struct {
	client *azblob.Client
}

func (s sdkBlobs) Download(ctx context.Context, container, blob string) (io.ReadCloser, error) {
	var resp, err = s.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (s sdkBlobs) Upload(ctx context.Context, container, blob string, content []byte) error {
	var _, err = s.client.UploadStream(ctx, container, blob, bytes.NewReader(content), nil)
	return err
}

func (s sdkBlobs) Delete(ctx context.Context, container, blob string) error {
	var _, err = s.client.DeleteBlob(ctx, container, blob, nil)
	return err
}

func (s sdkBlobs) List(ctx context.Context, containerName, prefix string) (names, prefixes []string, err error) {
	var pager = s.client.ServiceClient().NewContainerClient(containerName).
		NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{Prefix: to.Ptr(prefix)})

	for pager.More() {
		var page, err = pager.NextPage(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, item := range page.Segment.BlobItems {
			names = append(names, *item.Name)
		}
		for _, p := range page.Segment.BlobPrefixes {
			prefixes = append(prefixes, *p.Name)
		}
	}
	return names, prefixes, nil
}

// classify maps blob service errors onto protocols.ErrNotFound and
// protocols.ErrAccessDenied.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("%w: %w", protocols.ErrNotFound, err)
	} else if bloberror.HasCode(err,
		bloberror.ContainerNotFound,
		bloberror.ContainerDisabled,
		bloberror.AccountIsDisabled,
		bloberror.AuthorizationFailure,
		bloberror.AuthorizationPermissionMismatch,
	) {
		return fmt.Errorf("%w: %w", protocols.ErrAccessDenied, err)
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", protocols.ErrAccessDenied, err)
	}
	return err
}

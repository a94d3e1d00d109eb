package azure

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/stretchr/testify/require"
	"go.urlrecord.dev/core/address"
	"go.urlrecord.dev/core/protocols"
)

func responseError(code bloberror.Code, status int) error {
	return &azcore.ResponseError{ErrorCode: string(code), StatusCode: status}
}

// memoryBlobs is an in-memory Blobs of "container/blob" => content.
type memoryBlobs map[string]string

func (m memoryBlobs) Download(_ context.Context, container, blob string) (io.ReadCloser, error) {
	if content, ok := m[container+"/"+blob]; ok {
		return io.NopCloser(strings.NewReader(content)), nil
	}
	return nil, responseError(bloberror.BlobNotFound, http.StatusNotFound)
}

func (m memoryBlobs) Upload(_ context.Context, container, blob string, content []byte) error {
	m[container+"/"+blob] = string(content)
	return nil
}

func (m memoryBlobs) Delete(_ context.Context, container, blob string) error {
	if _, ok := m[container+"/"+blob]; !ok {
		return responseError(bloberror.BlobNotFound, http.StatusNotFound)
	}
	delete(m, container+"/"+blob)
	return nil
}

func (m memoryBlobs) List(_ context.Context, container, prefix string) (names, prefixes []string, err error) {
	var seen = make(map[string]bool)
	for k := range m {
		var c, blob, _ = strings.Cut(k, "/")
		if c != container || !strings.HasPrefix(blob, prefix) {
			continue
		}
		if ind := strings.IndexByte(blob[len(prefix):], '/'); ind != -1 {
			var p = blob[:len(prefix)+ind+1]
			if !seen[p] {
				seen[p] = true
				prefixes = append(prefixes, p)
			}
		} else {
			names = append(names, blob)
		}
	}
	sort.Strings(names)
	return names, prefixes, nil
}

func TestHandlerOperations(t *testing.T) {
	var ctx = context.Background()
	var blobs = memoryBlobs{
		"records/app/settings.toml":  "a = 1",
		"records/app/env/prod.json":  "{}",
		"records/other/ignored.yaml": "x: 1",
	}
	var h = NewWithBlobs(blobs)

	content, ok, err := h.Fetch(ctx, address.MustParse("azure://records/app/settings.toml"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a = 1", content)

	_, _, err = h.Fetch(ctx, address.MustParse("azure://records/app/missing.toml"))
	require.True(t, errors.Is(err, protocols.ErrNotFound))

	require.NoError(t, h.Push(ctx, address.MustParse("azure://records/app/new.json"), `{"b":2}`))
	require.Equal(t, `{"b":2}`, blobs["records/app/new.json"])
	require.NoError(t, h.CreateEmpty(ctx, address.MustParse("azure://records/app/empty.json")))
	require.Equal(t, "", blobs["records/app/empty.json"])

	children, err := h.ListContainer(ctx, address.MustParse("azure://records/app/"))
	require.NoError(t, err)
	require.Equal(t, address.NewSet(
		address.MustParse("azure://records/app/settings.toml"),
		address.MustParse("azure://records/app/new.json"),
		address.MustParse("azure://records/app/empty.json"),
		address.MustParse("azure://records/app/env"),
	), children)

	require.NoError(t, h.Delete(ctx, address.MustParse("azure://records/app/new.json")))
	err = h.Delete(ctx, address.MustParse("azure://records/app/new.json"))
	require.True(t, errors.Is(err, protocols.ErrNotFound))

	require.Equal(t, protocols.ErrUnsupportedOperation,
		h.CreateContainer(ctx, address.MustParse("azure://records/app/dir")))

	_, _, err = h.Fetch(ctx, address.MustParse("azure://records/app/settings.toml?sas=1"))
	require.Contains(t, err.Error(), "parsing address arguments")
}

func TestClientFromEnvironment(t *testing.T) {
	t.Setenv("AZURE_ACCOUNT_NAME", "")
	var _, err = newBlobsFromEnv()
	require.EqualError(t, err, "AZURE_ACCOUNT_NAME must be set for azure:// addresses")

	t.Setenv("AZURE_ACCOUNT_NAME", "account")
	t.Setenv("AZURE_ACCOUNT_KEY", "")
	t.Setenv("AZURE_TENANT_ID", "")
	_, err = newBlobsFromEnv()
	require.Error(t, err)
	require.Contains(t, err.Error(), "AZURE_ACCOUNT_KEY")

	// Shared Key clients are constructed without network access.
	t.Setenv("AZURE_ACCOUNT_KEY", "c2VjcmV0LWtleQ==")
	b, err := newBlobsFromEnv()
	require.NoError(t, err)
	require.IsType(t, sdkBlobs{}, b)
}

func TestClassify(t *testing.T) {
	var tests = []struct {
		name     string
		err      error
		notFound bool
		denied   bool
	}{
		{"BlobNotFound is not found", responseError(bloberror.BlobNotFound, http.StatusNotFound), true, false},
		{"ContainerNotFound is access denied", responseError(bloberror.ContainerNotFound, http.StatusNotFound), false, true},
		{"ContainerDisabled is access denied", responseError(bloberror.ContainerDisabled, http.StatusForbidden), false, true},
		{"AccountIsDisabled is access denied", responseError(bloberror.AccountIsDisabled, http.StatusForbidden), false, true},
		{"other 403 is access denied", responseError("OtherError", http.StatusForbidden), false, true},
		{"401 is neither", responseError("InvalidCredentials", http.StatusUnauthorized), false, false},
		{"generic error is neither", errors.New("timeout"), false, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var err = classify(test.err)
			require.Equal(t, test.notFound, errors.Is(err, protocols.ErrNotFound))
			require.Equal(t, test.denied, errors.Is(err, protocols.ErrAccessDenied))
		})
	}
	require.NoError(t, classify(nil))
}

// Package s3 implements the s3:// protocol Handler over Amazon S3 and
// S3-compatible object stores.
package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	log "github.com/sirupsen/logrus"
	"go.urlrecord.dev/core/address"
	"go.urlrecord.dev/core/protocols"
	"go.urlrecord.dev/core/protocols/objects"
)

// QueryArgs are parsed from the query arguments of an s3:// Address.
type QueryArgs struct {
	// AWS Profile to extract credentials from the shared credentials file.
	// If empty, the default credentials are used.
	Profile string
	// Endpoint to connect to S3. If empty, the default S3 service is used.
	Endpoint string
	// Region of the bucket. If empty, the region is determined from
	// `Profile` or the default credentials.
	Region string
	// ACL applied when pushing records. By default, the bucket's default
	// ACL applies.
	ACL string
	// Storage class applied when pushing records.
	StorageClass string
	// SSE is the server-side encryption type to be applied (eg, "AES256").
	SSE string
	// SSEKMSKeyId specifies the ID for the AWS KMS symmetric customer managed key.
	SSEKMSKeyId string
}

// Handler of s3://bucket/key Addresses. CreateContainer is not supported, as
// prefixes exist implicitly.
type Handler struct {
	protocols.Unsupported
	clients   *objects.Cache
	newClient func(QueryArgs) (s3iface.S3API, error)
}

var _ protocols.Handler = (*Handler)(nil)

// New returns a Handler which builds S3 clients from query arguments.
func New() *Handler {
	return &Handler{clients: objects.NewCache(16), newClient: newClient}
}

// NewWithClient returns a Handler which uses |client| for all Addresses.
func NewWithClient(client s3iface.S3API) *Handler {
	return &Handler{
		clients:   objects.NewCache(1),
		newClient: func(QueryArgs) (s3iface.S3API, error) { return client, nil },
	}
}

// Fetch the object of the Address.
func (h *Handler) Fetch(ctx context.Context, addr address.Address) (string, bool, error) {
	var client, _, err = h.client(addr)
	if err != nil {
		return "", false, err
	}
	resp, err := client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(addr.Authority),
		Key:    aws.String(objects.Key(addr)),
	})
	if err != nil {
		return "", false, classify(err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// Push the content as the object of the Address.
func (h *Handler) Push(ctx context.Context, addr address.Address, content string) error {
	var client, args, err = h.client(addr)
	if err != nil {
		return err
	}
	var putObj = s3.PutObjectInput{
		Bucket: aws.String(addr.Authority),
		Key:    aws.String(objects.Key(addr)),
		Body:   strings.NewReader(content),
	}
	if args.ACL != "" {
		putObj.ACL = aws.String(args.ACL)
	}
	if args.StorageClass != "" {
		putObj.StorageClass = aws.String(args.StorageClass)
	}
	if args.SSE != "" {
		putObj.ServerSideEncryption = aws.String(args.SSE)
	}
	if args.SSEKMSKeyId != "" {
		putObj.SSEKMSKeyId = aws.String(args.SSEKMSKeyId)
	}

	_, err = client.PutObjectWithContext(ctx, &putObj)
	return classify(err)
}

// Delete the object of the Address, which must exist.
func (h *Handler) Delete(ctx context.Context, addr address.Address) error {
	var client, _, err = h.client(addr)
	if err != nil {
		return err
	}
	// S3 deletes are idempotent, so test for existence first.
	if _, err = client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(addr.Authority),
		Key:    aws.String(objects.Key(addr)),
	}); err != nil {
		return classify(err)
	}
	_, err = client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(addr.Authority),
		Key:    aws.String(objects.Key(addr)),
	})
	return classify(err)
}

// CreateEmpty pushes an empty object.
func (h *Handler) CreateEmpty(ctx context.Context, addr address.Address) error {
	return h.Push(ctx, addr, "")
}

// ListContainer returns objects and common prefixes immediately under the
// Address' prefix.
func (h *Handler) ListContainer(ctx context.Context, addr address.Address) (address.Set, error) {
	var client, _, err = h.client(addr)
	if err != nil {
		return nil, err
	}
	var q = s3.ListObjectsV2Input{
		Bucket:    aws.String(addr.Authority),
		Prefix:    aws.String(objects.Prefix(addr)),
		Delimiter: aws.String("/"),
	}
	var keys, prefixes []string

	err = client.ListObjectsV2PagesWithContext(ctx, &q, func(objs *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range objs.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		for _, p := range objs.CommonPrefixes {
			prefixes = append(prefixes, aws.StringValue(p.Prefix))
		}
		return true // Continue to next page.
	})
	if err != nil {
		return nil, classify(err)
	}
	return objects.Children(addr, keys, prefixes), nil
}

func (h *Handler) client(addr address.Address) (s3iface.S3API, QueryArgs, error) {
	var args QueryArgs
	if err := objects.ParseQueryArgs(addr, &args); err != nil {
		return nil, args, err
	}
	var c, err = h.clients.Get(fmt.Sprintf("%#v", args), func() (interface{}, error) {
		return h.newClient(args)
	})
	if err != nil {
		return nil, args, err
	}
	return c.(s3iface.S3API), args, nil
}

func newClient(args QueryArgs) (s3iface.S3API, error) {
	var awsConfig = aws.NewConfig()
	awsConfig.WithCredentialsChainVerboseErrors(true)

	if args.Region != "" {
		awsConfig.WithRegion(args.Region)
	}
	if args.Endpoint != "" {
		awsConfig.WithEndpoint(args.Endpoint)
		// We must force path style because bucket-named virtual hosts
		// are not compatible with explicit endpoints.
		awsConfig.WithS3ForcePathStyle(true)
	}

	awsSession, err := session.NewSessionWithOptions(session.Options{
		Profile: args.Profile,
	})
	if err != nil {
		return nil, fmt.Errorf("constructing S3 session: %s", err)
	}

	creds, err := awsSession.Config.Credentials.Get()
	if err != nil {
		return nil, fmt.Errorf("fetching AWS credentials for profile %q: %s", args.Profile, err)
	}

	var region = aws.StringValue(awsConfig.Region)
	if region == "" {
		region = aws.StringValue(awsSession.Config.Region)
	}
	// The aws sdk will always just return an error if this Region is not set,
	// even if the Endpoint was provided explicitly. Fail fast in this case.
	if region == "" {
		return nil, fmt.Errorf("missing AWS region configuration for profile %q", args.Profile)
	}

	log.WithFields(log.Fields{
		"endpoint":     args.Endpoint,
		"profile":      args.Profile,
		"region":       region,
		"keyID":        creds.AccessKeyID,
		"providerName": creds.ProviderName,
	}).Info("constructed new aws.Session")

	return s3.New(awsSession, awsConfig), nil
}

// classify maps S3 errors onto protocols.ErrNotFound and
// protocols.ErrAccessDenied.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if awsErr, ok := err.(awserr.Error); ok {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return fmt.Errorf("%w: %w", protocols.ErrNotFound, err)
		case s3.ErrCodeNoSuchBucket, s3ErrCodeAccessDenied:
			return fmt.Errorf("%w: %w", protocols.ErrAccessDenied, err)
		}
	}
	if awsErr, ok := err.(awserr.RequestFailure); ok {
		switch awsErr.StatusCode() {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", protocols.ErrNotFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %w", protocols.ErrAccessDenied, err)
		}
	}
	return err
}

const (
	// AWS S3 error codes not defined as constants in the SDK
	s3ErrCodeAccessDenied = "AccessDenied"
)

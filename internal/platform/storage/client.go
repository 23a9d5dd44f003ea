package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

const (
	defaultUploadExpiry = 15 * time.Minute
	maxUploadExpiry     = 7 * 24 * time.Hour
	httpMethodPut       = "PUT"
)

var (
	errNoSigner           = errors.New("storage: signer is required")
	errInvalidBucket      = errors.New("storage: bucket name is required")
	errInvalidObject      = errors.New("storage: object name is required")
	errContentTypeMissing = errors.New("storage: content type is required for uploads")
	errExpiryTooLong      = errors.New("storage: expiry exceeds permitted maximum")

	// ErrContentTypeDenied is returned when the upload content type is not on the allow list.
	ErrContentTypeDenied = errors.New("storage: content type not allowed")
)

type signFunc func(ctx context.Context, bucket, object string, opts *gcs.SignedURLOptions) (string, error)

// Client issues V4 signed upload URLs.
type Client struct {
	email string
	sign  signFunc
	now   func() time.Time
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithClock injects a custom clock.
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewClient signs URLs locally with the supplied key-backed signer.
func NewClient(signer Signer, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}
	client := &Client{
		email: signer.Email(),
		sign: func(ctx context.Context, bucket, object string, opts *gcs.SignedURLOptions) (string, error) {
			opts.SignBytes = func(payload []byte) ([]byte, error) {
				return signer.SignBytes(ctx, payload)
			}
			return gcs.SignedURL(bucket, object, opts)
		},
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NewIAMClient signs URLs through the IAM Credentials API as signerEmail, using the Cloud
// Storage client's ambient credentials. Suited to Cloud Run where no key file exists.
func NewIAMClient(storageClient *gcs.Client, signerEmail string, opts ...ClientOption) (*Client, error) {
	if storageClient == nil {
		return nil, errors.New("storage: client is required")
	}
	signerEmail = strings.TrimSpace(signerEmail)
	if signerEmail == "" {
		return nil, errNoSigner
	}
	client := &Client{
		email: signerEmail,
		sign: func(_ context.Context, bucket, object string, opts *gcs.SignedURLOptions) (string, error) {
			return storageClient.Bucket(bucket).SignedURL(object, opts)
		},
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// UploadOptions control upload validation.
type UploadOptions struct {
	ContentType         string
	AllowedContentTypes []string
	MaxSize             int64
	ExpiresIn           time.Duration
}

// SignedUpload describes a generated upload URL and the headers the client must send.
type SignedUpload struct {
	URL       string
	Method    string
	ExpiresAt time.Time
	Headers   map[string]string
}

// SignedUploadURL returns a PUT URL for bucket/object.
func (c *Client) SignedUploadURL(ctx context.Context, bucket, object string, opts UploadOptions) (SignedUpload, error) {
	if c == nil || c.sign == nil {
		return SignedUpload{}, errNoSigner
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return SignedUpload{}, errInvalidBucket
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return SignedUpload{}, errInvalidObject
	}

	contentType := strings.ToLower(strings.TrimSpace(opts.ContentType))
	if contentType == "" {
		return SignedUpload{}, errContentTypeMissing
	}
	if len(opts.AllowedContentTypes) > 0 && !contentTypeAllowed(contentType, opts.AllowedContentTypes) {
		return SignedUpload{}, ErrContentTypeDenied
	}

	expiry := opts.ExpiresIn
	if expiry <= 0 {
		expiry = defaultUploadExpiry
	}
	if expiry > maxUploadExpiry {
		return SignedUpload{}, errExpiryTooLong
	}

	headers := map[string]string{"Content-Type": contentType}
	var extHeaders []string
	if opts.MaxSize > 0 {
		sizeHeader := fmt.Sprintf("0,%d", opts.MaxSize)
		extHeaders = append(extHeaders, "x-goog-content-length-range:"+sizeHeader)
		headers["x-goog-content-length-range"] = sizeHeader
	}

	expiresAt := c.now().Add(expiry)
	urlOpts := &gcs.SignedURLOptions{
		GoogleAccessID: c.email,
		Scheme:         gcs.SigningSchemeV4,
		Method:         httpMethodPut,
		ContentType:    contentType,
		Headers:        extHeaders,
		Expires:        expiresAt,
	}
	signed, err := c.sign(ctx, bucket, object, urlOpts)
	if err != nil {
		return SignedUpload{}, fmt.Errorf("storage: sign upload url: %w", err)
	}
	return SignedUpload{
		URL:       signed,
		Method:    httpMethodPut,
		ExpiresAt: expiresAt,
		Headers:   headers,
	}, nil
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if candidate == "*" || candidate == contentType {
			return true
		}
		if strings.HasSuffix(candidate, "/*") && strings.HasPrefix(contentType, strings.TrimSuffix(candidate, "*")) {
			return true
		}
	}
	return false
}

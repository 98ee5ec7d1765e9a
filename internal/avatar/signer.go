// Package avatar provides signing of stored avatar references into
// time-limited URLs for direct client fetches from R2.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Signer maps a stored avatar reference to a URL a client can fetch.
// Sign is idempotent: a reference that is already a URL passes through.
type Signer interface {
	Sign(ctx context.Context, ref string) (string, error)
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(ctx context.Context, ref string) (string, error)

// Sign calls f.
func (f SignerFunc) Sign(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// Passthrough returns references unchanged. Used when no object storage is
// configured and avatars are plain public URLs.
type Passthrough struct{}

// Sign returns ref unchanged.
func (Passthrough) Sign(_ context.Context, ref string) (string, error) {
	return ref, nil
}

// Config holds configuration for the R2-backed signer.
type Config struct {
	BucketName       string
	AccessKeyID      string
	SecretAccessKey  string
	Endpoint         string
	URLExpiryMinutes int // Default: 15 minutes
}

// S3Signer signs avatar object keys into pre-signed GET URLs against an
// S3-compatible store (R2 in production).
type S3Signer struct {
	presignClient *s3.PresignClient
	bucketName    string
	urlExpiry     time.Duration
}

// NewS3Signer creates a signer with the given configuration.
func NewS3Signer(cfg Config) (*S3Signer, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.URLExpiryMinutes <= 0 {
		cfg.URLExpiryMinutes = 15
	}

	s3Client := s3.New(s3.Options{
		Region: "auto", // R2 uses auto region
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // No session token for R2
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true, // R2 requires path-style addressing
	})

	return &S3Signer{
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    cfg.BucketName,
		urlExpiry:     time.Duration(cfg.URLExpiryMinutes) * time.Minute,
	}, nil
}

// Sign presigns a GET for the avatar object key. References that are already
// absolute URLs (legacy rows, external avatars) pass through unchanged.
func (s *S3Signer) Sign(ctx context.Context, ref string) (string, error) {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(ref),
	}, s3.WithPresignExpires(s.urlExpiry))
	if err != nil {
		return "", fmt.Errorf("presign avatar %q: %w", ref, err)
	}
	return req.URL, nil
}

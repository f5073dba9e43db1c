// Package imageref turns client-supplied image references into URLs an
// external provider can fetch. A reference is either an absolute URL (used as
// is) or an object key in the application bucket, which is resolved to a
// time-limited presigned GET URL.
package imageref

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/snapdeckhq/snapdeck-api/internal/pkg/env"
)

// Resolver produces a provider-fetchable URL for an image reference.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Config holds object storage settings loaded from the environment.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string
	PresignTTL      time.Duration
}

// LoadConfig reads the S3 settings from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		PresignTTL:      30 * time.Minute,
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("S3_ACCESS_KEY_ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("S3_SECRET_ACCESS_KEY is required")
	}
	if cfg.BucketName == "" {
		return nil, errors.New("S3_BUCKET_NAME is required")
	}
	return cfg, nil
}

type presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Resolver presigns GET URLs for object keys in the application bucket.
type S3Resolver struct {
	presign presigner
	bucket  string
	ttl     time.Duration
}

// NewS3Resolver builds a resolver from the given config.
func NewS3Resolver(cfg *Config) (*S3Resolver, error) {
	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	log.Infof("[ImageRef] S3 resolver initialized for bucket %s", cfg.BucketName)
	return &S3Resolver{
		presign: s3.NewPresignClient(s3Client),
		bucket:  cfg.BucketName,
		ttl:     cfg.PresignTTL,
	}, nil
}

// Resolve passes absolute URLs through and presigns everything else as an
// object key.
func (r *S3Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("empty image reference")
	}
	if IsAbsoluteURL(ref) {
		return ref, nil
	}

	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(strings.TrimPrefix(ref, "/")),
	}, func(o *s3.PresignOptions) {
		o.Expires = r.ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", ref, err)
	}
	return req.URL, nil
}

// IsAbsoluteURL reports whether ref already points outside the bucket.
func IsAbsoluteURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// PassthroughResolver returns references unchanged. Used when object storage
// is not configured and clients always send absolute URLs.
type PassthroughResolver struct{}

func (PassthroughResolver) Resolve(_ context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("empty image reference")
	}
	return ref, nil
}

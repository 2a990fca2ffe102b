// Package storage publishes processed media and returns the URL clients use
// to fetch it.
package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Publisher makes a local file available and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// Local leaves files where they are and returns the local path.
type Local struct{}

// Publish implements Publisher.
func (Local) Publish(_ context.Context, localPath string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", fmt.Errorf("publish %s: %w", localPath, err)
	}
	return localPath, nil
}

const keyPrefix = "media/"

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds the bucket settings.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// PublicBaseURL, when set, prefixes returned URLs instead of the
	// virtual-hosted S3 address.
	PublicBaseURL string
}

// S3 uploads files to a bucket under the media/ prefix.
type S3 struct {
	client  putObjectAPI
	bucket  string
	baseURL string
}

// loadAWSConfig is a seam for tests.
var loadAWSConfig = config.LoadDefaultConfig

// NewS3 builds an S3 publisher. Static credentials are used when given,
// otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}
	awsCfg, err := loadAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3(client, cfg), nil
}

func newS3(client putObjectAPI, cfg S3Config) *S3 {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &S3{client: client, bucket: cfg.Bucket, baseURL: base}
}

// Publish uploads localPath and returns its public URL.
func (p *S3) Publish(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	key := keyPrefix + filepath.Base(localPath)
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return p.baseURL + "/" + key, nil
}

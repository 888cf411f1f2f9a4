// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package storage publishes delivered artifacts to object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pdiddy/docswap/pkg/types"
)

const uploadTimeout = 2 * time.Minute

// Publisher stores an artifact and returns where it can be fetched.
type Publisher interface {
	Publish(ctx context.Context, batchID string, a types.Artifact) (string, error)
}

// uploader is the subset of manager.Uploader used here.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Publisher uploads artifacts to s3://bucket/prefix/<batch>/<name>.
type S3Publisher struct {
	Bucket string
	Prefix string
	Region string

	uploader uploader
}

// NewS3Publisher loads AWS configuration for cfg.Region. Static
// credentials are used when both keys are set; otherwise the default
// credential chain applies.
func NewS3Publisher(ctx context.Context, cfg types.S3Config) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket name not set")
	}
	if cfg.Region == "" {
		return nil, errors.New("s3 region not set")
	}
	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		return nil, errors.New("s3 access key and secret key must be set together")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return &S3Publisher{
		Bucket:   cfg.Bucket,
		Prefix:   cfg.Prefix,
		Region:   cfg.Region,
		uploader: manager.NewUploader(s3.NewFromConfig(awsCfg)),
	}, nil
}

// Key returns the object key for an artifact of batchID.
func (p *S3Publisher) Key(batchID, name string) string {
	return path.Join(p.Prefix, batchID, path.Base("/"+name))
}

// Publish uploads a and returns its https URL.
func (p *S3Publisher) Publish(ctx context.Context, batchID string, a types.Artifact) (string, error) {
	if len(a.Data) == 0 {
		return "", fmt.Errorf("publishing %s: artifact is empty", a.Name)
	}
	key := p.Key(batchID, a.Name)

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(a.Data),
		ContentType: aws.String(a.ContentType()),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload of %s failed: %w", key, err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.Bucket, p.Region, key), nil
}

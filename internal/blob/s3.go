// SPDX-License-Identifier: MIT

// Package blob is the object-store adapter for listing imagery. It owns the
// deterministic key namespace; it does not own retry.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	cacheControl    = "public, max-age=31536000"
	deleteBatchSize = 1000
)

// Config carries the object-store connection settings.
type Config struct {
	Endpoint  string // empty for AWS-proper
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	CDNBase   string // public base URL serving the bucket
	Prefix    string // environment prefix, e.g. "production"
	System    string // originating system, lowercased into keys
}

// Bucket wraps the S3 client with the key-namespace rules.
type Bucket struct {
	client  *s3.Client
	bucket  string
	cdnBase string
	prefix  string
	system  string
}

// New builds the S3 client. Path-style addressing keeps MinIO-compatible
// endpoints working.
func New(ctx context.Context, cfg Config) (*Bucket, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Bucket{
		client:  client,
		bucket:  cfg.Bucket,
		cdnBase: strings.TrimRight(cfg.CDNBase, "/"),
		prefix:  cfg.Prefix,
		system:  strings.ToLower(cfg.System),
	}, nil
}

// Key builds the deterministic object key for one asset:
// {env}/{mls-system-lowercased}/{listing-key}/{ordinal}.{ext}.
func (b *Bucket) Key(listingKey string, ordinal int, contentType string) string {
	return fmt.Sprintf("%s/%s/%s/%d.%s",
		b.prefix, b.system, listingKey, ordinal, extForContentType(contentType))
}

// ListingPrefix is the key prefix holding all of a listing's assets.
func (b *Bucket) ListingPrefix(listingKey string) string {
	return fmt.Sprintf("%s/%s/%s/", b.prefix, b.system, listingKey)
}

// RootPrefix covers every object this deployment owns.
func (b *Bucket) RootPrefix() string {
	return fmt.Sprintf("%s/%s/", b.prefix, b.system)
}

// URL returns the stable public URL for a key.
func (b *Bucket) URL(key string) string {
	return b.cdnBase + "/" + key
}

// Put uploads one object with public-read ACL and a one-year cache lifetime.
// An empty body is an error.
func (b *Bucket) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if len(body) == 0 {
		return fmt.Errorf("put %s: empty body", key)
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(b.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		ACL:          types.ObjectCannedACLPublicRead,
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// ListUnder returns every key under the prefix, following pagination.
func (b *Bucket) ListUnder(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

// DeleteMany removes keys in batches of up to 1000, the S3 per-call limit.
func (b *Bucket) DeleteMany(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			batch = append(batch, types.ObjectIdentifier{Key: aws.String(key)})
		}
		_, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &types.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete batch: %w", err)
		}
	}
	return nil
}

// PurgePrefix lists and deletes everything under the prefix. Returns the
// number of objects removed.
func (b *Bucket) PurgePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := b.ListUnder(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := b.DeleteMany(ctx, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// extForContentType picks the object extension from the response content
// type; anything unrecognised is stored as jpg.
func extForContentType(contentType string) string {
	ct := strings.ToLower(contentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	switch strings.TrimSpace(ct) {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}

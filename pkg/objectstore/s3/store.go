// Package s3 is an S3-backed objectstore.Store implementation: config via
// LoadDefaultConfig plus optional endpoint/path-style overrides,
// paginator-based listing, and not-found string sniffing on get.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/awslabs/flexible-snapshot-proxy/pkg/objectstore"
)

// Config configures the S3-backed store.
type Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	Profile        string
	KeyPrefix      string
	ForcePathStyle bool
}

// Store is an S3-backed implementation of objectstore.Store.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds a Store over an existing S3 client.
func New(client *s3.Client, cfg Config) *Store {
	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.KeyPrefix}
}

// NewFromConfig builds an S3 client from cfg (AWS default credential chain,
// optional endpoint/profile/path-style overrides) and wraps it in a Store.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore/s3: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return New(client, cfg), nil
}

func (s *Store) fullKey(key string) string { return s.prefix + key }

// Put uploads data under key.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("objectstore/s3: put object %q: %w", key, err)
	}
	return nil
}

// Get downloads the full object at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, objectstore.ErrObjectNotFound
		}
		return nil, fmt.Errorf("objectstore/s3: get object %q: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("objectstore/s3: read object body %q: %w", key, err)
	}
	return data, nil
}

// ListByPrefix lists every key under prefix.
func (s *Store) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.fullKey(prefix)
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fullPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("objectstore/s3: list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.prefix != "" && strings.HasPrefix(key, s.prefix) {
				key = key[len(s.prefix):]
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// CheckACL reports whether the caller holds the requested grant on the
// bucket. The S3 SDK's GetBucketAcl call is used when available; any
// error besides access-denied is treated as "unsupported" so Preflight
// skips the check rather than failing outright.
func (s *Store) CheckACL(ctx context.Context, required objectstore.Permission) (granted, supported bool, err error) {
	resp, err := s.client.GetBucketAcl(ctx, &s3.GetBucketAclInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		if isAccessDeniedError(err) {
			return false, true, nil
		}
		// Bucket ACL metadata unavailable (e.g. object-ownership disabled,
		// or a non-AWS S3-compatible endpoint) — skip silently.
		return false, false, nil
	}

	for _, grant := range resp.Grants {
		perm := string(grant.Permission)
		switch required {
		case objectstore.PermissionWrite:
			if perm == "WRITE" || perm == "FULL_CONTROL" {
				return true, true, nil
			}
		case objectstore.PermissionRead:
			if perm == "READ" || perm == "FULL_CONTROL" {
				return true, true, nil
			}
		case objectstore.PermissionFullControl:
			if perm == "FULL_CONTROL" {
				return true, true, nil
			}
		}
	}
	return false, true, nil
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "NoSuchKey") || strings.Contains(s, "NotFound") || strings.Contains(s, "404")
}

func isAccessDeniedError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "AccessDenied") || strings.Contains(s, "403")
}

var _ objectstore.Store = (*Store)(nil)

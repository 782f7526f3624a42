// Package storage stores uploaded regulatory documents.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"go.uber.org/zap"
)

// ObjectStore persists file bytes and returns the URL they can be fetched from.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ObjectKey derives a unique object key from the upload time and file name.
func ObjectKey(now time.Time, fileName string) string {
	name := strings.ReplaceAll(path.Base(fileName), " ", "_")
	return fmt.Sprintf("%d-%s", now.Unix(), name)
}

// URLStore only computes where the object would live. Nothing is sent anywhere.
type URLStore struct {
	BaseURL string
	Bucket  string
}

func (s *URLStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	base := s.BaseURL
	if base == "" {
		base = "https://storage.local"
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), s.Bucket, url.PathEscape(key)), nil
}

// S3Config holds bucket connection settings.
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string
}

// S3Store writes objects to an S3-compatible bucket.
type S3Store struct {
	client    s3iface.S3API
	bucket    string
	publicURL string
	log       *zap.SugaredLogger
}

// NewS3Store opens a session against the configured endpoint.
func NewS3Store(cfg S3Config, log *zap.SugaredLogger) (*S3Store, error) {
	if cfg.Region == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("missing required S3 configuration")
	}
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewS3StoreWithClient(s3.New(sess), cfg.Bucket, cfg.PublicURL, log), nil
}

// NewS3StoreWithClient wraps an existing S3 client.
func NewS3StoreWithClient(client s3iface.S3API, bucket, publicURL string, log *zap.SugaredLogger) *S3Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &S3Store{client: client, bucket: bucket, publicURL: publicURL, log: log}
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	if _, err := s.client.PutObjectWithContext(ctx, input); err != nil {
		s.log.Errorf("[S3Store] upload error for %s: %v", key, err)
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}

	var fileURL string
	if s.publicURL != "" {
		fileURL = fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.publicURL, "/"), s.bucket, key)
	} else {
		fileURL = fmt.Sprintf("s3://%s/%s", s.bucket, key)
	}
	s.log.Infof("[S3Store] File stored at: %s", fileURL)
	return fileURL, nil
}

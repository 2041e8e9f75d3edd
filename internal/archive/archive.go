// Package archive keeps copies of imported and exported workbooks.
//
// Archiving is best effort: callers log failures and carry on. When no
// bucket is configured the Noop archiver is used and keys come back empty.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// Archiver stores workbook bytes under a key.
type Archiver interface {
	// Put stores data and returns the full object key.
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// Noop discards everything.
type Noop struct{}

// Put returns an empty key.
func (Noop) Put(context.Context, string, []byte) (string, error) { return "", nil }

// ImportKey names the archived copy of an uploaded workbook.
func ImportKey(entityType core.EntityType, uploadID string, at time.Time) string {
	return path.Join("imports", string(entityType), at.UTC().Format("2006/01/02"), uploadID+".xlsx")
}

// ExportKey names the archived copy of an exported workbook.
func ExportKey(entityType core.EntityType, entityID string, at time.Time) string {
	return path.Join("exports", string(entityType), entityID, at.UTC().Format("20060102T150405Z")+".xlsx")
}

// putObjectAPI is the slice of the S3 client the archiver needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds S3 connection settings.
type Config struct {
	Bucket    string
	Region    string
	Prefix    string
	Endpoint  string // optional, e.g. MinIO
	PathStyle bool
}

// S3 archives to one bucket.
type S3 struct {
	client putObjectAPI
	bucket string
	prefix string
}

// NewS3 builds an archiver using the default AWS credential chain.
func NewS3(ctx context.Context, cfg Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3(client putObjectAPI, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Put uploads data as an xlsx object.
func (a *S3) Put(ctx context.Context, key string, data []byte) (string, error) {
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(core.XLSXMimeType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", key, err)
	}
	return key, nil
}

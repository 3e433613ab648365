package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Archive stores calculation reports outside the database
type Archive interface {
	// Put stores a report for a project and returns its object key
	Put(ctx context.Context, projectID string, report []byte) (string, error)

	// List returns the report keys of a project in chronological order
	List(ctx context.Context, projectID string) ([]string, error)
}

// S3Config holds the connection settings of an S3 compatible archive
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Archive implements Archive on S3 or MinIO
type S3Archive struct {
	logger     *zap.Logger
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

// NewS3Archive creates a new S3 archive
func NewS3Archive(cfg S3Config, logger *zap.Logger) (*S3Archive, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3Archive{
		logger:     logger.Named("archive"),
		client:     client,
		bucketName: bucket,
		region:     region,
	}, nil
}

func (a *S3Archive) ensureBucket(ctx context.Context) error {
	a.initOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucketName)
		if err != nil {
			a.initErr = err
			return
		}
		if exists {
			return
		}
		a.initErr = a.client.MakeBucket(ctx, a.bucketName, minio.MakeBucketOptions{Region: a.region})
	})
	return a.initErr
}

// Put implements Archive.Put
func (a *S3Archive) Put(ctx context.Context, projectID string, report []byte) (string, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return "", fmt.Errorf("project id is required")
	}
	if err := a.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("failed to ensure bucket: %w", err)
	}

	key := ReportKey(projectID, time.Now())
	_, err := a.client.PutObject(ctx, a.bucketName, key, bytes.NewReader(report), int64(len(report)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	a.logger.Debug("Report archived",
		zap.String("project_id", projectID),
		zap.String("key", key),
		zap.Int("bytes", len(report)))
	return key, nil
}

// Get returns the content of a previously archived report
func (a *S3Archive) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := a.client.GetObject(ctx, a.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return data, nil
}

// List implements Archive.List
func (a *S3Archive) List(ctx context.Context, projectID string) ([]string, error) {
	if err := a.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket: %w", err)
	}

	prefix := reportPrefix(projectID)
	keys := make([]string, 0, 16)
	for obj := range a.client.ListObjects(ctx, a.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// ReportKey returns the object key of a report taken at t
func ReportKey(projectID string, t time.Time) string {
	return reportPrefix(projectID) + t.UTC().Format("20060102T150405.000000000Z") + ".json"
}

func reportPrefix(projectID string) string {
	return "projects/" + strings.Trim(strings.TrimSpace(projectID), "/") + "/"
}

var _ Archive = (*S3Archive)(nil)

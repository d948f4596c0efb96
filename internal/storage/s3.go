// internal/storage/s3.go
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/javajoker/supplymatch-backend/internal/config"
)

// S3Backend keeps objects in a bucket. The configured storage root is used
// as a key prefix.
type S3Backend struct {
	client s3iface.S3API
	bucket string
	prefix string
}

func NewS3Backend(cfg config.AWSConfig, prefix string) (*S3Backend, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	// Create AWS session
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewS3BackendWithClient(s3.New(sess), cfg.S3Bucket, prefix), nil
}

func NewS3BackendWithClient(client s3iface.S3API, bucket, prefix string) *S3Backend {
	return &S3Backend{client: client, bucket: bucket, prefix: prefix}
}

func (b *S3Backend) Name() string {
	return config.StorageBackendS3
}

// ObjectKey returns the bucket key for a relative storage path.
func (b *S3Backend) ObjectKey(key string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return JoinRoot(b.prefix, key), nil
}

func (b *S3Backend) Save(ctx context.Context, key string, body io.Reader, contentType string) (int64, error) {
	objectKey, err := b.ObjectKey(key)
	if err != nil {
		return 0, err
	}

	// Read file content
	fileBytes, err := io.ReadAll(body)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	params := &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(fileBytes),
		ContentLength: aws.Int64(int64(len(fileBytes))),
	}
	if contentType != "" {
		params.ContentType = aws.String(contentType)
	}

	if _, err := b.client.PutObjectWithContext(ctx, params); err != nil {
		return 0, fmt.Errorf("failed to upload to S3: %w", err)
	}
	return int64(len(fileBytes)), nil
}

func (b *S3Backend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := b.ObjectKey(key)
	if err != nil {
		return nil, err
	}

	out, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, b.bucket, objectKey)
		}
		return nil, fmt.Errorf("failed to read from S3: %w", err)
	}
	return out.Body, nil
}

func (b *S3Backend) Remove(ctx context.Context, key string) error {
	objectKey, err := b.ObjectKey(key)
	if err != nil {
		return err
	}

	_, err = b.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, b.bucket, objectKey)
		}
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// PresignURL returns a temporary download link the bot can hand to users.
func (b *S3Backend) PresignURL(key string, expiration time.Duration) (string, error) {
	objectKey, err := b.ObjectKey(key)
	if err != nil {
		return "", err
	}

	req, _ := b.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url, nil
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

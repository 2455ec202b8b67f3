// Package blobstore archives raw uploaded document bytes to object storage.
// This repurposes the teacher's MinIO upload path (unified-rag-service) as a
// best-effort enrichment: archival failures are logged, never fatal to
// ingestion (SPEC_FULL.md §4.9 supplement).
package blobstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store archives raw document bytes under project/document scoped keys.
type Store struct {
	client *minio.Client
	bucket string
}

func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("construct minio client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the archival bucket if it does not already exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check minio bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

// Archive uploads raw document bytes to "{projectID}/{documentID}/raw" and
// returns that key for storage on Document.raw_blob_key.
func (s *Store) Archive(ctx context.Context, projectID, documentID string, raw []byte) (string, error) {
	key := fmt.Sprintf("%s/%s/raw", projectID, documentID)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(raw), int64(len(raw)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", fmt.Errorf("archive raw document to minio key %s: %w", key, err)
	}
	return key, nil
}

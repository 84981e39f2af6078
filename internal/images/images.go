// Package images stores card and board artwork in S3-compatible object
// storage and serves it back through short-lived presigned URLs. A ref is
// the object key persisted on the card or board row.
package images

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"podium/api/internal/util"
)

const presignExpiry = 15 * time.Minute

type Service struct {
	client *minio.Client
	bucket string
}

// New connects to the object store and makes sure the bucket exists.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	s := &Service{client: client, bucket: bucket}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}

// PutThumbnail uploads image bytes under a fresh ref and returns the ref.
// ext is the file extension including the dot, e.g. ".png".
func (s *Service) PutThumbnail(ctx context.Context, ownerID, ext string, contentType string, body io.Reader, size int64) (string, error) {
	ref := path.Join("thumbs", ownerID, util.NewID("img")+ext)
	_, err := s.client.PutObject(ctx, s.bucket, ref, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put thumbnail: %w", err)
	}
	return ref, nil
}

// ResolveURL returns a presigned GET URL for a stored ref.
func (s *Service) ResolveURL(ctx context.Context, ref string) (string, error) {
	signed, err := s.client.PresignedGetObject(ctx, s.bucket, ref, presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign thumbnail: %w", err)
	}
	return signed.String(), nil
}

// RemoveThumbnail deletes a stored ref. Missing objects are not an error.
func (s *Service) RemoveThumbnail(ctx context.Context, ref string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove thumbnail: %w", err)
	}
	return nil
}

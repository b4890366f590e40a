package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	storage_go "github.com/supabase-community/storage-go"
	"go.uber.org/zap"
)

// bucket is the subset of the storage client the store relies on.
type bucket interface {
	upload(path string, r io.Reader, contentType string) error
	publicURL(path string) string
	remove(paths []string) error
}

type storageBucket struct {
	c    *storage_go.Client
	name string
}

func (b storageBucket) upload(path string, r io.Reader, contentType string) error {
	upsert := true
	_, err := b.c.UploadFile(b.name, path, r, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	return err
}

func (b storageBucket) publicURL(path string) string {
	return b.c.GetPublicUrl(b.name, path).SignedURL
}

func (b storageBucket) remove(paths []string) error {
	_, err := b.c.RemoveFile(b.name, paths)
	return err
}

// SupabaseStore keeps blobs in a Supabase Storage bucket.
type SupabaseStore struct {
	b   bucket
	log *zap.Logger
}

// NewSupabaseStore wraps a storage client bound to bucketName.
func NewSupabaseStore(c *storage_go.Client, bucketName string, log *zap.Logger) *SupabaseStore {
	return newSupabaseStore(storageBucket{c: c, name: bucketName}, log)
}

func newSupabaseStore(b bucket, log *zap.Logger) *SupabaseStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &SupabaseStore{b: b, log: log}
}

// Upload implements Store.
func (s *SupabaseStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.b.upload(path, bytes.NewReader(data), contentType); err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	s.log.Debug("blob uploaded", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// PublicURL implements Store.
func (s *SupabaseStore) PublicURL(path string) string {
	return s.b.publicURL(path)
}

// Remove implements Store.
func (s *SupabaseStore) Remove(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.b.remove(paths); err != nil {
		return fmt.Errorf("remove %d objects: %w", len(paths), err)
	}
	return nil
}

package storage

import (
	"context"
	"errors"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// FirebaseStore keeps objects in the Firebase Storage (GCS) bucket of the Firebase app.
// The bucket must allow public reads for the returned URLs to resolve.
type FirebaseStore struct {
	bucket *gcs.BucketHandle
	name   string
}

func NewFirebaseStore(bucket *gcs.BucketHandle, bucketName string) *FirebaseStore {
	return &FirebaseStore{bucket: bucket, name: bucketName}
}

func (s *FirebaseStore) Upload(ctx context.Context, path string, r io.Reader, contentType string) error {
	w := s.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (s *FirebaseStore) PublicURL(path string) string {
	return "https://storage.googleapis.com/" + s.name + "/" + escapePath(path)
}

func (s *FirebaseStore) Delete(ctx context.Context, path string) error {
	err := s.bucket.Object(path).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return ErrNotFound
	}
	return err
}

func (s *FirebaseStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	it := s.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		objects = append(objects, ObjectInfo{
			Path:        attrs.Name,
			Size:        attrs.Size,
			ContentType: attrs.ContentType,
			CreatedAt:   attrs.Created,
		})
	}
	return objects, nil
}

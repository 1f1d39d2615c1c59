// Package storage uploads listing images to an object store and hands back public URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned when an object does not exist
var ErrNotFound = errors.New("object not found")

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Path        string
	Size        int64
	ContentType string
	CreatedAt   time.Time
}

// ObjectStore is the object storage used for listing images
type ObjectStore interface {
	Upload(ctx context.Context, path string, r io.Reader, contentType string) error
	PublicURL(path string) string
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Opener is implemented by stores whose objects are served by this service
type Opener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, ObjectInfo, error)
}

// ObjectPath builds the key for the index-th image of an upload batch:
// <owner>/<unix millis>_<index><ext>
func ObjectPath(ownerID string, at time.Time, index int, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%d_%d%s", ownerID, at.UnixMilli(), index, ext)
}

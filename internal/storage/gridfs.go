package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore keeps objects in a MongoDB GridFS bucket, one file per path.
// Objects are served back by the /media route, so public URLs point at this service.
type GridFSStore struct {
	bucket  *gridfs.Bucket
	baseURL string
}

type gridFSFile struct {
	ID         primitive.ObjectID `bson:"_id"`
	Name       string             `bson:"filename"`
	Length     int64              `bson:"length"`
	UploadDate time.Time          `bson:"uploadDate"`
	Metadata   bson.M             `bson:"metadata,omitempty"`
}

// NewGridFSStore opens the named bucket in db. baseURL is the public origin of this service.
func NewGridFSStore(db *mongo.Database, bucketName, baseURL string) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("failed to open GridFS bucket %q: %w", bucketName, err)
	}
	return &GridFSStore{bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *GridFSStore) Upload(ctx context.Context, path string, r io.Reader, contentType string) error {
	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType})
	stream, err := s.bucket.OpenUploadStream(path, opts)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetWriteDeadline(deadline)
	}

	if _, err := io.Copy(stream, r); err != nil {
		_ = stream.Abort()
		return err
	}
	return stream.Close()
}

func (s *GridFSStore) PublicURL(path string) string {
	return s.baseURL + "/media/" + escapePath(path)
}

// Delete removes every revision stored under path
func (s *GridFSStore) Delete(ctx context.Context, path string) error {
	files, err := s.find(ctx, bson.M{"filename": path})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return ErrNotFound
	}
	for _, f := range files {
		if err := s.bucket.DeleteContext(ctx, f.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return err
		}
	}
	return nil
}

func (s *GridFSStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	filter := bson.M{}
	if prefix != "" {
		filter["filename"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}
	}
	files, err := s.find(ctx, filter)
	if err != nil {
		return nil, err
	}

	objects := make([]ObjectInfo, 0, len(files))
	for _, f := range files {
		objects = append(objects, f.info())
	}
	return objects, nil
}

// Open streams the newest revision of path
func (s *GridFSStore) Open(ctx context.Context, path string) (io.ReadCloser, ObjectInfo, error) {
	stream, err := s.bucket.OpenDownloadStreamByName(path)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	}

	file := stream.GetFile()
	info := ObjectInfo{Path: path, Size: file.Length, CreatedAt: file.UploadDate}
	if ct, ok := file.Metadata.Lookup("contentType").StringValueOK(); ok {
		info.ContentType = ct
	}
	return stream, info, nil
}

func (s *GridFSStore) find(ctx context.Context, filter interface{}) ([]gridFSFile, error) {
	cursor, err := s.bucket.FindContext(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var files []gridFSFile
	if err := cursor.All(ctx, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (f gridFSFile) info() ObjectInfo {
	info := ObjectInfo{Path: f.Name, Size: f.Length, CreatedAt: f.UploadDate}
	if ct, ok := f.Metadata["contentType"].(string); ok {
		info.ContentType = ct
	}
	return info
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

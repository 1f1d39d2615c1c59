package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process ObjectStore for local development (STORAGE_DRIVER=memory) and tests
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]memoryObject

	// FailUploadAt makes the n-th Upload call (1-based) fail with ErrUploadFailed. Zero disables it.
	FailUploadAt int
	uploads      int
}

type memoryObject struct {
	data []byte
	info ObjectInfo
}

// ErrUploadFailed is returned by a MemoryStore upload configured to fail
var ErrUploadFailed = errors.New("upload failed")

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string]memoryObject)}
}

func (s *MemoryStore) Upload(_ context.Context, path string, r io.Reader, contentType string) error {
	s.mu.Lock()
	s.uploads++
	fail := s.FailUploadAt != 0 && s.uploads == s.FailUploadAt
	s.mu.Unlock()
	if fail {
		return ErrUploadFailed
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = memoryObject{
		data: data,
		info: ObjectInfo{Path: path, Size: int64(len(data)), ContentType: contentType, CreatedAt: time.Now().UTC()},
	}
	return nil
}

func (s *MemoryStore) PublicURL(path string) string {
	return s.baseURL + "/media/" + escapePath(path)
}

func (s *MemoryStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[path]; !ok {
		return ErrNotFound
	}
	delete(s.objects, path)
	return nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var objects []ObjectInfo
	for path, obj := range s.objects {
		if strings.HasPrefix(path, prefix) {
			objects = append(objects, obj.info)
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })
	return objects, nil
}

func (s *MemoryStore) Open(_ context.Context, path string) (io.ReadCloser, ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[path]
	if !ok {
		return nil, ObjectInfo{}, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info, nil
}

// SetCreatedAt backdates an object, for exercising age-based cleanup
func (s *MemoryStore) SetCreatedAt(path string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj, ok := s.objects[path]; ok {
		obj.info.CreatedAt = at
		s.objects[path] = obj
	}
}

package jobs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/classifieds/backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRefs map[string]bool

func (r staticRefs) ReferencedImagePaths(_ context.Context, paths []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, p := range paths {
		if r[p] {
			out[p] = true
		}
	}
	return out, nil
}

func TestSweepDeletesOldUnreferencedObjects(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("http://x")
	for _, p := range []string{"u1/kept.jpg", "u1/orphan.jpg", "u1/fresh.jpg"} {
		require.NoError(t, store.Upload(ctx, p, strings.NewReader("x"), "image/jpeg"))
	}
	old := time.Now().Add(-2 * time.Hour)
	store.SetCreatedAt("u1/kept.jpg", old)
	store.SetCreatedAt("u1/orphan.jpg", old)

	j := NewJanitor(store, staticRefs{"u1/kept.jpg": true}, time.Hour, time.Hour)
	n, err := j.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	objs, err := store.List(ctx, "")
	require.NoError(t, err)
	var paths []string
	for _, o := range objs {
		paths = append(paths, o.Path)
	}
	assert.Equal(t, []string{"u1/fresh.jpg", "u1/kept.jpg"}, paths)
}

func TestJanitorStartStop(t *testing.T) {
	j := NewJanitor(storage.NewMemoryStore("http://x"), staticRefs{}, time.Hour, time.Hour)
	require.NoError(t, j.Start())
	j.Stop()
}

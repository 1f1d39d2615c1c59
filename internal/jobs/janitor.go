// Package jobs runs scheduled maintenance.
package jobs

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/anonto42/classifieds/backend/internal/metrics"
	"github.com/anonto42/classifieds/backend/internal/storage"
	"github.com/go-co-op/gocron"
)

// ImageReferences reports which stored paths some listing still points at
type ImageReferences interface {
	ReferencedImagePaths(ctx context.Context, paths []string) (map[string]bool, error)
}

// Janitor deletes uploaded images that no listing references, such as leftovers from a
// listing creation whose compensation could not finish
type Janitor struct {
	store     storage.ObjectStore
	refs      ImageReferences
	minAge    time.Duration
	interval  time.Duration
	scheduler *gocron.Scheduler
	now       func() time.Time
}

func NewJanitor(store storage.ObjectStore, refs ImageReferences, interval, minAge time.Duration) *Janitor {
	return &Janitor{
		store:    store,
		refs:     refs,
		minAge:   minAge,
		interval: interval,
		now:      time.Now,
	}
}

// Start schedules Sweep every interval in the background
func (j *Janitor) Start() error {
	j.scheduler = gocron.NewScheduler(time.UTC)
	j.scheduler.SingletonModeAll()

	log.Printf("Starting orphan image janitor every %v", j.interval)
	_, err := j.scheduler.Every(j.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.interval)
		defer cancel()
		if n, err := j.Sweep(ctx); err != nil {
			log.Printf("janitor: sweep failed after %d deletions: %v", n, err)
		} else if n > 0 {
			log.Printf("janitor: deleted %d orphaned images", n)
		}
	})
	if err != nil {
		return err
	}

	j.scheduler.StartAsync()
	return nil
}

// Stop halts the schedule
func (j *Janitor) Stop() {
	if j.scheduler != nil {
		j.scheduler.Stop()
	}
}

// Sweep deletes objects older than minAge that no listing references. Young objects are
// skipped so that uploads belonging to an in-flight listing creation survive.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	objects, err := j.store.List(ctx, "")
	if err != nil {
		return 0, err
	}

	cutoff := j.now().Add(-j.minAge)
	var candidates []string
	for _, o := range objects {
		if o.CreatedAt.Before(cutoff) {
			candidates = append(candidates, o.Path)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	referenced, err := j.refs.ReferencedImagePaths(ctx, candidates)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, p := range candidates {
		if referenced[p] {
			continue
		}
		if err := j.store.Delete(ctx, p); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return deleted, err
		}
		deleted++
		metrics.OrphansDeleted.Inc()
	}
	return deleted, nil
}

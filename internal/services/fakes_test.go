package services

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/anonto42/classifieds/backend/internal/realtime"
	"github.com/anonto42/classifieds/backend/internal/repositories"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// memListings is an in-memory ListingRepository
type memListings struct {
	mu       sync.Mutex
	items    map[string]*models.Listing
	failNext error
}

func newMemListings() *memListings {
	return &memListings{items: make(map[string]*models.Listing)}
}

func (m *memListings) Create(_ context.Context, l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	l.ID = primitive.NewObjectID()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	l.UpdatedAt = l.CreatedAt
	cp := *l
	m.items[l.ID.Hex()] = &cp
	return nil
}

func (m *memListings) GetByID(_ context.Context, id string) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memListings) GetByIDs(_ context.Context, ids []string) (map[string]*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*models.Listing)
	for _, id := range ids {
		if l, ok := m.items[id]; ok {
			cp := *l
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *memListings) sorted(keep func(*models.Listing) bool) []models.Listing {
	var out []models.Listing
	for _, l := range m.items {
		if keep(l) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memListings) ListPublic(_ context.Context, f models.ListingFilter, skip, limit int64) ([]models.Listing, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	search := strings.ToLower(f.Search)
	all := m.sorted(func(l *models.Listing) bool {
		if !l.IsPublic() || (f.Category != "" && l.Category != f.Category) || (f.OwnerID != "" && l.OwnerID != f.OwnerID) {
			return false
		}
		return search == "" ||
			strings.Contains(strings.ToLower(l.Title), search) ||
			strings.Contains(strings.ToLower(l.Description), search)
	})
	total := int64(len(all))
	if skip >= total {
		return []models.Listing{}, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return all[skip:end], total, nil
}

func (m *memListings) ListByOwner(_ context.Context, ownerID string) ([]models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(l *models.Listing) bool { return l.OwnerID == ownerID }), nil
}

func (m *memListings) UpdateStatus(_ context.Context, id, status string) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	l.Status = status
	l.UpdatedAt = time.Now().UTC()
	cp := *l
	return &cp, nil
}

func (m *memListings) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memListings) ReferencedImagePaths(_ context.Context, paths []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[p] = true
	}
	out := make(map[string]bool)
	for _, l := range m.items {
		for _, p := range l.ImagePaths {
			if want[p] {
				out[p] = true
			}
		}
	}
	return out, nil
}

// put stores a listing directly, bypassing creation rules
func (m *memListings) put(l models.Listing) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	m.items[l.ID.Hex()] = &l
	return l.ID.Hex()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Events() []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]realtime.Event(nil), p.events...)
}

var errRemote = errors.New("remote unavailable")

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	// one connection serializes concurrent writers instead of failing with SQLITE_BUSY
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Profile{}, &models.Conversation{}, &models.Message{}))
	return db
}

func seedProfile(t *testing.T, repo repositories.ProfileRepository, id, name string) *models.Profile {
	t.Helper()
	p := &models.Profile{ID: id, Name: name, Email: id + "@example.com"}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

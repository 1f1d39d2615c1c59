package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/anonto42/classifieds/backend/internal/middleware"
	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/anonto42/classifieds/backend/internal/realtime"
	"github.com/anonto42/classifieds/backend/internal/repositories"
	"github.com/anonto42/classifieds/backend/internal/services"
	"github.com/anonto42/classifieds/backend/internal/storage"
	"github.com/anonto42/classifieds/backend/internal/validators"
	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testBaseURL = "http://example.test"

// listingStore is an in-memory ListingRepository for handler tests
type listingStore struct {
	mu    sync.Mutex
	items map[string]*models.Listing
}

func (m *listingStore) Create(_ context.Context, l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = primitive.NewObjectID()
	l.CreatedAt = time.Now().UTC()
	l.UpdatedAt = l.CreatedAt
	cp := *l
	m.items[l.ID.Hex()] = &cp
	return nil
}

func (m *listingStore) GetByID(_ context.Context, id string) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *listingStore) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Listing, error) {
	out := make(map[string]*models.Listing)
	for _, id := range ids {
		if l, err := m.GetByID(ctx, id); err == nil {
			out[id] = l
		}
	}
	return out, nil
}

func (m *listingStore) filter(keep func(*models.Listing) bool) []models.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Listing
	for _, l := range m.items {
		if keep(l) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *listingStore) ListPublic(_ context.Context, f models.ListingFilter, skip, limit int64) ([]models.Listing, int64, error) {
	all := m.filter(func(l *models.Listing) bool {
		return l.IsPublic() && (f.Category == "" || l.Category == f.Category) &&
			(f.Search == "" || strings.Contains(strings.ToLower(l.Title), strings.ToLower(f.Search)))
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

func (m *listingStore) ListByOwner(_ context.Context, ownerID string) ([]models.Listing, error) {
	return m.filter(func(l *models.Listing) bool { return l.OwnerID == ownerID }), nil
}

func (m *listingStore) UpdateStatus(_ context.Context, id, status string) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	l.Status = status
	cp := *l
	return &cp, nil
}

func (m *listingStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *listingStore) ReferencedImagePaths(context.Context, []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

type testServer struct {
	e     *echo.Echo
	store *storage.MemoryStore
	hub   *realtime.Hub
	redis *miniredis.Miniredis
}

// newTestServer wires the API the way the router does, on sqlite, miniredis and in-memory
// listing and image stores
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Profile{}, &models.Conversation{}, &models.Message{}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	profiles := repositories.NewSQLProfileRepository(db)
	listings := &listingStore{items: make(map[string]*models.Listing)}
	revocations := repositories.NewRedisTokenRevocationRepository(rdb)
	store := storage.NewMemoryStore(testBaseURL)
	hub := realtime.NewHub()

	authService := services.NewAuthService(profiles, revocations, nil, "test-secret", time.Hour)
	listingService := services.NewListingService(listings, profiles, store, services.ListingLimits{MaxImages: 3, MaxImageBytes: 1 << 20})
	conversationService := services.NewConversationService(
		repositories.NewSQLConversationRepository(db),
		repositories.NewSQLMessageRepository(db),
		listings, profiles, realtime.NewLocalBroker(hub),
	)

	e := echo.New()
	e.Validator = validators.NewValidator()

	authCfg := middleware.AuthConfig{
		JWTSecret:        "test-secret",
		Revoked:          revocations,
		Profiles:         authService,
		QueryTokenRoutes: []string{"/api/v1" + StreamRoute},
	}
	requireAuth := middleware.Auth(authCfg)
	limiter := middleware.NewRedisLimiter(rdb, "messages", 3, time.Minute)

	e.GET("/health", NewHealthHandler(nil).HealthCheck)
	NewMediaHandler(store).RegisterMediaRoutes(e)
	NewAuthHandler(authService).RegisterAuthRoutes(e.Group("/api/v1/auth"), requireAuth)
	public := e.Group("/api/v1", middleware.OptionalAuth(authCfg))
	protected := e.Group("/api/v1", requireAuth)
	NewProfileHandler(services.NewProfileService(profiles, listings)).RegisterProfileRoutes(public, protected)
	NewListingHandler(listingService).RegisterListingRoutes(public, protected)
	NewDashboardHandler(listingService).RegisterDashboardRoutes(protected)
	NewConversationHandler(conversationService, hub).RegisterConversationRoutes(protected, middleware.RateLimit(limiter))

	return &testServer{e: e, store: store, hub: hub, redis: mr}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Created *bool           `json:"created"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return s.send(req, token)
}

func (s *testServer) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

// signUp registers a user and returns its token and profile ID
func (s *testServer) signUp(t *testing.T, name string) (token, id string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", models.SignupRequest{
		Name:            name,
		Email:           strings.ToLower(name) + "@example.com",
		Password:        "secret123",
		ConfirmPassword: "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res services.AuthResult
	decode(t, rec, &res)
	require.NotEmpty(t, res.Token)
	return res.Token, res.Profile.ID
}

// createListing publishes an approved listing without images and returns its ID
func (s *testServer) createListing(t *testing.T, token, title string) string {
	t.Helper()
	price := 100.0
	rec := s.do(t, http.MethodPost, "/api/v1/listings", token, models.CreateListingRequest{
		Title:       title,
		Description: "Good condition",
		Price:       &price,
		Category:    "eletronicos",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var l models.Listing
	decode(t, rec, &l)
	return l.ID.Hex()
}

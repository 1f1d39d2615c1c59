package services

import (
	"context"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/anonto42/classifieds/backend/internal/repositories"
	"github.com/anonto42/classifieds/backend/internal/session"
	"github.com/anonto42/classifieds/backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listingFixture struct {
	svc      *ListingService
	listings *memListings
	profiles repositories.ProfileRepository
	store    *storage.MemoryStore
}

func newListingFixture(t *testing.T) *listingFixture {
	t.Helper()
	listings := newMemListings()
	profiles := repositories.NewSQLProfileRepository(newTestDB(t))
	store := storage.NewMemoryStore("http://localhost:8080")
	svc := NewListingService(listings, profiles, store, ListingLimits{MaxImages: 3, MaxImageBytes: 1024})
	return &listingFixture{svc: svc, listings: listings, profiles: profiles, store: store}
}

func price(v float64) *float64 { return &v }

func image(name, body string) ImageFile {
	return ImageFile{
		Name:        name,
		ContentType: "image/jpeg",
		Size:        int64(len(body)),
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil },
	}
}

func storedPaths(t *testing.T, store *storage.MemoryStore) []string {
	t.Helper()
	objs, err := store.List(context.Background(), "")
	require.NoError(t, err)
	var paths []string
	for _, o := range objs {
		paths = append(paths, o.Path)
	}
	return paths
}

func TestCreateListingRejectedByModeration(t *testing.T) {
	f := newListingFixture(t)
	seller := &session.Session{UserID: "seller"}

	res, err := f.svc.Create(context.Background(), seller, models.CreateListingRequest{
		Title:       "iPhone 14",
		Description: "não é fraude",
		Price:       price(3500),
		Category:    "eletronicos",
	}, nil)
	require.NoError(t, err)

	assert.False(t, res.Verdict.Approved)
	assert.Equal(t, models.ListingStatusActive, res.Listing.Status)
	assert.Equal(t, models.ModerationRejected, res.Listing.ModerationStatus)
	assert.Contains(t, res.Listing.ModerationFeedback, "fraude")

	cards, total, err := f.svc.Directory(context.Background(), models.ListingFilter{}, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, cards)
}

func TestCreateListingUploadsImagesInOrder(t *testing.T) {
	f := newListingFixture(t)
	seller := &session.Session{UserID: "seller"}

	res, err := f.svc.Create(context.Background(), seller, models.CreateListingRequest{
		Title:       "Mountain bike",
		Description: "Aro 29",
		Price:       price(1200),
		Category:    "esportes",
		Attributes:  map[string]interface{}{"aro": float64(29), "cor": "azul"},
	}, []ImageFile{image("a.jpg", "1"), image("b.PNG", "2")})
	require.NoError(t, err)

	l := res.Listing
	assert.True(t, res.Verdict.Approved)
	assert.Equal(t, models.ModerationApproved, l.ModerationStatus)
	require.Len(t, l.Images, 2)
	require.Len(t, l.ImagePaths, 2)
	assert.True(t, strings.HasPrefix(l.ImagePaths[0], "seller/"))
	assert.True(t, strings.HasSuffix(l.ImagePaths[0], "_0.jpg"))
	assert.True(t, strings.HasSuffix(l.ImagePaths[1], "_1.png"))
	assert.Equal(t, f.store.PublicURL(l.ImagePaths[0]), l.Images[0])
	assert.Len(t, storedPaths(t, f.store), 2)
}

func TestCreateListingValidationHappensBeforeUploads(t *testing.T) {
	f := newListingFixture(t)
	seller := &session.Session{UserID: "seller"}
	valid := models.CreateListingRequest{Title: "Sofa", Description: "3 lugares", Price: price(10), Category: "moveis"}

	tests := []struct {
		name   string
		mutate func(r *models.CreateListingRequest)
		images []ImageFile
	}{
		{"missing title", func(r *models.CreateListingRequest) { r.Title = "  " }, nil},
		{"missing price", func(r *models.CreateListingRequest) { r.Price = nil }, nil},
		{"negative price", func(r *models.CreateListingRequest) { r.Price = price(-1) }, nil},
		{"infinite price", func(r *models.CreateListingRequest) { r.Price = price(math.Inf(1)) }, nil},
		{"NaN price", func(r *models.CreateListingRequest) { r.Price = price(math.NaN()) }, nil},
		{"price above ceiling", func(r *models.CreateListingRequest) { r.Price = price(2e9) }, nil},
		{"unknown category", func(r *models.CreateListingRequest) { r.Category = "pets" }, nil},
		{"nested attribute", func(r *models.CreateListingRequest) {
			r.Attributes = map[string]interface{}{"x": []string{"a"}}
		}, nil},
		{"too many images", func(*models.CreateListingRequest) {}, []ImageFile{image("1.jpg", "1"), image("2.jpg", "2"), image("3.jpg", "3"), image("4.jpg", "4")}},
		{"image too large", func(*models.CreateListingRequest) {}, []ImageFile{image("big.jpg", strings.Repeat("x", 2048))}},
		{"not an image", func(*models.CreateListingRequest) {}, []ImageFile{{Name: "a.pdf", ContentType: "application/pdf", Size: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := f.svc.Create(context.Background(), seller, req, tt.images)
			assert.True(t, IsValidation(err), "got %v", err)
			assert.Empty(t, storedPaths(t, f.store))
			assert.Empty(t, f.listings.items)
		})
	}
}

func TestCreateListingCompensatesFailedUpload(t *testing.T) {
	f := newListingFixture(t)
	f.store.FailUploadAt = 2

	_, err := f.svc.Create(context.Background(), &session.Session{UserID: "seller"}, models.CreateListingRequest{
		Title: "Sofa", Description: "3 lugares", Price: price(10), Category: "moveis",
	}, []ImageFile{image("1.jpg", "1"), image("2.jpg", "2")})
	require.Error(t, err)
	assert.False(t, IsValidation(err))

	assert.Empty(t, storedPaths(t, f.store), "first upload must be deleted again")
	assert.Empty(t, f.listings.items)
}

func TestCreateListingCompensatesFailedInsert(t *testing.T) {
	f := newListingFixture(t)
	f.listings.failNext = errRemote

	_, err := f.svc.Create(context.Background(), &session.Session{UserID: "seller"}, models.CreateListingRequest{
		Title: "Sofa", Description: "3 lugares", Price: price(10), Category: "moveis",
	}, []ImageFile{image("1.jpg", "1")})
	assert.ErrorIs(t, err, errRemote)
	assert.Empty(t, storedPaths(t, f.store))
}

func TestDirectoryFiltersAndEnriches(t *testing.T) {
	f := newListingFixture(t)
	seedProfile(t, f.profiles, "seller", "Maria")
	now := time.Now().UTC()

	f.listings.put(models.Listing{OwnerID: "seller", Title: "Old bike", Category: "esportes", Status: "active", ModerationStatus: "approved", CreatedAt: now.Add(-time.Hour)})
	f.listings.put(models.Listing{OwnerID: "seller", Title: "New bike", Category: "esportes", Status: "active", ModerationStatus: "approved", CreatedAt: now})
	f.listings.put(models.Listing{OwnerID: "seller", Title: "Sold bike", Category: "esportes", Status: "sold", ModerationStatus: "approved", CreatedAt: now})
	f.listings.put(models.Listing{OwnerID: "seller", Title: "Sofa", Category: "moveis", Status: "active", ModerationStatus: "approved", CreatedAt: now})

	cards, total, err := f.svc.Directory(context.Background(), models.ListingFilter{Search: "BIKE", Category: "esportes"}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, cards, 2)
	assert.Equal(t, "New bike", cards[0].Title)
	require.NotNil(t, cards[0].Owner)
	assert.Equal(t, "Maria", cards[0].Owner.Name)

	_, _, err = f.svc.Directory(context.Background(), models.ListingFilter{Category: "pets"}, 1, 10)
	assert.True(t, IsValidation(err))

	for _, page := range []int{0, MaxDirectoryPage + 1, math.MaxInt} {
		_, _, err = f.svc.Directory(context.Background(), models.ListingFilter{}, page, 10)
		assert.True(t, IsValidation(err), "page %d: %v", page, err)
	}
	cards, _, err = f.svc.Directory(context.Background(), models.ListingFilter{}, MaxDirectoryPage, 50)
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestDetailVisibility(t *testing.T) {
	f := newListingFixture(t)
	seedProfile(t, f.profiles, "seller", "Maria")
	public := f.listings.put(models.Listing{OwnerID: "seller", Title: "Bike", Status: "active", ModerationStatus: "approved"})
	rejected := f.listings.put(models.Listing{OwnerID: "seller", Title: "Bike", Status: "active", ModerationStatus: "rejected"})

	d, err := f.svc.Detail(context.Background(), "", public)
	require.NoError(t, err)
	require.NotNil(t, d.Owner)
	assert.Equal(t, "seller@example.com", d.Owner.Email)

	_, err = f.svc.Detail(context.Background(), "someone", rejected)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Detail(context.Background(), "seller", rejected)
	assert.NoError(t, err)

	_, err = f.svc.Detail(context.Background(), "", "not-an-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDashboardAndStatus(t *testing.T) {
	f := newListingFixture(t)
	ctx := context.Background()
	seller := &session.Session{UserID: "seller"}

	id := f.listings.put(models.Listing{OwnerID: "seller", Title: "A", Status: "active", ModerationStatus: "approved"})
	f.listings.put(models.Listing{OwnerID: "seller", Title: "B", Status: "sold", ModerationStatus: "approved"})
	f.listings.put(models.Listing{OwnerID: "other", Title: "C", Status: "active", ModerationStatus: "approved"})

	d, err := f.svc.Dashboard(ctx, seller, "all")
	require.NoError(t, err)
	assert.Equal(t, DashboardStats{Total: 2, Active: 1, Sold: 1}, d.Stats)
	assert.Len(t, d.Listings, 2)

	updated, err := f.svc.UpdateStatus(ctx, seller, id, models.ListingStatusSold)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusSold, updated.Status)

	d, err = f.svc.Dashboard(ctx, seller, "sold")
	require.NoError(t, err)
	assert.Len(t, d.Listings, 2)
	assert.Equal(t, 2, d.Stats.Sold)

	_, err = f.svc.UpdateStatus(ctx, &session.Session{UserID: "other"}, id, models.ListingStatusActive)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.UpdateStatus(ctx, seller, id, "archived")
	assert.True(t, IsValidation(err))

	_, err = f.svc.Dashboard(ctx, seller, "archived")
	assert.True(t, IsValidation(err))
}

func TestDeleteRequiresConfirmationAndOwnership(t *testing.T) {
	f := newListingFixture(t)
	ctx := context.Background()
	seller := &session.Session{UserID: "seller"}

	res, err := f.svc.Create(ctx, seller, models.CreateListingRequest{
		Title: "Sofa", Description: "3 lugares", Price: price(10), Category: "moveis",
	}, []ImageFile{image("1.jpg", "1")})
	require.NoError(t, err)
	id := res.Listing.ID.Hex()

	assert.ErrorIs(t, f.svc.Delete(ctx, seller, id, false), ErrConfirmationRequired)
	assert.ErrorIs(t, f.svc.Delete(ctx, &session.Session{UserID: "other"}, id, true), ErrForbidden)
	_, err = f.listings.GetByID(ctx, id)
	require.NoError(t, err, "listing survives rejected deletes")

	require.NoError(t, f.svc.Delete(ctx, seller, id, true))
	_, err = f.listings.GetByID(ctx, id)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Empty(t, storedPaths(t, f.store))
}

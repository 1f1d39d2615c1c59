package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/anonto42/classifieds/backend/internal/metrics"
	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/anonto42/classifieds/backend/internal/moderation"
	"github.com/anonto42/classifieds/backend/internal/repositories"
	"github.com/anonto42/classifieds/backend/internal/session"
	"github.com/anonto42/classifieds/backend/internal/storage"
	"github.com/anonto42/classifieds/backend/internal/validators"
	"github.com/go-playground/validator/v10"
)

// ImageFile is one image attached to a new listing
type ImageFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// ListingLimits bounds the images accepted with a new listing
type ListingLimits struct {
	MaxImages     int
	MaxImageBytes int64
}

// ListingCard is a directory entry: the listing and its seller
type ListingCard struct {
	models.Listing
	Owner *models.ProfileCompact `json:"owner,omitempty"`
}

// ListingDetail is a listing page: the listing and its seller's public card
type ListingDetail struct {
	models.Listing
	Owner *models.PublicProfile `json:"owner,omitempty"`
}

// CreateListingResult carries the stored listing and the moderation verdict applied to it
type CreateListingResult struct {
	Listing *models.Listing
	Verdict moderation.Verdict
}

// DashboardStats counts the caller's listings by status
type DashboardStats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Sold     int `json:"sold"`
	Inactive int `json:"inactive"`
}

// Dashboard is the seller's view of their own listings
type Dashboard struct {
	Listings []models.Listing `json:"listings"`
	Stats    DashboardStats   `json:"stats"`
}

type ListingService struct {
	listings repositories.ListingRepository
	profiles repositories.ProfileRepository
	store    storage.ObjectStore
	validate *validator.Validate
	limits   ListingLimits
	now      func() time.Time
}

func NewListingService(
	listings repositories.ListingRepository,
	profiles repositories.ProfileRepository,
	store storage.ObjectStore,
	limits ListingLimits,
) *ListingService {
	return &ListingService{
		listings: listings,
		profiles: profiles,
		store:    store,
		validate: validators.New(),
		limits:   limits,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the form, runs moderation, uploads every image and inserts the listing.
// Uploaded images are deleted again if a later step fails.
func (s *ListingService) Create(ctx context.Context, sess *session.Session, req models.CreateListingRequest, images []ImageFile) (*CreateListingResult, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validate.Struct(req); err != nil {
		return nil, invalid(err.Error())
	}
	if err := s.checkImages(images); err != nil {
		return nil, err
	}

	verdict := moderation.Check(req.Title, req.Description)

	now := s.now()
	var paths, urls []string
	for i, img := range images {
		path := storage.ObjectPath(sess.UserID, now, i, img.Name)
		if err := s.upload(ctx, path, img); err != nil {
			s.compensate(ctx, paths)
			return nil, fmt.Errorf("failed to upload image %q: %w", img.Name, err)
		}
		paths = append(paths, path)
		urls = append(urls, s.store.PublicURL(path))
	}

	listing := &models.Listing{
		OwnerID:     sess.UserID,
		Title:       req.Title,
		Description: req.Description,
		Price:       *req.Price,
		Category:    req.Category,
		ProductType: strings.TrimSpace(req.ProductType),
		Attributes:  req.Attributes,
		Images:      urls,
		ImagePaths:  paths,
		Status:      models.ListingStatusActive,
	}
	if listing.Images == nil {
		listing.Images = []string{}
	}
	if verdict.Approved {
		listing.ModerationStatus = models.ModerationApproved
	} else {
		listing.ModerationStatus = models.ModerationRejected
		listing.ModerationFeedback = verdict.Feedback
	}

	if err := s.listings.Create(ctx, listing); err != nil {
		s.compensate(ctx, paths)
		return nil, fmt.Errorf("failed to save listing: %w", err)
	}

	metrics.ListingsCreated.WithLabelValues(listing.ModerationStatus).Inc()
	return &CreateListingResult{Listing: listing, Verdict: verdict}, nil
}

func (s *ListingService) checkImages(images []ImageFile) error {
	if s.limits.MaxImages > 0 && len(images) > s.limits.MaxImages {
		return invalid(fmt.Sprintf("At most %d images are allowed", s.limits.MaxImages))
	}
	for _, img := range images {
		if s.limits.MaxImageBytes > 0 && img.Size > s.limits.MaxImageBytes {
			return invalid(fmt.Sprintf("Image %q exceeds %d bytes", img.Name, s.limits.MaxImageBytes))
		}
		if img.ContentType != "" && !strings.HasPrefix(img.ContentType, "image/") {
			return invalid(fmt.Sprintf("File %q is not an image", img.Name))
		}
	}
	return nil
}

func (s *ListingService) upload(ctx context.Context, path string, img ImageFile) error {
	rc, err := img.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return s.store.Upload(ctx, path, rc, img.ContentType)
}

// compensate deletes objects uploaded for a listing that was never stored. It runs even when
// the request context is done; whatever it cannot delete is left for the janitor.
func (s *ListingService) compensate(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	for _, p := range paths {
		if err := s.store.Delete(ctx, p); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Printf("compensation: failed to delete %s: %v", p, err)
			continue
		}
		metrics.UploadsCompensated.Inc()
	}
}

// MaxDirectoryPage bounds the directory page number so the skip offset cannot overflow
const MaxDirectoryPage = 10000

// Directory returns one page of public listings, each with its seller
func (s *ListingService) Directory(ctx context.Context, filter models.ListingFilter, page, limit int) ([]ListingCard, int64, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Category != "" && !validators.IsCategory(filter.Category) {
		return nil, 0, invalid(fmt.Sprintf("Unknown category %q", filter.Category))
	}

	if page < 1 || page > MaxDirectoryPage || limit < 1 {
		return nil, 0, invalid(fmt.Sprintf("page must be between 1 and %d", MaxDirectoryPage))
	}
	skip := int64(page-1) * int64(limit)
	listings, total, err := s.listings.ListPublic(ctx, filter, skip, int64(limit))
	if err != nil {
		return nil, 0, fmt.Errorf("ListingService.Directory: %w", err)
	}

	ownerIDs := make([]string, 0, len(listings))
	for _, l := range listings {
		ownerIDs = append(ownerIDs, l.OwnerID)
	}
	owners, err := s.profiles.GetByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("ListingService.Directory: owners: %w", err)
	}

	cards := make([]ListingCard, 0, len(listings))
	for _, l := range listings {
		card := ListingCard{Listing: l}
		if p, ok := owners[l.OwnerID]; ok {
			compact := p.ToCompact()
			card.Owner = &compact
		}
		cards = append(cards, card)
	}
	return cards, total, nil
}

// Detail returns a listing with its seller. Listings that are not public are only visible to
// their owner; everyone else gets ErrNotFound.
func (s *ListingService) Detail(ctx context.Context, viewerID, id string) (*ListingDetail, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !listing.IsPublic() && listing.OwnerID != viewerID {
		return nil, ErrNotFound
	}

	detail := &ListingDetail{Listing: *listing}
	owner, err := s.profiles.GetByID(ctx, listing.OwnerID)
	switch {
	case err == nil:
		public := owner.ToPublic()
		detail.Owner = &public
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("ListingService.Detail: owner: %w", err)
	}
	return detail, nil
}

// Dashboard lists the caller's listings, optionally narrowed to one status. Stats always cover
// every listing.
func (s *ListingService) Dashboard(ctx context.Context, sess *session.Session, status string) (*Dashboard, error) {
	if status == "all" {
		status = ""
	}
	if status != "" && !isListingStatus(status) {
		return nil, invalid(fmt.Sprintf("Unknown status %q", status))
	}

	all, err := s.listings.ListByOwner(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("ListingService.Dashboard: %w", err)
	}

	d := &Dashboard{Listings: []models.Listing{}}
	for _, l := range all {
		d.Stats.Total++
		switch l.Status {
		case models.ListingStatusActive:
			d.Stats.Active++
		case models.ListingStatusSold:
			d.Stats.Sold++
		case models.ListingStatusInactive:
			d.Stats.Inactive++
		}
		if status == "" || l.Status == status {
			d.Listings = append(d.Listings, l)
		}
	}
	return d, nil
}

// UpdateStatus lets the owner mark a listing active, sold or inactive
func (s *ListingService) UpdateStatus(ctx context.Context, sess *session.Session, id, status string) (*models.Listing, error) {
	if !isListingStatus(status) {
		return nil, invalid(fmt.Sprintf("Unknown status %q", status))
	}
	if _, err := s.ownedListing(ctx, sess, id); err != nil {
		return nil, err
	}

	listing, err := s.listings.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// Delete removes an owned listing once confirmed, then its stored images. Image cleanup is best
// effort: leftovers are collected by the janitor.
func (s *ListingService) Delete(ctx context.Context, sess *session.Session, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	listing, err := s.ownedListing(ctx, sess, id)
	if err != nil {
		return err
	}

	if err := s.listings.Delete(ctx, id); err != nil {
		return err
	}

	for _, p := range listing.ImagePaths {
		if err := s.store.Delete(ctx, p); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Printf("delete listing %s: failed to delete image %s: %v", id, p, err)
		}
	}
	return nil
}

func (s *ListingService) ownedListing(ctx context.Context, sess *session.Session, id string) (*models.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != sess.UserID {
		return nil, ErrForbidden
	}
	return listing, nil
}

func isListingStatus(status string) bool {
	switch status {
	case models.ListingStatusActive, models.ListingStatusSold, models.ListingStatusInactive:
		return true
	}
	return false
}

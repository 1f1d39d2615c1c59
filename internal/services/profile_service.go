package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/anonto42/classifieds/backend/internal/repositories"
	"github.com/anonto42/classifieds/backend/internal/session"
	"github.com/anonto42/classifieds/backend/internal/validators"
	"github.com/go-playground/validator/v10"
)

// ProfilePage is a seller's public page: their card and their public listings
type ProfilePage struct {
	Profile  models.PublicProfile `json:"profile"`
	Listings []models.Listing     `json:"listings"`
}

type ProfileService struct {
	profiles repositories.ProfileRepository
	listings repositories.ListingRepository
	validate *validator.Validate
}

func NewProfileService(profiles repositories.ProfileRepository, listings repositories.ListingRepository) *ProfileService {
	return &ProfileService{profiles: profiles, listings: listings, validate: validators.New()}
}

// PublicPage returns a profile with its active, approved listings, newest first
func (s *ProfileService) PublicPage(ctx context.Context, profileID string) (*ProfilePage, error) {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}

	listings, err := s.listings.ListByOwner(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("ProfileService.PublicPage: listings: %w", err)
	}

	public := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if l.IsPublic() {
			public = append(public, l)
		}
	}
	return &ProfilePage{Profile: profile.ToPublic(), Listings: public}, nil
}

// Own returns the caller's profile
func (s *ProfileService) Own(ctx context.Context, sess *session.Session) (*models.Profile, error) {
	return s.profiles.GetByID(ctx, sess.UserID)
}

// Update changes the caller's name, phone and avatar. Empty fields are left untouched;
// an empty phone or avatar string clears the value.
func (s *ProfileService) Update(ctx context.Context, sess *session.Session, req models.UpdateProfileRequest) (*models.Profile, error) {
	clearAvatar := req.AvatarURL != nil && strings.TrimSpace(*req.AvatarURL) == ""
	if clearAvatar {
		req.AvatarURL = nil
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, invalid(err.Error())
	}

	profile, err := s.profiles.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		profile.Name = name
	}
	if req.Phone != nil {
		profile.Phone = optional(*req.Phone)
	}
	if clearAvatar {
		profile.AvatarURL = nil
	} else if req.AvatarURL != nil {
		profile.AvatarURL = optional(*req.AvatarURL)
	}

	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, fmt.Errorf("ProfileService.Update: %w", err)
	}
	return profile, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

package repositories

import (
	"context"

	"github.com/anonto42/classifieds/backend/internal/models"
	"gorm.io/gorm"
)

// ProfileRepository defines the interface for profile data operations
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	GetByFirebaseUID(ctx context.Context, firebaseUID string) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
}

// SQLProfileRepository implements ProfileRepository with gorm (PostgreSQL or MySQL)
type SQLProfileRepository struct {
	db *gorm.DB
}

// NewSQLProfileRepository creates a new SQLProfileRepository
func NewSQLProfileRepository(db *gorm.DB) *SQLProfileRepository {
	return &SQLProfileRepository{db: db}
}

// Create inserts a new profile
func (r *SQLProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

// GetByID retrieves a profile by ID
func (r *SQLProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}

// GetByIDs loads several profiles at once, keyed by ID. Unknown IDs are skipped.
func (r *SQLProfileRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Profile, error) {
	result := make(map[string]*models.Profile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var profiles []models.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	for i := range profiles {
		result[profiles[i].ID] = &profiles[i]
	}
	return result, nil
}

// GetByEmail retrieves a profile by email (case-insensitive)
func (r *SQLProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&profile).Error; err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}

// GetByFirebaseUID retrieves a profile by Firebase UID
func (r *SQLProfileRepository) GetByFirebaseUID(ctx context.Context, firebaseUID string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("firebase_uid = ?", firebaseUID).First(&profile).Error; err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}

// Update saves an existing profile
func (r *SQLProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

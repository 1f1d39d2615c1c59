package repositories

import (
	"context"

	"github.com/anonto42/classifieds/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository defines the interface for conversation data operations
type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	FindByTriple(ctx context.Context, listingID, buyerID, sellerID string) (*models.Conversation, error)
	CreateWithSeed(ctx context.Context, conv *models.Conversation, seed *models.Message) (*models.Conversation, bool, error)
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
}

// SQLConversationRepository implements ConversationRepository with gorm
type SQLConversationRepository struct {
	db *gorm.DB
}

// NewSQLConversationRepository creates a new SQLConversationRepository
func NewSQLConversationRepository(db *gorm.DB) *SQLConversationRepository {
	return &SQLConversationRepository{db: db}
}

// GetByID retrieves a conversation by ID
func (r *SQLConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

// FindByTriple looks up the unique conversation for a listing between buyer and seller
func (r *SQLConversationRepository) FindByTriple(ctx context.Context, listingID, buyerID, sellerID string) (*models.Conversation, error) {
	return findByTriple(r.db.WithContext(ctx), listingID, buyerID, sellerID)
}

func findByTriple(db *gorm.DB, listingID, buyerID, sellerID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := db.Where("listing_id = ? AND buyer_id = ? AND seller_id = ?", listingID, buyerID, sellerID).
		First(&conv).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

// CreateWithSeed inserts conv and its first message in one transaction. When another request
// already created the same (listing, buyer, seller) conversation the insert is skipped, the
// seed is not written, and the existing row is returned with created=false.
func (r *SQLConversationRepository) CreateWithSeed(ctx context.Context, conv *models.Conversation, seed *models.Message) (*models.Conversation, bool, error) {
	var result *models.Conversation
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(conv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			existing, err := findByTriple(tx, conv.ListingID, conv.BuyerID, conv.SellerID)
			if err != nil {
				return err
			}
			result = existing
			return nil
		}

		seed.ConversationID = conv.ID
		if err := appendMessage(tx, seed); err != nil {
			return err
		}
		conv.LastMessage = &seed.Content
		conv.LastMessageAt = &seed.CreatedAt
		result = conv
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// ListForUser returns the conversations where userID is buyer or seller, most recent activity
// first. Conversations without messages sort after those with messages.
func (r *SQLConversationRepository) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	convs := []models.Conversation{}
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("CASE WHEN last_message_at IS NULL THEN 1 ELSE 0 END").
		Order("last_message_at DESC").
		Order("created_at DESC").
		Find(&convs).Error
	return convs, err
}

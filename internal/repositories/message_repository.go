package repositories

import (
	"context"

	"github.com/anonto42/classifieds/backend/internal/models"
	"gorm.io/gorm"
)

// MessageRepository defines the interface for message operations
type MessageRepository interface {
	Append(ctx context.Context, msg *models.Message) error
	ListByConversation(ctx context.Context, conversationID, afterID string) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID, viewerID string) (int64, error)
	UnreadCount(ctx context.Context, conversationID, viewerID string) (int64, error)
	UnreadCounts(ctx context.Context, userID string) (map[string]int64, error)
}

type sqlMessageRepository struct {
	db *gorm.DB
}

func NewSQLMessageRepository(db *gorm.DB) MessageRepository {
	return &sqlMessageRepository{db: db}
}

// Append inserts msg and moves the conversation's last-message fields in one transaction
func (r *sqlMessageRepository) Append(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return appendMessage(tx, msg)
	})
}

func appendMessage(tx *gorm.DB, msg *models.Message) error {
	if err := tx.Create(msg).Error; err != nil {
		return err
	}
	res := tx.Model(&models.Conversation{}).
		Where("id = ?", msg.ConversationID).
		Updates(map[string]interface{}{
			"last_message":    msg.Content,
			"last_message_at": msg.CreatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByConversation returns the thread oldest first. A non-empty afterID limits the result
// to messages created after it; IDs are time-ordered.
func (r *sqlMessageRepository) ListByConversation(ctx context.Context, conversationID, afterID string) ([]models.Message, error) {
	messages := []models.Message{}
	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if afterID != "" {
		q = q.Where("id > ?", afterID)
	}
	err := q.Order("created_at ASC").Order("id ASC").Find(&messages).Error
	return messages, err
}

// MarkRead flags every unread message in the conversation not sent by viewerID as read
func (r *sqlMessageRepository) MarkRead(ctx context.Context, conversationID, viewerID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, viewerID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// UnreadCount counts unread messages in one conversation sent by someone other than viewerID
func (r *sqlMessageRepository) UnreadCount(ctx context.Context, conversationID, viewerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, viewerID, false).
		Count(&count).Error
	return count, err
}

type unreadRow struct {
	ConversationID string
	Count          int64
}

// UnreadCounts returns the unread count per conversation for every conversation userID is in.
// Conversations with nothing unread are absent from the map.
func (r *sqlMessageRepository) UnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	var rows []unreadRow
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("messages.conversation_id AS conversation_id, COUNT(*) AS count").
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("(conversations.buyer_id = ? OR conversations.seller_id = ?)", userID, userID).
		Where("messages.sender_id <> ? AND messages.is_read = ?", userID, false).
		Group("messages.conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.ConversationID] = row.Count
	}
	return counts, nil
}

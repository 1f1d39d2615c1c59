package models

import "time"

// Message is one entry in a conversation thread (PostgreSQL).
// Only IsRead changes after insert, and only from false to true.
type Message struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	ConversationID string    `json:"conversation_id" gorm:"size:36;not null;index"`
	SenderID       string    `json:"sender_id" gorm:"size:64;not null;index"`
	Content        string    `json:"content" gorm:"type:text;not null"`
	IsRead         bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
}

// SendMessageRequest defines the request body for posting into a thread
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

package models

import "time"

// Conversation is a buyer/seller thread scoped to one listing (PostgreSQL)
type Conversation struct {
	ID            string     `json:"id" gorm:"primaryKey;size:36"`
	ListingID     string     `json:"listing_id" gorm:"size:24;not null;uniqueIndex:idx_conversation_triple"`
	BuyerID       string     `json:"buyer_id" gorm:"size:64;not null;index;uniqueIndex:idx_conversation_triple"`
	SellerID      string     `json:"seller_id" gorm:"size:64;not null;index;uniqueIndex:idx_conversation_triple"`
	LastMessage   *string    `json:"last_message,omitempty" gorm:"type:text"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty" gorm:"index"`
	CreatedAt     time.Time  `json:"created_at" gorm:"index"`
}

// HasParticipant reports whether userID is the buyer or the seller
func (c *Conversation) HasParticipant(userID string) bool {
	return c.BuyerID == userID || c.SellerID == userID
}

// Counterpart returns the other participant's ID from userID's point of view
func (c *Conversation) Counterpart(userID string) string {
	if c.BuyerID == userID {
		return c.SellerID
	}
	return c.BuyerID
}

// ConversationView is a conversation enriched for the conversation list
type ConversationView struct {
	Conversation
	Listing     *ListingSummary `json:"listing,omitempty"`
	Counterpart *ProfileCompact `json:"counterpart,omitempty"`
	UnreadCount int64           `json:"unread_count"`
}

// StartConversationRequest defines the optional seed message for a new conversation
type StartConversationRequest struct {
	Message string `json:"message,omitempty" validate:"max=2000"`
}

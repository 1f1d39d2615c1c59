package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Listing lifecycle statuses
const (
	ListingStatusActive   = "active"
	ListingStatusSold     = "sold"
	ListingStatusInactive = "inactive"
)

// Moderation verdicts attached to a listing at creation time
const (
	ModerationPending  = "pending"
	ModerationApproved = "approved"
	ModerationRejected = "rejected"
)

// Categories accepted for a listing
var Categories = []string{"veiculos", "imoveis", "eletronicos", "moveis", "moda", "esportes", "outros"}

// Listing represents a marketplace item stored in MongoDB
type Listing struct {
	ID                 primitive.ObjectID     `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerID            string                 `json:"owner_id" bson:"owner_id"` // Profile ID of the seller
	Title              string                 `json:"title" bson:"title"`
	Description        string                 `json:"description" bson:"description"`
	Price              float64                `json:"price" bson:"price"`
	Category           string                 `json:"category" bson:"category"`
	ProductType        string                 `json:"product_type,omitempty" bson:"product_type,omitempty"`
	Attributes         map[string]interface{} `json:"attributes,omitempty" bson:"attributes,omitempty"`
	Images             []string               `json:"images" bson:"images"`
	ImagePaths         []string               `json:"-" bson:"image_paths,omitempty"` // storage keys behind Images
	Status             string                 `json:"status" bson:"status"`
	ModerationStatus   string                 `json:"moderation_status" bson:"moderation_status"`
	ModerationFeedback string                 `json:"moderation_feedback,omitempty" bson:"moderation_feedback,omitempty"`
	CreatedAt          time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at" bson:"updated_at"`
}

// IsPublic reports whether the listing may appear in the public directory
func (l *Listing) IsPublic() bool {
	return l.Status == ListingStatusActive && l.ModerationStatus == ModerationApproved
}

// ToSummary returns the fields shown next to a conversation
func (l *Listing) ToSummary() ListingSummary {
	s := ListingSummary{ID: l.ID.Hex(), Title: l.Title, Price: l.Price}
	if len(l.Images) > 0 {
		s.Image = l.Images[0]
	}
	return s
}

// ListingSummary is a compact listing projection
type ListingSummary struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image,omitempty"`
}

// ListingFilter narrows the public directory
type ListingFilter struct {
	Search   string
	Category string
	OwnerID  string
}

// CreateListingRequest defines the request body for creating a new listing
type CreateListingRequest struct {
	Title       string                 `json:"title" form:"title" validate:"required,min=3,max=120"`
	Description string                 `json:"description" form:"description" validate:"required,max=5000"`
	Price       *float64               `json:"price" form:"price" validate:"required,gte=0,lte=1000000000"`
	Category    string                 `json:"category" form:"category" validate:"required,category"`
	ProductType string                 `json:"product_type,omitempty" form:"product_type" validate:"omitempty,max=60"`
	Attributes  map[string]interface{} `json:"attributes,omitempty" form:"-" validate:"omitempty,attributes"`
}

// UpdateListingStatusRequest defines the request body for a dashboard status change
type UpdateListingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active sold inactive"`
}

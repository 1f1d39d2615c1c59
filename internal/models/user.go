package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Profile is the public record of a marketplace user. Its ID is shared with the auth identity.
type Profile struct {
	ID          string    `json:"id" gorm:"primaryKey;size:64"`
	Name        string    `json:"name" gorm:"size:120"`
	Email       string    `json:"email" gorm:"size:190;uniqueIndex"`
	Phone       *string   `json:"phone,omitempty" gorm:"size:40"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	Password    string    `json:"-"`                                                  // bcrypt hash, empty for Firebase-only users
	FirebaseUID *string   `json:"firebase_uid,omitempty" gorm:"size:128;uniqueIndex"` // Link to Firebase User UID
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileCompact is what other users see next to listings and conversations
type ProfileCompact struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// PublicProfile is the owner card on a listing detail or profile page
type PublicProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Profile) ToCompact() ProfileCompact {
	return ProfileCompact{ID: p.ID, Name: p.Name, AvatarURL: p.AvatarURL}
}

func (p *Profile) ToPublic() PublicProfile {
	return PublicProfile{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Phone:     p.Phone,
		AvatarURL: p.AvatarURL,
		CreatedAt: p.CreatedAt,
	}
}

type SignupRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=120"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Name      string  `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

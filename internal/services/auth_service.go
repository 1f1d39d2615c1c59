package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/anonto42/classifieds/backend/internal/repositories"
	"github.com/anonto42/classifieds/backend/internal/session"
	"github.com/anonto42/classifieds/backend/internal/validators"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthResult is returned by every successful sign-in path
type AuthResult struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Profile   *models.Profile `json:"profile"`
}

// AuthService issues local JWTs for email/password and Firebase identities
type AuthService struct {
	profiles    repositories.ProfileRepository
	revocations repositories.TokenRevocationRepository
	firebase    session.IDTokenVerifier // nil without Firebase credentials
	validate    *validator.Validate
	jwtSecret   string
	jwtTTL      time.Duration
}

func NewAuthService(
	profiles repositories.ProfileRepository,
	revocations repositories.TokenRevocationRepository,
	firebase session.IDTokenVerifier,
	jwtSecret string,
	jwtTTL time.Duration,
) *AuthService {
	return &AuthService{
		profiles:    profiles,
		revocations: revocations,
		firebase:    firebase,
		validate:    validators.New(),
		jwtSecret:   jwtSecret,
		jwtTTL:      jwtTTL,
	}
}

// SignUp creates a profile with a bcrypt password hash and signs it in
func (s *AuthService) SignUp(ctx context.Context, req models.SignupRequest) (*AuthResult, error) {
	if req.Password != req.ConfirmPassword {
		return nil, invalid("Passwords do not match")
	}
	if len(req.Password) < 6 {
		return nil, invalid("Password must be at least 6 characters")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, invalid(err.Error())
	}

	if _, err := s.profiles.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("AuthService.SignUp: lookup email: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("AuthService.SignUp: hash password: %w", err)
	}

	profile := &models.Profile{
		ID:       uuid.Must(uuid.NewV7()).String(),
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Password: string(hashedPassword),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("AuthService.SignUp: create profile: %w", err)
	}

	return s.issue(profile)
}

// SignIn checks an email/password pair
func (s *AuthService) SignIn(ctx context.Context, req models.SignInRequest) (*AuthResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, invalid(err.Error())
	}

	profile, err := s.profiles.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("AuthService.SignIn: lookup email: %w", err)
	}
	if profile.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(profile)
}

// FirebaseLogin exchanges a Firebase ID token for a local JWT
func (s *AuthService) FirebaseLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	if s.firebase == nil {
		return nil, ErrFirebaseDisabled
	}
	if idToken == "" {
		return nil, invalid("idToken is required")
	}

	token, err := s.firebase.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	profile, err := s.ResolveFirebaseToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.issue(profile)
}

// ResolveFirebaseToken finds the profile linked to a verified Firebase identity: by UID, then by
// email (linking the UID), otherwise a new profile is created
func (s *AuthService) ResolveFirebaseToken(ctx context.Context, token *auth.Token) (*models.Profile, error) {
	email, _ := token.Claims["email"].(string)
	name, _ := token.Claims["name"].(string)

	profile, err := s.profiles.GetByFirebaseUID(ctx, token.UID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("AuthService.ResolveFirebaseToken: lookup uid: %w", err)
	}

	uid := token.UID
	if email != "" {
		profile, err = s.profiles.GetByEmail(ctx, email)
		if err == nil {
			profile.FirebaseUID = &uid
			if err := s.profiles.Update(ctx, profile); err != nil {
				return nil, fmt.Errorf("AuthService.ResolveFirebaseToken: link uid: %w", err)
			}
			return profile, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("AuthService.ResolveFirebaseToken: lookup email: %w", err)
		}
	}

	profile = &models.Profile{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Name:        DisplayName(name, email),
		Email:       email,
		FirebaseUID: &uid,
	}
	if profile.Email == "" {
		// email is unique, so Firebase identities without one get a placeholder
		profile.Email = uid + "@firebase.local"
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("AuthService.ResolveFirebaseToken: create profile: %w", err)
	}
	return profile, nil
}

// DisplayName picks a profile name: the given name, else the email's local part, else "User"
func DisplayName(name, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return "User"
}

// SignOut revokes the caller's local token until it expires. Firebase sessions end client-side.
func (s *AuthService) SignOut(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.TokenID == "" {
		return nil
	}
	expires := sess.ExpiresAt
	if expires.IsZero() {
		expires = time.Now().Add(s.jwtTTL)
	}
	if err := s.revocations.Revoke(ctx, sess.TokenID, expires); err != nil {
		return fmt.Errorf("AuthService.SignOut: %w", err)
	}
	return nil
}

// Me returns the caller's profile
func (s *AuthService) Me(ctx context.Context, sess *session.Session) (*models.Profile, error) {
	return s.profiles.GetByID(ctx, sess.UserID)
}

func (s *AuthService) issue(profile *models.Profile) (*AuthResult, error) {
	token, expiresAt, err := s.generateJWT(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, Profile: profile}, nil
}

// generateJWT signs an HS256 token carrying the profile ID and a unique token ID for revocation
func (s *AuthService) generateJWT(profile *models.Profile) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.jwtTTL)
	claims := &models.JwtCustomClaims{
		UserID: profile.ID,
		Email:  profile.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   profile.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return t, expiresAt, nil
}

package middleware

import (
	"context"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/anonto42/classifieds/backend/internal/session"
)

// FirebaseProfileResolver maps a verified Firebase identity onto a marketplace profile,
// creating the profile on first sight
type FirebaseProfileResolver interface {
	ResolveFirebaseToken(ctx context.Context, token *auth.Token) (*models.Profile, error)
}

func verifyFirebase(ctx context.Context, verifier session.IDTokenVerifier, profiles FirebaseProfileResolver, idToken string) (*session.Session, error) {
	token, err := verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("invalid or expired ID token: %w", err)
	}

	profile, err := profiles.ResolveFirebaseToken(ctx, token)
	if err != nil {
		return nil, err
	}

	s := &session.Session{UserID: profile.ID, Email: profile.Email}
	if token.Expires > 0 {
		s.ExpiresAt = time.Unix(token.Expires, 0)
	}
	return s, nil
}

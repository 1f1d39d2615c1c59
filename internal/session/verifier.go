package session

import (
	"context"

	"firebase.google.com/go/v4/auth"
)

// IDTokenVerifier checks Firebase ID tokens. It is satisfied by *auth.Client and shared
// by the auth middleware and the auth service.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

var _ IDTokenVerifier = (*auth.Client)(nil)

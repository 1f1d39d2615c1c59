package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/anonto42/classifieds/backend/internal/session"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

// RevocationChecker reports whether a local token id has been signed out
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AuthConfig configures Auth and OptionalAuth
type AuthConfig struct {
	JWTSecret string
	Revoked   RevocationChecker       // optional
	Firebase  session.IDTokenVerifier // optional, Firebase ID tokens are rejected when nil
	Profiles  FirebaseProfileResolver
	// QueryTokenRoutes lists the route paths (as registered, e.g. "/api/v1/conversations/:id/stream")
	// that also accept ?token=, for browser websocket clients that cannot set headers
	QueryTokenRoutes []string
}

func (cfg AuthConfig) acceptsQueryToken(route string) bool {
	for _, r := range cfg.QueryTokenRoutes {
		if r == route {
			return true
		}
	}
	return false
}

var errNoToken = errors.New("missing token")

// Auth requires a valid local JWT or Firebase ID token and stores the session on the context
func Auth(cfg AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, err := authenticate(c, cfg)
			if err != nil {
				return err
			}
			session.Set(c, s)
			return next(c)
		}
	}
}

// OptionalAuth resolves the session when a valid token is present and never rejects
func OptionalAuth(cfg AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s, err := authenticate(c, cfg); err == nil {
				session.Set(c, s)
			}
			return next(c)
		}
	}
}

func authenticate(c echo.Context, cfg AuthConfig) (*session.Session, error) {
	tokenString, err := bearerToken(c, cfg.acceptsQueryToken(c.Path()))
	if err != nil {
		return nil, err
	}
	ctx := c.Request().Context()

	claims, jwtErr := ParseJWT(cfg.JWTSecret, tokenString)
	if jwtErr == nil {
		if cfg.Revoked != nil && claims.ID != "" {
			revoked, err := cfg.Revoked.IsRevoked(ctx, claims.ID)
			if err != nil {
				return nil, echo.NewHTTPError(http.StatusInternalServerError, "Failed to check token status")
			}
			if revoked {
				return nil, echo.NewHTTPError(http.StatusUnauthorized, "Token has been revoked")
			}
		}
		s := &session.Session{UserID: claims.UserID, Email: claims.Email, TokenID: claims.ID}
		if claims.ExpiresAt != nil {
			s.ExpiresAt = claims.ExpiresAt.Time
		}
		return s, nil
	}

	if cfg.Firebase != nil && cfg.Profiles != nil {
		if s, err := verifyFirebase(ctx, cfg.Firebase, cfg.Profiles, tokenString); err == nil {
			return s, nil
		}
	}

	if errors.Is(jwtErr, jwt.ErrSignatureInvalid) {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid token signature")
	}
	return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
}

// bearerToken reads "Authorization: Bearer <token>", falling back to ?token= when allowQuery is set
func bearerToken(c echo.Context, allowQuery bool) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if t := c.QueryParam("token"); allowQuery && t != "" {
			return t, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}

	// Expecting "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return parts[1], nil
}

// ParseJWT validates an HS256 token signed with secret and returns its claims
func ParseJWT(secret, tokenString string) (*models.JwtCustomClaims, error) {
	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

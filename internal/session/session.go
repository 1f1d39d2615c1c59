// Package session carries the authenticated caller through a request.
package session

import (
	"time"

	"github.com/labstack/echo/v4"
)

const contextKey = "session"

// Session is the caller resolved once by the auth middleware
type Session struct {
	UserID    string
	Email     string
	TokenID   string    // jti of a local JWT, empty for Firebase ID tokens
	ExpiresAt time.Time // zero when unknown
}

// Set stores s on the echo context
func Set(c echo.Context, s *Session) {
	c.Set(contextKey, s)
}

// FromContext returns the session set by the auth middleware, or nil for anonymous requests
func FromContext(c echo.Context) *Session {
	s, _ := c.Get(contextKey).(*Session)
	return s
}

// UserID returns the caller's ID or "" when anonymous
func UserID(c echo.Context) string {
	if s := FromContext(c); s != nil {
		return s.UserID
	}
	return ""
}

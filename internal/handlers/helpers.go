package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/anonto42/classifieds/backend/internal/services"
	"github.com/anonto42/classifieds/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// serviceError maps a service error onto the HTTP error returned to the client.
// resource names the thing that was looked up, for the 404 message.
func serviceError(err error, resource string) error {
	switch {
	case services.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, resource+" not found")
	case errors.Is(err, services.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to access this "+lower(resource))
	case errors.Is(err, services.ErrSelfConversation),
		errors.Is(err, services.ErrConfirmationRequired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, "User with this email already registered")
	case errors.Is(err, services.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, services.ErrFirebaseDisabled):
		return echo.NewHTTPError(http.StatusNotImplemented, "Firebase login is not configured")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func lower(s string) string {
	if s == "" {
		return "resource"
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}

// currentSession returns the caller's session; routes using it sit behind middleware.Auth
func currentSession(c echo.Context) (*session.Session, error) {
	s := session.FromContext(c)
	if s == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}
	return s, nil
}

// pagination reads ?page= and ?limit=, defaulting to page 1 of 20 and capping limit at 50
// and page at services.MaxDirectoryPage
func pagination(c echo.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if page > services.MaxDirectoryPage {
		page = services.MaxDirectoryPage
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}
	return page, limit
}

func paginationMeta(page, limit int, totalItems int64) echo.Map {
	totalPages := int(math.Ceil(float64(totalItems) / float64(limit)))
	return echo.Map{
		"currentPage":     page,
		"totalPages":      totalPages,
		"totalItems":      totalItems,
		"itemsPerPage":    limit,
		"hasNextPage":     page < totalPages,
		"hasPreviousPage": page > 1,
	}
}

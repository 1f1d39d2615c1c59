package handlers

import (
	"net/http"

	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/anonto42/classifieds/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ProfileHandler handles HTTP requests related to user profiles
type ProfileHandler struct {
	profileService *services.ProfileService
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// RegisterProfileRoutes registers the public profile page and the own-profile routes
func (h *ProfileHandler) RegisterProfileRoutes(public, protected *echo.Group) {
	public.GET("/users/:id", h.GetUser)       // Seller page
	protected.GET("/profile", h.GetProfile)    // Get own profile
	protected.PUT("/profile", h.UpdateProfile) // Update own profile
}

// GetUser returns a public profile with the user's listings
func (h *ProfileHandler) GetUser(c echo.Context) error {
	page, err := h.profileService.PublicPage(c.Request().Context(), c.Param("id"))
	if err != nil {
		return serviceError(err, "User profile")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": page})
}

// GetProfile retrieves the authenticated user's profile
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	profile, err := h.profileService.Own(c.Request().Context(), sess)
	if err != nil {
		return serviceError(err, "User profile")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": profile})
}

// UpdateProfile updates the authenticated user's profile
func (h *ProfileHandler) UpdateProfile(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	profile, err := h.profileService.Update(c.Request().Context(), sess, req)
	if err != nil {
		return serviceError(err, "User profile")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": profile})
}

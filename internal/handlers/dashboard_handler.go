package handlers

import (
	"net/http"

	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/anonto42/classifieds/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// DashboardHandler serves the seller's management of their own listings
type DashboardHandler struct {
	listingService *services.ListingService
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(listingService *services.ListingService) *DashboardHandler {
	return &DashboardHandler{listingService: listingService}
}

// RegisterDashboardRoutes registers the dashboard routes; all need a session
func (h *DashboardHandler) RegisterDashboardRoutes(g *echo.Group) {
	g.GET("/dashboard/listings", h.GetDashboard)
	g.PATCH("/listings/:id/status", h.UpdateStatus)
	g.DELETE("/listings/:id", h.DeleteListing)
}

// GetDashboard lists the caller's listings with per-status counts. ?status=all|active|sold|inactive
func (h *DashboardHandler) GetDashboard(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	d, err := h.listingService.Dashboard(c.Request().Context(), sess, c.QueryParam("status"))
	if err != nil {
		return serviceError(err, "Listing")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": d})
}

// UpdateStatus changes the status of an owned listing
func (h *DashboardHandler) UpdateStatus(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	var req models.UpdateListingStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	listing, err := h.listingService.UpdateStatus(c.Request().Context(), sess, c.Param("id"), req.Status)
	if err != nil {
		return serviceError(err, "Listing")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": listing})
}

// DeleteListing permanently removes an owned listing. Requires ?confirm=true.
func (h *DashboardHandler) DeleteListing(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	confirmed := c.QueryParam("confirm") == "true"
	if err := h.listingService.Delete(c.Request().Context(), sess, c.Param("id"), confirmed); err != nil {
		return serviceError(err, "Listing")
	}
	return c.NoContent(http.StatusNoContent)
}

package handlers

import (
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/anonto42/classifieds/backend/internal/services"
	"github.com/anonto42/classifieds/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// ListingHandler handles HTTP requests related to listings
type ListingHandler struct {
	listingService *services.ListingService
}

// NewListingHandler creates a new ListingHandler
func NewListingHandler(listingService *services.ListingService) *ListingHandler {
	return &ListingHandler{listingService: listingService}
}

// RegisterListingRoutes registers the public directory and detail routes plus listing creation.
// public should resolve an optional session so owners can see their own hidden listings.
func (h *ListingHandler) RegisterListingRoutes(public, protected *echo.Group) {
	public.GET("/listings", h.GetListings)
	public.GET("/listings/:id", h.GetListing)
	protected.POST("/listings", h.CreateListing)
}

// GetListings returns the public directory, newest first
func (h *ListingHandler) GetListings(c echo.Context) error {
	page, limit := pagination(c)
	filter := models.ListingFilter{
		Search:   c.QueryParam("q"),
		Category: c.QueryParam("category"),
	}

	cards, total, err := h.listingService.Directory(c.Request().Context(), filter, page, limit)
	if err != nil {
		return serviceError(err, "Listing")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"listings": cards,
		},
		"meta": paginationMeta(page, limit, total),
	})
}

// GetListing retrieves a listing with its seller
func (h *ListingHandler) GetListing(c echo.Context) error {
	detail, err := h.listingService.Detail(c.Request().Context(), session.UserID(c), c.Param("id"))
	if err != nil {
		return serviceError(err, "Listing")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": detail})
}

// CreateListing accepts multipart/form-data (fields plus "images" files) or JSON without images
func (h *ListingHandler) CreateListing(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	var req models.CreateListingRequest
	var images []services.ImageFile
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		req, images, err = bindListingForm(c)
		if err != nil {
			return err
		}
	} else if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	res, err := h.listingService.Create(c.Request().Context(), sess, req, images)
	if err != nil {
		return serviceError(err, "Listing")
	}

	message := "Listing published successfully"
	if !res.Verdict.Approved {
		message = res.Verdict.Feedback
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": message,
		"data":    res.Listing,
	})
}

func bindListingForm(c echo.Context) (models.CreateListingRequest, []services.ImageFile, error) {
	req := models.CreateListingRequest{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Category:    c.FormValue("category"),
		ProductType: c.FormValue("product_type"),
	}

	if raw := strings.TrimSpace(c.FormValue("price")); raw != "" {
		price, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil || math.IsInf(price, 0) || math.IsNaN(price) {
			return req, nil, echo.NewHTTPError(http.StatusBadRequest, "Price must be a number")
		}
		req.Price = &price
	}
	if raw := strings.TrimSpace(c.FormValue("attributes")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Attributes); err != nil {
			return req, nil, echo.NewHTTPError(http.StatusBadRequest, "Attributes must be a JSON object")
		}
	}

	form, err := c.MultipartForm()
	if err != nil {
		return req, nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart form")
	}
	var images []services.ImageFile
	for _, fh := range form.File["images"] {
		images = append(images, imageFile(fh))
	}
	return req, images, nil
}

func imageFile(fh *multipart.FileHeader) services.ImageFile {
	return services.ImageFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	}
}

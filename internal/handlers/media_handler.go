package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/anonto42/classifieds/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// MediaHandler serves images kept by stores that have no public endpoint of their own
type MediaHandler struct {
	store storage.Opener
}

func NewMediaHandler(store storage.Opener) *MediaHandler {
	return &MediaHandler{store: store}
}

func (h *MediaHandler) RegisterMediaRoutes(e *echo.Echo) {
	e.GET("/media/*", h.GetMedia)
}

// GetMedia streams the object stored under the path after /media/
func (h *MediaHandler) GetMedia(c echo.Context) error {
	path := c.Param("*")
	if path == "" {
		return echo.NewHTTPError(http.StatusNotFound, "Image not found")
	}

	rc, info, err := h.store.Open(c.Request().Context(), path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Image not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, contentType)
	res.Header().Set("Cache-Control", "public, max-age=86400")
	if info.Size > 0 {
		res.Header().Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))
	}
	res.WriteHeader(http.StatusOK)
	_, err = io.Copy(res, rc)
	return err
}

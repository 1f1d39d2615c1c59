package handlers

import (
	"net/http"

	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/anonto42/classifieds/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterAuthRoutes registers authentication-related routes. Sign-out and me need a session.
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group, requireAuth echo.MiddlewareFunc) {
	g.POST("/signup", h.Signup)
	g.POST("/signin", h.SignIn)
	g.POST("/firebase-login", h.FirebaseLogin)
	g.POST("/signout", h.SignOut, requireAuth)
	g.GET("/me", h.Me, requireAuth)
}

// Signup handles local user registration with email and password
func (h *AuthHandler) Signup(c echo.Context) error {
	var req models.SignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	res, err := h.authService.SignUp(c.Request().Context(), req)
	if err != nil {
		return serviceError(err, "User")
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": res})
}

// SignIn handles local user authentication with email and password
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req models.SignInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	res, err := h.authService.SignIn(c.Request().Context(), req)
	if err != nil {
		return serviceError(err, "User")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": res})
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken"`
}

// FirebaseLogin handles Firebase ID token verification and issues a local JWT
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	var req FirebaseLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	res, err := h.authService.FirebaseLogin(c.Request().Context(), req.IDToken)
	if err != nil {
		return serviceError(err, "User")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": res})
}

// SignOut revokes the presented token
func (h *AuthHandler) SignOut(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	if err := h.authService.SignOut(c.Request().Context(), sess); err != nil {
		return serviceError(err, "Session")
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the signed-in user's profile
func (h *AuthHandler) Me(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}
	profile, err := h.authService.Me(c.Request().Context(), sess)
	if err != nil {
		return serviceError(err, "User profile")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": profile})
}

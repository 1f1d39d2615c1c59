package handlers

import (
	"net/http"

	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/anonto42/classifieds/backend/internal/realtime"
	"github.com/anonto42/classifieds/backend/internal/services"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is open for the API; the stream authenticates with the same token
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamRoute is the websocket route, relative to the API group. Auth must accept ?token= on it.
const StreamRoute = "/conversations/:id/stream"

// ConversationHandler handles buyer/seller conversations and their messages
type ConversationHandler struct {
	conversationService *services.ConversationService
	hub                 *realtime.Hub
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(conversationService *services.ConversationService, hub *realtime.Hub) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService, hub: hub}
}

// RegisterConversationRoutes registers conversation routes; all need a session. sendLimit guards
// message posting.
func (h *ConversationHandler) RegisterConversationRoutes(g *echo.Group, sendLimit echo.MiddlewareFunc) {
	g.POST("/listings/:id/conversations", h.StartConversation)
	g.GET("/conversations", h.GetConversations)
	g.GET("/conversations/:id", h.GetConversation)
	g.GET("/conversations/:id/messages", h.GetMessages)
	g.POST("/conversations/:id/messages", h.SendMessage, sendLimit)
	g.POST("/conversations/:id/read", h.MarkAsRead)
	g.GET("/conversations/:id/unread-count", h.GetUnreadCount)
	g.GET(StreamRoute, h.Stream)
	g.GET("/messages/unread-count", h.GetTotalUnreadCount)
}

// StartConversation opens (or reopens) the caller's conversation about a listing.
// 201 when created, 200 when it already existed.
func (h *ConversationHandler) StartConversation(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	var req models.StartConversationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	conv, created, err := h.conversationService.Start(c.Request().Context(), sess, c.Param("id"), req.Message)
	if err != nil {
		return serviceError(err, "Listing")
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, echo.Map{"success": true, "data": conv, "created": created})
}

// GetConversations lists the caller's conversations, most recent activity first
func (h *ConversationHandler) GetConversations(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	views, err := h.conversationService.List(c.Request().Context(), sess)
	if err != nil {
		return serviceError(err, "Conversation")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"conversations": views,
		},
	})
}

// GetConversation returns one conversation of the caller
func (h *ConversationHandler) GetConversation(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	view, err := h.conversationService.Get(c.Request().Context(), sess, c.Param("id"))
	if err != nil {
		return serviceError(err, "Conversation")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": view})
}

// GetMessages returns the thread oldest first and marks incoming messages read.
// ?after=<message id> returns only newer messages.
func (h *ConversationHandler) GetMessages(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	messages, err := h.conversationService.Thread(c.Request().Context(), sess, c.Param("id"), c.QueryParam("after"))
	if err != nil {
		return serviceError(err, "Conversation")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"messages": messages,
		},
	})
}

// SendMessage appends a message to the thread
func (h *ConversationHandler) SendMessage(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	var req models.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	msg, err := h.conversationService.Send(c.Request().Context(), sess, c.Param("id"), req.Content)
	if err != nil {
		return serviceError(err, "Conversation")
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": msg})
}

// MarkAsRead marks the caller's incoming messages in a conversation as read
func (h *ConversationHandler) MarkAsRead(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	updated, err := h.conversationService.MarkRead(c.Request().Context(), sess, c.Param("id"))
	if err != nil {
		return serviceError(err, "Conversation")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"updated": updated}})
}

// GetUnreadCount returns the caller's unread count for one conversation
func (h *ConversationHandler) GetUnreadCount(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	count, err := h.conversationService.UnreadCount(c.Request().Context(), sess, c.Param("id"))
	if err != nil {
		return serviceError(err, "Conversation")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

// GetTotalUnreadCount returns the caller's unread count over all conversations
func (h *ConversationHandler) GetTotalUnreadCount(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	summary, err := h.conversationService.Unread(c.Request().Context(), sess)
	if err != nil {
		return serviceError(err, "Conversation")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": summary})
}

// Stream upgrades to a websocket that receives a realtime.Event whenever a message is added
// to the conversation. Browsers pass the token as ?token=.
func (h *ConversationHandler) Stream(c echo.Context) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	conv, err := h.conversationService.Authorize(c.Request().Context(), sess, c.Param("id"))
	if err != nil {
		return serviceError(err, "Conversation")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		return nil
	}

	// Blocks until the peer goes away; the subscription ends with it
	h.hub.Register(conv.ID, conn).Serve()
	return nil
}

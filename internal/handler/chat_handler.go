package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"tbnt/backend/internal/auth"
	"tbnt/backend/internal/hub"
	"tbnt/backend/internal/logging"
	"tbnt/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// region --- DTOs ---

// MarkReadInput is the body of the mark-as-read request.
type MarkReadInput struct {
	FriendID uint `json:"friend_id" binding:"required" example:"2"`
}

// MarkReadResponse acknowledges a mark-as-read request.
type MarkReadResponse struct {
	Message string `json:"message" example:"Messages marked as read"`
	Updated int64  `json:"updated" example:"3"`
}

// OnlineResponse reports how many users have a live chat connection.
type OnlineResponse struct {
	Online int `json:"online" example:"4"`
}

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
}

// endregion

// WSConfig tunes the websocket transport.
type WSConfig struct {
	WriteTimeout    time.Duration
	MaxMessageBytes int64
}

// ChatHandler serves the chat websocket and the chat history API.
type ChatHandler struct {
	chat     *service.ChatService
	history  *service.HistoryService
	registry *hub.Registry
	upgrader websocket.Upgrader
	wsCfg    WSConfig
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(chat *service.ChatService, history *service.HistoryService, registry *hub.Registry, wsCfg WSConfig) *ChatHandler {
	return &ChatHandler{
		chat:     chat,
		history:  history,
		registry: registry,
		upgrader: hub.NewUpgrader(),
		wsCfg:    wsCfg,
	}
}

// RegisterRoutes mounts the chat routes under group. The websocket route
// authenticates with its own token; the rest go through authMiddleware.
func (h *ChatHandler) RegisterRoutes(group *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	chatRoutes := group.Group("/chat")
	{
		chatRoutes.GET("/ws", h.ServeWS)
		chatRoutes.GET("/ws/:token", h.ServeWS)
	}

	protected := chatRoutes.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/history", h.GetLobbyHistory)
		protected.GET("/private/history", h.GetPrivateHistory)
		protected.POST("/private/read", h.MarkRead)
		protected.GET("/unread", h.GetUnreadCounts)
		protected.GET("/online", h.GetOnlineCount)
	}
}

// ServeWS godoc
// @Summary      Open a chat connection
// @Description  Upgrades to a websocket. The token goes in the path (or the token query parameter). An invalid token closes the socket with code 1008.
// @Tags         chat
// @Param        token path string true "Access token"
// @Success      101
// @Router       /chat/ws/{token} [get]
func (h *ChatHandler) ServeWS(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		token = c.Query("token")
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		l := logging.Ctx(c.Request.Context())
		l.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn := hub.NewWSConn(raw, h.wsCfg.WriteTimeout, h.wsCfg.MaxMessageBytes)

	l := logging.Ctx(c.Request.Context()).With().Str(logging.FieldConnID, conn.ID).Logger()
	ctx := logging.WithLogger(c.Request.Context(), l)

	switch err := h.chat.Serve(ctx, conn, token); {
	case err == nil:
	case errors.Is(err, service.ErrAuthFailed):
		l.Warn().Err(err).Msg("chat connection rejected")
	default:
		l.Info().Err(err).Msg("chat connection ended")
	}
}

// GetLobbyHistory godoc
// @Summary      Get lobby history
// @Description  Returns the most recent lobby messages, skipping the newest `skip`, in chronological order.
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Param        skip  query int false "Number of newest messages to skip" default(0)
// @Param        limit query int false "Maximum number of messages" default(50)
// @Success      200 {array}  service.Envelope
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /chat/history [get]
func (h *ChatHandler) GetLobbyHistory(c *gin.Context) {
	w := parseWindow(c)

	messages, err := h.history.LobbyHistory(c.Request.Context(), w.Skip, w.Limit)
	if err != nil {
		respondError(c, err, "Failed to load chat history")
		return
	}

	c.JSON(http.StatusOK, messages)
}

// GetPrivateHistory godoc
// @Summary      Get private history
// @Description  Returns the conversation with a friend in both directions, paginated like the lobby history.
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Param        friend_id query int true  "Friend's user ID"
// @Param        skip      query int false "Number of newest messages to skip" default(0)
// @Param        limit     query int false "Maximum number of messages" default(50)
// @Success      200 {array}  service.Envelope
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse "Friend not found"
// @Router       /chat/private/history [get]
func (h *ChatHandler) GetPrivateHistory(c *gin.Context) {
	friendID, err := strconv.ParseUint(c.Query("friend_id"), 10, 32)
	if err != nil || friendID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid friend ID"})
		return
	}
	w := parseWindow(c)

	messages, err := h.history.PrivateHistory(c.Request.Context(), auth.UserID(c), uint(friendID), w.Skip, w.Limit)
	if err != nil {
		respondError(c, err, "Failed to load private history")
		return
	}

	c.JSON(http.StatusOK, messages)
}

// MarkRead godoc
// @Summary      Mark a private thread as read
// @Description  Marks every unread message the friend sent to the current user as read.
// @Tags         chat
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body MarkReadInput true "Friend to mark read"
// @Success      200 {object} MarkReadResponse
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse "Friend not found"
// @Router       /chat/private/read [post]
func (h *ChatHandler) MarkRead(c *gin.Context) {
	var input MarkReadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.history.MarkRead(c.Request.Context(), auth.UserID(c), input.FriendID)
	if err != nil {
		respondError(c, err, "Failed to mark messages as read")
		return
	}

	c.JSON(http.StatusOK, MarkReadResponse{Message: "Messages marked as read", Updated: updated})
}

// GetUnreadCounts godoc
// @Summary      Get unread counts
// @Description  Maps each sender with unread private messages for the current user to the number of those messages.
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]int
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /chat/unread [get]
func (h *ChatHandler) GetUnreadCounts(c *gin.Context) {
	counts, err := h.history.UnreadCounts(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to load unread counts")
		return
	}

	c.JSON(http.StatusOK, counts)
}

// GetOnlineCount godoc
// @Summary      Get online user count
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} OnlineResponse
// @Router       /chat/online [get]
func (h *ChatHandler) GetOnlineCount(c *gin.Context) {
	c.JSON(http.StatusOK, OnlineResponse{Online: h.registry.Count()})
}

// region --- Helpers ---

func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Friend not found"})
	case errors.Is(err, service.ErrInvalidFriend):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		l := logging.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// endregion

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Raimpz/simple-chat/internal/middleware"
	"github.com/Raimpz/simple-chat/internal/models"
	"github.com/Raimpz/simple-chat/internal/repository"
	"github.com/Raimpz/simple-chat/internal/service"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Auth     *service.AuthService
	Users    *service.UserService
	Friends  *service.FriendService
	Messages *service.MessageService

	Tokens    middleware.TokenVerifier
	UserStore repository.UserStore

	// WebSocket upgrades GET /ws; nil disables the route.
	WebSocket gin.HandlerFunc
	Checks    []HealthCheck

	Environment string
}

type HandlerSet struct {
	log      zerolog.Logger
	deps     Deps
	auth     *service.AuthService
	users    *service.UserService
	friends  *service.FriendService
	messages *service.MessageService
}

func NewHandlerSet(log zerolog.Logger, deps Deps) HandlerSet {
	return HandlerSet{
		log:      log,
		deps:     deps,
		auth:     deps.Auth,
		users:    deps.Users,
		friends:  deps.Friends,
		messages: deps.Messages,
	}
}

// Register mounts everything. REST routes live under /api on router.
func (h HandlerSet) Register(router gin.IRouter) {
	router.GET("/healthz", h.Health)
	if h.deps.WebSocket != nil {
		router.GET("/ws", h.deps.WebSocket)
	}

	api := router.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", h.RegisterUser)
	auth.POST("/verify", h.Verify)
	auth.POST("/login", h.Login)
	auth.POST("/forgot-password", h.ForgotPassword)
	auth.POST("/reset-password", h.ResetPassword)

	protected := api.Group("")
	protected.Use(middleware.Auth(h.deps.Tokens, h.deps.UserStore))

	users := protected.Group("/users")
	users.GET("/me", h.Me)
	users.GET("/search", h.SearchUsers)
	users.PUT("/me/avatar", h.UploadAvatar)
	users.GET("/:id/avatar", h.Avatar)

	friends := protected.Group("/friends")
	friends.GET("", h.ListFriends)
	friends.POST("/request/:receiverId", h.SendFriendRequest)
	friends.GET("/pending", h.ListPendingRequests)
	friends.POST("/respond/:requestId", h.RespondFriendRequest)

	protected.GET("/messages/:friendId", h.History)
}

// respondError maps service errors to status codes. Not-found and conflict
// share 400 with validation failures.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	if svcErr, ok := service.AsError(err); ok {
		status := http.StatusBadRequest
		switch svcErr.Kind {
		case service.KindUnauthorized:
			status = http.StatusUnauthorized
		case service.KindForbidden:
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": svcErr.Reason})
		return
	}

	h.log.Error().
		Err(err).
		Str("path", c.FullPath()).
		Str("request_id", middleware.RequestIDFrom(c)).
		Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func currentUser(c *gin.Context) (models.Identity, bool) {
	identity, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return identity, ok
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

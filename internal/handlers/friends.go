package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Raimpz/simple-chat/internal/models"
)

func (h HandlerSet) SendFriendRequest(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}
	receiverID, ok := idParam(c, "receiverId")
	if !ok {
		return
	}

	view, err := h.friends.SendRequest(c.Request.Context(), identity.UserID, receiverID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h HandlerSet) ListPendingRequests(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}

	views, err := h.friends.ListPending(c.Request.Context(), identity.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

type respondRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h HandlerSet) RespondFriendRequest(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}
	requestID, ok := idParam(c, "requestId")
	if !ok {
		return
	}

	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	status := models.FriendStatus(strings.ToUpper(strings.TrimSpace(req.Status)))

	view, err := h.friends.Respond(c.Request.Context(), identity.UserID, requestID, status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h HandlerSet) ListFriends(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}

	friends, err := h.friends.ListFriends(c.Request.Context(), identity.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, friends)
}

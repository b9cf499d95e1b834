package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Raimpz/simple-chat/internal/service"
)

// History returns one page of the conversation with :friendId, oldest first
// within the page. Page 0 is the newest.
func (h HandlerSet) History(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}
	friendID, ok := idParam(c, "friendId")
	if !ok {
		return
	}
	page, ok := intQuery(c, "page", 0)
	if !ok {
		return
	}
	size, ok := intQuery(c, "size", service.DefaultPageSize)
	if !ok {
		return
	}

	views, err := h.messages.History(c.Request.Context(), identity.UserID, friendID, page, size)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Raimpz/simple-chat/internal/media/sniffer"
	"github.com/Raimpz/simple-chat/internal/service"
)

func (h HandlerSet) Me(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.users.Me(c.Request.Context(), identity.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h HandlerSet) SearchUsers(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}

	users, err := h.users.Search(c.Request.Context(), identity.UserID, c.Query("query"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// UploadAvatar takes a multipart "file" field and replaces the caller's
// avatar.
func (h HandlerSet) UploadAvatar(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	err = h.users.SetAvatar(c.Request.Context(), identity.UserID, service.AvatarUpload{
		Body:         file,
		Size:         header.Size,
		DeclaredType: sniffer.MimeTypeFromHTTP(http.Header(header.Header)),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) Avatar(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}

	obj, err := h.users.Avatar(c.Request.Context(), userID)
	if err != nil {
		if service.IsKind(err, service.KindNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "avatar not found"})
			return
		}
		h.respondError(c, err)
		return
	}
	defer obj.Body.Close()

	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Body, map[string]string{
		"Cache-Control": "private, max-age=300",
	})
}

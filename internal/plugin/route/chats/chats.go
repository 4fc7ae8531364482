package chats

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	registryroute "github.com/chirino/social-service/internal/registry/route"
	registrystore "github.com/chirino/social-service/internal/registry/store"
	"github.com/chirino/social-service/internal/security"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Order: 110,
		Loader: func(r *gin.Engine) error {
			return nil // routes are mounted by the serve command after store init
		},
	})
}

// MountRoutes mounts direct message routes. All of them require auth.
func MountRoutes(r *gin.Engine, store registrystore.SocialStore, auth gin.HandlerFunc) {
	g := r.Group("/v1/chat", auth)

	g.POST("", func(c *gin.Context) {
		sendMessage(c, store)
	})
	g.GET("", func(c *gin.Context) {
		getConversation(c, store)
	})
}

func sendMessage(c *gin.Context, store registrystore.SocialStore) {
	userID := security.GetUserID(c)
	var req struct {
		To      string `json:"to" binding:"required"`
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
		return
	}

	chat, err := store.SendMessage(c.Request.Context(), userID, registrystore.SendMessageRequest{To: req.To, Message: req.Message})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chatMessage": chat})
}

func getConversation(c *gin.Context, store registrystore.SocialStore) {
	userID := security.GetUserID(c)
	otherUserID := c.Query("otherUserId")
	if otherUserID == "" {
		handleError(c, &registrystore.ValidationError{Field: "otherUserId", Message: "is required"})
		return
	}
	opts, err := pageOptions(c)
	if err != nil {
		handleError(c, err)
		return
	}

	page, err := store.GetConversation(c.Request.Context(), userID, otherUserID, opts)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chatMessage": page})
}

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var validation *registrystore.ValidationError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": validation.Field})
	default:
		log.Error("Chat request failed", "method", c.Request.Method, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func pageOptions(c *gin.Context) (registrystore.PageOptions, error) {
	limit, err := queryInt(c, "limit", registrystore.DefaultLimit)
	if err != nil {
		return registrystore.PageOptions{}, err
	}
	page, err := queryInt(c, "page", registrystore.DefaultPage)
	if err != nil {
		return registrystore.PageOptions{}, err
	}
	return registrystore.PageOptions{SortBy: c.Query("sortBy"), Limit: limit, Page: page}, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, &registrystore.ValidationError{Field: key, Message: "must be an integer"}
	}
	return i, nil
}

package tweets

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/chirino/social-service/internal/model"
	registryroute "github.com/chirino/social-service/internal/registry/route"
	registrystore "github.com/chirino/social-service/internal/registry/store"
	"github.com/chirino/social-service/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Order: 100,
		Loader: func(r *gin.Engine) error {
			return nil // routes are mounted by the serve command after store init
		},
	})
}

// MountRoutes mounts tweet routes. Reads are public, mutations require auth.
// Called after store initialization so the store is available.
func MountRoutes(r *gin.Engine, store registrystore.SocialStore, auth gin.HandlerFunc) {
	g := r.Group("/v1/tweet")

	g.GET("", func(c *gin.Context) {
		listTweets(c, store)
	})
	g.GET("/:tweetId", func(c *gin.Context) {
		getTweet(c, store)
	})
	g.POST("", auth, func(c *gin.Context) {
		createTweet(c, store)
	})
	g.PUT("/:tweetId", auth, func(c *gin.Context) {
		updateTweet(c, store)
	})
	g.DELETE("/:tweetId", auth, func(c *gin.Context) {
		deleteTweet(c, store)
	})
	g.POST("/:tweetId/like", auth, func(c *gin.Context) {
		likeTweet(c, store)
	})
	g.DELETE("/:tweetId/like", auth, func(c *gin.Context) {
		unlikeTweet(c, store)
	})
}

func listTweets(c *gin.Context, store registrystore.SocialStore) {
	filter := registrystore.TweetFilter{User: queryPtr(c, "user")}
	if t := queryPtr(c, "type"); t != nil {
		tweetType := model.TweetType(*t)
		if !tweetType.Valid() {
			handleError(c, &registrystore.ValidationError{Field: "type", Message: "must be one of tweet, retweet, threaded"})
			return
		}
		filter.Type = &tweetType
	}
	opts, err := pageOptions(c)
	if err != nil {
		handleError(c, err)
		return
	}

	page, err := store.ListTweets(c.Request.Context(), filter, opts)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tweets": page})
}

func getTweet(c *gin.Context, store registrystore.SocialStore) {
	tweetID, ok := tweetIDParam(c)
	if !ok {
		return
	}
	tweet, err := store.GetTweet(c.Request.Context(), tweetID)
	if err != nil {
		handleError(c, err)
		return
	}
	// An absent tweet is reported as null rather than 404.
	c.JSON(http.StatusOK, gin.H{"tweet": tweet})
}

func createTweet(c *gin.Context, store registrystore.SocialStore) {
	userID := security.GetUserID(c)
	var req struct {
		TweetText      string  `json:"tweetText"`
		Type           string  `json:"type" binding:"required"`
		ThreadedTweet  *string `json:"threadedTweet"`
		RetweetedTweet *string `json:"retweetedTweet"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
		return
	}

	threaded, err := parseRef("threadedTweet", req.ThreadedTweet)
	if err != nil {
		handleError(c, err)
		return
	}
	retweeted, err := parseRef("retweetedTweet", req.RetweetedTweet)
	if err != nil {
		handleError(c, err)
		return
	}

	tweet, err := store.CreateTweet(c.Request.Context(), userID, registrystore.CreateTweetRequest{
		TweetText:      req.TweetText,
		Type:           model.TweetType(req.Type),
		ThreadedTweet:  threaded,
		RetweetedTweet: retweeted,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tweet": tweet})
}

func updateTweet(c *gin.Context, store registrystore.SocialStore) {
	userID := security.GetUserID(c)
	tweetID, ok := tweetIDParam(c)
	if !ok {
		return
	}
	var req struct {
		TweetText string `json:"tweetText" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": "tweetText"})
		return
	}

	tweet, err := store.UpdateTweet(c.Request.Context(), userID, tweetID, req.TweetText)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tweet": tweet})
}

func deleteTweet(c *gin.Context, store registrystore.SocialStore) {
	userID := security.GetUserID(c)
	tweetID, ok := tweetIDParam(c)
	if !ok {
		return
	}
	n, err := store.DeleteTweet(c.Request.Context(), userID, tweetID)
	if err != nil {
		handleError(c, err)
		return
	}
	if n == 0 {
		handleError(c, &registrystore.NotFoundError{Resource: "tweet", ID: tweetID.String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deletedCount": n})
}

func likeTweet(c *gin.Context, store registrystore.SocialStore) {
	userID := security.GetUserID(c)
	tweetID, ok := tweetIDParam(c)
	if !ok {
		return
	}
	tweet, err := store.LikeTweet(c.Request.Context(), userID, tweetID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tweet": tweet})
}

func unlikeTweet(c *gin.Context, store registrystore.SocialStore) {
	userID := security.GetUserID(c)
	tweetID, ok := tweetIDParam(c)
	if !ok {
		return
	}
	tweet, err := store.UnlikeTweet(c.Request.Context(), userID, tweetID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tweet": tweet})
}

func tweetIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("tweetId"))
	if err != nil {
		handleError(c, &registrystore.ValidationError{Field: "tweetId", Message: "must be a valid tweet id"})
		return uuid.Nil, false
	}
	return id, true
}

func parseRef(field string, v *string) (*uuid.UUID, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*v)
	if err != nil {
		return nil, &registrystore.ValidationError{Field: field, Message: "must be a valid tweet id"}
	}
	return &id, nil
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
		log.Error("Tweet request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func queryPtr(c *gin.Context, key string) *string {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	return &v
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

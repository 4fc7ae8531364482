package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/social-service/internal/config"
	"github.com/chirino/social-service/internal/model"
	registrymigrate "github.com/chirino/social-service/internal/registry/migrate"
	registrystore "github.com/chirino/social-service/internal/registry/store"
	"github.com/chirino/social-service/internal/security"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "mongo",
		Loader: func(ctx context.Context) (registrystore.SocialStore, error) {
			cfg := config.FromContext(ctx)
			opts := options.Client().ApplyURI(cfg.DBURL)
			if cfg.DBMaxOpenConns > 0 {
				opts.SetMaxPoolSize(uint64(cfg.DBMaxOpenConns))
				if security.DBPoolMaxConnections != nil {
					security.DBPoolMaxConnections.Set(float64(cfg.DBMaxOpenConns))
				}
			}
			if cfg.DBMaxIdleConns > 0 {
				opts.SetMinPoolSize(uint64(cfg.DBMaxIdleConns))
			}
			client, err := mongo.Connect(opts)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
			}
			if err := client.Ping(ctx, nil); err != nil {
				_ = client.Disconnect(context.Background())
				return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
			}
			return &MongoStore{
				client: client,
				db:     client.Database(databaseName(cfg)),
				cfg:    cfg,
			}, nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &mongoMigrator{}})
}

func databaseName(cfg *config.Config) string {
	if cfg.DBName != "" {
		return cfg.DBName
	}
	return "social_service"
}

type mongoMigrator struct{}

func (m *mongoMigrator) Name() string { return "mongo-schema" }
func (m *mongoMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || !cfg.DatastoreMigrateAtStart {
		return nil
	}
	if cfg.DatastoreType != "mongo" {
		return nil // skip if not using mongo
	}

	log.Info("Running migration", "name", m.Name())
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.DBURL))
	if err != nil {
		return fmt.Errorf("mongo migration: failed to connect: %w", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(databaseName(cfg))

	// Create collections with indexes
	collections := map[string][]mongo.IndexModel{
		"tweets": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "type", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
		},
		"chats": {
			{Keys: bson.D{{Key: "from_user_id", Value: 1}, {Key: "to_user_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		"users": nil,
	}

	for name, indexes := range collections {
		// Ensure collection exists; an already existing collection is not an error.
		_ = db.CreateCollection(ctx, name)
		if len(indexes) > 0 {
			if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
				return fmt.Errorf("mongo migration: failed to create indexes for %s: %w", name, err)
			}
		}
	}

	log.Info("MongoDB schema migration complete")
	return nil
}

// MongoStore implements SocialStore using MongoDB. Likes are embedded in the
// tweet document so that like, unlike and delete are single document updates.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	cfg    *config.Config
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

// --- MongoDB document types ---

type tweetDoc struct {
	ID             string    `bson:"_id"`
	UserID         string    `bson:"user_id"`
	TweetText      string    `bson:"tweet_text"`
	Type           string    `bson:"type"`
	Likes          []string  `bson:"likes"`
	ThreadedTweet  *string   `bson:"threaded_tweet_id,omitempty"`
	RetweetedTweet *string   `bson:"retweeted_tweet_id,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func (d tweetDoc) toModel() model.Tweet {
	likes := d.Likes
	if likes == nil {
		likes = []string{}
	}
	return model.Tweet{
		ID:             strToUUID(d.ID),
		User:           d.UserID,
		TweetText:      d.TweetText,
		Type:           model.TweetType(d.Type),
		Likes:          likes,
		ThreadedTweet:  ptrStrToUUID(d.ThreadedTweet),
		RetweetedTweet: ptrStrToUUID(d.RetweetedTweet),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type chatDoc struct {
	ID        string    `bson:"_id"`
	From      string    `bson:"from_user_id"`
	To        string    `bson:"to_user_id"`
	Message   string    `bson:"message"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d chatDoc) toModel() model.Chat {
	return model.Chat{
		ID:        strToUUID(d.ID),
		From:      d.From,
		To:        d.To,
		Message:   d.Message,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type userDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d userDoc) toModel() model.User {
	return model.User{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

// --- Collection accessors ---

func (s *MongoStore) tweets() *mongo.Collection { return s.db.Collection("tweets") }
func (s *MongoStore) chats() *mongo.Collection  { return s.db.Collection("chats") }
func (s *MongoStore) users() *mongo.Collection  { return s.db.Collection("users") }

// --- UUID helpers ---

func strToUUID(s string) uuid.UUID { u, _ := uuid.Parse(s); return u }
func ptrUUIDToStr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
func ptrStrToUUID(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	u := strToUUID(*s)
	return &u
}

// now is truncated to the millisecond precision of BSON dates.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func sortDoc(fields []registrystore.SortField) bson.D {
	d := bson.D{}
	for _, f := range fields {
		dir := 1
		if f.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: f.Column, Value: dir})
	}
	return d
}

// --- Tweets ---

func (s *MongoStore) CreateTweet(ctx context.Context, authorID string, req registrystore.CreateTweetRequest) (*model.Tweet, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.cfg != nil && s.cfg.StrictReferences {
		if parent := req.Parent(); parent != nil {
			n, err := s.tweets().CountDocuments(ctx, bson.M{"_id": parent.String()})
			if err != nil {
				return nil, fmt.Errorf("failed to check parent tweet: %w", err)
			}
			if n == 0 {
				field := "threadedTweet"
				if req.Type == model.TweetTypeRetweet {
					field = "retweetedTweet"
				}
				return nil, &registrystore.ValidationError{Field: field, Message: "references an unknown tweet"}
			}
		}
	}

	ts := now()
	doc := tweetDoc{
		ID:             uuid.NewString(),
		UserID:         authorID,
		TweetText:      req.TweetText,
		Type:           string(req.Type),
		Likes:          []string{},
		ThreadedTweet:  ptrUUIDToStr(req.ThreadedTweet),
		RetweetedTweet: ptrUUIDToStr(req.RetweetedTweet),
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	if _, err := s.tweets().InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create tweet: %w", err)
	}
	tweet := doc.toModel()
	return &tweet, nil
}

func (s *MongoStore) ListTweets(ctx context.Context, filter registrystore.TweetFilter, opts registrystore.PageOptions) (*registrystore.Page[model.PopulatedTweet], error) {
	sortFields, err := registrystore.ParseSortBy(opts.SortBy, registrystore.TweetSortFields, "_id")
	if err != nil {
		return nil, err
	}
	opts = opts.Normalized()

	q := bson.M{}
	if filter.User != nil {
		q["user_id"] = *filter.User
	}
	if filter.Type != nil {
		q["type"] = string(*filter.Type)
	}

	total, err := s.tweets().CountDocuments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to count tweets: %w", err)
	}
	findOpts := options.Find().
		SetSort(sortDoc(sortFields)).
		SetSkip(opts.Skip()).
		SetLimit(int64(opts.Limit))
	cursor, err := s.tweets().Find(ctx, q, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tweets: %w", err)
	}
	var docs []tweetDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode tweets: %w", err)
	}
	populated, err := s.populate(ctx, docs)
	if err != nil {
		return nil, err
	}
	return registrystore.NewPage(populated, total, opts), nil
}

func (s *MongoStore) GetTweet(ctx context.Context, tweetID uuid.UUID) (*model.PopulatedTweet, error) {
	var doc tweetDoc
	err := s.tweets().FindOne(ctx, bson.M{"_id": tweetID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tweet: %w", err)
	}
	return s.populateOne(ctx, doc)
}

func (s *MongoStore) UpdateTweet(ctx context.Context, userID string, tweetID uuid.UUID, tweetText string) (*model.Tweet, error) {
	if err := registrystore.ValidateTweetText(tweetText); err != nil {
		return nil, err
	}
	var doc tweetDoc
	err := s.tweets().FindOneAndUpdate(ctx,
		bson.M{"_id": tweetID.String(), "user_id": userID},
		bson.M{"$set": bson.M{"tweet_text": tweetText, "updated_at": now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "tweet", ID: tweetID.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update tweet: %w", err)
	}
	tweet := doc.toModel()
	return &tweet, nil
}

func (s *MongoStore) DeleteTweet(ctx context.Context, userID string, tweetID uuid.UUID) (int64, error) {
	res, err := s.tweets().DeleteOne(ctx, bson.M{"_id": tweetID.String(), "user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete tweet: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) LikeTweet(ctx context.Context, userID string, tweetID uuid.UUID) (*model.PopulatedTweet, error) {
	return s.updateLikes(ctx, tweetID, bson.M{"$addToSet": bson.M{"likes": userID}})
}

func (s *MongoStore) UnlikeTweet(ctx context.Context, userID string, tweetID uuid.UUID) (*model.PopulatedTweet, error) {
	return s.updateLikes(ctx, tweetID, bson.M{"$pull": bson.M{"likes": userID}})
}

func (s *MongoStore) updateLikes(ctx context.Context, tweetID uuid.UUID, update bson.M) (*model.PopulatedTweet, error) {
	var doc tweetDoc
	err := s.tweets().FindOneAndUpdate(ctx,
		bson.M{"_id": tweetID.String()},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "tweet", ID: tweetID.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update likes: %w", err)
	}
	return s.populateOne(ctx, doc)
}

func (s *MongoStore) populateOne(ctx context.Context, doc tweetDoc) (*model.PopulatedTweet, error) {
	populated, err := s.populate(ctx, []tweetDoc{doc})
	if err != nil {
		return nil, err
	}
	return &populated[0], nil
}

// populate resolves parents and user profiles with one $in query each.
func (s *MongoStore) populate(ctx context.Context, docs []tweetDoc) ([]model.PopulatedTweet, error) {
	tweets := make([]model.Tweet, 0, len(docs))
	for _, d := range docs {
		tweets = append(tweets, d.toModel())
	}
	if len(tweets) == 0 {
		return []model.PopulatedTweet{}, nil
	}

	parents := map[uuid.UUID]model.Tweet{}
	if parentIDs := registrystore.ParentIDs(tweets); len(parentIDs) > 0 {
		ids := make([]string, 0, len(parentIDs))
		for _, id := range parentIDs {
			ids = append(ids, id.String())
		}
		cursor, err := s.tweets().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return nil, fmt.Errorf("failed to load parent tweets: %w", err)
		}
		var parentDocs []tweetDoc
		if err := cursor.All(ctx, &parentDocs); err != nil {
			return nil, fmt.Errorf("failed to decode parent tweets: %w", err)
		}
		for _, d := range parentDocs {
			p := d.toModel()
			parents[p.ID] = p
		}
	}

	users := map[string]model.User{}
	if userIDs := registrystore.UserIDs(tweets); len(userIDs) > 0 {
		cursor, err := s.users().Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
		if err != nil {
			return nil, fmt.Errorf("failed to load users: %w", err)
		}
		var userDocs []userDoc
		if err := cursor.All(ctx, &userDocs); err != nil {
			return nil, fmt.Errorf("failed to decode users: %w", err)
		}
		for _, d := range userDocs {
			users[d.ID] = d.toModel()
		}
	}
	return registrystore.PopulateTweets(tweets, parents, users), nil
}

// --- Chats ---

func (s *MongoStore) SendMessage(ctx context.Context, fromID string, req registrystore.SendMessageRequest) (*model.Chat, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ts := now()
	doc := chatDoc{
		ID:        uuid.NewString(),
		From:      fromID,
		To:        req.To,
		Message:   req.Message,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if _, err := s.chats().InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	chat := doc.toModel()
	return &chat, nil
}

func (s *MongoStore) GetConversation(ctx context.Context, userID string, otherUserID string, opts registrystore.PageOptions) (*registrystore.Page[model.Chat], error) {
	sortFields, err := registrystore.ParseSortBy(opts.SortBy, registrystore.ChatSortFields, "_id")
	if err != nil {
		return nil, err
	}
	opts = opts.Normalized()

	q := bson.M{"$or": bson.A{
		bson.M{"from_user_id": userID, "to_user_id": otherUserID},
		bson.M{"from_user_id": otherUserID, "to_user_id": userID},
	}}
	total, err := s.chats().CountDocuments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	findOpts := options.Find().
		SetSort(sortDoc(sortFields)).
		SetSkip(opts.Skip()).
		SetLimit(int64(opts.Limit))
	cursor, err := s.chats().Find(ctx, q, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	var docs []chatDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	chats := make([]model.Chat, 0, len(docs))
	for _, d := range docs {
		chats = append(chats, d.toModel())
	}
	return registrystore.NewPage(chats, total, opts), nil
}

// --- Users ---

func (s *MongoStore) UpsertUser(ctx context.Context, userID string, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if err := registrystore.ValidateUserName(name); err != nil {
		return nil, err
	}
	ts := now()
	_, err := s.users().UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$set":         bson.M{"name": name, "updated_at": ts},
			"$setOnInsert": bson.M{"created_at": ts},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return s.GetUser(ctx, userID)
}

func (s *MongoStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var doc userDoc
	err := s.users().FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "user", ID: userID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user := doc.toModel()
	return &user, nil
}

// ClearAll removes every document. Used by tests.
func (s *MongoStore) ClearAll(ctx context.Context) error {
	for _, c := range []*mongo.Collection{s.tweets(), s.chats(), s.users()} {
		if _, err := c.DeleteMany(ctx, bson.M{}); err != nil {
			return err
		}
	}
	return nil
}

var _ registrystore.SocialStore = (*MongoStore)(nil)

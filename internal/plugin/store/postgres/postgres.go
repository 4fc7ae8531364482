package postgres

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
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "postgres",
		Loader: func(ctx context.Context) (registrystore.SocialStore, error) {
			cfg := config.FromContext(ctx)
			return open(ctx, cfg, postgres.Open(cfg.DBURL))
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &sqlMigrator{
		kind:   "postgres",
		schema: postgresSchemaSQL,
		dialector: func(cfg *config.Config) gorm.Dialector {
			return postgres.Open(cfg.DBURL)
		},
	}})
}

func open(ctx context.Context, cfg *config.Config, dialector gorm.Dialector) (*SQLStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", dialector.Name(), err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying db: %w", err)
	}
	maxOpen := cfg.DBMaxOpenConns
	if dialector.Name() == "sqlite" {
		// sqlite allows a single writer.
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(min(cfg.DBMaxIdleConns, maxOpen))
	if security.DBPoolMaxConnections != nil {
		security.DBPoolMaxConnections.Set(float64(maxOpen))
	}

	// Periodically update the open connections gauge.
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if security.DBPoolOpenConnections != nil {
					security.DBPoolOpenConnections.Set(float64(sqlDB.Stats().OpenConnections))
				}
			}
		}
	}()

	return &SQLStore{db: db, cfg: cfg}, nil
}

type sqlMigrator struct {
	kind      string
	schema    string
	dialector func(cfg *config.Config) gorm.Dialector
}

func (m *sqlMigrator) Name() string { return m.kind + "-schema" }
func (m *sqlMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || !cfg.DatastoreMigrateAtStart {
		return nil
	}
	if cfg.DatastoreType != m.kind {
		return nil
	}
	log.Info("Running migration", "name", m.Name())
	db, err := gorm.Open(m.dialector(cfg), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("migration: failed to connect: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if _, err := sqlDB.ExecContext(ctx, m.schema); err != nil {
		return fmt.Errorf("migration: failed to execute schema: %w", err)
	}
	log.Info("Schema migration complete", "datastore", m.kind)
	return nil
}

// SQLStore implements SocialStore using GORM. It serves both PostgreSQL and SQLite.
type SQLStore struct {
	db  *gorm.DB
	cfg *config.Config
}

func now() time.Time {
	// postgres keeps microseconds; truncate so returned records match what is read back.
	return time.Now().UTC().Truncate(time.Microsecond)
}

// translateError maps constraint violations to validation errors.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" {
		return &registrystore.ValidationError{Field: "type", Message: "must be one of tweet, retweet, threaded"}
	}
	return err
}

func orderBy(fields []registrystore.SortField) clause.OrderBy {
	var ob clause.OrderBy
	for _, f := range fields {
		ob.Columns = append(ob.Columns, clause.OrderByColumn{Column: clause.Column{Name: f.Column}, Desc: f.Desc})
	}
	return ob
}

// --- Tweets ---

func (s *SQLStore) CreateTweet(ctx context.Context, authorID string, req registrystore.CreateTweetRequest) (*model.Tweet, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.cfg != nil && s.cfg.StrictReferences {
		if parent := req.Parent(); parent != nil {
			var n int64
			if err := s.db.WithContext(ctx).Model(&model.Tweet{}).Where("id = ?", *parent).Count(&n).Error; err != nil {
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
	tweet := &model.Tweet{
		ID:             uuid.New(),
		User:           authorID,
		TweetText:      req.TweetText,
		Type:           req.Type,
		ThreadedTweet:  req.ThreadedTweet,
		RetweetedTweet: req.RetweetedTweet,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	if err := s.db.WithContext(ctx).Create(tweet).Error; err != nil {
		return nil, fmt.Errorf("failed to create tweet: %w", translateError(err))
	}
	tweet.Likes = []string{}
	return tweet, nil
}

func (s *SQLStore) ListTweets(ctx context.Context, filter registrystore.TweetFilter, opts registrystore.PageOptions) (*registrystore.Page[model.PopulatedTweet], error) {
	sortFields, err := registrystore.ParseSortBy(opts.SortBy, registrystore.TweetSortFields, "id")
	if err != nil {
		return nil, err
	}
	opts = opts.Normalized()

	q := s.db.WithContext(ctx).Model(&model.Tweet{})
	if filter.User != nil {
		q = q.Where("user_id = ?", *filter.User)
	}
	if filter.Type != nil {
		q = q.Where("type = ?", string(*filter.Type))
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count tweets: %w", err)
	}
	var tweets []model.Tweet
	err = q.Session(&gorm.Session{}).
		Clauses(orderBy(sortFields)).
		Offset(int(opts.Skip())).
		Limit(opts.Limit).
		Find(&tweets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tweets: %w", err)
	}
	populated, err := s.populate(ctx, tweets)
	if err != nil {
		return nil, err
	}
	return registrystore.NewPage(populated, total, opts), nil
}

func (s *SQLStore) GetTweet(ctx context.Context, tweetID uuid.UUID) (*model.PopulatedTweet, error) {
	var tweet model.Tweet
	result := s.db.WithContext(ctx).Where("id = ?", tweetID).Limit(1).Find(&tweet)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get tweet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	populated, err := s.populate(ctx, []model.Tweet{tweet})
	if err != nil {
		return nil, err
	}
	return &populated[0], nil
}

func (s *SQLStore) UpdateTweet(ctx context.Context, userID string, tweetID uuid.UUID, tweetText string) (*model.Tweet, error) {
	if err := registrystore.ValidateTweetText(tweetText); err != nil {
		return nil, err
	}
	result := s.db.WithContext(ctx).Model(&model.Tweet{}).
		Where("id = ? AND user_id = ?", tweetID, userID).
		Updates(map[string]interface{}{"tweet_text": tweetText, "updated_at": now()})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update tweet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, &registrystore.NotFoundError{Resource: "tweet", ID: tweetID.String()}
	}

	var tweet model.Tweet
	if err := s.db.WithContext(ctx).Where("id = ?", tweetID).First(&tweet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &registrystore.NotFoundError{Resource: "tweet", ID: tweetID.String()}
		}
		return nil, fmt.Errorf("failed to reload tweet: %w", err)
	}
	likes, err := s.likesOf(ctx, []uuid.UUID{tweetID})
	if err != nil {
		return nil, err
	}
	tweet.Likes = likes[tweetID]
	if tweet.Likes == nil {
		tweet.Likes = []string{}
	}
	return &tweet, nil
}

func (s *SQLStore) DeleteTweet(ctx context.Context, userID string, tweetID uuid.UUID) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", tweetID, userID).Delete(&model.Tweet{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		if deleted == 0 {
			return nil
		}
		return tx.Where("tweet_id = ?", tweetID).Delete(&model.TweetLike{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete tweet: %w", err)
	}
	return deleted, nil
}

func (s *SQLStore) LikeTweet(ctx context.Context, userID string, tweetID uuid.UUID) (*model.PopulatedTweet, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tweetExists(tx, tweetID); err != nil {
			return err
		}
		like := model.TweetLike{TweetID: tweetID, UserID: userID, CreatedAt: now()}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error
	})
	if err != nil {
		return nil, err
	}
	return s.refreshed(ctx, tweetID)
}

func (s *SQLStore) UnlikeTweet(ctx context.Context, userID string, tweetID uuid.UUID) (*model.PopulatedTweet, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tweetExists(tx, tweetID); err != nil {
			return err
		}
		return tx.Where("tweet_id = ? AND user_id = ?", tweetID, userID).Delete(&model.TweetLike{}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.refreshed(ctx, tweetID)
}

func tweetExists(tx *gorm.DB, tweetID uuid.UUID) error {
	var n int64
	if err := tx.Model(&model.Tweet{}).Where("id = ?", tweetID).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check tweet: %w", err)
	}
	if n == 0 {
		return &registrystore.NotFoundError{Resource: "tweet", ID: tweetID.String()}
	}
	return nil
}

func (s *SQLStore) refreshed(ctx context.Context, tweetID uuid.UUID) (*model.PopulatedTweet, error) {
	tweet, err := s.GetTweet(ctx, tweetID)
	if err != nil {
		return nil, err
	}
	if tweet == nil {
		return nil, &registrystore.NotFoundError{Resource: "tweet", ID: tweetID.String()}
	}
	return tweet, nil
}

// populate loads likes, parents and user profiles for tweets in three batched queries.
func (s *SQLStore) populate(ctx context.Context, tweets []model.Tweet) ([]model.PopulatedTweet, error) {
	if len(tweets) == 0 {
		return []model.PopulatedTweet{}, nil
	}
	parentIDs := registrystore.ParentIDs(tweets)
	parents := map[uuid.UUID]model.Tweet{}
	if len(parentIDs) > 0 {
		var rows []model.Tweet
		if err := s.db.WithContext(ctx).Where("id IN ?", parentIDs).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load parent tweets: %w", err)
		}
		for _, p := range rows {
			parents[p.ID] = p
		}
	}

	ids := make([]uuid.UUID, 0, len(tweets)+len(parents))
	for _, t := range tweets {
		ids = append(ids, t.ID)
	}
	for id := range parents {
		ids = append(ids, id)
	}
	likes, err := s.likesOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range tweets {
		tweets[i].Likes = likes[tweets[i].ID]
	}
	for id, p := range parents {
		p.Likes = likes[id]
		parents[id] = p
	}

	users := map[string]model.User{}
	if userIDs := registrystore.UserIDs(tweets); len(userIDs) > 0 {
		var rows []model.User
		if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load users: %w", err)
		}
		for _, u := range rows {
			users[u.ID] = u
		}
	}
	return registrystore.PopulateTweets(tweets, parents, users), nil
}

func (s *SQLStore) likesOf(ctx context.Context, tweetIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	var rows []model.TweetLike
	err := s.db.WithContext(ctx).
		Where("tweet_id IN ?", tweetIDs).
		Order("created_at, user_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load likes: %w", err)
	}
	out := map[uuid.UUID][]string{}
	for _, l := range rows {
		out[l.TweetID] = append(out[l.TweetID], l.UserID)
	}
	return out, nil
}

// --- Chats ---

func (s *SQLStore) SendMessage(ctx context.Context, fromID string, req registrystore.SendMessageRequest) (*model.Chat, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ts := now()
	chat := &model.Chat{
		ID:        uuid.New(),
		From:      fromID,
		To:        req.To,
		Message:   req.Message,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.db.WithContext(ctx).Create(chat).Error; err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return chat, nil
}

func (s *SQLStore) GetConversation(ctx context.Context, userID string, otherUserID string, opts registrystore.PageOptions) (*registrystore.Page[model.Chat], error) {
	sortFields, err := registrystore.ParseSortBy(opts.SortBy, registrystore.ChatSortFields, "id")
	if err != nil {
		return nil, err
	}
	opts = opts.Normalized()

	q := s.db.WithContext(ctx).Model(&model.Chat{}).
		Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)",
			userID, otherUserID, otherUserID, userID)

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	var chats []model.Chat
	err = q.Session(&gorm.Session{}).
		Clauses(orderBy(sortFields)).
		Offset(int(opts.Skip())).
		Limit(opts.Limit).
		Find(&chats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return registrystore.NewPage(chats, total, opts), nil
}

// --- Users ---

func (s *SQLStore) UpsertUser(ctx context.Context, userID string, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if err := registrystore.ValidateUserName(name); err != nil {
		return nil, err
	}
	ts := now()
	user := &model.User{ID: userID, Name: name, CreatedAt: ts, UpdatedAt: ts}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return s.GetUser(ctx, userID)
}

func (s *SQLStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &registrystore.NotFoundError{Resource: "user", ID: userID}
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ClearAll removes every row. Used by tests.
func (s *SQLStore) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"tweet_likes", "tweets", "chats", "users"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ registrystore.SocialStore = (*SQLStore)(nil)

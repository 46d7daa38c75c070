package runner

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/cache"
	"github.com/seismolink/siteapi/internal/domain"
	"github.com/seismolink/siteapi/internal/mailer"
	"github.com/seismolink/siteapi/internal/mq"
	"github.com/seismolink/siteapi/internal/repository/mongodb"
	"github.com/seismolink/siteapi/internal/repository/sqlite"
)

// Store bundles the repositories of whichever backend DatabaseURI selects
type Store struct {
	Backend      string
	Messages     domain.MessageRepository
	Applications domain.ApplicationRepository
	Analytics    domain.AnalyticsRepository

	pinger domain.Pinger
	close  func(context.Context) error
}

// Ping checks the backend is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.pinger.Ping(ctx)
}

// Close releases the backend connection
func (s *Store) Close(ctx context.Context) error {
	return s.close(ctx)
}

// OpenStore connects to MongoDB for mongodb:// URIs and to a SQLite file
// otherwise. With migrate set, indexes or migrations are applied first.
func OpenStore(ctx context.Context, cfg *Config, migrate bool, logger *zap.Logger) (*Store, error) {
	if cfg.IsMongo() {
		client, err := mongodb.OpenConnection(ctx, cfg.DatabaseURI)
		if err != nil {
			return nil, err
		}

		name := cfg.DBName
		if name == "" {
			name = mongodb.DefaultDatabase
		}
		db := client.Database(name)

		if migrate {
			if err := mongodb.EnsureIndexes(ctx, db, logger); err != nil {
				_ = client.Disconnect(context.Background())
				return nil, err
			}
		}

		repos := mongodb.NewRepositories(client, db)
		logger.Info("using MongoDB", zap.String("database", name))

		return &Store{
			Backend:      "mongodb",
			Messages:     repos.Messages,
			Applications: repos.Applications,
			Analytics:    repos.Analytics,
			pinger:       repos,
			close:        repos.Close,
		}, nil
	}

	db, err := sqlite.OpenConnection(cfg.DatabaseURI)
	if err != nil {
		return nil, err
	}

	if migrate {
		if err := sqlite.RunMigrations(db, logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	repos := sqlite.NewRepositories(db)
	logger.Info("using SQLite database", zap.String("path", cfg.DatabaseURI))

	return &Store{
		Backend:      "sqlite",
		Messages:     repos.Messages,
		Applications: repos.Applications,
		Analytics:    repos.Analytics,
		pinger:       repos,
		close:        repos.Close,
	}, nil
}

// RedisPinger adapts a redis client to domain.Pinger
type RedisPinger struct {
	Client *redis.Client
}

func (p RedisPinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}

// OpenRedis connects to REDIS_URL. It returns nil when Redis is not configured.
func OpenRedis(ctx context.Context, cfg *Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return client, nil
}

// NewCache picks the admin view cache: none when disabled, Redis when a
// client is given and process memory otherwise
func NewCache(cfg *Config, rdb *redis.Client) cache.Cache {
	switch {
	case cfg.DisableCache:
		return cache.NewNoOpCache()
	case rdb != nil:
		return cache.NewRedisCache(rdb)
	default:
		return cache.NewMemoryCache()
	}
}

// NewMailSender returns an SMTP sender when credentials are set. Without
// them mail is logged and dropped so the API still works in development.
func NewMailSender(cfg *Config, logger *zap.Logger) (mailer.Sender, error) {
	if !cfg.SMTPConfigured() {
		logger.Warn("SMTP not configured, emails will be logged only")
		return mailer.NewLogSender(logger), nil
	}

	sender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.EmailUser,
		Password: cfg.EmailPass,
		From:     cfg.EmailFrom,
	}, logger)
	if err != nil {
		return nil, err
	}

	return sender, nil
}

// NewPublisher connects to RabbitMQ when configured. A broker that cannot be
// reached is logged and replaced by a no-op publisher.
func NewPublisher(cfg *Config, logger *zap.Logger) mq.Publisher {
	if cfg.RabbitMQURL == "" {
		return mq.NoopPublisher{}
	}

	p, err := mq.NewPublisher(mq.Config{URL: cfg.RabbitMQURL}, logger)
	if err != nil {
		logger.Warn("event publishing disabled", zap.Error(err))
		return mq.NoopPublisher{}
	}

	logger.Info("publishing events to RabbitMQ", zap.String("exchange", mq.ExchangeName))
	return p
}

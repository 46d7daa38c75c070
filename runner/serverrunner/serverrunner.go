package serverrunner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seismolink/siteapi/internal/api"
	"github.com/seismolink/siteapi/internal/api/handlers"
	"github.com/seismolink/siteapi/internal/auth"
	"github.com/seismolink/siteapi/internal/cache"
	"github.com/seismolink/siteapi/internal/catalog"
	"github.com/seismolink/siteapi/internal/domain"
	"github.com/seismolink/siteapi/internal/heartbeat"
	"github.com/seismolink/siteapi/internal/mailer"
	"github.com/seismolink/siteapi/internal/mq"
	"github.com/seismolink/siteapi/internal/queue"
	"github.com/seismolink/siteapi/internal/service"
	"github.com/seismolink/siteapi/internal/validate"
	"github.com/seismolink/siteapi/runner"
	"github.com/seismolink/siteapi/tlmt"
)

const shutdownTimeout = 10 * time.Second

// ServerRunner runs the HTTP API, the heartbeat monitor and, when mail is
// queued, an embedded mail worker
type ServerRunner struct {
	cfg       *runner.Config
	logger    *zap.Logger
	srv       *http.Server
	store     *runner.Store
	rdb       *redis.Client
	cache     cache.Cache
	queue     *queue.Queue
	worker    *queue.Worker
	events    mq.Publisher
	telemetry tlmt.Telemetry
	hbMonitor *heartbeat.Monitor
}

// New creates a new ServerRunner
func New(cfg *runner.Config, logger *zap.Logger) (runner.Runner, error) {
	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s := &ServerRunner{cfg: cfg, logger: logger}

	ok := false
	defer func() {
		if !ok {
			_ = s.Close(context.Background())
		}
	}()

	var err error

	s.store, err = runner.OpenStore(initCtx, cfg, true, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s.rdb, err = runner.OpenRedis(initCtx, cfg)
	if err != nil {
		return nil, err
	}

	checks := map[string]domain.Pinger{"database": s.store}

	s.cache = runner.NewCache(cfg, s.rdb)

	var attempts auth.AttemptStore
	if s.rdb != nil {
		attempts = auth.NewRedisAttemptStore(s.rdb)
		checks["redis"] = runner.RedisPinger{Client: s.rdb}
	} else {
		attempts = auth.NewMemoryAttemptStore()
	}

	limiterStore, err := api.NewLimiterStore(s.rdb)
	if err != nil {
		return nil, err
	}

	jobs, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// Mail
	smtp, err := runner.NewMailSender(cfg, logger)
	if err != nil {
		return nil, err
	}

	var sender mailer.Sender = smtp
	if cfg.MailQueue {
		s.queue, err = queue.New(&queue.Config{RedisURL: cfg.RedisURL}, logger)
		if err != nil {
			return nil, err
		}
		sender = s.queue

		s.worker, err = queue.NewWorker(&queue.WorkerConfig{
			RedisURL:    cfg.RedisURL,
			Concurrency: cfg.WorkerConcurrency,
		}, smtp, logger)
		if err != nil {
			return nil, err
		}
	}

	renderer, err := mailer.NewRenderer(cfg.SiteName)
	if err != nil {
		return nil, err
	}

	if cfg.AdminEmail == "" {
		logger.Warn("ADMIN_EMAIL not set, admin notifications are disabled")
	}

	s.events = runner.NewPublisher(cfg, logger)
	s.telemetry = runner.NewTelemetry(cfg, logger)

	// Services
	deps := service.Deps{
		Notifier:    service.NewNotifier(renderer, sender, cfg.AdminEmail, logger),
		Events:      s.events,
		Telemetry:   s.telemetry,
		Invalidator: cache.NewInvalidator(s.cache, logger),
		Logger:      logger,
	}
	v := validate.New()

	contactSvc := service.NewContactService(s.store.Messages, v, deps)
	messageSvc := service.NewMessageService(s.store.Messages, deps)
	appSvc := service.NewApplicationService(s.store.Applications, jobs, v, deps)
	analyticsSvc := service.NewAnalyticsService(s.store.Analytics, loc, deps)

	// Admin login
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, admin tokens will not survive a restart")
	}

	authenticator, err := auth.NewAuthenticator(auth.Config{
		AdminEmail:   cfg.AdminEmail,
		Password:     cfg.AdminPassword,
		PasswordHash: cfg.AdminPasswordHash,
	}, tokens, attempts, logger)
	if err != nil {
		return nil, err
	}

	// Heartbeat monitor
	s.hbMonitor = heartbeat.NewMonitor(checks, 0, logger)
	if mem, isMem := attempts.(*auth.MemoryAttemptStore); isMem {
		s.hbMonitor.AddSweep("login attempts", func() int {
			return mem.Sweep(auth.DefaultWindow)
		})
	}
	if mem, isMem := s.cache.(*cache.MemoryCache); isMem {
		s.hbMonitor.AddSweep("admin cache", mem.Sweep)
	}

	// Setup router
	router := api.NewRouter(api.Handlers{
		Health:       handlers.NewHealthHandler(checks, runner.Version, logger),
		Contact:      handlers.NewContactHandler(contactSvc, logger),
		Jobs:         handlers.NewJobHandler(appSvc, logger),
		Analytics:    handlers.NewAnalyticsHandler(analyticsSvc, s.cache, cfg.SecureCookie, logger),
		Auth:         handlers.NewAuthHandler(authenticator, logger),
		Messages:     handlers.NewMessageHandler(messageSvc, s.cache, logger),
		Applications: handlers.NewApplicationHandler(appSvc, s.cache, logger),
	})

	handler := router.Setup(api.Options{
		Verifier:     authenticator,
		LimiterStore: limiterStore,
		CORSOrigins:  cfg.CORSOrigins,
		TrustProxy:   cfg.TrustProxy,
		Logger:       logger,
	})

	// Create HTTP server
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	ok = true

	return s, nil
}

func loadCatalog(cfg *runner.Config) (*catalog.Catalog, error) {
	if cfg.JobsFile == "" {
		return catalog.Default()
	}
	return catalog.Load(cfg.JobsFile)
}

// Run starts the server
func (s *ServerRunner) Run(ctx context.Context) error {
	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		return s.hbMonitor.Run(ctx)
	})

	if s.worker != nil {
		egroup.Go(func() error {
			return s.worker.Run(ctx)
		})
	}

	egroup.Go(func() error {
		return s.startServer(ctx)
	})

	return egroup.Wait()
}

func (s *ServerRunner) startServer(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error shutting down server", zap.Error(err))
		}
	}()

	s.logger.Info("API server starting",
		zap.String("addr", s.cfg.Addr),
		zap.String("database", s.store.Backend),
		zap.Bool("redis", s.rdb != nil),
		zap.Bool("mail_queue", s.queue != nil),
	)

	err := s.srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Close cleans up resources
func (s *ServerRunner) Close(ctx context.Context) error {
	var errs []error

	if s.queue != nil {
		errs = append(errs, s.queue.Close())
	}
	if s.events != nil {
		errs = append(errs, s.events.Close())
	}
	if s.telemetry != nil {
		errs = append(errs, s.telemetry.Close())
	}

	// A redis-backed cache owns the client
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if _, owned := s.cache.(*cache.RedisCache); !owned && s.rdb != nil {
		errs = append(errs, s.rdb.Close())
	}

	if s.store != nil {
		errs = append(errs, s.store.Close(ctx))
	}

	return errors.Join(errs...)
}

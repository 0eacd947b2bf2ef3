package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mathfly-quiz-service/internal/app"
	"mathfly-quiz-service/internal/config"
	"mathfly-quiz-service/internal/domain"
	"mathfly-quiz-service/internal/infra/memory"
	"mathfly-quiz-service/internal/infra/postgres"
	"mathfly-quiz-service/internal/infra/rabbitmq"
	rediscache "mathfly-quiz-service/internal/infra/redis"
	"mathfly-quiz-service/internal/infra/sqlite"
	"mathfly-quiz-service/internal/logging"
)

// progressBackend is implemented by both the postgres and in-memory stores.
type progressBackend interface {
	app.ProgressStore
	PhaseResults(ctx context.Context, userID string, limit int) ([]domain.PhaseResult, error)
	CountPhaseResults(ctx context.Context, userID string) (int, error)
	Ranking(ctx context.Context, limit int) ([]domain.RankingEntry, error)
	RememberUser(ctx context.Context, identity domain.Identity) error
}

type progressNotifier interface {
	app.ProgressNotifier
	Subscribe(ctx context.Context) (<-chan string, func(), error)
}

// runtime holds every adapter the commands share.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger

	pool        *pgxpool.Pool
	redisClient *redis.Client

	progress   progressBackend
	notifier   progressNotifier
	queue      app.OfflineQueue
	bank       *app.QuestionBank
	reconciler *app.Reconciler
	resync     *app.ResyncService

	closers []func() error
}

func loadRuntime(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger}
	if err := rt.connect(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) connect(ctx context.Context) error {
	cfg := rt.cfg

	if cfg.Redis.Addr != "" {
		rt.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, rt.redisClient.Close)
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		rt.pool = pool
		rt.closers = append(rt.closers, func() error { pool.Close(); return nil })
	}

	bundled, err := memory.NewBundledQuestionStore()
	if err != nil {
		return fmt.Errorf("load bundled questions: %w", err)
	}
	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var primary app.QuestionStore = bundled
	if rt.pool != nil {
		loader := postgres.NewQuestionStore(rt.pool)
		if rt.redisClient != nil {
			primary = rediscache.NewQuestionCache(rt.redisClient, loader, config.TTLDuration(cfg.Redis.TTL, questionTTL))
		} else {
			primary = memory.NewQuestionCache(loader, questionTTL)
		}
	}
	rt.bank = app.NewQuestionBank(primary, bundled, rt.logger)

	if rt.pool != nil {
		rt.progress = postgres.NewProgressStore(rt.pool)
	} else {
		rt.logger.Warn("postgres not configured, progress is kept in memory")
		rt.progress = memory.NewProgressStore()
	}

	if rt.redisClient != nil {
		rt.notifier = rediscache.NewNotifier(rt.redisClient)
	} else {
		rt.notifier = memory.NewNotifier()
	}

	if cfg.Offline.Path != "" {
		queue, err := sqlite.Open(cfg.Offline.Path)
		if err != nil {
			return fmt.Errorf("open offline queue: %w", err)
		}
		rt.queue = queue
		rt.closers = append(rt.closers, queue.Close)
	} else {
		rt.queue = memory.NewOfflineQueue()
	}

	opts := []app.ReconcilerOption{app.WithNotifier(rt.notifier)}
	if cfg.AMQP.URL != "" {
		publisher, err := rabbitmq.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			rt.logger.Warn("amqp unavailable, phase events disabled", zap.Error(err))
		} else {
			opts = append(opts, app.WithPublisher(publisher))
			rt.closers = append(rt.closers, publisher.Close)
		}
	}
	rt.reconciler = app.NewReconciler(rt.progress, rt.logger, opts...)
	rt.resync = app.NewResyncService(rt.queue, rt.reconciler, rt.logger)
	return nil
}

func (rt *runtime) engineDeps() app.EngineDeps {
	return app.EngineDeps{
		Questions: rt.bank,
		Recorder:  rt.reconciler,
		Queue:     rt.queue,
		Resync:    rt.resync,
		Logger:    rt.logger,
	}
}

func (rt *runtime) jwtSecret() (string, error) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return secret, nil
	}
	if rt.cfg.Auth.JWTSecret == "" {
		return "", fmt.Errorf("auth.jwt_secret not configured")
	}
	return rt.cfg.Auth.JWTSecret, nil
}

// Close releases adapters in reverse order of creation.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close adapter failed", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}

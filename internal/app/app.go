package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/audit"
	"github.com/Freeeeeet/mediwork_scheduler/internal/config"
	"github.com/Freeeeeet/mediwork_scheduler/internal/controller"
	"github.com/Freeeeeet/mediwork_scheduler/internal/controller/rest"
	"github.com/Freeeeeet/mediwork_scheduler/internal/locker"
	"github.com/Freeeeeet/mediwork_scheduler/internal/repository"
	"github.com/Freeeeeet/mediwork_scheduler/internal/repository/base"
	"github.com/Freeeeeet/mediwork_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Services сервисный слой, собранный поверх одного пула
type Services struct {
	Users       *service.UserService
	Slots       *service.SlotService
	Visits      *service.VisitService
	Recurring   *service.RecurringService
	Spontaneous *service.SpontaneousService
}

// App корень композиции: пул, сервисы, аудит, планировщик, HTTP и бот
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	pool       *pgxpool.Pool
	rabbitConn *amqp.Connection
	publisher  *audit.RabbitPublisher
	emitter    *audit.Emitter
	redis      *redis.Client

	Services  *Services
	scheduler *Scheduler
	server    *echo.Echo
	bot       *controller.BotController
}

// OpenPool создаёт пул соединений и проверяет доступность БД
func OpenPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DB_DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.DBMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	pool, err := OpenPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, logger: logger, pool: pool}

	if err := a.initAudit(); err != nil {
		a.Close(ctx)
		return nil, err
	}

	lock, err := a.initLocker(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Services = buildServices(pool, a.emitter, cfg, loc, logger)
	a.scheduler = NewScheduler(a.Services.Slots, lock, cfg.ReclaimInterval, logger)

	handler := rest.NewHandler(a.Services.Slots, a.Services.Visits, a.Services.Recurring, a.Services.Spontaneous, logger)
	a.server = rest.NewServer(handler, logger, cfg.RateLimitRPS)

	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("create telegram bot: %w", err)
		}
		a.bot = controller.NewBotController(b, a.Services.Users, a.Services.Visits, a.Services.Slots, logger)
	}

	return a, nil
}

func buildServices(pool *pgxpool.Pool, sink service.AuditSink, cfg *config.Config, loc *time.Location, logger *zap.Logger) *Services {
	tx := base.NewTxManager(pool, logger)

	users := repository.NewUserRepository(pool)
	slots := repository.NewSlotRepository(pool)
	visits := repository.NewVisitRepository(pool)
	recurring := repository.NewRecurringSlotRepository(pool, logger)
	requests := repository.NewSpontaneousRequestRepository(pool)

	policy := service.DefaultPolicy()
	policy.LockGracePeriod = cfg.LockGracePeriod
	policy.ClockSkewTolerance = cfg.ClockSkewTolerance
	clock := service.Clock(time.Now)

	slotSvc := service.NewSlotService(tx, slots, visits, users, sink, clock, policy, logger)
	visitSvc := service.NewVisitService(tx, slotSvc, slots, visits, users, sink, clock, policy, logger)
	recurringSvc := service.NewRecurringService(tx, recurring, slots, users, sink, clock, loc, logger)

	return &Services{
		Users:       service.NewUserService(users, logger),
		Slots:       slotSvc,
		Visits:      visitSvc,
		Recurring:   recurringSvc,
		Spontaneous: service.NewSpontaneousService(tx, requests, recurringSvc, visitSvc, users, sink, clock, policy, logger),
	}
}

// initAudit публикует в RabbitMQ если задан RABBITMQ_URL, иначе пишет в лог
func (a *App) initAudit() error {
	if a.cfg.RabbitMQURL == "" {
		a.emitter = audit.NewEmitter(audit.NewLogPublisher(a.logger), a.cfg.AuditBuffer, a.logger)
		return nil
	}

	conn, err := amqp.Dial(a.cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	a.rabbitConn = conn

	publisher, err := audit.NewRabbitPublisher(conn, a.cfg.AuditQueue)
	if err != nil {
		return err
	}
	a.publisher = publisher
	a.emitter = audit.NewEmitter(publisher, a.cfg.AuditBuffer, a.logger)

	a.logger.Info("Audit events go to RabbitMQ", zap.String("queue", a.cfg.AuditQueue))
	return nil
}

// initLocker выбирает Redis для нескольких реплик, иначе локальный no-op
func (a *App) initLocker(ctx context.Context) (locker.Locker, error) {
	if a.cfg.RedisURL == "" {
		return locker.NoopLocker{}, nil
	}

	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	a.redis = redis.NewClient(opts)
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return locker.NewRedisLocker(a.redis, "mediwork:"), nil
}

// Run запускает планировщик, HTTP-сервер и бота; блокируется до отмены ctx
func (a *App) Run(ctx context.Context) error {
	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", zap.String("addr", a.cfg.HTTPAddr))
		if err := a.server.Start(a.cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if a.bot != nil {
		if err := a.bot.RegisterHandlers(ctx); err != nil {
			a.logger.Warn("Bot commands not registered", zap.Error(err))
		}
		go a.bot.Start(ctx)
	} else {
		a.logger.Info("TELEGRAM_TOKEN not set, bot disabled")
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case runErr = <-serverErr:
		a.logger.Error("HTTP server failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP shutdown", zap.Error(err))
	}
	return runErr
}

// ReclaimOnce один проход освобождения просроченных блокировок
func (a *App) ReclaimOnce(ctx context.Context) int {
	return a.scheduler.RunOnce(ctx)
}

// Close освобождает ресурсы в обратном порядке
func (a *App) Close(ctx context.Context) {
	if a.emitter != nil {
		if err := a.emitter.Close(ctx); err != nil {
			a.logger.Warn("Audit emitter close", zap.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("Audit publisher close", zap.Error(err))
		}
	}
	if a.rabbitConn != nil {
		_ = a.rabbitConn.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

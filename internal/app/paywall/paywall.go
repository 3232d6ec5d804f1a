// Package paywall собирает бота, фоновые сверки, обработчик рассылок
// и административный API в один процесс.
package paywall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/channel-paywall/internal/cache"
	"github.com/magabrotheeeer/channel-paywall/internal/config"
	"github.com/magabrotheeeer/channel-paywall/internal/http/handlers/health"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/civil"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/jwt"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/sl"
	"github.com/magabrotheeeer/channel-paywall/internal/migrations"
	"github.com/magabrotheeeer/channel-paywall/internal/rabbitmq"
	"github.com/magabrotheeeer/channel-paywall/internal/services/auth"
	"github.com/magabrotheeeer/channel-paywall/internal/services/availability"
	"github.com/magabrotheeeer/channel-paywall/internal/services/broadcast"
	"github.com/magabrotheeeer/channel-paywall/internal/services/invite"
	"github.com/magabrotheeeer/channel-paywall/internal/services/reminder"
	"github.com/magabrotheeeer/channel-paywall/internal/services/scheduler"
	"github.com/magabrotheeeer/channel-paywall/internal/services/session"
	"github.com/magabrotheeeer/channel-paywall/internal/services/subscription"
	"github.com/magabrotheeeer/channel-paywall/internal/storage/repository"
	"github.com/magabrotheeeer/channel-paywall/internal/telegram"
)

const shutdownTimeout = 15 * time.Second

// App процесс бота со всеми фоновыми задачами.
type App struct {
	server     *http.Server
	bot        *telegram.Client
	scheduler  *scheduler.SchedulerService
	broadcasts *broadcast.Service
	conn       *amqp.Connection
	ch         *amqp.Channel
	db         *repository.Storage
	cache      *cache.Cache
	logger     *slog.Logger
}

// New подключает хранилища и брокер, собирает сервисы и регистрирует обработчики.
// При ошибке уже открытые соединения закрываются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	const op = "paywall.New"

	zone, err := civil.LoadZone(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.db, err = repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(a.db.DB, cfg.MigrationsPath); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = repository.CheckDatabaseReady(ctx, a.db); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.conn, err = rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.ch, err = rabbitmq.SetupChannel(a.conn, rabbitmq.BroadcastExchange, rabbitmq.BroadcastQueues())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.bot, err = telegram.NewClient(cfg.Telegram, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	invites := invite.New(a.db, a.bot, a.bot, zone, logger)
	subscriptions := subscription.New(a.db, invites, a.bot, zone, logger)
	window := availability.New(availability.Config{
		StartDay:      cfg.Availability.WindowStartDay,
		EndDay:        cfg.Availability.WindowEndDay,
		ReminderDay:   cfg.Availability.ReminderDay,
		ReminderHour:  cfg.Availability.ReminderHour,
		BypassUserIDs: cfg.Availability.BypassUserIDs,
	}, zone)
	reminders := reminder.New(a.db, window, zone, logger)
	sessions := session.New(a.cache, cfg.SessionTTL)
	publisher := rabbitmq.NewPublisher(a.ch, rabbitmq.BroadcastExchange)
	a.broadcasts = broadcast.New(a.db, publisher, a.bot, zone, cfg.Broadcast, logger)

	a.scheduler = scheduler.NewSchedulerService(scheduler.Deps{
		Payments:      a.db,
		Subscriptions: subscriptions,
		Channel:       a.bot,
		Notifier:      a.bot,
		Reminders:     reminders,
		Invites:       invites,
		Queue:         a.broadcasts,
		Clock:         zone,
	}, cfg.Scheduler, logger)

	telegram.NewHandlers(telegram.HandlerDeps{
		Payments:  subscriptions,
		Invites:   invites,
		Window:    window,
		Reminders: reminders,
		Sessions:  sessions,
		Users:     a.db,
		Messenger: a.bot,
		Clock:     zone,
		Catalog:   cfg.Catalog(),
	}, logger).Register(a.bot)

	tokens := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg.HTTPServer, RouteDeps{
		Payments:   subscriptions,
		Broadcasts: a.broadcasts,
		Auth:       auth.NewAuthService(cfg.AdminUsername, cfg.AdminPasswordHash, tokens),
		Tokens:     tokens,
		Checks: map[string]health.Pinger{
			"postgres": a.db,
			"redis":    a.cache,
			"rabbitmq": health.PingFunc(func(context.Context) error {
				if a.conn.IsClosed() {
					return errors.New("connection closed")
				}
				return nil
			}),
		},
	})

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

// Run запускает все компоненты и блокируется до отмены ctx или падения HTTP-сервера.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.BroadcastQueues()[0].QueueName, a.logger, a.broadcasts.Handle); err != nil {
		a.close()
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.scheduler.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		a.logger.Info("telegram polling started")
		a.bot.Start(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
		a.logger.Error("HTTP server stopped", sl.Err(runErr))
		cancel()
	case <-ctx.Done():
		timeoutCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		a.logger.Info("shutting down HTTP server gracefully")
		runErr = a.server.Shutdown(timeoutCtx)
	}

	wg.Wait()
	a.close()
	return runErr
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil && !a.conn.IsClosed() {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}

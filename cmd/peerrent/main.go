package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"peerrent/internal/app/engine"
	"peerrent/internal/app/middleware"
	appoutbox "peerrent/internal/app/outbox"
	"peerrent/internal/app/policies"
	"peerrent/internal/app/uow"
	"peerrent/internal/domain/reservation"
	"peerrent/internal/infra/broker/kafka"
	"peerrent/internal/infra/config"
	mongostore "peerrent/internal/infra/db/mongo"
	ginserver "peerrent/internal/infra/http/gin"
	"peerrent/internal/infra/locks"
	"peerrent/internal/infra/obs"
	infraoutbox "peerrent/internal/infra/outbox"
	"peerrent/internal/infra/payments/sandbox"
	"peerrent/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	logger := obs.NewLogger(cfg.Env)
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Probes: app.probes}, app.handlers)

	g, gctx := errgroup.WithContext(ctx)
	for _, run := range app.background {
		g.Go(func() error { return run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode, "locks", cfg.LockMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service stopped with error", "error", err)
		app.close(logger)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers   ginserver.Handlers
	probes     map[string]obs.Probe
	background []func(ctx context.Context) error
	closers    []func(ctx context.Context) error
	closed     bool
}

type storage struct {
	factory     uow.UoWFactory
	items       policies.ItemCatalog
	outbox      appoutbox.Outbox
	relay       infraoutbox.Relay
	idempotency middleware.IdempotencyStore
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{probes: map[string]obs.Probe{}}

	fixtures, err := loadFixtures(cfg.ItemsFixtures, logger)
	if err != nil {
		return nil, err
	}

	var store storage
	switch cfg.StorageMode {
	case config.StorageMongo:
		store, err = app.mongoStorage(ctx, cfg, fixtures, logger)
	default:
		store = memoryStorage(cfg, fixtures)
	}
	if err != nil {
		return nil, err
	}

	var itemLocks policies.ItemLocker = locks.NewLocal()
	if cfg.LockMode == config.LockRedis {
		client := locks.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		itemLocks = &locks.Redis{Client: client, TTL: cfg.LockTTL, Logger: logger}
		app.probes["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
	}

	gateway := &sandbox.Gateway{
		RedirectBase: cfg.PaymentRedirectBase,
		Topic:        cfg.KafkaTopicPrefix + "payments.refund_requests.v1",
		Logger:       logger,
	}

	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig("peerrent"))
		if err != nil {
			return nil, err
		}
		gateway.Publisher = producer
		app.closers = append(app.closers, func(context.Context) error { return producer.Close() })
	}

	deps := engine.Deps{
		UoWFactory:    store.factory,
		Items:         store.items,
		Payments:      gateway,
		Locks:         itemLocks,
		Outbox:        store.outbox,
		Idempotency:   store.idempotency,
		Logger:        logger,
		RetryAttempts: cfg.StorageRetryAttempts,
		RetryBackoff:  cfg.RetryBackoff,
	}
	var metrics *obs.Metrics
	if cfg.MetricsEnabled {
		metrics = obs.NewMetrics()
		deps.Metrics = metrics
		app.handlers.Metrics = metrics.Handler()
	}

	eng, err := engine.New(deps)
	if err != nil {
		return nil, err
	}

	app.handlers.Reservations = ginserver.ReservationHandler{Commands: eng.Commands, Queries: eng.Queries}
	app.handlers.Availability = ginserver.AvailabilityHandler{Queries: eng.Queries}
	app.handlers.Webhook = ginserver.WebhookHandler{Commands: eng.Commands, Secret: cfg.WebhookSecret, Logger: logger}

	if producer != nil {
		worker := &infraoutbox.Worker{
			Store:       store.relay,
			Producer:    producer,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Backoff:     cfg.RetryBackoff,
			Logger:      logger.With("component", "outbox"),
		}
		if metrics != nil {
			worker.Observer = metrics
		}
		app.background = append(app.background, ignoreCanceled(worker.Run))

		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, kafka.NewConfig("peerrent-reconciler"),
			kafka.PaymentEventsHandler{Engine: eng, Logger: logger}, logger.With("component", "payments-consumer"))
		if err != nil {
			return nil, err
		}
		app.background = append(app.background, ignoreCanceled(func(ctx context.Context) error {
			return consumer.Run(ctx, []string{cfg.KafkaPaymentsTopic})
		}))
		app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
	} else {
		logger.Info("kafka not configured, outbox relay and payment consumer disabled")
	}
	return app, nil
}

func memoryStorage(cfg config.Config, fixtures []reservation.Item) storage {
	s := memory.NewStore()
	return storage{
		factory:     memory.Factory{Store: s},
		items:       memory.NewItems(fixtures...),
		outbox:      s,
		relay:       s,
		idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
	}
}

func (a *application) mongoStorage(ctx context.Context, cfg config.Config, fixtures []reservation.Item, logger *slog.Logger) (storage, error) {
	client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storage{}, err
	}
	a.closers = append(a.closers, client.Close)
	a.probes["mongo"] = client.Ping
	if err := client.EnsureIndexes(ctx); err != nil {
		return storage{}, err
	}

	catalog := mongostore.NewItemCatalog(client.DB)
	for _, item := range fixtures {
		if err := catalog.Upsert(ctx, item); err != nil {
			return storage{}, err
		}
	}
	logger.Info("item fixtures imported", "count", len(fixtures))

	idem, err := mongostore.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
	if err != nil {
		return storage{}, err
	}
	box, err := infraoutbox.NewStore(ctx, client.DB)
	if err != nil {
		return storage{}, err
	}
	return storage{
		factory:     mongostore.NewFactory(client.DB),
		items:       catalog,
		outbox:      box,
		relay:       box,
		idempotency: idem,
	}, nil
}

func loadFixtures(path string, logger *slog.Logger) ([]reservation.Item, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Info("item fixtures file not found, skipping", "path", path)
		return nil, nil
	}
	items, err := memory.LoadItems(path)
	if err != nil {
		return nil, err
	}
	logger.Info("item fixtures loaded", "path", path, "count", len(items))
	return items, nil
}

func (a *application) close(logger *slog.Logger) {
	if a.closed {
		return
	}
	a.closed = true
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}

func ignoreCanceled(run func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

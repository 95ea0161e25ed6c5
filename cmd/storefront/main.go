package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/megamart-storefront/internal/cart"
	"github.com/fjod/megamart-storefront/internal/catalog"
	"github.com/fjod/megamart-storefront/internal/config"
	"github.com/fjod/megamart-storefront/internal/gateway"
	h "github.com/fjod/megamart-storefront/internal/http"
	"github.com/fjod/megamart-storefront/internal/journal"
	"github.com/fjod/megamart-storefront/internal/logger"
	"github.com/fjod/megamart-storefront/internal/publisher"
	"github.com/fjod/megamart-storefront/internal/restclient"
	"github.com/fjod/megamart-storefront/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	app := &cli.App{
		Name:  "storefront",
		Usage: "MegaMart Lanka cashier storefront",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the cashier HTTP API and the journal publisher",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply the submission journal migrations and exit",
				Action: migrateJournal,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("storefront exited")
	}
}

func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func journalCredentials(cfg *config.Config) *journal.Credentials {
	return &journal.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsPath,
	}
}

func migrateJournal(*cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	creds := journalCredentials(cfg)
	repo, err := journal.NewRepository(creds)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return err
	}
	log.Info("journal migrations completed")
	return nil
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func serve(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(c.Context).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	creds := journalCredentials(cfg)
	repo, err := journal.NewRepository(creds)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.RunMigrations(creds); err != nil {
		return err
	}
	log.Info("journal migrations completed")

	backend := restclient.New(restclient.Options{
		BaseURL:         cfg.Backend.BaseURL,
		Timeout:         cfg.Backend.Timeout,
		BreakerFailures: cfg.Backend.BreakerFailures,
		BreakerTimeout:  cfg.Backend.BreakerTimeout,
	}, nil, log)
	accessor := session.NewAccessor(backend, session.NewRedisStore(redisClient, cfg.Redis.SessionName), log)
	backend.SetTokenSource(accessor)

	catalogService := catalog.NewService(
		catalog.NewRESTProvider(backend, log),
		catalog.NewRedisCache(redisClient, cfg.Redis.CatalogTTL),
		log,
	)
	engine := cart.NewEngine(gateway.NewREST(backend, cfg.Backend.Timeout, log), repo, log)

	ctx, stop := context.WithCancel(c.Context)
	defer stop()

	poller := publisher.NewOutboxPoller(repo, publisher.Options{
		Topic:     cfg.Kafka.Topic,
		EventTick: cfg.Kafka.Tick,
	}, log, cfg.Kafka.Brokers...)
	defer poller.Close()
	go poller.Run(ctx)

	router := h.NewRouter(h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}, h.Deps{
		Sessions: accessor,
		Catalog:  catalogService,
		Engine:   engine,
		Journal:  repo,
		Health: map[string]h.HealthChecker{
			"redis":    redisPinger{client: redisClient},
			"postgres": repo,
		},
		Log: log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.HTTPPort).Info("storefront starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down server...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sfcollab/internal/config"
	"sfcollab/internal/domain"
	"sfcollab/internal/events"
	"sfcollab/internal/httpserver"
	"sfcollab/internal/logging"
	"sfcollab/internal/presence"
	"sfcollab/internal/security"
	"sfcollab/internal/service"
	"sfcollab/internal/store/mongo"
	"sfcollab/internal/store/postgres"
	"sfcollab/internal/store/sqlite"
	"sfcollab/internal/ws"
)

// @title           sfcollab messaging API
// @version         1.0
// @description     Direct messaging, presence and read receipts.

// @host            localhost:8000
// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sfcollab: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.IsDevelopment())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	users, messages, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore.Close()
	log.Info("store ready", zap.String("driver", cfg.StoreDriver))

	tokenSvc := security.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL())
	passwordHasher := security.NewPasswordHasher(0)
	encryptor, err := security.NewEncryptor([]byte(cfg.EncryptKey), cfg.LegacyEncryptKeys)
	if err != nil {
		return fmt.Errorf("init encryptor: %w", err)
	}

	registry, closeRegistry, err := newRegistry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRegistry()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		log.Info("publishing events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer publisher.Close()

	msgSvc := service.NewMessageService(messages, users, registry, encryptor, publisher, log)
	hub := ws.NewHub(log)
	realtime := ws.NewHandler(hub, registry, tokenSvc, msgSvc, ws.HandlerConfig{
		AllowedOrigins: cfg.CORSOrigins,
		SendRate:       cfg.WS.SendRate,
		SendBurst:      cfg.WS.SendBurst,
		SendBuffer:     cfg.WS.SendBuffer,
	}, log)

	router := httpserver.NewRouter(cfg, httpserver.Services{
		Users:    users,
		Tokens:   tokenSvc,
		Auth:     service.NewAuthService(users, tokenSvc, passwordHasher),
		UserSvc:  service.NewUserService(users, registry),
		Messages: msgSvc,
		Realtime: realtime,
	}, log)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", cfg.HTTPAddr()), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openStore connects the configured backend and runs its migrations.
func openStore(ctx context.Context, cfg *config.Config) (domain.UserDirectory, domain.MessageStore, io.Closer, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Open(cfg.PostgresURL())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return postgres.NewUserRepo(db), postgres.NewMessageRepo(db), db, nil

	case config.DriverMongo:
		client, err := mongo.Open(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, nil, nil, err
		}
		db := client.Database(cfg.Mongo.Database)
		if err := mongo.Migrate(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, err
		}
		closer := closerFunc(func() error { return client.Disconnect(context.Background()) })
		return mongo.NewUserRepo(db), mongo.NewMessageRepo(db), closer, nil

	default:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return sqlite.NewUserRepo(db), sqlite.NewMessageRepo(db), db, nil
	}
}

// newRegistry mirrors presence into Redis when REDIS_URL is set.
func newRegistry(ctx context.Context, cfg *config.Config, log *zap.Logger) (presence.Registry, func(), error) {
	if cfg.RedisURL == "" {
		return presence.NewLocal(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info("presence mirrored to redis", zap.String("addr", opts.Addr))
	return presence.NewMirrored(client, "sfcollab", log), func() { _ = client.Close() }, nil
}

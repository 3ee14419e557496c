package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	_ "github.com/redmonkez12/taskauth/docs" // Swagger docs (generated)
	"github.com/redmonkez12/taskauth/internal/audit"
	"github.com/redmonkez12/taskauth/internal/auth"
	"github.com/redmonkez12/taskauth/internal/config"
	"github.com/redmonkez12/taskauth/internal/database"
	httpServer "github.com/redmonkez12/taskauth/internal/http"
	"github.com/redmonkez12/taskauth/internal/logging"
	"github.com/redmonkez12/taskauth/internal/ratelimit"
	"github.com/redmonkez12/taskauth/internal/user"
)

// @title           Task Tracker Auth API
// @version         1.0
// @description     Registration, login and current-user endpoints for the task tracker, with an audit trail of security events.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8000
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"token_algorithm", cfg.Auth.Algorithm,
	)

	ctx := context.Background()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// A nil interface keeps the handler from rate limiting at all.
	var limiter auth.RateLimiter
	if cfg.Redis.Enabled() {
		redisClient, err := initRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()

		limiter = ratelimit.NewLimiter(redisClient, ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	} else {
		logger.Warn("REDIS_HOST not set, rate limiting disabled")
	}

	hasher, err := auth.NewPasswordHasher(auth.DefaultArgon2Params)
	if err != nil {
		return fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	audits := audit.NewRepository(db)
	recorder := audit.NewRecorder(audits, logger)

	authService := auth.NewService(db, hasher, tokens, recorder, logger, cfg.Auth.TokenDuration())

	authHandler := auth.NewHandler(authService, audits, limiter)
	authMiddleware := auth.NewMiddleware(tokens, user.NewRepository(db))

	router := httpServer.NewRouter(cfg, authHandler, authMiddleware, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

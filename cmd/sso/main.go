package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/providerpath/providerpath-sso/internal/config"
	"github.com/providerpath/providerpath-sso/internal/db"
	httptransport "github.com/providerpath/providerpath-sso/internal/http"
	"github.com/providerpath/providerpath-sso/internal/http/handler"
	"github.com/providerpath/providerpath-sso/internal/http/middleware"
	"github.com/providerpath/providerpath-sso/internal/provider"
	"github.com/providerpath/providerpath-sso/internal/provider/facebook"
	"github.com/providerpath/providerpath-sso/internal/provider/generic"
	"github.com/providerpath/providerpath-sso/internal/provider/google"
	"github.com/providerpath/providerpath-sso/internal/provider/microsoft"
	"github.com/providerpath/providerpath-sso/internal/registry"
	"github.com/providerpath/providerpath-sso/internal/repository"
	"github.com/providerpath/providerpath-sso/internal/resolver"
	"github.com/providerpath/providerpath-sso/internal/server"
	"github.com/providerpath/providerpath-sso/internal/service"
	"github.com/providerpath/providerpath-sso/internal/session"
	"github.com/providerpath/providerpath-sso/internal/telemetry"
	"github.com/providerpath/providerpath-sso/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newPGXPool,
			newRedisClient,
			newServiceRegistry,
			newProviderRegistry,
			newUserRepository,
			newTokenRepository,
			newStateStore,
			newResolver,
			newSessionBridge,
			newTokenService,
			newFlow,
			newAuthHandler,
			newTokenHandler,
			middleware.NewAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}

func newServiceRegistry(cfg config.Config, logger *zap.Logger) (*registry.Registry, error) {
	reg, err := registry.Load(cfg.ServiceRegistryPath)
	if err != nil {
		return nil, fmt.Errorf("load service registry: %w", err)
	}
	logger.Info("service registry loaded",
		zap.String("path", cfg.ServiceRegistryPath),
		zap.Int("services", len(reg.All())),
	)
	return reg, nil
}

func newProviderRegistry(cfg config.Config, logger *zap.Logger) (*provider.Registry, error) {
	var adapters []provider.Adapter

	if cfg.Google.ClientID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		g, err := google.New(ctx, cfg.Google)
		if err != nil {
			return nil, fmt.Errorf("init google provider: %w", err)
		}
		adapters = append(adapters, g)
	}

	if cfg.Microsoft.ClientID != "" {
		m, err := microsoft.New(cfg.Microsoft, cfg.MicrosoftTenant)
		if err != nil {
			return nil, fmt.Errorf("init microsoft provider: %w", err)
		}
		adapters = append(adapters, m)
	}

	if cfg.Facebook.ClientID != "" {
		f, err := facebook.New(cfg.Facebook)
		if err != nil {
			return nil, fmt.Errorf("init facebook provider: %w", err)
		}
		adapters = append(adapters, f)
	}

	if cfg.Generic.Configured() {
		g, err := generic.New(cfg.Generic)
		if err != nil {
			return nil, fmt.Errorf("init generic oauth2 provider: %w", err)
		}
		adapters = append(adapters, g)
	}

	reg := provider.NewRegistry(adapters...)
	logger.Info("identity providers configured", zap.Strings("providers", reg.Names()))
	return reg, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newTokenRepository(pool *pgxpool.Pool) repository.TokenRepository {
	return repository.NewPostgresTokenRepo(pool)
}

func newStateStore(client *redis.Client) repository.StateStore {
	return repository.NewRedisStateStore(client)
}

func newResolver(users repository.UserRepository, logger *zap.Logger) *resolver.Resolver {
	return resolver.New(users, logger)
}

func newSessionBridge(client *redis.Client, cfg config.Config, logger *zap.Logger) *session.Bridge {
	return session.NewBridge(session.NewRedisStore(client), cfg.SessionTTL, logger)
}

func newTokenService(reg *registry.Registry, tokens repository.TokenRepository, cfg config.Config, logger *zap.Logger) (*token.Service, error) {
	return token.NewService(reg, tokens, []byte(cfg.TokenSigningKey), cfg.Issuer, cfg.TokenTTL, logger)
}

func newFlow(providers *provider.Registry, states repository.StateStore, res *resolver.Resolver, sessions *session.Bridge, cfg config.Config, logger *zap.Logger) *service.Flow {
	return service.NewFlow(providers, states, res, sessions, service.FlowConfig{
		StateTTL:             cfg.StateTTL,
		ProviderTimeout:      cfg.ProviderTimeout,
		DefaultRedirect:      cfg.DefaultRedirect,
		AllowedRedirectHosts: cfg.AllowedRedirectHosts,
	}, logger)
}

func newAuthHandler(flow *service.Flow, sessions *session.Bridge, users repository.UserRepository, cfg config.Config, logger *zap.Logger) *handler.AuthHandler {
	return handler.NewAuthHandler(flow, sessions, users, cfg.ErrorRedirect, cfg.SessionTTL, logger)
}

func newTokenHandler(tokens *token.Service, users repository.UserRepository, reg *registry.Registry, logger *zap.Logger) *handler.TokenHandler {
	return handler.NewTokenHandler(tokens, users, reg, logger)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/casedeskhq/casedesk/internal/adapter/cache"
	googleadapter "github.com/casedeskhq/casedesk/internal/adapter/google"
	"github.com/casedeskhq/casedesk/internal/bootstrap"
	"github.com/casedeskhq/casedesk/internal/config"
	"github.com/casedeskhq/casedesk/internal/envelope"
	"github.com/casedeskhq/casedesk/internal/guard"
	httptransport "github.com/casedeskhq/casedesk/internal/http"
	"github.com/casedeskhq/casedesk/internal/http/handler"
	httpmiddleware "github.com/casedeskhq/casedesk/internal/http/middleware"
	"github.com/casedeskhq/casedesk/internal/jwt"
	apimiddleware "github.com/casedeskhq/casedesk/internal/middleware"
	"github.com/casedeskhq/casedesk/internal/repository"
	"github.com/casedeskhq/casedesk/internal/server"
	auditservice "github.com/casedeskhq/casedesk/internal/service/audit"
	googleservice "github.com/casedeskhq/casedesk/internal/service/google"
	inboundservice "github.com/casedeskhq/casedesk/internal/service/inbound"
	"github.com/casedeskhq/casedesk/internal/telemetry"
	"github.com/casedeskhq/casedesk/internal/tenant"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newTenantRepository,
			newMembershipRepository,
			newConnectionRepository,
			newSheetLinkRepository,
			newInboundMessageRepository,
			newAuditRepository,
			newRedisClient,
			newDedupeStore,
			newEnvelopeCodec,
			newSessionVerifier,
			newExchanger,
			newGuard,
			newRateLimiter,
			tenant.NewResolver,
			newGoogleService,
			newInboundService,
			auditservice.NewService,
			newGoogleHandler,
			newInboundHandler,
			newAdminHandler,
			newAdminMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureOwner, startHTTPServer),
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

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
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

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newTenantRepository(pool *pgxpool.Pool) repository.TenantRepository {
	return repository.NewPostgresTenantRepo(pool)
}

func newMembershipRepository(pool *pgxpool.Pool) repository.MembershipRepository {
	return repository.NewPostgresMembershipRepo(pool)
}

func newConnectionRepository(pool *pgxpool.Pool) repository.ConnectionRepository {
	return repository.NewPostgresConnectionRepo(pool)
}

func newSheetLinkRepository(pool *pgxpool.Pool) repository.SheetLinkRepository {
	return repository.NewPostgresSheetLinkRepo(pool)
}

func newInboundMessageRepository(pool *pgxpool.Pool) repository.InboundMessageRepository {
	return repository.NewPostgresInboundMessageRepo(pool)
}

func newAuditRepository(pool *pgxpool.Pool) repository.AuditRepository {
	return repository.NewPostgresAuditRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newDedupeStore(client redis.UniversalClient) repository.EventDedupeStore {
	return cacheadapter.NewRedisDedupeStore(client)
}

func newEnvelopeCodec(cfg config.Config) (*envelope.Codec, error) {
	return envelope.NewCodec(cfg.StateEncryptionKey)
}

func newSessionVerifier(cfg config.Config) (*jwt.Verifier, error) {
	return jwt.NewVerifier(cfg.SessionJWTSecret)
}

func newExchanger(cfg config.Config) googleadapter.Exchanger {
	return googleadapter.NewHTTPExchanger(cfg.GoogleClientID, cfg.GoogleClientSecret, googleservice.Scopes, nil)
}

func newGuard(verifier *jwt.Verifier, memberships repository.MembershipRepository, logger *zap.Logger) *guard.Guard {
	return guard.New(verifier, memberships, logger)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newGoogleService(
	codec *envelope.Codec,
	exchanger googleadapter.Exchanger,
	connections repository.ConnectionRepository,
	audit repository.AuditRepository,
	node *snowflake.Node,
	cfg config.Config,
	logger *zap.Logger,
) googleservice.Service {
	return googleservice.NewService(codec, exchanger, connections, audit, node, cfg, logger)
}

func newInboundService(
	messages repository.InboundMessageRepository,
	dedupe repository.EventDedupeStore,
	node *snowflake.Node,
	cfg config.Config,
	logger *zap.Logger,
) inboundservice.Service {
	return inboundservice.NewService(messages, dedupe, node, cfg, logger)
}

func newGoogleHandler(service googleservice.Service, cfg config.Config, logger *zap.Logger) *handler.GoogleHandler {
	return handler.NewGoogleHandler(service, cfg, logger)
}

func newInboundHandler(service inboundservice.Service, resolver *tenant.Resolver, logger *zap.Logger) *handler.InboundHandler {
	return handler.NewInboundHandler(service, resolver, logger)
}

func newAdminHandler(
	sheets repository.SheetLinkRepository,
	messages repository.InboundMessageRepository,
	audit *auditservice.Service,
	node *snowflake.Node,
	logger *zap.Logger,
) *handler.AdminHandler {
	return handler.NewAdminHandler(sheets, messages, audit, node, logger)
}

func newAdminMiddleware(g *guard.Guard) *httpmiddleware.Admin {
	return &httpmiddleware.Admin{Guard: g}
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

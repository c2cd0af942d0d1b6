package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/auth"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/config"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/gotrue"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/local"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/local/repo"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/router"
	"github.com/ovaphlow/pitchfork/service-web-auth/pkg/database"
	"github.com/ovaphlow/pitchfork/service-web-auth/pkg/utilities"
)

func main() {
	// best-effort: without a .env the real environment is used as is
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}
	sugar.Infow("starting service-web-auth", "provider", cfg.Provider, "addr", cfg.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalf("identity backend: %v", err)
	}
	defer b.close()

	m := metrics.New()
	svc := auth.NewService(b.provider, b.records, sugar, m)
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: router.RegisterRoutes(router.Deps{
			Service: svc,
			Guard:   auth.NewGuard(svc, cfg.GuardPaths(), m),
			Metrics: m,
			Cookies: cfg.CookieOptions(),
			Logger:  sugar,
		}),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	sugar.Info("goodbye")
}

type backend struct {
	provider identity.Provider
	records  identity.RecordStore
	closers  []func() error
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

// openBackend connects the identity provider selected by cfg.
func openBackend(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (*backend, error) {
	switch cfg.Provider {
	case config.ProviderGoTrue:
		c := gotrue.New(cfg.GoTrueConfig(), logger)
		return &backend{provider: c, records: c}, nil

	case config.ProviderMemory:
		node, err := utilities.NodeFromEnv()
		if err != nil {
			return nil, err
		}
		mem := repo.NewMemory()
		p, err := local.New(cfg.LocalConfig(), mem.Users(), mem.Sessions(), mem.Records(), node, logger)
		if err != nil {
			return nil, err
		}
		logger.Warn("memory identity provider: accounts are lost on restart")
		return &backend{provider: p, records: p.Records()}, nil

	case config.ProviderLocal:
		b := &backend{}
		db, err := database.Connect(ctx, database.ConfigFromEnv())
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)

		users := repo.NewUserRepo(db)
		if err := users.EnsureTable(ctx); err != nil {
			b.close()
			return nil, errors.Wrap(err, "ensure tables")
		}

		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			b.close()
			return nil, errors.Wrap(err, "ping redis")
		}

		node, err := utilities.NodeFromEnv()
		if err != nil {
			b.close()
			return nil, err
		}
		p, err := local.New(cfg.LocalConfig(), users, repo.NewRedisSessionStore(rdb), repo.NewRecordRepo(db), node, logger)
		if err != nil {
			b.close()
			return nil, err
		}
		b.provider, b.records = p, p.Records()
		return b, nil
	}
	return nil, errors.Newf("unknown identity provider %q", cfg.Provider)
}

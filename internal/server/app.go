package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blankcnvs/so-auth/auth"
	"github.com/blankcnvs/so-auth/cache"
	"github.com/blankcnvs/so-auth/health"
	"github.com/blankcnvs/so-auth/internal/config"
	"github.com/blankcnvs/so-auth/observe"
	"github.com/blankcnvs/so-auth/session"
)

const shutdownTimeout = 10 * time.Second

// App is a fully wired so-auth process.
type App struct {
	cfg      config.Config
	observer observe.Observer
	logger   observe.Logger
	sessions *cache.Coordinator[session.Result]
	guard    *session.Guard
	handler  http.Handler
}

// AppOption configures NewApp.
type AppOption func(*appOptions)

type appOptions struct {
	fetcher session.Fetcher
}

// WithFetcher replaces the form-login fetcher, e.g. with a stub site.
func WithFetcher(f session.Fetcher) AppOption {
	return func(o *appOptions) { o.fetcher = f }
}

// NewApp wires the login fetcher, its guard, instrumentation and the cache
// coordinator behind the HTTP handler:
//
//	FormLoginFetcher -> Guard -> WrapFetch -> Coordinator -> handler
func NewApp(ctx context.Context, cfg config.Config, opts ...AppOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.fetcher == nil {
		f, err := session.NewFormLoginFetcher(cfg.Login)
		if err != nil {
			return nil, err
		}
		o.fetcher = f
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("server: observer: %w", err)
	}

	app, err := wire(cfg, obs, o.fetcher)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	return app, nil
}

func wire(cfg config.Config, obs observe.Observer, fetcher session.Fetcher) (*App, error) {
	service := cfg.ServiceName
	var keyerOpts []cache.KeyerOption
	if cfg.CaseFold {
		keyerOpts = append(keyerOpts, cache.WithCaseFold())
	}
	keyer := cache.NewDefaultKeyer(keyerOpts...)
	keyOf := func(identity string) string {
		key, err := keyer.Key(service, identity)
		if err != nil {
			return ""
		}
		return key
	}

	mw, err := observe.MiddlewareFromObserver(obs, observe.WithKeyFunc(keyOf))
	if err != nil {
		return nil, fmt.Errorf("server: middleware: %w", err)
	}

	guard, err := session.NewGuard(fetcher, cfg.Guard.Executor(session.CountsAgainstSite))
	if err != nil {
		return nil, err
	}

	fetch := observe.WrapFetch[session.Result](mw, service, guard.Fetch)
	coord, err := cache.NewCoordinator[session.Result](
		cache.FetcherFunc[session.Result](fetch),
		cfg.Cache,
		cache.WithKeyer(keyer),
		cache.WithNamespace(service),
		cache.WithListener(mw.CacheListener(service)),
	)
	if err != nil {
		return nil, err
	}

	agg := health.NewAggregator(health.AggregatorConfig{Timeout: 5 * time.Second})
	agg.Register(health.NewMemoryChecker(health.MemoryCheckerConfig{}))
	agg.Register(health.NewCacheChecker(coord.Len, 0))
	agg.Register(health.NewBreakerChecker(guard.Executor().CircuitBreaker()))

	handler, err := NewHandler(Options{
		Service:       service,
		Sessions:      coord,
		Logger:        obs.Logger(),
		Health:        agg,
		Authenticator: auth.New(cfg.Auth),
		Metrics:       obs.MetricsHandler(),
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		observer: obs,
		logger:   obs.Logger(),
		sessions: coord,
		guard:    guard,
		handler:  handler,
	}, nil
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Sessions returns the cache coordinator.
func (a *App) Sessions() *cache.Coordinator[session.Result] {
	return a.sessions
}

// Fetch runs one guarded, uncached login.
func (a *App) Fetch(ctx context.Context, identity, secret string) (session.Result, error) {
	return a.guard.Fetch(ctx, identity, secret)
}

// Run listens on the configured port and serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	addr := ":" + strconv.Itoa(a.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully and
// flushes telemetry.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info(gctx, "server running",
			observe.Field{Key: "addr", Value: ln.Addr().String()},
			observe.Field{Key: "service", Value: a.cfg.ServiceName},
		)
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.sessions.RunSweeper(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		a.logger.Info(shutdownCtx, "shutting down")
		return errors.Join(srv.Shutdown(shutdownCtx), a.observer.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

// Close releases telemetry providers without serving.
func (a *App) Close(ctx context.Context) error {
	return a.observer.Shutdown(ctx)
}

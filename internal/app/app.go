// Package app assembles the marketplace service: stores, cache, live
// delivery, services and the HTTP and gRPC transports.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"servicemarket/marketplace-service/internal/auth"
	"servicemarket/marketplace-service/internal/cache"
	"servicemarket/marketplace-service/internal/config"
	"servicemarket/marketplace-service/internal/grpcserver"
	"servicemarket/marketplace-service/internal/httpx"
	"servicemarket/marketplace-service/internal/jobs"
	"servicemarket/marketplace-service/internal/live"
	"servicemarket/marketplace-service/internal/messaging"
	"servicemarket/marketplace-service/internal/metrics"
	"servicemarket/marketplace-service/internal/notify"
	"servicemarket/marketplace-service/internal/scheduler"
	"servicemarket/marketplace-service/internal/store"
)

// Version is reported by /health.
const Version = "1.0.0"

const (
	shutdownTimeout     = 10 * time.Second
	healthCheckInterval = 15 * time.Second
	cacheKeyPrefix      = "marketplace:"
)

// App is the wired service.
type App struct {
	cfg   *config.Config
	store store.Store

	registry *prometheus.Registry
	hub      *live.Hub
	relay    *live.RedisRelay // nil without Redis

	notifications *notify.Service
	jobs          *jobs.Service
	messages      *messaging.Service

	router http.Handler
	grpc   *grpc.Server
	health *health.Server
	sched  *scheduler.Scheduler
}

// New wires the service on st. rdb may be nil, in which case listings are
// cached in process and live frames reach only this process's connections.
func New(cfg *config.Config, st store.Store, rdb *redis.Client) *App {
	a := &App{cfg: cfg, store: st, registry: prometheus.NewRegistry()}
	m := metrics.NewCollector(a.registry)

	a.hub = live.NewHub(m)
	var (
		pusher live.Pusher = a.hub
		c      cache.Cache = cache.NewMemory()
	)
	if rdb != nil {
		a.relay = live.NewRedisRelay(rdb, a.hub)
		pusher = a.relay
		c = cache.NewRedis(rdb, cacheKeyPrefix)
	}

	writer := notify.NewWriter(st, pusher, m)
	a.notifications = notify.NewService(st)
	a.jobs = jobs.NewService(st, c, writer, m, cfg.ListingCacheTTL)
	a.messages = messaging.NewService(st, pusher, writer)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	a.router = a.routes(verifier)
	a.grpc, a.health = grpcserver.New(grpcserver.NewServer(a.notifications, a.jobs))
	a.sched = scheduler.New(a.notifications, cfg.CleanupSchedule, cfg.NotificationRetention)
	return a
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.router }

// GRPCServer returns the gRPC server.
func (a *App) GRPCServer() *grpc.Server { return a.grpc }

// Hub returns the process-local connection registry.
func (a *App) Hub() *live.Hub { return a.hub }

func (a *App) routes(verifier *auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", a.healthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(a.registry))
	r.Method(http.MethodGet, "/ws", live.NewHandler(a.hub, a.messages, verifier, a.cfg.WSInsecureSkipVerify))

	r.Group(func(r chi.Router) {
		r.Use(verifier.Middleware)
		jobs.NewHandler(a.jobs).Routes(r)
		messaging.NewHandler(a.messages).Routes(r)
		notify.NewHandler(a.notifications).Routes(r)
	})
	return r
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := a.store.Ping(ctx); err != nil {
		slog.Warn("health: store ping failed", "err", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	httpx.JSON(w, code, map[string]string{
		"status":  status,
		"service": "marketplace-service",
		"version": Version,
	})
}

// Run serves HTTP and gRPC, runs the relay subscriber, the health watcher
// and the retention scheduler, and shuts everything down when ctx is done.
func (a *App) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lis, err := net.Listen("tcp", ":"+a.cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	// Hijacked WebSocket connections end with the group.
	httpSrv.BaseContext = func(net.Listener) context.Context { return ctx }

	if err := a.sched.Start(ctx); err != nil {
		lis.Close()
		return err
	}

	g.Go(func() error {
		slog.Info("http listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("grpc listening", "addr", lis.Addr().String())
		if err := a.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		grpcserver.WatchHealth(ctx, a.health, a.store, healthCheckInterval)
		return nil
	})
	if a.relay != nil {
		g.Go(func() error { return a.relay.Run(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.sched.Stop()
		a.grpc.GracefulStop()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

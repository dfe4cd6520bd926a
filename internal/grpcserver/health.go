package grpcserver

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New returns a gRPC server with MarketplaceService and the standard health
// service registered.
func New(srv MarketplaceServer, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(opts...)
	Register(s, srv)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

// WatchHealth sets the serving status of the service (and of the overall
// server, "") from p every interval until ctx is done.
func WatchHealth(ctx context.Context, hs *health.Server, p Pinger, interval time.Duration) {
	check := func() {
		pingCtx, cancel := context.WithTimeout(ctx, interval/2)
		defer cancel()

		st := healthpb.HealthCheckResponse_SERVING
		if err := p.Ping(pingCtx); err != nil {
			slog.Warn("grpc health: store ping failed", "err", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", st)
		hs.SetServingStatus(ServiceName, st)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			check()
		}
	}
}

// Package grpcserver implements the MarketplaceService gRPC server used by
// internal callers (gateway, back-office).
//
// It delegates all business logic to the notify and jobs services and
// handles only the gRPC transport concerns: metadata extraction, error
// mapping and conversion to the protobuf well-known types the service
// speaks.
package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"servicemarket/marketplace-service/internal/apperr"
	"servicemarket/marketplace-service/internal/auth"
	"servicemarket/marketplace-service/internal/jobs"
	"servicemarket/marketplace-service/internal/model"
	"servicemarket/marketplace-service/internal/notify"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "marketplace.v1.MarketplaceService"

// MarketplaceServer is the server API of MarketplaceService.
type MarketplaceServer interface {
	UnreadNotificationCount(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
	ApplicationStatus(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// Server implements MarketplaceServer.
type Server struct {
	notifications *notify.Service
	jobs          *jobs.Service
}

// NewServer constructs a gRPC Server backed by the given services.
func NewServer(notifications *notify.Service, jobSvc *jobs.Service) *Server {
	return &Server{notifications: notifications, jobs: jobSvc}
}

var _ MarketplaceServer = (*Server)(nil)

// Register mounts srv on s.
func Register(s grpc.ServiceRegistrar, srv MarketplaceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// ─── RPC implementations ──────────────────────────────────────────────────────

// UnreadNotificationCount returns the caller's unread notification count.
func (s *Server) UnreadNotificationCount(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	caller, err := identityFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	n, err := s.notifications.UnreadCount(ctx, caller.UserID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

// ApplicationStatus reports the caller's application state for a job.
func (s *Server) ApplicationStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	caller, err := identityFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "job id is required")
	}

	st, err := s.jobs.ApplicationStatusFor(ctx, caller, req.GetValue())
	if err != nil {
		return nil, toGRPCError(err)
	}
	return structpb.NewStruct(map[string]any{
		"hasApplied":       st.HasApplied,
		"applicationCount": st.ApplicationCount,
		"maxApplications":  st.MaxApplications,
		"canApply":         st.CanApply,
	})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// identityFromCtx extracts the x-user-id and x-user-role values forwarded by
// the gateway via gRPC metadata.
func identityFromCtx(ctx context.Context) (auth.Identity, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return auth.Identity{}, status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get("x-user-id")
	if len(vals) == 0 || vals[0] == "" {
		return auth.Identity{}, status.Error(codes.Unauthenticated, "missing x-user-id metadata")
	}
	id := auth.Identity{UserID: vals[0]}
	if roles := md.Get("x-user-role"); len(roles) > 0 {
		id.Role = model.Role(roles[0])
	}
	return id, nil
}

// toGRPCError maps domain errors to gRPC status errors.
func toGRPCError(err error) error {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, apperr.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, apperr.ErrInvalidState),
		errors.Is(err, apperr.ErrCapacity),
		errors.Is(err, apperr.ErrAlreadyApplied):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, "internal server error")
}

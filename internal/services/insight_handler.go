package services

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unifyiq/unifyiq/internal/api"
	"github.com/unifyiq/unifyiq/internal/utils"
)

// InsightHandler implements the gRPC InsightService on top of a QueryService.
type InsightHandler struct {
	api.UnimplementedInsightServiceServer

	logger  *slog.Logger
	queries *QueryService
	// onReload is told whether a dataset is being served after each reload.
	onReload func(serving bool)
}

// NewInsightHandler constructs the gRPC facade. onReload may be nil.
func NewInsightHandler(logger *slog.Logger, queries *QueryService, onReload func(serving bool)) *InsightHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InsightHandler{logger: logger, queries: queries, onReload: onReload}
}

// Query answers one question. Refusals are successful responses.
func (h *InsightHandler) Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if h.queries == nil {
		return nil, status.Error(codes.FailedPrecondition, "query service not configured")
	}
	domainReq, err := api.FromProtoQueryRequest(req)
	if err != nil {
		return nil, api.StatusFromError(err)
	}
	env, err := h.queries.Ask(ctx, domainReq)
	if err != nil {
		return nil, api.StatusFromError(err)
	}
	out, err := api.ToProtoStruct(env)
	if err != nil {
		h.logger.Error("encode envelope failed", slog.String("query_id", env.Meta.QueryID), slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

// Reload rebuilds the dataset and returns its statistics.
func (h *InsightHandler) Reload(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if h.queries == nil {
		return nil, status.Error(codes.FailedPrecondition, "query service not configured")
	}
	stats, err := h.queries.Reload(ctx)
	if h.onReload != nil && h.queries.store != nil {
		h.onReload(h.queries.store.Snapshot() != nil)
	}
	if err != nil {
		h.logger.Error("reload failed", slog.Any("error", err))
		if utils.IsConfiguration(err) {
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		}
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	out, err := api.ToProtoStruct(stats)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

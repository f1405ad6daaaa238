package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
	"github.com/dmitrijs2005/resumegate/internal/server/services"
)

func (s *GRPCServer) GetAttempts(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "client id is required")
	}
	rec, err := s.gate.Attempts(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(attemptFields(rec))
}

func (s *GRPCServer) ResetAttempts(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "client id is required")
	}
	if err := s.gate.ResetAttempts(ctx, req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info(ctx, "attempts reset via admin service", "client", req.GetValue())
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) ListLocked(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	recs, err := s.gate.ListLocked(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]any, 0, len(recs))
	for _, rec := range recs {
		items = append(items, attemptFields(rec))
	}
	return structpb.NewList(items)
}

func (s *GRPCServer) SweepExpired(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	n, err := s.gate.SweepExpired(ctx, s.now().Add(-s.grace))
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Int64(n), nil
}

func (s *GRPCServer) ListVersions(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	list, err := s.gate.ListVersions(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]any, 0, len(list))
	for _, v := range list {
		items = append(items, versionFields(v))
	}
	return structpb.NewList(items)
}

func (s *GRPCServer) ListObjects(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	objs, err := s.gate.ListObjects(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]any, 0, len(objs))
	for _, o := range objs {
		items = append(items, objectFields(o))
	}
	return structpb.NewList(items)
}

func toStatus(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return status.Error(codes.NotFound, "not found")
	}
	return status.Error(codes.Internal, "internal error")
}

func attemptFields(rec *models.AttemptRecord) map[string]any {
	m := map[string]any{
		"clientId": rec.ClientID,
		"attempts": rec.Attempts,
		"locked":   rec.Locked,
	}
	if rec.LockExpiry != nil {
		m["lockExpiry"] = rec.LockExpiry.UTC().Format(time.RFC3339)
	}
	if rec.LastAttempt != nil {
		m["lastAttempt"] = rec.LastAttempt.UTC().Format(time.RFC3339)
	}
	return m
}

func versionFields(v models.VersionEntry) map[string]any {
	return map[string]any{
		"id":          v.ID,
		"name":        v.Name,
		"createdTime": v.CreatedTime.UTC().Format(time.RFC3339),
		"date":        v.Date.UTC().Format(time.RFC3339),
		"mimeType":    v.MimeType,
		"size":        v.Size,
	}
}

func objectFields(o services.ObjectStatus) map[string]any {
	return map[string]any{
		"id":          o.ID,
		"name":        o.Name,
		"mimeType":    o.MimeType,
		"size":        o.Size,
		"createdTime": o.CreatedTime.UTC().Format(time.RFC3339),
		"tracked":     o.Tracked,
	}
}

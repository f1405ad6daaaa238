package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/resumegate/internal/common"
)

// accessTokenInterceptor admits only calls carrying an admin role token.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			accessToken = values[0]
		}
	}
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.issuer.Verify(accessToken)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	if !claims.IsAdmin() {
		s.logger.Warn(ctx, "non-admin token on admin service", "method", info.FullMethod, "subject", claims.Subject)
		return nil, status.Error(codes.PermissionDenied, "admin role required")
	}

	return handler(ctx, req)
}

// Package admincli is the operator client for the gateway's admin service.
package admincli

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/resumegate/internal/common"
	gs "github.com/dmitrijs2005/resumegate/internal/server/grpc"
)

type GRPCClient struct {
	conn        *grpc.ClientConn
	admin       *gs.AdminClient
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withAccessToken(ctx, c.accessToken), method, req, reply, cc, opts...)
}

// NewGRPCClient connects lazily to target and attaches token to every call.
func NewGRPCClient(target, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{accessToken: token}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.admin = gs.NewAdminClient(conn)
	return c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) Attempts(ctx context.Context, clientID string) (*structpb.Struct, error) {
	return c.admin.GetAttempts(ctx, clientID)
}

func (c *GRPCClient) Reset(ctx context.Context, clientID string) error {
	return c.admin.ResetAttempts(ctx, clientID)
}

func (c *GRPCClient) Locked(ctx context.Context) (*structpb.ListValue, error) {
	return c.admin.ListLocked(ctx)
}

func (c *GRPCClient) Sweep(ctx context.Context) (int64, error) {
	return c.admin.SweepExpired(ctx)
}

func (c *GRPCClient) Versions(ctx context.Context) (*structpb.ListValue, error) {
	return c.admin.ListVersions(ctx)
}

func (c *GRPCClient) Objects(ctx context.Context) (*structpb.ListValue, error) {
	return c.admin.ListObjects(ctx)
}

package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/resumegate/internal/logging"
	"github.com/dmitrijs2005/resumegate/internal/server/auth"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
	"github.com/dmitrijs2005/resumegate/internal/server/services"
)

// Backend is the part of the gate the admin service operates on.
type Backend interface {
	Attempts(ctx context.Context, clientID string) (*models.AttemptRecord, error)
	ResetAttempts(ctx context.Context, clientID string) error
	ListLocked(ctx context.Context) ([]*models.AttemptRecord, error)
	SweepExpired(ctx context.Context, before time.Time) (int64, error)
	ListVersions(ctx context.Context) ([]models.VersionEntry, error)
	ListObjects(ctx context.Context) ([]services.ObjectStatus, error)
}

type GRPCServer struct {
	address string
	gate    Backend
	issuer  *auth.SessionIssuer
	grace   time.Duration
	logger  logging.Logger
	now     func() time.Time
}

// NewGRPCServer builds the admin server. SweepExpired drops locks that
// expired more than grace ago.
func NewGRPCServer(a string, l logging.Logger, gate Backend, issuer *auth.SessionIssuer, grace time.Duration) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		gate:    gate,
		issuer:  issuer,
		grace:   grace,
		now:     time.Now,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	RegisterAdminServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}

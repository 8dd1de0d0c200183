// Package grpc exposes the auth core as the checkin.auth.AuthService gRPC
// service.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/eventcheckin/internal/logging"
	pb "github.com/dmitrijs2005/eventcheckin/internal/proto"
	"github.com/dmitrijs2005/eventcheckin/internal/server/auth"
	"github.com/dmitrijs2005/eventcheckin/internal/server/models"
	"github.com/dmitrijs2005/eventcheckin/internal/server/services"
	"google.golang.org/grpc"
)

// AuthService is what the gRPC layer needs from services.AuthService.
type AuthService interface {
	Signup(ctx context.Context, in services.SignupInput) (*auth.TokenPair, error)
	Signin(ctx context.Context, in services.SigninInput) (*auth.TokenPair, error)
	RefreshTokens(ctx context.Context, userID string, tokenVersion int64, presented string) (*services.RefreshResult, error)
	Logout(ctx context.Context, userID string) error
	Me(ctx context.Context, userID string) (*models.Profile, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
	VerifyRefreshToken(token string) (*auth.Claims, error)
}

type GRPCServer struct {
	address string
	svc     AuthService
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, svc AuthService) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		svc:     svc,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))

	// registers service
	pb.RegisterAuthServiceServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/eventcheckin/internal/common"
	pb "github.com/dmitrijs2005/eventcheckin/internal/proto"
	"github.com/dmitrijs2005/eventcheckin/internal/server/models"
	"github.com/dmitrijs2005/eventcheckin/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Signup(ctx context.Context, req *pb.SignupRequest) (*pb.TokenResponse, error) {

	s.logger.Info(ctx, "Signup request")

	pair, err := s.svc.Signup(ctx, services.SignupInput{Email: req.Email, Name: req.Name, Password: req.Password})
	if err != nil {
		return nil, toStatus(err)
	}

	return &pb.TokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *GRPCServer) Signin(ctx context.Context, req *pb.SigninRequest) (*pb.TokenResponse, error) {

	pair, err := s.svc.Signin(ctx, services.SigninInput{Email: req.Email, Password: req.Password})
	if err != nil {
		return nil, toStatus(err)
	}

	return &pb.TokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *GRPCServer) Refresh(ctx context.Context, _ *pb.RefreshRequest) (*pb.RefreshResponse, error) {

	md, _ := metadata.FromIncomingContext(ctx)
	token := refreshTokenFromMD(md)
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing refresh token")
	}

	claims, err := s.svc.VerifyRefreshToken(token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
	}

	res, err := s.svc.RefreshTokens(ctx, claims.UserID(), claims.TokenVersion, token)
	if err != nil {
		return nil, toStatus(err)
	}

	return &pb.RefreshResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		User:         toProfile(res.User),
	}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, _ *pb.LogoutRequest) (*pb.LogoutResponse, error) {

	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	if err := s.svc.Logout(ctx, claims.UserID()); err != nil {
		return nil, toStatus(err)
	}

	return &pb.LogoutResponse{Success: true}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *pb.MeRequest) (*pb.Profile, error) {

	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	p, err := s.svc.Me(ctx, claims.UserID())
	if err != nil {
		return nil, toStatus(err)
	}

	out := toProfile(*p)
	return &out, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *pb.PingRequest) (*pb.PingResponse, error) {

	return &pb.PingResponse{Status: "OK"}, nil

}

func toProfile(p models.Profile) pb.Profile {
	return pb.Profile{UserID: p.UserID, Email: p.Email, Name: p.Name, Role: p.Role}
}

// toStatus maps service errors to gRPC status codes. Internal details never
// reach the client.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, common.ErrorUnauthorized.Error())
	case errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrBadSignature),
		errors.Is(err, common.ErrMalformedToken):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrForbidden):
		return status.Error(codes.PermissionDenied, common.ErrForbidden.Error())
	case errors.Is(err, common.ErrConflict):
		return status.Error(codes.AlreadyExists, common.ErrConflict.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, common.ErrorNotFound.Error())
	default:
		return status.Error(codes.Internal, common.ErrorInternal.Error())
	}
}

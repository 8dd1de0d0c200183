package grpc

import (
	"context"

	"github.com/dmitrijs2005/eventcheckin/internal/common"
	pb "github.com/dmitrijs2005/eventcheckin/internal/proto"
	"github.com/dmitrijs2005/eventcheckin/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// protectedMethods require a valid access token.
var protectedMethods = map[string]bool{
	pb.AuthService_Logout_FullMethodName: true,
	pb.AuthService_Me_FullMethodName:     true,
}

func firstValue(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

// accessTokenFromMD reads the access_token key, then a bearer authorization.
func accessTokenFromMD(md metadata.MD) string {
	if t := firstValue(md, common.AccessTokenHeaderName); t != "" {
		return t
	}
	return common.BearerToken(firstValue(md, common.AuthorizationHeaderName))
}

// refreshTokenFromMD reads the rt key, then a bearer authorization.
func refreshTokenFromMD(md metadata.MD) string {
	if t := firstValue(md, common.RefreshTokenCookieName); t != "" {
		return t
	}
	return common.BearerToken(firstValue(md, common.AuthorizationHeaderName))
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if protectedMethods[info.FullMethod] {

		md, _ := metadata.FromIncomingContext(ctx)
		accessToken := accessTokenFromMD(md)
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		claims, err := s.svc.Authenticate(ctx, accessToken)
		if err != nil {
			return nil, toStatus(err)
		}

		ctx = context.WithValue(ctx, claimsKey, claims)

	}

	return handler(ctx, req)
}

func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

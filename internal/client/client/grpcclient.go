package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/eventcheckin/internal/client/models"
	"github.com/dmitrijs2005/eventcheckin/internal/common"
	pb "github.com/dmitrijs2005/eventcheckin/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.AuthServiceClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	onSession    func(models.Session)
}

func withToken(ctx context.Context, key, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(key, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	session := s.Session()
	if session.AccessToken != "" {
		ctx = withToken(ctx, common.AccessTokenHeaderName, session.AccessToken)
	}

	err := invoker(ctx, method, req, reply, cc, opts...)
	if err == nil || method == pb.AuthService_Refresh_FullMethodName {
		return err
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}
	if session.RefreshToken == "" {
		return err
	}

	if _, rerr := s.refresh(ctx); rerr != nil {
		return rerr
	}

	// tokens rotated, retry with the new access token
	ctx = withToken(ctx, common.AccessTokenHeaderName, s.Session().AccessToken)
	return invoker(ctx, method, req, reply, cc, opts...)
}

func NewCheckinClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// InitGRPCClient dials the endpoint. Extra options are appended after the
// defaults, so tests can swap in a bufconn dialer.
func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, opts...)
	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewAuthServiceClient(conn)
	return nil
}

// OnSessionChange registers fn to be called whenever the held tokens change,
// including when they are cleared. The CLI uses it to persist the session.
func (s *GRPCClient) OnSessionChange(fn func(models.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSession = fn
}

func (s *GRPCClient) SetSession(session models.Session) {
	s.mu.Lock()
	s.accessToken = session.AccessToken
	s.refreshToken = session.RefreshToken
	fn := s.onSession
	s.mu.Unlock()

	if fn != nil {
		fn(session)
	}
}

func (s *GRPCClient) Session() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Session{AccessToken: s.accessToken, RefreshToken: s.refreshToken}
}

func (s *GRPCClient) Signup(ctx context.Context, email, name, password string) error {
	res, err := s.client.Signup(ctx, &pb.SignupRequest{Email: email, Name: name, Password: password})
	if err != nil {
		return s.mapError(err)
	}
	s.SetSession(models.Session{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken})
	return nil
}

func (s *GRPCClient) Signin(ctx context.Context, email, password string) error {
	res, err := s.client.Signin(ctx, &pb.SigninRequest{Email: email, Password: password})
	if err != nil {
		return s.mapError(err)
	}
	s.SetSession(models.Session{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken})
	return nil
}

// Refresh rotates the held token pair. A rejected refresh token means the
// session is gone server-side, so the local copy is dropped too.
func (s *GRPCClient) Refresh(ctx context.Context) (*models.Profile, error) {
	p, err := s.refresh(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return p, nil
}

func (s *GRPCClient) refresh(ctx context.Context) (*models.Profile, error) {
	rt := s.Session().RefreshToken
	if rt == "" {
		return nil, ErrNotSignedIn
	}

	ctx = withToken(ctx, common.RefreshTokenCookieName, rt)
	res, err := s.client.Refresh(ctx, &pb.RefreshRequest{})
	if err != nil {
		if c := status.Code(err); c == codes.PermissionDenied || c == codes.Unauthenticated {
			s.SetSession(models.Session{})
		}
		return nil, err
	}

	s.SetSession(models.Session{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken})
	return toProfile(&res.User), nil
}

func (s *GRPCClient) Logout(ctx context.Context) error {
	if s.Session().Empty() {
		return ErrNotSignedIn
	}
	_, err := s.client.Logout(ctx, &pb.LogoutRequest{})
	if err != nil && status.Code(err) != codes.Unauthenticated {
		return s.mapError(err)
	}
	// an unauthenticated logout still ends the local session
	s.SetSession(models.Session{})
	return nil
}

func (s *GRPCClient) Me(ctx context.Context) (*models.Profile, error) {
	if s.Session().Empty() {
		return nil, ErrNotSignedIn
	}
	res, err := s.client.Me(ctx, &pb.MeRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return toProfile(res), nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	res, err := s.client.Ping(ctx, &pb.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}
	if res.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func toProfile(p *pb.Profile) *models.Profile {
	return &models.Profile{UserID: p.UserID, Email: p.Email, Name: p.Name, Role: p.Role}
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return ErrUnauthorized
	case codes.PermissionDenied:
		return ErrForbidden
	case codes.AlreadyExists:
		return ErrConflict
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidInput, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

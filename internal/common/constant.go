package common

const (
	// AccessTokenHeaderName is the gRPC metadata key carrying the access token.
	AccessTokenHeaderName = "access_token"

	// RefreshTokenCookieName is the cookie (and gRPC metadata key) carrying
	// the refresh token.
	RefreshTokenCookieName = "rt"

	// AuthorizationHeaderName carries "Bearer <token>" as a fallback for both
	// token kinds.
	AuthorizationHeaderName = "authorization"

	// DefaultRole is assigned to every new account.
	DefaultRole = "user"

	// RoleAdmin may manage other accounts. It is granted in the database,
	// never through the API.
	RoleAdmin = "admin"
)

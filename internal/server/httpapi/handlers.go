package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/eventcheckin/internal/common"
	"github.com/dmitrijs2005/eventcheckin/internal/server/auth"
	"github.com/dmitrijs2005/eventcheckin/internal/server/models"
	"github.com/dmitrijs2005/eventcheckin/internal/server/services"
	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

type signupRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type signinRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type refreshResponse struct {
	AccessToken string         `json:"access_token"`
	User        models.Profile `json:"user"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request")
		return
	}

	pair, err := s.svc.Signup(c.Request.Context(), services.SignupInput{Email: req.Email, Name: req.Name, Password: req.Password})
	if err != nil {
		s.fail(c, err)
		return
	}

	s.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusCreated, tokenResponse{AccessToken: pair.AccessToken})
}

func (s *Server) signin(c *gin.Context) {
	var req signinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request")
		return
	}

	pair, err := s.svc.Signin(c.Request.Context(), services.SigninInput{Email: req.Email, Password: req.Password})
	if err != nil {
		s.fail(c, err)
		return
	}

	s.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, tokenResponse{AccessToken: pair.AccessToken})
}

// refresh takes the token from the rt cookie, falling back to a bearer
// header. Signature and expiry are checked before the store is consulted.
func (s *Server) refresh(c *gin.Context) {
	token, err := c.Cookie(common.RefreshTokenCookieName)
	if err != nil || token == "" {
		token = common.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		abort(c, http.StatusUnauthorized, "refresh token missing")
		return
	}

	claims, err := s.svc.VerifyRefreshToken(token)
	if err != nil {
		abort(c, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	res, err := s.svc.RefreshTokens(c.Request.Context(), claims.UserID(), claims.TokenVersion, token)
	if err != nil {
		if errors.Is(err, common.ErrForbidden) {
			s.clearRefreshCookie(c)
		}
		s.fail(c, err)
		return
	}

	s.setRefreshCookie(c, res.Tokens.RefreshToken)
	c.JSON(http.StatusOK, refreshResponse{AccessToken: res.Tokens.AccessToken, User: res.User})
}

func (s *Server) logout(c *gin.Context) {
	claims := c.MustGet(claimsKey).(*auth.Claims)

	if err := s.svc.Logout(c.Request.Context(), claims.UserID()); err != nil {
		s.fail(c, err)
		return
	}

	s.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) me(c *gin.Context) {
	claims := c.MustGet(claimsKey).(*auth.Claims)

	p, err := s.svc.Me(c.Request.Context(), claims.UserID())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// createUser is reachable by administrators only.
func (s *Server) createUser(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request")
		return
	}

	p, err := s.svc.CreateUser(c.Request.Context(), services.SignupInput{Email: req.Email, Name: req.Name, Password: req.Password})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// requireRole must run after requireAccessToken.
func (s *Server) requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := c.MustGet(claimsKey).(*auth.Claims)
		if err := s.svc.RequireRole(c.Request.Context(), claims.UserID(), roles...); err != nil {
			s.fail(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) requireAccessToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := common.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := s.svc.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, common.ErrorInternal) {
				s.fail(c, err)
				return
			}
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Message: msg})
}

func (s *Server) fail(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	abort(c, status, msg)
}

// statusFor maps service errors to a status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, common.ErrorUnauthorized.Error()
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrBadSignature),
		errors.Is(err, common.ErrMalformedToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, common.ErrForbidden.Error()
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, common.ErrConflict.Error()
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, common.ErrorNotFound.Error()
	default:
		return http.StatusInternalServerError, common.ErrorInternal.Error()
	}
}

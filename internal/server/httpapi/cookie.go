package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/eventcheckin/internal/common"
	"github.com/gin-gonic/gin"
)

func (s *Server) sameSite() http.SameSite {
	if s.cookie.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (s *Server) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(s.sameSite())
	c.SetCookie(common.RefreshTokenCookieName, token, int(s.cookie.MaxAge.Seconds()), "/", s.cookie.Domain, s.cookie.Secure, true)
}

func (s *Server) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(s.sameSite())
	c.SetCookie(common.RefreshTokenCookieName, "", -1, "/", s.cookie.Domain, s.cookie.Secure, true)
}

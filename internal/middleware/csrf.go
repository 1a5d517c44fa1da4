package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
	"github.com/sirupsen/logrus"

	"expense_tracker/internal/apperr"
)

// CSRFHeader carries the token on state-changing requests
const CSRFHeader = "X-CSRF-Token"

var errInvalidCSRF = apperr.Forbidden("Invalid CSRF token")

// CSRF adapts gorilla/csrf to gin. The real token lives in a signed http-only
// cookie; clients echo a masked copy of it in CSRFHeader on POST, PUT, PATCH
// and DELETE.
type CSRF struct {
	protect func(http.Handler) http.Handler
	secure  bool
}

// NewCSRF signs the token cookie with authKey (32 bytes). When secure is
// false requests are treated as plain HTTP, so no Referer is required.
// trustedOrigins lists hosts, such as the SPA's, allowed to post cross-origin.
func NewCSRF(authKey []byte, cookieName string, secure bool, trustedOrigins ...string) *CSRF {
	protect := csrf.Protect(authKey,
		csrf.CookieName(cookieName),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.Secure(secure),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.RequestHeader(CSRFHeader),
		csrf.TrustedOrigins(trustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			// the gin side writes the response
			logrus.WithFields(logrus.Fields{"path": r.URL.Path, "reason": csrf.FailureReason(r)}).Warn("CSRF check failed")
		})),
	)
	return &CSRF{protect: protect, secure: secure}
}

// Middleware runs the check and exposes the request token to later handlers
func (x *CSRF) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		req := c.Request
		if !x.secure {
			req = csrf.PlaintextHTTPRequest(req)
		}
		passed := false
		x.protect(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			c.Request = r
			passed = true
		})).ServeHTTP(c.Writer, req)
		if !passed {
			c.AbortWithStatusJSON(apperr.Response(errInvalidCSRF))
			return
		}
		c.Next()
	}
}

// Token returns a masked token for the current request. It is only valid
// behind Middleware, which also sets the cookie when the client has none.
func (x *CSRF) Token(c *gin.Context) (string, error) {
	token := csrf.Token(c.Request)
	if token == "" {
		return "", errors.New("csrf token requested outside the CSRF middleware")
	}
	return token, nil
}

package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cleancharcoal/internal/utils"
)

const (
	csrfTokenBytes = 32
	csrfCookieAge  = 365 * 24 * time.Hour
	csrfFailed     = "CSRF Failed: CSRF token missing or incorrect."
)

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// EnsureCSRFCookie sets a random token cookie on responses to clients that
// do not hold one yet.
func EnsureCSRFCookie(cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok, err := c.Cookie(cookieName); err == nil && tok != "" {
			c.Next()
			return
		}
		tok, err := utils.NewToken(csrfTokenBytes)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not issue csrf token"})
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cookieName, tok, int(csrfCookieAge/time.Second), "/", "", false, false)
		c.Next()
	}
}

// CSRF rejects unsafe requests whose header token does not equal the cookie.
func CSRF(cookieName, headerName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		cookie, err := c.Cookie(cookieName)
		header := c.GetHeader(headerName)
		if err != nil || cookie == "" || header == "" ||
			subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": csrfFailed})
			return
		}
		c.Next()
	}
}

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cleancharcoal/internal/handlers"
	"cleancharcoal/internal/middleware"
)

// CSRFNames are the cookie and header carrying the CSRF token.
type CSRFNames struct {
	Cookie string
	Header string
}

func SetupRoutes(
	r *gin.Engine,
	resetHandler *handlers.PasswordResetHandler,
	csrf CSRFNames,
) *gin.Engine {

	// ---- public pages
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/forgot-password/", middleware.EnsureCSRFCookie(csrf.Cookie), resetHandler.Page)

	// ---- password API (CSRF double submit)
	password := r.Group("/api/password", middleware.CSRF(csrf.Cookie, csrf.Header))
	{
		password.POST("/forgot/", resetHandler.Forgot)
		password.POST("/reset/", resetHandler.Reset)
	}

	return r
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindJSON decodes the body into dst and answers 400 on failure. Missing
// required fields get missingMsg; anything else is a malformed body.
func bindJSON(c *gin.Context, dst any, missingMsg string) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": missingMsg})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body."})
	return false
}

// errorMapping turns a service sentinel into a response.
type errorMapping struct {
	err    error
	status int
	msg    string
}

// writeError answers with the first mapping matching err, or 500 with fallback.
func writeError(c *gin.Context, err error, mappings []errorMapping, fallback string) {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": m.msg})
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// AdminAuth protects the admin API with HTTP basic auth. Without a
// configured password every admin request is refused.
func AdminAuth(user, password string, logger *pterm.Logger) gin.HandlerFunc {
	if password == "" {
		logger.Warn("ADMIN_PASSWORD is not set, admin API disabled")
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Admin API is disabled"})
		}
	}
	return gin.BasicAuthForRealm(gin.Accounts{user: password}, "keygate")
}

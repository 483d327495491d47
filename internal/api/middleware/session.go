package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionKey = "keygate.session_id"

// Session makes sure every request carries a session id. A missing or
// malformed cookie is replaced by a fresh random id.
func Session(cookieName string, ttl time.Duration) gin.HandlerFunc {
	maxAge := int(ttl.Seconds())

	return func(c *gin.Context) {
		id, err := c.Cookie(cookieName)
		if err != nil || !validSessionID(id) {
			id = uuid.NewString()
			// plain HTTP during local development would drop Secure cookies
			secure := c.Request.TLS != nil
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieName, id, maxAge, "/", "", secure, true)
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

// SessionID returns the id set by Session, or "" when the middleware did not run.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

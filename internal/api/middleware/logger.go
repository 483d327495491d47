package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// RequestLogger logs every request after it was served. Server errors are
// logged at warn level, everything else at debug.
func RequestLogger(logger *pterm.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := logger.Args(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start).Round(time.Microsecond),
			"client_ip", c.ClientIP(),
		)
		if len(c.Errors) > 0 {
			args = append(args, logger.Args("errors", c.Errors.String())...)
		}

		if status >= 500 {
			logger.Warn("Request failed", args)
			return
		}
		logger.Debug("Request served", args)
	}
}

// Recovery turns a handler panic into a 500 and logs it through pterm.
func Recovery(logger *pterm.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err any) {
		logger.WithCaller().Error("Panic while serving request", logger.Args("path", c.Request.URL.Path, "panic", err))
		c.AbortWithStatusJSON(500, gin.H{"error": "Internal server error"})
	})
}

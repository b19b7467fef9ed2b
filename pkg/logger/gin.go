package logger

import (
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware logs one line per request. Query strings are left out since
// the OAuth callback carries the authorization code there.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		lat := time.Since(start)
		switch {
		case status >= 500:
			Errorf("%s %s -> %d (%s) ip=%s", c.Request.Method, c.Request.URL.Path, status, lat, c.ClientIP())
		case status >= 400:
			Warnf("%s %s -> %d (%s) ip=%s", c.Request.Method, c.Request.URL.Path, status, lat, c.ClientIP())
		default:
			Infof("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, lat)
		}
	}
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mindroute-ai/mindroute/src/logx"
)

// RequestLogger logs one structured line per request with latency and
// status. Message bodies are never logged.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logx.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

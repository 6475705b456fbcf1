package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"riskadmin/internal/requestctx"
	"riskadmin/internal/utils"
)

// Logger writes one structured line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		log := utils.Module("http", GetRequestID(c))
		ev := log.Info()
		if status := c.Writer.Status(); status >= 500 {
			ev = log.Error()
		}
		if actor, ok := requestctx.ActorFromContext(c.Request.Context()); ok {
			ev = ev.Str("actor", actor.ID)
		}
		ev.Str("event", utils.EventHTTPRequest).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Float64("latency_ms", float64(latency.Microseconds())/1000.0).
			Str("ip", c.ClientIP()).
			Msg("request")
	}
}

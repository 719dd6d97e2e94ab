package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-queue/pkg/logger"
)

// Logger logs one line per request. Bodies are never logged: login
// requests carry secrets and streams never end.
func Logger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	zl := log.ZL.With().Str("component", "http").Logger()

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.Query(); len(q) > 0 {
			if q.Has(queryToken) {
				q.Set(queryToken, "REDACTED")
			}
			path = path + "?" + q.Encode()
		}

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		msg := "Request processed"
		switch {
		case status >= 500:
			ev = zl.Error()
			msg = "Server error"
		case status >= 400:
			ev = zl.Warn()
			msg = "Client error"
		default:
			ev = zl.Info()
		}

		ev.Str("request_id", c.GetString(ContextRequestID)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("ip", c.ClientIP()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("user_agent", c.Request.UserAgent())
		if role, ok := c.Get(ContextRole); ok {
			ev.Interface("role", role)
		}
		if len(c.Errors) > 0 {
			ev.Str("errors", c.Errors.String())
		}
		ev.Msg(msg)
	}
}

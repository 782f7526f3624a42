package middleware

import (
	"strings"
	"time"

	services "github.com/cntrlcomply/backend/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Request headers identifying the client. There is no authentication; the
// headers only label audit events.
const (
	HeaderSessionID = "X-Session-ID"
	HeaderUserID    = "X-User-ID"
	HeaderUserName  = "X-User-Name"
	HeaderUserRole  = "X-User-Role"
)

// Session attaches the acting user to the request context. Requests without a
// session id get a fresh one, returned in the X-Session-ID response header.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := strings.TrimSpace(c.GetHeader(HeaderSessionID))
		if sessionID == "" {
			sessionID = "sess_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		}
		c.Header(HeaderSessionID, sessionID)

		actor := services.DefaultActor
		if id := strings.TrimSpace(c.GetHeader(HeaderUserID)); id != "" {
			actor = services.Actor{
				UserID:   id,
				UserName: c.GetHeader(HeaderUserName),
				UserRole: c.GetHeader(HeaderUserRole),
			}
			if actor.UserName == "" {
				actor.UserName = id
			}
		}
		actor.IPAddress = c.ClientIP()
		actor.SessionID = sessionID

		c.Request = c.Request.WithContext(services.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// Logger logs every request through zap once it completes.
func Logger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Errorw("[HTTP] request failed", fields...)
		case status >= 400:
			log.Warnw("[HTTP] request rejected", fields...)
		default:
			log.Infow("[HTTP] request", fields...)
		}
	}
}

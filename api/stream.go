package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"tasksync/internal/consts"
	"tasksync/session"
)

const (
	// sessionBuffer bounds undelivered events per connection; overflow drops
	// for that session only.
	sessionBuffer     = 32
	keepAliveInterval = 30 * time.Second
)

// SessionRegistry tracks live push connections.
type SessionRegistry interface {
	Join(s *session.Session)
	Leave(s *session.Session)
}

// streamEvents admits a push connection, joins it to its room and writes every
// delivered event as an SSE frame until the client disconnects.
func streamEvents(reg SessionRegistry, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		adminHint := c.QueryParam("admin") == "true"
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if token := c.QueryParam("token"); authHeader == "" && token != "" {
			authHeader = "Bearer " + token
		}
		id, err := auth.IdentityFromAuthHeader(authHeader, adminHint)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		sess := session.New(id.Subject, id.Role, sessionBuffer)
		reg.Join(sess)
		defer reg.Leave(sess)
		logger.WithFields(log.Fields{
			"connection": sess.ID,
			"subject":    id.Subject,
			"role":       id.Role,
		}).Debug("push session joined")

		if err := writeFrame(c, []byte(`{"kind":"connected"}`)); err != nil {
			return nil
		}
		flusher.Flush()

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()
		ctx := c.Request().Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case payload := <-sess.Events():
				if err := writeFrame(c, payload); err != nil {
					return nil
				}
				flusher.Flush()
			case <-keepAlive.C:
				if _, err := c.Response().Write([]byte(": keep-alive\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func writeFrame(c echo.Context, payload []byte) error {
	if _, err := c.Response().Write([]byte(consts.SSEDataPrefix)); err != nil {
		return err
	}
	if _, err := c.Response().Write(payload); err != nil {
		return err
	}
	_, err := c.Response().Write([]byte("\n\n"))
	return err
}

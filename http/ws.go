package http

import (
	"context"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/scribe-notes/server/ws"
)

// registerWebsocket mounts the live-event endpoint. The handshake prefers a
// bearer token in the Authorization header, falling back to a token query
// parameter for browser clients that cannot set upgrade headers; a
// connection that fails verification is closed immediately without joining
// anything.
func (s *Server) registerWebsocket(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		userID, err := s.tokens.Verify(handshakeToken(conn.Headers(fiber.HeaderAuthorization), conn.Query("token")))
		if err != nil {
			s.log.Debug().Msg("websocket handshake rejected")
			conn.Close()
			return
		}

		session := ws.NewSession(conn, userID, s.hub, s.broker, s.log)
		session.Run(context.Background())
	}))
}

// handshakeToken picks the credential for a websocket upgrade: the
// Authorization header when present, so the token stays out of access logs,
// otherwise the token query parameter.
func handshakeToken(header, query string) string {
	if tokenStr, ok := strings.CutPrefix(header, "Bearer "); ok {
		return tokenStr
	}
	return query
}

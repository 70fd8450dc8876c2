package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scribe-notes/server/domain"
)

// sendBuffer bounds the per-connection outbound queue. A session that falls
// this far behind is closed rather than allowed to stall broadcasts.
const sendBuffer = 64

// Conn is the subset of a websocket connection the session needs. Both the
// fiber and gorilla connection types satisfy it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// Session is one authenticated live connection. It is the unit of room
// membership and event receipt: the read loop dispatches inbound events to
// the broker, and a dedicated write pump drains the outbound queue so
// deliveries to one connection stay FIFO.
type Session struct {
	id     uuid.UUID
	userID domain.UserID
	conn   Conn
	hub    *Hub
	broker *Broker
	log    zerolog.Logger

	sendMu sync.Mutex
	send   chan Message
	closed bool

	closeOnce sync.Once
}

func NewSession(conn Conn, userID domain.UserID, hub *Hub, broker *Broker, log zerolog.Logger) *Session {
	id := uuid.New()
	return &Session{
		id:     id,
		userID: userID,
		conn:   conn,
		hub:    hub,
		broker: broker,
		send:   make(chan Message, sendBuffer),
		log: log.With().
			Str("component", "session").
			Stringer("sessionId", id).
			Stringer("userId", userID).
			Logger(),
	}
}

// UserID returns the identity resolved at connect time.
func (s *Session) UserID() domain.UserID { return s.userID }

// Run registers the session and pumps events until the connection drops.
// It returns once the session is fully torn down.
func (s *Session) Run(ctx context.Context) {
	s.hub.Register(s)
	s.log.Info().Msg("session connected")

	go s.writePump()
	s.readLoop(ctx)
	s.Close()
}

// Close tears the session down: room and user-index removal, outbound queue
// shutdown, connection close. Idempotent; repeated disconnect signals are
// safely ignored.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.hub.Unregister(s)

		s.sendMu.Lock()
		s.closed = true
		close(s.send)
		s.sendMu.Unlock()

		s.conn.Close()
		s.log.Info().Msg("session disconnected")
	})
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.log.Debug().Err(err).Msg("dropping malformed event")
			continue
		}
		s.handle(ctx, ev)
	}
}

func (s *Session) handle(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventJoinNote:
		var p JoinPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			s.log.Debug().Err(err).Msg("dropping malformed join-note")
			return
		}
		s.broker.Join(ctx, s, p.NoteID)

	case EventLeaveNote:
		var p JoinPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			s.log.Debug().Err(err).Msg("dropping malformed leave-note")
			return
		}
		s.hub.Leave(p.NoteID, s)

	case EventEditNote:
		var p EditPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			s.log.Debug().Err(err).Msg("dropping malformed edit-note")
			return
		}
		s.broker.Edit(ctx, s, p)

	default:
		// Unknown event types are ignored, not errors.
		s.log.Debug().Str("type", ev.Type).Msg("ignoring unknown event type")
	}
}

// enqueue queues msg for delivery. It never blocks: a full queue means the
// peer has stopped reading, and the session is closed instead.
func (s *Session) enqueue(msg Message) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- msg:
	default:
		s.log.Warn().Msg("send queue full, dropping session")
		go s.Close()
	}
}

func (s *Session) writePump() {
	for msg := range s.send {
		if err := s.conn.WriteJSON(msg); err != nil {
			s.log.Debug().Err(err).Msg("write failed")
			go s.Close()
			// Keep draining so enqueue never sees a stuck queue.
		}
	}
}

package ws

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/scribe-notes/server/domain"
)

// Hub tracks which sessions are viewing which note (rooms) and which
// sessions belong to which user (for notification push). Rooms exist only
// while at least one session has joined; membership is rebuilt from scratch
// as sessions (re)join, never persisted.
type Hub struct {
	mu    sync.RWMutex
	rooms map[domain.NoteID]map[*Session]struct{}
	users map[domain.UserID]map[*Session]struct{}
	log   zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[domain.NoteID]map[*Session]struct{}),
		users: make(map[domain.UserID]map[*Session]struct{}),
		log:   log.With().Str("component", "hub").Logger(),
	}
}

// Register adds a session to its user's session index.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.users[s.userID]
	if !ok {
		set = make(map[*Session]struct{})
		h.users[s.userID] = set
	}
	set[s] = struct{}{}
}

// Unregister removes a session from its user's session index and from every
// room it joined. Safe to call more than once.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.users[s.userID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.users, s.userID)
		}
	}
	h.removeFromRooms(s)
}

// Join adds a session to a note's room, creating the room on first join.
// Idempotent.
func (h *Hub) Join(noteID domain.NoteID, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[noteID]
	if !ok {
		room = make(map[*Session]struct{})
		h.rooms[noteID] = room
	}
	room[s] = struct{}{}
}

// Leave removes a session from a note's room, deleting the room when it
// empties. A no-op for rooms the session never joined.
func (h *Hub) Leave(noteID domain.NoteID, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[noteID]
	if !ok {
		return
	}
	delete(room, s)
	if len(room) == 0 {
		delete(h.rooms, noteID)
	}
}

// LeaveAll removes a session from every room it belongs to.
func (h *Hub) LeaveAll(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRooms(s)
}

func (h *Hub) removeFromRooms(s *Session) {
	for noteID, room := range h.rooms {
		if _, ok := room[s]; !ok {
			continue
		}
		delete(room, s)
		if len(room) == 0 {
			delete(h.rooms, noteID)
		}
	}
}

// Broadcast enqueues msg for every member of the note's room except the
// excluded session. The membership lock is held across the whole fan-out so
// every delivery sees the same snapshot; enqueueing never blocks, so the
// lock is held only briefly. An empty room is a no-op.
func (h *Hub) Broadcast(noteID domain.NoteID, exclude *Session, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[noteID] {
		if s == exclude {
			continue
		}
		s.enqueue(msg)
	}
}

// Push enqueues msg for every live session of the given user.
func (h *Hub) Push(userID domain.UserID, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.users[userID] {
		s.enqueue(msg)
	}
}

// RoomSize returns the number of sessions in a note's room.
func (h *Hub) RoomSize(noteID domain.NoteID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[noteID])
}

// SessionCount returns the number of live sessions for a user.
func (h *Hub) SessionCount(userID domain.UserID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

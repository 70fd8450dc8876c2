package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribe-notes/server/domain"
)

// fakeConn is an in-memory Conn. Inbound frames are injected through a
// channel; outbound messages are captured for assertions.
type fakeConn struct {
	mu        sync.Mutex
	wrote     []Message
	readCh    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		readCh: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b := <-c.readCh:
		return 1, b, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wrote = append(c.wrote, v.(Message))
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) inject(ev Event) {
	b, _ := json.Marshal(ev)
	c.readCh <- b
}

func (c *fakeConn) allMessages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.wrote...)
}

func (c *fakeConn) messages(eventType string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Message
	for _, m := range c.wrote {
		if m.Type == eventType {
			out = append(out, m)
		}
	}
	return out
}

// memNotes is an in-memory NoteRepository. Get returns copies, matching a
// real repository's row-scan behavior.
type memNotes struct {
	mu      sync.Mutex
	notes   map[domain.NoteID]*domain.Note
	saveErr error
	getHook func() // runs after Get returns its copy, before the caller sees it
}

func newMemNotes(notes ...*domain.Note) *memNotes {
	m := &memNotes{notes: make(map[domain.NoteID]*domain.Note)}
	for _, n := range notes {
		m.notes[n.ID] = n
	}
	return m
}

func copyNote(n *domain.Note) *domain.Note {
	cp := *n
	cp.Collaborators = append([]domain.Collaborator(nil), n.Collaborators...)
	return &cp
}

func (m *memNotes) Get(_ context.Context, id domain.NoteID) (*domain.Note, error) {
	m.mu.Lock()
	n, ok := m.notes[id]
	var cp *domain.Note
	if ok {
		cp = copyNote(n)
	}
	hook := m.getHook
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	if hook != nil {
		hook()
	}
	return cp, nil
}

// Save keeps the stored archive state, like NoteStore.Save: only the
// archival sweep writes those fields.
func (m *memNotes) Save(_ context.Context, note *domain.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cur, ok := m.notes[note.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := copyNote(note)
	cp.Archived = cur.Archived
	cp.ArchivedAt = cur.ArchivedAt
	m.notes[note.ID] = cp
	return nil
}

func (m *memNotes) Delete(_ context.Context, id domain.NoteID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.notes, id)
	return nil
}

func (m *memNotes) get(id domain.NoteID) *domain.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyNote(m.notes[id])
}

func (m *memNotes) archive(id domain.NoteID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	n := m.notes[id]
	n.Archived = true
	n.ArchivedAt = &now
}

// memNotifications is an in-memory NotificationRepository with per-user
// failure injection.
type memNotifications struct {
	mu      sync.Mutex
	rows    []*domain.Notification
	failFor map[domain.UserID]bool
}

func newMemNotifications() *memNotifications {
	return &memNotifications{failFor: make(map[domain.UserID]bool)}
}

func (m *memNotifications) Create(_ context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[n.UserID] {
		return errors.New("storage down")
	}
	m.rows = append(m.rows, n)
	return nil
}

func (m *memNotifications) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memNotifications) forUser(userID domain.UserID) []*domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Notification
	for _, n := range m.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// memUsers is an in-memory UserDirectory.
type memUsers struct {
	users map[domain.UserID]*domain.User
}

func newMemUsers(users ...*domain.User) *memUsers {
	m := &memUsers{users: make(map[domain.UserID]*domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id domain.UserID) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

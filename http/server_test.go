package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribe-notes/server/auth"
	"github.com/scribe-notes/server/domain"
	"github.com/scribe-notes/server/store"
	"github.com/scribe-notes/server/ws"
)

// fakeUsers implements UserStore and the broker's UserDirectory.
type fakeUsers struct {
	mu    sync.Mutex
	users map[domain.UserID]*domain.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[domain.UserID]*domain.User)}
}

func (f *fakeUsers) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return store.ErrEmailTaken
		}
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id domain.UserID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

// fakeNotes implements NoteStore and the broker's NoteRepository.
type fakeNotes struct {
	mu    sync.Mutex
	notes map[domain.NoteID]*domain.Note
}

func newFakeNotes() *fakeNotes {
	return &fakeNotes{notes: make(map[domain.NoteID]*domain.Note)}
}

func copyNote(n *domain.Note) *domain.Note {
	cp := *n
	cp.Collaborators = append([]domain.Collaborator(nil), n.Collaborators...)
	return &cp
}

func (f *fakeNotes) Get(_ context.Context, id domain.NoteID) (*domain.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyNote(n), nil
}

func (f *fakeNotes) Create(_ context.Context, note *domain.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[note.ID] = copyNote(note)
	return nil
}

func (f *fakeNotes) Save(_ context.Context, note *domain.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[note.ID]; !ok {
		return domain.ErrNotFound
	}
	f.notes[note.ID] = copyNote(note)
	return nil
}

func (f *fakeNotes) Delete(_ context.Context, id domain.NoteID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.notes, id)
	return nil
}

func (f *fakeNotes) List(_ context.Context, userID domain.UserID, archived bool, offset, limit int) ([]*domain.Note, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var visible []*domain.Note
	for _, n := range f.notes {
		if n.Archived != archived || domain.Evaluate(n, userID).NoAccess() {
			continue
		}
		visible = append(visible, copyNote(n))
	}
	total := len(visible)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return visible[offset:end], total, nil
}

// fakeNotifications implements NotificationStore and the broker's
// NotificationRepository.
type fakeNotifications struct {
	mu   sync.Mutex
	rows []*domain.Notification
}

func (f *fakeNotifications) Create(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, n)
	return nil
}

func (f *fakeNotifications) List(_ context.Context, userID domain.UserID, unreadOnly bool, offset, limit int) ([]*domain.Notification, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var visible []*domain.Notification
	for _, n := range f.rows {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		visible = append(visible, n)
	}
	total := len(visible)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return visible[offset:end], total, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, ids []domain.NotificationID, userID domain.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.rows {
		for _, id := range ids {
			if n.ID == id && n.UserID == userID {
				n.Read = true
			}
		}
	}
	return nil
}

func (f *fakeNotifications) Delete(_ context.Context, ids []domain.NotificationID, userID domain.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	keep := f.rows[:0]
	for _, n := range f.rows {
		drop := false
		for _, id := range ids {
			if n.ID == id && n.UserID == userID {
				drop = true
			}
		}
		if !drop {
			keep = append(keep, n)
		}
	}
	f.rows = keep
	return nil
}

func (f *fakeNotifications) forUser(userID domain.UserID) []*domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Notification
	for _, n := range f.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	app           *fiber.App
	tokens        *auth.Tokens
	users         *fakeUsers
	notes         *fakeNotes
	notifications *fakeNotifications
	hub           *ws.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zerolog.Nop()
	f := &fixture{
		tokens:        auth.NewTokens("test-secret", time.Hour),
		users:         newFakeUsers(),
		notes:         newFakeNotes(),
		notifications: &fakeNotifications{},
		hub:           ws.NewHub(log),
	}
	broker := ws.NewBroker(f.notes, f.notifications, f.users, f.hub, log)
	srv := NewServer(f.tokens, f.users, f.notes, f.notifications, broker, f.hub, log)
	f.app = srv.App(Options{AllowOrigins: "*"})
	return f
}

// seedUser registers a user directly in the store and returns a valid token.
func (f *fixture) seedUser(t *testing.T, name string) (*domain.User, string) {
	t.Helper()
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	user := domain.NewUser(name, name+"@example.com", hash)
	require.NoError(t, f.users.Create(context.Background(), user))
	token, err := f.tokens.Issue(user.ID)
	require.NoError(t, err)
	return user, token
}

func (f *fixture) request(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := f.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func TestAuthRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	code, body := f.request(t, fiber.MethodPost, "/api/auth/register", "", fiber.Map{
		"name": "alice", "email": "Alice@Example.com", "password": "hunter2",
	})
	require.Equal(t, fiber.StatusCreated, code, string(body))
	var reg authResponse
	require.NoError(t, json.Unmarshal(body, &reg))
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "alice@example.com", reg.User.Email)

	// Duplicate email conflicts.
	code, _ = f.request(t, fiber.MethodPost, "/api/auth/register", "", fiber.Map{
		"name": "alice2", "email": "alice@example.com", "password": "x",
	})
	assert.Equal(t, fiber.StatusConflict, code)

	// Login with the right and wrong password.
	code, body = f.request(t, fiber.MethodPost, "/api/auth/login", "", fiber.Map{
		"email": "alice@example.com", "password": "hunter2",
	})
	require.Equal(t, fiber.StatusOK, code, string(body))

	code, _ = f.request(t, fiber.MethodPost, "/api/auth/login", "", fiber.Map{
		"email": "alice@example.com", "password": "wrong",
	})
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, _ = f.request(t, fiber.MethodPost, "/api/auth/login", "", fiber.Map{
		"email": "nobody@example.com", "password": "hunter2",
	})
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t)

	code, _ := f.request(t, fiber.MethodGet, "/api/notes", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, _ = f.request(t, fiber.MethodGet, "/api/notes", "garbage-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestNotesCRUD(t *testing.T) {
	f := newFixture(t)
	_, token := f.seedUser(t, "alice")

	code, body := f.request(t, fiber.MethodPost, "/api/notes", token, fiber.Map{
		"title": "Draft", "content": "v1",
	})
	require.Equal(t, fiber.StatusCreated, code, string(body))
	var created domain.Note
	require.NoError(t, json.Unmarshal(body, &created))

	code, body = f.request(t, fiber.MethodGet, "/api/notes/"+created.ID.String(), token, nil)
	require.Equal(t, fiber.StatusOK, code)
	var got noteResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.True(t, got.IsOwnedByCurrentUser)
	assert.Equal(t, domain.PermissionWrite, got.UserPermission)

	code, _ = f.request(t, fiber.MethodPatch, "/api/notes/"+created.ID.String(), token, fiber.Map{
		"content": "v2",
	})
	require.Equal(t, fiber.StatusOK, code)
	note, err := f.notes.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", note.Content)

	code, _ = f.request(t, fiber.MethodDelete, "/api/notes/"+created.ID.String(), token, nil)
	assert.Equal(t, fiber.StatusNoContent, code)
	_, err = f.notes.Get(context.Background(), created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Missing note id formats.
	code, _ = f.request(t, fiber.MethodGet, "/api/notes/not-a-uuid", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, code)
	code, _ = f.request(t, fiber.MethodGet, "/api/notes/"+created.ID.String(), token, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestNotesListPagination(t *testing.T) {
	f := newFixture(t)
	user, token := f.seedUser(t, "alice")

	for i := 0; i < 25; i++ {
		note := domain.NewNote(user.ID, fmt.Sprintf("n%d", i), "c")
		require.NoError(t, f.notes.Create(context.Background(), note))
	}

	code, body := f.request(t, fiber.MethodGet, "/api/notes?page=3&limit=10", token, nil)
	require.Equal(t, fiber.StatusOK, code)

	var res struct {
		Notes      []*domain.Note `json:"notes"`
		Pagination pagination     `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Len(t, res.Notes, 5)
	assert.Equal(t, pagination{
		CurrentPage: 3, TotalPages: 3, Total: 25,
		HasNextPage: false, HasPrevPage: true,
	}, res.Pagination)
}

func TestNoteAccessControl(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.seedUser(t, "alice")
	_, readerToken := f.seedUser(t, "carol")
	_, strangerToken := f.seedUser(t, "mallory")

	note := domain.NewNote(owner.ID, "Draft", "v1")
	reader, err := f.users.GetByEmail(context.Background(), "carol@example.com")
	require.NoError(t, err)
	note.Collaborators = []domain.Collaborator{{UserID: reader.ID, Permission: domain.PermissionRead}}
	require.NoError(t, f.notes.Create(context.Background(), note))

	// Stranger: REST surfaces an explicit 403 (unlike the live surface).
	code, _ := f.request(t, fiber.MethodGet, "/api/notes/"+note.ID.String(), strangerToken, nil)
	assert.Equal(t, fiber.StatusForbidden, code)

	// Reader can fetch but not update or delete.
	code, body := f.request(t, fiber.MethodGet, "/api/notes/"+note.ID.String(), readerToken, nil)
	require.Equal(t, fiber.StatusOK, code)
	var got noteResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.False(t, got.IsOwnedByCurrentUser)
	assert.Equal(t, domain.PermissionRead, got.UserPermission)

	code, _ = f.request(t, fiber.MethodPatch, "/api/notes/"+note.ID.String(), readerToken, fiber.Map{"content": "v2"})
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = f.request(t, fiber.MethodDelete, "/api/notes/"+note.ID.String(), readerToken, nil)
	assert.Equal(t, fiber.StatusForbidden, code)
}

func TestShareNote(t *testing.T) {
	f := newFixture(t)
	owner, ownerToken := f.seedUser(t, "alice")
	grantee, _ := f.seedUser(t, "dave")

	note := domain.NewNote(owner.ID, "Draft", "v1")
	require.NoError(t, f.notes.Create(context.Background(), note))
	path := "/api/notes/" + note.ID.String() + "/share"

	// Invalid permission fails before any lookup or mutation.
	code, _ := f.request(t, fiber.MethodPost, path, ownerToken, fiber.Map{
		"email": grantee.Email, "permission": "admin",
	})
	assert.Equal(t, fiber.StatusBadRequest, code)

	// Unknown grantee.
	code, _ = f.request(t, fiber.MethodPost, path, ownerToken, fiber.Map{
		"email": "nobody@example.com", "permission": "read",
	})
	assert.Equal(t, fiber.StatusNotFound, code)

	// Share read, then re-share write: one collaborator entry, two share
	// notifications.
	code, _ = f.request(t, fiber.MethodPost, path, ownerToken, fiber.Map{
		"email": grantee.Email, "permission": "read",
	})
	require.Equal(t, fiber.StatusOK, code)
	code, body := f.request(t, fiber.MethodPost, path, ownerToken, fiber.Map{
		"email": grantee.Email, "permission": "write",
	})
	require.Equal(t, fiber.StatusOK, code)

	var shared noteResponse
	require.NoError(t, json.Unmarshal(body, &shared))
	require.Len(t, shared.Collaborators, 1)
	assert.Equal(t, domain.PermissionWrite, shared.Collaborators[0].Permission)
	assert.Len(t, f.notifications.forUser(grantee.ID), 2)

	// Non-owners cannot share.
	_, granteeToken := func() (*domain.User, string) {
		token, err := f.tokens.Issue(grantee.ID)
		require.NoError(t, err)
		return grantee, token
	}()
	code, _ = f.request(t, fiber.MethodPost, path, granteeToken, fiber.Map{
		"email": owner.Email, "permission": "read",
	})
	assert.Equal(t, fiber.StatusForbidden, code)
}

func TestNotificationsEndpoints(t *testing.T) {
	f := newFixture(t)
	user, token := f.seedUser(t, "alice")

	noteID := domain.NewNote(user.ID, "n", "c").ID
	var ids []domain.NotificationID
	for i := 0; i < 3; i++ {
		n := domain.NewNotification(user.ID, noteID, fmt.Sprintf("m%d", i), domain.NotificationUpdate)
		require.NoError(t, f.notifications.Create(context.Background(), n))
		ids = append(ids, n.ID)
	}

	code, body := f.request(t, fiber.MethodGet, "/api/notifications?unreadOnly=true", token, nil)
	require.Equal(t, fiber.StatusOK, code)
	var res struct {
		Notifications []*domain.Notification `json:"notifications"`
		Pagination    pagination             `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Len(t, res.Notifications, 3)
	assert.Equal(t, 3, res.Pagination.Total)

	// Mark two read; unreadOnly then returns one.
	code, _ = f.request(t, fiber.MethodPatch, "/api/notifications/read", token, fiber.Map{
		"notificationIds": ids[:2],
	})
	require.Equal(t, fiber.StatusOK, code)
	code, body = f.request(t, fiber.MethodGet, "/api/notifications?unreadOnly=true", token, nil)
	require.Equal(t, fiber.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Len(t, res.Notifications, 1)

	// Delete them all.
	code, _ = f.request(t, fiber.MethodDelete, "/api/notifications", token, fiber.Map{
		"notificationIds": ids,
	})
	require.Equal(t, fiber.StatusOK, code)
	assert.Empty(t, f.notifications.forUser(user.ID))

	// Body without the array is rejected.
	code, _ = f.request(t, fiber.MethodPatch, "/api/notifications/read", token, fiber.Map{})
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestHealthRoute(t *testing.T) {
	f := newFixture(t)
	code, body := f.request(t, fiber.MethodGet, "/", "", nil)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Contains(t, string(body), "API is running")
}

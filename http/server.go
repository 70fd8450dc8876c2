// Package http exposes the REST API and the websocket endpoint.
package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/scribe-notes/server/auth"
	"github.com/scribe-notes/server/domain"
	"github.com/scribe-notes/server/ws"
)

// UserStore is the account persistence consumed by the handlers.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// NoteStore covers the note operations not routed through the broker.
type NoteStore interface {
	Get(ctx context.Context, id domain.NoteID) (*domain.Note, error)
	Create(ctx context.Context, note *domain.Note) error
	List(ctx context.Context, userID domain.UserID, archived bool, offset, limit int) ([]*domain.Note, int, error)
}

// NotificationStore is the notification log surface for the REST API.
type NotificationStore interface {
	List(ctx context.Context, userID domain.UserID, unreadOnly bool, offset, limit int) ([]*domain.Notification, int, error)
	MarkRead(ctx context.Context, ids []domain.NotificationID, userID domain.UserID) error
	Delete(ctx context.Context, ids []domain.NotificationID, userID domain.UserID) error
}

// Options tunes the outer middleware.
type Options struct {
	AllowOrigins string
	RateLimit    int
	RateWindow   time.Duration
}

// Server wires the REST handlers, the auth middleware and the websocket
// endpoint into one fiber app.
type Server struct {
	tokens        *auth.Tokens
	users         UserStore
	notes         NoteStore
	notifications NotificationStore
	broker        *ws.Broker
	hub           *ws.Hub
	log           zerolog.Logger
}

func NewServer(tokens *auth.Tokens, users UserStore, notes NoteStore, notifications NotificationStore, broker *ws.Broker, hub *ws.Hub, log zerolog.Logger) *Server {
	return &Server{
		tokens:        tokens,
		users:         users,
		notes:         notes,
		notifications: notifications,
		broker:        broker,
		hub:           hub,
		log:           log.With().Str("component", "http").Logger(),
	}
}

// App assembles the fiber application.
func (s *Server) App(opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	if opts.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimit,
			Expiration: opts.RateWindow,
		}))
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":   "API is running",
			"timestamp": time.Now().UTC(),
		})
	})

	app.Post("/api/auth/register", s.handleRegister)
	app.Post("/api/auth/login", s.handleLogin)

	api := app.Group("/api", auth.Middleware(s.tokens))
	api.Get("/notes", s.handleListNotes)
	api.Post("/notes", s.handleCreateNote)
	api.Get("/notes/:id", s.handleGetNote)
	api.Patch("/notes/:id", s.handleUpdateNote)
	api.Delete("/notes/:id", s.handleDeleteNote)
	api.Post("/notes/:id/share", s.handleShareNote)

	api.Get("/notifications", s.handleListNotifications)
	api.Patch("/notifications/read", s.handleMarkNotificationsRead)
	api.Delete("/notifications", s.handleDeleteNotifications)

	s.registerWebsocket(app)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}
	return c.Status(code).JSON(fiber.Map{"message": err.Error()})
}

// statusFor maps the domain error taxonomy onto HTTP statuses for the
// surfaces that do disclose failures.
func statusFor(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrAccessDenied):
		return fiber.NewError(fiber.StatusForbidden, "access denied")
	case errors.Is(err, domain.ErrInvalidPermission):
		return fiber.NewError(fiber.StatusBadRequest, "invalid permission type")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}

// pagination is the envelope every listing endpoint returns.
type pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	Total       int  `json:"total"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

func paginate(page, limit, total int) pagination {
	totalPages := (total + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}
	return pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		Total:       total,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// pageParams returns sanitized page/limit query values.
func pageParams(c *fiber.Ctx, defaultLimit int) (page, limit int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit = c.QueryInt("limit", defaultLimit)
	if limit < 1 || limit > 100 {
		limit = defaultLimit
	}
	return page, limit
}

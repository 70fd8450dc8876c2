package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/scribe-notes/server/auth"
	"github.com/scribe-notes/server/domain"
)

func noteIDParam(c *fiber.Ctx) (domain.NoteID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.NoteID{}, fiber.NewError(fiber.StatusBadRequest, "invalid note id")
	}
	return id, nil
}

func (s *Server) handleListNotes(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	page, limit := pageParams(c, 10)
	showArchived := c.QueryBool("showArchived", false)

	notes, total, err := s.notes.List(c.Context(), userID, showArchived, (page-1)*limit, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list notes failed")
		return statusFor(err)
	}
	if notes == nil {
		notes = []*domain.Note{}
	}
	return c.JSON(fiber.Map{
		"notes":      notes,
		"pagination": paginate(page, limit, total),
	})
}

func (s *Server) handleCreateNote(c *fiber.Ctx) error {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Title == "" {
		return fiber.NewError(fiber.StatusBadRequest, "title is required")
	}

	note := domain.NewNote(auth.UserID(c), req.Title, req.Content)
	if err := s.notes.Create(c.Context(), note); err != nil {
		s.log.Error().Err(err).Msg("create note failed")
		return statusFor(err)
	}
	return c.Status(fiber.StatusCreated).JSON(note)
}

// noteResponse annotates a note with the caller's resolved access, so
// clients need no access logic of their own.
type noteResponse struct {
	*domain.Note
	IsOwnedByCurrentUser bool              `json:"isOwnedByCurrentUser"`
	UserPermission       domain.Permission `json:"userPermission"`
}

func newNoteResponse(note *domain.Note, verdict domain.Verdict) noteResponse {
	perm := domain.PermissionRead
	if verdict.CanWrite() {
		perm = domain.PermissionWrite
	}
	return noteResponse{
		Note:                 note,
		IsOwnedByCurrentUser: verdict.Owner(),
		UserPermission:       perm,
	}
}

func (s *Server) handleGetNote(c *fiber.Ctx) error {
	noteID, err := noteIDParam(c)
	if err != nil {
		return err
	}

	note, err := s.notes.Get(c.Context(), noteID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Error().Err(err).Msg("get note failed")
		}
		return statusFor(err)
	}

	verdict := domain.Evaluate(note, auth.UserID(c))
	if !verdict.CanRead() {
		return statusFor(domain.ErrAccessDenied)
	}
	return c.JSON(newNoteResponse(note, verdict))
}

func (s *Server) handleUpdateNote(c *fiber.Ctx) error {
	noteID, err := noteIDParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Title   *string `json:"title"`
		Content *string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	userID := auth.UserID(c)
	note, err := s.broker.Update(c.Context(), noteID, userID, req.Title, req.Content)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrAccessDenied) {
			s.log.Error().Err(err).Msg("update note failed")
		}
		return statusFor(err)
	}
	return c.JSON(newNoteResponse(note, domain.Evaluate(note, userID)))
}

func (s *Server) handleDeleteNote(c *fiber.Ctx) error {
	noteID, err := noteIDParam(c)
	if err != nil {
		return err
	}

	if err := s.broker.Delete(c.Context(), noteID, auth.UserID(c)); err != nil {
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrAccessDenied) {
			s.log.Error().Err(err).Msg("delete note failed")
		}
		return statusFor(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleShareNote(c *fiber.Ctx) error {
	noteID, err := noteIDParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Email      string            `json:"email"`
		Permission domain.Permission `json:"permission"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	// Validated here as well so a bad value fails before the user lookup.
	if !req.Permission.Valid() {
		return statusFor(domain.ErrInvalidPermission)
	}

	grantee, err := s.users.GetByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		s.log.Error().Err(err).Msg("share lookup failed")
		return statusFor(err)
	}

	userID := auth.UserID(c)
	note, err := s.broker.Share(c.Context(), noteID, userID, grantee.ID, req.Permission)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrAccessDenied) &&
			!errors.Is(err, domain.ErrInvalidPermission) {
			s.log.Error().Err(err).Msg("share note failed")
		}
		return statusFor(err)
	}
	return c.JSON(newNoteResponse(note, domain.Evaluate(note, userID)))
}

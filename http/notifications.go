package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/scribe-notes/server/auth"
	"github.com/scribe-notes/server/domain"
)

func (s *Server) handleListNotifications(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	page, limit := pageParams(c, 20)
	unreadOnly := c.QueryBool("unreadOnly", false)

	notifications, total, err := s.notifications.List(c.Context(), userID, unreadOnly, (page-1)*limit, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list notifications failed")
		return statusFor(err)
	}
	if notifications == nil {
		notifications = []*domain.Notification{}
	}
	return c.JSON(fiber.Map{
		"notifications": notifications,
		"pagination":    paginate(page, limit, total),
	})
}

type notificationIDsRequest struct {
	NotificationIDs []domain.NotificationID `json:"notificationIds"`
}

func (s *Server) handleMarkNotificationsRead(c *fiber.Ctx) error {
	var req notificationIDsRequest
	if err := c.BodyParser(&req); err != nil || req.NotificationIDs == nil {
		return fiber.NewError(fiber.StatusBadRequest, "notificationIds must be an array")
	}

	if err := s.notifications.MarkRead(c.Context(), req.NotificationIDs, auth.UserID(c)); err != nil {
		s.log.Error().Err(err).Msg("mark notifications read failed")
		return statusFor(err)
	}
	return c.JSON(fiber.Map{"message": "notifications marked as read"})
}

func (s *Server) handleDeleteNotifications(c *fiber.Ctx) error {
	var req notificationIDsRequest
	if err := c.BodyParser(&req); err != nil || req.NotificationIDs == nil {
		return fiber.NewError(fiber.StatusBadRequest, "notificationIds must be an array")
	}

	if err := s.notifications.Delete(c.Context(), req.NotificationIDs, auth.UserID(c)); err != nil {
		s.log.Error().Err(err).Msg("delete notifications failed")
		return statusFor(err)
	}
	return c.JSON(fiber.Map{"message": "notifications deleted"})
}

package httpserver

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/askpulse/internal/domain"
	apperrors "github.com/pscheid92/askpulse/internal/platform/errors"
)

type listNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	// NextCursor is the "before" value for the next page, nil on the last page.
	NextCursor *int64 `json:"next_cursor"`
}

func parseNotificationFilter(c echo.Context) (domain.NotificationFilter, error) {
	var filter domain.NotificationFilter

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, apperrors.ValidationError("limit must be a non-negative integer").WithField("limit", raw)
		}
		filter.Limit = limit
	}
	if raw := c.QueryParam("before"); raw != "" {
		before, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || before < 0 {
			return filter, apperrors.ValidationError("before must be a non-negative integer").WithField("before", raw)
		}
		filter.Before = before
	}
	if raw := c.QueryParam("unread"); raw != "" {
		unread, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.ValidationError("unread must be a boolean").WithField("unread", raw)
		}
		filter.UnreadOnly = unread
	}
	if raw := c.QueryParam("kind"); raw != "" {
		kind, err := domain.ParseNotificationKind(raw)
		if err != nil {
			return filter, apperrors.ValidationError(err.Error()).WithField("kind", raw)
		}
		filter.Kind = kind
	}

	return filter.Normalize(), nil
}

func (s *Server) handleListNotifications(c echo.Context) error {
	filter, err := parseNotificationFilter(c)
	if err != nil {
		return err
	}

	notifications, err := s.notifications.List(c.Request().Context(), currentUserID(c), filter)
	if err != nil {
		return err
	}

	resp := listNotificationsResponse{Notifications: notifications}
	if resp.Notifications == nil {
		resp.Notifications = []domain.Notification{}
	}
	if len(notifications) == filter.Limit {
		cursor := notifications[len(notifications)-1].Seq
		resp.NextCursor = &cursor
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleMarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid notification id").WithField("id", c.Param("id"))
	}

	if err := s.notifications.MarkRead(c.Request().Context(), currentUserID(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMarkAllRead(c echo.Context) error {
	updated, err := s.notifications.MarkAllRead(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"updated": updated})
}

func (s *Server) handleUnreadCount(c echo.Context) error {
	count, err := s.notifications.UnreadCount(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"unread": count})
}

package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/askpulse/internal/domain"
	apperrors "github.com/pscheid92/askpulse/internal/platform/errors"
)

// The event routes let the Q&A service report content events that should
// notify someone. The caller's identity is the actor.

type answerPostedRequest struct {
	QuestionID string `json:"question_id"`
	AnswerID   string `json:"answer_id"`
}

type mentionRequest struct {
	RecipientID     string `json:"recipient_id"`
	RelatedEntityID string `json:"related_entity_id"`
}

type eventResponse struct {
	Notified bool   `json:"notified"`
	Delivery string `json:"delivery"`
}

func (s *Server) handleAnswerPosted(c echo.Context) error {
	var req answerPostedRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	question := domain.EntityRef{Kind: domain.KindQuestion, ID: req.QuestionID}
	status, notified, err := s.notifications.NotifyAnswerPosted(c.Request().Context(), question, req.AnswerID, currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, eventResponse{Notified: notified, Delivery: status.String()})
}

func (s *Server) handleMention(c echo.Context) error {
	var req mentionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	status, notified, err := s.notifications.NotifyMention(c.Request().Context(), req.RecipientID, currentUserID(c), req.RelatedEntityID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, eventResponse{Notified: notified, Delivery: status.String()})
}

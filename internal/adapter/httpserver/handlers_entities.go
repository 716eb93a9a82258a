package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/askpulse/internal/domain"
	apperrors "github.com/pscheid92/askpulse/internal/platform/errors"
)

type voteRequest struct {
	Polarity int `json:"polarity"`
}

type voteResponse struct {
	Outcome domain.VoteOutcome `json:"outcome"`
	Score   int                `json:"score"`
}

type registerEntityRequest struct {
	OwnerID string `json:"owner_id"`
}

func entityRefParam(c echo.Context) (domain.EntityRef, error) {
	kind, err := domain.ParseEntityKind(c.Param("kind"))
	if err != nil {
		return domain.EntityRef{}, fmt.Errorf("%w: %w", domain.ErrInvalidEntity, err)
	}
	ref := domain.EntityRef{Kind: kind, ID: c.Param("id")}
	if err := ref.Validate(); err != nil {
		return domain.EntityRef{}, err
	}
	return ref, nil
}

func (s *Server) handleVote(c echo.Context) error {
	ref, err := entityRefParam(c)
	if err != nil {
		return err
	}

	var req voteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	if req.Polarity != int(domain.Up) && req.Polarity != int(domain.Down) {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidPolarity, req.Polarity)
	}

	result, err := s.votes.Vote(c.Request().Context(), ref, currentUserID(c), domain.Polarity(req.Polarity))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, voteResponse{Outcome: result.Outcome, Score: result.Score})
}

func (s *Server) handleScore(c echo.Context) error {
	ref, err := entityRefParam(c)
	if err != nil {
		return err
	}

	score, err := s.votes.Score(c.Request().Context(), ref)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"score": score})
}

func (s *Server) handleRegisterEntity(c echo.Context) error {
	ref, err := entityRefParam(c)
	if err != nil {
		return err
	}

	var req registerEntityRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	ownerID := req.OwnerID
	if ownerID == "" {
		ownerID = currentUserID(c)
	}

	if err := s.votes.RegisterEntity(c.Request().Context(), domain.Entity{Ref: ref, OwnerID: ownerID}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteEntity(c echo.Context) error {
	ref, err := entityRefParam(c)
	if err != nil {
		return err
	}

	if err := s.votes.DeleteEntity(c.Request().Context(), ref); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

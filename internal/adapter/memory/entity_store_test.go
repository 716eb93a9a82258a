package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/askpulse/internal/domain"
)

var answerA1 = domain.EntityRef{Kind: domain.KindAnswer, ID: "a1"}

func TestEntityStore_RegisterAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewEntityStore()

	_, err := s.GetEntity(ctx, answerA1)
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)

	require.NoError(t, s.RegisterEntity(ctx, domain.Entity{Ref: answerA1, OwnerID: "u1"}))
	require.NoError(t, s.RegisterEntity(ctx, domain.Entity{Ref: answerA1, OwnerID: "u1"}), "same owner is idempotent")
	assert.ErrorIs(t, s.RegisterEntity(ctx, domain.Entity{Ref: answerA1, OwnerID: "u2"}), domain.ErrEntityConflict)

	e, err := s.GetEntity(ctx, answerA1)
	require.NoError(t, err)
	assert.Equal(t, "u1", e.OwnerID)
}

func TestEntityStore_LedgerCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := NewEntityStore()
	require.NoError(t, s.RegisterEntity(ctx, domain.Entity{Ref: answerA1, OwnerID: "u1"}))

	state, err := s.LoadLedger(ctx, answerA1)
	require.NoError(t, err)
	assert.Zero(t, state.Version)
	assert.Empty(t, state.Votes)

	votes := []domain.Vote{{VoterID: "u2", Polarity: domain.Up}}
	require.NoError(t, s.SaveLedger(ctx, answerA1, domain.LedgerState{Votes: votes}, 0))

	assert.ErrorIs(t, s.SaveLedger(ctx, answerA1, domain.LedgerState{}, 0), domain.ErrVersionConflict)

	state, err = s.LoadLedger(ctx, answerA1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.Version)
	assert.Equal(t, votes, state.Votes)

	// returned slices must not alias the store
	state.Votes[0].Polarity = domain.Down
	again, err := s.LoadLedger(ctx, answerA1)
	require.NoError(t, err)
	assert.Equal(t, domain.Up, again.Votes[0].Polarity)
}

func TestEntityStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewEntityStore()
	require.NoError(t, s.RegisterEntity(ctx, domain.Entity{Ref: answerA1, OwnerID: "u1"}))
	require.NoError(t, s.SaveLedger(ctx, answerA1, domain.LedgerState{Votes: []domain.Vote{{VoterID: "u2", Polarity: domain.Up}}}, 0))

	require.NoError(t, s.DeleteEntity(ctx, answerA1))
	assert.ErrorIs(t, s.DeleteEntity(ctx, answerA1), domain.ErrEntityNotFound)

	_, err := s.LoadLedger(ctx, answerA1)
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
	assert.ErrorIs(t, s.SaveLedger(ctx, answerA1, domain.LedgerState{}, 1), domain.ErrEntityNotFound)
}

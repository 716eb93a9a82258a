package domain

import (
	"context"
	"fmt"
	"strings"
)

// Polarity is the direction of a vote: +1 (up) or -1 (down).
type Polarity int8

const (
	Down Polarity = -1
	Up   Polarity = 1
)

func (p Polarity) Valid() bool {
	return p == Up || p == Down
}

func (p Polarity) String() string {
	switch p {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("polarity(%d)", int8(p))
	}
}

// ParsePolarity accepts "up"/"down" and "+1"/"1"/"-1".
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "1", "+1":
		return Up, nil
	case "down", "-1":
		return Down, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPolarity, s)
	}
}

// Vote is one voter's opinion on an entity. An entity holds at most one Vote per VoterID.
type Vote struct {
	VoterID  string   `json:"voter_id"`
	Polarity Polarity `json:"polarity"`
}

// VoteOutcome describes how a vote changed the ledger.
type VoteOutcome int

const (
	VoteAdded VoteOutcome = iota + 1
	VoteSwitched
	VoteRemoved
)

func (o VoteOutcome) String() string {
	switch o {
	case VoteAdded:
		return "added"
	case VoteSwitched:
		return "switched"
	case VoteRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Notifies reports whether the outcome should notify the entity owner.
// Retracting a vote is silent.
func (o VoteOutcome) Notifies() bool {
	return o == VoteAdded || o == VoteSwitched
}

func (o VoteOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// VoteResult is what a vote request returns to the caller.
type VoteResult struct {
	Outcome VoteOutcome `json:"outcome"`
	Score   int         `json:"score"`
}

// LedgerState is the persisted form of a vote ledger.
// Version is the optimistic concurrency token; zero means the ledger was never saved.
type LedgerState struct {
	Votes   []Vote
	Version int64
}

// LedgerRepository loads and saves vote ledgers.
type LedgerRepository interface {
	// LoadLedger returns the stored ledger. A registered entity that was never
	// voted on has an empty state with Version 0.
	LoadLedger(ctx context.Context, ref EntityRef) (LedgerState, error)
	// SaveLedger stores state only if the stored version still equals expectedVersion,
	// returning ErrVersionConflict otherwise. The stored version becomes expectedVersion+1.
	SaveLedger(ctx context.Context, ref EntityRef, state LedgerState, expectedVersion int64) error
}

// VoteRateLimiter limits how fast a single voter may cast votes.
type VoteRateLimiter interface {
	// AllowVote returns true if the vote may proceed (token consumed).
	AllowVote(ctx context.Context, voterID string) (bool, error)
}

// ScoreCache is a best-effort read cache for entity scores.
type ScoreCache interface {
	GetScore(ctx context.Context, ref EntityRef) (int, bool, error)
	SetScore(ctx context.Context, ref EntityRef, score int) error
	Invalidate(ctx context.Context, ref EntityRef) error
}

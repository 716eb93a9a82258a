// Package ledger holds the per-entity vote ledger: at most one vote per voter,
// toggle semantics, and an aggregate score kept in step with the votes.
//
// A Ledger is not safe for concurrent use. Callers serialize access per entity.
package ledger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pscheid92/askpulse/internal/domain"
)

type Ledger struct {
	votes   map[string]domain.Polarity
	score   int
	version int64
}

// New returns an empty, never-saved ledger.
func New() *Ledger {
	return &Ledger{votes: make(map[string]domain.Polarity)}
}

// FromState rebuilds a ledger from its persisted form.
func FromState(state domain.LedgerState) (*Ledger, error) {
	l := &Ledger{
		votes:   make(map[string]domain.Polarity, len(state.Votes)),
		version: state.Version,
	}
	for _, v := range state.Votes {
		if err := validate(v.VoterID, v.Polarity); err != nil {
			return nil, fmt.Errorf("stored vote: %w", err)
		}
		if _, dup := l.votes[v.VoterID]; dup {
			return nil, fmt.Errorf("%w: voter %q", domain.ErrCorruptLedger, v.VoterID)
		}
		l.votes[v.VoterID] = v.Polarity
		l.score += int(v.Polarity)
	}
	return l, nil
}

func validate(voterID string, p domain.Polarity) error {
	if strings.TrimSpace(voterID) == "" {
		return domain.ErrInvalidVoter
	}
	if !p.Valid() {
		return domain.ErrInvalidPolarity
	}
	return nil
}

// ApplyVote records voterID's vote. Repeating the current polarity retracts the vote,
// the opposite polarity replaces it. Invalid input leaves the ledger untouched.
func (l *Ledger) ApplyVote(voterID string, p domain.Polarity) (domain.VoteOutcome, error) {
	if err := validate(voterID, p); err != nil {
		return 0, err
	}

	current, ok := l.votes[voterID]
	switch {
	case !ok:
		l.votes[voterID] = p
		l.score += int(p)
		return domain.VoteAdded, nil
	case current == p:
		delete(l.votes, voterID)
		l.score -= int(p)
		return domain.VoteRemoved, nil
	default:
		l.votes[voterID] = p
		l.score += 2 * int(p)
		return domain.VoteSwitched, nil
	}
}

// Score is the sum of all vote polarities.
func (l *Ledger) Score() int {
	return l.score
}

// Version is the storage version this ledger was loaded at.
func (l *Ledger) Version() int64 {
	return l.version
}

// State returns the persisted form, votes sorted by voter id.
func (l *Ledger) State() domain.LedgerState {
	votes := make([]domain.Vote, 0, len(l.votes))
	for voter, p := range l.votes {
		votes = append(votes, domain.Vote{VoterID: voter, Polarity: p})
	}
	slices.SortFunc(votes, func(a, b domain.Vote) int {
		return strings.Compare(a.VoterID, b.VoterID)
	})
	return domain.LedgerState{Votes: votes, Version: l.version}
}

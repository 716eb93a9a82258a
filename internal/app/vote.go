package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/askpulse/internal/adapter/metrics"
	"github.com/pscheid92/askpulse/internal/domain"
	"github.com/pscheid92/askpulse/internal/ledger"
	"github.com/pscheid92/askpulse/internal/platform/keylock"
	"github.com/pscheid92/askpulse/internal/platform/retry"
)

const (
	defaultVoteAttempts     = 5
	defaultVoteRetryBackoff = 10 * time.Millisecond
	maxVoteRetryBackoff     = 200 * time.Millisecond
)

// VoteConfig tunes the optimistic concurrency retry loop.
type VoteConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

// VoteDeps are the collaborators of VoteService. Limiter and Cache may be nil.
type VoteDeps struct {
	Entities      domain.EntityRepository
	Ledgers       domain.LedgerRepository
	Notifications domain.NotificationStore
	Publisher     domain.Publisher
	Limiter       domain.VoteRateLimiter
	Cache         domain.ScoreCache
	Clock         clockwork.Clock

	VoteMetrics         *metrics.VoteMetrics
	NotificationMetrics *metrics.NotificationMetrics
}

// VoteService applies votes to entity ledgers and notifies entity owners.
//
// Votes on the same entity are serialized twice: by a striped in-process lock,
// and by compare-and-swap on the stored ledger version for writers in other processes.
type VoteService struct {
	entities domain.EntityRepository
	ledgers  domain.LedgerRepository
	limiter  domain.VoteRateLimiter
	cache    domain.ScoreCache
	notifier *notifier
	locks    *keylock.Striped
	policy   retry.Policy
	clock    clockwork.Clock
	metrics  *metrics.VoteMetrics

	scoreGroup singleflight.Group
}

func NewVoteService(deps VoteDeps, cfg VoteConfig) *VoteService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = defaultVoteAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultVoteRetryBackoff
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &VoteService{
		entities: deps.Entities,
		ledgers:  deps.Ledgers,
		limiter:  deps.Limiter,
		cache:    deps.Cache,
		notifier: &notifier{store: deps.Notifications, publisher: deps.Publisher, metrics: deps.NotificationMetrics},
		locks:    keylock.New(keylock.DefaultStripes),
		clock:    clock,
		metrics:  deps.VoteMetrics,
	}
	s.policy = retry.Policy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.RetryBackoff,
		MaxBackoff:     maxVoteRetryBackoff,
		Clock:          clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Debug("Retrying vote after storage conflict", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
	return s
}

// Vote casts voterID's vote on ref and returns the outcome and the new score.
func (s *VoteService) Vote(ctx context.Context, ref domain.EntityRef, voterID string, polarity domain.Polarity) (domain.VoteResult, error) {
	start := s.clock.Now()
	result, err := s.vote(ctx, ref, voterID, polarity)

	if s.metrics != nil {
		s.metrics.ProcessingDuration.Observe(s.clock.Since(start).Seconds())
		s.metrics.VotesProcessed.WithLabelValues(voteResultLabel(result, err)).Inc()
	}
	return result, err
}

func (s *VoteService) vote(ctx context.Context, ref domain.EntityRef, voterID string, polarity domain.Polarity) (domain.VoteResult, error) {
	if err := ref.Validate(); err != nil {
		return domain.VoteResult{}, err
	}
	if strings.TrimSpace(voterID) == "" {
		return domain.VoteResult{}, domain.ErrInvalidVoter
	}
	if !polarity.Valid() {
		return domain.VoteResult{}, domain.ErrInvalidPolarity
	}

	if err := s.checkRateLimit(ctx, voterID); err != nil {
		return domain.VoteResult{}, err
	}

	entity, result, err := s.applyLocked(ctx, ref, voterID, polarity)
	if err != nil {
		return domain.VoteResult{}, err
	}

	if result.Outcome.Notifies() && voterID != entity.OwnerID {
		s.notifyOwner(ctx, entity, voterID, polarity)
	}

	return result, nil
}

func (s *VoteService) checkRateLimit(ctx context.Context, voterID string) error {
	if s.limiter == nil {
		return nil
	}
	allowed, err := s.limiter.AllowVote(ctx, voterID)
	if err != nil {
		slog.WarnContext(ctx, "Vote rate limiter unavailable, allowing vote", "voter_id", voterID, "error", err)
		return nil
	}
	if !allowed {
		return domain.ErrRateLimited
	}
	return nil
}

// applyLocked holds ref's stripe from reading the owner until the cache reflects
// the committed score, so cache writes follow commit order.
func (s *VoteService) applyLocked(ctx context.Context, ref domain.EntityRef, voterID string, polarity domain.Polarity) (*domain.Entity, domain.VoteResult, error) {
	unlock, err := s.locks.Lock(ctx, ref.String())
	if err != nil {
		return nil, domain.VoteResult{}, fmt.Errorf("wait for ledger %s: %w", ref, err)
	}
	defer unlock()

	entity, err := s.entities.GetEntity(ctx, ref)
	if err != nil {
		return nil, domain.VoteResult{}, fmt.Errorf("load entity %s: %w", ref, err)
	}

	result, err := retry.Do(ctx, s.policy, classifyLedgerError, func() (domain.VoteResult, error) {
		return s.applyOnce(ctx, ref, voterID, polarity)
	})
	if err == nil {
		s.cacheScore(context.WithoutCancel(ctx), ref, result.Score)
		return entity, result, nil
	}

	if errors.Is(err, retry.ErrExhausted) {
		return nil, domain.VoteResult{}, fmt.Errorf("%w: vote on %s: %w", domain.ErrTransientStorage, ref, err)
	}
	var permErr *retry.PermanentError
	if errors.As(err, &permErr) {
		err = permErr.Err
	}
	return nil, domain.VoteResult{}, fmt.Errorf("vote on %s: %w", ref, err)
}

// applyOnce is one read-modify-write cycle against the stored ledger.
func (s *VoteService) applyOnce(ctx context.Context, ref domain.EntityRef, voterID string, polarity domain.Polarity) (domain.VoteResult, error) {
	state, err := s.ledgers.LoadLedger(ctx, ref)
	if err != nil {
		return domain.VoteResult{}, fmt.Errorf("load ledger: %w", err)
	}

	l, err := ledger.FromState(state)
	if err != nil {
		return domain.VoteResult{}, err
	}

	outcome, err := l.ApplyVote(voterID, polarity)
	if err != nil {
		return domain.VoteResult{}, err
	}

	if err := s.ledgers.SaveLedger(ctx, ref, l.State(), l.Version()); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) && s.metrics != nil {
			s.metrics.VersionConflicts.Inc()
		}
		return domain.VoteResult{}, fmt.Errorf("save ledger: %w", err)
	}

	return domain.VoteResult{Outcome: outcome, Score: l.Score()}, nil
}

func classifyLedgerError(err error) retry.Action {
	if errors.Is(err, domain.ErrVersionConflict) || errors.Is(err, domain.ErrTransientStorage) {
		return retry.Retry
	}
	return retry.Stop
}

func (s *VoteService) notifyOwner(ctx context.Context, entity *domain.Entity, voterID string, polarity domain.Polarity) {
	verb := "liked"
	if polarity == domain.Down {
		verb = "disliked"
	}

	note := &domain.Notification{
		RecipientID:     entity.OwnerID,
		Message:         fmt.Sprintf("%s %s your %s", voterID, verb, entity.Ref.Kind),
		RelatedEntityID: entity.Ref.String(),
		Kind:            domain.NotificationReview,
		CreatedAt:       s.clock.Now().UTC(),
	}

	// The vote is already committed; a lost notification must not fail it.
	if _, err := s.notifier.deliver(ctx, note); err != nil {
		slog.ErrorContext(ctx, "Failed to store vote notification",
			"entity", entity.Ref.String(),
			"recipient_id", entity.OwnerID,
			"error", err)
	}
}

// Score returns the current score of ref, served from the cache when possible.
// Concurrent misses for the same entity share one storage read.
func (s *VoteService) Score(ctx context.Context, ref domain.EntityRef) (int, error) {
	if err := ref.Validate(); err != nil {
		return 0, err
	}

	if score, ok := s.cachedScore(ctx, ref); ok {
		return score, nil
	}

	v, err, _ := s.scoreGroup.Do(ref.String(), func() (any, error) {
		// A refill must not overwrite the score cached by a vote committed after this read.
		unlock, err := s.locks.Lock(ctx, ref.String())
		if err != nil {
			return 0, fmt.Errorf("wait for ledger %s: %w", ref, err)
		}
		defer unlock()

		state, err := s.ledgers.LoadLedger(ctx, ref)
		if err != nil {
			return 0, fmt.Errorf("load ledger %s: %w", ref, err)
		}
		l, err := ledger.FromState(state)
		if err != nil {
			return 0, err
		}
		s.cacheScore(ctx, ref, l.Score())
		return l.Score(), nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *VoteService) cachedScore(ctx context.Context, ref domain.EntityRef) (int, bool) {
	if s.cache == nil {
		return 0, false
	}
	score, ok, err := s.cache.GetScore(ctx, ref)
	switch {
	case err != nil:
		s.recordCacheLookup("error")
		slog.DebugContext(ctx, "Score cache read failed", "entity", ref.String(), "error", err)
		return 0, false
	case !ok:
		s.recordCacheLookup("miss")
		return 0, false
	default:
		s.recordCacheLookup("hit")
		return score, true
	}
}

func (s *VoteService) cacheScore(ctx context.Context, ref domain.EntityRef, score int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetScore(ctx, ref, score); err != nil {
		slog.DebugContext(ctx, "Score cache write failed", "entity", ref.String(), "error", err)
	}
}

func (s *VoteService) recordCacheLookup(result string) {
	if s.metrics != nil {
		s.metrics.ScoreCache.WithLabelValues(result).Inc()
	}
}

// RegisterEntity makes an entity votable. Repeating it with the same owner is a no-op.
func (s *VoteService) RegisterEntity(ctx context.Context, entity domain.Entity) error {
	if err := entity.Ref.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(entity.OwnerID) == "" {
		return fmt.Errorf("%w: empty owner", domain.ErrInvalidEntity)
	}
	if err := s.entities.RegisterEntity(ctx, entity); err != nil {
		return fmt.Errorf("register entity %s: %w", entity.Ref, err)
	}
	return nil
}

// DeleteEntity removes an entity together with its votes.
func (s *VoteService) DeleteEntity(ctx context.Context, ref domain.EntityRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	unlock, err := s.locks.Lock(ctx, ref.String())
	if err != nil {
		return fmt.Errorf("wait for ledger %s: %w", ref, err)
	}
	defer unlock()

	if err := s.entities.DeleteEntity(ctx, ref); err != nil {
		return fmt.Errorf("delete entity %s: %w", ref, err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, ref); err != nil {
			slog.WarnContext(ctx, "Failed to invalidate score cache", "entity", ref.String(), "error", err)
		}
	}
	return nil
}

func voteResultLabel(result domain.VoteResult, err error) string {
	switch {
	case err == nil:
		return result.Outcome.String()
	case errors.Is(err, domain.ErrEntityNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidVoter), errors.Is(err, domain.ErrInvalidPolarity), errors.Is(err, domain.ErrInvalidEntity):
		return "invalid"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrTransientStorage):
		return "transient"
	default:
		return "error"
	}
}

package app

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/pscheid92/askpulse/internal/domain"
)

// --- Mock implementations ---

type mockEntityRepo struct {
	getEntityFn      func(ctx context.Context, ref domain.EntityRef) (*domain.Entity, error)
	registerEntityFn func(ctx context.Context, entity domain.Entity) error
	deleteEntityFn   func(ctx context.Context, ref domain.EntityRef) error
}

func (m *mockEntityRepo) GetEntity(ctx context.Context, ref domain.EntityRef) (*domain.Entity, error) {
	if m.getEntityFn != nil {
		return m.getEntityFn(ctx, ref)
	}
	return nil, domain.ErrEntityNotFound
}

func (m *mockEntityRepo) RegisterEntity(ctx context.Context, entity domain.Entity) error {
	if m.registerEntityFn != nil {
		return m.registerEntityFn(ctx, entity)
	}
	return nil
}

func (m *mockEntityRepo) DeleteEntity(ctx context.Context, ref domain.EntityRef) error {
	if m.deleteEntityFn != nil {
		return m.deleteEntityFn(ctx, ref)
	}
	return nil
}

type mockLedgerRepo struct {
	loadLedgerFn func(ctx context.Context, ref domain.EntityRef) (domain.LedgerState, error)
	saveLedgerFn func(ctx context.Context, ref domain.EntityRef, state domain.LedgerState, expectedVersion int64) error
}

func (m *mockLedgerRepo) LoadLedger(ctx context.Context, ref domain.EntityRef) (domain.LedgerState, error) {
	if m.loadLedgerFn != nil {
		return m.loadLedgerFn(ctx, ref)
	}
	return domain.LedgerState{}, nil
}

func (m *mockLedgerRepo) SaveLedger(ctx context.Context, ref domain.EntityRef, state domain.LedgerState, expectedVersion int64) error {
	if m.saveLedgerFn != nil {
		return m.saveLedgerFn(ctx, ref, state, expectedVersion)
	}
	return nil
}

type mockNotificationStore struct {
	appendFn          func(ctx context.Context, n *domain.Notification) error
	getNotificationFn func(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	markReadFn        func(ctx context.Context, id uuid.UUID) error
	markAllReadFn     func(ctx context.Context, recipientID string) (int64, error)
	listForUserFn     func(ctx context.Context, recipientID string, filter domain.NotificationFilter) ([]domain.Notification, error)
	countUnreadFn     func(ctx context.Context, recipientID string) (int64, error)
}

func (m *mockNotificationStore) Append(ctx context.Context, n *domain.Notification) error {
	if m.appendFn != nil {
		return m.appendFn(ctx, n)
	}
	return nil
}

func (m *mockNotificationStore) GetNotification(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	if m.getNotificationFn != nil {
		return m.getNotificationFn(ctx, id)
	}
	return nil, domain.ErrNotificationNotFound
}

func (m *mockNotificationStore) MarkRead(ctx context.Context, id uuid.UUID) error {
	if m.markReadFn != nil {
		return m.markReadFn(ctx, id)
	}
	return nil
}

func (m *mockNotificationStore) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	if m.markAllReadFn != nil {
		return m.markAllReadFn(ctx, recipientID)
	}
	return 0, nil
}

func (m *mockNotificationStore) ListForUser(ctx context.Context, recipientID string, filter domain.NotificationFilter) ([]domain.Notification, error) {
	if m.listForUserFn != nil {
		return m.listForUserFn(ctx, recipientID, filter)
	}
	return nil, nil
}

func (m *mockNotificationStore) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	if m.countUnreadFn != nil {
		return m.countUnreadFn(ctx, recipientID)
	}
	return 0, nil
}

// recordingPublisher remembers every notification handed to it.
type recordingPublisher struct {
	mu        sync.Mutex
	published []domain.Notification
	status    domain.DeliveryStatus
}

func (p *recordingPublisher) Publish(_ context.Context, n domain.Notification) domain.DeliveryStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, n)
	return p.status
}

func (p *recordingPublisher) all() []domain.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Notification(nil), p.published...)
}

type mockRateLimiter struct {
	allowVoteFn func(ctx context.Context, voterID string) (bool, error)
}

func (m *mockRateLimiter) AllowVote(ctx context.Context, voterID string) (bool, error) {
	if m.allowVoteFn != nil {
		return m.allowVoteFn(ctx, voterID)
	}
	return true, nil
}

type mockScoreCache struct {
	mu     sync.Mutex
	scores map[domain.EntityRef]int
	getErr error
}

func newMockScoreCache() *mockScoreCache {
	return &mockScoreCache{scores: make(map[domain.EntityRef]int)}
}

func (m *mockScoreCache) GetScore(_ context.Context, ref domain.EntityRef) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, false, m.getErr
	}
	score, ok := m.scores[ref]
	return score, ok, nil
}

func (m *mockScoreCache) SetScore(_ context.Context, ref domain.EntityRef, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[ref] = score
	return nil
}

func (m *mockScoreCache) Invalidate(_ context.Context, ref domain.EntityRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scores, ref)
	return nil
}

type fakeSession struct {
	id     string
	userID string
}

func (f *fakeSession) ID() string                         { return f.id }
func (f *fakeSession) UserID() string                     { return f.userID }
func (f *fakeSession) Send(context.Context, []byte) error { return nil }

// gatedScoreCache stalls SetScore for one score value until release is closed.
type gatedScoreCache struct {
	*mockScoreCache
	gateScore int
	entered   chan struct{}
	release   chan struct{}
	once      sync.Once
}

func newGatedScoreCache(gateScore int) *gatedScoreCache {
	return &gatedScoreCache{
		mockScoreCache: newMockScoreCache(),
		gateScore:      gateScore,
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
}

func (g *gatedScoreCache) SetScore(ctx context.Context, ref domain.EntityRef, score int) error {
	if score == g.gateScore {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.mockScoreCache.SetScore(ctx, ref, score)
}

func (g *gatedScoreCache) cached(ref domain.EntityRef) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	score, ok := g.scores[ref]
	return score, ok
}

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/askpulse/internal/domain"
)

func newTestNotificationRepo(t *testing.T) (*NotificationRepo, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	return NewNotificationRepo(setupTestDB(t), clock), clock
}

func appendNotification(t *testing.T, repo *NotificationRepo, recipient string, kind domain.NotificationKind, msg string) domain.Notification {
	t.Helper()
	n := &domain.Notification{RecipientID: recipient, Kind: kind, Message: msg, RelatedEntityID: "answer:a1"}
	require.NoError(t, repo.Append(context.Background(), n))
	return *n
}

func TestNotificationRepo_AppendAndGet(t *testing.T) {
	repo, clock := newTestNotificationRepo(t)
	ctx := context.Background()

	n := appendNotification(t, repo, "u2", domain.NotificationReview, "u1 liked your answer")
	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Positive(t, n.Seq)

	got, err := repo.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, "u2", got.RecipientID)
	assert.Equal(t, "u1 liked your answer", got.Message)
	assert.Equal(t, "answer:a1", got.RelatedEntityID)
	assert.Equal(t, domain.NotificationReview, got.Kind)
	assert.False(t, got.IsRead)
	assert.True(t, clock.Now().Equal(got.CreatedAt))

	_, err = repo.GetNotification(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
}

func TestNotificationRepo_ListNewestFirstWithCursor(t *testing.T) {
	repo, _ := newTestNotificationRepo(t)
	ctx := context.Background()

	var appended []domain.Notification
	for _, msg := range []string{"first", "second", "third", "fourth", "fifth"} {
		appended = append(appended, appendNotification(t, repo, "u2", domain.NotificationReview, msg))
	}
	appendNotification(t, repo, "u3", domain.NotificationReview, "someone else")

	page, err := repo.ListForUser(ctx, "u2", domain.NotificationFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "fifth", page[0].Message)
	assert.Equal(t, "fourth", page[1].Message)

	page, err = repo.ListForUser(ctx, "u2", domain.NotificationFilter{Limit: 2, Before: page[1].Seq})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "third", page[0].Message)
	assert.Equal(t, "second", page[1].Message)

	page, err = repo.ListForUser(ctx, "u2", domain.NotificationFilter{Limit: 2, Before: page[1].Seq})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, appended[0].ID, page[0].ID)
}

func TestNotificationRepo_Filters(t *testing.T) {
	repo, _ := newTestNotificationRepo(t)
	ctx := context.Background()

	review := appendNotification(t, repo, "u2", domain.NotificationReview, "review")
	appendNotification(t, repo, "u2", domain.NotificationAnswer, "answer")
	appendNotification(t, repo, "u2", domain.NotificationMention, "mention")
	require.NoError(t, repo.MarkRead(ctx, review.ID))

	unread, err := repo.ListForUser(ctx, "u2", domain.NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	answers, err := repo.ListForUser(ctx, "u2", domain.NotificationFilter{Kind: domain.NotificationAnswer})
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "answer", answers[0].Message)
}

func TestNotificationRepo_MarkRead(t *testing.T) {
	repo, _ := newTestNotificationRepo(t)
	ctx := context.Background()
	n := appendNotification(t, repo, "u2", domain.NotificationReview, "r")

	require.NoError(t, repo.MarkRead(ctx, n.ID))
	require.NoError(t, repo.MarkRead(ctx, n.ID))
	assert.ErrorIs(t, repo.MarkRead(ctx, uuid.New()), domain.ErrNotificationNotFound)

	got, err := repo.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
}

func TestNotificationRepo_MarkAllReadAndCount(t *testing.T) {
	repo, _ := newTestNotificationRepo(t)
	ctx := context.Background()
	for range 3 {
		appendNotification(t, repo, "u2", domain.NotificationReview, "r")
	}
	appendNotification(t, repo, "u3", domain.NotificationReview, "r")

	count, err := repo.CountUnread(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	changed, err := repo.MarkAllRead(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), changed)

	count, err = repo.CountUnread(ctx, "u2")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = repo.CountUnread(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/askpulse/internal/domain"
)

type NotificationRepo struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

var _ domain.NotificationStore = (*NotificationRepo)(nil)

func NewNotificationRepo(pool *pgxpool.Pool, clock clockwork.Clock) *NotificationRepo {
	return &NotificationRepo{pool: pool, clock: clock}
}

const notificationColumns = `id, seq, recipient_id, message, related_entity_id, kind, is_read, created_at`

func scanNotification(row pgx.CollectableRow) (domain.Notification, error) {
	var n domain.Notification
	var kind string
	err := row.Scan(&n.ID, &n.Seq, &n.RecipientID, &n.Message, &n.RelatedEntityID, &kind, &n.IsRead, &n.CreatedAt)
	n.Kind = domain.NotificationKind(kind)
	n.CreatedAt = n.CreatedAt.UTC()
	return n, err
}

func (r *NotificationRepo) Append(ctx context.Context, n *domain.Notification) error {
	if n.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		n.ID = id
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.clock.Now().UTC()
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO notifications (id, recipient_id, message, related_entity_id, kind, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING seq`,
		n.ID, n.RecipientID, n.Message, n.RelatedEntityID, string(n.Kind), n.IsRead, n.CreatedAt,
	).Scan(&n.Seq)
	if err != nil {
		return wrapErr("append notification", err)
	}
	return nil
}

func (r *NotificationRepo) GetNotification(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	if err != nil {
		return nil, wrapErr("get notification", err)
	}
	n, err := pgx.CollectExactlyOneRow(rows, scanNotification)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotificationNotFound
	}
	if err != nil {
		return nil, wrapErr("get notification", err)
	}
	return &n, nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1`, id)
	if err != nil {
		return wrapErr("mark notification read", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE recipient_id = $1 AND NOT is_read`,
		recipientID)
	if err != nil {
		return 0, wrapErr("mark all notifications read", err)
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepo) ListForUser(ctx context.Context, recipientID string, filter domain.NotificationFilter) ([]domain.Notification, error) {
	filter = filter.Normalize()

	rows, err := r.pool.Query(ctx,
		`SELECT `+notificationColumns+`
		 FROM notifications
		 WHERE recipient_id = $1
		   AND ($2::bigint = 0 OR seq < $2)
		   AND (NOT $3::boolean OR NOT is_read)
		   AND ($4::text = '' OR kind = $4)
		 ORDER BY seq DESC
		 LIMIT $5`,
		recipientID, filter.Before, filter.UnreadOnly, string(filter.Kind), filter.Limit)
	if err != nil {
		return nil, wrapErr("list notifications", err)
	}

	list, err := pgx.CollectRows(rows, scanNotification)
	if err != nil {
		return nil, wrapErr("list notifications", err)
	}
	return list, nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE recipient_id = $1 AND NOT is_read`,
		recipientID,
	).Scan(&n)
	if err != nil {
		return 0, wrapErr("count unread notifications", err)
	}
	return n, nil
}

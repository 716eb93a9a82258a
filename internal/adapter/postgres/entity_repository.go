package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/askpulse/internal/domain"
)

// EntityRepo stores votable entities and their ledgers. Every entity row has a
// ledger row created in the same transaction, so ledger saves are plain
// compare-and-swap updates on the version column.
type EntityRepo struct {
	pool *pgxpool.Pool
}

var (
	_ domain.EntityRepository = (*EntityRepo)(nil)
	_ domain.LedgerRepository = (*EntityRepo)(nil)
)

func NewEntityRepo(pool *pgxpool.Pool) *EntityRepo {
	return &EntityRepo{pool: pool}
}

func (r *EntityRepo) GetEntity(ctx context.Context, ref domain.EntityRef) (*domain.Entity, error) {
	var ownerID string
	err := r.pool.QueryRow(ctx,
		`SELECT owner_id FROM votable_entities WHERE kind = $1 AND id = $2`,
		string(ref.Kind), ref.ID,
	).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEntityNotFound
	}
	if err != nil {
		return nil, wrapErr("get entity", err)
	}
	return &domain.Entity{Ref: ref, OwnerID: ownerID}, nil
}

func (r *EntityRepo) RegisterEntity(ctx context.Context, entity domain.Entity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrapErr("begin register entity", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`INSERT INTO votable_entities (kind, id, owner_id) VALUES ($1, $2, $3)
		 ON CONFLICT (kind, id) DO NOTHING`,
		string(entity.Ref.Kind), entity.Ref.ID, entity.OwnerID)
	if err != nil {
		return wrapErr("insert entity", err)
	}

	if tag.RowsAffected() == 0 {
		var ownerID string
		if err := tx.QueryRow(ctx,
			`SELECT owner_id FROM votable_entities WHERE kind = $1 AND id = $2`,
			string(entity.Ref.Kind), entity.Ref.ID,
		).Scan(&ownerID); err != nil {
			return wrapErr("get existing entity", err)
		}
		if ownerID != entity.OwnerID {
			return domain.ErrEntityConflict
		}
		return nil
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO vote_ledgers (kind, id) VALUES ($1, $2)`,
		string(entity.Ref.Kind), entity.Ref.ID); err != nil {
		return wrapErr("insert ledger", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapErr("commit register entity", err)
	}
	return nil
}

func (r *EntityRepo) DeleteEntity(ctx context.Context, ref domain.EntityRef) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM votable_entities WHERE kind = $1 AND id = $2`,
		string(ref.Kind), ref.ID)
	if err != nil {
		return wrapErr("delete entity", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

func (r *EntityRepo) LoadLedger(ctx context.Context, ref domain.EntityRef) (domain.LedgerState, error) {
	var raw []byte
	var version int64
	err := r.pool.QueryRow(ctx,
		`SELECT votes, version FROM vote_ledgers WHERE kind = $1 AND id = $2`,
		string(ref.Kind), ref.ID,
	).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LedgerState{}, domain.ErrEntityNotFound
	}
	if err != nil {
		return domain.LedgerState{}, wrapErr("load ledger", err)
	}

	var votes []domain.Vote
	if err := json.Unmarshal(raw, &votes); err != nil {
		return domain.LedgerState{}, fmt.Errorf("decode ledger %s: %w", ref, err)
	}
	return domain.LedgerState{Votes: votes, Version: version}, nil
}

func (r *EntityRepo) SaveLedger(ctx context.Context, ref domain.EntityRef, state domain.LedgerState, expectedVersion int64) error {
	votes := state.Votes
	if votes == nil {
		votes = []domain.Vote{}
	}
	raw, err := json.Marshal(votes)
	if err != nil {
		return fmt.Errorf("encode ledger %s: %w", ref, err)
	}

	score := 0
	for _, v := range votes {
		score += int(v.Polarity)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE vote_ledgers
		 SET votes = $3, score = $4, version = version + 1, updated_at = now()
		 WHERE kind = $1 AND id = $2 AND version = $5`,
		string(ref.Kind), ref.ID, raw, score, expectedVersion)
	if err != nil {
		return wrapErr("save ledger", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := r.GetEntity(ctx, ref); err != nil {
		return err
	}
	return domain.ErrVersionConflict
}

package domain

import (
	"context"
	"fmt"
	"strings"
)

// EntityKind distinguishes the votable content types.
type EntityKind string

const (
	KindQuestion EntityKind = "question"
	KindAnswer   EntityKind = "answer"
)

func ParseEntityKind(s string) (EntityKind, error) {
	switch k := EntityKind(strings.ToLower(s)); k {
	case KindQuestion, KindAnswer:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidEntity, s)
	}
}

// EntityRef identifies a votable entity. The core treats ID as opaque.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

func (r EntityRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

func (r EntityRef) Validate() error {
	if r.Kind != KindQuestion && r.Kind != KindAnswer {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntity, r.Kind)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidEntity)
	}
	return nil
}

// Entity is a question or answer that carries a vote ledger.
type Entity struct {
	Ref     EntityRef
	OwnerID string
}

// EntityRepository stores the votable entities known to the core.
type EntityRepository interface {
	GetEntity(ctx context.Context, ref EntityRef) (*Entity, error)
	// RegisterEntity is idempotent for the same owner and returns ErrEntityConflict
	// when the entity exists with a different owner.
	RegisterEntity(ctx context.Context, entity Entity) error
	// DeleteEntity removes the entity and its ledger.
	DeleteEntity(ctx context.Context, ref EntityRef) error
}

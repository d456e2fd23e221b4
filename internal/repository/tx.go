package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-records/internal/integrity"
	"github.com/noah-isme/sma-records/internal/models"
	appErrors "github.com/noah-isme/sma-records/pkg/errors"
)

// Tx exposes store operations inside one transaction. It is only valid
// within the function passed to Store.WithTx.
type Tx struct {
	q       queries
	mutated bool
}

// NewID returns an id unused within kind.
func (t *Tx) NewID(ctx context.Context, kind models.Kind) (string, error) {
	for {
		id := uuid.NewString()
		taken, err := t.q.exists(ctx, kind, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
}

// Create inserts e, assigning a fresh id when it has none.
func (t *Tx) Create(ctx context.Context, e models.Entity) error {
	if e.EntityID() == "" {
		id, err := t.NewID(ctx, e.Kind())
		if err != nil {
			return err
		}
		models.SetID(e, id)
	} else {
		taken, err := t.q.exists(ctx, e.Kind(), e.EntityID())
		if err != nil {
			return err
		}
		if taken {
			return appErrors.DuplicateID(string(e.Kind()), e.EntityID())
		}
	}
	if err := t.q.insert(ctx, e); err != nil {
		return err
	}
	t.mutated = true
	return nil
}

// Update merges patch into the stored entity and returns the result.
func (t *Tx) Update(ctx context.Context, kind models.Kind, id string, patch models.Patch) (models.Entity, error) {
	current, err := t.q.read(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	next, err := patch.ApplyTo(current)
	if err != nil {
		return nil, err
	}
	if err := t.q.update(ctx, next); err != nil {
		return nil, err
	}
	t.mutated = true
	return next, nil
}

// Delete removes one row.
func (t *Tx) Delete(ctx context.Context, kind models.Kind, id string) error {
	if err := t.q.delete(ctx, kind, id); err != nil {
		return err
	}
	t.mutated = true
	return nil
}

// LoadGraph reads every collection.
func (t *Tx) LoadGraph(ctx context.Context) (*models.Graph, error) {
	return t.q.loadGraph(ctx)
}

// SaveChanges writes the primary entity of changes and every counterpart it
// touched, taking current values from g. A failing counterpart write is
// reported as an integrity error; the caller's transaction then rolls back.
func (t *Tx) SaveChanges(ctx context.Context, g *models.Graph, changes *integrity.Changes) error {
	if changes == nil {
		return nil
	}
	primary := changes.Primary
	if changes.PrimaryDeleted {
		if err := t.q.delete(ctx, primary.Kind, primary.ID); err != nil {
			return err
		}
	} else {
		e, ok := g.Lookup(primary.Kind, primary.ID)
		if !ok {
			return appErrors.NotFound(string(primary.Kind), primary.ID)
		}
		if err := t.q.upsert(ctx, e); err != nil {
			return err
		}
	}
	t.mutated = true

	for _, ref := range changes.Touched {
		e, ok := g.Lookup(ref.Kind, ref.ID)
		if !ok {
			return appErrors.IntegrityApply(appErrors.NotFound(string(ref.Kind), ref.ID), string(ref.Kind), ref.ID)
		}
		if err := t.q.update(ctx, e); err != nil {
			return appErrors.IntegrityApply(err, string(ref.Kind), ref.ID)
		}
	}
	return nil
}

// ReplaceGraph discards every stored entity and writes g in its order.
func (t *Tx) ReplaceGraph(ctx context.Context, g *models.Graph) error {
	if err := t.q.clear(ctx); err != nil {
		return err
	}
	for _, e := range g.Entities() {
		if err := t.q.insert(ctx, e); err != nil {
			return err
		}
	}
	t.mutated = true
	return nil
}

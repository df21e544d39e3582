package controllers

import (
	"context"

	"github.com/amaumene/watchqueue/internal/models"
	"github.com/amaumene/watchqueue/internal/ordering"
	"gorm.io/gorm"
)

// change describes a committed state transition handed to a side effect
type change struct {
	OwnerID string
	Item    *models.Item
	// AtEnd asks a newly added item to join the back of the queue
	AtEnd bool
}

// effect runs inside the transaction that recorded the event
type effect func(ctx context.Context, tx *gorm.DB, c change) error

// effectTable maps an event type to the side effects it triggers. Event types
// not listed only record history.
type effectTable map[models.EventType][]effect

func newEffectTable(engine *ordering.Engine) effectTable {
	prepend := func(ctx context.Context, tx *gorm.DB, c change) error {
		if c.Item.IsDeleted {
			return nil
		}
		return engine.Prepend(ctx, tx, c.OwnerID, c.Item.ID)
	}
	compact := func(ctx context.Context, tx *gorm.DB, c change) error {
		return engine.Compact(ctx, tx, c.OwnerID)
	}
	place := func(ctx context.Context, tx *gorm.DB, c change) error {
		if c.AtEnd {
			return engine.Append(ctx, tx, c.OwnerID, c.Item.ID)
		}
		return engine.Prepend(ctx, tx, c.OwnerID, c.Item.ID)
	}

	return effectTable{
		// New items go to the front unless explicitly appended
		models.EventAdded: {place},
		// Restored items re-enter the ordering domain at the front
		models.EventRestored: {prepend},
		// Removed items leave the domain; close the gap they leave
		models.EventRemoved: {compact},
		// High priority always wins the front of the queue
		models.EventPriorityHigh: {prepend},
	}
}

func (t effectTable) run(ctx context.Context, tx *gorm.DB, eventType models.EventType, c change) error {
	for _, fn := range t[eventType] {
		if err := fn(ctx, tx, c); err != nil {
			return err
		}
	}
	return nil
}

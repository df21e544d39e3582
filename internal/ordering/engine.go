package ordering

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/amaumene/watchqueue/internal/metrics"
	"github.com/amaumene/watchqueue/internal/models"
	"github.com/amaumene/watchqueue/internal/utils"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Engine maintains the manual order of an owner's items.
//
// The ordering domain is every non-deleted item of the owner, watched or not.
// After any write the domain holds positions 0..N-1 exactly once; views that
// show only unwatched (or only watched) items filter after reading this order.
// Deleted items keep a stale custom_order that is never read.
//
// Methods taking a *gorm.DB run inside the caller's transaction and expect the
// caller to hold the owner's lock (see Locks). Reorder, MoveToBeginning and
// MoveToEnd take the lock and open the transaction themselves.
type Engine struct {
	db      *models.Database
	locks   *OwnerLocks
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewEngine creates an ordering engine
func NewEngine(db *models.Database, locks *OwnerLocks, m *metrics.Metrics, logger zerolog.Logger) *Engine {
	return &Engine{
		db:      db,
		locks:   locks,
		metrics: m,
		logger:  logger,
	}
}

// Locks returns the per-owner lock table shared with compound operations
func (e *Engine) Locks() *OwnerLocks {
	return e.locks
}

type slot struct {
	ID          string
	CustomOrder *int
}

// Domain returns the ids of the owner's non-deleted items in manual order.
// Items without a position sort last, newest first.
func (e *Engine) Domain(ctx context.Context, tx *gorm.DB, ownerID string) ([]string, error) {
	slots, err := e.slots(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(slots))
	for i, s := range slots {
		ids[i] = s.ID
	}
	return ids, nil
}

func (e *Engine) slots(ctx context.Context, tx *gorm.DB, ownerID string) ([]slot, error) {
	var slots []slot
	err := tx.WithContext(ctx).Model(&models.Item{}).
		Select("id, custom_order").
		Where("owner_id = ? AND is_deleted = ?", ownerID, false).
		Order("custom_order ASC NULLS LAST, created_at DESC, id ASC").
		Scan(&slots).Error
	if err != nil {
		return nil, utils.Persistence("load ordering domain", err)
	}
	return slots, nil
}

// Assign sets custom_order = index for every id. ids must be exactly the owner's
// ordering domain. The resulting positions are checked before returning; a
// non-contiguous result returns ErrInvariantViolation so the caller's transaction
// rolls back.
func (e *Engine) Assign(ctx context.Context, tx *gorm.DB, ownerID string, ids []string) error {
	start := time.Now()

	current, err := e.slots(ctx, tx, ownerID)
	if err != nil {
		return err
	}
	if err := sameMembers(current, ids); err != nil {
		return err
	}

	positions := make(map[string]*int, len(current))
	for _, s := range current {
		positions[s.ID] = s.CustomOrder
	}

	for index, id := range ids {
		if pos := positions[id]; pos != nil && *pos == index {
			continue
		}
		res := tx.WithContext(ctx).Model(&models.Item{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			UpdateColumn("custom_order", index)
		if res.Error != nil {
			return utils.Persistence("assign position", res.Error)
		}
	}

	if err := e.verify(ctx, tx, ownerID); err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.ReorderDuration.Observe(time.Since(start).Seconds())
	}
	e.logger.Debug().Str("owner_id", ownerID).Int("count", len(ids)).Msg("Ordering domain reassigned")
	return nil
}

// verify checks that the domain holds positions 0..N-1 with no gaps or duplicates
func (e *Engine) verify(ctx context.Context, tx *gorm.DB, ownerID string) error {
	var positions []sql.NullInt64
	err := tx.WithContext(ctx).Model(&models.Item{}).
		Where("owner_id = ? AND is_deleted = ?", ownerID, false).
		Order("custom_order ASC").
		Pluck("custom_order", &positions).Error
	if err != nil {
		return utils.Persistence("verify ordering", err)
	}
	for i, pos := range positions {
		if !pos.Valid || pos.Int64 != int64(i) {
			e.logger.Error().Str("owner_id", ownerID).Int("index", i).Msg("Ordering domain is not contiguous")
			return utils.ErrInvariantViolation
		}
	}
	return nil
}

// Prepend moves itemID to the front of the domain
func (e *Engine) Prepend(ctx context.Context, tx *gorm.DB, ownerID, itemID string) error {
	domain, err := e.Domain(ctx, tx, ownerID)
	if err != nil {
		return err
	}
	rest, found := without(domain, itemID)
	if !found {
		return utils.ErrNotFound
	}
	return e.Assign(ctx, tx, ownerID, append([]string{itemID}, rest...))
}

// Append moves itemID to the end of the domain
func (e *Engine) Append(ctx context.Context, tx *gorm.DB, ownerID, itemID string) error {
	domain, err := e.Domain(ctx, tx, ownerID)
	if err != nil {
		return err
	}
	rest, found := without(domain, itemID)
	if !found {
		return utils.ErrNotFound
	}
	return e.Assign(ctx, tx, ownerID, append(rest, itemID))
}

// Compact rewrites the domain in its current order, closing gaps left by items
// that were deleted.
func (e *Engine) Compact(ctx context.Context, tx *gorm.DB, ownerID string) error {
	domain, err := e.Domain(ctx, tx, ownerID)
	if err != nil {
		return err
	}
	return e.Assign(ctx, tx, ownerID, domain)
}

// Redeal reorders a subset of the domain. The positions the subset occupies are
// handed out again in the requested order; items outside the subset keep their
// position. Passing the whole domain is a plain reorder.
func (e *Engine) Redeal(ctx context.Context, tx *gorm.DB, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return utils.Validationf("reorder list is empty")
	}

	domain, err := e.Domain(ctx, tx, ownerID)
	if err != nil {
		return err
	}

	index := make(map[string]int, len(domain))
	for i, id := range domain {
		index[id] = i
	}

	seen := make(map[string]struct{}, len(ids))
	slots := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return utils.Validationf("item %s appears more than once", id)
		}
		seen[id] = struct{}{}

		i, ok := index[id]
		if !ok {
			return utils.Validationf("item %s is not an active item of this owner", id)
		}
		slots = append(slots, i)
	}
	sort.Ints(slots)

	next := make([]string, len(domain))
	copy(next, domain)
	for k, s := range slots {
		next[s] = ids[k]
	}
	return e.Assign(ctx, tx, ownerID, next)
}

// Reorder applies an explicit order atomically. See Redeal for subset semantics.
func (e *Engine) Reorder(ctx context.Context, ownerID string, ids []string) error {
	unlock := e.locks.Lock(ownerID)
	defer unlock()

	return e.db.Transaction(ctx, func(tx *gorm.DB) error {
		return e.Redeal(ctx, tx, ownerID, ids)
	})
}

// MoveToBeginning moves an item to the front of the owner's queue
func (e *Engine) MoveToBeginning(ctx context.Context, ownerID, itemID string) error {
	unlock := e.locks.Lock(ownerID)
	defer unlock()

	return e.db.Transaction(ctx, func(tx *gorm.DB) error {
		return e.Prepend(ctx, tx, ownerID, itemID)
	})
}

// MoveToEnd moves an item to the back of the owner's queue
func (e *Engine) MoveToEnd(ctx context.Context, ownerID, itemID string) error {
	unlock := e.locks.Lock(ownerID)
	defer unlock()

	return e.db.Transaction(ctx, func(tx *gorm.DB) error {
		return e.Append(ctx, tx, ownerID, itemID)
	})
}

func sameMembers(current []slot, ids []string) error {
	if len(current) != len(ids) {
		return utils.Validationf("reorder lists %d items but the queue holds %d", len(ids), len(current))
	}
	members := make(map[string]bool, len(current))
	for _, s := range current {
		members[s.ID] = false
	}
	for _, id := range ids {
		used, ok := members[id]
		if !ok {
			return utils.Validationf("item %s is not an active item of this owner", id)
		}
		if used {
			return utils.Validationf("item %s appears more than once", id)
		}
		members[id] = true
	}
	return nil
}

func without(ids []string, id string) ([]string, bool) {
	out := make([]string, 0, len(ids))
	found := false
	for _, v := range ids {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	return out, found
}

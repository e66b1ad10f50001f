package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/apperr"
	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/Freeeeeet/mediwork_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotColumns = `id, provider_id, start_time, end_time, status, created_at, updated_at`

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var slot model.Slot
	err := row.Scan(
		&slot.ID,
		&slot.ProviderID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Status,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func collectSlots(rows pgx.Rows) ([]*model.Slot, error) {
	defer rows.Close()

	var slots []*model.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// Create создаёт новый слот
func (r *SlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}

	query := `
		INSERT INTO slots (id, provider_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.QueryRow(ctx, query,
		slot.ID,
		slot.ProviderID,
		slot.StartTime,
		slot.EndTime,
		slot.Status,
	).Scan(&slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		if _, constraint, ok := base.ConstraintViolation(err); ok && constraint == "slots_no_overlap" {
			return apperr.Conflict(apperr.CodeProviderSlotConflict,
				"provider already has a slot overlapping "+slot.Window().String(), nil).Wrap(err)
		}
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	return r.get(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id)
}

// GetByIDForUpdate получает слот и блокирует строку до конца транзакции
func (r *SlotRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	return r.get(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1 FOR UPDATE`, id)
}

func (r *SlotRepository) get(ctx context.Context, query string, id uuid.UUID) (*model.Slot, error) {
	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}
	return slot, nil
}

// ListAvailable свободные слоты врача, начинающиеся после after
func (r *SlotRepository) ListAvailable(ctx context.Context, providerID uuid.UUID, after time.Time) ([]*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE provider_id = $1
		  AND status = 'AVAILABLE'
		  AND start_time > $2
		ORDER BY start_time
	`

	rows, err := r.Query(ctx, query, providerID, after)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return collectSlots(rows)
}

// ListByProvider все слоты врача в диапазоне [from, to)
func (r *SlotRepository) ListByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE provider_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time
	`

	rows, err := r.Query(ctx, query, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots by provider: %w", err)
	}
	return collectSlots(rows)
}

// ListByStatus слоты врача в заданном статусе
func (r *SlotRepository) ListByStatus(ctx context.Context, providerID uuid.UUID, status model.SlotStatus) ([]*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE provider_id = $1
		  AND status = $2
		ORDER BY start_time
	`

	rows, err := r.Query(ctx, query, providerID, status)
	if err != nil {
		return nil, fmt.Errorf("list slots by status: %w", err)
	}
	return collectSlots(rows)
}

// ListOverlapping слоты врача любого статуса, пересекающие окно
func (r *SlotRepository) ListOverlapping(ctx context.Context, providerID uuid.UUID, w model.Window) ([]*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE provider_id = $1
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`

	rows, err := r.Query(ctx, query, providerID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("list overlapping slots: %w", err)
	}
	return collectSlots(rows)
}

// ListExpiredLocks заблокированные слоты, приём по которым начался раньше startedBefore
func (r *SlotRepository) ListExpiredLocks(ctx context.Context, startedBefore time.Time) ([]*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE status = 'TEMPORARILY_LOCKED'
		  AND start_time < $1
		ORDER BY start_time
	`

	rows, err := r.Query(ctx, query, startedBefore)
	if err != nil {
		return nil, fmt.Errorf("list expired locks: %w", err)
	}
	return collectSlots(rows)
}

// UpdateStatus переводит слот из from в to. false - статус уже другой.
func (r *SlotRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.SlotStatus) (bool, error) {
	query := `
		UPDATE slots
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	affected, err := r.ExecAffected(ctx, query, id, from, to)
	if err != nil {
		if _, constraint, ok := base.ConstraintViolation(err); ok && constraint == "slots_no_overlap" {
			return false, apperr.Conflict(apperr.CodeProviderSlotConflict,
				"provider already has an overlapping slot", nil).Wrap(err)
		}
		return false, fmt.Errorf("update slot status: %w", err)
	}

	return affected == 1, nil
}

// Delete удаляет слот
func (r *SlotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := r.ExecAffected(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound(apperr.CodeSlotNotFound, "slot %s not found", id)
	}
	return nil
}

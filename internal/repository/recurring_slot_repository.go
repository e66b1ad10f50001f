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
	"go.uber.org/zap"
)

const recurringColumns = `id, provider_id, weekday, start_minute, end_minute, created_at, updated_at`

type RecurringSlotRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewRecurringSlotRepository(pool *pgxpool.Pool, logger *zap.Logger) *RecurringSlotRepository {
	return &RecurringSlotRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

func scanRecurringSlot(row pgx.Row) (*model.RecurringSlot, error) {
	var (
		rs                     model.RecurringSlot
		weekday                int16
		startMinute, endMinute int16
	)
	err := row.Scan(
		&rs.ID,
		&rs.ProviderID,
		&weekday,
		&startMinute,
		&endMinute,
		&rs.CreatedAt,
		&rs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rs.Weekday = time.Weekday(weekday)
	rs.StartTime = model.TimeOfDayFromMinutes(int(startMinute))
	rs.EndTime = model.TimeOfDayFromMinutes(int(endMinute))
	return &rs, nil
}

func (r *RecurringSlotRepository) list(ctx context.Context, query string, args ...any) ([]*model.RecurringSlot, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []*model.RecurringSlot
	for rows.Next() {
		rs, err := scanRecurringSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring slot: %w", err)
		}
		slots = append(slots, rs)
	}
	return slots, rows.Err()
}

func overlapError(err error) error {
	if _, constraint, ok := base.ConstraintViolation(err); ok && constraint == "recurring_slots_no_overlap" {
		return apperr.Conflict(apperr.CodeRecurringOverlap, "recurring slot overlaps an existing window", nil).Wrap(err)
	}
	return nil
}

// Create создаёт еженедельное окно
func (r *RecurringSlotRepository) Create(ctx context.Context, rs *model.RecurringSlot) error {
	if rs.ID == uuid.Nil {
		rs.ID = uuid.New()
	}

	query := `
		INSERT INTO recurring_slots (id, provider_id, weekday, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.QueryRow(ctx, query,
		rs.ID,
		rs.ProviderID,
		int16(rs.Weekday),
		int16(rs.StartTime.Minutes()),
		int16(rs.EndTime.Minutes()),
	).Scan(&rs.CreatedAt, &rs.UpdatedAt)
	if err != nil {
		if cerr := overlapError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("create recurring slot: %w", err)
	}

	r.logger.Debug("Recurring slot stored",
		zap.String("recurring_slot_id", rs.ID.String()),
		zap.String("weekday", rs.Weekday.String()),
		zap.String("range", rs.Range().String()),
	)

	return nil
}

// GetByID получает окно по ID
func (r *RecurringSlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RecurringSlot, error) {
	rs, err := scanRecurringSlot(r.QueryRow(ctx, `SELECT `+recurringColumns+` FROM recurring_slots WHERE id = $1`, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get recurring slot: %w", err)
	}
	return rs, nil
}

// Update обновляет день и время окна
func (r *RecurringSlotRepository) Update(ctx context.Context, rs *model.RecurringSlot) error {
	query := `
		UPDATE recurring_slots
		SET weekday = $2, start_minute = $3, end_minute = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.QueryRow(ctx, query,
		rs.ID,
		int16(rs.Weekday),
		int16(rs.StartTime.Minutes()),
		int16(rs.EndTime.Minutes()),
	).Scan(&rs.UpdatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return apperr.NotFound(apperr.CodeRecurringNotFound, "recurring slot %s not found", rs.ID)
		}
		if cerr := overlapError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("update recurring slot: %w", err)
	}
	return nil
}

// Delete удаляет окно
func (r *RecurringSlotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := r.ExecAffected(ctx, `DELETE FROM recurring_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete recurring slot: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound(apperr.CodeRecurringNotFound, "recurring slot %s not found", id)
	}
	return nil
}

// ListByProvider все окна врача по дням недели
func (r *RecurringSlotRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*model.RecurringSlot, error) {
	slots, err := r.list(ctx, `
		SELECT `+recurringColumns+`
		FROM recurring_slots
		WHERE provider_id = $1
		ORDER BY weekday, start_minute
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list recurring slots: %w", err)
	}
	return slots, nil
}

// ListByProviderAndWeekday окна врача на день недели, по началу
func (r *RecurringSlotRepository) ListByProviderAndWeekday(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) ([]*model.RecurringSlot, error) {
	slots, err := r.list(ctx, `
		SELECT `+recurringColumns+`
		FROM recurring_slots
		WHERE provider_id = $1 AND weekday = $2
		ORDER BY start_minute
	`, providerID, int16(weekday))
	if err != nil {
		return nil, fmt.Errorf("list recurring slots by weekday: %w", err)
	}
	return slots, nil
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/apperr"
	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/Freeeeeet/mediwork_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Визит всегда читается вместе со своим слотом
const visitSelect = `
	SELECT v.id, v.requester_id, v.provider_id, v.slot_id, v.category, v.status, v.created_by, v.created_at, v.updated_at,
	       s.provider_id, s.start_time, s.end_time, s.status, s.created_at, s.updated_at
	FROM visits v
	LEFT JOIN slots s ON s.id = v.slot_id
`

type VisitRepository struct {
	*base.Repository
}

func NewVisitRepository(pool *pgxpool.Pool) *VisitRepository {
	return &VisitRepository{Repository: base.NewRepository(pool)}
}

func scanVisit(row pgx.Row) (*model.Visit, error) {
	var (
		visit          model.Visit
		slotProviderID *uuid.UUID
		slotStart      *time.Time
		slotEnd        *time.Time
		slotStatus     *string
		slotCreatedAt  *time.Time
		slotUpdatedAt  *time.Time
	)

	err := row.Scan(
		&visit.ID,
		&visit.RequesterID,
		&visit.ProviderID,
		&visit.SlotID,
		&visit.Category,
		&visit.Status,
		&visit.CreatedBy,
		&visit.CreatedAt,
		&visit.UpdatedAt,
		&slotProviderID,
		&slotStart,
		&slotEnd,
		&slotStatus,
		&slotCreatedAt,
		&slotUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if visit.SlotID != nil && slotStart != nil {
		visit.Slot = &model.Slot{
			ID:         *visit.SlotID,
			ProviderID: *slotProviderID,
			StartTime:  *slotStart,
			EndTime:    *slotEnd,
			Status:     model.SlotStatus(*slotStatus),
			CreatedAt:  *slotCreatedAt,
			UpdatedAt:  *slotUpdatedAt,
		}
	}

	return &visit, nil
}

func collectVisits(rows pgx.Rows) ([]*model.Visit, error) {
	defer rows.Close()

	var visits []*model.Visit
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		visits = append(visits, visit)
	}
	return visits, rows.Err()
}

// Create создаёт визит
func (r *VisitRepository) Create(ctx context.Context, visit *model.Visit) error {
	if visit.ID == uuid.Nil {
		visit.ID = uuid.New()
	}

	query := `
		INSERT INTO visits (id, requester_id, provider_id, slot_id, category, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.QueryRow(ctx, query,
		visit.ID,
		visit.RequesterID,
		visit.ProviderID,
		visit.SlotID,
		visit.Category,
		visit.Status,
		visit.CreatedBy,
	).Scan(&visit.CreatedAt, &visit.UpdatedAt)
	if err != nil {
		if _, constraint, ok := base.ConstraintViolation(err); ok && constraint == "uq_visits_active_slot" {
			return apperr.Conflict(apperr.CodeSlotAlreadyBooked, "slot already has an active visit", nil).Wrap(err)
		}
		return fmt.Errorf("create visit: %w", err)
	}

	return nil
}

// GetByID получает визит по ID
func (r *VisitRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Visit, error) {
	return r.get(ctx, visitSelect+` WHERE v.id = $1`, id)
}

// GetByIDForUpdate получает визит и блокирует его строку
func (r *VisitRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Visit, error) {
	return r.get(ctx, visitSelect+` WHERE v.id = $1 FOR UPDATE OF v`, id)
}

// GetActiveBySlot неотменённый визит слота
func (r *VisitRepository) GetActiveBySlot(ctx context.Context, slotID uuid.UUID) (*model.Visit, error) {
	return r.get(ctx, visitSelect+` WHERE v.slot_id = $1 AND v.status <> 'CANCELLED' FOR UPDATE OF v`, slotID)
}

func (r *VisitRepository) get(ctx context.Context, query string, arg uuid.UUID) (*model.Visit, error) {
	visit, err := scanVisit(r.QueryRow(ctx, query, arg))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get visit: %w", err)
	}
	return visit, nil
}

// CountBySlot количество визитов (включая отменённые), ссылающихся на слот
func (r *VisitRepository) CountBySlot(ctx context.Context, slotID uuid.UUID) (int, error) {
	var count int
	err := r.QueryRow(ctx, `SELECT COUNT(*) FROM visits WHERE slot_id = $1`, slotID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count visits by slot: %w", err)
	}
	return count, nil
}

// ListOverlappingForProvider визиты врача, чьи слоты пересекают окно
func (r *VisitRepository) ListOverlappingForProvider(ctx context.Context, providerID uuid.UUID, w model.Window) ([]*model.Visit, error) {
	rows, err := r.Query(ctx, visitSelect+`
		WHERE v.provider_id = $1
		  AND s.start_time < $3
		  AND s.end_time > $2
		ORDER BY s.start_time
	`, providerID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("list overlapping provider visits: %w", err)
	}
	return collectVisits(rows)
}

// ListOverlappingForRequester визиты сотрудника, чьи слоты пересекают окно
func (r *VisitRepository) ListOverlappingForRequester(ctx context.Context, requesterID uuid.UUID, w model.Window) ([]*model.Visit, error) {
	rows, err := r.Query(ctx, visitSelect+`
		WHERE v.requester_id = $1
		  AND s.start_time < $3
		  AND s.end_time > $2
		ORDER BY s.start_time
	`, requesterID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("list overlapping requester visits: %w", err)
	}
	return collectVisits(rows)
}

// ListPendingByProvider визиты, ожидающие подтверждения врача
func (r *VisitRepository) ListPendingByProvider(ctx context.Context, providerID uuid.UUID) ([]*model.Visit, error) {
	rows, err := r.Query(ctx, visitSelect+`
		WHERE v.provider_id = $1
		  AND v.status = 'PENDING_PROVIDER_CONFIRMATION'
		ORDER BY s.start_time
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list pending visits: %w", err)
	}
	return collectVisits(rows)
}

// ListByRequester все визиты сотрудника
func (r *VisitRepository) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.Visit, error) {
	rows, err := r.Query(ctx, visitSelect+`
		WHERE v.requester_id = $1
		ORDER BY s.start_time DESC NULLS LAST
	`, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list visits by requester: %w", err)
	}
	return collectVisits(rows)
}

// Search визиты по фильтру, упорядоченные по началу слота
func (r *VisitRepository) Search(ctx context.Context, f model.VisitFilter) ([]*model.Visit, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ProviderID != nil {
		conds = append(conds, "v.provider_id = "+arg(*f.ProviderID))
	}
	if f.RequesterID != nil {
		conds = append(conds, "v.requester_id = "+arg(*f.RequesterID))
	}
	if len(f.Statuses) > 0 {
		names := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			names = append(names, string(st))
		}
		conds = append(conds, "v.status = ANY("+arg(names)+"::text[])")
	}
	if f.From != nil {
		conds = append(conds, "s.start_time >= "+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "s.start_time < "+arg(*f.To))
	}

	query := visitSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY s.start_time NULLS LAST, v.created_at"

	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search visits: %w", err)
	}
	return collectVisits(rows)
}

// UpdateStatus переводит визит из from в to. false - статус уже другой.
func (r *VisitRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.VisitStatus) (bool, error) {
	query := `
		UPDATE visits
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	affected, err := r.ExecAffected(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update visit status: %w", err)
	}
	return affected == 1, nil
}

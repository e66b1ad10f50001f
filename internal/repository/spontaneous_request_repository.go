package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/mediwork_scheduler/internal/apperr"
	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/Freeeeeet/mediwork_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const requestColumns = `id, requester_id, reason, notes, preferred_at, status, visit_id, created_at, updated_at`

type SpontaneousRequestRepository struct {
	*base.Repository
}

func NewSpontaneousRequestRepository(pool *pgxpool.Pool) *SpontaneousRequestRepository {
	return &SpontaneousRequestRepository{Repository: base.NewRepository(pool)}
}

func scanRequest(row pgx.Row) (*model.SpontaneousRequest, error) {
	var req model.SpontaneousRequest
	err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.Reason,
		&req.Notes,
		&req.PreferredAt,
		&req.Status,
		&req.VisitID,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *SpontaneousRequestRepository) list(ctx context.Context, query string, args ...any) ([]*model.SpontaneousRequest, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*model.SpontaneousRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan spontaneous request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Create сохраняет новый запрос
func (r *SpontaneousRequestRepository) Create(ctx context.Context, req *model.SpontaneousRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	query := `
		INSERT INTO spontaneous_requests (id, requester_id, reason, notes, preferred_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.QueryRow(ctx, query,
		req.ID,
		req.RequesterID,
		req.Reason,
		req.Notes,
		req.PreferredAt,
		req.Status,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create spontaneous request: %w", err)
	}
	return nil
}

// GetByID получает запрос по ID
func (r *SpontaneousRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SpontaneousRequest, error) {
	return r.get(ctx, `SELECT `+requestColumns+` FROM spontaneous_requests WHERE id = $1`, id)
}

// GetByIDForUpdate получает запрос и блокирует строку
func (r *SpontaneousRequestRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.SpontaneousRequest, error) {
	return r.get(ctx, `SELECT `+requestColumns+` FROM spontaneous_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *SpontaneousRequestRepository) get(ctx context.Context, query string, id uuid.UUID) (*model.SpontaneousRequest, error) {
	req, err := scanRequest(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get spontaneous request: %w", err)
	}
	return req, nil
}

// Update сохраняет редактируемые поля и статус
func (r *SpontaneousRequestRepository) Update(ctx context.Context, req *model.SpontaneousRequest) error {
	query := `
		UPDATE spontaneous_requests
		SET reason = $2, notes = $3, preferred_at = $4, status = $5, visit_id = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.QueryRow(ctx, query,
		req.ID,
		req.Reason,
		req.Notes,
		req.PreferredAt,
		req.Status,
		req.VisitID,
	).Scan(&req.UpdatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return apperr.NotFound(apperr.CodeRequestNotFound, "spontaneous request %s not found", req.ID)
		}
		return fmt.Errorf("update spontaneous request: %w", err)
	}
	return nil
}

// ListByRequester запросы сотрудника, новые первыми
func (r *SpontaneousRequestRepository) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.SpontaneousRequest, error) {
	requests, err := r.list(ctx, `
		SELECT `+requestColumns+`
		FROM spontaneous_requests
		WHERE requester_id = $1
		ORDER BY created_at DESC
	`, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list spontaneous requests by requester: %w", err)
	}
	return requests, nil
}

// ListByStatus запросы в перечисленных статусах (все, если статусы не заданы)
func (r *SpontaneousRequestRepository) ListByStatus(ctx context.Context, statuses ...model.RequestStatus) ([]*model.SpontaneousRequest, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}

	requests, err := r.list(ctx, `
		SELECT `+requestColumns+`
		FROM spontaneous_requests
		WHERE cardinality($1::text[]) = 0 OR status = ANY($1::text[])
		ORDER BY created_at
	`, names)
	if err != nil {
		return nil, fmt.Errorf("list spontaneous requests by status: %w", err)
	}
	return requests, nil
}

// CountByRequester количество запросов сотрудника по статусам
func (r *SpontaneousRequestRepository) CountByRequester(ctx context.Context, requesterID uuid.UUID) (*model.RequestStats, error) {
	rows, err := r.Query(ctx, `
		SELECT status, COUNT(*)
		FROM spontaneous_requests
		WHERE requester_id = $1
		GROUP BY status
	`, requesterID)
	if err != nil {
		return nil, fmt.Errorf("count spontaneous requests: %w", err)
	}
	defer rows.Close()

	stats := &model.RequestStats{}
	for rows.Next() {
		var (
			status model.RequestStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan request count: %w", err)
		}
		stats.Add(status, count)
	}
	return stats, rows.Err()
}

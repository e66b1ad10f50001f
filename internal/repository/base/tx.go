package base

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// TxManager выполняет единицу работы в одной транзакции
type TxManager struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewTxManager(pool *pgxpool.Pool, logger *zap.Logger) *TxManager {
	return &TxManager{pool: pool, logger: logger}
}

// WithinTx открывает транзакцию, передаёт её через контекст и коммитит,
// если fn вернула nil. Вложенный вызов переиспользует внешнюю транзакцию.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			m.logger.Warn("Rollback failed", zap.Error(rbErr))
		}
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LockParty берёт advisory-блокировку участника (врача или сотрудника) до конца транзакции.
// Писатели в набор слотов и визитов одного участника выполняются по очереди.
func (m *TxManager) LockParty(ctx context.Context, partyID uuid.UUID) error {
	tx := TxFromContext(ctx)
	if tx == nil {
		return fmt.Errorf("lock party: no transaction in context")
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, PartyLockKey(partyID)); err != nil {
		return fmt.Errorf("lock party %s: %w", partyID, err)
	}
	return nil
}

// PartyLockKey 64-битный ключ advisory-блокировки: XOR половин UUID
func PartyLockKey(id uuid.UUID) int64 {
	hi := binary.BigEndian.Uint64(id[:8])
	lo := binary.BigEndian.Uint64(id[8:])
	return int64(hi ^ lo)
}

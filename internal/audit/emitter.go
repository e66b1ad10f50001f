// Package audit доставляет записи журнала действий после коммита транзакций.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"go.uber.org/zap"
)

// Publisher отправляет запись во внешний журнал
type Publisher interface {
	Publish(ctx context.Context, entry model.AuditEntry) error
}

const publishTimeout = 5 * time.Second

// Emitter буферизует записи и публикует их в отдельной горутине.
// Emit не блокирует: при переполненном буфере запись отбрасывается с предупреждением.
type Emitter struct {
	publisher Publisher
	logger    *zap.Logger

	entries chan model.AuditEntry
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewEmitter(publisher Publisher, buffer int, logger *zap.Logger) *Emitter {
	if buffer <= 0 {
		buffer = 1
	}
	e := &Emitter{
		publisher: publisher,
		logger:    logger,
		entries:   make(chan model.AuditEntry, buffer),
		done:      make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Emitter) Emit(entry model.AuditEntry) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.logger.Warn("Audit emitter closed, entry dropped", zap.String("action", string(entry.Action)))
		return
	}

	select {
	case e.entries <- entry:
	default:
		e.logger.Warn("Audit buffer full, entry dropped",
			zap.String("action", string(entry.Action)),
			zap.String("actor_id", entry.ActorID.String()),
		)
	}
}

func (e *Emitter) run() {
	defer close(e.done)

	for entry := range e.entries {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := e.publisher.Publish(ctx, entry); err != nil {
			e.logger.Error("Failed to publish audit entry",
				zap.Error(err),
				zap.String("action", string(entry.Action)),
				zap.String("description", entry.Description),
			)
		}
		cancel()
	}
}

// Close дожидается публикации уже принятых записей
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.entries)
	}
	e.mu.Unlock()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package app

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/locker"
	"go.uber.org/zap"
)

const reclaimLockKey = "reclaim-expired-locks"

// Reclaimer освобождает просроченные блокировки слотов
type Reclaimer interface {
	ReclaimExpiredLocks(ctx context.Context) (int, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	reclaimer Reclaimer
	locker    locker.Locker
	interval  time.Duration
	logger    *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewScheduler(reclaimer Reclaimer, l locker.Locker, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		reclaimer: reclaimer,
		locker:    l,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("reclaim_interval", s.interval))

	s.wg.Add(1)
	go s.runReclaimTask(ctx)
}

// Stop останавливает задачи и ждёт текущий проход
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Scheduler) runReclaimTask(ctx context.Context) {
	defer s.wg.Done()

	// Первый запуск сразу при старте
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stopChan:
			s.logger.Info("Reclaim task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Reclaim task cancelled")
			return
		}
	}
}

// RunOnce один проход; пропускается, если другой экземпляр держит блокировку
func (s *Scheduler) RunOnce(ctx context.Context) int {
	release, ok, err := s.locker.Acquire(ctx, reclaimLockKey, s.interval)
	if err != nil {
		s.logger.Error("Failed to acquire reclaim lock", zap.Error(err))
		return 0
	}
	if !ok {
		s.logger.Debug("Reclaim already running elsewhere")
		return 0
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release reclaim lock", zap.Error(err))
		}
	}()

	reclaimed, err := s.reclaimer.ReclaimExpiredLocks(ctx)
	if err != nil {
		s.logger.Error("Reclaim finished with errors", zap.Error(err), zap.Int("reclaimed", reclaimed))
		return reclaimed
	}
	if reclaimed > 0 {
		s.logger.Info("Expired slot locks reclaimed", zap.Int("reclaimed", reclaimed))
	}
	return reclaimed
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/apperr"
	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) bookExisting(t *testing.T, slotID, requesterID uuid.UUID) *model.Visit {
	t.Helper()
	visit, err := e.visitSvc.BookExistingSlot(context.Background(), e.coordinator.ID, BookExistingSlotInput{
		RequesterID: requesterID,
		ProviderID:  e.provider.ID,
		SlotID:      slotID,
		Category:    model.VisitCategoryPeriodic,
	})
	require.NoError(t, err)
	return visit
}

func (e *testEnv) bookFresh(w model.Window, requesterID uuid.UUID) (*model.Visit, *model.Slot, error) {
	return e.visitSvc.BookWithFreshSlot(context.Background(), e.coordinator.ID, BookFreshSlotInput{
		RequesterID: requesterID,
		ProviderID:  e.provider.ID,
		Window:      w,
		Category:    model.VisitCategoryHiring,
	})
}

func TestBookExistingSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("locks slot and creates pending visit", func(t *testing.T) {
		e := newTestEnv(t)
		sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)

		visit := e.bookExisting(t, sl.ID, e.requester.ID)

		assert.Equal(t, model.VisitStatusPending, visit.Status)
		assert.Equal(t, e.coordinator.ID, visit.CreatedBy)
		require.NotNil(t, visit.SlotID)
		assert.Equal(t, sl.ID, *visit.SlotID)
		assert.Equal(t, model.SlotStatusLocked, e.slot(sl.ID).Status)
		assert.Equal(t, model.VisitStatusPending, e.visit(visit.ID).Status)
		assert.Contains(t, e.audit.actions(), model.ActionScheduleVisit)
	})

	t.Run("non available slot fails without state change", func(t *testing.T) {
		for _, status := range []model.SlotStatus{model.SlotStatusLocked, model.SlotStatusConfirmed, model.SlotStatusUnavailable} {
			e := newTestEnv(t)
			sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), status)

			_, err := e.visitSvc.BookExistingSlot(ctx, e.coordinator.ID, BookExistingSlotInput{
				RequesterID: e.requester.ID, ProviderID: e.provider.ID, SlotID: sl.ID, Category: model.VisitCategoryPeriodic,
			})
			assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err), status)
			assert.Equal(t, status, e.slot(sl.ID).Status)
			assert.Zero(t, e.visitCount())
		}
	})

	t.Run("expired slot fails", func(t *testing.T) {
		e := newTestEnv(t)
		sl := e.putSlot(e.provider.ID, testNow.Add(-30*time.Minute), testNow.Add(30*time.Minute), model.SlotStatusAvailable)

		_, err := e.visitSvc.BookExistingSlot(ctx, e.coordinator.ID, BookExistingSlotInput{
			RequesterID: e.requester.ID, ProviderID: e.provider.ID, SlotID: sl.ID, Category: model.VisitCategoryPeriodic,
		})
		assert.Equal(t, apperr.KindExpired, apperr.KindOf(err))
		assert.Equal(t, model.SlotStatusAvailable, e.slot(sl.ID).Status)
		assert.Zero(t, e.visitCount())
	})

	t.Run("unknown slot", func(t *testing.T) {
		e := newTestEnv(t)
		_, err := e.visitSvc.BookExistingSlot(ctx, e.coordinator.ID, BookExistingSlotInput{
			RequesterID: e.requester.ID, ProviderID: e.provider.ID, SlotID: uuid.New(), Category: model.VisitCategoryPeriodic,
		})
		assert.Equal(t, apperr.CodeSlotNotFound, apperr.CodeOf(err))
	})

	t.Run("unknown category", func(t *testing.T) {
		e := newTestEnv(t)
		sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)
		_, err := e.visitSvc.BookExistingSlot(ctx, e.coordinator.ID, BookExistingSlotInput{
			RequesterID: e.requester.ID, ProviderID: e.provider.ID, SlotID: sl.ID, Category: "DENTAL",
		})
		assert.Equal(t, apperr.CodeUnknownEnum, apperr.CodeOf(err))
	})

	t.Run("requester cannot schedule", func(t *testing.T) {
		e := newTestEnv(t)
		sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)
		_, err := e.visitSvc.BookExistingSlot(ctx, e.requester.ID, BookExistingSlotInput{
			RequesterID: e.requester.ID, ProviderID: e.provider.ID, SlotID: sl.ID, Category: model.VisitCategoryPeriodic,
		})
		assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
	})

	t.Run("archived requester", func(t *testing.T) {
		e := newTestEnv(t)
		archived := e.requester
		archived.Archived = true
		e.db.users[archived.ID] = archived
		sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)

		_, err := e.visitSvc.BookExistingSlot(ctx, e.coordinator.ID, BookExistingSlotInput{
			RequesterID: e.requester.ID, ProviderID: e.provider.ID, SlotID: sl.ID, Category: model.VisitCategoryPeriodic,
		})
		assert.Equal(t, apperr.CodeUserArchived, apperr.CodeOf(err))
	})

	t.Run("requester double booking across providers", func(t *testing.T) {
		e := newTestEnv(t)
		other := e.putSlot(e.provider2.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)
		_, err := e.visitSvc.BookExistingSlot(ctx, e.coordinator.ID, BookExistingSlotInput{
			RequesterID: e.requester.ID, ProviderID: e.provider2.ID, SlotID: other.ID, Category: model.VisitCategoryPeriodic,
		})
		require.NoError(t, err)

		sl := e.putSlot(e.provider.ID, at(1, 10, 30), at(1, 11, 30), model.SlotStatusAvailable)
		_, err = e.visitSvc.BookExistingSlot(ctx, e.coordinator.ID, BookExistingSlotInput{
			RequesterID: e.requester.ID, ProviderID: e.provider.ID, SlotID: sl.ID, Category: model.VisitCategoryPeriodic,
		})

		appErr, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.CodeRequesterConflict, appErr.Code)
		require.Len(t, appErr.Conflicts, 1)
		assert.Equal(t, model.SlotStatusAvailable, e.slot(sl.ID).Status)
	})
}

func TestBookWithFreshSlot(t *testing.T) {
	t.Run("creates locked slot and pending visit", func(t *testing.T) {
		e := newTestEnv(t)

		visit, slot, err := e.bookFresh(model.Window{Start: at(1, 14, 0), End: at(1, 14, 30)}, e.requester.ID)
		require.NoError(t, err)
		assert.Equal(t, model.VisitStatusPending, visit.Status)
		assert.Equal(t, model.SlotStatusLocked, slot.Status)
		assert.Equal(t, model.SlotStatusLocked, e.slot(slot.ID).Status)
		assert.Equal(t, slot.ID, *visit.SlotID)
	})

	t.Run("duration bounds are inclusive", func(t *testing.T) {
		tests := []struct {
			d  time.Duration
			ok bool
		}{
			{14 * time.Minute, false},
			{15 * time.Minute, true},
			{120 * time.Minute, true},
			{121 * time.Minute, false},
		}
		for _, tt := range tests {
			e := newTestEnv(t)
			_, _, err := e.bookFresh(model.NewWindow(at(1, 10, 0), tt.d), e.requester.ID)
			if tt.ok {
				assert.NoError(t, err, tt.d)
			} else {
				assert.Equal(t, apperr.CodeDurationOutOfBounds, apperr.CodeOf(err), tt.d)
				assert.Zero(t, e.slotCount())
			}
		}
	})

	t.Run("past and inverted windows", func(t *testing.T) {
		e := newTestEnv(t)
		_, _, err := e.bookFresh(model.NewWindow(testNow.Add(-time.Hour), 30*time.Minute), e.requester.ID)
		assert.Equal(t, apperr.CodeWindowInPast, apperr.CodeOf(err))

		_, _, err = e.bookFresh(model.Window{Start: at(1, 11, 0), End: at(1, 10, 0)}, e.requester.ID)
		assert.Equal(t, apperr.CodeInvalidWindow, apperr.CodeOf(err))
	})

	t.Run("provider slot conflict", func(t *testing.T) {
		e := newTestEnv(t)
		e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)

		_, _, err := e.bookFresh(model.Window{Start: at(1, 10, 30), End: at(1, 11, 0)}, e.requester.ID)
		assert.Equal(t, apperr.CodeProviderSlotConflict, apperr.CodeOf(err))
		assert.Equal(t, 1, e.slotCount())
	})

	t.Run("requester conflict checked on fresh path too", func(t *testing.T) {
		e := newTestEnv(t)
		sl := e.putSlot(e.provider2.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)
		_, err := e.visitSvc.BookExistingSlot(context.Background(), e.coordinator.ID, BookExistingSlotInput{
			RequesterID: e.requester.ID, ProviderID: e.provider2.ID, SlotID: sl.ID, Category: model.VisitCategoryPeriodic,
		})
		require.NoError(t, err)

		_, _, err = e.bookFresh(model.Window{Start: at(1, 10, 45), End: at(1, 11, 15)}, e.requester.ID)
		assert.Equal(t, apperr.CodeRequesterConflict, apperr.CodeOf(err))
		assert.Equal(t, 1, e.slotCount())
	})

	t.Run("failure after slot creation rolls back", func(t *testing.T) {
		e := newTestEnv(t)
		e.db.failVisitCreate = errors.New("disk full")

		_, _, err := e.bookFresh(model.Window{Start: at(1, 10, 0), End: at(1, 11, 0)}, e.requester.ID)
		require.Error(t, err)
		assert.Zero(t, e.slotCount())
		assert.Zero(t, e.visitCount())
	})

	t.Run("round trip cancel restores slot", func(t *testing.T) {
		e := newTestEnv(t)
		neighbour := e.putSlot(e.provider.ID, at(1, 9, 0), at(1, 10, 0), model.SlotStatusAvailable)

		visit, slot, err := e.bookFresh(model.Window{Start: at(1, 10, 0), End: at(1, 11, 0)}, e.requester.ID)
		require.NoError(t, err)

		cancelled, err := e.visitSvc.CancelVisit(context.Background(), visit.ID, e.coordinator.ID)
		require.NoError(t, err)
		assert.Equal(t, model.VisitStatusCancelled, cancelled.Status)
		assert.Equal(t, model.SlotStatusAvailable, e.slot(slot.ID).Status)
		assert.Equal(t, model.VisitStatusCancelled, e.visit(visit.ID).Status)
		assert.Equal(t, neighbour, e.slot(neighbour.ID))
	})
}

func TestExistingSlotBookingRollsBackLock(t *testing.T) {
	e := newTestEnv(t)
	sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)
	e.db.failVisitCreate = errors.New("connection reset")

	_, err := e.visitSvc.BookExistingSlot(context.Background(), e.coordinator.ID, BookExistingSlotInput{
		RequesterID: e.requester.ID, ProviderID: e.provider.ID, SlotID: sl.ID, Category: model.VisitCategoryPeriodic,
	})
	require.Error(t, err)
	assert.Equal(t, model.SlotStatusAvailable, e.slot(sl.ID).Status)
	assert.Empty(t, e.audit.actions())
}

func TestConcurrentBookingOfSameSlot(t *testing.T) {
	e := newTestEnv(t)
	sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)

	requesters := make([]uuid.UUID, 8)
	for i := range requesters {
		requesters[i] = e.db.addUser(model.RoleRequester).ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, rid := range requesters {
		wg.Add(1)
		go func(rid uuid.UUID) {
			defer wg.Done()
			_, err := e.visitSvc.BookExistingSlot(context.Background(), e.coordinator.ID, BookExistingSlotInput{
				RequesterID: rid, ProviderID: e.provider.ID, SlotID: sl.ID, Category: model.VisitCategoryPeriodic,
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
		}(rid)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, e.visitCount())
	assert.Equal(t, model.SlotStatusLocked, e.slot(sl.ID).Status)
}

func TestConfirmVisit(t *testing.T) {
	ctx := context.Background()

	t.Run("confirm drives slot to confirmed", func(t *testing.T) {
		e := newTestEnv(t)
		sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)
		visit := e.bookExisting(t, sl.ID, e.requester.ID)

		got, err := e.visitSvc.ConfirmVisit(ctx, visit.ID, e.provider.ID)
		require.NoError(t, err)
		assert.Equal(t, model.VisitStatusScheduled, got.Status)
		assert.Equal(t, model.SlotStatusConfirmed, e.slot(sl.ID).Status)
		assert.Contains(t, e.audit.actions(), model.ActionValidateVisit)

		// Повтор не меняет результат первого подтверждения
		_, err = e.visitSvc.ConfirmVisit(ctx, visit.ID, e.provider.ID)
		assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
		assert.Equal(t, model.VisitStatusScheduled, e.visit(visit.ID).Status)
		assert.Equal(t, model.SlotStatusConfirmed, e.slot(sl.ID).Status)

		_, err = e.visitSvc.RejectVisit(ctx, visit.ID, e.provider.ID)
		assert.Equal(t, apperr.CodeIllegalState, apperr.CodeOf(err))
		assert.Equal(t, model.SlotStatusConfirmed, e.slot(sl.ID).Status)
	})

	t.Run("only bound provider", func(t *testing.T) {
		e := newTestEnv(t)
		sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)
		visit := e.bookExisting(t, sl.ID, e.requester.ID)

		_, err := e.visitSvc.ConfirmVisit(ctx, visit.ID, e.provider2.ID)
		assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
		assert.Equal(t, model.SlotStatusLocked, e.slot(sl.ID).Status)
	})

	t.Run("expired lock cannot be confirmed", func(t *testing.T) {
		e := newTestEnv(t)
		sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)
		visit := e.bookExisting(t, sl.ID, e.requester.ID)

		e.now = at(1, 12, 30)
		_, err := e.visitSvc.ConfirmVisit(ctx, visit.ID, e.provider.ID)
		assert.Equal(t, apperr.CodeLockExpired, apperr.CodeOf(err))
		assert.Equal(t, model.SlotStatusLocked, e.slot(sl.ID).Status)
		assert.Equal(t, model.VisitStatusPending, e.visit(visit.ID).Status)
	})

	t.Run("unknown visit", func(t *testing.T) {
		e := newTestEnv(t)
		_, err := e.visitSvc.ConfirmVisit(ctx, uuid.New(), e.provider.ID)
		assert.Equal(t, apperr.CodeVisitNotFound, apperr.CodeOf(err))
	})
}

func TestRejectVisit(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)
	visit := e.bookExisting(t, sl.ID, e.requester.ID)

	got, err := e.visitSvc.RejectVisit(ctx, visit.ID, e.provider.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VisitStatusCancelled, got.Status)
	assert.Equal(t, model.SlotStatusAvailable, e.slot(sl.ID).Status)

	_, err = e.visitSvc.RejectVisit(ctx, visit.ID, e.provider.ID)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	// Слот снова можно забронировать
	again := e.bookExisting(t, sl.ID, e.requester2.ID)
	assert.Equal(t, model.VisitStatusPending, again.Status)
}

func TestCancelVisit(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*testEnv, model.Slot, *model.Visit) {
		e := newTestEnv(t)
		sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)
		return e, sl, e.bookExisting(t, sl.ID, e.requester.ID)
	}

	t.Run("scheduled visit cancelled by provider frees slot", func(t *testing.T) {
		e, sl, visit := setup(t)
		_, err := e.visitSvc.ConfirmVisit(ctx, visit.ID, e.provider.ID)
		require.NoError(t, err)

		_, err = e.visitSvc.CancelVisit(ctx, visit.ID, e.provider.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SlotStatusAvailable, e.slot(sl.ID).Status)
		assert.Equal(t, model.VisitStatusCancelled, e.visit(visit.ID).Status)
	})

	t.Run("admin may cancel", func(t *testing.T) {
		e, _, visit := setup(t)
		_, err := e.visitSvc.CancelVisit(ctx, visit.ID, e.admin.ID)
		require.NoError(t, err)
	})

	t.Run("unrelated users may not", func(t *testing.T) {
		e, sl, visit := setup(t)
		for _, actor := range []uuid.UUID{e.provider2.ID, e.requester2.ID} {
			_, err := e.visitSvc.CancelVisit(ctx, visit.ID, actor)
			assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
		}
		assert.Equal(t, model.SlotStatusLocked, e.slot(sl.ID).Status)
	})

	t.Run("in progress cannot be cancelled", func(t *testing.T) {
		e, sl, visit := setup(t)
		_, err := e.visitSvc.ConfirmVisit(ctx, visit.ID, e.provider.ID)
		require.NoError(t, err)
		_, err = e.visitSvc.AdvanceVisitStatus(ctx, visit.ID, e.provider.ID, model.VisitStatusInProgress)
		require.NoError(t, err)

		_, err = e.visitSvc.CancelVisit(ctx, visit.ID, e.admin.ID)
		assert.Equal(t, apperr.CodeIllegalState, apperr.CodeOf(err))
		assert.Equal(t, model.SlotStatusConfirmed, e.slot(sl.ID).Status)
	})

	t.Run("cancel twice", func(t *testing.T) {
		e, _, visit := setup(t)
		_, err := e.visitSvc.CancelVisit(ctx, visit.ID, e.coordinator.ID)
		require.NoError(t, err)
		_, err = e.visitSvc.CancelVisit(ctx, visit.ID, e.coordinator.ID)
		assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	})
}

func TestAdvanceVisitStatus(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)
	visit := e.bookExisting(t, sl.ID, e.requester.ID)

	_, err := e.visitSvc.AdvanceVisitStatus(ctx, visit.ID, e.provider.ID, model.VisitStatusInProgress)
	assert.Equal(t, apperr.CodeIllegalState, apperr.CodeOf(err))

	_, err = e.visitSvc.ConfirmVisit(ctx, visit.ID, e.provider.ID)
	require.NoError(t, err)

	_, err = e.visitSvc.AdvanceVisitStatus(ctx, visit.ID, e.provider.ID, model.VisitStatusCancelled)
	assert.Equal(t, apperr.CodeInvalidTransition, apperr.CodeOf(err))

	got, err := e.visitSvc.AdvanceVisitStatus(ctx, visit.ID, e.provider.ID, model.VisitStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.VisitStatusInProgress, got.Status)

	got, err = e.visitSvc.AdvanceVisitStatus(ctx, visit.ID, e.provider.ID, model.VisitStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.VisitStatusCompleted, got.Status)
	assert.Equal(t, model.SlotStatusConfirmed, e.slot(sl.ID).Status)
}

func TestVisitQueries(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)
	visit := e.bookExisting(t, sl.ID, e.requester.ID)

	pending, err := e.visitSvc.ListPendingForProvider(ctx, e.provider.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].Slot)
	assert.Equal(t, sl.ID, pending[0].Slot.ID)

	mine, err := e.visitSvc.ListForRequester(ctx, e.requester.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = e.visitSvc.GetVisit(ctx, visit.ID, e.requester.ID)
	require.NoError(t, err)
	_, err = e.visitSvc.GetVisit(ctx, visit.ID, e.requester2.ID)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
}

func TestProviderActionsRequireActiveProvider(t *testing.T) {
	ctx := context.Background()

	archive := func(e *testEnv, u model.User) {
		u.Archived = true
		e.db.mu.Lock()
		e.db.users[u.ID] = u
		e.db.mu.Unlock()
	}

	t.Run("archived provider cannot confirm or reject", func(t *testing.T) {
		e := newTestEnv(t)
		sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)
		visit := e.bookExisting(t, sl.ID, e.requester.ID)
		archive(e, e.provider)

		_, err := e.visitSvc.ConfirmVisit(ctx, visit.ID, e.provider.ID)
		assert.Equal(t, apperr.CodeUserArchived, apperr.CodeOf(err))
		_, err = e.visitSvc.RejectVisit(ctx, visit.ID, e.provider.ID)
		assert.Equal(t, apperr.CodeUserArchived, apperr.CodeOf(err))

		assert.Equal(t, model.VisitStatusPending, e.visit(visit.ID).Status)
		assert.Equal(t, model.SlotStatusLocked, e.slot(sl.ID).Status)
	})

	t.Run("archived provider cannot advance", func(t *testing.T) {
		e := newTestEnv(t)
		sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)
		visit := e.bookExisting(t, sl.ID, e.requester.ID)
		_, err := e.visitSvc.ConfirmVisit(ctx, visit.ID, e.provider.ID)
		require.NoError(t, err)
		archive(e, e.provider)

		_, err = e.visitSvc.AdvanceVisitStatus(ctx, visit.ID, e.provider.ID, model.VisitStatusInProgress)
		assert.Equal(t, apperr.CodeUserArchived, apperr.CodeOf(err))
		assert.Equal(t, model.VisitStatusScheduled, e.visit(visit.ID).Status)
	})

	t.Run("non provider role", func(t *testing.T) {
		e := newTestEnv(t)
		sl := e.putSlot(e.provider.ID, at(1, 10, 0), at(1, 11, 0), model.SlotStatusAvailable)
		visit := e.bookExisting(t, sl.ID, e.requester.ID)

		_, err := e.visitSvc.ConfirmVisit(ctx, visit.ID, e.coordinator.ID)
		assert.Equal(t, apperr.CodeRoleMismatch, apperr.CodeOf(err))
		_, err = e.visitSvc.RejectVisit(ctx, visit.ID, e.requester.ID)
		assert.Equal(t, apperr.CodeRoleMismatch, apperr.CodeOf(err))
		assert.Equal(t, model.SlotStatusLocked, e.slot(sl.ID).Status)
	})
}

func TestListProviderSchedule(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	early := e.putSlot(e.provider.ID, at(1, 9, 0), at(1, 10, 0), model.SlotStatusAvailable)
	late := e.putSlot(e.provider.ID, at(2, 9, 0), at(2, 10, 0), model.SlotStatusAvailable)
	pending := e.putSlot(e.provider.ID, at(3, 9, 0), at(3, 10, 0), model.SlotStatusAvailable)

	v1 := e.bookExisting(t, late.ID, e.requester.ID)
	v2 := e.bookExisting(t, early.ID, e.requester2.ID)
	e.bookExisting(t, pending.ID, e.requester.ID)

	for _, v := range []*model.Visit{v1, v2} {
		_, err := e.visitSvc.ConfirmVisit(ctx, v.ID, e.provider.ID)
		require.NoError(t, err)
	}
	_, err := e.visitSvc.AdvanceVisitStatus(ctx, v2.ID, e.provider.ID, model.VisitStatusInProgress)
	require.NoError(t, err)

	schedule, err := e.visitSvc.ListProviderSchedule(ctx, e.provider.ID)
	require.NoError(t, err)
	require.Len(t, schedule, 2)
	assert.Equal(t, v2.ID, schedule[0].ID)
	assert.Equal(t, model.VisitStatusInProgress, schedule[0].Status)
	assert.Equal(t, v1.ID, schedule[1].ID)

	_, err = e.visitSvc.ListProviderSchedule(ctx, e.requester.ID)
	assert.Equal(t, apperr.CodeRoleMismatch, apperr.CodeOf(err))
}

func TestSearchVisits(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	tue := e.putSlot(e.provider.ID, at(1, 9, 0), at(1, 10, 0), model.SlotStatusAvailable)
	wed := e.putSlot(e.provider.ID, at(2, 9, 0), at(2, 10, 0), model.SlotStatusAvailable)
	other := e.putSlot(e.provider2.ID, at(1, 11, 0), at(1, 12, 0), model.SlotStatusAvailable)

	scheduled := e.bookExisting(t, tue.ID, e.requester.ID)
	_, err := e.visitSvc.ConfirmVisit(ctx, scheduled.ID, e.provider.ID)
	require.NoError(t, err)
	pendingWed := e.bookExisting(t, wed.ID, e.requester.ID)
	otherVisit, err := e.visitSvc.BookExistingSlot(ctx, e.coordinator.ID, BookExistingSlotInput{
		RequesterID: e.requester2.ID, ProviderID: e.provider2.ID, SlotID: other.ID, Category: model.VisitCategoryPeriodic,
	})
	require.NoError(t, err)

	t.Run("by status", func(t *testing.T) {
		got, err := e.visitSvc.SearchVisits(ctx, e.coordinator.ID, model.VisitFilter{Statuses: []model.VisitStatus{model.VisitStatusPending}})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, otherVisit.ID, got[0].ID)
		assert.Equal(t, pendingWed.ID, got[1].ID)
	})

	t.Run("by date range", func(t *testing.T) {
		got, err := e.visitSvc.SearchVisits(ctx, e.admin.ID, model.VisitFilter{From: ptr(at(1, 0, 0)), To: ptr(at(2, 0, 0))})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, scheduled.ID, got[0].ID)
		assert.Equal(t, otherVisit.ID, got[1].ID)

		// Конец диапазона не включается
		got, err = e.visitSvc.SearchVisits(ctx, e.admin.ID, model.VisitFilter{From: ptr(at(1, 10, 0)), To: ptr(at(2, 9, 0))})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, otherVisit.ID, got[0].ID)
	})

	t.Run("by provider and status", func(t *testing.T) {
		got, err := e.visitSvc.SearchVisits(ctx, e.coordinator.ID, model.VisitFilter{
			ProviderID: &e.provider.ID,
			Statuses:   []model.VisitStatus{model.VisitStatusScheduled},
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, scheduled.ID, got[0].ID)
	})

	t.Run("rejected inputs", func(t *testing.T) {
		_, err := e.visitSvc.SearchVisits(ctx, e.requester.ID, model.VisitFilter{})
		assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

		_, err = e.visitSvc.SearchVisits(ctx, e.coordinator.ID, model.VisitFilter{Statuses: []model.VisitStatus{"LOST"}})
		assert.Equal(t, apperr.CodeUnknownEnum, apperr.CodeOf(err))

		_, err = e.visitSvc.SearchVisits(ctx, e.coordinator.ID, model.VisitFilter{From: ptr(at(2, 0, 0)), To: ptr(at(1, 0, 0))})
		assert.Equal(t, apperr.CodeInvalidWindow, apperr.CodeOf(err))
	})
}

package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/mediwork_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type inTxKey struct{}

// memDB хранит копии записей; транзакции выполняются по очереди и откатываются снимком
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users     map[uuid.UUID]model.User
	slots     map[uuid.UUID]model.Slot
	visits    map[uuid.UUID]model.Visit
	recurring map[uuid.UUID]model.RecurringSlot
	requests  map[uuid.UUID]model.SpontaneousRequest

	failVisitCreate error
}

func newMemDB() *memDB {
	return &memDB{
		users:     map[uuid.UUID]model.User{},
		slots:     map[uuid.UUID]model.Slot{},
		visits:    map[uuid.UUID]model.Visit{},
		recurring: map[uuid.UUID]model.RecurringSlot{},
		requests:  map[uuid.UUID]model.SpontaneousRequest{},
	}
}

type memSnapshot struct {
	slots     map[uuid.UUID]model.Slot
	visits    map[uuid.UUID]model.Visit
	recurring map[uuid.UUID]model.RecurringSlot
	requests  map[uuid.UUID]model.SpontaneousRequest
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	snap := memSnapshot{
		slots:     cloneMap(db.slots),
		visits:    cloneMap(db.visits),
		recurring: cloneMap(db.recurring),
		requests:  cloneMap(db.requests),
	}
	db.mu.Unlock()

	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		db.mu.Lock()
		db.slots, db.visits, db.recurring, db.requests = snap.slots, snap.visits, snap.recurring, snap.requests
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *memDB) LockParty(ctx context.Context, _ uuid.UUID) error {
	if ctx.Value(inTxKey{}) == nil {
		return errors.New("lock party outside transaction")
	}
	return nil
}

func (db *memDB) addUser(role model.Role) model.User {
	u := model.User{ID: uuid.New(), Role: role, FirstName: string(role)}
	db.mu.Lock()
	db.users[u.ID] = u
	db.mu.Unlock()
	return u
}

// users

type memUsers struct{ db *memDB }

func (s memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s memUsers) GetByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

// slots

type memSlots struct{ db *memDB }

func sortSlots(slots []*model.Slot) []*model.Slot {
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime.Before(slots[j].StartTime) })
	return slots
}

func (s memSlots) filter(keep func(model.Slot) bool) []*model.Slot {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*model.Slot
	for _, sl := range s.db.slots {
		if keep(sl) {
			sl := sl
			out = append(out, &sl)
		}
	}
	return sortSlots(out)
}

func (s memSlots) Create(_ context.Context, slot *model.Slot) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	slot.CreatedAt = time.Now()
	slot.UpdatedAt = slot.CreatedAt
	s.db.slots[slot.ID] = *slot
	return nil
}

func (s memSlots) GetByID(_ context.Context, id uuid.UUID) (*model.Slot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sl, ok := s.db.slots[id]
	if !ok {
		return nil, nil
	}
	return &sl, nil
}

func (s memSlots) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	return s.GetByID(ctx, id)
}

func (s memSlots) ListAvailable(_ context.Context, providerID uuid.UUID, after time.Time) ([]*model.Slot, error) {
	return s.filter(func(sl model.Slot) bool {
		return sl.ProviderID == providerID && sl.Status == model.SlotStatusAvailable && sl.StartTime.After(after)
	}), nil
}

func (s memSlots) ListByProvider(_ context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.Slot, error) {
	return s.filter(func(sl model.Slot) bool {
		return sl.ProviderID == providerID && !sl.StartTime.Before(from) && sl.StartTime.Before(to)
	}), nil
}

func (s memSlots) ListByStatus(_ context.Context, providerID uuid.UUID, status model.SlotStatus) ([]*model.Slot, error) {
	return s.filter(func(sl model.Slot) bool {
		return sl.ProviderID == providerID && sl.Status == status
	}), nil
}

func (s memSlots) ListOverlapping(_ context.Context, providerID uuid.UUID, w model.Window) ([]*model.Slot, error) {
	return s.filter(func(sl model.Slot) bool {
		return sl.ProviderID == providerID && sl.Window().Overlaps(w)
	}), nil
}

func (s memSlots) ListExpiredLocks(_ context.Context, startedBefore time.Time) ([]*model.Slot, error) {
	return s.filter(func(sl model.Slot) bool {
		return sl.Status == model.SlotStatusLocked && sl.StartTime.Before(startedBefore)
	}), nil
}

func (s memSlots) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.SlotStatus) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sl, ok := s.db.slots[id]
	if !ok || sl.Status != from {
		return false, nil
	}
	sl.Status = to
	s.db.slots[id] = sl
	return true, nil
}

func (s memSlots) Delete(_ context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.slots, id)
	return nil
}

// visits

type memVisits struct{ db *memDB }

func (s memVisits) withSlot(v model.Visit) *model.Visit {
	if v.SlotID != nil {
		if sl, ok := s.db.slots[*v.SlotID]; ok {
			v.Slot = &sl
		}
	}
	return &v
}

func (s memVisits) filter(keep func(v *model.Visit) bool) []*model.Visit {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*model.Visit
	for _, v := range s.db.visits {
		vv := s.withSlot(v)
		if keep(vv) {
			out = append(out, vv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s memVisits) Create(_ context.Context, visit *model.Visit) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.failVisitCreate != nil {
		return s.db.failVisitCreate
	}
	stored := *visit
	stored.Slot = nil
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	s.db.visits[visit.ID] = stored
	return nil
}

func (s memVisits) GetByID(_ context.Context, id uuid.UUID) (*model.Visit, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	v, ok := s.db.visits[id]
	if !ok {
		return nil, nil
	}
	return s.withSlot(v), nil
}

func (s memVisits) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Visit, error) {
	return s.GetByID(ctx, id)
}

func (s memVisits) GetActiveBySlot(_ context.Context, slotID uuid.UUID) (*model.Visit, error) {
	out := s.filter(func(v *model.Visit) bool {
		return v.SlotID != nil && *v.SlotID == slotID && v.Status != model.VisitStatusCancelled
	})
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (s memVisits) CountBySlot(_ context.Context, slotID uuid.UUID) (int, error) {
	return len(s.filter(func(v *model.Visit) bool { return v.SlotID != nil && *v.SlotID == slotID })), nil
}

func (s memVisits) ListOverlappingForProvider(_ context.Context, providerID uuid.UUID, w model.Window) ([]*model.Visit, error) {
	return s.filter(func(v *model.Visit) bool {
		return v.ProviderID == providerID && v.Slot != nil && v.Slot.Window().Overlaps(w)
	}), nil
}

func (s memVisits) ListOverlappingForRequester(_ context.Context, requesterID uuid.UUID, w model.Window) ([]*model.Visit, error) {
	return s.filter(func(v *model.Visit) bool {
		return v.RequesterID == requesterID && v.Slot != nil && v.Slot.Window().Overlaps(w)
	}), nil
}

func (s memVisits) ListPendingByProvider(_ context.Context, providerID uuid.UUID) ([]*model.Visit, error) {
	return s.filter(func(v *model.Visit) bool {
		return v.ProviderID == providerID && v.Status == model.VisitStatusPending
	}), nil
}

func (s memVisits) ListByRequester(_ context.Context, requesterID uuid.UUID) ([]*model.Visit, error) {
	return s.filter(func(v *model.Visit) bool { return v.RequesterID == requesterID }), nil
}

func (s memVisits) Search(_ context.Context, f model.VisitFilter) ([]*model.Visit, error) {
	out := s.filter(func(v *model.Visit) bool {
		switch {
		case f.ProviderID != nil && v.ProviderID != *f.ProviderID,
			f.RequesterID != nil && v.RequesterID != *f.RequesterID,
			len(f.Statuses) > 0 && !contains(f.Statuses, v.Status):
			return false
		}
		if f.From == nil && f.To == nil {
			return true
		}
		if v.Slot == nil {
			return false
		}
		return (f.From == nil || !v.Slot.StartTime.Before(*f.From)) && (f.To == nil || v.Slot.StartTime.Before(*f.To))
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Slot == nil || out[j].Slot == nil {
			return out[j].Slot == nil && out[i].Slot != nil
		}
		return out[i].Slot.StartTime.Before(out[j].Slot.StartTime)
	})
	return out, nil
}

func (s memVisits) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.VisitStatus) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	v, ok := s.db.visits[id]
	if !ok || v.Status != from {
		return false, nil
	}
	v.Status = to
	s.db.visits[id] = v
	return true, nil
}

// recurring slots

type memRecurring struct{ db *memDB }

func (s memRecurring) Create(_ context.Context, rs *model.RecurringSlot) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.recurring[rs.ID] = *rs
	return nil
}

func (s memRecurring) GetByID(_ context.Context, id uuid.UUID) (*model.RecurringSlot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rs, ok := s.db.recurring[id]
	if !ok {
		return nil, nil
	}
	return &rs, nil
}

func (s memRecurring) Update(_ context.Context, rs *model.RecurringSlot) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.recurring[rs.ID] = *rs
	return nil
}

func (s memRecurring) Delete(_ context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.recurring, id)
	return nil
}

func (s memRecurring) list(keep func(model.RecurringSlot) bool) []*model.RecurringSlot {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*model.RecurringSlot
	for _, rs := range s.db.recurring {
		if keep(rs) {
			rs := rs
			out = append(out, &rs)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (s memRecurring) ListByProvider(_ context.Context, providerID uuid.UUID) ([]*model.RecurringSlot, error) {
	return s.list(func(rs model.RecurringSlot) bool { return rs.ProviderID == providerID }), nil
}

func (s memRecurring) ListByProviderAndWeekday(_ context.Context, providerID uuid.UUID, weekday time.Weekday) ([]*model.RecurringSlot, error) {
	return s.list(func(rs model.RecurringSlot) bool { return rs.ProviderID == providerID && rs.Weekday == weekday }), nil
}

// spontaneous requests

type memRequests struct{ db *memDB }

func (s memRequests) Create(_ context.Context, req *model.SpontaneousRequest) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	req.CreatedAt = time.Now()
	s.db.requests[req.ID] = *req
	return nil
}

func (s memRequests) GetByID(_ context.Context, id uuid.UUID) (*model.SpontaneousRequest, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	req, ok := s.db.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (s memRequests) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.SpontaneousRequest, error) {
	return s.GetByID(ctx, id)
}

func (s memRequests) Update(_ context.Context, req *model.SpontaneousRequest) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.requests[req.ID] = *req
	return nil
}

func (s memRequests) list(keep func(model.SpontaneousRequest) bool) []*model.SpontaneousRequest {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*model.SpontaneousRequest
	for _, req := range s.db.requests {
		if keep(req) {
			req := req
			out = append(out, &req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s memRequests) ListByRequester(_ context.Context, requesterID uuid.UUID) ([]*model.SpontaneousRequest, error) {
	return s.list(func(r model.SpontaneousRequest) bool { return r.RequesterID == requesterID }), nil
}

func (s memRequests) ListByStatus(_ context.Context, statuses ...model.RequestStatus) ([]*model.SpontaneousRequest, error) {
	return s.list(func(r model.SpontaneousRequest) bool { return len(statuses) == 0 || contains(statuses, r.Status) }), nil
}

func (s memRequests) CountByRequester(_ context.Context, requesterID uuid.UUID) (*model.RequestStats, error) {
	stats := &model.RequestStats{}
	for _, r := range s.list(func(r model.SpontaneousRequest) bool { return r.RequesterID == requesterID }) {
		stats.Add(r.Status, 1)
	}
	return stats, nil
}

// audit

type recordingSink struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (s *recordingSink) Emit(entry model.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *recordingSink) actions() []model.ActionType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ActionType, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}

// testEnv собирает сервисы над memDB с фиксированными часами
type testEnv struct {
	db    *memDB
	now   time.Time
	audit *recordingSink

	slotSvc        *SlotService
	visitSvc       *VisitService
	recurringSvc   *RecurringService
	spontaneousSvc *SpontaneousService
	userSvc        *UserService

	admin       model.User
	coordinator model.User
	provider    model.User
	provider2   model.User
	requester   model.User
	requester2  model.User
}

// 2026-03-02 - понедельник
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newMemDB()
	e := &testEnv{db: db, now: testNow, audit: &recordingSink{}}
	clock := func() time.Time { return e.now }
	logger := zap.NewNop()
	policy := DefaultPolicy()

	users := memUsers{db}
	slots := memSlots{db}
	visits := memVisits{db}

	e.slotSvc = NewSlotService(db, slots, visits, users, e.audit, clock, policy, logger)
	e.visitSvc = NewVisitService(db, e.slotSvc, slots, visits, users, e.audit, clock, policy, logger)
	e.recurringSvc = NewRecurringService(db, memRecurring{db}, slots, users, e.audit, clock, time.UTC, logger)
	e.spontaneousSvc = NewSpontaneousService(db, memRequests{db}, e.recurringSvc, e.visitSvc, users, e.audit, clock, policy, logger)
	e.userSvc = NewUserService(users, logger)

	e.admin = db.addUser(model.RoleAdmin)
	e.coordinator = db.addUser(model.RoleCoordinator)
	e.provider = db.addUser(model.RoleProvider)
	e.provider2 = db.addUser(model.RoleProvider)
	e.requester = db.addUser(model.RoleRequester)
	e.requester2 = db.addUser(model.RoleRequester)

	return e
}

// at момент в дне now + days
func at(days, hour, minute int) time.Time {
	return time.Date(testNow.Year(), testNow.Month(), testNow.Day()+days, hour, minute, 0, 0, time.UTC)
}

// putSlot кладёт слот в хранилище в обход сервиса
func (e *testEnv) putSlot(providerID uuid.UUID, start, end time.Time, status model.SlotStatus) model.Slot {
	sl := model.Slot{ID: uuid.New(), ProviderID: providerID, StartTime: start, EndTime: end, Status: status}
	e.db.mu.Lock()
	e.db.slots[sl.ID] = sl
	e.db.mu.Unlock()
	return sl
}

func (e *testEnv) slot(id uuid.UUID) model.Slot {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return e.db.slots[id]
}

func (e *testEnv) visit(id uuid.UUID) model.Visit {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return e.db.visits[id]
}

func (e *testEnv) request(id uuid.UUID) model.SpontaneousRequest {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return e.db.requests[id]
}

func (e *testEnv) slotCount() int {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return len(e.db.slots)
}

func (e *testEnv) visitCount() int {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return len(e.db.visits)
}

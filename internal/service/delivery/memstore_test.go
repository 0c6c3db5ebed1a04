package delivery

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/ports/deliverytx"
)

// memState is everything a transaction can touch.
type memState struct {
	deliveries    map[int64]domain.Delivery
	assignments   map[int64]domain.Assignment
	photos        map[int64][]domain.PhotoCategory
	history       []domain.StatusHistoryEntry
	issues        []domain.Issue
	notifications []domain.Notification
	nextID        int64
}

func (s memState) clone() memState {
	out := s
	out.deliveries = maps.Clone(s.deliveries)
	out.assignments = make(map[int64]domain.Assignment, len(s.assignments))
	for id, a := range s.assignments {
		a.PhaseTimes = maps.Clone(a.PhaseTimes)
		out.assignments[id] = a
	}
	out.photos = maps.Clone(s.photos)
	out.history = slices.Clone(s.history)
	out.issues = slices.Clone(s.issues)
	out.notifications = slices.Clone(s.notifications)
	return out
}

// memStore commits a transaction's working copy only when fn succeeds.
type memStore struct {
	state  memState
	failOn string
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		deliveries:  map[int64]domain.Delivery{},
		assignments: map[int64]domain.Assignment{},
		photos:      map[int64][]domain.PhotoCategory{},
		nextID:      100,
	}}
}

func (m *memStore) addDelivery(status domain.DeliveryStatus) int64 {
	m.state.nextID++
	id := m.state.nextID
	m.state.deliveries[id] = domain.Delivery{ID: id, Number: fmt.Sprintf("MH-%d", id), Status: status, Version: 1}
	return id
}

func (m *memStore) addAssignment(deliveryID, driverID int64, status domain.AssignmentStatus) int64 {
	m.state.nextID++
	id := m.state.nextID
	m.state.assignments[id] = domain.Assignment{
		ID: id, DeliveryID: deliveryID, DriverID: driverID,
		Role: domain.RoleDelivery, Status: status,
	}
	return id
}

func (m *memStore) addPhotos(deliveryID int64, cats ...domain.PhotoCategory) {
	m.state.photos[deliveryID] = append(m.state.photos[deliveryID], cats...)
}

func (m *memStore) delivery(id int64) domain.Delivery { return m.state.deliveries[id] }

func (m *memStore) assignment(id int64) domain.Assignment { return m.state.assignments[id] }

func (m *memStore) events() []domain.EventType {
	out := make([]domain.EventType, 0, len(m.state.notifications))
	for _, n := range m.state.notifications {
		out = append(out, n.Event)
	}
	return out
}

func (m *memStore) WithTx(_ context.Context, fn func(tx deliverytx.Repository) error) error {
	tx := &memTx{state: m.state.clone(), failOn: m.failOn}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *memStore) Get(_ context.Context, id int64) (*domain.Delivery, error) {
	d, ok := m.state.deliveries[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &d, nil
}

func (m *memStore) History(_ context.Context, deliveryID int64) ([]domain.StatusHistoryEntry, error) {
	var out []domain.StatusHistoryEntry
	for _, e := range m.state.history {
		if e.DeliveryID == deliveryID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) Assignment(_ context.Context, id int64) (*domain.Assignment, error) {
	a, ok := m.state.assignments[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &a, nil
}

func (m *memStore) Assignments(_ context.Context, deliveryID int64) ([]domain.Assignment, error) {
	var out []domain.Assignment
	for _, a := range m.state.assignments {
		if a.DeliveryID == deliveryID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memTx struct {
	state  memState
	failOn string
}

func (t *memTx) fail(op string) error {
	if t.failOn == op {
		return fmt.Errorf("%s: injected failure", op)
	}
	return nil
}

func (t *memTx) GetDeliveryForUpdate(_ context.Context, id int64) (*domain.Delivery, error) {
	d, ok := t.state.deliveries[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &d, nil
}

func (t *memTx) UpdateDeliveryStatus(_ context.Context, d *domain.Delivery) error {
	if err := t.fail("update_delivery"); err != nil {
		return err
	}
	stored := t.state.deliveries[d.ID]
	if stored.Version != d.Version {
		return apperr.ErrConflict
	}
	d.Version++
	d.UpdatedAt = time.Now()
	t.state.deliveries[d.ID] = *d
	return nil
}

func (t *memTx) DriverAssignment(_ context.Context, deliveryID, driverID int64) (*domain.Assignment, error) {
	var found *domain.Assignment
	for _, a := range t.state.assignments {
		if a.DeliveryID != deliveryID || a.DriverID != driverID {
			continue
		}
		if a.Status.CanProgressDelivery() {
			return &a, nil
		}
		found = &a
	}
	return found, nil
}

func (t *memTx) GetAssignmentForUpdate(_ context.Context, id int64) (*domain.Assignment, error) {
	a, ok := t.state.assignments[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &a, nil
}

func (t *memTx) InsertAssignment(_ context.Context, a *domain.Assignment) error {
	t.state.nextID++
	a.ID = t.state.nextID
	t.state.assignments[a.ID] = *a
	return nil
}

func (t *memTx) UpdateAssignment(_ context.Context, a *domain.Assignment) error {
	if _, ok := t.state.assignments[a.ID]; !ok {
		return apperr.ErrNotFound
	}
	t.state.assignments[a.ID] = *a
	return nil
}

func (t *memTx) SetPhaseTime(_ context.Context, assignmentID int64, phase domain.DeliveryStatus, at time.Time) error {
	a := t.state.assignments[assignmentID]
	if a.PhaseTimes == nil {
		a.PhaseTimes = map[domain.DeliveryStatus]time.Time{}
	}
	a.PhaseTimes[phase] = at
	t.state.assignments[assignmentID] = a
	return nil
}

func (t *memTx) PhotoCategories(_ context.Context, deliveryID int64) ([]domain.PhotoCategory, error) {
	return slices.Clone(t.state.photos[deliveryID]), nil
}

func (t *memTx) InsertHistory(_ context.Context, e *domain.StatusHistoryEntry) error {
	t.state.nextID++
	e.ID = t.state.nextID
	t.state.history = append(t.state.history, *e)
	return nil
}

func (t *memTx) InsertIssue(_ context.Context, i *domain.Issue) error {
	t.state.nextID++
	i.ID = t.state.nextID
	t.state.issues = append(t.state.issues, *i)
	return nil
}

func (t *memTx) EnqueueNotification(_ context.Context, n domain.Notification) error {
	if err := t.fail("enqueue"); err != nil {
		return err
	}
	t.state.notifications = append(t.state.notifications, n)
	return nil
}

package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/service/dispatch"
)

var assignedAt = time.Date(2026, 7, 4, 6, 0, 0, 0, time.UTC)

func TestProcessor_Handle_Assigned_CreatesPending(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	a := NewMockAssignmentPort(ctrl)
	p := dispatch.NewProcessor(a, nil)

	a.EXPECT().
		CreatePending(gomock.Any(), int64(10), int64(3), domain.RolePickup, assignedAt).
		Return(&domain.Assignment{ID: 1}, nil)

	err := p.Handle(context.Background(), dispatch.Event{
		DeliveryID: 10, DriverID: 3, Role: "pickup", Action: "  ASSIGNED ", AssignedAt: assignedAt,
	})
	require.NoError(t, err)
}

func TestProcessor_Handle_DefaultsToDeliveryRole(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	a := NewMockAssignmentPort(ctrl)
	p := dispatch.NewProcessor(a, nil)

	a.EXPECT().
		CreatePending(gomock.Any(), int64(10), int64(3), domain.RoleDelivery, gomock.Any()).
		Return(&domain.Assignment{ID: 1}, nil)

	require.NoError(t, p.Handle(context.Background(), dispatch.Event{DeliveryID: 10, DriverID: 3}))
}

func TestProcessor_Handle_Assigned_ConflictIsIgnored(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	a := NewMockAssignmentPort(ctrl)
	p := dispatch.NewProcessor(a, nil)

	a.EXPECT().
		CreatePending(gomock.Any(), int64(10), int64(3), domain.RoleDelivery, gomock.Any()).
		Return(nil, apperr.ErrConflict)

	err := p.Handle(context.Background(), dispatch.Event{DeliveryID: 10, DriverID: 3, Action: "assigned"})
	require.NoError(t, err)
}

func TestProcessor_Handle_Assigned_OtherErrorReturned(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	a := NewMockAssignmentPort(ctrl)
	p := dispatch.NewProcessor(a, nil)

	wantErr := errors.New("boom")
	a.EXPECT().
		CreatePending(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, wantErr)

	err := p.Handle(context.Background(), dispatch.Event{DeliveryID: 10, DriverID: 3, Action: "assigned"})
	require.ErrorIs(t, err, wantErr)
}

func TestProcessor_Handle_Withdrawn(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	a := NewMockAssignmentPort(ctrl)
	p := dispatch.NewProcessor(a, nil)

	a.EXPECT().Withdraw(gomock.Any(), int64(11), int64(4), "driver sick").Return(nil)
	a.EXPECT().Withdraw(gomock.Any(), int64(12), int64(4), "withdrawn by dispatch").Return(apperr.ErrNotFound)
	a.EXPECT().Withdraw(gomock.Any(), int64(13), int64(4), gomock.Any()).Return(apperr.ErrConflict)

	ctx := context.Background()
	require.NoError(t, p.Handle(ctx, dispatch.Event{DeliveryID: 11, DriverID: 4, Action: "withdrawn", Reason: "driver sick"}))
	require.NoError(t, p.Handle(ctx, dispatch.Event{DeliveryID: 12, DriverID: 4, Action: "canceled"}))
	require.NoError(t, p.Handle(ctx, dispatch.Event{DeliveryID: 13, DriverID: 4, Action: "unassigned"}))
}

func TestProcessor_Handle_UnknownAction_NoOps(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p := dispatch.NewProcessor(NewMockAssignmentPort(ctrl), nil)
	err := p.Handle(context.Background(), dispatch.Event{DeliveryID: 1, DriverID: 1, Action: "teleported"})
	require.NoError(t, err)
}

func TestProcessor_Handle_InvalidEvent(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p := dispatch.NewProcessor(NewMockAssignmentPort(ctrl), nil)
	err := p.Handle(context.Background(), dispatch.Event{DriverID: 1, Action: "assigned"})
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

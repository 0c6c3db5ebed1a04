package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/service/delivery"
	testlog "mobile-home-delivery/internal/testutil"
)

type stubDeliveryUsecase struct {
	getFn         func(ctx context.Context, id int64) (*domain.Delivery, error)
	historyFn     func(ctx context.Context, id int64) ([]domain.StatusHistoryEntry, error)
	transitionFn  func(ctx context.Context, in delivery.TransitionInput) (delivery.TransitionResult, error)
	reportIssueFn func(ctx context.Context, in delivery.IssueInput) (delivery.IssueResult, error)
	resumeFn      func(ctx context.Context, deliveryID, adminID int64, note string) (delivery.TransitionResult, error)
}

func (s *stubDeliveryUsecase) Get(ctx context.Context, id int64) (*domain.Delivery, error) {
	if s.getFn == nil {
		panic("Get not expected in this test")
	}
	return s.getFn(ctx, id)
}

func (s *stubDeliveryUsecase) History(ctx context.Context, id int64) ([]domain.StatusHistoryEntry, error) {
	if s.historyFn == nil {
		panic("History not expected in this test")
	}
	return s.historyFn(ctx, id)
}

func (s *stubDeliveryUsecase) Transition(ctx context.Context, in delivery.TransitionInput) (delivery.TransitionResult, error) {
	if s.transitionFn == nil {
		panic("Transition not expected in this test")
	}
	return s.transitionFn(ctx, in)
}

func (s *stubDeliveryUsecase) ReportIssue(ctx context.Context, in delivery.IssueInput) (delivery.IssueResult, error) {
	if s.reportIssueFn == nil {
		panic("ReportIssue not expected in this test")
	}
	return s.reportIssueFn(ctx, in)
}

func (s *stubDeliveryUsecase) Resume(ctx context.Context, deliveryID, adminID int64, note string) (delivery.TransitionResult, error) {
	if s.resumeFn == nil {
		panic("Resume not expected in this test")
	}
	return s.resumeFn(ctx, deliveryID, adminID, note)
}

var handlerNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func TestDeliveryHandler_Get_OK(t *testing.T) {
	t.Parallel()

	from := domain.StatusInTransit
	uc := &stubDeliveryUsecase{
		getFn: func(_ context.Context, id int64) (*domain.Delivery, error) {
			require.Equal(t, int64(7), id)
			return &domain.Delivery{
				ID: 7, Number: "MH-7", Status: domain.StatusDelayed, DelayedFrom: &from,
				CustomerName: "Ann", Version: 4, CreatedAt: handlerNow, UpdatedAt: handlerNow,
			}, nil
		},
	}
	rr := httptest.NewRecorder()
	NewDeliveryHandler(nil, uc).Get(rr, newRequest(http.MethodGet, "/deliveries/7", "7", 0, ""))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"id": 7,
		"number": "MH-7",
		"status": "delayed",
		"delayed_from": "in_transit",
		"customer_name": "Ann",
		"customer_phone": "",
		"pickup_address": "",
		"delivery_address": "",
		"version": 4,
		"created_at": "2025-01-02T03:04:05Z",
		"updated_at": "2025-01-02T03:04:05Z"
	}`, rr.Body.String())
}

func TestDeliveryHandler_Get_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   string
		err  error
		want int
	}{
		{name: "bad id", id: "abc", want: http.StatusBadRequest},
		{name: "negative id", id: "-1", want: http.StatusBadRequest},
		{name: "not found", id: "1", err: fmt.Errorf("delivery 1: %w", apperr.ErrNotFound), want: http.StatusNotFound},
		{name: "internal", id: "1", err: errors.New("db down"), want: http.StatusInternalServerError},
		{name: "timeout", id: "1", err: context.DeadlineExceeded, want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			uc := &stubDeliveryUsecase{
				getFn: func(context.Context, int64) (*domain.Delivery, error) { return nil, tt.err },
			}
			rr := httptest.NewRecorder()
			NewDeliveryHandler(nil, uc).Get(rr, newRequest(http.MethodGet, "/deliveries/"+tt.id, tt.id, 0, ""))
			require.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestDeliveryHandler_Transition_OK(t *testing.T) {
	t.Parallel()

	uc := &stubDeliveryUsecase{
		transitionFn: func(_ context.Context, in delivery.TransitionInput) (delivery.TransitionResult, error) {
			assert.Equal(t, int64(3), in.DeliveryID)
			assert.Equal(t, int64(42), in.ActorID)
			assert.Equal(t, domain.StatusFactoryPickupInProgress, in.Target)
			require.NotNil(t, in.Location)
			assert.InDelta(t, 12.5, in.Location.Accuracy, 0)
			require.NotNil(t, in.ExpectedVersion)
			assert.Equal(t, int64(2), *in.ExpectedVersion)
			return delivery.TransitionResult{
				Delivery: domain.Delivery{ID: 3, Status: in.Target, Version: 3},
				Entry: domain.StatusHistoryEntry{
					ID: 9, DeliveryID: 3, FromStatus: domain.StatusScheduled, Status: in.Target,
					ActorID: 42, Location: in.Location, CreatedAt: handlerNow,
				},
			}, nil
		},
	}
	body := `{"status":"factory_pickup_in_progress","location":{"latitude":45.1,"longitude":-122.2,"accuracy":12.5},"expected_version":2}`
	rr := httptest.NewRecorder()
	NewDeliveryHandler(nil, uc).Transition(rr, newRequest(http.MethodPost, "/deliveries/3/transitions", "3", 42, body))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"status":"factory_pickup_in_progress"`)
	assert.Contains(t, rr.Body.String(), `"from_status":"scheduled"`)
}

func TestDeliveryHandler_Transition_RejectionBody(t *testing.T) {
	t.Parallel()

	uc := &stubDeliveryUsecase{
		transitionFn: func(context.Context, delivery.TransitionInput) (delivery.TransitionResult, error) {
			return delivery.TransitionResult{}, &domain.TransitionError{
				Reason:   domain.ReasonMissingRequiredPhotos,
				From:     domain.StatusFactoryPickupInProgress,
				To:       domain.StatusFactoryPickupCompleted,
				Current:  2,
				Required: 4,
				Missing:  []domain.PhotoCategory{domain.PhotoPickupLeft, domain.PhotoPickupRight},
			}
		},
	}
	body := `{"status":"factory_pickup_completed","location":{"latitude":1,"longitude":1,"accuracy":5}}`
	rr := httptest.NewRecorder()
	NewDeliveryHandler(nil, uc).Transition(rr, newRequest(http.MethodPost, "/deliveries/3/transitions", "3", 42, body))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.JSONEq(t, `{
		"error": "rejected",
		"reason": "missing_required_photos",
		"from": "factory_pickup_in_progress",
		"to": "factory_pickup_completed",
		"current": 2,
		"required": 4,
		"missing": ["pickup_left", "pickup_right"]
	}`, rr.Body.String())
}

func TestDeliveryHandler_Transition_InputErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  string
		actor int64
		err   error
		want  int
	}{
		{name: "anonymous", body: `{"status":"in_transit"}`, want: http.StatusUnauthorized},
		{name: "bad json", body: `{`, actor: 1, want: http.StatusBadRequest},
		{name: "unknown field", body: `{"status":"in_transit","speed":3}`, actor: 1, want: http.StatusBadRequest},
		{name: "missing status", body: `{"note":"x"}`, actor: 1, want: http.StatusBadRequest},
		{name: "latitude out of range", body: `{"status":"in_transit","location":{"latitude":91,"longitude":0}}`, actor: 1, want: http.StatusBadRequest},
		{name: "stale version", body: `{"status":"in_transit","expected_version":1}`, actor: 1, err: apperr.ErrConflict, want: http.StatusConflict},
		{name: "forbidden", body: `{"status":"in_transit"}`, actor: 1, err: apperr.ErrForbidden, want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			uc := &stubDeliveryUsecase{
				transitionFn: func(context.Context, delivery.TransitionInput) (delivery.TransitionResult, error) {
					if tt.err == nil {
						t.Fatal("usecase must not be called")
					}
					return delivery.TransitionResult{}, tt.err
				},
			}
			rr := httptest.NewRecorder()
			NewDeliveryHandler(nil, uc).Transition(rr, newRequest(http.MethodPost, "/deliveries/3/transitions", "3", tt.actor, tt.body))
			require.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestDeliveryHandler_ReportIssue_Created(t *testing.T) {
	t.Parallel()

	uc := &stubDeliveryUsecase{
		reportIssueFn: func(_ context.Context, in delivery.IssueInput) (delivery.IssueResult, error) {
			assert.Equal(t, domain.IssueWeather, in.Type)
			assert.Equal(t, domain.SeverityCritical, in.Severity)
			assert.Equal(t, int64(5), in.ReporterID)
			return delivery.IssueResult{
				Issue:    domain.Issue{ID: 1, Type: in.Type, Severity: in.Severity, Description: in.Description, CreatedAt: handlerNow},
				Delayed:  true,
				Delivery: domain.Delivery{ID: 8, Status: domain.StatusDelayed},
			}, nil
		},
	}
	body := `{"type":"weather","severity":"critical","description":"high winds"}`
	rr := httptest.NewRecorder()
	NewDeliveryHandler(nil, uc).ReportIssue(rr, newRequest(http.MethodPost, "/deliveries/8/issues", "8", 5, body))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"delayed":true`)
}

func TestDeliveryHandler_ReportIssue_BadSeverity(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	body := `{"type":"weather","severity":"apocalyptic","description":"x"}`
	NewDeliveryHandler(nil, &stubDeliveryUsecase{}).ReportIssue(rr, newRequest(http.MethodPost, "/deliveries/8/issues", "8", 5, body))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"invalid field: Severity"}`, rr.Body.String())
}

func TestDeliveryHandler_ReportIssue_Types(t *testing.T) {
	t.Parallel()

	for _, typ := range []string{"mechanical", "route", "customer", "permit"} {
		uc := &stubDeliveryUsecase{
			reportIssueFn: func(_ context.Context, in delivery.IssueInput) (delivery.IssueResult, error) {
				return delivery.IssueResult{Issue: domain.Issue{ID: 1, Type: in.Type, Severity: in.Severity, CreatedAt: handlerNow}}, nil
			},
		}
		body := `{"type":"` + typ + `","severity":"low","description":"noted"}`
		rr := httptest.NewRecorder()
		NewDeliveryHandler(nil, uc).ReportIssue(rr, newRequest(http.MethodPost, "/deliveries/8/issues", "8", 5, body))
		require.Equal(t, http.StatusCreated, rr.Code, typ)
	}

	rr := httptest.NewRecorder()
	body := `{"type":"access_problem","severity":"low","description":"x"}`
	NewDeliveryHandler(nil, &stubDeliveryUsecase{}).ReportIssue(rr, newRequest(http.MethodPost, "/deliveries/8/issues", "8", 5, body))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"invalid field: Type"}`, rr.Body.String())
}

func TestDeliveryHandler_Resume_EmptyBody(t *testing.T) {
	t.Parallel()

	uc := &stubDeliveryUsecase{
		resumeFn: func(_ context.Context, deliveryID, adminID int64, note string) (delivery.TransitionResult, error) {
			assert.Equal(t, int64(4), deliveryID)
			assert.Equal(t, int64(99), adminID)
			assert.Empty(t, note)
			return delivery.TransitionResult{Delivery: domain.Delivery{ID: 4, Status: domain.StatusInTransit}}, nil
		},
	}
	rr := httptest.NewRecorder()
	NewDeliveryHandler(nil, uc).Resume(rr, newRequest(http.MethodPost, "/admin/deliveries/4/resume", "4", 99, ""))

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestDeliveryHandler_History_InternalErrorIsLogged(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	uc := &stubDeliveryUsecase{
		historyFn: func(context.Context, int64) ([]domain.StatusHistoryEntry, error) {
			return nil, errors.New("boom")
		},
	}
	rr := httptest.NewRecorder()
	NewDeliveryHandler(rec.Logger(), uc).History(rr, newRequest(http.MethodGet, "/deliveries/4/history", "4", 0, ""))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rr.Body.String())
	require.Len(t, rec.ByEvent("http_internal_error"), 1)
}

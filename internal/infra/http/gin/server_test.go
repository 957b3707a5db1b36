package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"peerrent/internal/app/dto"
	"peerrent/internal/app/engine"
	"peerrent/internal/domain/reservation"
	"peerrent/internal/domain/shared/clock"
	"peerrent/internal/domain/shared/money"
	"peerrent/internal/infra/config"
	"peerrent/internal/infra/locks"
	"peerrent/internal/infra/obs"
	"peerrent/internal/infra/payments/sandbox"
	"peerrent/internal/infra/storage/memory"
)

const (
	owner  = "owner-1"
	renter = "renter-1"
	secret = "whsec"
)

type ServerSuite struct {
	suite.Suite
	router *gin.Engine
	store  *memory.Store
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.store = memory.NewStore()
	eng, err := engine.New(engine.Deps{
		UoWFactory:  memory.Factory{Store: s.store},
		Items:       memory.NewItems(reservation.Item{ID: "drill", OwnerUID: owner, MinRentalDays: 2, DailyRate: money.Must(1500)}),
		Payments:    &sandbox.Gateway{RedirectBase: "https://pay.example/checkout"},
		Locks:       locks.NewLocal(),
		Outbox:      s.store,
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Clock:       clock.NewManual(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)),
	})
	s.Require().NoError(err)
	s.router = NewRouter(config.Config{}, obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Reservations: ReservationHandler{Commands: eng.Commands, Queries: eng.Queries},
		Availability: AvailabilityHandler{Queries: eng.Queries},
		Webhook:      WebhookHandler{Commands: eng.Commands, Secret: secret},
		Metrics:      obs.NewMetrics().Handler(),
	})
}

func (s *ServerSuite) do(method, path, user string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(userHeader, user)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *ServerSuite) webhook(payload map[string]any) *httptest.ResponseRecorder {
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(raw))
	req.Header.Set(signatureHeader, "sha256="+Sign(secret, raw))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *ServerSuite) createAccepted() string {
	rec := s.do(http.MethodPost, "/api/v1/reservations", renter, map[string]string{
		"item_id": "drill", "start_date": "2025-06-10", "end_date": "2025-06-15",
	}, nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var created dto.Reservation
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))

	rec = s.do(http.MethodPost, "/api/v1/reservations/"+created.ID+"/actions/accept", owner, nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	return created.ID
}

func (s *ServerSuite) TestHealthAndMetrics() {
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/livez", "", nil, nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/readyz", "", nil, nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/metrics", "", nil, nil).Code)
}

func (s *ServerSuite) TestCreateRequiresUser() {
	rec := s.do(http.MethodPost, "/api/v1/reservations", "", map[string]string{"item_id": "drill"}, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *ServerSuite) TestCreateBelowMinimumIsUnprocessable() {
	rec := s.do(http.MethodPost, "/api/v1/reservations", renter, map[string]string{
		"item_id": "drill", "start_date": "2025-03-01", "end_date": "2025-03-02",
	}, nil)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	var resp errorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(string(reservation.CodeBelowMinRentalDays), resp.Code)
}

func (s *ServerSuite) TestPaymentFlowAndBlockedDays() {
	id := s.createAccepted()

	rec := s.do(http.MethodPost, "/api/v1/reservations/"+id+"/payment", renter, nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var redirect dto.PaymentRedirect
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &redirect))
	s.Contains(redirect.RedirectURL, "reservation_id="+id)

	event := map[string]any{"type": "paid", "reservation_id": id, "gateway_event_id": "evt-1", "amount": 7500}
	rec = s.webhook(event)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.webhook(event)
	s.Require().Equal(http.StatusOK, rec.Code)
	var replay dto.ReconcileResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &replay))
	s.True(replay.Duplicate)

	rec = s.do(http.MethodGet, "/api/v1/items/drill/blocked-days", "", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var blocked dto.BlockedDays
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &blocked))
	s.Len(blocked.Days, 5)

	rec = s.do(http.MethodGet, "/api/v1/reservations/"+id, renter, nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var got dto.Reservation
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal("paid", got.Status)
	s.True(got.Permissions["cancel_with_refund"])
}

func (s *ServerSuite) TestWebhookRejectsBadSignature() {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader([]byte(`{"type":"paid"}`)))
	req.Header.Set(signatureHeader, "sha256=00")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *ServerSuite) TestConflictingPaymentIsConflict() {
	first := s.createAccepted()
	second := s.createAccepted()
	s.Require().Equal(http.StatusOK, s.webhook(map[string]any{"type": "paid", "reservation_id": first, "gateway_event_id": "evt-1"}).Code)

	rec := s.webhook(map[string]any{"type": "paid", "reservation_id": second, "gateway_event_id": "evt-2"})
	s.Equal(http.StatusConflict, rec.Code)
	var resp errorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(string(reservation.CodeRangeNoLongerFree), resp.Code)
}

func (s *ServerSuite) TestActionErrors() {
	id := s.createAccepted()

	rec := s.do(http.MethodPost, "/api/v1/reservations/"+id+"/actions/accept", owner, nil, nil)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/reservations/"+id+"/actions/fly", owner, nil, nil)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/reservations/missing/actions/accept", owner, nil, nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/reservations/"+id+"/permissions?role=renter&at=yesterday", "", nil, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestIdempotencyKeyReplaysCreate() {
	body := map[string]string{"item_id": "drill", "start_date": "2025-07-01", "end_date": "2025-07-03"}
	headers := map[string]string{idempotencyHeader: "create-1"}
	first := s.do(http.MethodPost, "/api/v1/reservations", renter, body, headers)
	second := s.do(http.MethodPost, "/api/v1/reservations", renter, body, headers)
	s.Require().Equal(http.StatusCreated, first.Code)
	s.Require().Equal(http.StatusCreated, second.Code)
	s.JSONEq(first.Body.String(), second.Body.String())

	rec := s.do(http.MethodGet, "/api/v1/items/drill/reservations", "", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var list struct {
		Reservations []dto.Reservation `json:"reservations"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	s.Len(list.Reservations, 1)
}

func (s *ServerSuite) TestStatusMapping() {
	status, _ := statusFor(context.Canceled)
	s.Equal(http.StatusServiceUnavailable, status)
}

func (s *ServerSuite) TestIdempotencyKeyReusedOnAnotherReservation() {
	create := func(start, end string) string {
		rec := s.do(http.MethodPost, "/api/v1/reservations", renter, map[string]string{
			"item_id": "drill", "start_date": start, "end_date": end,
		}, nil)
		s.Require().Equal(http.StatusCreated, rec.Code)
		var created dto.Reservation
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
		return created.ID
	}
	first := create("2025-08-01", "2025-08-03")
	second := create("2025-08-10", "2025-08-12")
	headers := map[string]string{idempotencyHeader: "act-1"}

	rec := s.do(http.MethodPost, "/api/v1/reservations/"+first+"/actions/accept", owner, nil, headers)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/reservations/"+second+"/actions/reject", owner, nil, headers)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.NotContains(rec.Body.String(), first)
}

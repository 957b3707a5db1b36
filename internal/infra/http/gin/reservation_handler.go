package ginserver

import (
	"fmt"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"peerrent/internal/app/commands"
	"peerrent/internal/app/dto"
	reservationsapp "peerrent/internal/app/handlers/reservations"
	"peerrent/internal/app/outcome"
	"peerrent/internal/app/queries"
)

const idempotencyHeader = "Idempotency-Key"

type ReservationHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type createReservationRequest struct {
	ReservationID string `json:"reservation_id"`
	ItemID        string `json:"item_id"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
}

type actionRequest struct {
	ReviewTarget string `json:"review_target"`
}

func (h ReservationHandler) Create(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := reservationsapp.CreateCommand{
		ReservationID:   req.ReservationID,
		ItemID:          req.ItemID,
		RenterUID:       uid,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	}
	result, err := commands.Dispatch[reservationsapp.CreateCommand, *dto.Reservation](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h ReservationHandler) Get(c *gin.Context) {
	viewer, _ := currentUser(c)
	q := reservationsapp.GetQuery{ReservationID: c.Param("id"), ViewerUID: viewer}
	result, err := queries.Ask[reservationsapp.GetQuery, dto.Reservation](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReservationHandler) Permissions(c *gin.Context) {
	at, err := parseAt(c.Query("at"))
	if err != nil {
		writeError(c, err)
		return
	}
	q := reservationsapp.PermissionsQuery{ReservationID: c.Param("id"), Role: c.Query("role"), At: at}
	result, err := queries.Ask[reservationsapp.PermissionsQuery, dto.Permissions](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Act runs one user action such as accept or cancel_with_refund on the reservation.
func (h ReservationHandler) Act(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req actionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	cmd := reservationsapp.TransitionCommand{
		ReservationID:   c.Param("id"),
		Action:          c.Param("action"),
		ActorUID:        uid,
		ReviewTarget:    req.ReviewTarget,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	}
	result, err := commands.Dispatch[reservationsapp.TransitionCommand, *dto.TransitionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReservationHandler) RequestPayment(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	cmd := reservationsapp.RequestPaymentCommand{
		ReservationID:   c.Param("id"),
		ActorUID:        uid,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	}
	result, err := commands.Dispatch[reservationsapp.RequestPaymentCommand, *dto.PaymentRedirect](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseAt(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: at must be RFC3339", outcome.ErrInvalidInput)
	}
	return t, nil
}

var _ ReservationHTTP = ReservationHandler{}

package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"peerrent/internal/app/dto"
	availabilityapp "peerrent/internal/app/handlers/availability"
	reservationsapp "peerrent/internal/app/handlers/reservations"
	"peerrent/internal/app/queries"
)

type AvailabilityHandler struct {
	Queries queries.Bus
}

func (h AvailabilityHandler) BlockedDays(c *gin.Context) {
	query := availabilityapp.BlockedDaysQuery{ItemID: c.Param("id")}
	result, err := queries.Ask[availabilityapp.BlockedDaysQuery, dto.BlockedDays](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) ItemReservations(c *gin.Context) {
	query := reservationsapp.ListByItemQuery{ItemID: c.Param("id")}
	result, err := queries.Ask[reservationsapp.ListByItemQuery, []dto.Reservation](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_id": query.ItemID, "reservations": result})
}

var _ AvailabilityHTTP = AvailabilityHandler{}

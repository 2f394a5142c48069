package booking

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sportclub/internal/domain/member"
	"sportclub/internal/domain/schedule"
	"sportclub/internal/pkg/caltime"
	"sportclub/internal/pkg/response"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes mounts member routes on rg and staff routes on staff. The
// caller attaches authentication and role guards.
func (h *Handler) RegisterRoutes(rg, staff *gin.RouterGroup, limit gin.HandlerFunc) {
	rg.GET("/availability", h.Availability)
	rg.GET("/bookings/me", h.ListMine)
	rg.POST("/bookings", limit, h.Create)
	rg.GET("/bookings/:id/can-cancel", h.CanCancel)
	rg.POST("/bookings/:id/cancel", limit, h.Cancel)

	staff.POST("/bookings/:id/force-cancel", h.ForceCancel)
	staff.POST("/bookings/:id/attendance", h.MarkAttendance)
	staff.GET("/occurrences/:ref/bookings", h.OccurrenceBookings)
	staff.POST("/schedule/overrides", h.CreateOverride)
	staff.DELETE("/schedule/overrides/:classId/:date", h.DeleteOverride)
	staff.POST("/schedule/classes/:id/disable", h.DisableClass)
	staff.PATCH("/schedule/classes/:id/active", h.ToggleClass)
	staff.DELETE("/schedule/one-offs/:id", h.DeleteOneOff)
}

func actorFrom(c *gin.Context) Actor {
	return Actor{UserID: c.GetInt64("user_id"), Role: member.Role(c.GetString("role"))}
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return 0, false
	}
	return id, true
}

func bindError(c *gin.Context, err error) {
	response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ref, err := schedule.ParseOccurrenceRef(req.OccurrenceRef)
	if err != nil {
		bindError(c, err)
		return
	}

	conf, err := h.engine.CreateReservation(c.Request.Context(), c.GetInt64("user_id"), req.Date, ref)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, conf)
}

func (h *Handler) CanCancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	check, err := h.engine.CanCancel(c.Request.Context(), id, c.GetInt64("user_id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, check)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	conf, err := h.engine.CancelReservation(c.Request.Context(), id, c.GetInt64("user_id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, conf)
}

func (h *Handler) ForceCancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ForceCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	conf, err := h.engine.ForceCancelReservation(c.Request.Context(), id, actorFrom(c), req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, conf)
}

func (h *Handler) MarkAttendance(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	b, err := h.engine.MarkAttendance(c.Request.Context(), id, *req.Attended, actorFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) Availability(c *gin.Context) {
	date := c.DefaultQuery("date", h.engine.today())
	items, err := h.engine.Availability(c.Request.Context(), date, c.GetInt64("user_id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"date": date, "occurrences": items})
}

func (h *Handler) ListMine(c *gin.Context) {
	today := h.engine.today()
	defaultFrom, _ := caltime.AddDays(today, -30)
	defaultTo, _ := caltime.AddDays(today, 14)
	from := c.DefaultQuery("from", defaultFrom)
	to := c.DefaultQuery("to", defaultTo)

	list, err := h.engine.ListMyBookings(c.Request.Context(), c.GetInt64("user_id"), from, to)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": list})
}

func (h *Handler) OccurrenceBookings(c *gin.Context) {
	ref, err := schedule.ParseOccurrenceRef(c.Param("ref"))
	if err != nil {
		bindError(c, err)
		return
	}
	list, err := h.engine.ListOccurrenceBookings(c.Request.Context(), actorFrom(c), c.Query("date"), ref)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": list})
}

func (h *Handler) CreateOverride(c *gin.Context) {
	var req DateOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.engine.CreateDateOverride(c.Request.Context(), actorFrom(c), OverrideInput{
		RecurringClassID:        req.RecurringClassID,
		Date:                    req.Date,
		StartTime:               req.StartTime,
		EndTime:                 req.EndTime,
		Instructor:              req.Instructor,
		MaxCapacity:             req.MaxCapacity,
		IsCancelled:             req.IsCancelled,
		MigrateExistingBookings: req.MigrateExistingBookings,
		Notes:                   req.Notes,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) DeleteOverride(c *gin.Context) {
	classID, ok := paramID(c, "classId")
	if !ok {
		return
	}
	if err := h.engine.DeleteDateOverride(c.Request.Context(), actorFrom(c), classID, c.Param("date")); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) DisableClass(c *gin.Context) {
	classID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req DisableClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.engine.DisableClass(c.Request.Context(), actorFrom(c), classID, req.Date, req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) ToggleClass(c *gin.Context) {
	classID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ToggleClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	class, released, err := h.engine.ToggleRecurringClass(c.Request.Context(), actorFrom(c), classID, *req.Active)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"class": class, "released_bookings": released})
}

func (h *Handler) DeleteOneOff(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	released, err := h.engine.DeleteOneOffOccurrence(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true, "released_bookings": released})
}

package schedule

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sportclub/internal/domain/member"
	"sportclub/internal/pkg/caltime"
	"sportclub/internal/pkg/response"
)

type Handler struct {
	service  *Service
	location *time.Location
}

func NewHandler(service *Service, location *time.Location) *Handler {
	return &Handler{service: service, location: location}
}

func (h *Handler) RegisterRoutes(rg, staff *gin.RouterGroup) {
	rg.GET("/schedule", h.Resolve)
	rg.GET("/schedule/range", h.ResolveRange)
	rg.GET("/schedule/classes", h.ListClasses)

	staff.POST("/schedule/classes", h.CreateClass)
	staff.POST("/schedule/classes/:id/instructor", h.SetInstructor)
	staff.GET("/schedule/one-offs", h.ListOneOffs)
	staff.POST("/schedule/one-offs", h.CreateOneOff)
	staff.GET("/schedule/overrides", h.ListOverrides)
}

func actorFrom(c *gin.Context) member.Actor {
	return member.Actor{UserID: c.GetInt64("user_id"), Role: member.Role(c.GetString("role"))}
}

func (h *Handler) today() string {
	return caltime.FormatDate(time.Now().In(h.location))
}

func (h *Handler) Resolve(c *gin.Context) {
	date := c.DefaultQuery("date", h.today())
	occs, err := h.service.ResolveSchedule(c.Request.Context(), date)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"date": date, "occurrences": occs})
}

func (h *Handler) ResolveRange(c *gin.Context) {
	start, end := c.Query("start"), c.Query("end")
	occs, err := h.service.ResolveScheduleRange(c.Request.Context(), start, end)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"start": start, "end": end, "occurrences": occs})
}

func (h *Handler) ListClasses(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true" && member.Role(c.GetString("role")).IsStaff()
	classes, err := h.service.ListRecurringClasses(c.Request.Context(), includeInactive)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"classes": classes})
}

func (h *Handler) CreateClass(c *gin.Context) {
	var req CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	class, err := h.service.CreateRecurringClass(c.Request.Context(), actorFrom(c), ClassInput{
		Title:       req.Title,
		Instructor:  req.Instructor,
		DayOfWeek:   *req.DayOfWeek,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		MaxCapacity: req.MaxCapacity,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"class": class})
}

func (h *Handler) SetInstructor(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid class ID")
		return
	}
	var req InstructorAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	a, err := h.service.SetInstructorAssignment(c.Request.Context(), actorFrom(c), id, req.Date, req.Instructor)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"assignment": a})
}

func (h *Handler) ListOneOffs(c *gin.Context) {
	from := c.DefaultQuery("from", h.today())
	to := c.DefaultQuery("to", from)
	list, err := h.service.ListOneOffs(c.Request.Context(), from, to)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"one_offs": list})
}

func (h *Handler) CreateOneOff(c *gin.Context) {
	var req CreateOneOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	o, err := h.service.CreateOneOffOccurrence(c.Request.Context(), actorFrom(c), OneOffInput{
		Title:       req.Title,
		Instructor:  req.Instructor,
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		MaxCapacity: req.MaxCapacity,
		Notes:       req.Notes,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"one_off": o})
}

func (h *Handler) ListOverrides(c *gin.Context) {
	from := c.DefaultQuery("from", h.today())
	to := c.DefaultQuery("to", from)
	list, err := h.service.ListDateOverrides(c.Request.Context(), from, to)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"overrides": list})
}

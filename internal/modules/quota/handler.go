package quota

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sportclub/internal/domain/member"
	"sportclub/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg, admin *gin.RouterGroup) {
	rg.GET("/quota/me", h.Mine)
	rg.GET("/quota/entries", h.Entries)

	admin.POST("/quota/:userId/adjust", h.Adjust)
	admin.PUT("/quota/:userId", h.Reset)
	admin.POST("/rollover", h.Rollover)
}

type AdjustRequest struct {
	Delta int    `json:"delta" binding:"required"`
	Note  string `json:"note" binding:"max=500"`
}

type ResetRequest struct {
	Remaining *int `json:"remaining_classes" binding:"required,gte=0"`
	Max       *int `json:"max_monthly_classes" binding:"required,gte=0"`
}

func actorFrom(c *gin.Context) member.Actor {
	return member.Actor{UserID: c.GetInt64("user_id"), Role: member.Role(c.GetString("role"))}
}

func (h *Handler) Mine(c *gin.Context) {
	q, err := h.service.GetOrCreateMonthlyQuota(c.Request.Context(), c.GetInt64("user_id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quota": q})
}

func (h *Handler) Entries(c *gin.Context) {
	actor := actorFrom(c)
	userID := actor.UserID
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid user_id")
			return
		}
		userID = id
	}
	p := h.service.CurrentPeriod()
	if v := c.Query("month"); v != "" {
		p.Month, _ = strconv.Atoi(v)
	}
	if v := c.Query("year"); v != "" {
		p.Year, _ = strconv.Atoi(v)
	}

	entries, err := h.service.ListEntries(c.Request.Context(), actor, userID, p)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"period": p, "entries": entries})
}

func userParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) Adjust(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	q, err := h.service.AdjustMonthlyQuota(c.Request.Context(), actorFrom(c), userID, req.Delta, req.Note)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quota": q})
}

func (h *Handler) Reset(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	q, err := h.service.ResetMonthlyQuota(c.Request.Context(), actorFrom(c), userID, *req.Remaining, *req.Max)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quota": q})
}

func (h *Handler) Rollover(c *gin.Context) {
	res, err := h.service.AdvanceAllToNextMonth(c.Request.Context(), c.GetInt64("user_id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

package member

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	memberdomain "sportclub/internal/domain/member"
	"sportclub/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/members/pending", h.ListPending)
	admin.POST("/members/:id/approve", h.Approve)
	admin.POST("/members/:id/block", h.Block)
	admin.GET("/audit", h.ListAudit)
}

type BlockRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

func actorFrom(c *gin.Context) memberdomain.Actor {
	return memberdomain.Actor{UserID: c.GetInt64("user_id"), Role: memberdomain.Role(c.GetString("role"))}
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid member ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) ListPending(c *gin.Context) {
	members, err := h.service.ListPending(c.Request.Context(), actorFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"members": members})
}

func (h *Handler) Approve(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	m, err := h.service.Approve(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"member": m})
}

func (h *Handler) Block(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	m, err := h.service.Block(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"member": m})
}

func (h *Handler) ListAudit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := h.service.ListAudit(c.Request.Context(), actorFrom(c), c.Query("action"), limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"entries": entries})
}

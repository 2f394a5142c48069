package auth

import (
	"errors"
	"net/http"

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

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	protected.GET("/members/me", h.Me)
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	m, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			response.Error(c, http.StatusConflict, "EMAIL_EXISTS", "This email is already registered")
			return
		}
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"member": toPublic(m)})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	case errors.Is(err, ErrPendingApproval):
		response.Error(c, http.StatusForbidden, "PENDING_APPROVAL", "Membership is waiting for approval")
		return
	case errors.Is(err, ErrBlocked):
		response.Error(c, http.StatusForbidden, "ACCOUNT_BLOCKED", "Membership is blocked")
		return
	default:
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"member": toPublic(res.Member),
		"tokens": gin.H{"access_token": res.AccessToken},
	})
}

func (h *Handler) Me(c *gin.Context) {
	m, err := h.service.Me(c.Request.Context(), c.GetInt64("user_id"))
	if err != nil {
		if errors.Is(err, member.ErrNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Member not found")
			return
		}
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"member": toPublic(m)})
}

package roster

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sportclub/internal/domain/member"
	"sportclub/internal/pkg/caltime"
	"sportclub/internal/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	service  *Service
	location *time.Location
}

func NewHandler(service *Service, location *time.Location) *Handler {
	return &Handler{service: service, location: location}
}

func (h *Handler) RegisterRoutes(staff *gin.RouterGroup) {
	staff.GET("/roster", h.Get)
	staff.GET("/roster/export", h.Export)
}

func actorFrom(c *gin.Context) member.Actor {
	return member.Actor{UserID: c.GetInt64("user_id"), Role: member.Role(c.GetString("role"))}
}

func (h *Handler) date(c *gin.Context) string {
	return c.DefaultQuery("date", caltime.FormatDate(time.Now().In(h.location)))
}

func (h *Handler) Get(c *gin.Context) {
	r, err := h.service.Build(c.Request.Context(), actorFrom(c), h.date(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, r)
}

func (h *Handler) Export(c *gin.Context) {
	date := h.date(c)
	data, err := h.service.ExportXLSX(c.Request.Context(), actorFrom(c), date)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="roster-`+date+`.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

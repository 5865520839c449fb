package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/workhive/service-booking/internal/application"
	"github.com/workhive/service-booking/internal/pkg/auth"
	"github.com/workhive/service-booking/internal/pkg/middleware"
	"github.com/workhive/service-booking/internal/pkg/response"
)

// AdminHandler exposes operational read endpoints for back-office tooling.
type AdminHandler struct {
	service *application.BookingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service *application.BookingService) *AdminHandler {
	return &AdminHandler{service: service}
}

// RegisterRoutes registers the admin routes on the given router group.
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup, jwtManager *auth.JWTManager) {
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/stats/bookings", h.GetBookingStats)
	}
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminHandler) ListBookings(c *gin.Context) {
	page, limit := parsePagination(c)

	bookings, total, err := h.service.ListAllBookings(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, bookings, total, page, limit)
}

// GetBookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminHandler) GetBookingStats(c *gin.Context) {
	stats, err := h.service.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/workhive/service-booking/internal/application"
	"github.com/workhive/service-booking/internal/pkg/auth"
	"github.com/workhive/service-booking/internal/pkg/middleware"
	"github.com/workhive/service-booking/internal/pkg/response"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// BookingHandler exposes the booking lifecycle over HTTP.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers the booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(rg *gin.RouterGroup, jwtManager *auth.JWTManager) {
	bookings := rg.Group("/bookings")
	bookings.Use(middleware.AuthMiddleware(jwtManager))
	{
		bookings.POST("", middleware.RequireRole(auth.RoleUser), h.CreateBooking)
		bookings.GET("", middleware.RequireRole(auth.RoleUser), h.GetUserBookings)
		bookings.GET("/host", middleware.RequireRole(auth.RoleHost), h.GetHostBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.PATCH("/:id/status", middleware.RequireRole(auth.RoleHost), h.UpdateStatus)
		bookings.POST("/:id/cancel", middleware.RequireRole(auth.RoleUser), h.CancelBooking)
		bookings.POST("/:id/reschedule", middleware.RequireRole(auth.RoleUser), h.RescheduleBooking)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.BadRequest(c, "missing authentication")
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.CreateBooking(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.BadRequest(c, "missing authentication")
		return
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking id")
		return
	}

	dto, err := h.service.GetBooking(c.Request.Context(), userID, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// GetUserBookings handles GET /api/v1/bookings.
func (h *BookingHandler) GetUserBookings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.BadRequest(c, "missing authentication")
		return
	}
	page, limit := parsePagination(c)

	result, err := h.service.GetUserBookings(c.Request.Context(), userID, c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetHostBookings handles GET /api/v1/bookings/host.
func (h *BookingHandler) GetHostBookings(c *gin.Context) {
	hostID, ok := middleware.GetUserID(c)
	if !ok {
		response.BadRequest(c, "missing authentication")
		return
	}
	page, limit := parsePagination(c)

	result, err := h.service.GetHostBookings(c.Request.Context(), hostID, c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// UpdateStatusRequest is the body of PATCH /api/v1/bookings/:id/status.
type UpdateStatusRequest struct {
	Status             string `json:"status" binding:"required"`
	Notes              string `json:"notes"`
	CancellationReason string `json:"cancellation_reason"`
}

// UpdateStatus handles PATCH /api/v1/bookings/:id/status.
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	hostID, ok := middleware.GetUserID(c)
	if !ok {
		response.BadRequest(c, "missing authentication")
		return
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking id")
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.UpdateStatus(c.Request.Context(), hostID, bookingID, req.Status, req.Notes, req.CancellationReason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.BadRequest(c, "missing authentication")
		return
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking id")
		return
	}

	dto, refund, err := h.service.CancelBooking(c.Request.Context(), userID, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"booking": dto, "refund": refund})
}

// RescheduleRequest is the body of POST /api/v1/bookings/:id/reschedule.
type RescheduleRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
	Reason    string    `json:"reason"`
}

// RescheduleBooking handles POST /api/v1/bookings/:id/reschedule.
func (h *BookingHandler) RescheduleBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.BadRequest(c, "missing authentication")
		return
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking id")
		return
	}

	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.RescheduleBooking(c.Request.Context(), userID, bookingID, req.StartTime, req.EndTime, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

func parsePagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

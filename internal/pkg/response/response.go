package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/workhive/service-booking/internal/pkg/domain"
)

// Success writes a 200 response with the data payload.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// Created writes a 201 response with the data payload.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"data": data})
}

// Paginated writes a 200 response with items and pagination metadata.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"data": items,
		"pagination": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// BadRequest writes a 400 response with the given message.
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// Error maps a domain error to its HTTP status. Unclassified errors become
// an opaque 500.
func Error(c *gin.Context, err error) {
	switch domain.CodeOf(err) {
	case domain.CodeValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case domain.CodeConflict:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case domain.CodeNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case domain.CodeForbidden:
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case domain.CodeUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/courier-service/courier_service/internal/domain/entities"
	domainerrors "github.com/courier-service/courier_service/internal/domain/errors"
)

// SendSuccess sends a 200 response with the payload under "data"
func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// SendAccepted sends a 202 response for work that continues in the background
func SendAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, gin.H{"data": data})
}

// respondError sends a standardized error response
func respondError(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.JSON(status, entities.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// respondDomainError maps a domain error to its HTTP status
func respondDomainError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case domainerrors.IsInvalidInput(err):
		status = http.StatusBadRequest
	case domainerrors.IsNotFound(err):
		status = http.StatusNotFound
	case domainerrors.IsConflict(err):
		status = http.StatusConflict
	case domainerrors.IsServiceUnavailable(err):
		status = http.StatusServiceUnavailable
	}
	respondError(c, status, domainerrors.GetErrorCode(err), err.Error(), domainerrors.GetErrorDetails(err))
}

// parsePagination reads limit/offset query params with bounds
func parsePagination(c *gin.Context, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v, err := strconv.Atoi(c.DefaultQuery("offset", "")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

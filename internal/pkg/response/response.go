package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chainguard/api/internal/pkg/apperror"
)

// requestIDKey matches the context key written by middleware.RequestID.
const requestIDKey = "request_id"

// Success sends a successful JSON response
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 Created response
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends a 204 No Content response
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an RFC 7807 error response
func Error(c *gin.Context, err *apperror.AppError) {
	if err.RequestID == "" {
		if id := c.GetString(requestIDKey); id != "" {
			err.RequestID = id
		}
	}
	if err.Instance == "" && c.Request != nil {
		err.Instance = c.Request.URL.Path
	}
	c.Header("Content-Type", "application/problem+json")
	c.JSON(err.Status, err)
}

// ErrorFromErr converts a standard error to AppError and sends response
func ErrorFromErr(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		Error(c, appErr)
		return
	}
	Error(c, apperror.InternalError(
		"Unexpected server error",
		"Try again later",
	).WithError(err))
}

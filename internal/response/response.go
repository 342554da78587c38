// Package response writes the service's JSON envelopes.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    *Pagination `json:"meta,omitempty"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// Success writes 200 with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes 201 with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Paginated writes 200 with a page of data.
func Paginated(c *gin.Context, data interface{}, total int64, page, limit int) {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    data,
		Meta:    &Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages},
	})
}

// BadRequest writes 400 with message.
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, message)
}

// Fail writes status with message.
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Error: message})
}

package handler

import (
	"github.com/bytesize-travel/service-curation/internal/application"
	"github.com/bytesize-travel/service-curation/internal/auth"
	"github.com/bytesize-travel/service-curation/internal/contracts"
	"github.com/bytesize-travel/service-curation/internal/middleware"
	"github.com/bytesize-travel/service-curation/internal/response"
	"github.com/gin-gonic/gin"
)

// ContentHandler handles ingestion of enriched content.
type ContentHandler struct {
	service *application.ContentService
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(service *application.ContentService) *ContentHandler {
	return &ContentHandler{service: service}
}

// RegisterRoutes registers content routes.
func (h *ContentHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	items := r.Group("/content")
	items.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleEditor, auth.RoleAdmin))
	{
		items.POST("", h.Ingest)
	}
}

// Ingest handles POST /api/v1/content
func (h *ContentHandler) Ingest(c *gin.Context) {
	var req contracts.EnrichedContent
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.Ingest(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, dto)
}

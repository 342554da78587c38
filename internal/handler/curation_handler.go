package handler

import (
	"github.com/bytesize-travel/service-curation/internal/application"
	"github.com/bytesize-travel/service-curation/internal/auth"
	"github.com/bytesize-travel/service-curation/internal/middleware"
	"github.com/bytesize-travel/service-curation/internal/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CurationHandler handles HTTP requests for selection runs and usage.
type CurationHandler struct {
	service    *application.CurationService
	jwtManager *auth.JWTManager
}

// NewCurationHandler creates a new CurationHandler.
func NewCurationHandler(service *application.CurationService, jwtManager *auth.JWTManager) *CurationHandler {
	return &CurationHandler{service: service, jwtManager: jwtManager}
}

// RegisterRoutes registers all curation routes on the given router group.
func (h *CurationHandler) RegisterRoutes(r *gin.RouterGroup) {
	authMW := middleware.AuthMiddleware(h.jwtManager)
	editor := middleware.RequireRole(auth.RoleEditor, auth.RoleAdmin)

	r.POST("/bundles", h.SelectBundle)
	r.POST("/usage", authMW, editor, h.RecordUsage)
	r.GET("/runs/:id", h.GetRun)
}

// SelectBundle handles POST /api/v1/bundles. Previews are public; a publish
// run needs an editor token.
func (h *CurationHandler) SelectBundle(c *gin.Context) {
	var req application.SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if !req.Preview && !middleware.Authorize(c, h.jwtManager, auth.RoleEditor, auth.RoleAdmin) {
		return
	}

	dto, err := h.service.SelectBundle(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	if dto.RunID != nil {
		response.Created(c, dto)
		return
	}
	response.Success(c, dto)
}

// RecordUsage handles POST /api/v1/usage
func (h *CurationHandler) RecordUsage(c *gin.Context) {
	var req struct {
		IDs []uuid.UUID `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.RecordUsage(c.Request.Context(), req.IDs)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, dto)
}

// GetRun handles GET /api/v1/runs/:id
func (h *CurationHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid run ID")
		return
	}

	dto, err := h.service.GetRun(c.Request.Context(), runID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, dto)
}

package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bytesize-travel/service-curation/internal/application"
	"github.com/bytesize-travel/service-curation/internal/auth"
	"github.com/bytesize-travel/service-curation/internal/middleware"
	"github.com/bytesize-travel/service-curation/internal/response"
)

// AdminCurationHandler handles admin HTTP requests for content-pool management.
type AdminCurationHandler struct {
	curationService *application.CurationService
	contentService  *application.ContentService
}

// NewAdminCurationHandler creates a new AdminCurationHandler.
func NewAdminCurationHandler(curationService *application.CurationService, contentService *application.ContentService) *AdminCurationHandler {
	return &AdminCurationHandler{
		curationService: curationService,
		contentService:  contentService,
	}
}

// RegisterRoutes registers admin routes.
func (h *AdminCurationHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/content", h.ListContent)
		admin.GET("/stats/content", h.ContentStats)
	}
}

// ListContent handles GET /api/v1/admin/content.
func (h *AdminCurationHandler) ListContent(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	items, total, err := h.contentService.ListContent(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Paginated(c, items, total, page, limit)
}

// ContentStats handles GET /api/v1/admin/stats/content.
func (h *AdminCurationHandler) ContentStats(c *gin.Context) {
	stats, err := h.curationService.PoolStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, stats)
}

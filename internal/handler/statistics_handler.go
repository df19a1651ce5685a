package handler

import (
	"net/http"

	"contractflow/internal/middleware"
	"contractflow/internal/service"
	"contractflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	stats := router.Group("/api/statistics")
	{
		stats.GET("/contracts", middleware.RequireAuth(), h.GetContractStatistics)
	}
}

// GetContractStatistics returns portfolio aggregates for dashboards
// @Summary      Contract statistics
// @Tags         statistics
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/statistics/contracts [get]
func (h *StatisticsHandler) GetContractStatistics(c *gin.Context) {
	stats, err := h.statisticsService.GetContractStatistics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

package handler

import (
	"net/http"

	"contractflow/internal/middleware"
	"contractflow/internal/model"
	"contractflow/internal/service"
	"contractflow/pkg/pagination"
	"contractflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type TeamHandler struct {
	teamService service.TeamService
}

func NewTeamHandler(teamService service.TeamService) *TeamHandler {
	return &TeamHandler{teamService: teamService}
}

func (h *TeamHandler) RegisterRoutes(router *gin.RouterGroup) {
	teams := router.Group("/api/approval-teams")
	{
		teams.GET("", middleware.RequireAuth(), h.ListTeams)
		teams.GET("/:id", middleware.RequireAuth(), h.GetTeam)
		teams.POST("", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.CreateTeam)
		teams.PUT("/:id", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.UpdateTeam)
		teams.DELETE("/:id", middleware.RequireRole(model.RoleAdmin), h.DeleteTeam)
		teams.POST("/:id/bands", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.AddBand)
		teams.DELETE("/:id/bands/:userId", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.RemoveBand)
	}
}

// ListTeams returns paginated approval teams
// @Summary      List approval teams
// @Tags         approval-teams
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default: 1)"
// @Param        limit  query     int  false  "Items per page (default: 20)"
// @Success      200    {object}  response.Response
// @Router       /api/approval-teams [get]
func (h *TeamHandler) ListTeams(c *gin.Context) {
	params := pagination.Parse(c)

	teams, total, err := h.teamService.ListTeams(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, teams, params.Page, params.Limit, total))
}

// GetTeam returns one approval team with its bands
// @Summary      Get approval team
// @Tags         approval-teams
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Team ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/approval-teams/{id} [get]
func (h *TeamHandler) GetTeam(c *gin.Context) {
	team, err := h.teamService.GetTeam(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, team))
}

// CreateTeam creates an approval team with its initial band set
// @Summary      Create approval team
// @Tags         approval-teams
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        team  body      service.CreateTeamRequest  true  "Team payload"
// @Success      201   {object}  response.Response
// @Failure      400   {object}  response.Response
// @Router       /api/approval-teams [post]
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	var req service.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	team, err := h.teamService.CreateTeam(c.Request.Context(), actorID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, team))
}

// UpdateTeam updates team fields and optionally replaces the band set
// @Summary      Update approval team
// @Tags         approval-teams
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      string                     true  "Team ID"
// @Param        team  body      service.UpdateTeamRequest  true  "Fields to update"
// @Success      200   {object}  response.Response
// @Router       /api/approval-teams/{id} [put]
func (h *TeamHandler) UpdateTeam(c *gin.Context) {
	var req service.UpdateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	team, err := h.teamService.UpdateTeam(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, team))
}

// AddBand grants one user an approval band on the team
// @Summary      Add approver band
// @Tags         approval-teams
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      string               true  "Team ID"
// @Param        band  body      service.BandPayload  true  "Band payload"
// @Success      200   {object}  response.Response
// @Router       /api/approval-teams/{id}/bands [post]
func (h *TeamHandler) AddBand(c *gin.Context) {
	var band service.BandPayload
	if err := c.ShouldBindJSON(&band); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	team, err := h.teamService.AddBand(c.Request.Context(), actorID(c), c.Param("id"), band)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, team))
}

// RemoveBand revokes a user's approval band
// @Summary      Remove approver band
// @Tags         approval-teams
// @Security     BearerAuth
// @Produce      json
// @Param        id      path      string  true  "Team ID"
// @Param        userId  path      string  true  "User ID"
// @Success      200     {object}  response.Response
// @Router       /api/approval-teams/{id}/bands/{userId} [delete]
func (h *TeamHandler) RemoveBand(c *gin.Context) {
	team, err := h.teamService.RemoveBand(c.Request.Context(), actorID(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, team))
}

// DeleteTeam removes a team that no contract references
// @Summary      Delete approval team
// @Tags         approval-teams
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Team ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/approval-teams/{id} [delete]
func (h *TeamHandler) DeleteTeam(c *gin.Context) {
	if err := h.teamService.DeleteTeam(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}

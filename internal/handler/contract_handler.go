package handler

import (
	"net/http"

	"contractflow/internal/middleware"
	"contractflow/internal/model"
	"contractflow/internal/repository"
	"contractflow/internal/service"
	"contractflow/pkg/pagination"
	"contractflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ContractHandler struct {
	contractService service.ContractService
}

func NewContractHandler(contractService service.ContractService) *ContractHandler {
	return &ContractHandler{contractService: contractService}
}

func (h *ContractHandler) RegisterRoutes(router *gin.RouterGroup) {
	contracts := router.Group("/api/contracts")
	{
		contracts.GET("", middleware.RequireAuth(), h.ListContracts)
		contracts.GET("/:id", middleware.RequireAuth(), h.GetContract)
		contracts.POST("", middleware.RequireAuth(), h.CreateContract)
		contracts.PUT("/:id", middleware.RequireAuth(), h.UpdateContract)
		contracts.PUT("/:id/submit", middleware.RequireAuth(), h.SubmitForApproval)
		contracts.PUT("/:id/approve", middleware.RequireAuth(), h.ApproveContract)
		contracts.PUT("/:id/reject", middleware.RequireAuth(), h.RejectContract)
		contracts.PUT("/:id/reset", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.ResetContract)
		contracts.PUT("/:id/close", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.CloseContract)
	}
}

// ListContracts returns paginated contracts with optional state/partner/search filters
// @Summary      List contracts
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        page            query     int     false  "Page number (default: 1)"
// @Param        limit           query     int     false  "Items per page (default: 20)"
// @Param        approval_state  query     string  false  "Filter by state: DRAFT, PENDING, APPROVED, REJECTED"
// @Param        partner_id      query     string  false  "Filter by partner"
// @Param        search          query     string  false  "Search by reference or title"
// @Success      200             {object}  response.Response
// @Router       /api/contracts [get]
func (h *ContractHandler) ListContracts(c *gin.Context) {
	params := pagination.Parse(c)

	filter := repository.ContractFilter{
		ApprovalState: c.Query("approval_state"),
		Search:        c.Query("search"),
		Page:          params.Page,
		Limit:         params.Limit,
	}
	if raw := c.Query("partner_id"); raw != "" {
		if partnerID, err := uuid.Parse(raw); err == nil {
			filter.PartnerID = &partnerID
		}
	}

	contracts, total, err := h.contractService.ListContracts(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, contracts, params.Page, params.Limit, total))
}

// GetContract returns one contract with its derived balance
// @Summary      Get contract
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Contract ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/contracts/{id} [get]
func (h *ContractHandler) GetContract(c *gin.Context) {
	contract, err := h.contractService.GetContract(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, contract))
}

// CreateContract creates a draft contract
// @Summary      Create contract
// @Tags         contracts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        contract  body      service.CreateContractRequest  true  "Contract payload"
// @Success      201       {object}  response.Response
// @Failure      400       {object}  response.Response
// @Router       /api/contracts [post]
func (h *ContractHandler) CreateContract(c *gin.Context) {
	var req service.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	contract, err := h.contractService.CreateContract(c.Request.Context(), actorID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, contract))
}

// UpdateContract updates contract fields
// @Summary      Update contract
// @Tags         contracts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id        path      string                         true  "Contract ID"
// @Param        contract  body      service.UpdateContractRequest  true  "Fields to update"
// @Success      200       {object}  response.Response
// @Router       /api/contracts/{id} [put]
func (h *ContractHandler) UpdateContract(c *gin.Context) {
	var req service.UpdateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	contract, err := h.contractService.UpdateContract(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, contract))
}

// SubmitForApproval moves a contract into the approval queue
// @Summary      Submit contract for approval
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Contract ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/contracts/{id}/submit [put]
func (h *ContractHandler) SubmitForApproval(c *gin.Context) {
	contract, err := h.contractService.SubmitForApproval(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, contract))
}

// ApproveContract approves a contract as the acting user
// @Summary      Approve contract
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Contract ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/contracts/{id}/approve [put]
func (h *ContractHandler) ApproveContract(c *gin.Context) {
	contract, err := h.contractService.Approve(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, contract))
}

// RejectContract rejects a contract with an optional reason
// @Summary      Reject contract
// @Tags         contracts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id      path      string                         true   "Contract ID"
// @Param        reason  body      service.RejectContractRequest  false  "Rejection reason"
// @Success      200     {object}  response.Response
// @Failure      409     {object}  response.Response
// @Router       /api/contracts/{id}/reject [put]
func (h *ContractHandler) RejectContract(c *gin.Context) {
	var req service.RejectContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Allow empty body — reason is optional
		req.Reason = ""
	}

	contract, err := h.contractService.Reject(c.Request.Context(), actorID(c), c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, contract))
}

// ResetContract clears the approval metadata and returns the contract to draft
// @Summary      Reset contract to draft
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Contract ID"
// @Success      200  {object}  response.Response
// @Router       /api/contracts/{id}/reset [put]
func (h *ContractHandler) ResetContract(c *gin.Context) {
	contract, err := h.contractService.ResetToDraft(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, contract))
}

// CloseContract stops further order confirmations against the contract
// @Summary      Close contract
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Contract ID"
// @Success      200  {object}  response.Response
// @Router       /api/contracts/{id}/close [put]
func (h *ContractHandler) CloseContract(c *gin.Context) {
	contract, err := h.contractService.Close(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, contract))
}

package handler

import (
	"net/http"

	"contractflow/internal/middleware"
	"contractflow/internal/repository"
	"contractflow/internal/service"
	"contractflow/pkg/pagination"
	"contractflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	orders := router.Group("/api/sale-orders")
	{
		orders.GET("", middleware.RequireAuth(), h.ListOrders)
		orders.GET("/:id", middleware.RequireAuth(), h.GetOrder)
		orders.POST("", middleware.RequireAuth(), h.CreateOrder)
		orders.PUT("/:id", middleware.RequireAuth(), h.UpdateOrder)
		orders.PUT("/:id/confirm", middleware.RequireAuth(), h.ConfirmOrder)
		orders.PUT("/:id/cancel", middleware.RequireAuth(), h.CancelOrder)
	}
}

// ListOrders returns paginated sale orders with optional filters
// @Summary      List sale orders
// @Tags         sale-orders
// @Security     BearerAuth
// @Produce      json
// @Param        page         query     int     false  "Page number (default: 1)"
// @Param        limit        query     int     false  "Items per page (default: 20)"
// @Param        status       query     string  false  "Filter by status: DRAFT, CONFIRMED, DONE, CANCELLED"
// @Param        contract_id  query     string  false  "Filter by contract"
// @Param        partner_id   query     string  false  "Filter by partner"
// @Success      200          {object}  response.Response
// @Router       /api/sale-orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	params := pagination.Parse(c)

	filter := repository.OrderFilter{
		Status: c.Query("status"),
		Page:   params.Page,
		Limit:  params.Limit,
	}
	if raw := c.Query("contract_id"); raw != "" {
		if contractID, err := uuid.Parse(raw); err == nil {
			filter.ContractID = &contractID
		}
	}
	if raw := c.Query("partner_id"); raw != "" {
		if partnerID, err := uuid.Parse(raw); err == nil {
			filter.PartnerID = &partnerID
		}
	}

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, orders, params.Page, params.Limit, total))
}

// GetOrder returns one sale order
// @Summary      Get sale order
// @Tags         sale-orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/sale-orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// CreateOrder creates a draft sale order
// @Summary      Create sale order
// @Tags         sale-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        order  body      service.CreateOrderRequest  true  "Order payload"
// @Success      201    {object}  response.Response
// @Failure      400    {object}  response.Response
// @Router       /api/sale-orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), actorID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, order))
}

// UpdateOrder updates order fields, re-running the contract gate on confirmed orders
// @Summary      Update sale order
// @Tags         sale-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id     path      string                      true  "Order ID"
// @Param        order  body      service.UpdateOrderRequest  true  "Fields to update"
// @Success      200    {object}  response.Response
// @Failure      409    {object}  response.Response
// @Router       /api/sale-orders/{id} [put]
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	var req service.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	order, err := h.orderService.UpdateOrder(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// ConfirmOrder confirms a draft order after the contract gate passes
// @Summary      Confirm sale order
// @Tags         sale-orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/sale-orders/{id}/confirm [put]
func (h *OrderHandler) ConfirmOrder(c *gin.Context) {
	order, err := h.orderService.ConfirmOrder(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// CancelOrder cancels an order, releasing its contract headroom
// @Summary      Cancel sale order
// @Tags         sale-orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/sale-orders/{id}/cancel [put]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	order, err := h.orderService.CancelOrder(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

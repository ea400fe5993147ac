package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkachanov/marketplace-backend/internal/http/handlers/common"
	"github.com/mkachanov/marketplace-backend/internal/service"
)

type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// ListMy GET /orders/my
func (h *OrderHandler) ListMy(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	asBuyer, asSeller, err := h.orders.ListMyOrders(c.Request.Context(), actor)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"as_buyer":  asBuyer,
		"as_seller": asSeller,
	})
}

// Get GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), actor, orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// GetHistory GET /orders/:id/history
func (h *OrderHandler) GetHistory(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	history, err := h.orders.GetHistory(c.Request.Context(), actor, orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, history)
}

// Transition POST /orders/:id/transition
func (h *OrderHandler) Transition(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Target string `json:"target" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "требуется целевой статус")
		return
	}

	order, err := h.orders.Transition(c.Request.Context(), actor, orderID, req.Target)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, order)
}

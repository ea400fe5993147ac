package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkachanov/marketplace-backend/internal/http/handlers/common"
	"github.com/mkachanov/marketplace-backend/internal/service"
)

type DeliveryHandler struct {
	deliveries *service.DeliveryService
}

func NewDeliveryHandler(deliveries *service.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{deliveries: deliveries}
}

// Submit POST /orders/:id/deliveries
func (h *DeliveryHandler) Submit(c *gin.Context) {
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
		Files   []string `json:"files"`
		Message string   `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	delivery, err := h.deliveries.Submit(c.Request.Context(), actor, orderID, req.Files, req.Message)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, delivery)
}

// List GET /orders/:id/deliveries
func (h *DeliveryHandler) List(c *gin.Context) {
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

	deliveries, err := h.deliveries.List(c.Request.Context(), actor, orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, deliveries)
}

// Respond POST /deliveries/:id/response
func (h *DeliveryHandler) Respond(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	deliveryID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Accept   *bool  `json:"accept" binding:"required"`
		Feedback string `json:"feedback"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "требуется поле accept")
		return
	}

	delivery, err := h.deliveries.Respond(c.Request.Context(), actor, deliveryID, *req.Accept, req.Feedback)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, delivery)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkachanov/marketplace-backend/internal/http/handlers/common"
	"github.com/mkachanov/marketplace-backend/internal/service"
)

type DisputeHandler struct {
	disputes *service.DisputeService
}

func NewDisputeHandler(disputes *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// Open POST /orders/:id/dispute
func (h *DisputeHandler) Open(c *gin.Context) {
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
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "требуется причина спора")
		return
	}

	dispute, err := h.disputes.Open(c.Request.Context(), actor, orderID, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

// ListByOrder GET /orders/:id/dispute
func (h *DisputeHandler) ListByOrder(c *gin.Context) {
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

	disputes, err := h.disputes.ListByOrder(c.Request.Context(), actor, orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, disputes)
}

// List GET /disputes
func (h *DisputeHandler) List(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	disputes, err := h.disputes.List(c.Request.Context(), actor, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, disputes)
}

// Get GET /disputes/:id
func (h *DisputeHandler) Get(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.GetDispute(c.Request.Context(), actor, disputeID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// Resolve POST /disputes/:id/resolve
func (h *DisputeHandler) Resolve(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Resolution   string  `json:"resolution" binding:"required"`
		FavoredParty string  `json:"favored_party" binding:"required"`
		RefundAmount float64 `json:"refund_amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.Resolve(c.Request.Context(), actor, disputeID,
		req.Resolution, req.FavoredParty, req.RefundAmount)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkachanov/marketplace-backend/internal/http/handlers/common"
	"github.com/mkachanov/marketplace-backend/internal/service"
)

type WithdrawalHandler struct {
	withdrawals *service.WithdrawalService
}

func NewWithdrawalHandler(withdrawals *service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals}
}

// Create POST /withdrawals
func (h *WithdrawalHandler) Create(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Amount    float64 `json:"amount" binding:"required,gt=0"`
		CardLast4 *string `json:"card_last4"`
		BankName  *string `json:"bank_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "сумма должна быть положительной")
		return
	}

	withdrawal, err := h.withdrawals.Create(c.Request.Context(), actor, req.Amount, req.CardLast4, req.BankName)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, withdrawal)
}

// List GET /withdrawals
func (h *WithdrawalHandler) List(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	withdrawals, err := h.withdrawals.List(c.Request.Context(), actor, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, withdrawals)
}

// Process POST /withdrawals/:id/process
func (h *WithdrawalHandler) Process(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Status        string  `json:"status" binding:"required"`
		FailureReason *string `json:"failure_reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "требуется статус обработки")
		return
	}

	withdrawal, err := h.withdrawals.Process(c.Request.Context(), actor, id, req.Status, req.FailureReason)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}

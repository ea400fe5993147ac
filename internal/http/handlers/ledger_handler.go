package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkachanov/marketplace-backend/internal/http/handlers/common"
	"github.com/mkachanov/marketplace-backend/internal/service"
)

type LedgerHandler struct {
	ledger *service.LedgerService
}

func NewLedgerHandler(ledger *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// GetBalance GET /ledger/balance
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), actor)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

// ListTransactions GET /ledger/transactions
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	transactions, err := h.ledger.ListTransactions(c.Request.Context(), actor, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, transactions)
}

package transaction

import (
	"github.com/gin-gonic/gin"
)

type IHandler interface {
	// GetTransactions lists stored transactions newest first
	GetTransactions(c *gin.Context)
}

type GetTransactionsRequest struct {
	Limit   int    `form:"limit" json:"limit" binding:"omitempty,min=1"`
	Network string `form:"network" json:"network" binding:"omitempty,oneof=evm nonevm base solana"`
}

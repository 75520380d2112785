// Package http exposes the ledger over a JSON API.
package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter assembles the API routes.
func NewRouter(accounts *AccountHandler, transactions *TransactionHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	{
		ag := v1.Group("/accounts")
		{
			ag.POST("", accounts.Open)
			ag.GET("", accounts.Search)
			ag.GET("/:accountNumber", accounts.Get)
			ag.PUT("/:accountNumber/close", accounts.Close)
		}

		tg := v1.Group("/transactions")
		{
			tg.POST("/deposit/start", transactions.StartDeposit)
			tg.POST("/withdraw/start", transactions.StartWithdraw)
			tg.POST("/transfer/start", transactions.StartTransfer)
			tg.POST("/pay/start", transactions.StartPay)
			tg.PUT("/:typeOf/:transactionId/confirm", transactions.Confirm)
			tg.PUT("/:typeOf/:transactionId/cancel", transactions.Cancel)
			tg.PUT("/:typeOf/:transactionId/return", transactions.Return)
		}
	}

	return router
}

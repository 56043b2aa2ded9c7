package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter wires the handlers behind bearer authentication. /health stays public.
func NewRouter(h *Handler, jwtSecret, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(RequestLogger(), gin.Recovery())

	r.GET("/health", h.Health)

	authed := r.Group("/", Authenticate(jwtSecret))
	{
		authed.GET("/accounts", h.MyAccounts)
		authed.GET("/accounts/:id", h.GetAccount)
		authed.GET("/accounts/:id/balance", h.Balance)
		authed.GET("/accounts/:id/transactions", h.Transactions)
		authed.GET("/accounts/:id/summary", h.Summary)
		authed.GET("/accounts/:id/statement.xlsx", h.Statement)
		authed.POST("/accounts/:id/deposits", h.Deposit)
		authed.POST("/accounts/:id/withdrawals", h.Withdraw)
		authed.POST("/transfers", h.Transfer)
		authed.POST("/transfers/pending", h.SubmitPendingTransfer)
	}

	admin := authed.Group("/admin", RequireAdmin())
	{
		admin.GET("/accounts", h.ListAccounts)
		admin.POST("/accounts", h.CreateAccount)
		admin.DELETE("/accounts/:id", h.DeleteAccount)
		admin.DELETE("/users/:user_id/accounts", h.DeleteUserAccounts)
		admin.POST("/accounts/:id/adjustments", h.AdjustBalance)
		admin.POST("/accounts/:id/deductions", h.DeductBalance)
		admin.GET("/transactions/pending", h.ListPending)
		admin.POST("/transactions/:id/approve", h.Approve)
		admin.POST("/transactions/:id/reject", h.Reject)
	}

	return r
}

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sheikh-saqib/banking-ledger/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/sheikh-saqib/banking-ledger/internal/projection"
	"github.com/shopspring/decimal"
)

const (
	idempotencyHeader = "Idempotency-Key"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DeductionDefaults apply to admin adjustments that do not override them.
type DeductionDefaults struct {
	TaxRate decimal.Decimal
	FeeRate decimal.Decimal
	MinFee  decimal.Decimal
	MaxFee  decimal.Decimal
}

type Handler struct {
	ledger    *ledger.Ledger
	proj      *projection.Projector
	deduction DeductionDefaults
}

func NewHandler(l *ledger.Ledger, proj *projection.Projector, defaults DeductionDefaults) *Handler {
	return &Handler{ledger: l, proj: proj, deduction: defaults}
}

type movementRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	IsPositive  *bool           `json:"is_positive"`
	IsVisible   *bool           `json:"is_visible"`
}

type transferRequest struct {
	FromAccountID string           `json:"from_account_id" binding:"required"`
	ToAccountID   string           `json:"to_account_id"`
	Amount        decimal.Decimal  `json:"amount"`
	Description   string           `json:"description"`
	Recipient     models.Recipient `json:"recipient"`
}

type adjustmentRequest struct {
	GrossAmount decimal.Decimal  `json:"gross_amount"`
	Description string           `json:"description"`
	ApplyTax    bool             `json:"apply_tax"`
	TaxRate     *decimal.Decimal `json:"tax_rate"`
	ApplyFee    bool             `json:"apply_fee"`
	FeeRate     *decimal.Decimal `json:"fee_rate"`
	MinFee      *decimal.Decimal `json:"min_fee"`
	MaxFee      *decimal.Decimal `json:"max_fee"`
	Invisible   bool             `json:"invisible"`
}

type deductionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Invisible   bool            `json:"invisible"`
}

type balanceResponse struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}

type deletedResponse struct {
	AccountID           string `json:"account_id"`
	DeletedTransactions int    `json:"deleted_transactions"`
}

func pick(override *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	return fallback
}

func (h *Handler) Health(c *gin.Context) {
	respond(c, http.StatusOK, "ok", gin.H{"status": "ok"})
}

func (h *Handler) MyAccounts(c *gin.Context) {
	session := sessionFrom(c)
	accounts, err := h.ledger.AccountsForUser(c.Request.Context(), session, session.UserID)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, "accounts retrieved", accounts)
}

func (h *Handler) GetAccount(c *gin.Context) {
	acc, err := h.ledger.GetAccount(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, "account retrieved", acc)
}

func (h *Handler) Balance(c *gin.Context) {
	id := c.Param("id")
	balance, err := h.ledger.Balance(c.Request.Context(), sessionFrom(c), id)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, "balance retrieved", balanceResponse{AccountID: id, Balance: balance})
}

// authorizeAccount checks the session may read the account before a projection runs.
func (h *Handler) authorizeAccount(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := h.ledger.GetAccount(c.Request.Context(), sessionFrom(c), id); err != nil {
		failWith(c, err)
		return "", false
	}
	return id, true
}

func (h *Handler) Transactions(c *gin.Context) {
	id, ok := h.authorizeAccount(c)
	if !ok {
		return
	}
	views, err := h.proj.Entries(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, "transactions retrieved", views)
}

func (h *Handler) Summary(c *gin.Context) {
	id, ok := h.authorizeAccount(c)
	if !ok {
		return
	}
	summary, err := h.proj.Summary(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, "summary retrieved", summary)
}

func (h *Handler) Statement(c *gin.Context) {
	id, ok := h.authorizeAccount(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.proj.ExportStatement(c.Request.Context(), id, &buf); err != nil {
		failWith(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"statement_%s.xlsx\"", id))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handler) Deposit(c *gin.Context) {
	h.movement(c, h.ledger.Deposit, "deposit posted")
}

func (h *Handler) Withdraw(c *gin.Context) {
	h.movement(c, h.ledger.Withdraw, "withdrawal posted")
}

type movementFunc func(ctx context.Context, session models.Session, req ledger.MovementRequest) (models.Transaction, error)

func (h *Handler) movement(c *gin.Context, op movementFunc, message string) {
	var req movementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	rec, err := op(c.Request.Context(), sessionFrom(c), ledger.MovementRequest{
		AccountID:      c.Param("id"),
		Amount:         req.Amount,
		Description:    req.Description,
		IsPositive:     req.IsPositive,
		IsVisible:      req.IsVisible,
		IdempotencyKey: c.GetHeader(idempotencyHeader),
	})
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusCreated, message, rec)
}

func (h *Handler) bindTransfer(c *gin.Context) (ledger.TransferRequest, bool) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err.Error())
		return ledger.TransferRequest{}, false
	}
	return ledger.TransferRequest{
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		Amount:         req.Amount,
		Recipient:      req.Recipient,
		Description:    req.Description,
		IdempotencyKey: c.GetHeader(idempotencyHeader),
	}, true
}

func (h *Handler) Transfer(c *gin.Context) {
	req, ok := h.bindTransfer(c)
	if !ok {
		return
	}
	rec, err := h.ledger.Transfer(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusCreated, "transfer posted", rec)
}

func (h *Handler) SubmitPendingTransfer(c *gin.Context) {
	req, ok := h.bindTransfer(c)
	if !ok {
		return
	}
	rec, err := h.ledger.SubmitPendingTransfer(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusAccepted, "transfer submitted for approval", rec)
}

func (h *Handler) ListAccounts(c *gin.Context) {
	accounts, err := h.ledger.ListAccounts(c.Request.Context(), sessionFrom(c))
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, "accounts retrieved", accounts)
}

func (h *Handler) CreateAccount(c *gin.Context) {
	var req models.NewAccount
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	acc, err := h.ledger.CreateAccount(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusCreated, "account created", acc)
}

func (h *Handler) DeleteAccount(c *gin.Context) {
	id := c.Param("id")
	deleted, err := h.ledger.DeleteAccount(c.Request.Context(), sessionFrom(c), id)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, "account deleted", deletedResponse{AccountID: id, DeletedTransactions: deleted})
}

func (h *Handler) DeleteUserAccounts(c *gin.Context) {
	result, err := h.ledger.DeleteUserAccounts(c.Request.Context(), sessionFrom(c), c.Param("user_id"))
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, "user accounts deleted", result)
}

func (h *Handler) AdjustBalance(c *gin.Context) {
	var req adjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.ledger.AdminAdjustBalanceWithDeductions(c.Request.Context(), sessionFrom(c), ledger.AdjustmentRequest{
		AccountID:   c.Param("id"),
		GrossAmount: req.GrossAmount,
		Description: req.Description,
		Tax: &ledger.TaxConfig{
			Enabled: req.ApplyTax,
			Rate:    pick(req.TaxRate, h.deduction.TaxRate),
		},
		Fee: &ledger.FeeConfig{
			Enabled: req.ApplyFee,
			Rate:    pick(req.FeeRate, h.deduction.FeeRate),
			Min:     pick(req.MinFee, h.deduction.MinFee),
			Max:     pick(req.MaxFee, h.deduction.MaxFee),
		},
		Invisible: req.Invisible,
	})
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusCreated, "balance adjusted", result)
}

func (h *Handler) DeductBalance(c *gin.Context) {
	var req deductionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	rec, err := h.ledger.AdminDeductBalance(c.Request.Context(), sessionFrom(c), c.Param("id"), req.Amount, req.Description, req.Invisible)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusCreated, "balance deducted", rec)
}

func (h *Handler) ListPending(c *gin.Context) {
	pending, err := h.proj.ListPending(c.Request.Context())
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, "pending transactions retrieved", pending)
}

func (h *Handler) Approve(c *gin.Context) {
	rec, err := h.ledger.Approve(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, "transaction approved", rec)
}

func (h *Handler) Reject(c *gin.Context) {
	rec, err := h.ledger.Reject(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, "transaction rejected", rec)
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/ledger"
)

// Response is the envelope every JSON endpoint answers with.
type Response[T any] struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    *T       `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func SuccessResponse[T any](message string, data T) Response[T] {
	return Response[T]{
		Success: true,
		Message: message,
		Data:    &data,
	}
}

func ErrorResponse(message string, errs ...string) Response[struct{}] {
	return Response[struct{}]{
		Success: false,
		Message: message,
		Errors:  errs,
	}
}

func respond[T any](c *gin.Context, status int, message string, data T) {
	c.JSON(status, SuccessResponse(message, data))
}

func fail(c *gin.Context, status int, message string, errs ...string) {
	c.AbortWithStatusJSON(status, ErrorResponse(message, errs...))
}

// statusFor maps ledger errors onto HTTP status codes and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound, "account not found"
	case errors.Is(err, ledger.ErrTransactionNotFound):
		return http.StatusNotFound, "transaction not found"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "insufficient funds"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid amount"
	case errors.Is(err, ledger.ErrInvalidAccount):
		return http.StatusBadRequest, "invalid account details"
	case errors.Is(err, ledger.ErrSameAccount):
		return http.StatusBadRequest, "source and destination account are the same"
	case errors.Is(err, ledger.ErrInvalidState):
		return http.StatusConflict, "transaction is not pending"
	case errors.Is(err, ledger.ErrIdempotencyConflict):
		return http.StatusConflict, "idempotency key already used for a different request"
	case errors.Is(err, interfaces.ErrConflict):
		return http.StatusConflict, "record already exists"
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	}
	return http.StatusInternalServerError, "internal error"
}

// failWith writes the mapped error. Details are only exposed for client errors.
func failWith(c *gin.Context, err error) {
	status, message := statusFor(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		fail(c, status, message)
		return
	}
	fail(c, status, message, err.Error())
}

package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pecorino-jp/ledger/internal/domain"
	"github.com/pecorino-jp/ledger/internal/usecase/deposit"
	"github.com/pecorino-jp/ledger/internal/usecase/exporter"
	"github.com/pecorino-jp/ledger/internal/usecase/pay"
	"github.com/pecorino-jp/ledger/internal/usecase/transfer"
	"github.com/pecorino-jp/ledger/internal/usecase/withdraw"
)

// TransactionHandler serves the transaction endpoints for all four types.
type TransactionHandler struct {
	deposits    *deposit.Service
	withdrawals *withdraw.Service
	transfers   *transfer.Service
	payments    *pay.Service
	returns     *exporter.Exporter
}

func NewTransactionHandler(deposits *deposit.Service, withdrawals *withdraw.Service, transfers *transfer.Service, payments *pay.Service, returns *exporter.Exporter) *TransactionHandler {
	return &TransactionHandler{
		deposits:    deposits,
		withdrawals: withdrawals,
		transfers:   transfers,
		payments:    payments,
		returns:     returns,
	}
}

// StartTransactionRequest covers all four start endpoints; each endpoint
// reads the location fields relevant to its type.
type StartTransactionRequest struct {
	TransactionNumber string             `json:"transactionNumber"`
	Agent             domain.Participant `json:"agent"`
	Recipient         domain.Participant `json:"recipient"`
	Amount            decimal.Decimal    `json:"amount"`
	FromAccountNumber string             `json:"fromAccountNumber"`
	ToAccountNumber   string             `json:"toAccountNumber"`
	FromName          string             `json:"fromName"`
	ToName            string             `json:"toName"`
	Description       string             `json:"description"`
	Expires           time.Time          `json:"expires"`
}

func (h *TransactionHandler) StartDeposit(c *gin.Context) {
	req, ok := bindStart(c)
	if !ok {
		return
	}

	started, err := h.deposits.Start(c.Request.Context(), deposit.StartInput{
		TransactionNumber: req.TransactionNumber,
		Agent:             req.Agent,
		Recipient:         req.Recipient,
		Amount:            req.Amount,
		ToAccountNumber:   req.ToAccountNumber,
		FromName:          req.FromName,
		Description:       req.Description,
		Expires:           req.Expires,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, started)
}

func (h *TransactionHandler) StartWithdraw(c *gin.Context) {
	req, ok := bindStart(c)
	if !ok {
		return
	}

	started, err := h.withdrawals.Start(c.Request.Context(), withdraw.StartInput{
		TransactionNumber: req.TransactionNumber,
		Agent:             req.Agent,
		Recipient:         req.Recipient,
		Amount:            req.Amount,
		FromAccountNumber: req.FromAccountNumber,
		ToName:            req.ToName,
		Description:       req.Description,
		Expires:           req.Expires,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, started)
}

func (h *TransactionHandler) StartTransfer(c *gin.Context) {
	req, ok := bindStart(c)
	if !ok {
		return
	}

	started, err := h.transfers.Start(c.Request.Context(), transfer.StartInput{
		TransactionNumber: req.TransactionNumber,
		Agent:             req.Agent,
		Recipient:         req.Recipient,
		Amount:            req.Amount,
		FromAccountNumber: req.FromAccountNumber,
		ToAccountNumber:   req.ToAccountNumber,
		Description:       req.Description,
		Expires:           req.Expires,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, started)
}

func (h *TransactionHandler) StartPay(c *gin.Context) {
	req, ok := bindStart(c)
	if !ok {
		return
	}

	started, err := h.payments.Start(c.Request.Context(), pay.StartInput{
		TransactionNumber: req.TransactionNumber,
		Agent:             req.Agent,
		Recipient:         req.Recipient,
		Amount:            req.Amount,
		FromAccountNumber: req.FromAccountNumber,
		PayeeName:         req.ToName,
		Description:       req.Description,
		Expires:           req.Expires,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, started)
}

func (h *TransactionHandler) Confirm(c *gin.Context) {
	h.finish(c, func(ctx *gin.Context, typeOf domain.TransactionType, id uuid.UUID) (*domain.Transaction, error) {
		switch typeOf {
		case domain.TransactionTypeDeposit:
			return h.deposits.Confirm(ctx.Request.Context(), id)
		case domain.TransactionTypeWithdraw:
			return h.withdrawals.Confirm(ctx.Request.Context(), id)
		case domain.TransactionTypeTransfer:
			return h.transfers.Confirm(ctx.Request.Context(), id)
		case domain.TransactionTypePay:
			return h.payments.Confirm(ctx.Request.Context(), id)
		default:
			return nil, domain.NewArgumentError("typeOf", "unknown transaction type")
		}
	})
}

func (h *TransactionHandler) Cancel(c *gin.Context) {
	h.finish(c, func(ctx *gin.Context, typeOf domain.TransactionType, id uuid.UUID) (*domain.Transaction, error) {
		switch typeOf {
		case domain.TransactionTypeDeposit:
			return h.deposits.Cancel(ctx.Request.Context(), id)
		case domain.TransactionTypeWithdraw:
			return h.withdrawals.Cancel(ctx.Request.Context(), id)
		case domain.TransactionTypeTransfer:
			return h.transfers.Cancel(ctx.Request.Context(), id)
		case domain.TransactionTypePay:
			return h.payments.Cancel(ctx.Request.Context(), id)
		default:
			return nil, domain.NewArgumentError("typeOf", "unknown transaction type")
		}
	})
}

// Return queues the refund of a confirmed transaction. The refund settles
// asynchronously through the task scheduler, so the response is the queued
// task, not the returned transaction.
func (h *TransactionHandler) Return(c *gin.Context) {
	typeOf, ok := parseTransactionType(c.Param("typeOf"))
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown transaction type"})
		return
	}
	id, err := uuid.Parse(c.Param("transactionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid transaction id"})
		return
	}

	task, err := h.returns.RequestReturn(c.Request.Context(), typeOf, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, task)
}

func (h *TransactionHandler) finish(c *gin.Context, op func(*gin.Context, domain.TransactionType, uuid.UUID) (*domain.Transaction, error)) {
	typeOf, ok := parseTransactionType(c.Param("typeOf"))
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown transaction type"})
		return
	}
	id, err := uuid.Parse(c.Param("transactionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid transaction id"})
		return
	}

	finished, err := op(c, typeOf, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, finished)
}

func bindStart(c *gin.Context) (StartTransactionRequest, bool) {
	var req StartTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return req, false
	}
	return req, true
}

// parseTransactionType accepts the lowercase path form of a type.
func parseTransactionType(raw string) (domain.TransactionType, bool) {
	switch raw {
	case "deposit":
		return domain.TransactionTypeDeposit, true
	case "withdraw":
		return domain.TransactionTypeWithdraw, true
	case "transfer":
		return domain.TransactionTypeTransfer, true
	case "pay":
		return domain.TransactionTypePay, true
	default:
		return "", false
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ActionType represents the kind of side-effecting action
type ActionType string

const (
	ActionTypeMoneyTransfer ActionType = "MoneyTransfer"
	ActionTypePay           ActionType = "Pay"
	ActionTypeTake          ActionType = "Take"
)

// ActionStatus represents the lifecycle status of an action
type ActionStatus string

const (
	ActionStatusActive    ActionStatus = "ActiveActionStatus"
	ActionStatusCompleted ActionStatus = "CompletedActionStatus"
	ActionStatusCanceled  ActionStatus = "CanceledActionStatus"
	ActionStatusFailed    ActionStatus = "FailedActionStatus"
)

// Purpose references the transaction an action belongs to.
// Status is set to Returned on reversing actions so that a refund is
// distinguishable from the original settlement.
type Purpose struct {
	TypeOf            TransactionType   `json:"typeOf"`
	ID                uuid.UUID         `json:"id"`
	TransactionNumber string            `json:"transactionNumber,omitempty"`
	Status            TransactionStatus `json:"status,omitempty"`
}

// MoneyTransferAttributes is the payload needed to settle one money
// transfer. It is attached to a transaction as a potential action at
// confirmation time and later handed to the settlement service by a task.
type MoneyTransferAttributes struct {
	TypeOf       ActionType      `json:"typeOf"`
	Identifier   string          `json:"identifier"`
	Agent        Participant     `json:"agent"`
	Recipient    Participant     `json:"recipient"`
	Amount       decimal.Decimal `json:"amount"`
	AccountType  string          `json:"accountType"`
	FromLocation Location        `json:"fromLocation"`
	ToLocation   Location        `json:"toLocation"`
	Description  string          `json:"description,omitempty"`
	Purpose      Purpose         `json:"purpose"`
}

// NewMoneyTransferAttributes synthesizes the settlement payload for a
// transaction being confirmed. The account type is taken from whichever
// location is account-backed; at least one must be.
func NewMoneyTransferAttributes(t *Transaction) (MoneyTransferAttributes, error) {
	var from, to Location
	if t.Object.FromLocation != nil {
		from = *t.Object.FromLocation
	}
	if t.Object.ToLocation != nil {
		to = *t.Object.ToLocation
	}

	var accountType string
	switch {
	case from.IsAccount():
		accountType = from.AccountType
	case to.IsAccount():
		accountType = to.AccountType
	default:
		return MoneyTransferAttributes{}, fmt.Errorf("money transfer with no account-backed location: %w", ErrNotImplemented)
	}

	return MoneyTransferAttributes{
		TypeOf:       ActionTypeMoneyTransfer,
		Identifier:   t.ID.String(),
		Agent:        t.Agent,
		Recipient:    t.Recipient,
		Amount:       t.Object.Amount,
		AccountType:  accountType,
		FromLocation: from,
		ToLocation:   to,
		Description:  t.Object.Description,
		Purpose: Purpose{
			TypeOf:            t.TypeOf,
			ID:                t.ID,
			TransactionNumber: t.TransactionNumber,
		},
	}, nil
}

// ActionResult records the outcome of a completed action.
type ActionResult struct {
	Amount decimal.Decimal `json:"amount"`
}

// Action is the audit record of one money-transfer attempt. Identifier is
// the idempotency key: starting twice with the same identifier yields the
// same record, which is how replayed settlement tasks avoid moving money
// twice.
type Action struct {
	ID           uuid.UUID
	Identifier   string
	TypeOf       ActionType
	Status       ActionStatus
	Agent        Participant
	Recipient    Participant
	Amount       decimal.Decimal
	AccountType  string
	FromLocation Location
	ToLocation   Location
	Description  string
	Purpose      Purpose
	Result       *ActionResult
	Error        string
	StartDate    time.Time
	EndDate      *time.Time
}

// NewAction materializes an action from transfer attributes.
func NewAction(attrs MoneyTransferAttributes, startDate time.Time) *Action {
	return &Action{
		ID:           uuid.New(),
		Identifier:   attrs.Identifier,
		TypeOf:       attrs.TypeOf,
		Status:       ActionStatusActive,
		Agent:        attrs.Agent,
		Recipient:    attrs.Recipient,
		Amount:       attrs.Amount,
		AccountType:  attrs.AccountType,
		FromLocation: attrs.FromLocation,
		ToLocation:   attrs.ToLocation,
		Description:  attrs.Description,
		Purpose:      attrs.Purpose,
		StartDate:    startDate,
	}
}

// ActionSearchConditions filters transfer-action searches.
type ActionSearchConditions struct {
	AccountNumber    string // matches either location
	AccountType      string
	PurposeID        *uuid.UUID
	Statuses         []ActionStatus
	StartDateFrom    *time.Time
	StartDateThrough *time.Time
	Limit            int
	Offset           int
}

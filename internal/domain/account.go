package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus represents the lifecycle status of an account
type AccountStatus string

const (
	AccountStatusOpened AccountStatus = "Opened"
	AccountStatusClosed AccountStatus = "Closed"
)

// PendingTransaction is a hold placed on an account by an in-flight
// transaction: a debit-side authorization or a credit not yet settled.
type PendingTransaction struct {
	TypeOf TransactionType `json:"typeOf"`
	ID     uuid.UUID       `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

// Account represents a ledger account.
//
// Balance is settled funds and only changes at settlement time.
// AvailableBalance is Balance minus the sum of debit-side holds; it is
// decremented when an amount is authorized and restored when the hold is
// settled against Balance or voided. AvailableBalance never goes negative.
type Account struct {
	ID                  uuid.UUID            `json:"id"`
	AccountNumber       string               `json:"accountNumber"`
	AccountType         string               `json:"accountType"`
	Name                string               `json:"name"`
	Balance             decimal.Decimal      `json:"balance"`
	AvailableBalance    decimal.Decimal      `json:"availableBalance"`
	PendingTransactions []PendingTransaction `json:"pendingTransactions"`
	Status              AccountStatus        `json:"status"`
	OpenDate            time.Time            `json:"openDate"`
	CloseDate           *time.Time           `json:"closeDate,omitempty"`
}

// Validate ensures the account adheres to domain rules
func (a *Account) Validate() error {
	if a.AccountNumber == "" {
		return errors.New("account number cannot be empty")
	}
	if a.AccountType == "" {
		return errors.New("account type cannot be empty")
	}
	if a.Name == "" {
		return errors.New("account name cannot be empty")
	}
	if a.Balance.IsNegative() {
		return errors.New("balance cannot be negative")
	}
	if a.AvailableBalance.IsNegative() {
		return errors.New("available balance cannot be negative")
	}
	return nil
}

// Location returns the money-transfer endpoint backed by this account.
func (a *Account) Location() Location {
	return Location{
		TypeOf:        LocationTypeAccount,
		AccountType:   a.AccountType,
		AccountNumber: a.AccountNumber,
		Name:          a.Name,
	}
}

// MoneyMovement describes one settlement or void against the account store.
// An empty account number means that leg is absent: deposits settle only the
// to side, withdrawals and payments only the from side, transfers both.
type MoneyMovement struct {
	FromAccountNumber string
	ToAccountNumber   string
	Amount            decimal.Decimal
	TransactionID     uuid.UUID

	// WithoutHolds marks a reversal. The original settlement already
	// consumed the pending entries, so the legs apply directly instead of
	// being gated on them.
	WithoutHolds bool
}

// SettleOutcome reports which legs of a settlement or void applied.
// A leg whose pending entry was already gone is an idempotent replay and is
// reported as not applied. A leg whose account row could not be found is
// surfaced in MissingAccounts so the caller can observe it instead of the
// store guessing whether that is corruption or a racing retry.
type SettleOutcome struct {
	FromApplied     bool
	ToApplied       bool
	MissingAccounts []string
}

// AccountSearchConditions filters account searches.
type AccountSearchConditions struct {
	AccountType     string
	AccountNumbers  []string
	Statuses        []AccountStatus
	Name            string
	OpenDateFrom    *time.Time
	OpenDateThrough *time.Time
	Limit           int
	Offset          int
}

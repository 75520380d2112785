package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of money movement
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "Deposit"
	TransactionTypeWithdraw TransactionType = "Withdraw"
	TransactionTypeTransfer TransactionType = "Transfer"
	TransactionTypePay      TransactionType = "Pay"
)

// Debits reports whether this transaction type places a debit-side hold
// (an authorization against the source account's available balance).
func (t TransactionType) Debits() bool {
	switch t {
	case TransactionTypeWithdraw, TransactionTypeTransfer, TransactionTypePay:
		return true
	default:
		return false
	}
}

// Credits reports whether this transaction type places a credit-side hold
// (an incoming amount pending on the destination account).
func (t TransactionType) Credits() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeTransfer:
		return true
	default:
		return false
	}
}

// TransactionStatus represents the lifecycle status of a transaction.
// Transitions are monotonic: InProgress -> Confirmed | Canceled | Expired,
// then optionally Confirmed -> Returned via the refund flow.
type TransactionStatus string

const (
	TransactionStatusInProgress TransactionStatus = "InProgress"
	TransactionStatusConfirmed  TransactionStatus = "Confirmed"
	TransactionStatusCanceled   TransactionStatus = "Canceled"
	TransactionStatusExpired    TransactionStatus = "Expired"
	TransactionStatusReturned   TransactionStatus = "Returned"
)

// Terminal reports whether the status admits no further confirm/cancel.
func (s TransactionStatus) Terminal() bool {
	return s != TransactionStatusInProgress
}

// ExportStatus tracks conversion of a terminal transaction into tasks.
// It only moves Unexported -> Exporting -> Exported; a crashed export is
// swept back from Exporting to Unexported.
type ExportStatus string

const (
	ExportStatusUnexported ExportStatus = "Unexported"
	ExportStatusExporting  ExportStatus = "Exporting"
	ExportStatusExported   ExportStatus = "Exported"
)

// LocationType tags a money-transfer endpoint.
type LocationType string

const (
	// LocationTypeAccount marks a location backed by a ledger account.
	LocationTypeAccount LocationType = "Account"
	// LocationTypeAnonymous marks an external endpoint (cash desk, payee
	// terminal) with no ledger account behind it.
	LocationTypeAnonymous LocationType = "Anonymous"
)

// Location is one endpoint of a money movement. AccountType and
// AccountNumber are set only for account-backed locations.
type Location struct {
	TypeOf        LocationType `json:"typeOf"`
	AccountType   string       `json:"accountType,omitempty"`
	AccountNumber string       `json:"accountNumber,omitempty"`
	Name          string       `json:"name,omitempty"`
}

// IsAccount reports whether the location is backed by a ledger account.
func (l Location) IsAccount() bool {
	return l.TypeOf == LocationTypeAccount
}

// Participant identifies the agent or recipient of a transaction.
type Participant struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// TransactionObject carries the movement details common to all types.
// FromLocation/ToLocation are nil when that side does not exist for the
// type (deposits have no from side, withdrawals no account to side).
type TransactionObject struct {
	Amount       decimal.Decimal `json:"amount"`
	FromLocation *Location       `json:"fromLocation,omitempty"`
	ToLocation   *Location       `json:"toLocation,omitempty"`
	Description  string          `json:"description,omitempty"`
}

// TransactionResult is populated when the transaction is confirmed.
type TransactionResult struct {
	Amount decimal.Decimal `json:"amount"`
}

// PotentialActions is the side-effect payload attached at confirmation and
// consumed when the transaction is exported to tasks.
type PotentialActions struct {
	MoneyTransfer *MoneyTransferAttributes `json:"moneyTransfer,omitempty"`
}

// Transaction represents one money-movement transaction of any type.
type Transaction struct {
	ID                     uuid.UUID          `json:"id"`
	TransactionNumber      string             `json:"transactionNumber,omitempty"` // optional human-assigned identifier, unique when set
	TypeOf                 TransactionType    `json:"typeOf"`
	Status                 TransactionStatus  `json:"status"`
	Agent                  Participant        `json:"agent"`
	Recipient              Participant        `json:"recipient"`
	Object                 TransactionObject  `json:"object"`
	Expires                time.Time          `json:"expires"`
	StartDate              time.Time          `json:"startDate"`
	EndDate                *time.Time         `json:"endDate,omitempty"`
	Result                 *TransactionResult `json:"result,omitempty"`
	PotentialActions       *PotentialActions  `json:"potentialActions,omitempty"`
	TasksExportationStatus ExportStatus       `json:"tasksExportationStatus"`
	TasksExportedAt        *time.Time         `json:"tasksExportedAt,omitempty"`
}

// Validate ensures the transaction adheres to domain rules
func (t *Transaction) Validate() error {
	if t.Object.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("transaction amount must be positive")
	}
	if t.TypeOf.Debits() {
		if t.Object.FromLocation == nil || !t.Object.FromLocation.IsAccount() {
			return errors.New(string(t.TypeOf) + " transaction requires an account-backed from location")
		}
	}
	if t.TypeOf.Credits() {
		if t.Object.ToLocation == nil || !t.Object.ToLocation.IsAccount() {
			return errors.New(string(t.TypeOf) + " transaction requires an account-backed to location")
		}
	}
	switch t.TypeOf {
	case TransactionTypeDeposit, TransactionTypeWithdraw, TransactionTypeTransfer, TransactionTypePay:
		return nil
	default:
		return errors.New("unknown transaction type " + string(t.TypeOf))
	}
}

// PendingEntry builds the hold record this transaction places on an account.
func (t *Transaction) PendingEntry() PendingTransaction {
	return PendingTransaction{TypeOf: t.TypeOf, ID: t.ID, Amount: t.Object.Amount}
}

// TransactionRef identifies a transaction inside task payloads and action
// purposes without carrying the whole document.
type TransactionRef struct {
	TypeOf TransactionType `json:"typeOf"`
	ID     uuid.UUID       `json:"id"`
}

// TransactionSearchConditions filters transaction searches.
type TransactionSearchConditions struct {
	TypesOf           []TransactionType
	Statuses          []TransactionStatus
	StartDateFrom     *time.Time
	StartDateThrough  *time.Time
	TransactionNumber string
	Limit             int
	Offset            int
}

package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccountRepository defines the persistence operations on accounts.
//
// Every mutation is an atomic conditional update keyed by account number
// plus a balance/status predicate; a miss is classified by a secondary
// lookup into "absent" (ErrNotFound) or "wrong state" (ArgumentError).
// No other component may write balances or pending entries directly.
type AccountRepository interface {
	// Open inserts an account with status Opened and
	// balance = availableBalance = the initial balance.
	Open(ctx context.Context, account *Account) error

	// Close sets status Closed. Requires the account to be Opened with no
	// pending transactions; closing an already-closed account succeeds.
	Close(ctx context.Context, accountNumber string) error

	// AuthorizeAmount places a debit-side hold: it decrements the available
	// balance and records pending, but only while the account is Opened and
	// the available balance covers the amount. The settled balance is not
	// touched.
	AuthorizeAmount(ctx context.Context, accountNumber string, pending PendingTransaction) error

	// StartTransaction places a credit-side hold: it records pending on an
	// Opened account without changing any balance.
	StartTransaction(ctx context.Context, accountNumber string, pending PendingTransaction) error

	// SettleTransaction applies a hold to the settled balance. The from leg
	// debits the balance; the to leg credits both balances. Each leg removes
	// its pending entry and is an idempotent no-op when the entry is already
	// gone.
	SettleTransaction(ctx context.Context, movement MoneyMovement) (SettleOutcome, error)

	// VoidTransaction releases a hold without settling it. The from leg
	// restores the available balance; the to leg only removes the pending
	// entry. Like settlement, each leg replays idempotently.
	VoidTransaction(ctx context.Context, movement MoneyMovement) (SettleOutcome, error)

	// FindByAccountNumber retrieves an account with its pending entries.
	FindByAccountNumber(ctx context.Context, accountNumber string) (*Account, error)

	// Search retrieves accounts matching the conditions, newest first.
	Search(ctx context.Context, conditions AccountSearchConditions) ([]*Account, error)

	// Count counts accounts matching the conditions.
	Count(ctx context.Context, conditions AccountSearchConditions) (int64, error)
}

// TransactionRepository defines the persistence operations on transactions.
type TransactionRepository interface {
	// Start inserts a transaction with status InProgress and export status
	// Unexported. A transaction-number collision is surfaced as
	// ErrDuplicateTransactionNumber so callers can treat retries as
	// idempotent.
	Start(ctx context.Context, transaction *Transaction) error

	// FindByID retrieves a transaction of the given type.
	FindByID(ctx context.Context, typeOf TransactionType, id uuid.UUID) (*Transaction, error)

	// FindInProgressByID retrieves a transaction that is still InProgress;
	// ErrNotFound otherwise.
	FindInProgressByID(ctx context.Context, typeOf TransactionType, id uuid.UUID) (*Transaction, error)

	// Confirm flips an InProgress transaction to Confirmed, recording the
	// result and potential actions. Confirming an already-Confirmed
	// transaction returns the stored document unchanged; confirming a
	// Canceled or Expired one is an ArgumentError.
	Confirm(ctx context.Context, typeOf TransactionType, id uuid.UUID, result TransactionResult, actions *PotentialActions) (*Transaction, error)

	// Cancel flips an InProgress transaction to Canceled, symmetric to
	// Confirm: already-Canceled succeeds, Confirmed or Expired is an
	// ArgumentError.
	Cancel(ctx context.Context, typeOf TransactionType, id uuid.UUID) (*Transaction, error)

	// Return flips a Confirmed transaction to Returned after a refund has
	// settled. Already-Returned succeeds.
	Return(ctx context.Context, typeOf TransactionType, id uuid.UUID) (*Transaction, error)

	// StartExportTasks claims one transaction of the given type and status
	// whose tasks are Unexported, flipping it to Exporting. A nil
	// transaction with a nil error means no work is available.
	StartExportTasks(ctx context.Context, typeOf TransactionType, status TransactionStatus) (*Transaction, error)

	// ReexportTasks resets transactions stuck Exporting longer than the
	// interval back to Unexported, returning how many were reset.
	ReexportTasks(ctx context.Context, interval time.Duration) (int64, error)

	// SetTasksExportedByID marks the transaction's tasks Exported.
	SetTasksExportedByID(ctx context.Context, id uuid.UUID) error

	// MakeExpired flips every InProgress transaction past its deadline to
	// Expired, returning how many were expired.
	MakeExpired(ctx context.Context, now time.Time) (int64, error)

	// Search retrieves transactions matching the conditions, newest first.
	Search(ctx context.Context, conditions TransactionSearchConditions) ([]*Transaction, error)

	// Count counts transactions matching the conditions.
	Count(ctx context.Context, conditions TransactionSearchConditions) (int64, error)
}

// ActionRepository defines the persistence operations on actions.
type ActionRepository interface {
	// Start inserts an action.
	Start(ctx context.Context, action *Action) error

	// StartByIdentifier inserts the action unless one with the same
	// identifier already exists, in which case the existing record is
	// returned. This is the idempotency boundary for settlement attempts.
	StartByIdentifier(ctx context.Context, action *Action) (*Action, error)

	// Complete moves the action to CompletedActionStatus with the result.
	Complete(ctx context.Context, typeOf ActionType, id uuid.UUID, result ActionResult) error

	// Cancel moves the action to CanceledActionStatus.
	Cancel(ctx context.Context, typeOf ActionType, id uuid.UUID) error

	// GiveUp moves the action to FailedActionStatus, preserving the error
	// for diagnosis.
	GiveUp(ctx context.Context, typeOf ActionType, id uuid.UUID, cause string) error

	// FindByID retrieves an action of the given type.
	FindByID(ctx context.Context, typeOf ActionType, id uuid.UUID) (*Action, error)

	// FindByPurpose retrieves every action whose purpose references the
	// transaction.
	FindByPurpose(ctx context.Context, purposeID uuid.UUID) ([]*Action, error)

	// SearchTransferActions retrieves actions matching the conditions,
	// newest first.
	SearchTransferActions(ctx context.Context, conditions ActionSearchConditions) ([]*Action, error)
}

// TaskRepository defines the persistence operations on tasks.
type TaskRepository interface {
	// Create inserts a Ready task.
	Create(ctx context.Context, task *Task) error

	// ClaimOneByName atomically claims one runnable task with the given
	// name: Ready, due, with tries remaining. The claim flips it to Running,
	// increments numberOfTried and decrements the remaining tries.
	// ErrNotFound means nothing is available, which is the normal idle
	// outcome.
	ClaimOneByName(ctx context.Context, name TaskName, now time.Time) (*Task, error)

	// PushExecutionResult appends an execution result and sets the status.
	PushExecutionResult(ctx context.Context, id uuid.UUID, status TaskStatus, result ExecutionResult) error

	// Retry resets tasks with tries remaining that have been stuck Running
	// past the interval back to Ready, returning how many were reset.
	Retry(ctx context.Context, interval time.Duration, now time.Time) (int64, error)

	// AbortOne claims one task with no tries remaining stuck past the
	// interval and flips it to Aborted. A nil task with a nil error means
	// nothing to abort.
	AbortOne(ctx context.Context, interval time.Duration, now time.Time) (*Task, error)

	// FindByID retrieves a task.
	FindByID(ctx context.Context, id uuid.UUID) (*Task, error)
}

// Package deposit implements the deposit transaction use case: an external
// source credits an account.
package deposit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pecorino-jp/ledger/internal/domain"
)

// Service handles deposit transactions
type Service struct {
	accounts     domain.AccountRepository
	transactions domain.TransactionRepository
	now          func() time.Time
}

// NewService creates a new deposit service
func NewService(accounts domain.AccountRepository, transactions domain.TransactionRepository) *Service {
	return &Service{accounts: accounts, transactions: transactions, now: time.Now}
}

// StartInput represents the input for starting a deposit
type StartInput struct {
	TransactionNumber string // optional; enables idempotent retries
	Agent             domain.Participant
	Recipient         domain.Participant
	Amount            decimal.Decimal
	ToAccountNumber   string
	FromName          string // external source of the funds, e.g. a cash desk
	Description       string
	Expires           time.Time
}

// Start opens a deposit: it records the InProgress transaction and places a
// credit-side hold on the destination account. No balance changes yet.
func (s *Service) Start(ctx context.Context, input StartInput) (*domain.Transaction, error) {
	if input.ToAccountNumber == "" {
		return nil, domain.NewArgumentNullError("toAccountNumber")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewArgumentError("amount", "amount must be positive")
	}

	toAccount, err := s.accounts.FindByAccountNumber(ctx, input.ToAccountNumber)
	if err != nil {
		return nil, err
	}

	toLocation := toAccount.Location()
	transaction := &domain.Transaction{
		ID:                uuid.New(),
		TransactionNumber: input.TransactionNumber,
		TypeOf:            domain.TransactionTypeDeposit,
		Status:            domain.TransactionStatusInProgress,
		Agent:             input.Agent,
		Recipient:         input.Recipient,
		Object: domain.TransactionObject{
			Amount:       input.Amount,
			FromLocation: &domain.Location{TypeOf: domain.LocationTypeAnonymous, Name: input.FromName},
			ToLocation:   &toLocation,
			Description:  input.Description,
		},
		Expires:                input.Expires,
		StartDate:              s.now().UTC(),
		TasksExportationStatus: domain.ExportStatusUnexported,
	}

	if err := s.transactions.Start(ctx, transaction); err != nil {
		// ErrDuplicateTransactionNumber propagates as-is so the caller can
		// treat a retried start as already processed.
		return nil, err
	}

	if err := s.accounts.StartTransaction(ctx, toAccount.AccountNumber, transaction.PendingEntry()); err != nil {
		return nil, err
	}

	return transaction, nil
}

// Confirm flips the deposit to Confirmed and attaches its money-transfer
// potential action for later task export.
func (s *Service) Confirm(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	transaction, err := s.transactions.FindInProgressByID(ctx, domain.TransactionTypeDeposit, transactionID)
	if err != nil {
		return nil, err
	}

	attrs, err := domain.NewMoneyTransferAttributes(transaction)
	if err != nil {
		return nil, err
	}

	result := domain.TransactionResult{Amount: transaction.Object.Amount}

	return s.transactions.Confirm(ctx, domain.TransactionTypeDeposit, transactionID, result, &domain.PotentialActions{MoneyTransfer: &attrs})
}

// Cancel flips the deposit to Canceled; the hold is released by the
// exported cancel task.
func (s *Service) Cancel(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	return s.transactions.Cancel(ctx, domain.TransactionTypeDeposit, transactionID)
}

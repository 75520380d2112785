// Package transfer implements the transfer transaction use case: one
// account pays another of the same account type.
package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pecorino-jp/ledger/internal/domain"
)

// Service handles transfer transactions
type Service struct {
	accounts     domain.AccountRepository
	transactions domain.TransactionRepository
	now          func() time.Time
}

// NewService creates a new transfer service
func NewService(accounts domain.AccountRepository, transactions domain.TransactionRepository) *Service {
	return &Service{accounts: accounts, transactions: transactions, now: time.Now}
}

// StartInput represents the input for starting a transfer
type StartInput struct {
	TransactionNumber string
	Agent             domain.Participant
	Recipient         domain.Participant
	Amount            decimal.Decimal
	FromAccountNumber string
	ToAccountNumber   string
	Description       string
	Expires           time.Time
}

// Start opens a transfer: it records the InProgress transaction, authorizes
// the amount on the source account and places a credit-side hold on the
// destination. Settlement happens when the confirmed transaction's task
// executes.
func (s *Service) Start(ctx context.Context, input StartInput) (*domain.Transaction, error) {
	if input.FromAccountNumber == "" {
		return nil, domain.NewArgumentNullError("fromAccountNumber")
	}
	if input.ToAccountNumber == "" {
		return nil, domain.NewArgumentNullError("toAccountNumber")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewArgumentError("amount", "amount must be positive")
	}
	if input.FromAccountNumber == input.ToAccountNumber {
		return nil, domain.NewArgumentError("toAccountNumber", "cannot transfer to the same account")
	}

	fromAccount, err := s.accounts.FindByAccountNumber(ctx, input.FromAccountNumber)
	if err != nil {
		return nil, err
	}
	toAccount, err := s.accounts.FindByAccountNumber(ctx, input.ToAccountNumber)
	if err != nil {
		return nil, err
	}
	if fromAccount.AccountType != toAccount.AccountType {
		return nil, domain.NewArgumentError("toAccountNumber", "account types do not match")
	}

	fromLocation := fromAccount.Location()
	toLocation := toAccount.Location()
	transaction := &domain.Transaction{
		ID:                uuid.New(),
		TransactionNumber: input.TransactionNumber,
		TypeOf:            domain.TransactionTypeTransfer,
		Status:            domain.TransactionStatusInProgress,
		Agent:             input.Agent,
		Recipient:         input.Recipient,
		Object: domain.TransactionObject{
			Amount:       input.Amount,
			FromLocation: &fromLocation,
			ToLocation:   &toLocation,
			Description:  input.Description,
		},
		Expires:                input.Expires,
		StartDate:              s.now().UTC(),
		TasksExportationStatus: domain.ExportStatusUnexported,
	}

	if err := s.transactions.Start(ctx, transaction); err != nil {
		return nil, err
	}

	pending := transaction.PendingEntry()
	if err := s.accounts.AuthorizeAmount(ctx, fromAccount.AccountNumber, pending); err != nil {
		return nil, err
	}
	if err := s.accounts.StartTransaction(ctx, toAccount.AccountNumber, pending); err != nil {
		return nil, err
	}

	return transaction, nil
}

// Confirm flips the transfer to Confirmed and attaches its money-transfer
// potential action.
func (s *Service) Confirm(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	transaction, err := s.transactions.FindInProgressByID(ctx, domain.TransactionTypeTransfer, transactionID)
	if err != nil {
		return nil, err
	}

	attrs, err := domain.NewMoneyTransferAttributes(transaction)
	if err != nil {
		return nil, err
	}

	result := domain.TransactionResult{Amount: transaction.Object.Amount}

	return s.transactions.Confirm(ctx, domain.TransactionTypeTransfer, transactionID, result, &domain.PotentialActions{MoneyTransfer: &attrs})
}

// Cancel flips the transfer to Canceled; both holds are released by the
// exported cancel task.
func (s *Service) Cancel(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	return s.transactions.Cancel(ctx, domain.TransactionTypeTransfer, transactionID)
}

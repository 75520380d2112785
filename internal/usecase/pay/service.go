// Package pay implements the pay transaction use case: an account pays an
// external payee, such as a merchant terminal.
package pay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pecorino-jp/ledger/internal/domain"
)

// Service handles pay transactions
type Service struct {
	accounts     domain.AccountRepository
	transactions domain.TransactionRepository
	now          func() time.Time
}

// NewService creates a new pay service
func NewService(accounts domain.AccountRepository, transactions domain.TransactionRepository) *Service {
	return &Service{accounts: accounts, transactions: transactions, now: time.Now}
}

// StartInput represents the input for starting a payment
type StartInput struct {
	TransactionNumber string
	Agent             domain.Participant
	Recipient         domain.Participant
	Amount            decimal.Decimal
	FromAccountNumber string
	PayeeName         string
	Description       string
	Expires           time.Time
}

// Start opens a payment: it records the InProgress transaction and
// authorizes the amount against the payer's available balance.
func (s *Service) Start(ctx context.Context, input StartInput) (*domain.Transaction, error) {
	if input.FromAccountNumber == "" {
		return nil, domain.NewArgumentNullError("fromAccountNumber")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewArgumentError("amount", "amount must be positive")
	}

	fromAccount, err := s.accounts.FindByAccountNumber(ctx, input.FromAccountNumber)
	if err != nil {
		return nil, err
	}

	fromLocation := fromAccount.Location()
	transaction := &domain.Transaction{
		ID:                uuid.New(),
		TransactionNumber: input.TransactionNumber,
		TypeOf:            domain.TransactionTypePay,
		Status:            domain.TransactionStatusInProgress,
		Agent:             input.Agent,
		Recipient:         input.Recipient,
		Object: domain.TransactionObject{
			Amount:       input.Amount,
			FromLocation: &fromLocation,
			ToLocation:   &domain.Location{TypeOf: domain.LocationTypeAnonymous, Name: input.PayeeName},
			Description:  input.Description,
		},
		Expires:                input.Expires,
		StartDate:              s.now().UTC(),
		TasksExportationStatus: domain.ExportStatusUnexported,
	}

	if err := s.transactions.Start(ctx, transaction); err != nil {
		return nil, err
	}

	if err := s.accounts.AuthorizeAmount(ctx, fromAccount.AccountNumber, transaction.PendingEntry()); err != nil {
		return nil, err
	}

	return transaction, nil
}

// Confirm flips the payment to Confirmed and attaches its money-transfer
// potential action.
func (s *Service) Confirm(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	transaction, err := s.transactions.FindInProgressByID(ctx, domain.TransactionTypePay, transactionID)
	if err != nil {
		return nil, err
	}

	attrs, err := domain.NewMoneyTransferAttributes(transaction)
	if err != nil {
		return nil, err
	}

	result := domain.TransactionResult{Amount: transaction.Object.Amount}

	return s.transactions.Confirm(ctx, domain.TransactionTypePay, transactionID, result, &domain.PotentialActions{MoneyTransfer: &attrs})
}

// Cancel flips the payment to Canceled; the authorization is released by the
// exported cancel task.
func (s *Service) Cancel(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	return s.transactions.Cancel(ctx, domain.TransactionTypePay, transactionID)
}

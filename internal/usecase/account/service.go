// Package account implements the account lifecycle use cases.
package account

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pecorino-jp/ledger/internal/domain"
	"github.com/pecorino-jp/ledger/internal/usecase/accountnumber"
)

// Service handles opening and closing accounts
type Service struct {
	accounts domain.AccountRepository
	issuer   *accountnumber.Issuer
	now      func() time.Time
}

// NewService creates a new account service
func NewService(accounts domain.AccountRepository, issuer *accountnumber.Issuer) *Service {
	return &Service{accounts: accounts, issuer: issuer, now: time.Now}
}

// OpenInput represents the input for opening an account
type OpenInput struct {
	Name           string
	AccountType    string
	InitialBalance decimal.Decimal
}

// Open publishes a fresh account number and creates the account with both
// balances set to the initial balance.
func (s *Service) Open(ctx context.Context, input OpenInput) (*domain.Account, error) {
	if input.Name == "" {
		return nil, domain.NewArgumentNullError("name")
	}
	if input.AccountType == "" {
		return nil, domain.NewArgumentNullError("accountType")
	}
	if input.InitialBalance.IsNegative() {
		return nil, domain.NewArgumentError("initialBalance", "initial balance cannot be negative")
	}

	now := s.now().UTC()
	accountNumber, err := s.issuer.Publish(ctx, now)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		ID:               uuid.New(),
		AccountNumber:    accountNumber,
		AccountType:      input.AccountType,
		Name:             input.Name,
		Balance:          input.InitialBalance,
		AvailableBalance: input.InitialBalance,
		Status:           domain.AccountStatusOpened,
		OpenDate:         now,
	}

	if err := s.accounts.Open(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// Close closes the account. Closing twice succeeds; closing with holds
// outstanding fails.
func (s *Service) Close(ctx context.Context, accountNumber string) error {
	if accountNumber == "" {
		return domain.NewArgumentNullError("accountNumber")
	}

	return s.accounts.Close(ctx, accountNumber)
}

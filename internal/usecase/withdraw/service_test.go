package withdraw

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/pecorino-jp/ledger/internal/domain"
)

// MockAccountRepository is a mock implementation of AccountRepository for testing
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Open(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) Close(ctx context.Context, accountNumber string) error {
	args := m.Called(ctx, accountNumber)
	return args.Error(0)
}

func (m *MockAccountRepository) AuthorizeAmount(ctx context.Context, accountNumber string, pending domain.PendingTransaction) error {
	args := m.Called(ctx, accountNumber, pending)
	return args.Error(0)
}

func (m *MockAccountRepository) StartTransaction(ctx context.Context, accountNumber string, pending domain.PendingTransaction) error {
	args := m.Called(ctx, accountNumber, pending)
	return args.Error(0)
}

func (m *MockAccountRepository) SettleTransaction(ctx context.Context, movement domain.MoneyMovement) (domain.SettleOutcome, error) {
	args := m.Called(ctx, movement)
	return args.Get(0).(domain.SettleOutcome), args.Error(1)
}

func (m *MockAccountRepository) VoidTransaction(ctx context.Context, movement domain.MoneyMovement) (domain.SettleOutcome, error) {
	args := m.Called(ctx, movement)
	return args.Get(0).(domain.SettleOutcome), args.Error(1)
}

func (m *MockAccountRepository) FindByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	args := m.Called(ctx, accountNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) Search(ctx context.Context, conditions domain.AccountSearchConditions) ([]*domain.Account, error) {
	args := m.Called(ctx, conditions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) Count(ctx context.Context, conditions domain.AccountSearchConditions) (int64, error) {
	args := m.Called(ctx, conditions)
	return args.Get(0).(int64), args.Error(1)
}

// MockTransactionRepository is a mock implementation of TransactionRepository for testing
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Start(ctx context.Context, transaction *domain.Transaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockTransactionRepository) FindByID(ctx context.Context, typeOf domain.TransactionType, id uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, typeOf, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindInProgressByID(ctx context.Context, typeOf domain.TransactionType, id uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, typeOf, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Confirm(ctx context.Context, typeOf domain.TransactionType, id uuid.UUID, result domain.TransactionResult, actions *domain.PotentialActions) (*domain.Transaction, error) {
	args := m.Called(ctx, typeOf, id, result, actions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Cancel(ctx context.Context, typeOf domain.TransactionType, id uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, typeOf, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Return(ctx context.Context, typeOf domain.TransactionType, id uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, typeOf, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) StartExportTasks(ctx context.Context, typeOf domain.TransactionType, status domain.TransactionStatus) (*domain.Transaction, error) {
	args := m.Called(ctx, typeOf, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ReexportTasks(ctx context.Context, interval time.Duration) (int64, error) {
	args := m.Called(ctx, interval)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) SetTasksExportedByID(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTransactionRepository) MakeExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) Search(ctx context.Context, conditions domain.TransactionSearchConditions) ([]*domain.Transaction, error) {
	args := m.Called(ctx, conditions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Count(ctx context.Context, conditions domain.TransactionSearchConditions) (int64, error) {
	args := m.Called(ctx, conditions)
	return args.Get(0).(int64), args.Error(1)
}

func openedAccount(accountNumber string) *domain.Account {
	return &domain.Account{
		ID:               uuid.New(),
		AccountNumber:    accountNumber,
		AccountType:      "Point",
		Name:             "Taro Yamada",
		Balance:          decimal.NewFromInt(1000),
		AvailableBalance: decimal.NewFromInt(1000),
		Status:           domain.AccountStatusOpened,
		OpenDate:         time.Now().UTC(),
	}
}


func TestStart_AuthorizesAmount(t *testing.T) {
	ctx := context.Background()
	mockAccountRepo := new(MockAccountRepository)
	mockTxRepo := new(MockTransactionRepository)
	service := NewService(mockAccountRepo, mockTxRepo)

	fromAccount := openedAccount("12345678901")
	mockAccountRepo.On("FindByAccountNumber", ctx, "12345678901").Return(fromAccount, nil)

	mockTxRepo.On("Start", ctx, mock.MatchedBy(func(tx *domain.Transaction) bool {
		return tx.TypeOf == domain.TransactionTypeWithdraw &&
			tx.Object.FromLocation.AccountNumber == "12345678901" &&
			tx.Object.ToLocation.TypeOf == domain.LocationTypeAnonymous &&
			tx.Object.ToLocation.Name == "ATM"
	})).Return(nil)

	mockAccountRepo.On("AuthorizeAmount", ctx, "12345678901", mock.MatchedBy(func(pending domain.PendingTransaction) bool {
		return pending.TypeOf == domain.TransactionTypeWithdraw &&
			pending.Amount.Equal(decimal.NewFromInt(300))
	})).Return(nil)

	_, err := service.Start(ctx, StartInput{
		Agent:             domain.Participant{Name: "Taro Yamada"},
		Recipient:         domain.Participant{Name: "Taro Yamada"},
		Amount:            decimal.NewFromInt(300),
		FromAccountNumber: "12345678901",
		ToName:            "ATM",
		Expires:           time.Now().Add(time.Hour),
	})

	assert.NoError(t, err)
	mockAccountRepo.AssertExpectations(t)
	mockTxRepo.AssertExpectations(t)
}

func TestStart_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	mockAccountRepo := new(MockAccountRepository)
	mockTxRepo := new(MockTransactionRepository)
	service := NewService(mockAccountRepo, mockTxRepo)

	mockAccountRepo.On("FindByAccountNumber", ctx, "12345678901").Return(openedAccount("12345678901"), nil)
	mockTxRepo.On("Start", ctx, mock.Anything).Return(nil)
	mockAccountRepo.On("AuthorizeAmount", ctx, "12345678901", mock.Anything).
		Return(domain.NewArgumentError("amount", "insufficient balance"))

	_, err := service.Start(ctx, StartInput{
		Amount:            decimal.NewFromInt(5000),
		FromAccountNumber: "12345678901",
		Expires:           time.Now().Add(time.Hour),
	})

	assert.True(t, domain.IsArgument(err))
}

func TestStart_MissingFromAccountNumber(t *testing.T) {
	service := NewService(new(MockAccountRepository), new(MockTransactionRepository))

	_, err := service.Start(context.Background(), StartInput{Amount: decimal.NewFromInt(100)})

	assert.True(t, domain.IsArgument(err))
}

func TestConfirm_AttachesMoneyTransferAction(t *testing.T) {
	ctx := context.Background()
	mockTxRepo := new(MockTransactionRepository)
	service := NewService(new(MockAccountRepository), mockTxRepo)

	transactionID := uuid.New()
	inProgress := &domain.Transaction{
		ID:     transactionID,
		TypeOf: domain.TransactionTypeWithdraw,
		Status: domain.TransactionStatusInProgress,
		Object: domain.TransactionObject{
			Amount: decimal.NewFromInt(300),
			FromLocation: &domain.Location{
				TypeOf:        domain.LocationTypeAccount,
				AccountType:   "Point",
				AccountNumber: "12345678901",
			},
			ToLocation: &domain.Location{TypeOf: domain.LocationTypeAnonymous, Name: "ATM"},
		},
	}
	confirmed := &domain.Transaction{ID: transactionID, Status: domain.TransactionStatusConfirmed}

	mockTxRepo.On("FindInProgressByID", ctx, domain.TransactionTypeWithdraw, transactionID).Return(inProgress, nil)
	mockTxRepo.On("Confirm", ctx, domain.TransactionTypeWithdraw, transactionID,
		domain.TransactionResult{Amount: decimal.NewFromInt(300)},
		mock.MatchedBy(func(actions *domain.PotentialActions) bool {
			attrs := actions.MoneyTransfer
			return attrs != nil &&
				attrs.AccountType == "Point" &&
				attrs.FromLocation.AccountNumber == "12345678901"
		})).Return(confirmed, nil)

	result, err := service.Confirm(ctx, transactionID)

	assert.NoError(t, err)
	assert.Equal(t, confirmed, result)
}

func TestCancel_Delegates(t *testing.T) {
	ctx := context.Background()
	mockTxRepo := new(MockTransactionRepository)
	service := NewService(new(MockAccountRepository), mockTxRepo)

	transactionID := uuid.New()
	canceled := &domain.Transaction{ID: transactionID, Status: domain.TransactionStatusCanceled}
	mockTxRepo.On("Cancel", ctx, domain.TransactionTypeWithdraw, transactionID).Return(canceled, nil)

	result, err := service.Cancel(ctx, transactionID)

	assert.NoError(t, err)
	assert.Equal(t, canceled, result)
}

package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewMoneyTransferAttributes_AccountTypeFromFromLocation(t *testing.T) {
	transaction := &Transaction{
		ID:                uuid.New(),
		TransactionNumber: "WDR-001",
		TypeOf:            TransactionTypeWithdraw,
		Agent:             Participant{Name: "Taro Yamada"},
		Recipient:         Participant{Name: "Taro Yamada"},
		Object: TransactionObject{
			Amount: decimal.NewFromInt(300),
			FromLocation: &Location{
				TypeOf:        LocationTypeAccount,
				AccountType:   "Point",
				AccountNumber: "12345678901",
			},
			ToLocation: &Location{TypeOf: LocationTypeAnonymous, Name: "ATM"},
		},
	}

	attrs, err := NewMoneyTransferAttributes(transaction)

	assert.NoError(t, err)
	assert.Equal(t, ActionTypeMoneyTransfer, attrs.TypeOf)
	assert.Equal(t, transaction.ID.String(), attrs.Identifier)
	assert.Equal(t, "Point", attrs.AccountType)
	assert.Equal(t, "12345678901", attrs.FromLocation.AccountNumber)
	assert.Equal(t, transaction.ID, attrs.Purpose.ID)
	assert.Equal(t, "WDR-001", attrs.Purpose.TransactionNumber)
}

func TestNewMoneyTransferAttributes_AccountTypeFromToLocation(t *testing.T) {
	transaction := &Transaction{
		ID:     uuid.New(),
		TypeOf: TransactionTypeDeposit,
		Object: TransactionObject{
			Amount:       decimal.NewFromInt(100),
			FromLocation: &Location{TypeOf: LocationTypeAnonymous, Name: "Cash Desk"},
			ToLocation: &Location{
				TypeOf:        LocationTypeAccount,
				AccountType:   "Coin",
				AccountNumber: "22222222222",
			},
		},
	}

	attrs, err := NewMoneyTransferAttributes(transaction)

	assert.NoError(t, err)
	assert.Equal(t, "Coin", attrs.AccountType)
}

func TestNewMoneyTransferAttributes_NoAccountBackedLocation(t *testing.T) {
	transaction := &Transaction{
		ID:     uuid.New(),
		TypeOf: TransactionTypeDeposit,
		Object: TransactionObject{
			Amount:       decimal.NewFromInt(100),
			FromLocation: &Location{TypeOf: LocationTypeAnonymous},
			ToLocation:   &Location{TypeOf: LocationTypeAnonymous},
		},
	}

	_, err := NewMoneyTransferAttributes(transaction)

	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestNewAction(t *testing.T) {
	startDate := time.Now().UTC()
	attrs := MoneyTransferAttributes{
		TypeOf:     ActionTypeMoneyTransfer,
		Identifier: "some-identifier",
		Amount:     decimal.NewFromInt(100),
	}

	action := NewAction(attrs, startDate)

	assert.NotEqual(t, uuid.Nil, action.ID)
	assert.Equal(t, "some-identifier", action.Identifier)
	assert.Equal(t, ActionStatusActive, action.Status)
	assert.Equal(t, startDate, action.StartDate)
	assert.Nil(t, action.Result)
}

func TestTask_LastError(t *testing.T) {
	task := NewTask(TaskNameMoneyTransfer, time.Now(), 10, nil)
	assert.Empty(t, task.LastError())

	task.ExecutionResults = append(task.ExecutionResults,
		ExecutionResult{Error: "first failure"},
		ExecutionResult{Error: "second failure"},
	)
	assert.Equal(t, "second failure", task.LastError())
}

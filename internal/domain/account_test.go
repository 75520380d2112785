package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAccount_Validate(t *testing.T) {
	valid := Account{
		ID:               uuid.New(),
		AccountNumber:    "12345678901",
		AccountType:      "Point",
		Name:             "Taro Yamada",
		Balance:          decimal.NewFromInt(100),
		AvailableBalance: decimal.NewFromInt(100),
		Status:           AccountStatusOpened,
	}

	assert.NoError(t, valid.Validate())

	missingNumber := valid
	missingNumber.AccountNumber = ""
	assert.EqualError(t, missingNumber.Validate(), "account number cannot be empty")

	negativeBalance := valid
	negativeBalance.Balance = decimal.NewFromInt(-1)
	assert.EqualError(t, negativeBalance.Validate(), "balance cannot be negative")

	negativeAvailable := valid
	negativeAvailable.AvailableBalance = decimal.NewFromInt(-1)
	assert.EqualError(t, negativeAvailable.Validate(), "available balance cannot be negative")
}

func TestAccount_Location(t *testing.T) {
	account := Account{
		AccountNumber: "12345678901",
		AccountType:   "Point",
		Name:          "Taro Yamada",
	}

	location := account.Location()

	assert.True(t, location.IsAccount())
	assert.Equal(t, "12345678901", location.AccountNumber)
	assert.Equal(t, "Point", location.AccountType)
	assert.Equal(t, "Taro Yamada", location.Name)
}

// Package accountnumber publishes collision-resistant, check-digit-verified
// account numbers.
//
// A published number is built from a per-day atomic sequence: the date
// digits (YYMMDD) plus the zero-padded sequence form a 10-digit string, a
// weighted check digit is computed over it, the digits are shuffled by one
// of ten fixed permutation tables selected by that check digit, and the
// check digit is prefixed. The permutation is a deterministic bijection, so
// the same date and sequence always yield the same number and Decompose can
// reconstruct the raw digits for verification.
package accountnumber

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pecorino-jp/ledger/internal/domain"
)

const (
	datePrefixFormat = "060102"
	sequenceWidth    = 4
	rawDigits        = 10
	maxSequence      = 9999
)

// checkDigitWeights are applied to the reversed raw digits; the weighted sum
// mod 11 (10 mapped to 0) is the check digit.
var checkDigitWeights = [rawDigits]int{3, 1, 4, 2, 4, 1, 5, 4, 5, 3}

// permutationTables maps a check digit to the digit-position shuffle applied
// to the raw number. Each row is a bijection of positions 0..9.
var permutationTables = [10][rawDigits]int{
	{9, 2, 7, 4, 1, 6, 3, 0, 5, 8},
	{3, 8, 1, 6, 9, 0, 5, 2, 7, 4},
	{5, 0, 9, 2, 7, 4, 1, 8, 3, 6},
	{7, 4, 3, 0, 5, 8, 9, 6, 1, 2},
	{1, 6, 5, 8, 3, 2, 7, 4, 9, 0},
	{8, 3, 0, 5, 2, 9, 6, 1, 4, 7},
	{2, 7, 6, 9, 4, 1, 0, 3, 8, 5},
	{4, 9, 8, 1, 6, 3, 2, 5, 0, 7},
	{6, 1, 4, 3, 8, 5, 0, 9, 2, 7},
	{0, 5, 2, 7, 6, 9, 8, 3, 1, 4},
}

// Sequencer issues the next per-day sequence number. Increments must be
// atomic; concurrent publishes for the same date must never collide.
type Sequencer interface {
	Next(ctx context.Context, date time.Time) (int64, error)
}

// Issuer publishes account numbers.
type Issuer struct {
	sequencer Sequencer
}

// NewIssuer creates a new issuer on top of the sequencer
func NewIssuer(sequencer Sequencer) *Issuer {
	return &Issuer{sequencer: sequencer}
}

// Publish issues a new account number for the given date
func (i *Issuer) Publish(ctx context.Context, date time.Time) (string, error) {
	sequence, err := i.sequencer.Next(ctx, date)
	if err != nil {
		return "", err
	}

	return Compose(date, sequence)
}

// Compose deterministically builds the account number for a date and
// sequence.
func Compose(date time.Time, sequence int64) (string, error) {
	if sequence <= 0 || sequence > maxSequence {
		return "", domain.NewArgumentError("sequence", fmt.Sprintf("sequence must be between 1 and %d", maxSequence))
	}

	raw := date.Format(datePrefixFormat) + fmt.Sprintf("%0*d", sequenceWidth, sequence)
	checkDigit := ComputeCheckDigit(raw)

	table := permutationTables[checkDigit]
	permuted := make([]byte, rawDigits)
	for i := 0; i < rawDigits; i++ {
		permuted[i] = raw[table[i]]
	}

	return fmt.Sprintf("%d%s", checkDigit, permuted), nil
}

// Decompose reverses the permutation of an account number and returns the
// raw date+sequence digits, verifying the check digit on the way.
func Decompose(accountNumber string) (string, error) {
	if len(accountNumber) != rawDigits+1 {
		return "", domain.NewArgumentError("accountNumber", "account number must be 11 digits")
	}
	for _, c := range accountNumber {
		if c < '0' || c > '9' {
			return "", domain.NewArgumentError("accountNumber", "account number must contain only digits")
		}
	}

	checkDigit := int(accountNumber[0] - '0')
	table := permutationTables[checkDigit]

	raw := make([]byte, rawDigits)
	for i := 0; i < rawDigits; i++ {
		raw[table[i]] = accountNumber[i+1]
	}

	if ComputeCheckDigit(string(raw)) != checkDigit {
		return "", domain.NewArgumentError("accountNumber", "check digit mismatch")
	}

	return string(raw), nil
}

// Verify reports whether the account number is well-formed
func Verify(accountNumber string) bool {
	_, err := Decompose(accountNumber)
	return err == nil
}

// ComputeCheckDigit computes the weighted-sum check digit over a 10-digit
// string: weights over the reversed digits, mod 11, 10 mapped to 0.
func ComputeCheckDigit(raw string) int {
	reversed := reverse(raw)

	sum := 0
	for i := 0; i < len(reversed) && i < rawDigits; i++ {
		sum += int(reversed[i]-'0') * checkDigitWeights[i]
	}

	digit := sum % 11
	if digit == 10 {
		digit = 0
	}

	return digit
}

func reverse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := len(s) - 1; i >= 0; i-- {
		b.WriteByte(s[i])
	}

	return b.String()
}

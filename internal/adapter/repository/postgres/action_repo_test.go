package postgres

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pecorino-jp/ledger/internal/domain"
)

// stubRow feeds scanAction a raw row. A nil value is a NULL column: it only
// converts into the sql.Null wrappers or a byte slice, the same rule
// database/sql applies.
type stubRow struct {
	values []any
}

func (r *stubRow) Scan(dest ...any) error {
	if len(dest) != len(r.values) {
		return fmt.Errorf("expected %d destinations, got %d", len(r.values), len(dest))
	}
	for i, d := range dest {
		v := r.values[i]
		if v == nil {
			switch target := d.(type) {
			case *sql.NullString:
				*target = sql.NullString{}
			case *sql.NullTime:
				*target = sql.NullTime{}
			case *[]byte:
				*target = nil
			default:
				return fmt.Errorf("converting NULL to %T is unsupported", d)
			}
			continue
		}
		switch target := d.(type) {
		case *uuid.UUID:
			*target = v.(uuid.UUID)
		case *string:
			*target = v.(string)
		case *[]byte:
			*target = []byte(v.(string))
		case *time.Time:
			*target = v.(time.Time)
		case *sql.NullString:
			*target = sql.NullString{String: v.(string), Valid: true}
		case *sql.NullTime:
			*target = sql.NullTime{Time: v.(time.Time), Valid: true}
		default:
			return fmt.Errorf("unsupported destination %T", d)
		}
	}
	return nil
}

// Row values in actionColumns order.
func activeActionRow(id uuid.UUID, startDate time.Time) *stubRow {
	return &stubRow{values: []any{
		id,
		id.String(),
		string(domain.ActionTypeMoneyTransfer),
		string(domain.ActionStatusActive),
		`{"name":"Taro Yamada"}`,
		`{"name":"Hanako Sato"}`,
		"100",
		"Point",
		`{"typeOf":"Account","accountType":"Point","accountNumber":"11111111111"}`,
		`{"typeOf":"Account","accountType":"Point","accountNumber":"22222222222"}`,
		"",
		fmt.Sprintf(`{"typeOf":"Transfer","id":%q}`, id),
		nil, // result
		nil, // error
		startDate,
		nil, // end_date
	}}
}

func TestScanAction_ActiveRowHasNullErrorAndResult(t *testing.T) {
	id := uuid.New()
	startDate := time.Now().UTC().Truncate(time.Second)

	action, err := scanAction(activeActionRow(id, startDate))

	assert.NoError(t, err)
	assert.Equal(t, id, action.ID)
	assert.Equal(t, domain.ActionStatusActive, action.Status)
	assert.Equal(t, "", action.Error)
	assert.Nil(t, action.Result)
	assert.Nil(t, action.EndDate)
	assert.Equal(t, "11111111111", action.FromLocation.AccountNumber)
	assert.Equal(t, "22222222222", action.ToLocation.AccountNumber)
	assert.True(t, action.Amount.Equal(decimal.NewFromInt(100)))
}

func TestScanAction_FailedRowCarriesError(t *testing.T) {
	id := uuid.New()
	startDate := time.Now().UTC().Truncate(time.Second)
	endDate := startDate.Add(time.Minute)

	row := activeActionRow(id, startDate)
	row.values[3] = string(domain.ActionStatusFailed)
	row.values[13] = "deadlock detected"
	row.values[15] = endDate

	action, err := scanAction(row)

	assert.NoError(t, err)
	assert.Equal(t, domain.ActionStatusFailed, action.Status)
	assert.Equal(t, "deadlock detected", action.Error)
	if assert.NotNil(t, action.EndDate) {
		assert.Equal(t, endDate, *action.EndDate)
	}
}

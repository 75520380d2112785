package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/pecorino-jp/ledger/internal/domain"
)

// accountRepository implements domain.AccountRepository.
//
// Every mutation is a conditional UPDATE whose WHERE clause carries the
// balance/status predicate; a miss (zero rows affected) is classified by a
// secondary lookup. Operations touching both the account row and its pending
// rows run inside one database transaction.
type accountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) domain.AccountRepository {
	return &accountRepository{db: db}
}

// Open inserts a new account
func (r *accountRepository) Open(ctx context.Context, account *domain.Account) error {
	if err := account.Validate(); err != nil {
		return domain.NewArgumentError("account", err.Error())
	}

	query := `
		INSERT INTO accounts (id, account_number, account_type, name, balance, available_balance, status, open_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.AccountNumber,
		account.AccountType,
		account.Name,
		account.Balance.String(),
		account.AvailableBalance.String(),
		string(account.Status),
		account.OpenDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

// Close sets the account status to Closed if it is Opened with no holds.
// Closing an already-closed account is a success.
func (r *accountRepository) Close(ctx context.Context, accountNumber string) error {
	now := time.Now().UTC()

	query := `
		UPDATE accounts
		SET status = $2, close_date = $3, updated_at = $3
		WHERE account_number = $1
		  AND status = $4
		  AND NOT EXISTS (SELECT 1 FROM pending_transactions WHERE account_number = $1)
	`

	res, err := r.db.ExecContext(ctx, query, accountNumber, string(domain.AccountStatusClosed), now, string(domain.AccountStatusOpened))
	if err != nil {
		return fmt.Errorf("failed to close account: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return nil
	}

	// Predicate missed: either the account is gone, already Closed, or
	// still holds pending transactions. Re-read to tell which.
	account, err := r.FindByAccountNumber(ctx, accountNumber)
	if err != nil {
		return err
	}
	if account.Status == domain.AccountStatusClosed {
		return nil
	}

	return domain.NewArgumentError("accountNumber", "pending transactions exist")
}

// AuthorizeAmount places a debit-side hold: available balance down, pending
// entry in, settled balance untouched.
func (r *accountRepository) AuthorizeAmount(ctx context.Context, accountNumber string, pending domain.PendingTransaction) error {
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE accounts
		SET available_balance = available_balance - $2, updated_at = $3
		WHERE account_number = $1
		  AND status = $4
		  AND available_balance >= $2
	`

	res, err := tx.ExecContext(ctx, query, accountNumber, pending.Amount.String(), now, string(domain.AccountStatusOpened))
	if err != nil {
		return fmt.Errorf("failed to authorize amount: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return r.classifyHoldFailure(ctx, accountNumber, "amount", "insufficient balance")
	}

	if err := insertPending(ctx, tx, accountNumber, pending, now); err != nil {
		if isUniqueViolation(err) {
			// The same transaction already holds this account; replay.
			return nil
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit authorization: %w", err)
	}

	return nil
}

// StartTransaction places a credit-side hold: pending entry in, no balance
// change.
func (r *accountRepository) StartTransaction(ctx context.Context, accountNumber string, pending domain.PendingTransaction) error {
	now := time.Now().UTC()

	query := `
		INSERT INTO pending_transactions (account_number, transaction_type, transaction_id, amount, created_at)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM accounts WHERE account_number = $1 AND status = $6)
	`

	res, err := r.db.ExecContext(ctx, query,
		accountNumber,
		string(pending.TypeOf),
		pending.ID,
		pending.Amount.String(),
		now,
		string(domain.AccountStatusOpened),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("failed to start transaction on account: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return nil
	}

	return r.classifyHoldFailure(ctx, accountNumber, "accountNumber", "account is not opened")
}

// classifyHoldFailure turns a conditional-update miss into the precise
// error: NotFound when the account is truly absent, "closed" when it is
// Closed, otherwise the supplied argument error.
func (r *accountRepository) classifyHoldFailure(ctx context.Context, accountNumber, argument, message string) error {
	account, err := r.FindByAccountNumber(ctx, accountNumber)
	if err != nil {
		return err
	}
	if account.Status == domain.AccountStatusClosed {
		return domain.NewArgumentError("accountNumber", "account is closed")
	}

	return domain.NewArgumentError(argument, message)
}

// SettleTransaction applies a hold to the settled balance. Each leg runs
// independently and no-ops when its pending entry is already gone. A
// reversal (WithoutHolds) has no pending entries to consume; its legs apply
// directly.
func (r *accountRepository) SettleTransaction(ctx context.Context, movement domain.MoneyMovement) (domain.SettleOutcome, error) {
	now := time.Now().UTC()
	outcome := domain.SettleOutcome{}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return outcome, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if movement.FromAccountNumber != "" {
		apply := movement.WithoutHolds
		if !apply {
			removed, err := deletePending(ctx, tx, movement.FromAccountNumber, movement.TransactionID)
			if err != nil {
				return outcome, err
			}
			apply = removed
		}
		if apply {
			// A held debit already reduced the available balance at
			// authorization time; a reversal reduces both balances here.
			query := `UPDATE accounts SET balance = balance - $2, updated_at = $3 WHERE account_number = $1`
			if movement.WithoutHolds {
				query = `
					UPDATE accounts
					SET balance = balance - $2, available_balance = available_balance - $2, updated_at = $3
					WHERE account_number = $1
				`
			}
			res, err := tx.ExecContext(ctx, query, movement.FromAccountNumber, movement.Amount.String(), now)
			if err != nil {
				return outcome, fmt.Errorf("failed to debit balance: %w", err)
			}
			if affected, _ := res.RowsAffected(); affected == 1 {
				outcome.FromApplied = true
			} else {
				outcome.MissingAccounts = append(outcome.MissingAccounts, movement.FromAccountNumber)
			}
		}
	}

	if movement.ToAccountNumber != "" {
		apply := movement.WithoutHolds
		if !apply {
			removed, err := deletePending(ctx, tx, movement.ToAccountNumber, movement.TransactionID)
			if err != nil {
				return outcome, err
			}
			apply = removed
		}
		if apply {
			query := `
				UPDATE accounts
				SET balance = balance + $2, available_balance = available_balance + $2, updated_at = $3
				WHERE account_number = $1
			`
			res, err := tx.ExecContext(ctx, query, movement.ToAccountNumber, movement.Amount.String(), now)
			if err != nil {
				return outcome, fmt.Errorf("failed to credit balance: %w", err)
			}
			if affected, _ := res.RowsAffected(); affected == 1 {
				outcome.ToApplied = true
			} else {
				outcome.MissingAccounts = append(outcome.MissingAccounts, movement.ToAccountNumber)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return outcome, fmt.Errorf("failed to commit settlement: %w", err)
	}

	return outcome, nil
}

// VoidTransaction releases a hold without settling it. The from leg restores
// the available balance; the to leg only drops its pending entry.
func (r *accountRepository) VoidTransaction(ctx context.Context, movement domain.MoneyMovement) (domain.SettleOutcome, error) {
	now := time.Now().UTC()
	outcome := domain.SettleOutcome{}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return outcome, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if movement.FromAccountNumber != "" {
		removed, err := deletePending(ctx, tx, movement.FromAccountNumber, movement.TransactionID)
		if err != nil {
			return outcome, err
		}
		if removed {
			query := `UPDATE accounts SET available_balance = available_balance + $2, updated_at = $3 WHERE account_number = $1`
			res, err := tx.ExecContext(ctx, query, movement.FromAccountNumber, movement.Amount.String(), now)
			if err != nil {
				return outcome, fmt.Errorf("failed to restore available balance: %w", err)
			}
			if affected, _ := res.RowsAffected(); affected == 1 {
				outcome.FromApplied = true
			} else {
				outcome.MissingAccounts = append(outcome.MissingAccounts, movement.FromAccountNumber)
			}
		}
	}

	if movement.ToAccountNumber != "" {
		removed, err := deletePending(ctx, tx, movement.ToAccountNumber, movement.TransactionID)
		if err != nil {
			return outcome, err
		}
		outcome.ToApplied = removed
	}

	if err := tx.Commit(); err != nil {
		return outcome, fmt.Errorf("failed to commit void: %w", err)
	}

	return outcome, nil
}

// FindByAccountNumber retrieves an account and its pending entries
func (r *accountRepository) FindByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	query := `
		SELECT id, account_number, account_type, name, balance, available_balance, status, open_date, close_date
		FROM accounts
		WHERE account_number = $1
	`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, accountNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", accountNumber, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	pendingQuery := `
		SELECT transaction_type, transaction_id, amount
		FROM pending_transactions
		WHERE account_number = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, pendingQuery, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pending domain.PendingTransaction
		var typeOf, amountStr string
		if err := rows.Scan(&typeOf, &pending.ID, &amountStr); err != nil {
			return nil, fmt.Errorf("failed to scan pending transaction: %w", err)
		}
		pending.TypeOf = domain.TransactionType(typeOf)
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse pending amount: %w", err)
		}
		pending.Amount = amount
		account.PendingTransactions = append(account.PendingTransactions, pending)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending transactions: %w", err)
	}

	return account, nil
}

// Search retrieves accounts matching the conditions, newest first.
// Pending entries are not loaded for listings; use FindByAccountNumber for
// the full document.
func (r *accountRepository) Search(ctx context.Context, conditions domain.AccountSearchConditions) ([]*domain.Account, error) {
	where, args := buildAccountWhere(conditions)

	limit := conditions.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, conditions.Offset)

	query := fmt.Sprintf(`
		SELECT id, account_number, account_type, name, balance, available_balance, status, open_date, close_date
		FROM accounts
		%s
		ORDER BY open_date DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// Count counts accounts matching the conditions
func (r *accountRepository) Count(ctx context.Context, conditions domain.AccountSearchConditions) (int64, error) {
	where, args := buildAccountWhere(conditions)

	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM accounts %s`, where)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}

	return count, nil
}

// rowScanner lets scan helpers accept both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	var balanceStr, availableStr, status string
	var closeDate sql.NullTime

	err := row.Scan(
		&account.ID,
		&account.AccountNumber,
		&account.AccountType,
		&account.Name,
		&balanceStr,
		&availableStr,
		&status,
		&account.OpenDate,
		&closeDate,
	)
	if err != nil {
		return nil, err
	}

	account.Status = domain.AccountStatus(status)
	if closeDate.Valid {
		account.CloseDate = &closeDate.Time
	}

	if account.Balance, err = decimal.NewFromString(balanceStr); err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	if account.AvailableBalance, err = decimal.NewFromString(availableStr); err != nil {
		return nil, fmt.Errorf("failed to parse available balance: %w", err)
	}

	return &account, nil
}

func buildAccountWhere(c domain.AccountSearchConditions) (string, []any) {
	conds := make([]string, 0)
	args := make([]any, 0)

	if c.AccountType != "" {
		args = append(args, c.AccountType)
		conds = append(conds, fmt.Sprintf("account_type = $%d", len(args)))
	}
	if len(c.AccountNumbers) > 0 {
		args = append(args, pq.Array(c.AccountNumbers))
		conds = append(conds, fmt.Sprintf("account_number = ANY($%d)", len(args)))
	}
	if len(c.Statuses) > 0 {
		statuses := make([]string, len(c.Statuses))
		for i, s := range c.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if c.Name != "" {
		args = append(args, c.Name)
		conds = append(conds, fmt.Sprintf("name ILIKE '%%' || $%d || '%%'", len(args)))
	}
	if c.OpenDateFrom != nil {
		args = append(args, *c.OpenDateFrom)
		conds = append(conds, fmt.Sprintf("open_date >= $%d", len(args)))
	}
	if c.OpenDateThrough != nil {
		args = append(args, *c.OpenDateThrough)
		conds = append(conds, fmt.Sprintf("open_date <= $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func insertPending(ctx context.Context, tx *sql.Tx, accountNumber string, pending domain.PendingTransaction, now time.Time) error {
	query := `
		INSERT INTO pending_transactions (account_number, transaction_type, transaction_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := tx.ExecContext(ctx, query, accountNumber, string(pending.TypeOf), pending.ID, pending.Amount.String(), now)
	if err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to insert pending transaction: %w", err)
	}

	return nil
}

func deletePending(ctx context.Context, tx *sql.Tx, accountNumber string, transactionID uuid.UUID) (bool, error) {
	query := `DELETE FROM pending_transactions WHERE account_number = $1 AND transaction_id = $2`

	res, err := tx.ExecContext(ctx, query, accountNumber, transactionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete pending transaction: %w", err)
	}
	affected, _ := res.RowsAffected()

	return affected == 1, nil
}

// isUniqueViolation reports whether err is a postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

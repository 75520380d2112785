package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/pecorino-jp/ledger/internal/domain"
)

const transactionColumns = `id, transaction_number, type_of, status, agent, recipient, amount, from_location, to_location, description, expires, start_date, end_date, result, potential_actions, tasks_exportation_status, tasks_exported_at`

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

// Start inserts a transaction with status InProgress
func (r *transactionRepository) Start(ctx context.Context, transaction *domain.Transaction) error {
	if err := transaction.Validate(); err != nil {
		return domain.NewArgumentError("transaction", err.Error())
	}

	agent, recipient, fromLocation, toLocation, err := marshalParticipants(transaction)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transactions (id, transaction_number, type_of, status, agent, recipient, amount, from_location, to_location, description, expires, start_date, tasks_exportation_status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $12)
	`

	_, err = r.db.ExecContext(ctx, query,
		transaction.ID,
		nullString(transaction.TransactionNumber),
		string(transaction.TypeOf),
		string(domain.TransactionStatusInProgress),
		agent,
		recipient,
		transaction.Object.Amount.String(),
		fromLocation,
		toLocation,
		transaction.Object.Description,
		transaction.Expires,
		transaction.StartDate,
		string(domain.ExportStatusUnexported),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transaction number %s: %w", transaction.TransactionNumber, domain.ErrDuplicateTransactionNumber)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	transaction.Status = domain.TransactionStatusInProgress
	transaction.TasksExportationStatus = domain.ExportStatusUnexported

	return nil
}

// FindByID retrieves a transaction of the given type
func (r *transactionRepository) FindByID(ctx context.Context, typeOf domain.TransactionType, id uuid.UUID) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE type_of = $1 AND id = $2`, transactionColumns)

	transaction, err := scanTransaction(r.db.QueryRowContext(ctx, query, string(typeOf), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return transaction, nil
}

// FindInProgressByID retrieves a transaction that is still InProgress
func (r *transactionRepository) FindInProgressByID(ctx context.Context, typeOf domain.TransactionType, id uuid.UUID) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE type_of = $1 AND id = $2 AND status = $3`, transactionColumns)

	transaction, err := scanTransaction(r.db.QueryRowContext(ctx, query, string(typeOf), id, string(domain.TransactionStatusInProgress)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s in progress: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return transaction, nil
}

// Confirm flips an InProgress transaction to Confirmed, attaching the result
// and the potential actions consumed later by task export.
func (r *transactionRepository) Confirm(ctx context.Context, typeOf domain.TransactionType, id uuid.UUID, result domain.TransactionResult, actions *domain.PotentialActions) (*domain.Transaction, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	var actionsJSON []byte
	if actions != nil {
		if actionsJSON, err = json.Marshal(actions); err != nil {
			return nil, fmt.Errorf("failed to marshal potential actions: %w", err)
		}
	}

	return r.finish(ctx, typeOf, id, domain.TransactionStatusConfirmed, resultJSON, actionsJSON)
}

// Cancel flips an InProgress transaction to Canceled
func (r *transactionRepository) Cancel(ctx context.Context, typeOf domain.TransactionType, id uuid.UUID) (*domain.Transaction, error) {
	return r.finish(ctx, typeOf, id, domain.TransactionStatusCanceled, nil, nil)
}

// finish performs the conditional terminal-state flip shared by Confirm and
// Cancel, then classifies a miss: reaching the target state twice is a
// success, any other terminal state is an ArgumentError.
func (r *transactionRepository) finish(ctx context.Context, typeOf domain.TransactionType, id uuid.UUID, target domain.TransactionStatus, resultJSON, actionsJSON []byte) (*domain.Transaction, error) {
	now := time.Now().UTC()

	query := fmt.Sprintf(`
		UPDATE transactions
		SET status = $3, end_date = $4, result = COALESCE($5, result), potential_actions = COALESCE($6, potential_actions), updated_at = $4
		WHERE type_of = $1 AND id = $2 AND status = $7
		RETURNING %s
	`, transactionColumns)

	transaction, err := scanTransaction(r.db.QueryRowContext(ctx, query,
		string(typeOf), id, string(target), now, nullBytes(resultJSON), nullBytes(actionsJSON), string(domain.TransactionStatusInProgress)))
	if err == nil {
		return transaction, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	current, err := r.FindByID(ctx, typeOf, id)
	if err != nil {
		return nil, err
	}
	if current.Status == target {
		return current, nil
	}

	return nil, domain.NewArgumentError("transactionId", fmt.Sprintf("transaction is already %s", current.Status))
}

// Return flips a Confirmed transaction to Returned
func (r *transactionRepository) Return(ctx context.Context, typeOf domain.TransactionType, id uuid.UUID) (*domain.Transaction, error) {
	now := time.Now().UTC()

	query := fmt.Sprintf(`
		UPDATE transactions
		SET status = $3, updated_at = $4
		WHERE type_of = $1 AND id = $2 AND status = $5
		RETURNING %s
	`, transactionColumns)

	transaction, err := scanTransaction(r.db.QueryRowContext(ctx, query,
		string(typeOf), id, string(domain.TransactionStatusReturned), now, string(domain.TransactionStatusConfirmed)))
	if err == nil {
		return transaction, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	current, err := r.FindByID(ctx, typeOf, id)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.TransactionStatusReturned {
		return current, nil
	}

	return nil, domain.NewArgumentError("transactionId", fmt.Sprintf("cannot return a %s transaction", current.Status))
}

// StartExportTasks claims one exportable transaction, flipping its export
// status to Exporting. Returns (nil, nil) when no work is available.
func (r *transactionRepository) StartExportTasks(ctx context.Context, typeOf domain.TransactionType, status domain.TransactionStatus) (*domain.Transaction, error) {
	now := time.Now().UTC()

	query := fmt.Sprintf(`
		UPDATE transactions
		SET tasks_exportation_status = $1, updated_at = $2
		WHERE id = (
			SELECT id FROM transactions
			WHERE type_of = $3 AND status = $4 AND tasks_exportation_status = $5
			ORDER BY start_date
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s
	`, transactionColumns)

	transaction, err := scanTransaction(r.db.QueryRowContext(ctx, query,
		string(domain.ExportStatusExporting), now, string(typeOf), string(status), string(domain.ExportStatusUnexported)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to start export: %w", err)
	}

	return transaction, nil
}

// ReexportTasks resets transactions stuck Exporting longer than the interval
func (r *transactionRepository) ReexportTasks(ctx context.Context, interval time.Duration) (int64, error) {
	now := time.Now().UTC()

	query := `
		UPDATE transactions
		SET tasks_exportation_status = $1, updated_at = $2
		WHERE tasks_exportation_status = $3 AND updated_at < $4
	`

	res, err := r.db.ExecContext(ctx, query,
		string(domain.ExportStatusUnexported), now, string(domain.ExportStatusExporting), now.Add(-interval))
	if err != nil {
		return 0, fmt.Errorf("failed to reexport tasks: %w", err)
	}
	affected, _ := res.RowsAffected()

	return affected, nil
}

// SetTasksExportedByID marks the transaction's tasks Exported. Unconditional
// so replays are harmless.
func (r *transactionRepository) SetTasksExportedByID(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()

	query := `
		UPDATE transactions
		SET tasks_exportation_status = $2, tasks_exported_at = $3, updated_at = $3
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, string(domain.ExportStatusExported), now); err != nil {
		return fmt.Errorf("failed to set tasks exported: %w", err)
	}

	return nil
}

// MakeExpired flips every InProgress transaction past its deadline to Expired
func (r *transactionRepository) MakeExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE transactions
		SET status = $1, end_date = $2, updated_at = $2
		WHERE status = $3 AND expires < $2
	`

	res, err := r.db.ExecContext(ctx, query,
		string(domain.TransactionStatusExpired), now, string(domain.TransactionStatusInProgress))
	if err != nil {
		return 0, fmt.Errorf("failed to expire transactions: %w", err)
	}
	affected, _ := res.RowsAffected()

	return affected, nil
}

// Search retrieves transactions matching the conditions, newest first
func (r *transactionRepository) Search(ctx context.Context, conditions domain.TransactionSearchConditions) ([]*domain.Transaction, error) {
	where, args := buildTransactionWhere(conditions)

	limit := conditions.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, conditions.Offset)

	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		%s
		ORDER BY start_date DESC
		LIMIT $%d OFFSET $%d
	`, transactionColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]*domain.Transaction, 0)
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return transactions, nil
}

// Count counts transactions matching the conditions
func (r *transactionRepository) Count(ctx context.Context, conditions domain.TransactionSearchConditions) (int64, error) {
	where, args := buildTransactionWhere(conditions)

	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM transactions %s`, where)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return count, nil
}

func buildTransactionWhere(c domain.TransactionSearchConditions) (string, []any) {
	conds := make([]string, 0)
	args := make([]any, 0)

	if len(c.TypesOf) > 0 {
		types := make([]string, len(c.TypesOf))
		for i, t := range c.TypesOf {
			types[i] = string(t)
		}
		args = append(args, pq.Array(types))
		conds = append(conds, fmt.Sprintf("type_of = ANY($%d)", len(args)))
	}
	if len(c.Statuses) > 0 {
		statuses := make([]string, len(c.Statuses))
		for i, s := range c.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if c.TransactionNumber != "" {
		args = append(args, c.TransactionNumber)
		conds = append(conds, fmt.Sprintf("transaction_number = $%d", len(args)))
	}
	if c.StartDateFrom != nil {
		args = append(args, *c.StartDateFrom)
		conds = append(conds, fmt.Sprintf("start_date >= $%d", len(args)))
	}
	if c.StartDateThrough != nil {
		args = append(args, *c.StartDateThrough)
		conds = append(conds, fmt.Sprintf("start_date <= $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var transaction domain.Transaction
	var transactionNumber sql.NullString
	var typeOf, status, exportStatus, amountStr string
	var agentJSON, recipientJSON []byte
	var fromJSON, toJSON, resultJSON, actionsJSON []byte
	var endDate, exportedAt sql.NullTime

	err := row.Scan(
		&transaction.ID,
		&transactionNumber,
		&typeOf,
		&status,
		&agentJSON,
		&recipientJSON,
		&amountStr,
		&fromJSON,
		&toJSON,
		&transaction.Object.Description,
		&transaction.Expires,
		&transaction.StartDate,
		&endDate,
		&resultJSON,
		&actionsJSON,
		&exportStatus,
		&exportedAt,
	)
	if err != nil {
		return nil, err
	}

	transaction.TransactionNumber = transactionNumber.String
	transaction.TypeOf = domain.TransactionType(typeOf)
	transaction.Status = domain.TransactionStatus(status)
	transaction.TasksExportationStatus = domain.ExportStatus(exportStatus)
	if endDate.Valid {
		transaction.EndDate = &endDate.Time
	}
	if exportedAt.Valid {
		transaction.TasksExportedAt = &exportedAt.Time
	}

	if transaction.Object.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	if err := json.Unmarshal(agentJSON, &transaction.Agent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent: %w", err)
	}
	if err := json.Unmarshal(recipientJSON, &transaction.Recipient); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipient: %w", err)
	}
	if len(fromJSON) > 0 {
		transaction.Object.FromLocation = &domain.Location{}
		if err := json.Unmarshal(fromJSON, transaction.Object.FromLocation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal from location: %w", err)
		}
	}
	if len(toJSON) > 0 {
		transaction.Object.ToLocation = &domain.Location{}
		if err := json.Unmarshal(toJSON, transaction.Object.ToLocation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal to location: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		transaction.Result = &domain.TransactionResult{}
		if err := json.Unmarshal(resultJSON, transaction.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	if len(actionsJSON) > 0 {
		transaction.PotentialActions = &domain.PotentialActions{}
		if err := json.Unmarshal(actionsJSON, transaction.PotentialActions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal potential actions: %w", err)
		}
	}

	return &transaction, nil
}

func marshalParticipants(t *domain.Transaction) (agent, recipient, fromLocation, toLocation []byte, err error) {
	if agent, err = json.Marshal(t.Agent); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal agent: %w", err)
	}
	if recipient, err = json.Marshal(t.Recipient); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal recipient: %w", err)
	}
	if t.Object.FromLocation != nil {
		if fromLocation, err = json.Marshal(t.Object.FromLocation); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to marshal from location: %w", err)
		}
	}
	if t.Object.ToLocation != nil {
		if toLocation, err = json.Marshal(t.Object.ToLocation); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to marshal to location: %w", err)
		}
	}

	return agent, recipient, fromLocation, toLocation, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullBytes maps empty JSON payloads to NULL so COALESCE keeps the stored
// column value.
func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

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

const actionColumns = `id, identifier, type_of, status, agent, recipient, amount, account_type, from_location, to_location, description, purpose, result, error, start_date, end_date`

// actionRepository implements domain.ActionRepository
type actionRepository struct {
	db *DB
}

// NewActionRepository creates a new action repository
func NewActionRepository(db *DB) domain.ActionRepository {
	return &actionRepository{db: db}
}

// Start inserts an action
func (r *actionRepository) Start(ctx context.Context, action *domain.Action) error {
	return r.insert(ctx, r.db.DB, action)
}

// StartByIdentifier inserts the action unless one with the same identifier
// exists, in which case the stored record is returned instead. The unique
// index on identifier is what makes settlement attempts idempotent.
func (r *actionRepository) StartByIdentifier(ctx context.Context, action *domain.Action) (*domain.Action, error) {
	if action.Identifier == "" {
		return nil, domain.NewArgumentNullError("identifier")
	}

	if err := r.insert(ctx, r.db.DB, action); err != nil {
		if !isUniqueViolation(err) {
			return nil, err
		}
	} else {
		return action, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM actions WHERE identifier = $1`, actionColumns)

	existing, err := scanAction(r.db.QueryRowContext(ctx, query, action.Identifier))
	if err != nil {
		return nil, fmt.Errorf("failed to get action by identifier: %w", err)
	}

	return existing, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *actionRepository) insert(ctx context.Context, db execer, action *domain.Action) error {
	agent, err := json.Marshal(action.Agent)
	if err != nil {
		return fmt.Errorf("failed to marshal agent: %w", err)
	}
	recipient, err := json.Marshal(action.Recipient)
	if err != nil {
		return fmt.Errorf("failed to marshal recipient: %w", err)
	}
	fromLocation, err := json.Marshal(action.FromLocation)
	if err != nil {
		return fmt.Errorf("failed to marshal from location: %w", err)
	}
	toLocation, err := json.Marshal(action.ToLocation)
	if err != nil {
		return fmt.Errorf("failed to marshal to location: %w", err)
	}
	purpose, err := json.Marshal(action.Purpose)
	if err != nil {
		return fmt.Errorf("failed to marshal purpose: %w", err)
	}

	query := `
		INSERT INTO actions (id, identifier, type_of, status, agent, recipient, amount, account_type, from_location, to_location, description, purpose, start_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = db.ExecContext(ctx, query,
		action.ID,
		action.Identifier,
		string(action.TypeOf),
		string(action.Status),
		agent,
		recipient,
		action.Amount.String(),
		action.AccountType,
		fromLocation,
		toLocation,
		action.Description,
		purpose,
		action.StartDate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to insert action: %w", err)
	}

	return nil
}

// Complete moves the action to CompletedActionStatus with the result
func (r *actionRepository) Complete(ctx context.Context, typeOf domain.ActionType, id uuid.UUID, result domain.ActionResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		UPDATE actions
		SET status = $3, result = $4, end_date = $5
		WHERE type_of = $1 AND id = $2
	`

	return r.exec(ctx, query, string(typeOf), id, string(domain.ActionStatusCompleted), resultJSON, time.Now().UTC())
}

// Cancel moves the action to CanceledActionStatus
func (r *actionRepository) Cancel(ctx context.Context, typeOf domain.ActionType, id uuid.UUID) error {
	query := `
		UPDATE actions
		SET status = $3, end_date = $4
		WHERE type_of = $1 AND id = $2
	`

	return r.exec(ctx, query, string(typeOf), id, string(domain.ActionStatusCanceled), time.Now().UTC())
}

// GiveUp moves the action to FailedActionStatus, preserving the error
func (r *actionRepository) GiveUp(ctx context.Context, typeOf domain.ActionType, id uuid.UUID, cause string) error {
	query := `
		UPDATE actions
		SET status = $3, error = $4, end_date = $5
		WHERE type_of = $1 AND id = $2
	`

	return r.exec(ctx, query, string(typeOf), id, string(domain.ActionStatusFailed), cause, time.Now().UTC())
}

// exec runs a status update that requires the action to exist.
func (r *actionRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update action: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("action: %w", domain.ErrNotFound)
	}

	return nil
}

// FindByID retrieves an action of the given type
func (r *actionRepository) FindByID(ctx context.Context, typeOf domain.ActionType, id uuid.UUID) (*domain.Action, error) {
	query := fmt.Sprintf(`SELECT %s FROM actions WHERE type_of = $1 AND id = $2`, actionColumns)

	action, err := scanAction(r.db.QueryRowContext(ctx, query, string(typeOf), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("action %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get action: %w", err)
	}

	return action, nil
}

// FindByPurpose retrieves every action referencing the transaction
func (r *actionRepository) FindByPurpose(ctx context.Context, purposeID uuid.UUID) ([]*domain.Action, error) {
	query := fmt.Sprintf(`SELECT %s FROM actions WHERE purpose->>'id' = $1 ORDER BY start_date`, actionColumns)

	rows, err := r.db.QueryContext(ctx, query, purposeID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get actions by purpose: %w", err)
	}
	defer rows.Close()

	return collectActions(rows)
}

// SearchTransferActions retrieves actions matching the conditions, newest first
func (r *actionRepository) SearchTransferActions(ctx context.Context, conditions domain.ActionSearchConditions) ([]*domain.Action, error) {
	conds := make([]string, 0)
	args := make([]any, 0)

	if conditions.AccountNumber != "" {
		args = append(args, conditions.AccountNumber)
		conds = append(conds, fmt.Sprintf("(from_location->>'accountNumber' = $%d OR to_location->>'accountNumber' = $%d)", len(args), len(args)))
	}
	if conditions.AccountType != "" {
		args = append(args, conditions.AccountType)
		conds = append(conds, fmt.Sprintf("account_type = $%d", len(args)))
	}
	if conditions.PurposeID != nil {
		args = append(args, conditions.PurposeID.String())
		conds = append(conds, fmt.Sprintf("purpose->>'id' = $%d", len(args)))
	}
	if len(conditions.Statuses) > 0 {
		statuses := make([]string, len(conditions.Statuses))
		for i, s := range conditions.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if conditions.StartDateFrom != nil {
		args = append(args, *conditions.StartDateFrom)
		conds = append(conds, fmt.Sprintf("start_date >= $%d", len(args)))
	}
	if conditions.StartDateThrough != nil {
		args = append(args, *conditions.StartDateThrough)
		conds = append(conds, fmt.Sprintf("start_date <= $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	limit := conditions.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, conditions.Offset)

	query := fmt.Sprintf(`
		SELECT %s FROM actions
		%s
		ORDER BY start_date DESC
		LIMIT $%d OFFSET $%d
	`, actionColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search actions: %w", err)
	}
	defer rows.Close()

	return collectActions(rows)
}

func collectActions(rows *sql.Rows) ([]*domain.Action, error) {
	actions := make([]*domain.Action, 0)
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate actions: %w", err)
	}

	return actions, nil
}

func scanAction(row rowScanner) (*domain.Action, error) {
	var action domain.Action
	var typeOf, status, amountStr string
	var agentJSON, recipientJSON, fromJSON, toJSON, purposeJSON, resultJSON []byte
	// error and end_date are written only when the action fails or ends.
	var actionError sql.NullString
	var endDate sql.NullTime

	err := row.Scan(
		&action.ID,
		&action.Identifier,
		&typeOf,
		&status,
		&agentJSON,
		&recipientJSON,
		&amountStr,
		&action.AccountType,
		&fromJSON,
		&toJSON,
		&action.Description,
		&purposeJSON,
		&resultJSON,
		&actionError,
		&action.StartDate,
		&endDate,
	)
	if err != nil {
		return nil, err
	}

	action.TypeOf = domain.ActionType(typeOf)
	action.Status = domain.ActionStatus(status)
	action.Error = actionError.String
	if endDate.Valid {
		action.EndDate = &endDate.Time
	}

	if action.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	if err := json.Unmarshal(agentJSON, &action.Agent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent: %w", err)
	}
	if err := json.Unmarshal(recipientJSON, &action.Recipient); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipient: %w", err)
	}
	if err := json.Unmarshal(fromJSON, &action.FromLocation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal from location: %w", err)
	}
	if err := json.Unmarshal(toJSON, &action.ToLocation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal to location: %w", err)
	}
	if err := json.Unmarshal(purposeJSON, &action.Purpose); err != nil {
		return nil, fmt.Errorf("failed to unmarshal purpose: %w", err)
	}
	if len(resultJSON) > 0 {
		action.Result = &domain.ActionResult{}
		if err := json.Unmarshal(resultJSON, action.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}

	return &action, nil
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pecorino-jp/ledger/internal/domain"
)

const taskColumns = `id, name, status, runs_at, remaining_number_of_tries, number_of_tried, last_tried_at, execution_results, data`

// taskRepository implements domain.TaskRepository
type taskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) domain.TaskRepository {
	return &taskRepository{db: db}
}

// Create inserts a Ready task
func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	results, err := json.Marshal(task.ExecutionResults)
	if err != nil {
		return fmt.Errorf("failed to marshal execution results: %w", err)
	}

	query := `
		INSERT INTO tasks (id, name, status, runs_at, remaining_number_of_tries, number_of_tried, execution_results, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		task.ID,
		string(task.Name),
		string(task.Status),
		task.RunsAt,
		task.RemainingNumberOfTries,
		task.NumberOfTried,
		results,
		[]byte(task.Data),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

// ClaimOneByName atomically claims one runnable task: Ready, due, tries
// remaining. The claim itself is the synchronization point between
// concurrent workers; SKIP LOCKED keeps them from queueing on each other.
func (r *taskRepository) ClaimOneByName(ctx context.Context, name domain.TaskName, now time.Time) (*domain.Task, error) {
	query := fmt.Sprintf(`
		UPDATE tasks
		SET status = $1, number_of_tried = number_of_tried + 1, remaining_number_of_tries = remaining_number_of_tries - 1, last_tried_at = $2
		WHERE id = (
			SELECT id FROM tasks
			WHERE name = $3 AND status = $4 AND runs_at <= $2 AND remaining_number_of_tries > 0
			ORDER BY runs_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s
	`, taskColumns)

	task, err := scanTask(r.db.QueryRowContext(ctx, query,
		string(domain.TaskStatusRunning), now, string(name), string(domain.TaskStatusReady)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("runnable %s task: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}

	return task, nil
}

// PushExecutionResult appends an execution result and sets the status.
// The task row is never deleted; the result list is the execution history.
func (r *taskRepository) PushExecutionResult(ctx context.Context, id uuid.UUID, status domain.TaskStatus, result domain.ExecutionResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal execution result: %w", err)
	}

	query := `
		UPDATE tasks
		SET status = $2, execution_results = execution_results || $3::jsonb
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id, string(status), resultJSON)
	if err != nil {
		return fmt.Errorf("failed to push execution result: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Retry resets tasks stuck Running past the interval back to Ready
func (r *taskRepository) Retry(ctx context.Context, interval time.Duration, now time.Time) (int64, error) {
	query := `
		UPDATE tasks
		SET status = $1
		WHERE status = $2 AND remaining_number_of_tries > 0 AND last_tried_at < $3
	`

	res, err := r.db.ExecContext(ctx, query,
		string(domain.TaskStatusReady), string(domain.TaskStatusRunning), now.Add(-interval))
	if err != nil {
		return 0, fmt.Errorf("failed to retry tasks: %w", err)
	}
	affected, _ := res.RowsAffected()

	return affected, nil
}

// AbortOne claims one exhausted task stuck past the interval and flips it to
// Aborted. Returns (nil, nil) when nothing is left to abort.
func (r *taskRepository) AbortOne(ctx context.Context, interval time.Duration, now time.Time) (*domain.Task, error) {
	query := fmt.Sprintf(`
		UPDATE tasks
		SET status = $1
		WHERE id = (
			SELECT id FROM tasks
			WHERE status = $2 AND remaining_number_of_tries = 0 AND last_tried_at < $3
			ORDER BY last_tried_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s
	`, taskColumns)

	task, err := scanTask(r.db.QueryRowContext(ctx, query,
		string(domain.TaskStatusAborted), string(domain.TaskStatusRunning), now.Add(-interval)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to abort task: %w", err)
	}

	return task, nil
}

// FindByID retrieves a task
func (r *taskRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var name, status string
	var lastTriedAt sql.NullTime
	var resultsJSON, data []byte

	err := row.Scan(
		&task.ID,
		&name,
		&status,
		&task.RunsAt,
		&task.RemainingNumberOfTries,
		&task.NumberOfTried,
		&lastTriedAt,
		&resultsJSON,
		&data,
	)
	if err != nil {
		return nil, err
	}

	task.Name = domain.TaskName(name)
	task.Status = domain.TaskStatus(status)
	task.Data = json.RawMessage(data)
	if lastTriedAt.Valid {
		task.LastTriedAt = &lastTriedAt.Time
	}
	if err := json.Unmarshal(resultsJSON, &task.ExecutionResults); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution results: %w", err)
	}

	return &task, nil
}

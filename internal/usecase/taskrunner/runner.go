// Package taskrunner claims and executes tasks. Execution is intentionally
// pessimistic: a failed attempt only appends its result and leaves the task
// Running, and the retry sweep is what hands it back to a worker. A crash
// between claim and result is therefore indistinguishable from a failure,
// which is exactly how it is recovered.
package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pecorino-jp/ledger/internal/domain"
)

// Reporter notifies an operator channel about tasks that ran out of tries.
type Reporter interface {
	Report(ctx context.Context, subject, content string) error
}

// Runner drives the task lifecycle.
type Runner struct {
	tasks    domain.TaskRepository
	registry *Registry
	reporter Reporter
	log      *zap.Logger
	now      func() time.Time
}

// NewRunner creates a new task runner. reporter may be nil when no
// notification channel is configured.
func NewRunner(tasks domain.TaskRepository, registry *Registry, reporter Reporter, log *zap.Logger) *Runner {
	return &Runner{
		tasks:    tasks,
		registry: registry,
		reporter: reporter,
		log:      log,
		now:      time.Now,
	}
}

// ExecuteOneByName claims one runnable task with the given name and executes
// it. It reports whether a task was claimed; ErrNotFound from the claim is
// the normal idle outcome, not an error.
func (r *Runner) ExecuteOneByName(ctx context.Context, name domain.TaskName) (bool, error) {
	task, err := r.tasks.ClaimOneByName(ctx, name, r.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, r.Execute(ctx, task)
}

// Execute runs a claimed task. Success moves it to Executed; failure records
// the attempt and leaves it Running for the retry sweep.
func (r *Runner) Execute(ctx context.Context, task *domain.Task) error {
	executedAt := r.now().UTC()

	execErr := r.run(ctx, task)

	result := domain.ExecutionResult{
		ExecutedAt: executedAt,
		EndDate:    r.now().UTC(),
	}
	status := domain.TaskStatusExecuted
	if execErr != nil {
		result.Error = execErr.Error()
		status = domain.TaskStatusRunning
		r.log.Warn("task execution failed",
			zap.String("taskId", task.ID.String()),
			zap.String("name", string(task.Name)),
			zap.Int("numberOfTried", task.NumberOfTried),
			zap.Error(execErr))
	}

	if err := r.tasks.PushExecutionResult(ctx, task.ID, status, result); err != nil {
		return err
	}
	return execErr
}

func (r *Runner) run(ctx context.Context, task *domain.Task) error {
	handler, err := r.registry.Resolve(task.Name)
	if err != nil {
		return err
	}
	return handler(ctx, task.Data)
}

// Retry hands stuck Running tasks with tries remaining back to the workers.
func (r *Runner) Retry(ctx context.Context, interval time.Duration) error {
	reset, err := r.tasks.Retry(ctx, interval, r.now().UTC())
	if err != nil {
		return err
	}
	if reset > 0 {
		r.log.Info("reset stuck tasks", zap.Int64("count", reset))
	}
	return nil
}

// Abort claims one exhausted task, flips it to Aborted and notifies the
// reporter exactly once. The abort itself succeeds even when the
// notification does not.
func (r *Runner) Abort(ctx context.Context, interval time.Duration) (bool, error) {
	task, err := r.tasks.AbortOne(ctx, interval, r.now().UTC())
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	r.log.Error("task aborted",
		zap.String("taskId", task.ID.String()),
		zap.String("name", string(task.Name)),
		zap.Int("numberOfTried", task.NumberOfTried),
		zap.String("lastError", task.LastError()))

	if r.reporter != nil {
		subject := fmt.Sprintf("task %s aborted", task.Name)
		content := fmt.Sprintf("task %s (%s) exhausted its %d tries, last error: %s",
			task.ID, task.Name, task.NumberOfTried, task.LastError())
		if err := r.reporter.Report(ctx, subject, content); err != nil {
			r.log.Error("failed to report aborted task",
				zap.String("taskId", task.ID.String()),
				zap.Error(err))
		}
	}

	return true, nil
}

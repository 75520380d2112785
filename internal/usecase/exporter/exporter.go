// Package exporter turns finished transactions into tasks. Confirmed
// transactions export a moneyTransfer task per potential action; canceled
// and expired ones export a cancelMoneyTransfer task that voids their holds.
// Refund requests queue a returnMoneyTransfer task directly.
package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pecorino-jp/ledger/internal/domain"
)

// defaultMaxTries bounds how often a task is handed to a worker before the
// abort sweep gives up on it.
const defaultMaxTries = 10

// Exporter drains transactions whose tasks are not exported yet.
type Exporter struct {
	transactions domain.TransactionRepository
	tasks        domain.TaskRepository
	log          *zap.Logger
	maxTries     int
	now          func() time.Time
}

// NewExporter creates a new exporter. maxTries <= 0 selects the default.
func NewExporter(transactions domain.TransactionRepository, tasks domain.TaskRepository, log *zap.Logger, maxTries int) *Exporter {
	if maxTries <= 0 {
		maxTries = defaultMaxTries
	}
	return &Exporter{
		transactions: transactions,
		tasks:        tasks,
		log:          log,
		maxTries:     maxTries,
		now:          time.Now,
	}
}

// ExportTasks claims one transaction of the given type and status, creates
// its tasks and marks it Exported. It reports whether a transaction was
// claimed so pollers can tell work from idleness.
func (e *Exporter) ExportTasks(ctx context.Context, typeOf domain.TransactionType, status domain.TransactionStatus) (bool, error) {
	transaction, err := e.transactions.StartExportTasks(ctx, typeOf, status)
	if err != nil {
		return false, err
	}
	if transaction == nil {
		return false, nil
	}

	tasks, err := e.tasksFor(transaction)
	if err != nil {
		return false, err
	}
	for _, task := range tasks {
		if err := e.tasks.Create(ctx, task); err != nil {
			return false, err
		}
	}

	if err := e.transactions.SetTasksExportedByID(ctx, transaction.ID); err != nil {
		return false, err
	}

	e.log.Info("exported transaction tasks",
		zap.String("transactionId", transaction.ID.String()),
		zap.String("typeOf", string(transaction.TypeOf)),
		zap.String("status", string(transaction.Status)),
		zap.Int("tasks", len(tasks)))
	return true, nil
}

func (e *Exporter) tasksFor(t *domain.Transaction) ([]*domain.Task, error) {
	runsAt := e.now().UTC()

	switch t.Status {
	case domain.TransactionStatusConfirmed:
		if t.PotentialActions == nil || t.PotentialActions.MoneyTransfer == nil {
			// Confirmed without a potential action settles nothing.
			return nil, nil
		}
		data, err := json.Marshal(domain.MoneyTransferTaskData{ActionAttributes: *t.PotentialActions.MoneyTransfer})
		if err != nil {
			return nil, err
		}
		return []*domain.Task{domain.NewTask(domain.TaskNameMoneyTransfer, runsAt, e.maxTries, data)}, nil

	case domain.TransactionStatusCanceled, domain.TransactionStatusExpired:
		data, err := json.Marshal(domain.CancelMoneyTransferTaskData{
			Transaction: domain.TransactionRef{TypeOf: t.TypeOf, ID: t.ID},
		})
		if err != nil {
			return nil, err
		}
		return []*domain.Task{domain.NewTask(domain.TaskNameCancelMoneyTransfer, runsAt, e.maxTries, data)}, nil

	default:
		return nil, fmt.Errorf("cannot export tasks for %s transaction: %w", t.Status, domain.ErrNotImplemented)
	}
}

// RequestReturn queues the refund task for a confirmed transaction. The
// refund itself runs through the scheduler like every other settlement, so
// the caller gets the Ready task back, not the moved money.
func (e *Exporter) RequestReturn(ctx context.Context, typeOf domain.TransactionType, id uuid.UUID) (*domain.Task, error) {
	transaction, err := e.transactions.FindByID(ctx, typeOf, id)
	if err != nil {
		return nil, err
	}
	if transaction.Status != domain.TransactionStatusConfirmed &&
		transaction.Status != domain.TransactionStatusReturned {
		return nil, domain.NewArgumentError("transaction",
			fmt.Sprintf("transaction is %s and cannot be returned", transaction.Status))
	}

	data, err := json.Marshal(domain.ReturnMoneyTransferTaskData{
		Purpose: domain.Purpose{
			TypeOf:            transaction.TypeOf,
			ID:                transaction.ID,
			TransactionNumber: transaction.TransactionNumber,
		},
	})
	if err != nil {
		return nil, err
	}

	task := domain.NewTask(domain.TaskNameReturnMoneyTransfer, e.now().UTC(), e.maxTries, data)
	if err := e.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	e.log.Info("queued return task",
		zap.String("transactionId", transaction.ID.String()),
		zap.String("typeOf", string(transaction.TypeOf)))
	return task, nil
}

// Reexport resets transactions stuck Exporting longer than the interval so a
// crashed export gets retried.
func (e *Exporter) Reexport(ctx context.Context, interval time.Duration) error {
	reset, err := e.transactions.ReexportTasks(ctx, interval)
	if err != nil {
		return err
	}
	if reset > 0 {
		e.log.Warn("reset stuck exporting transactions", zap.Int64("count", reset))
	}
	return nil
}

// MakeExpired expires every InProgress transaction past its deadline.
func (e *Exporter) MakeExpired(ctx context.Context) error {
	expired, err := e.transactions.MakeExpired(ctx, e.now().UTC())
	if err != nil {
		return err
	}
	if expired > 0 {
		e.log.Info("expired transactions", zap.Int64("count", expired))
	}
	return nil
}

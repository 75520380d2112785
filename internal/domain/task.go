package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskName enumerates the task kinds the runner can execute.
type TaskName string

const (
	TaskNameMoneyTransfer       TaskName = "moneyTransfer"
	TaskNameCancelMoneyTransfer TaskName = "cancelMoneyTransfer"
	TaskNameReturnMoneyTransfer TaskName = "returnMoneyTransfer"
)

// TaskStatus represents the lifecycle status of a task
type TaskStatus string

const (
	TaskStatusReady    TaskStatus = "Ready"
	TaskStatusRunning  TaskStatus = "Running"
	TaskStatusExecuted TaskStatus = "Executed"
	TaskStatusAborted  TaskStatus = "Aborted"
)

// ExecutionResult records one execution attempt. Error is empty on success.
type ExecutionResult struct {
	ExecutedAt time.Time `json:"executedAt"`
	EndDate    time.Time `json:"endDate"`
	Error      string    `json:"error,omitempty"`
}

// Task is one unit of deferred, retried work. A failed attempt leaves the
// task Running so the retry sweep can hand it back to a worker; a task whose
// tries are exhausted is aborted by the abort sweep, never retried again.
type Task struct {
	ID                     uuid.UUID         `json:"id"`
	Name                   TaskName          `json:"name"`
	Status                 TaskStatus        `json:"status"`
	RunsAt                 time.Time         `json:"runsAt"`
	RemainingNumberOfTries int               `json:"remainingNumberOfTries"`
	NumberOfTried          int               `json:"numberOfTried"`
	LastTriedAt            *time.Time        `json:"lastTriedAt,omitempty"`
	ExecutionResults       []ExecutionResult `json:"executionResults"`
	Data                   json.RawMessage   `json:"data"`
}

// NewTask creates a Ready task carrying the given payload.
func NewTask(name TaskName, runsAt time.Time, tries int, data json.RawMessage) *Task {
	return &Task{
		ID:                     uuid.New(),
		Name:                   name,
		Status:                 TaskStatusReady,
		RunsAt:                 runsAt,
		RemainingNumberOfTries: tries,
		NumberOfTried:          0,
		ExecutionResults:       []ExecutionResult{},
		Data:                   data,
	}
}

// LastError returns the error of the most recent execution attempt.
func (t *Task) LastError() string {
	if len(t.ExecutionResults) == 0 {
		return ""
	}
	return t.ExecutionResults[len(t.ExecutionResults)-1].Error
}

// MoneyTransferTaskData is the payload of a moneyTransfer task.
type MoneyTransferTaskData struct {
	ActionAttributes MoneyTransferAttributes `json:"actionAttributes"`
}

// CancelMoneyTransferTaskData is the payload of a cancelMoneyTransfer task.
type CancelMoneyTransferTaskData struct {
	Transaction TransactionRef `json:"transaction"`
}

// ReturnMoneyTransferTaskData is the payload of a returnMoneyTransfer task.
type ReturnMoneyTransferTaskData struct {
	Purpose Purpose `json:"purpose"`
}

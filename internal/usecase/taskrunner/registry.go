package taskrunner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pecorino-jp/ledger/internal/domain"
)

// Handler executes one task payload.
type Handler func(ctx context.Context, data json.RawMessage) error

// UnregisteredHandlerError is returned when a claimed task names a handler
// nobody registered. It counts as an execution failure, so the task burns a
// try and is eventually aborted rather than looping forever.
type UnregisteredHandlerError struct {
	Name domain.TaskName
}

func (e *UnregisteredHandlerError) Error() string {
	return fmt.Sprintf("no handler registered for task %q", e.Name)
}

// Registry maps task names to handlers. Registration happens at startup;
// the registry is read-only afterwards.
type Registry struct {
	handlers map[domain.TaskName]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.TaskName]Handler)}
}

// Register binds a handler to a task name, replacing any previous binding.
func (r *Registry) Register(name domain.TaskName, handler Handler) {
	r.handlers[name] = handler
}

// Resolve returns the handler for the task name.
func (r *Registry) Resolve(name domain.TaskName) (Handler, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, &UnregisteredHandlerError{Name: name}
	}
	return handler, nil
}

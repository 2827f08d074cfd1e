// Package coordinator implements the Agent Coordinator: a state-keyed
// handler registry the Workflow Orchestrator dispatches through.
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// Handler is a stage's unit of work: given a read-only snapshot of the
// accumulated workflow data, it returns a partial update to merge, or an
// error if the stage failed. Handlers must be safe to re-invoke after a
// retry rewinds the run to an earlier state.
type Handler func(ctx context.Context, data workflow.Data) (workflow.Partial, error)

// Error reports a lookup failure against the registry (HandlerMissing).
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("coordinator: %s: %s", e.Code, e.Message) }

// Coordinator holds no mutable state beyond its registry; it is safe to
// construct once at run start and reuse across retries and resumes.
type Coordinator struct {
	mu       sync.RWMutex
	handlers map[workflow.State]Handler
}

// New returns an empty Coordinator.
func New() *Coordinator {
	return &Coordinator{handlers: make(map[workflow.State]Handler)}
}

// Register associates state with handler, replacing any prior registration
// for the same state.
func (c *Coordinator) Register(state workflow.State, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[state] = handler
}

// Has reports whether state has a registered handler.
func (c *Coordinator) Has(state workflow.State) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.handlers[state]
	return ok
}

// Execute dispatches to the handler registered for state, passing data as a
// read-only snapshot. Returns a HandlerMissing *Error if no handler is
// registered for state.
func (c *Coordinator) Execute(ctx context.Context, state workflow.State, data workflow.Data) (workflow.Partial, error) {
	c.mu.RLock()
	handler, ok := c.handlers[state]
	c.mu.RUnlock()
	if !ok {
		return workflow.Partial{}, &Error{Code: workflow.CodeHandlerMissing, Message: fmt.Sprintf("no handler registered for %s", state)}
	}
	return handler(ctx, data)
}

// RegisteredStates returns every state with a registered handler, sorted
// for deterministic iteration (tests, diagnostics).
func (c *Coordinator) RegisteredStates() []workflow.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	states := make([]workflow.State, 0, len(c.handlers))
	for s := range c.handlers {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	return states
}

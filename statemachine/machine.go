package statemachine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DaniyalFaraz2003/OSC-Agent/store"
	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// Error is the failure mode a transition can report: InvalidTransition,
// GuardRejected, or StorageError.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("statemachine: %s: %s", e.Code, e.Message) }

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Options configures a Machine.
type Options struct {
	// Store is the backing persistence handle. Required.
	Store store.Store
	// RunID identifies the run this machine governs. Required.
	RunID string
	// Guards overrides the default guard set (see defaultGuards). Nil uses
	// the canonical minimum guard set.
	Guards map[workflow.State]Guard
	// Bus receives stateChange notifications. A Bus is created if nil.
	Bus *Bus
	// Now stubs time.Now for tests. Defaults to time.Now.
	Now func() time.Time
}

// Machine owns the authoritative current state of one run: legal-transition
// enforcement, history push/pop, guard evaluation, and persist-after-commit.
type Machine struct {
	store  store.Store
	runID  string
	guards map[workflow.State]Guard
	bus    *Bus
	now    func() time.Time

	current workflow.State
	attempt int
	context map[string]any
	history []workflow.State
	lastErr *workflow.ErrorPayload
}

// New constructs a Machine. Call Initialize before Fire to load any prior
// record for RunID, or to create a fresh IDLE record if none exists.
func New(opts Options) (*Machine, error) {
	if opts.Store == nil {
		return nil, errors.New("statemachine: store is required")
	}
	if opts.RunID == "" {
		return nil, errors.New("statemachine: run id is required")
	}
	guards := opts.Guards
	if guards == nil {
		guards = defaultGuards()
	}
	bus := opts.Bus
	if bus == nil {
		bus = NewBus()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Machine{
		store:   opts.Store,
		runID:   opts.RunID,
		guards:  guards,
		bus:     bus,
		now:     now,
		current: workflow.StateIdle,
		attempt: 1,
		context: map[string]any{},
		history: nil,
	}, nil
}

// Bus returns the machine's event bus, for subscriber registration.
func (m *Machine) Bus() *Bus { return m.bus }

// RunID returns the run this machine governs.
func (m *Machine) RunID() string { return m.runID }

// Initialize loads a prior record for RunID from the store, if one exists,
// restoring current state, attempt, context, and history exactly — a
// machine built against the same store picks up where the last one
// committed. If no record exists, the machine stays
// at its freshly-constructed IDLE state and nothing is written yet — the
// first Save happens on the first committed transition.
func (m *Machine) Initialize(ctx context.Context) error {
	record, found, err := m.store.Load(ctx)
	if err != nil {
		return newError(workflow.CodeStorageError, "load: %v", err)
	}
	if !found {
		return nil
	}
	m.current = record.CurrentState
	m.attempt = record.Attempt
	if m.attempt <= 0 {
		m.attempt = 1
	}
	m.context = cloneContext(record.Context)
	m.history = append([]workflow.State(nil), record.History...)
	m.lastErr = record.Error
	return nil
}

// State returns the current state.
func (m *Machine) State() workflow.State { return m.current }

// Attempt returns the current attempt count.
func (m *Machine) Attempt() int { return m.attempt }

// Context returns a defensive copy of the merged run context.
func (m *Machine) Context() map[string]any { return cloneContext(m.context) }

// History returns a defensive copy of the pushed history.
func (m *Machine) History() []workflow.State {
	return append([]workflow.State(nil), m.history...)
}

// LastError returns the error payload recorded by the most recent FAIL
// transition, or nil if none has been recorded (or it was cleared by a
// subsequent RETRY/RESUME).
func (m *Machine) LastError() *workflow.ErrorPayload { return m.lastErr }

// Record builds a workflow.Record snapshot of the machine's current state,
// the same shape that would be persisted.
func (m *Machine) Record() workflow.Record {
	return workflow.Record{
		RunID:        m.runID,
		CurrentState: m.current,
		UpdatedAt:    m.now().UTC(),
		Attempt:      m.attempt,
		Context:      cloneContext(m.context),
		History:      append([]workflow.State(nil), m.history...),
		Error:        m.lastErr,
	}
}

// Fire attempts trigger from the current state, merging payload into the
// run context on success. ctx is the context.Context governing the store
// write and event delivery; payload is a workflow-data overlay merged
// shallowly, last-writer-wins, into the stored context.
//
// On success the new state is committed to the store before the stateChange
// event fires; if the store write fails the in-memory state is left exactly
// as it was before Fire was called.
func (m *Machine) Fire(ctx context.Context, trigger workflow.Trigger, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}

	from := m.current
	next, newHistory, clearErr, err := m.resolve(trigger)
	if err != nil {
		return err
	}

	mergedContext := workflow.MergeContext(m.context, payload)
	if guard, ok := m.guards[next]; ok && !guard(mergedContext) {
		return newError(workflow.CodeGuardRejected, "guard rejected for %s", next)
	}

	newAttempt := m.attempt
	if trigger == workflow.TriggerRetry {
		newAttempt++
	}
	newLastErr := m.lastErr
	if clearErr {
		newLastErr = nil
	}

	record := workflow.Record{
		RunID:        m.runID,
		CurrentState: next,
		UpdatedAt:    m.now().UTC(),
		Attempt:      newAttempt,
		Context:      mergedContext,
		History:      newHistory,
		Error:        newLastErr,
	}
	if err := m.store.Save(ctx, record); err != nil {
		return newError(workflow.CodeStorageError, "save: %v", err)
	}

	m.current = next
	m.attempt = newAttempt
	m.context = mergedContext
	m.history = newHistory
	m.lastErr = newLastErr

	m.bus.Publish(ctx, ChangeEvent{
		RunID:     m.runID,
		From:      from,
		To:        next,
		Trigger:   trigger,
		Timestamp: m.now().UTC().UnixMilli(),
	})
	return nil
}

// FireError commits a FAIL transition carrying the given classification as
// the recorded error payload. A convenience over Fire for the orchestrator's
// handler-failure path, which always fires FAIL with an error attached.
func (m *Machine) FireError(ctx context.Context, payload *workflow.ErrorPayload, contextPatch map[string]any) error {
	if contextPatch == nil {
		contextPatch = map[string]any{}
	}
	from := m.current
	if from.Control() {
		return newError(workflow.CodeInvalidTransition, "no transition for FAIL from %s", from)
	}
	mergedContext := workflow.MergeContext(m.context, contextPatch)
	newHistory := pushHistory(m.history, from)

	record := workflow.Record{
		RunID:        m.runID,
		CurrentState: workflow.StateError,
		UpdatedAt:    m.now().UTC(),
		Attempt:      m.attempt,
		Context:      mergedContext,
		History:      newHistory,
		Error:        payload,
	}
	if err := m.store.Save(ctx, record); err != nil {
		return newError(workflow.CodeStorageError, "save: %v", err)
	}

	m.current = workflow.StateError
	m.context = mergedContext
	m.history = newHistory
	m.lastErr = payload

	m.bus.Publish(ctx, ChangeEvent{
		RunID:     m.runID,
		From:      from,
		To:        workflow.StateError,
		Trigger:   workflow.TriggerFail,
		Timestamp: m.now().UTC().UnixMilli(),
	})
	return nil
}

// resolve computes the destination state, the next history slice, and
// whether the recorded error should be cleared, for trigger fired from the
// current state. It does not mutate the machine or touch the store.
//
// History bookkeeping: a trigger moving away from an operational state
// pushes that state; RESUME pops the tail, falling through to IDLE on an
// empty history; RETRY leaves history untouched, since the canonical retry
// target is always defined.
func (m *Machine) resolve(trigger workflow.Trigger) (next workflow.State, history []workflow.State, clearErr bool, err error) {
	current := m.current

	switch trigger {
	case workflow.TriggerPause:
		if current.Control() || current == workflow.StateDone {
			return "", nil, false, newError(workflow.CodeInvalidTransition, "no transition for PAUSE from %s", current)
		}
		return workflow.StatePaused, pushHistory(m.history, current), false, nil

	case workflow.TriggerCancel:
		if current.Control() || current == workflow.StateDone {
			return "", nil, false, newError(workflow.CodeInvalidTransition, "no transition for CANCEL from %s", current)
		}
		return workflow.StateCancelled, pushHistory(m.history, current), false, nil

	case workflow.TriggerFail:
		// FAIL always carries an error payload; FireError is the sanctioned
		// entry point so the payload is never dropped on the floor.
		return "", nil, false, newError(workflow.CodeInvalidTransition, "FAIL must go through FireError")

	case workflow.TriggerResume:
		if current != workflow.StatePaused {
			return "", nil, false, newError(workflow.CodeInvalidTransition, "no transition for RESUME from %s", current)
		}
		prior, popped := popHistory(m.history)
		return prior, popped, true, nil

	case workflow.TriggerRetry:
		if current != workflow.StateError {
			return "", nil, false, newError(workflow.CodeInvalidTransition, "no transition for RETRY from %s", current)
		}
		// The canonical retry target is always defined, so no history pop
		// is needed here.
		return workflow.RetryTarget, append([]workflow.State(nil), m.history...), true, nil

	default:
		dest, ok := workflow.ForwardTarget(current, trigger)
		if !ok {
			return "", nil, false, newError(workflow.CodeInvalidTransition, "no transition for %s from %s", trigger, current)
		}
		return dest, pushHistory(m.history, current), false, nil
	}
}

// pushHistory returns a copy of history with state appended.
func pushHistory(history []workflow.State, state workflow.State) []workflow.State {
	return append(append([]workflow.State(nil), history...), state)
}

// popHistory returns the tail of history (or IDLE if empty) and a copy of
// history with the tail removed.
func popHistory(history []workflow.State) (workflow.State, []workflow.State) {
	if len(history) == 0 {
		return workflow.StateIdle, nil
	}
	prior := history[len(history)-1]
	return prior, append([]workflow.State(nil), history[:len(history)-1]...)
}

func cloneContext(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

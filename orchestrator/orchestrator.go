// Package orchestrator implements the Workflow Orchestrator: the top-level
// driver that ties the State Store, State Machine, Recovery Manager, and
// Agent Coordinator together, owns the execution loop, and exposes
// Run/Resume/Pause/Cancel/Status.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/DaniyalFaraz2003/OSC-Agent/coordinator"
	"github.com/DaniyalFaraz2003/OSC-Agent/recovery"
	"github.com/DaniyalFaraz2003/OSC-Agent/statemachine"
	"github.com/DaniyalFaraz2003/OSC-Agent/store/file"
	"github.com/DaniyalFaraz2003/OSC-Agent/telemetry"
	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// defaultStoreRoot is the directory new runs are persisted under when the
// caller does not supply a pre-built Machine, yielding one
// "<root>/<runId>/state.json" per run.
const defaultStoreRoot = "runs"

// Options configures an Orchestrator.
type Options struct {
	// Coordinator maps operational states to handlers. Required.
	Coordinator *coordinator.Coordinator
	// RunID identifies the run. Generated (uuid v4) if empty.
	RunID string
	// Machine is a pre-built State Machine to drive. If nil, one is built
	// against a file.Store rooted at StoreRoot (or defaultStoreRoot).
	Machine *statemachine.Machine
	// StoreRoot is the root directory for the default file-backed store.
	// Ignored when Machine is supplied.
	StoreRoot string
	// MaxAttempts bounds fix-cycle retries (default 3, see recovery.New).
	MaxAttempts int
	// Verbose includes classification Details in returned error payloads.
	Verbose bool
	// Logger, Metrics, Tracer default to no-ops when nil.
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
}

// Orchestrator is the execution-loop driver. A single Orchestrator
// instance governs exactly one run; two instances must never share a
// storage handle concurrently.
type Orchestrator struct {
	runID       string
	coordinator *coordinator.Coordinator
	machine     *statemachine.Machine
	recovery    *recovery.Manager
	verbose     bool

	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer

	dataMu       sync.Mutex
	workflowData workflow.Data

	pauseRequested  atomic.Bool
	cancelRequested atomic.Bool

	startedAt time.Time
}

// New constructs an Orchestrator. Coordinator is required; every other
// field has a documented default.
func New(opts Options) (*Orchestrator, error) {
	if opts.Coordinator == nil {
		return nil, errors.New("orchestrator: coordinator is required")
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}

	machine := opts.Machine
	if machine == nil {
		root := opts.StoreRoot
		if root == "" {
			root = defaultStoreRoot
		}
		st := file.New(root, runID, logger)
		m, err := statemachine.New(statemachine.Options{Store: st, RunID: runID})
		if err != nil {
			return nil, fmt.Errorf("orchestrator: building default state machine: %w", err)
		}
		machine = m
	}

	return &Orchestrator{
		runID:       runID,
		coordinator: opts.Coordinator,
		machine:     machine,
		recovery:    recovery.New(recovery.Options{MaxAttempts: opts.MaxAttempts}),
		verbose:     opts.Verbose,
		logger:      logger,
		metrics:     metrics,
		tracer:      tracer,
	}, nil
}

// RunID returns the identifier of the run this Orchestrator governs.
func (o *Orchestrator) RunID() string { return o.runID }

// Status returns a synchronous, non-blocking snapshot of the run: current
// state, a defensive copy of the accumulated workflow data, and the run
// id.
func (o *Orchestrator) Status() Snapshot {
	o.dataMu.Lock()
	data := o.workflowData
	o.dataMu.Unlock()
	if ctx, err := workflow.DataToContext(data); err == nil {
		if cp, err := workflow.ContextToData(ctx); err == nil {
			data = cp
		}
	}
	return Snapshot{RunID: o.runID, State: o.machine.State(), Data: data}
}

// Pause requests that the execution loop transition to PAUSED at the next
// iteration boundary. Non-blocking; a second call before the loop observes
// the first is indistinguishable from one.
func (o *Orchestrator) Pause() { o.pauseRequested.Store(true) }

// Cancel requests that the execution loop transition to CANCELLED at the
// next iteration boundary. Non-blocking and idempotent, symmetric with
// Pause.
func (o *Orchestrator) Cancel() { o.cancelRequested.Store(true) }

// Run starts (or restarts) the pipeline for input. Pause/cancel flags are
// reset, workflowData is seeded from input, the state machine is
// initialized (which may load a prior record for this RunID — a repeated
// Run call against a freshly-constructed Orchestrator over the same store
// continues rather than restarting, since only a state of IDLE fires
// START), and the execution loop runs to a terminal or suspended state.
func (o *Orchestrator) Run(ctx context.Context, input workflow.Input) (Result, error) {
	o.pauseRequested.Store(false)
	o.cancelRequested.Store(false)
	o.startedAt = time.Now()

	o.setData(workflow.Data{Input: input})

	if err := o.machine.Initialize(ctx); err != nil {
		return o.failedResult(err), err
	}

	if o.machine.State() == workflow.StateIdle {
		initialCtx, err := workflow.DataToContext(o.getData())
		if err != nil {
			return o.failedResult(err), err
		}
		if err := o.machine.Fire(ctx, workflow.TriggerStart, initialCtx); err != nil {
			return o.failedResult(err), err
		}
	}

	return o.loop(ctx)
}

// Resume continues a suspended run. It re-initializes the state machine
// against its store (restoring context/history/attempt), reconstructs
// workflowData from the persisted context, and then — depending on the
// restored state — issues RESUME (from PAUSED) or attempts recovery (from
// ERROR) before re-entering the execution loop.
func (o *Orchestrator) Resume(ctx context.Context) (Result, error) {
	o.pauseRequested.Store(false)
	o.cancelRequested.Store(false)
	o.startedAt = time.Now()

	if err := o.machine.Initialize(ctx); err != nil {
		return o.failedResult(err), err
	}

	restored, err := workflow.ContextToData(o.machine.Context())
	if err != nil {
		return o.failedResult(err), err
	}
	o.setData(restored)

	switch o.machine.State() {
	case workflow.StatePaused:
		if err := o.machine.Fire(ctx, workflow.TriggerResume, nil); err != nil {
			return o.failedResult(err), err
		}
	case workflow.StateError:
		if ok, err := o.attemptRecovery(ctx); err != nil {
			return o.failedResult(err), err
		} else if !ok {
			return o.buildResult(), nil
		}
	}

	return o.loop(ctx)
}

// loop advances one stage at a time until a terminal or suspended state,
// observing pause/cancel
// only between handler invocations and absorbing handler failures into
// FAIL/RETRY transitions rather than propagating them.
func (o *Orchestrator) loop(ctx context.Context) (Result, error) {
	for {
		state := o.machine.State()
		if state.Terminal() || state == workflow.StatePaused {
			return o.buildResult(), nil
		}

		if state == workflow.StateError {
			ok, err := o.attemptRecovery(ctx)
			if err != nil {
				return o.failedResult(err), err
			}
			if !ok {
				return o.buildResult(), nil
			}
			continue
		}

		if o.pauseRequested.Load() {
			patch, err := workflow.DataToContext(o.getData())
			if err != nil {
				return o.failedResult(err), err
			}
			if err := o.machine.Fire(ctx, workflow.TriggerPause, patch); err != nil {
				return o.failedResult(err), err
			}
			o.logger.Info(ctx, "run paused", "runId", o.runID, "state", string(state))
			continue
		}

		if o.cancelRequested.Load() {
			patch, err := workflow.DataToContext(o.getData())
			if err != nil {
				return o.failedResult(err), err
			}
			if err := o.machine.Fire(ctx, workflow.TriggerCancel, patch); err != nil {
				return o.failedResult(err), err
			}
			o.logger.Info(ctx, "run cancelled", "runId", o.runID, "state", string(state))
			continue
		}

		if err := o.step(ctx, state); err != nil {
			return o.failedResult(err), err
		}
	}
}

// step executes the handler registered for state and commits the
// resulting transition: a success merges the handler's partial into
// workflowData and fires the state's canonical success trigger; a failure
// is classified by the Recovery Manager and committed as a FAIL
// transition. The returned error is non-nil only for a state-machine
// failure (invalid transition, guard rejection, storage fault) — handler
// failures never reach the caller.
func (o *Orchestrator) step(ctx context.Context, state workflow.State) error {
	start := time.Now()
	partial, err := o.coordinator.Execute(ctx, state, o.getData())
	o.metrics.RecordTimer("orchestrator.stage.duration", time.Since(start), "state", string(state))

	if err != nil {
		o.logger.Warn(ctx, "stage failed", "runId", o.runID, "state", string(state), "error", err.Error())
		classification := o.recovery.Classify(state, err)
		payload := classification.ToErrorPayload(o.verbose)
		patch, ctxErr := workflow.DataToContext(o.getData())
		if ctxErr != nil {
			return ctxErr
		}
		o.metrics.IncCounter("orchestrator.stage.failure", 1, "state", string(state), "severity", string(classification.Severity))
		return o.machine.FireError(ctx, &payload, patch)
	}

	merged := o.getData().Merge(partial)
	o.setData(merged)

	trigger, ok := workflow.SuccessTrigger(state)
	if !ok {
		return fmt.Errorf("orchestrator: state %s has no canonical success trigger", state)
	}
	patch, err := workflow.DataToContext(merged)
	if err != nil {
		return err
	}
	if err := o.machine.Fire(ctx, trigger, patch); err != nil {
		return err
	}
	o.logger.Info(ctx, "stage advanced", "runId", o.runID, "from", string(state), "trigger", string(trigger))
	return nil
}

// attemptRecovery consults the Recovery Manager's retry decision for the
// most recently recorded error and, if permitted, fires RETRY (advancing
// the machine to its retry target and incrementing attempt). It returns
// false — with no error — when recovery is not permitted, signaling the
// loop to terminate in ERROR; it returns a non-nil error only when the
// RETRY transition itself fails at the state-machine layer.
func (o *Orchestrator) attemptRecovery(ctx context.Context) (bool, error) {
	classification := classificationFromPayload(o.machine.LastError())
	if !o.recovery.ShouldRetry(o.machine.Attempt(), classification) {
		return false, nil
	}
	if err := o.machine.Fire(ctx, workflow.TriggerRetry, nil); err != nil {
		return false, err
	}
	o.logger.Info(ctx, "run retrying", "runId", o.runID, "attempt", o.machine.Attempt())
	o.metrics.IncCounter("orchestrator.retry", 1, "runId", o.runID)
	return true, nil
}

// classificationFromPayload reconstructs enough of a Classification from a
// persisted ErrorPayload to drive ShouldRetry after a process restart,
// where only the payload — not the in-memory Classification — survives.
// Severity is recovered from the code: RETRYABLE_ERROR always targets
// GENERATING, every other code carries no retry target.
func classificationFromPayload(p *workflow.ErrorPayload) workflow.Classification {
	if p == nil {
		return workflow.Classification{Severity: workflow.SeverityFatal, Code: workflow.CodeUnrecoverable}
	}
	c := workflow.Classification{Severity: workflow.SeverityFatal, Code: p.Code, Message: p.Message}
	if p.Code == workflow.CodeRetryable {
		target := workflow.RetryTarget
		c.Severity = workflow.SeverityRetryable
		c.RetryTarget = &target
	}
	return c
}

func (o *Orchestrator) getData() workflow.Data {
	o.dataMu.Lock()
	defer o.dataMu.Unlock()
	return o.workflowData
}

func (o *Orchestrator) setData(d workflow.Data) {
	o.dataMu.Lock()
	o.workflowData = d
	o.dataMu.Unlock()
}

// buildResult assembles the Result for the machine's current state,
// attempt, and last recorded error.
func (o *Orchestrator) buildResult() Result {
	state := o.machine.State()
	return Result{
		RunID:      o.runID,
		Status:     statusForState(state),
		FinalState: state,
		Data:       o.getData(),
		Attempt:    o.machine.Attempt(),
		Duration:   time.Since(o.startedAt),
		Error:      o.machine.LastError(),
	}
}

// failedResult builds a Result for a state-machine-layer failure (not a
// handler failure, which never reaches here) — an invalid transition,
// guard rejection, or storage fault propagated out of Fire/FireError.
func (o *Orchestrator) failedResult(err error) Result {
	var smErr *statemachine.Error
	payload := &workflow.ErrorPayload{Code: workflow.CodeUnrecoverable, Message: err.Error()}
	if errors.As(err, &smErr) {
		payload = &workflow.ErrorPayload{Code: smErr.Code, Message: smErr.Message}
	}
	return Result{
		RunID:      o.runID,
		Status:     StatusFailed,
		FinalState: o.machine.State(),
		Data:       o.getData(),
		Attempt:    o.machine.Attempt(),
		Duration:   time.Since(o.startedAt),
		Error:      payload,
	}
}

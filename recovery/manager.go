package recovery

import (
	"errors"
	"strings"

	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// fatalPatterns are case-insensitive substrings that, when found in a stage
// error's message, classify the failure as fatal regardless of the state it
// occurred in.
var fatalPatterns = []string{
	"authentication failed",
	"unauthorized",
	"invalid credentials",
	"missing required credential",
	"missing credential",
	"invalid configuration",
	"no handler registered",
}

// transientPatterns are case-insensitive substrings identifying failures
// assumed to have already been retried by the handler internally; a
// surfacing transient is not re-attempted at this level.
var transientPatterns = []string{
	"rate limit",
	"rate-limit",
	"too many requests",
	"connection reset",
	"connection refused",
	"econnreset",
	"socket hang up",
	"timeout",
	"timed out",
	"server error",
	"internal server error",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"502",
	"503",
	"504",
}

// Options configures a Manager.
type Options struct {
	// MaxAttempts is the attempt ceiling: a retry is permitted only while
	// the run's attempt count (which starts at 1) is below it, so at most
	// MaxAttempts-1 retries happen. Defaults to 3.
	MaxAttempts int
	// FatalPatterns overrides the default fatal-pattern catalog. Nil uses
	// the canonical set.
	FatalPatterns []string
	// TransientPatterns overrides the default transient-pattern catalog.
	// Nil uses the canonical set.
	TransientPatterns []string
}

// Manager implements the Recovery Manager: it classifies a stage failure
// and decides whether a retry is permitted.
type Manager struct {
	maxAttempts       int
	fatalPatterns     []string
	transientPatterns []string
}

// New constructs a Manager. A zero-value Options uses MaxAttempts=3 and the
// canonical pattern catalogs.
func New(opts Options) *Manager {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	fatal := opts.FatalPatterns
	if fatal == nil {
		fatal = fatalPatterns
	}
	transient := opts.TransientPatterns
	if transient == nil {
		transient = transientPatterns
	}
	return &Manager{maxAttempts: maxAttempts, fatalPatterns: fatal, transientPatterns: transient}
}

// MaxAttempts returns the configured retry ceiling.
func (m *Manager) MaxAttempts() int { return m.maxAttempts }

// Classify applies the ordered classification rules to err, which occurred
// while state was the current operational state: fatal patterns first, then
// fix-cycle retryability, then transient patterns, else unrecoverable. A
// failed apply/build/test is treated as evidence the generated fix is
// wrong, so recovery rewinds to GENERATING rather than re-running the
// failing stage.
//
// When err carries a *StageError anywhere in its chain, the stage recorded
// there overrides state — the handler knows which stage actually failed,
// which may be more specific than the machine state the caller observed.
func (m *Manager) Classify(state workflow.State, err error) workflow.Classification {
	message := ""
	if err != nil {
		message = err.Error()
	}
	lower := strings.ToLower(message)

	var stageErr *StageError
	if errors.As(err, &stageErr) && stageErr.Stage != "" {
		state = stageErr.Stage
	}

	if matchesAny(lower, m.fatalPatterns) {
		return workflow.Classification{
			Severity: workflow.SeverityFatal,
			Code:     workflow.CodeFatal,
			Message:  message,
			Details:  err,
		}
	}

	if state.FixCycle() {
		target := workflow.RetryTarget
		return workflow.Classification{
			Severity:    workflow.SeverityRetryable,
			Code:        workflow.CodeRetryable,
			Message:     message,
			Details:     err,
			RetryTarget: &target,
		}
	}

	if matchesAny(lower, m.transientPatterns) {
		return workflow.Classification{
			Severity: workflow.SeverityTransient,
			Code:     workflow.CodeTransient,
			Message:  message,
			Details:  err,
		}
	}

	return workflow.Classification{
		Severity: workflow.SeverityFatal,
		Code:     workflow.CodeUnrecoverable,
		Message:  message,
		Details:  err,
	}
}

// ShouldRetry reports whether a run currently at attempt should retry given
// classification: retryable severity, a defined retry target, and attempt
// strictly less than MaxAttempts.
func (m *Manager) ShouldRetry(attempt int, classification workflow.Classification) bool {
	return classification.Severity == workflow.SeverityRetryable &&
		classification.RetryTarget != nil &&
		attempt < m.maxAttempts
}

func matchesAny(lower string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

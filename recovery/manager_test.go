package recovery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

func TestClassifyFatalAuthenticationTakesPriorityOverFixCycle(t *testing.T) {
	m := New(Options{})
	c := m.Classify(workflow.StateGenerating, errors.New("Authentication failed: token expired"))
	require.Equal(t, workflow.SeverityFatal, c.Severity)
	require.Equal(t, workflow.CodeFatal, c.Code)
	require.Nil(t, c.RetryTarget)
}

func TestClassifyFixCycleFailureIsRetryableRegardlessOfMessage(t *testing.T) {
	m := New(Options{})
	for _, s := range []workflow.State{
		workflow.StateGenerating, workflow.StateApplying, workflow.StateBuilding,
		workflow.StateTesting, workflow.StateReviewing,
	} {
		c := m.Classify(s, errors.New("malformed JSON in model output"))
		require.Equal(t, workflow.SeverityRetryable, c.Severity, "state %s", s)
		require.Equal(t, workflow.CodeRetryable, c.Code)
		require.NotNil(t, c.RetryTarget)
		require.Equal(t, workflow.StateGenerating, *c.RetryTarget)
	}
}

func TestClassifyTransientOutsideFixCycle(t *testing.T) {
	m := New(Options{})
	c := m.Classify(workflow.StateAnalyzing, errors.New("connection reset by peer"))
	require.Equal(t, workflow.SeverityTransient, c.Severity)
	require.Equal(t, workflow.CodeTransient, c.Code)
	require.Nil(t, c.RetryTarget)
}

func TestClassifyUnrecoverableFallthrough(t *testing.T) {
	m := New(Options{})
	c := m.Classify(workflow.StateAnalyzing, errors.New("unexpected nil pointer"))
	require.Equal(t, workflow.SeverityFatal, c.Severity)
	require.Equal(t, workflow.CodeUnrecoverable, c.Code)
}

func TestClassifyIsCaseInsensitiveSubstringMatch(t *testing.T) {
	m := New(Options{})
	c := m.Classify(workflow.StateAnalyzing, errors.New("RATE LIMIT exceeded, try later"))
	require.Equal(t, workflow.SeverityTransient, c.Severity)
}

func TestShouldRetryRespectsMaxAttempts(t *testing.T) {
	m := New(Options{MaxAttempts: 3})
	retryable := m.Classify(workflow.StateTesting, errors.New("flaky test failure"))

	require.True(t, m.ShouldRetry(1, retryable))
	require.True(t, m.ShouldRetry(2, retryable))
	require.False(t, m.ShouldRetry(3, retryable))
}

func TestMaxAttemptsOneDisablesAllRetries(t *testing.T) {
	m := New(Options{MaxAttempts: 1})
	retryable := m.Classify(workflow.StateTesting, errors.New("flaky test failure"))
	require.False(t, m.ShouldRetry(1, retryable))
}

func TestShouldRetryFalseForNonRetryableSeverities(t *testing.T) {
	m := New(Options{MaxAttempts: 10})
	fatal := m.Classify(workflow.StateAnalyzing, errors.New("authentication failed"))
	require.False(t, m.ShouldRetry(1, fatal))

	transient := m.Classify(workflow.StateAnalyzing, errors.New("request timed out"))
	require.False(t, m.ShouldRetry(1, transient))
}

func TestStageErrorPreservesCauseChainAndMessage(t *testing.T) {
	cause := errors.New("connection reset by peer")
	wrapped := Wrap(workflow.StateAnalyzing, "fetch issue", cause)

	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, "fetch issue: connection reset by peer", wrapped.Error())

	var target *StageError
	require.True(t, errors.As(wrapped, &target))
	require.Equal(t, workflow.StateAnalyzing, target.Stage)

	// The cause text stays visible to pattern matching through the wrap.
	m := New(Options{})
	c := m.Classify(workflow.StateAnalyzing, wrapped)
	require.Equal(t, workflow.SeverityTransient, c.Severity)
}

func TestClassifyUsesStageFromStageError(t *testing.T) {
	m := New(Options{})

	// The handler's recorded stage overrides the caller-observed state:
	// a TESTING failure classifies as retryable even if the caller passes
	// a pre-fix-cycle state.
	err := NewStageError(workflow.StateTesting, "tests failed: 2 passed, 1 failed")
	c := m.Classify(workflow.StateAnalyzing, err)
	require.Equal(t, workflow.SeverityRetryable, c.Severity)
	require.NotNil(t, c.RetryTarget)
	require.Equal(t, workflow.StateGenerating, *c.RetryTarget)
}

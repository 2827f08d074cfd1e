// Package stub provides deterministic, in-memory implementations of every
// handlers collaborator interface — no network, no untrusted execution —
// so the orchestration core can be driven end to end (tests, the demo
// binary in cmd/agent) without a real code host, LLM SDK, or sandbox
// behind the interfaces.
package stub

import (
	"context"
	"fmt"
	"sync"

	"github.com/DaniyalFaraz2003/OSC-Agent/handlers"
	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// CodeHost is a deterministic handlers.CodeHostClient. Issues is consulted
// by GetIssue, keyed by "owner/repo#number"; CreateChangeRequest records
// every submission it receives and returns an incrementing PR number
// starting at NextPRNumber.
type CodeHost struct {
	mu           sync.Mutex
	Issues       map[string]workflow.IssueRecord
	NextPRNumber int
	Submissions  []workflow.FixProposal
	Comments     []string
}

// NewCodeHost returns a CodeHost seeded with issues, with PR numbering
// starting at startPR (defaulting to 101).
func NewCodeHost(issues map[string]workflow.IssueRecord, startPR int) *CodeHost {
	if startPR <= 0 {
		startPR = 101
	}
	return &CodeHost{Issues: issues, NextPRNumber: startPR}
}

func issueKey(owner, repo string, number int) string {
	return fmt.Sprintf("%s/%s#%d", owner, repo, number)
}

// GetIssue returns the seeded issue for owner/repo/number, or a
// deterministic synthetic one if none was seeded.
func (c *CodeHost) GetIssue(_ context.Context, owner, repo string, number int) (workflow.IssueRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.Issues[issueKey(owner, repo, number)]; ok {
		return rec, nil
	}
	return workflow.IssueRecord{
		Title:  fmt.Sprintf("issue #%d in %s/%s", number, owner, repo),
		Body:   "synthetic issue body for testing",
		Author: "stub-reporter",
		URL:    fmt.Sprintf("https://example.invalid/%s/%s/issues/%d", owner, repo, number),
	}, nil
}

// CreateChangeRequest records proposal and returns an incrementing PR.
func (c *CodeHost) CreateChangeRequest(_ context.Context, owner, repo string, proposal workflow.FixProposal) (workflow.SubmissionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Submissions = append(c.Submissions, proposal)
	n := c.NextPRNumber
	c.NextPRNumber++
	return workflow.SubmissionResult{
		PRNumber: n,
		PRURL:    fmt.Sprintf("https://example.invalid/%s/%s/pull/%d", owner, repo, n),
	}, nil
}

// Comment records body against owner/repo/number.
func (c *CodeHost) Comment(_ context.Context, owner, repo string, number int, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Comments = append(c.Comments, fmt.Sprintf("%s: %s", issueKey(owner, repo, number), body))
	return nil
}

// Searcher is a deterministic handlers.CodeSearcher returning Hits
// truncated to opts.MaxResults, ignoring pattern (tests seed Hits
// directly to control SEARCHING's output).
type Searcher struct {
	Hits []workflow.SearchHit
}

// NewSearcher returns a Searcher seeded with hits.
func NewSearcher(hits []workflow.SearchHit) *Searcher { return &Searcher{Hits: hits} }

// Search returns up to opts.MaxResults of the seeded hits.
func (s *Searcher) Search(_ context.Context, _ string, opts handlers.SearchOptions) ([]workflow.SearchHit, error) {
	if opts.MaxResults <= 0 || opts.MaxResults >= len(s.Hits) {
		return append([]workflow.SearchHit(nil), s.Hits...), nil
	}
	return append([]workflow.SearchHit(nil), s.Hits[:opts.MaxResults]...), nil
}

// Sandbox is an in-memory handlers.SandboxExecutor: Upload/Download
// operate on Files; Run consults Commands for a canned result, defaulting
// to a zero-exit success with no output for any command not registered.
type Sandbox struct {
	mu       sync.Mutex
	Files    map[string][]byte
	Commands map[string]handlers.ExecResult
}

// NewSandbox returns a Sandbox seeded with files.
func NewSandbox(files map[string][]byte) *Sandbox {
	if files == nil {
		files = map[string][]byte{}
	}
	return &Sandbox{Files: files, Commands: map[string]handlers.ExecResult{}}
}

// Upload writes content to path.
func (s *Sandbox) Upload(_ context.Context, path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Files[path] = append([]byte(nil), content...)
	return nil
}

// Download reads path, failing if it was never uploaded/seeded.
func (s *Sandbox) Download(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.Files[path]
	if !ok {
		return nil, fmt.Errorf("sandbox: no such file %q", path)
	}
	return append([]byte(nil), content...), nil
}

// Run returns the canned result registered for command, or a zero-exit
// success if none was registered — commands are keyed on command alone,
// not its arguments, since the stage handlers that call Run (build, test)
// pass a fixed command per run.
func (s *Sandbox) Run(_ context.Context, command string, _ []string) (handlers.ExecResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result, ok := s.Commands[command]; ok {
		return result, nil
	}
	return handlers.ExecResult{ExitCode: 0}, nil
}

// LLM is a deterministic handlers.LLMClient: Responses, keyed by
// opts.Stage, is consulted for canned content; Failures, also keyed by
// stage, lets a test script a stage to fail on its first N invocations
// before Generate starts returning the seeded Response.
type LLM struct {
	mu          sync.Mutex
	Responses   map[workflow.State]string
	Failures    map[workflow.State]int // remaining failures before success
	failMsgs    map[workflow.State]string
	invocations map[workflow.State]int
}

// NewLLM returns an LLM seeded with responses.
func NewLLM(responses map[workflow.State]string) *LLM {
	if responses == nil {
		responses = map[workflow.State]string{}
	}
	return &LLM{
		Responses:   responses,
		Failures:    map[workflow.State]int{},
		failMsgs:    map[workflow.State]string{},
		invocations: map[workflow.State]int{},
	}
}

// FailNTimes schedules the next n calls for stage to return an error
// whose message is msg, before Generate starts succeeding.
func (l *LLM) FailNTimes(stage workflow.State, n int, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Failures[stage] = n
	l.failMsgs[stage] = msg
}

// InvocationCount returns how many times Generate was called for stage.
func (l *LLM) InvocationCount(stage workflow.State) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.invocations[stage]
}

// Generate returns the scripted failure (if any remain for opts.Stage) or
// the seeded Response, wrapped as a Completion with a small synthetic
// token count so CostMetrics accumulates something observable.
func (l *LLM) Generate(_ context.Context, prompt string, opts handlers.GenerateOptions) (handlers.Completion, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.invocations[opts.Stage]++

	if remaining := l.Failures[opts.Stage]; remaining > 0 {
		l.Failures[opts.Stage] = remaining - 1
		msg := l.failMsgs[opts.Stage]
		if msg == "" {
			msg = "stub generation failure"
		}
		return handlers.Completion{}, fmt.Errorf("%s", msg)
	}

	content, ok := l.Responses[opts.Stage]
	if !ok {
		content = fmt.Sprintf("stub completion for %s", opts.Stage)
	}
	return handlers.Completion{
		Content: content,
		Usage:   handlers.Usage{PromptTokens: len(prompt) / 4, CompletionTokens: len(content) / 4},
	}, nil
}

// Package handlers implements the external-collaborator boundary — the
// interfaces the orchestration core dispatches through (code host, LLM,
// code search, sandbox, patch engine) — plus the nine stage handler
// constructors that close over those collaborators and satisfy
// coordinator.Handler.
package handlers

import (
	"context"

	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// CodeHostClient is the code-hosting-service boundary: fetching the
// originating issue, posting progress comments, and opening the final
// change request. The concrete, rate-limited implementation lives outside
// this repository; this interface is the shape the core pins down.
type CodeHostClient interface {
	GetIssue(ctx context.Context, owner, repo string, number int) (workflow.IssueRecord, error)
	CreateChangeRequest(ctx context.Context, owner, repo string, proposal workflow.FixProposal) (workflow.SubmissionResult, error)
	Comment(ctx context.Context, owner, repo string, number int, body string) error
}

// GenerateOptions configures one LLMClient.Generate call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	// Stage names which pipeline stage is prompting, for stub
	// determinism and for tagging usage metrics.
	Stage workflow.State
}

// Completion is the result of one LLM call: the generated content and the
// token usage it consumed, folded into workflow.CostMetrics by the
// calling handler.
type Completion struct {
	Content string
	Usage   Usage
}

// Usage is the token accounting for one Completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Total returns the combined token count.
func (u Usage) Total() int { return u.PromptTokens + u.CompletionTokens }

// LLMClient is the model boundary. Concrete provider SDKs (Anthropic,
// OpenAI, Bedrock) live outside this repository; only this shape and a
// deterministic stub live here.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (Completion, error)
}

// SearchOptions configures one CodeSearcher.Search call.
type SearchOptions struct {
	MaxResults int
}

// CodeSearcher is the codebase-search boundary: pattern-based hit
// retrieval over the target repository.
type CodeSearcher interface {
	Search(ctx context.Context, pattern string, opts SearchOptions) ([]workflow.SearchHit, error)
}

// ExecResult is the outcome of one SandboxExecutor.Run call.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Succeeded reports whether the command exited zero.
func (r ExecResult) Succeeded() bool { return r.ExitCode == 0 }

// SandboxExecutor is the untrusted-code-execution boundary: file
// upload/download plus command execution inside an isolated sandbox. The
// APPLYING/BUILDING/TESTING handlers dispatch through this interface; the
// sandbox itself lives outside this repository.
type SandboxExecutor interface {
	Upload(ctx context.Context, path string, content []byte) error
	Download(ctx context.Context, path string) ([]byte, error)
	Run(ctx context.Context, command string, args []string) (ExecResult, error)
}

// PatchEngine parses a unified diff and applies it to file content,
// returning the updated content or a failure describing which hunk could
// not be applied.
type PatchEngine interface {
	Apply(original string, diff string) (string, error)
}

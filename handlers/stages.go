package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DaniyalFaraz2003/OSC-Agent/coordinator"
	"github.com/DaniyalFaraz2003/OSC-Agent/recovery"
	"github.com/DaniyalFaraz2003/OSC-Agent/validation"
	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// accrueCost folds usage/toolCalls into the running CostMetrics a prior
// stage may have left in data, producing the Partial.Cost every
// constructor below sets.
func accrueCost(prior *workflow.CostMetrics, tokens, toolCalls int, elapsed time.Duration) *workflow.CostMetrics {
	out := workflow.CostMetrics{}
	if prior != nil {
		out = *prior
	}
	out.LLMTokens += tokens
	out.ToolCalls += toolCalls
	out.WallClock += elapsed
	out.LastUpdated = time.Now().UTC()
	return &out
}

// validate runs schema (nil-safe) against payload; callers wrap a failure
// as a recovery.StageError for the Recovery Manager to classify.
func validate(schema *validation.Schema, name string, payload any) error {
	if schema == nil {
		return nil
	}
	return schema.Validate(name, payload)
}

// NewAnalysisHandler fetches the originating issue and asks llm to produce
// a structured Analysis. analysisSchema, if non-nil, gates the parsed
// Analysis before it is returned.
func NewAnalysisHandler(codeHost CodeHostClient, llm LLMClient, analysisSchema *validation.Schema) coordinator.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.Partial, error) {
		start := time.Now()
		issue, err := codeHost.GetIssue(ctx, data.Input.Owner, data.Input.Repo, data.Input.IssueNumber)
		if err != nil {
			return workflow.Partial{}, recovery.Wrap(workflow.StateAnalyzing, "fetch issue", err)
		}

		prompt := fmt.Sprintf("Analyze issue %q:\n%s", issue.Title, issue.Body)
		completion, err := llm.Generate(ctx, prompt, GenerateOptions{Stage: workflow.StateAnalyzing})
		if err != nil {
			return workflow.Partial{}, recovery.Wrap(workflow.StateAnalyzing, "analyze issue", err)
		}

		analysis := workflow.Analysis{
			Summary:       issue.Title,
			RootCause:     completion.Content,
			AffectedFiles: extractPaths(completion.Content),
		}
		if err := validate(analysisSchema, "analysis", analysis); err != nil {
			return workflow.Partial{}, recovery.Wrap(workflow.StateAnalyzing, "validate analysis", err)
		}

		return workflow.Partial{
			Issue:    &issue,
			Analysis: &analysis,
			Cost:     accrueCost(data.Cost, completion.Usage.Total(), 1, time.Since(start)),
		}, nil
	}
}

// NewSearchHandler retrieves codebase hits matching data.Analysis's root
// cause. Runs only once data.Analysis is present — the State Machine's
// SEARCHING guard already enforces that before the handler is dispatched.
func NewSearchHandler(searcher CodeSearcher) coordinator.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.Partial, error) {
		start := time.Now()
		if data.Analysis == nil {
			return workflow.Partial{}, recovery.NewStageError(workflow.StateSearching, "search: missing analysis")
		}
		hits, err := searcher.Search(ctx, data.Analysis.RootCause, SearchOptions{MaxResults: 20})
		if err != nil {
			return workflow.Partial{}, recovery.Wrap(workflow.StateSearching, "search codebase", err)
		}
		return workflow.Partial{
			SearchResults: hits,
			Cost:          accrueCost(data.Cost, 0, 1, time.Since(start)),
		}, nil
	}
}

// NewPlanningHandler asks llm to turn the analysis and search hits into an
// ordered FixPlan. Runs only once data.SearchResults is non-empty — the
// PLANNING guard enforces that.
func NewPlanningHandler(llm LLMClient, planSchema *validation.Schema) coordinator.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.Partial, error) {
		start := time.Now()
		prompt := fmt.Sprintf("Plan a fix for %q across %d search hits", data.Analysis.Summary, len(data.SearchResults))
		completion, err := llm.Generate(ctx, prompt, GenerateOptions{Stage: workflow.StatePlanning})
		if err != nil {
			return workflow.Partial{}, recovery.Wrap(workflow.StatePlanning, "plan fix", err)
		}
		plan := workflow.FixPlan{Steps: strings.Split(completion.Content, "\n"), Notes: ""}
		if err := validate(planSchema, "plan", plan); err != nil {
			return workflow.Partial{}, recovery.Wrap(workflow.StatePlanning, "validate plan", err)
		}
		return workflow.Partial{
			Plan: &plan,
			Cost: accrueCost(data.Cost, completion.Usage.Total(), 1, time.Since(start)),
		}, nil
	}
}

// NewGenerationHandler asks llm to turn data.Plan into a FixProposal: an
// explanation plus a unified-diff patch set. This is the fix cycle's entry
// point and the canonical RETRY target — a failure here, or in any stage
// through REVIEWING, rewinds to this handler.
func NewGenerationHandler(llm LLMClient, proposalSchema *validation.Schema) coordinator.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.Partial, error) {
		start := time.Now()
		prompt := fmt.Sprintf("Generate patches implementing plan: %v", data.Plan.Steps)
		completion, err := llm.Generate(ctx, prompt, GenerateOptions{Stage: workflow.StateGenerating})
		if err != nil {
			return workflow.Partial{}, recovery.Wrap(workflow.StateGenerating, "generate fix", err)
		}
		proposal, err := parseProposal(completion.Content)
		if err != nil {
			return workflow.Partial{}, recovery.Wrap(workflow.StateGenerating, "parse generated proposal", err)
		}
		if err := validate(proposalSchema, "proposal", proposal); err != nil {
			return workflow.Partial{}, recovery.Wrap(workflow.StateGenerating, "validate proposal", err)
		}
		return workflow.Partial{
			Proposal: &proposal,
			Cost:     accrueCost(data.Cost, completion.Usage.Total(), 1, time.Since(start)),
		}, nil
	}
}

// NewApplyHandler applies data.Proposal's patches to sandboxed copies of
// the affected files via patchEngine, uploading the result back through
// sandbox.
func NewApplyHandler(sandbox SandboxExecutor, patchEngine PatchEngine) coordinator.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.Partial, error) {
		start := time.Now()
		var applied, rejected []string
		for _, patch := range data.Proposal.Patches {
			original, err := sandbox.Download(ctx, patch.Path)
			if err != nil {
				rejected = append(rejected, patch.Path)
				continue
			}
			updated, err := patchEngine.Apply(string(original), patch.Diff)
			if err != nil {
				rejected = append(rejected, patch.Path)
				continue
			}
			if err := sandbox.Upload(ctx, patch.Path, []byte(updated)); err != nil {
				rejected = append(rejected, patch.Path)
				continue
			}
			applied = append(applied, patch.Path)
		}
		if len(rejected) > 0 {
			return workflow.Partial{}, recovery.NewStageError(workflow.StateApplying, fmt.Sprintf("apply patches: rejected %v", rejected))
		}
		return workflow.Partial{
			Apply: &workflow.ApplyResult{AppliedFiles: applied, Rejected: rejected},
			Cost:  accrueCost(data.Cost, 0, len(data.Proposal.Patches), time.Since(start)),
		}, nil
	}
}

// NewBuildHandler runs the project build inside sandbox.
func NewBuildHandler(sandbox SandboxExecutor, buildCommand string, buildArgs ...string) coordinator.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.Partial, error) {
		start := time.Now()
		result, err := sandbox.Run(ctx, buildCommand, buildArgs)
		if err != nil {
			return workflow.Partial{}, recovery.Wrap(workflow.StateBuilding, "build", err)
		}
		if !result.Succeeded() {
			return workflow.Partial{}, recovery.NewStageError(workflow.StateBuilding, fmt.Sprintf("build failed: %s", result.Stderr))
		}
		return workflow.Partial{
			Build: &workflow.BuildResult{Success: true, Log: result.Stdout},
			Cost:  accrueCost(data.Cost, 0, 1, time.Since(start)),
		}, nil
	}
}

// NewTestHandler runs the project test suite inside sandbox.
func NewTestHandler(sandbox SandboxExecutor, testCommand string, testArgs ...string) coordinator.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.Partial, error) {
		start := time.Now()
		result, err := sandbox.Run(ctx, testCommand, testArgs)
		if err != nil {
			return workflow.Partial{}, recovery.Wrap(workflow.StateTesting, "test", err)
		}
		passed, failed := parseTestCounts(result.Stdout)
		if !result.Succeeded() || failed > 0 {
			return workflow.Partial{}, recovery.NewStageError(workflow.StateTesting, fmt.Sprintf("tests failed: %d passed, %d failed", passed, failed))
		}
		return workflow.Partial{
			Test: &workflow.TestResult{Passed: passed, Failed: failed, Summary: result.Stdout},
			Cost: accrueCost(data.Cost, 0, 1, time.Since(start)),
		}, nil
	}
}

// NewReviewHandler asks llm to review the applied, built, and tested
// change and decide whether it is ready to submit.
func NewReviewHandler(llm LLMClient) coordinator.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.Partial, error) {
		start := time.Now()
		prompt := fmt.Sprintf("Review change for %q: %d files applied, tests %d/%d passed",
			data.Analysis.Summary, len(data.Apply.AppliedFiles), data.Test.Passed, data.Test.Passed+data.Test.Failed)
		completion, err := llm.Generate(ctx, prompt, GenerateOptions{Stage: workflow.StateReviewing})
		if err != nil {
			return workflow.Partial{}, recovery.Wrap(workflow.StateReviewing, "review change", err)
		}
		approved := !strings.Contains(strings.ToLower(completion.Content), "reject")
		return workflow.Partial{
			Review: &workflow.ReviewResult{Approved: approved, Comments: []string{completion.Content}},
			Cost:   accrueCost(data.Cost, completion.Usage.Total(), 1, time.Since(start)),
		}, nil
	}
}

// NewSubmitHandler opens the final change request on the code host.
func NewSubmitHandler(codeHost CodeHostClient) coordinator.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.Partial, error) {
		start := time.Now()
		submission, err := codeHost.CreateChangeRequest(ctx, data.Input.Owner, data.Input.Repo, *data.Proposal)
		if err != nil {
			return workflow.Partial{}, recovery.Wrap(workflow.StateSubmitting, "submit change request", err)
		}
		return workflow.Partial{
			Submission: &submission,
			Cost:       accrueCost(data.Cost, 0, 1, time.Since(start)),
		}, nil
	}
}

// extractPaths is a small heuristic over generated analysis text: any
// token that looks like a repo-relative path (contains a slash or a file
// extension) is treated as an affected file.
func extractPaths(text string) []string {
	var paths []string
	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, ".,:;()[]")
		if strings.Contains(tok, "/") || strings.Contains(tok, ".go") {
			paths = append(paths, tok)
		}
	}
	return paths
}

// parseTestCounts reads "passed/failed" style summaries out of a test
// runner's stdout; unrecognized output is treated as zero of each.
func parseTestCounts(stdout string) (passed, failed int) {
	for _, line := range strings.Split(stdout, "\n") {
		var p, f int
		if n, _ := fmt.Sscanf(line, "passed=%d failed=%d", &p, &f); n == 2 {
			passed, failed = p, f
		}
	}
	return passed, failed
}

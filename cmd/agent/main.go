// Command agent is a minimal demo binary: it registers the nine stub
// stage handlers, drives one synthetic issue through the Workflow
// Orchestrator, and prints the result. It is not a full CLI — no flag
// parsing, config loading, or history/status subcommands, only enough
// wiring to exercise the core end to end.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/DaniyalFaraz2003/OSC-Agent/coordinator"
	"github.com/DaniyalFaraz2003/OSC-Agent/handlers"
	"github.com/DaniyalFaraz2003/OSC-Agent/handlers/stub"
	"github.com/DaniyalFaraz2003/OSC-Agent/orchestrator"
	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

func main() {
	ctx := context.Background()

	codeHost := stub.NewCodeHost(nil, 101)
	llm := stub.NewLLM(map[workflow.State]string{
		workflow.StateAnalyzing: "root cause lives in internal/widget/render.go",
		workflow.StatePlanning:  "inspect render.go\nadd nil guard\nadd regression test",
		workflow.StateGenerating: handlers.FormatProposal(workflow.FixProposal{
			Explanation: "Add a nil guard before dereferencing the widget pointer.",
			Patches: []workflow.Patch{{
				Path: "internal/widget/render.go",
				Diff: "@@ -1,2 +1,3 @@\n" +
					" package widget\n" +
					"+// guarded\n" +
					" func Render() {}",
			}},
		}),
		workflow.StateReviewing: "looks good, approved",
	})
	searcher := stub.NewSearcher([]workflow.SearchHit{
		{Path: "internal/widget/render.go", Line: 42, Snippet: "w.Name"},
	})
	sandbox := stub.NewSandbox(map[string][]byte{
		"internal/widget/render.go": []byte("package widget\nfunc Render() {}"),
	})
	sandbox.Commands["go build ./..."] = handlers.ExecResult{ExitCode: 0, Stdout: "build ok"}
	sandbox.Commands["go test ./..."] = handlers.ExecResult{ExitCode: 0, Stdout: "passed=4 failed=0"}

	reg := coordinator.New()
	reg.Register(workflow.StateAnalyzing, handlers.NewAnalysisHandler(codeHost, llm, nil))
	reg.Register(workflow.StateSearching, handlers.NewSearchHandler(searcher))
	reg.Register(workflow.StatePlanning, handlers.NewPlanningHandler(llm, nil))
	reg.Register(workflow.StateGenerating, handlers.NewGenerationHandler(llm, nil))
	reg.Register(workflow.StateApplying, handlers.NewApplyHandler(sandbox, handlers.NewUnifiedPatchEngine()))
	reg.Register(workflow.StateBuilding, handlers.NewBuildHandler(sandbox, "go build ./..."))
	reg.Register(workflow.StateTesting, handlers.NewTestHandler(sandbox, "go test ./..."))
	reg.Register(workflow.StateReviewing, handlers.NewReviewHandler(llm))
	reg.Register(workflow.StateSubmitting, handlers.NewSubmitHandler(codeHost))

	orch, err := orchestrator.New(orchestrator.Options{
		Coordinator: reg,
		StoreRoot:   "runs",
		MaxAttempts: 3,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "construct orchestrator:", err)
		os.Exit(1)
	}

	result, err := orch.Run(ctx, workflow.Input{Owner: "acme", Repo: "widget", IssueNumber: 7})
	if err != nil {
		fmt.Fprintln(os.Stderr, "run failed:", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(map[string]any{
		"runId":      result.RunID,
		"status":     result.Status,
		"finalState": result.FinalState,
		"attempt":    result.Attempt,
		"submission": result.Data.Submission,
	}, "", "  ")
	fmt.Println(string(out))
}

package workflow

import "time"

// Input is the initial payload a run is created from: the target issue on
// the code-hosting service.
type Input struct {
	Owner       string `json:"owner"`
	Repo        string `json:"repo"`
	IssueNumber int    `json:"issueNumber"`
}

// IssueRecord is the fetched issue/feature report, populated by the
// ANALYZING stage, whose handler fetches it through the code-host
// collaborator before analyzing it.
type IssueRecord struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Author string `json:"author"`
	URL    string `json:"url"`
}

// Analysis is the structured understanding of the issue produced by the
// ANALYZING stage.
type Analysis struct {
	Summary       string   `json:"summary"`
	RootCause     string   `json:"rootCause"`
	AffectedFiles []string `json:"affectedFiles"`
}

// SearchHit is one codebase search result produced by the SEARCHING stage.
type SearchHit struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
}

// FixPlan is the stage plan produced by the PLANNING stage.
type FixPlan struct {
	Steps []string `json:"steps"`
	Notes string   `json:"notes,omitempty"`
}

// Patch is one unified-diff hunk set targeting a single file.
type Patch struct {
	Path string `json:"path"`
	Diff string `json:"diff"`
}

// FixProposal is the explanation and patch set produced by the GENERATING
// stage.
type FixProposal struct {
	Explanation string  `json:"explanation"`
	Patches     []Patch `json:"patches"`
}

// ApplyResult is the outcome of applying FixProposal.Patches, produced by
// the APPLYING stage.
type ApplyResult struct {
	AppliedFiles []string `json:"appliedFiles"`
	Rejected     []string `json:"rejected,omitempty"`
}

// BuildResult is the outcome of the BUILDING stage.
type BuildResult struct {
	Success bool   `json:"success"`
	Log     string `json:"log,omitempty"`
}

// TestResult is the outcome of the TESTING stage.
type TestResult struct {
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
	Summary string `json:"summary,omitempty"`
}

// ReviewResult is the outcome of the REVIEWING stage.
type ReviewResult struct {
	Approved bool     `json:"approved"`
	Comments []string `json:"comments,omitempty"`
}

// SubmissionResult is the outcome of the SUBMITTING stage.
type SubmissionResult struct {
	PRNumber int    `json:"prNumber"`
	PRURL    string `json:"prUrl"`
}

// CostMetrics tracks resource usage accumulated across stages.
type CostMetrics struct {
	LLMTokens   int           `json:"llmTokens"`
	WallClock   time.Duration `json:"wallClock"`
	ToolCalls   int           `json:"toolCalls"`
	LastUpdated time.Time     `json:"lastUpdated,omitempty"`
}

// Data is the typed bundle accumulated across stages. Any field may be
// absent (nil) until its producing stage completes; the field set is
// monotonically growing within a forward pass — no stage removes data a
// predecessor added. A handler receives a read-only snapshot of Data and
// returns a Partial (an overlay with only the fields it populated).
type Data struct {
	Input Input `json:"input"`

	Issue         *IssueRecord      `json:"issue,omitempty"`
	Analysis      *Analysis         `json:"analysis,omitempty"`
	SearchResults []SearchHit       `json:"searchResults,omitempty"`
	Plan          *FixPlan          `json:"plan,omitempty"`
	Proposal      *FixProposal      `json:"proposal,omitempty"`
	Apply         *ApplyResult      `json:"apply,omitempty"`
	Build         *BuildResult      `json:"build,omitempty"`
	Test          *TestResult       `json:"test,omitempty"`
	Review        *ReviewResult     `json:"review,omitempty"`
	Submission    *SubmissionResult `json:"submission,omitempty"`
	Cost          *CostMetrics      `json:"cost,omitempty"`
}

// Partial is an update returned by a stage handler: a snapshot of Data with
// zero or more fields populated. Merge folds it onto an existing Data,
// never clearing a field the base already has.
type Partial = Data

// Merge returns a copy of d with every non-nil/non-empty field of p
// overlaid. Fields p does not set are left untouched on the result — a
// handler returning an empty Partial is legal and never regresses data.
func (d Data) Merge(p Partial) Data {
	out := d
	if p.Issue != nil {
		out.Issue = p.Issue
	}
	if p.Analysis != nil {
		out.Analysis = p.Analysis
	}
	if len(p.SearchResults) > 0 {
		out.SearchResults = p.SearchResults
	}
	if p.Plan != nil {
		out.Plan = p.Plan
	}
	if p.Proposal != nil {
		out.Proposal = p.Proposal
	}
	if p.Apply != nil {
		out.Apply = p.Apply
	}
	if p.Build != nil {
		out.Build = p.Build
	}
	if p.Test != nil {
		out.Test = p.Test
	}
	if p.Review != nil {
		out.Review = p.Review
	}
	if p.Submission != nil {
		out.Submission = p.Submission
	}
	if p.Cost != nil {
		out.Cost = p.Cost
	}
	return out
}

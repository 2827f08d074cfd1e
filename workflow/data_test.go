package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeNeverRegressesData(t *testing.T) {
	base := Data{
		Input:    Input{Owner: "acme", Repo: "widget", IssueNumber: 7},
		Analysis: &Analysis{Summary: "nil pointer"},
	}
	merged := base.Merge(Partial{Plan: &FixPlan{Steps: []string{"patch foo.go"}}})

	require.NotNil(t, merged.Analysis)
	require.Equal(t, "nil pointer", merged.Analysis.Summary)
	require.NotNil(t, merged.Plan)
	require.Equal(t, []string{"patch foo.go"}, merged.Plan.Steps)
}

func TestMergeEmptyPartialIsLegal(t *testing.T) {
	base := Data{Analysis: &Analysis{Summary: "x"}}
	merged := base.Merge(Partial{})
	require.Equal(t, base, merged)
}

func TestDataContextRoundTrip(t *testing.T) {
	d := Data{
		Input:         Input{Owner: "acme", Repo: "widget", IssueNumber: 7},
		Analysis:      &Analysis{Summary: "s", RootCause: "rc"},
		SearchResults: []SearchHit{{Path: "a.go", Line: 3}},
	}
	ctx, err := DataToContext(d)
	require.NoError(t, err)
	require.Contains(t, ctx, "analysis")
	require.NotContains(t, ctx, "plan")

	back, err := ContextToData(ctx)
	require.NoError(t, err)
	require.Equal(t, d.Analysis.Summary, back.Analysis.Summary)
	require.Len(t, back.SearchResults, 1)
	require.Nil(t, back.Plan)
}

func TestRecordJSONRoundTripPreservesUnknownFields(t *testing.T) {
	raw := []byte(`{"runId":"r1","currentState":"ANALYZING","updatedAt":"2026-07-31T00:00:00Z","attempt":1,"context":{},"history":[],"externalTag":"keep-me"}`)

	var rec Record
	require.NoError(t, rec.UnmarshalJSON(raw))
	require.Equal(t, "keep-me", rec.Extra["externalTag"])

	out, err := rec.MarshalJSON()
	require.NoError(t, err)

	var roundTripped Record
	require.NoError(t, roundTripped.UnmarshalJSON(out))
	require.Equal(t, "keep-me", roundTripped.Extra["externalTag"])
	require.Equal(t, StateAnalyzing, roundTripped.CurrentState)
}

func TestRecordCloneDoesNotAliasMaps(t *testing.T) {
	rec := Record{Context: map[string]any{"a": 1}, History: []State{StateIdle}}
	clone := rec.Clone()
	clone.Context["a"] = 2
	clone.History[0] = StateAnalyzing

	require.Equal(t, 1, rec.Context["a"])
	require.Equal(t, StateIdle, rec.History[0])
}

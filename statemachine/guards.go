package statemachine

import "github.com/DaniyalFaraz2003/OSC-Agent/workflow"

// Guard is a predicate evaluated against the merged run context before a
// transition into its destination state is permitted. A transition whose
// destination has a registered Guard that returns false fails with a
// GuardRejected error instead of committing.
type Guard func(ctx map[string]any) bool

// defaultGuards is the minimum guard set: SEARCHING requires an analysis
// in context, PLANNING requires non-empty search results. Further guards
// are a registration-time concern, not baked in here.
func defaultGuards() map[workflow.State]Guard {
	return map[workflow.State]Guard{
		workflow.StateSearching: guardHasAnalysis,
		workflow.StatePlanning:  guardHasSearchResults,
	}
}

func guardHasAnalysis(ctx map[string]any) bool {
	v, ok := ctx["analysis"]
	return ok && v != nil
}

func guardHasSearchResults(ctx map[string]any) bool {
	v, ok := ctx["searchResults"]
	if !ok || v == nil {
		return false
	}
	switch hits := v.(type) {
	case []any:
		return len(hits) > 0
	case []workflow.SearchHit:
		return len(hits) > 0
	default:
		return true
	}
}

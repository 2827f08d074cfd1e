package handlers

import (
	"fmt"
	"strings"

	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// proposalMarker separates a FixProposal's explanation from its patch
// set in an LLMClient.Generate completion for the GENERATING stage. Each
// patch block is introduced by a "--- path: <file> ---" marker followed
// by a unified diff body, terminated by the next marker or end of text.
const proposalMarker = "--- path: "

// parseProposal decodes a GENERATING-stage completion into a FixProposal.
// Text preceding the first patch marker is the explanation; everything
// from a marker to the next marker (or end of input) is one Patch.
func parseProposal(content string) (workflow.FixProposal, error) {
	idx := strings.Index(content, proposalMarker)
	if idx < 0 {
		return workflow.FixProposal{}, fmt.Errorf("no patch markers found in completion")
	}

	explanation := strings.TrimSpace(content[:idx])
	rest := content[idx:]

	var patches []workflow.Patch
	for _, block := range strings.Split(rest, proposalMarker) {
		if block == "" {
			continue
		}
		nl := strings.IndexByte(block, '\n')
		if nl < 0 {
			continue
		}
		path := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(block[:nl]), "---"))
		diff := strings.TrimSpace(block[nl+1:])
		if path == "" || diff == "" {
			continue
		}
		patches = append(patches, workflow.Patch{Path: path, Diff: diff})
	}
	if len(patches) == 0 {
		return workflow.FixProposal{}, fmt.Errorf("no valid patch blocks found in completion")
	}
	return workflow.FixProposal{Explanation: explanation, Patches: patches}, nil
}

// FormatProposal renders p back into the wire format parseProposal reads
// — used by the stub LLM client to produce deterministic, round-trippable
// completions for the GENERATING stage.
func FormatProposal(p workflow.FixProposal) string {
	var b strings.Builder
	b.WriteString(p.Explanation)
	for _, patch := range p.Patches {
		b.WriteString("\n")
		b.WriteString(proposalMarker)
		b.WriteString(patch.Path)
		b.WriteString(" ---\n")
		b.WriteString(patch.Diff)
		b.WriteString("\n")
	}
	return b.String()
}

package handlers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaniyalFaraz2003/OSC-Agent/handlers"
)

func TestUnifiedPatchEngine_AppliesSingleHunk(t *testing.T) {
	original := "package widget\nfunc Render() {\n\treturn\n}\n"
	diff := "@@ -1,4 +1,5 @@\n" +
		" package widget\n" +
		"+// Render draws the widget.\n" +
		" func Render() {\n" +
		" \treturn\n" +
		" }\n"

	engine := handlers.NewUnifiedPatchEngine()
	updated, err := engine.Apply(original, diff)
	require.NoError(t, err)
	assert.Equal(t, "package widget\n// Render draws the widget.\nfunc Render() {\n\treturn\n}\n", updated)
}

func TestUnifiedPatchEngine_RemovesLine(t *testing.T) {
	original := "a\nb\nc\n"
	diff := "@@ -1,3 +1,2 @@\n a\n-b\n c\n"

	engine := handlers.NewUnifiedPatchEngine()
	updated, err := engine.Apply(original, diff)
	require.NoError(t, err)
	assert.Equal(t, "a\nc\n", updated)
}

func TestUnifiedPatchEngine_RejectsContextMismatch(t *testing.T) {
	original := "a\nb\nc\n"
	diff := "@@ -1,3 +1,3 @@\n a\n-z\n c\n"

	engine := handlers.NewUnifiedPatchEngine()
	_, err := engine.Apply(original, diff)
	assert.Error(t, err)
}

func TestUnifiedPatchEngine_RejectsMissingHunks(t *testing.T) {
	engine := handlers.NewUnifiedPatchEngine()
	_, err := engine.Apply("a\n", "not a diff")
	assert.Error(t, err)
}

package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaniyalFaraz2003/OSC-Agent/validation"
)

const analysisSchema = `{
	"type": "object",
	"required": ["summary", "rootCause"],
	"properties": {
		"summary": {"type": "string", "minLength": 1},
		"rootCause": {"type": "string", "minLength": 1}
	}
}`

func TestSchema_EmptyIsNoop(t *testing.T) {
	s, err := validation.Compile(nil)
	require.NoError(t, err)
	assert.NoError(t, s.Validate("analysis", map[string]any{}))
}

func TestSchema_ValidatesStruct(t *testing.T) {
	s, err := validation.Compile([]byte(analysisSchema))
	require.NoError(t, err)

	err = s.Validate("analysis", struct {
		Summary   string `json:"summary"`
		RootCause string `json:"rootCause"`
	}{Summary: "x", RootCause: "y"})
	assert.NoError(t, err)
}

func TestSchema_RejectsMissingField(t *testing.T) {
	s, err := validation.Compile([]byte(analysisSchema))
	require.NoError(t, err)

	err = s.Validate("analysis", map[string]any{"summary": "x"})
	require.Error(t, err)
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "analysis", verr.Stage)
}

func TestCompile_RejectsMalformedSchema(t *testing.T) {
	_, err := validation.Compile([]byte(`{not json`))
	assert.Error(t, err)
}

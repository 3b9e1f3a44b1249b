package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDistance(t *testing.T) {
	assert.Contains(t, FormatDistance(0.12345), "0.1235")
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "$0.00000062", FormatCost(31*0.02/1_000_000))
}

func TestHorizontalRule(t *testing.T) {
	assert.Equal(t, 5, strings.Count(HorizontalRule(5), "─"))
}

func TestHighlightJSON(t *testing.T) {
	out := HighlightJSON(map[string]any{"policy_type": "flights"})
	assert.Contains(t, out, "policy_type")
	assert.Contains(t, out, "flights")
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("# Title\n\nSome text.")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
}

package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeCommand_Plain(t *testing.T) {
	out, err := runRoot(t, "", "sanitize", "clean text")
	require.NoError(t, err)
	assert.Equal(t, "clean text", out)
}

func TestSanitizeCommand_JSON(t *testing.T) {
	out, err := runRoot(t, "", "sanitize", "--json", "hi​dden")
	require.NoError(t, err)

	var res struct {
		Text     string   `json:"text"`
		Warnings []string `json:"warnings"`
		Changed  bool     `json:"changed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "hidden", res.Text)
	assert.True(t, res.Changed)
	require.Len(t, res.Warnings, 1)
}

func TestSanitizeCommand_Stdin(t *testing.T) {
	out, err := runRoot(t, "from⁠ a pipe", "sanitize")
	require.NoError(t, err)
	assert.Equal(t, "from a pipe", out)
}

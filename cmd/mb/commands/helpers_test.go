package commands

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Martian-Engineering/mb-cli/internal/config"
	"github.com/Martian-Engineering/mb-cli/internal/rate"
)

func TestParseAction_Valid(t *testing.T) {
	for _, s := range []string{"request", "comment", "post"} {
		act, err := parseAction(s)
		require.NoError(t, err)
		assert.Equal(t, rate.Action(s), act)
	}
}

func TestParseAction_Unknown(t *testing.T) {
	_, err := parseAction("dance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dance")
}

func TestReadText_FromArg(t *testing.T) {
	cmd := &cobra.Command{}
	text, err := readText(cmd, []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestReadText_FromStdin(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("piped content"))

	text, err := readText(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, "piped content", text)

	cmd.SetIn(strings.NewReader("dash means stdin"))
	text, err = readText(cmd, []string{"-"})
	require.NoError(t, err)
	assert.Equal(t, "dash means stdin", text)
}

func TestRateLimits_FromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Rate.RequestsPerMinute = 10
	cfg.Rate.PostCooldownS = 600

	limits := rateLimits(cfg)
	assert.Equal(t, 10, limits.RequestsPerMinute)
	assert.Equal(t, int64(600_000), limits.PostCooldownMs)
	assert.Zero(t, limits.CommentsPerHour)
}

func TestShortPreview(t *testing.T) {
	assert.Equal(t, "short", shortPreview("short"))

	long := strings.Repeat("x", 100)
	got := shortPreview(long)
	assert.Equal(t, 49, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}

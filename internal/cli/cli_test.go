package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.February, 1, 12, 0, 0, 0, time.UTC)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand(&RootOptions{Now: func() time.Time { return fixedNow }})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestGolden(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "plan_weekly_text",
			args: []string{"plan", "--rule", "testdata/rule_weekly.yaml"},
		},
		{
			name: "plan_month_end_json",
			args: []string{"--format", "json", "plan", "--rule", "testdata/rule_month_end.yaml", "--until", "2024-04-30"},
		},
		{
			name: "slots_text",
			args: []string{
				"slots", "--busy", "testdata/busy.yaml",
				"--participants", "alice,bob",
				"--from", "2024-01-01T09:00:00Z", "--to", "2024-01-01T17:00:00Z",
				"--duration", "30",
			},
		},
		{
			name: "workflow_lint_text",
			args: []string{"workflow", "lint", "testdata/catalog.yaml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			newGoldie(t).Assert(t, tt.name, []byte(out))
		})
	}
}

func TestPlan_UnboundedRuleNeedsUntil(t *testing.T) {
	_, err := execute(t, "plan", "--rule", "testdata/rule_month_end.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "--until")
}

func TestPlan_MaxOccurrences(t *testing.T) {
	_, err := execute(t, "plan", "--rule", "testdata/rule_weekly.yaml", "--max", "2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRoot_InvalidFlags(t *testing.T) {
	_, err := execute(t, "--format", "xml", "plan", "--rule", "testdata/rule_weekly.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "--timezone", "Mars/Olympus", "plan", "--rule", "testdata/rule_weekly.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "plan", "--rule", "testdata/missing.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSlots_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json",
		"slots", "--busy", "testdata/busy.yaml",
		"--participants", "carol",
		"--from", "2024-01-01T09:00:00Z", "--to", "2024-01-01T17:00:00Z",
	)
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "ok"`)
	assert.Contains(t, out, `"slots": []`)
	assert.Contains(t, out, `"duration_minutes": 30`)
}

func TestWorkflowLint_Invalid(t *testing.T) {
	out, err := execute(t, "workflow", "lint", "testdata/catalog_invalid.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, strings.HasPrefix(out, "✗ testdata/catalog_invalid.yaml:"), out)
	assert.Contains(t, out, "no validator")

	out, err = execute(t, "--format", "json", "workflow", "lint", "testdata/catalog_invalid.yaml")
	require.Error(t, err)
	assert.Contains(t, out, `"status": "error"`)
}

func TestExport(t *testing.T) {
	out, err := execute(t, "export", "--rule", "testdata/rule_weekly.yaml")
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, "SUMMARY:Weekly sync")
	assert.Contains(t, out, "LOCATION:Room 3")
	assert.Contains(t, out, "DTSTART:20240101T100000Z")

	path := filepath.Join(t.TempDir(), "weekly.ics")
	out, err = execute(t, "export", "--rule", "testdata/rule_weekly.yaml", "-o", path)
	require.NoError(t, err)
	assert.Equal(t, "wrote 4 event(s) to "+path+"\n", out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BEGIN:VCALENDAR")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(io.EOF))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad", io.EOF)))
}

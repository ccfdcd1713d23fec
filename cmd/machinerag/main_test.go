package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/machinerag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pressGraph = `{
  "id": "urn:iff:asset:7",
  "type": "press",
  "name": "Hydraulic Press",
  "hydraulics": {"oil": {"type": "Property", "value": "HLP 46"}},
  "max_force": {"type": "Property", "value": 250, "unit": "kN"}
}`

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := fmt.Sprintf(`ai:
  provider: mock
  dimension: 32
storage:
  backend: badger
  path: %s
  collection: machines
ingestion:
  min_tokens: 2
  max_tokens: 20
  overlap_tokens: 2
timeseries:
  path: %s
`, filepath.Join(dir, "vectors"), filepath.Join(dir, "history.db"))
	path := filepath.Join(dir, "machinerag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"machinerag"}, args...))
	return out.String(), err
}

func TestParseTurn(t *testing.T) {
	turn, err := parseTurn("User: what oil does it use?")
	require.NoError(t, err)
	assert.Equal(t, core.ChatTurn{Role: core.RoleUser, Content: "what oil does it use?"}, turn)

	turn, err = parseTurn("assistant:see [S1]: HLP 46")
	require.NoError(t, err)
	assert.Equal(t, core.RoleAssistant, turn.Role)
	assert.Equal(t, "see [S1]: HLP 46", turn.Content, "only the first colon separates the role")

	_, err = parseTurn("no separator")
	assert.Error(t, err)

	_, err = parseTurn("robot: hello")
	assert.ErrorIs(t, err, core.ErrInvalidChatTurn)
}

func TestGlobalFlags(t *testing.T) {
	t.Run("invalid log level", func(t *testing.T) {
		_, err := run(t, "--log-level", "loud", "stats")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("invalid log format", func(t *testing.T) {
		_, err := run(t, "--log-format", "xml", "stats")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log format")
	})

	t.Run("missing env file", func(t *testing.T) {
		_, err := run(t, "--env-file", filepath.Join(t.TempDir(), "absent.env"), "stats")
		assert.Error(t, err)
	})

	t.Run("env file overrides config", func(t *testing.T) {
		dir := t.TempDir()
		cfg := writeConfig(t, dir)
		envFile := filepath.Join(dir, ".env")
		require.NoError(t, os.WriteFile(envFile, []byte("MACHINERAG_STORAGE__COLLECTION=presses\n"), 0o644))
		t.Cleanup(func() { os.Unsetenv("MACHINERAG_STORAGE__COLLECTION") })

		out, err := run(t, "-c", cfg, "--env-file", envFile, "stats")
		require.NoError(t, err)
		assert.Contains(t, out, "Collection: presses")
	})
}

func TestCommandArguments(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	tests := []struct {
		name string
		args []string
	}{
		{"ingest without sources", []string{"ingest"}},
		{"ask without question", []string{"ask"}},
		{"ask with bad turn", []string{"ask", "--turn", "oops", "hello"}},
		{"series load without file", []string{"series", "load"}},
		{"alerts without asset", []string{"alerts"}},
		{"alerts without service", []string{"alerts", "urn:iff:asset:7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"-c", cfg}, tt.args...)...)
			assert.Error(t, err)
		})
	}
}

func TestCommands_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	graph := filepath.Join(dir, "press.json")
	require.NoError(t, os.WriteFile(graph, []byte(pressGraph), 0o644))

	out, err := run(t, "-c", cfg, "ingest", "--quiet", graph)
	require.NoError(t, err)
	assert.Contains(t, out, "Failed:   0")
	assert.NotContains(t, out, "Uploaded: 0")

	out, err = run(t, "-c", cfg, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Collection: machines")
	assert.Contains(t, out, "Samples:    0")

	now := time.Now()
	var csv strings.Builder
	csv.WriteString("entity_id,attribute,observed_at,value\n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&csv, "urn:iff:asset:7,https://industry-fusion.org/base/v0.1/pressure,%d,%d\n",
			now.Add(-time.Duration(i)*time.Hour).UnixMilli(), 100+i)
	}
	csvPath := filepath.Join(dir, "pressure.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(csv.String()), 0o644))

	out, err = run(t, "-c", cfg, "series", "load", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 3 readings")

	out, err = run(t, "-c", cfg, "ask", "plot the pressure for urn:iff:asset:7 over the last 24h")
	require.NoError(t, err)
	assert.Contains(t, out, "Series urn:iff:asset:7 pressure")
	assert.Contains(t, out, "Count: 3  Min: 101  Max: 103")

	out, err = run(t, "-c", cfg, "ask", "--machine", "urn:iff:asset:7",
		"--turn", "user:tell me about the press", "--turn", "assistant:it is hydraulic",
		"which oil does the hydraulic press use?")
	require.NoError(t, err)
	assert.Contains(t, out, "Context:")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "[S1] ")

	out, err = run(t, "-c", cfg, "ask", "--machine", "urn:iff:asset:unknown", "which oil?")
	require.NoError(t, err)
	assert.NotContains(t, out, "Sources:")
}

func TestIngestProgress(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	graph := filepath.Join(dir, "press.json")
	require.NoError(t, os.WriteFile(graph, []byte(pressGraph), 0o644))

	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	require.NoError(t, app.Run([]string{"machinerag", "-c", cfg, "--log-level", "error", "ingest", graph}))

	assert.Contains(t, errOut.String(), "1/1 sources (100.0%)")
}

package machinerag

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/machinerag/config"
	"github.com/poiesic/machinerag/core"
	"github.com/poiesic/machinerag/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cutterGraph = `{
  "@context": "https://industry-fusion.org/context.jsonld",
  "id": "urn:iff:asset:42",
  "type": "cutter",
  "name": "Laser Cutter 3000",
  "firmware_version": "4.2",
  "spindle": {"max_speed": {"type": "Property", "value": 12000, "unit": "rpm"}},
  "coolant": "water-glycol"
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.AI.Provider = config.ProviderMock
	cfg.AI.Dimension = 32
	cfg.Storage.InMemory = true
	cfg.Storage.Path = ""
	cfg.Ingestion.MinTokens = 2
	cfg.Ingestion.MaxTokens = 20
	cfg.Ingestion.OverlapTokens = 2
	return cfg
}

func TestNewEngine(t *testing.T) {
	t.Run("mock provider with in-memory badger", func(t *testing.T) {
		e, err := NewEngine(testConfig(t))
		require.NoError(t, err)
		defer e.Close()

		assert.NotNil(t, e.Provider())
		assert.NotNil(t, e.VectorStore())
		assert.Nil(t, e.SeriesStore())
		assert.Nil(t, e.AlertResolver())
		assert.Equal(t, 32, e.Provider().Embedder().Dimension())
	})

	t.Run("chromem backend", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Storage.Backend = config.BackendChromem
		e, err := NewEngine(cfg)
		require.NoError(t, err)
		assert.NoError(t, e.Close())
	})

	t.Run("optional resolvers", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.TimeSeries.Path = filepath.Join(t.TempDir(), "history.db")
		cfg.Alerts.BaseURL = "http://alerta.invalid/api"
		e, err := NewEngine(cfg)
		require.NoError(t, err)
		defer e.Close()
		assert.NotNil(t, e.SeriesStore())
		assert.NotNil(t, e.AlertResolver())
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Storage.Backend = "qdrant"
		_, err := NewEngine(cfg)
		assert.Error(t, err)
	})

	t.Run("badger path that is a file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Storage.InMemory = false
		cfg.Storage.Path = filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(cfg.Storage.Path, []byte("x"), 0o644))
		_, err := NewEngine(cfg)
		assert.Error(t, err)
	})
}

func TestEngine_IngestAndAsk(t *testing.T) {
	e, err := NewEngine(testConfig(t))
	require.NoError(t, err)
	defer e.Close()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "cutter.json")
	require.NoError(t, os.WriteFile(path, []byte(cutterGraph), 0o644))

	res, err := e.Ingest(ctx, path)
	require.NoError(t, err)
	assert.Greater(t, res.Uploaded, 1)
	assert.Zero(t, res.Failed)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "machines", stats.Collection)
	assert.Equal(t, res.Uploaded, stats.Records)
	assert.Equal(t, -1, stats.Samples)

	again, err := e.Ingest(ctx, path)
	require.NoError(t, err)
	stats, err = e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Uploaded, stats.Records, "re-ingesting identical content overwrites records")
	assert.Equal(t, res.Uploaded, again.Uploaded)

	answer, err := e.Ask(ctx, []core.ChatTurn{{Role: core.RoleUser, Content: "what coolant does the laser cutter use?"}})
	require.NoError(t, err)
	assert.Equal(t, core.ResultAnswer, answer.Kind)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "[S1]", answer.Sources[0].Marker)
	// the offline completer echoes the system turn
	assert.Contains(t, answer.Text, "\n\nContext:\n[S1] ")
	assert.Equal(t, "urn:iff:asset:42", answer.Sources[0].Labels[core.LabelMachineID])

	_, err = e.Ask(ctx, []core.ChatTurn{{Role: "operator", Content: "hi"}})
	assert.ErrorIs(t, err, core.ErrInvalidChatTurn)
}

func TestEngine_ChartPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.TimeSeries.Path = filepath.Join(t.TempDir(), "history.db")
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	defer e.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	csv := "entity_id,attribute,observed_at,value\n"
	for i, v := range []string{"21.5", "22.0", "23.5"} {
		csv += "urn:iff:asset:42,temperature," + now.Add(-time.Duration(i+1)*time.Hour).Format(time.RFC3339) + "," + v + "\n"
	}
	n, err := e.SeriesStore().LoadCSV(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := e.Ask(ctx, []core.ChatTurn{{Role: core.RoleUser, Content: "show me the temperature trend for urn:iff:asset:42 over the last 24h"}})
	require.NoError(t, err)
	assert.Equal(t, core.ResultSeries, res.Kind)
	assert.Equal(t, core.SeriesStats{Count: 3, Min: 21.5, Max: 23.5}, res.Stats)
	assert.Len(t, res.Points, 3)

	res, err = e.Ask(ctx, []core.ChatTurn{{Role: core.RoleUser, Content: "plot the pressure for urn:iff:asset:42 over the last 24h"}})
	require.NoError(t, err)
	assert.Equal(t, core.ResultSeries, res.Kind)
	assert.True(t, res.NoData)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Samples)
}

func TestEngine_UnreachableAlertsReportNoData(t *testing.T) {
	cfg := testConfig(t)
	cfg.Alerts.BaseURL = "http://127.0.0.1:1/api"
	cfg.Alerts.Timeout = 500 * time.Millisecond
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	defer e.Close()

	res, err := e.Ask(context.Background(), []core.ChatTurn{{Role: core.RoleUser, Content: "any alarms on urn:iff:asset:7?"}})
	require.NoError(t, err)
	assert.Equal(t, core.ResultAlerts, res.Kind)
	assert.True(t, res.NoData)
}

var _ timeseries.Resolver = (*timeseries.SQLStore)(nil)

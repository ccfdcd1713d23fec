package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/machinerag/ai"
	"github.com/poiesic/machinerag/ai/mock"
	"github.com/poiesic/machinerag/core"
	"github.com/poiesic/machinerag/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

type stubRetriever struct {
	mu      sync.Mutex
	sources []core.Source
	err     error
	calls   int
	turns   []core.ChatTurn
}

func (s *stubRetriever) Retrieve(_ context.Context, turns []core.ChatTurn) ([]core.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.turns = turns
	return s.sources, s.err
}

type stubSeries struct {
	readings []core.Reading
	calls    int
	from, to time.Time
	metric   string
}

func (s *stubSeries) Fetch(_ context.Context, _, metric string, from, to time.Time) ([]core.Reading, error) {
	s.calls++
	s.metric, s.from, s.to = metric, from, to
	return s.readings, nil
}

type stubAlerts struct {
	alerts []core.Alert
	err    error
	calls  int
}

func (s *stubAlerts) Fetch(context.Context, string) ([]core.Alert, error) {
	s.calls++
	return s.alerts, s.err
}

func readings(n int) []core.Reading {
	out := make([]core.Reading, n)
	for i := range out {
		out[i] = core.Reading{Timestamp: now.Add(time.Duration(i-n) * time.Minute), Value: float64(i % 50)}
	}
	return out
}

func ask(content string) []core.ChatTurn {
	return []core.ChatTurn{{Role: core.RoleUser, Content: content}}
}

type fixture struct {
	classifier *mock.MockClassifier
	retriever  *stubRetriever
	completer  *mock.MockCompleter
	series     *stubSeries
	alerts     *stubAlerts
	orch       *Orchestrator
}

func newFixture(t *testing.T, intent core.Intent, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		classifier: mock.NewMockClassifier(intent),
		retriever: &stubRetriever{sources: []core.Source{
			{Marker: "[S1]", ID: "1", Text: "spindle max 12000 rpm"},
			{Marker: "[S2]", ID: "2", Text: "coolant is water-glycol"},
		}},
		completer: mock.NewMockCompleter("The spindle runs up to 12000 rpm [S1]."),
		series:    &stubSeries{},
		alerts:    &stubAlerts{},
	}
	opts = append([]Option{
		WithSeriesResolver(f.series),
		WithAlertResolver(f.alerts),
		WithClock(func() time.Time { return now }),
	}, opts...)

	orch, err := NewOrchestrator(f.classifier, f.retriever, f.completer, opts...)
	require.NoError(t, err)
	f.orch = orch
	return f
}

func TestNewOrchestrator_Validation(t *testing.T) {
	classifier := mock.NewMockClassifier(core.NoIntent(core.ReasonClassified))
	completer := mock.NewMockCompleter("")
	retriever := &stubRetriever{}

	_, err := NewOrchestrator(nil, retriever, completer)
	assert.Equal(t, ErrClassifierRequired, err)
	_, err = NewOrchestrator(classifier, nil, completer)
	assert.Equal(t, ErrRetrieverRequired, err)
	_, err = NewOrchestrator(classifier, retriever, nil)
	assert.Equal(t, ErrCompleterRequired, err)

	for _, opt := range []Option{WithHistoryLimit(0), WithPreviewLimit(0), WithSystemPrompt(""), WithClock(nil)} {
		_, err = NewOrchestrator(classifier, retriever, completer, opt)
		assert.Error(t, err)
	}
}

func TestAnswer_ChartWithData(t *testing.T) {
	f := newFixture(t, core.ChartIntent("urn:iff:asset:42", "temperature", core.RelativeWindow(24, core.UnitHour)),
		WithPreviewLimit(100))
	f.series.readings = readings(250)

	res, err := f.orch.Answer(context.Background(), ask("show me the temperature trend for urn:iff:asset:42 over the last 24h"))
	require.NoError(t, err)

	assert.Equal(t, 0, f.completer.CallCount(), "chart path never calls the completion service")
	assert.Equal(t, 0, f.retriever.calls)
	assert.Equal(t, 1, f.classifier.CallCount())
	assert.Equal(t, 1, f.series.calls)

	assert.Equal(t, core.ResultSeries, res.Kind)
	assert.False(t, res.NoData)
	assert.Equal(t, "urn:iff:asset:42", res.AssetRef)
	assert.Equal(t, "temperature", res.Metric)
	assert.Equal(t, now.Add(-24*time.Hour), res.From)
	assert.Equal(t, now, res.To)
	assert.Equal(t, f.series.from, res.From)

	assert.Equal(t, core.SeriesStats{Count: 250, Min: 0, Max: 49}, res.Stats)
	assert.True(t, res.Truncated)
	require.Len(t, res.Points, 100)
	assert.Equal(t, f.series.readings[150], res.Points[0], "preview keeps the newest readings")
	assert.Equal(t, f.series.readings[249], res.Points[99])
}

func TestAnswer_ChartPreviewSortsReadings(t *testing.T) {
	f := newFixture(t, core.ChartIntent("urn:iff:asset:42", "", core.RelativeWindow(1, core.UnitDay)), WithPreviewLimit(2))
	f.series.readings = []core.Reading{
		{Timestamp: now.Add(-time.Minute), Value: 3},
		{Timestamp: now.Add(-3 * time.Minute), Value: 1},
		{Timestamp: now.Add(-2 * time.Minute), Value: 2},
	}

	res, err := f.orch.Answer(context.Background(), ask("plot urn:iff:asset:42"))
	require.NoError(t, err)
	assert.Equal(t, []core.Reading{f.series.readings[2], f.series.readings[0]}, res.Points)
	assert.Equal(t, core.SeriesStats{Count: 3, Min: 1, Max: 3}, res.Stats)
}

func TestAnswer_ChartWithoutData(t *testing.T) {
	f := newFixture(t, core.ChartIntent("urn:iff:asset:42", "temperature", core.DefaultWindow(now, time.UTC)))

	res, err := f.orch.Answer(context.Background(), ask("chart temperature for urn:iff:asset:42"))
	require.NoError(t, err)
	assert.Equal(t, core.ResultSeries, res.Kind)
	assert.True(t, res.NoData)
	assert.Empty(t, res.Points)
	assert.Equal(t, 0, f.completer.CallCount())
	assert.Equal(t, 0, f.retriever.calls)
}

func TestAnswer_ChartWithoutWindowFallsThrough(t *testing.T) {
	f := newFixture(t, core.ChartIntent("urn:iff:asset:42", "temperature", core.TimeWindow{}))

	res, err := f.orch.Answer(context.Background(), ask("chart temperature for urn:iff:asset:42"))
	require.NoError(t, err)
	assert.Equal(t, core.ResultAnswer, res.Kind)
	assert.Equal(t, 0, f.series.calls)
	assert.Equal(t, 0, f.alerts.calls)
	assert.Equal(t, 1, f.retriever.calls)
	assert.Equal(t, 1, f.completer.CallCount())
}

func TestAnswer_Alerts(t *testing.T) {
	f := newFixture(t, core.AlertIntent("urn:iff:asset:7"))
	f.alerts.alerts = []core.Alert{{ID: "a1", Severity: "major", Status: "open"}}

	res, err := f.orch.Answer(context.Background(), ask("any alarms on urn:iff:asset:7?"))
	require.NoError(t, err)
	assert.Equal(t, core.ResultAlerts, res.Kind)
	assert.False(t, res.NoData)
	assert.Equal(t, f.alerts.alerts, res.Alerts)
	assert.Equal(t, 0, f.series.calls)
	assert.Equal(t, 0, f.completer.CallCount())
	assert.Equal(t, 0, f.retriever.calls)

	t.Run("empty and failing resolvers report no data", func(t *testing.T) {
		f := newFixture(t, core.AlertIntent("urn:iff:asset:7"))
		f.alerts.err = errors.New("connection refused")

		res, err := f.orch.Answer(context.Background(), ask("any alarms on urn:iff:asset:7?"))
		require.NoError(t, err)
		assert.Equal(t, core.ResultAlerts, res.Kind)
		assert.True(t, res.NoData)
		assert.Equal(t, 0, f.completer.CallCount())
	})
}

func TestAnswer_SemanticPath(t *testing.T) {
	f := newFixture(t, core.NoIntent(core.ReasonClassified), WithSampling(0.1, 256))
	turns := []core.ChatTurn{
		{Role: core.RoleUser, Content: "what is the max spindle speed?"},
		{Role: core.RoleAssistant, Content: "Which machine?"},
		{Role: core.RoleUser, Content: "the cutter"},
	}

	res, err := f.orch.Answer(context.Background(), turns)
	require.NoError(t, err)

	assert.Equal(t, core.ResultAnswer, res.Kind)
	assert.Equal(t, "The spindle runs up to 12000 rpm [S1].", res.Text)
	assert.Equal(t, f.retriever.sources, res.Sources)

	assert.Equal(t, 1, f.retriever.calls)
	assert.Equal(t, turns, f.retriever.turns)
	require.Equal(t, 1, f.completer.CallCount())
	assert.Equal(t, []string{"the cutter"}, f.classifier.Messages())

	req := f.completer.Requests()[0]
	assert.Equal(t, 0.1, req.Temperature)
	assert.Equal(t, 256, req.MaxTokens)
	require.Len(t, req.Messages, 4)

	system := req.Messages[0]
	assert.Equal(t, core.RoleSystem, system.Role)
	assert.Equal(t,
		DefaultSystemPrompt+"\n\nContext:\n[S1] spindle max 12000 rpm\n\n[S2] coolant is water-glycol",
		system.Content)
	assert.Less(t, strings.Index(system.Content, "[S1]"), strings.Index(system.Content, "[S2]"))
	assert.Equal(t, turns, req.Messages[1:])
}

func TestAnswer_HistoryIsBounded(t *testing.T) {
	f := newFixture(t, core.NoIntent(core.ReasonClassified))

	turns := make([]core.ChatTurn, 15)
	for i := range turns {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		turns[i] = core.ChatTurn{Role: role, Content: fmt.Sprintf("turn %d", i)}
	}

	_, err := f.orch.Answer(context.Background(), turns)
	require.NoError(t, err)

	msgs := f.completer.Requests()[0].Messages
	require.Len(t, msgs, 11)
	assert.Equal(t, core.RoleSystem, msgs[0].Role)
	assert.Equal(t, turns[5:], msgs[1:], "the ten most recent turns in original order")
	assert.Equal(t, turns, f.retriever.turns, "retrieval sees the whole conversation")
}

func TestAnswer_ClassifierFailureIsNegative(t *testing.T) {
	f := newFixture(t, core.Intent{})
	f.classifier.ClassifyFunc = func(context.Context, string) (core.Intent, error) {
		return core.AlertIntent("urn:iff:asset:7"), errors.New("service unavailable")
	}

	res, err := f.orch.Answer(context.Background(), ask("any alarms on urn:iff:asset:7?"))
	require.NoError(t, err)
	assert.Equal(t, core.ResultAnswer, res.Kind)
	assert.Equal(t, 1, f.classifier.CallCount())
	assert.Equal(t, 0, f.alerts.calls)
	assert.Equal(t, 1, f.completer.CallCount())

	t.Run("parse failure", func(t *testing.T) {
		f := newFixture(t, core.NoIntent(core.ReasonParseFailure))
		f.classifier.Err = core.ErrClassificationParse

		res, err := f.orch.Answer(context.Background(), ask("plot it"))
		require.NoError(t, err)
		assert.Equal(t, core.ResultAnswer, res.Kind)
	})
}

func TestAnswer_RetrievalFailureDegrades(t *testing.T) {
	f := newFixture(t, core.NoIntent(core.ReasonClassified))
	f.retriever.err = errors.New("collection not found")

	res, err := f.orch.Answer(context.Background(), ask("coolant?"))
	require.NoError(t, err)
	assert.Empty(t, res.Sources)
	system := f.completer.Requests()[0].Messages[0].Content
	assert.True(t, strings.HasSuffix(system, "\n\nContext:\n"))
}

func TestAnswer_CompletionFailure(t *testing.T) {
	f := newFixture(t, core.NoIntent(core.ReasonClassified))
	f.completer.CompleteFunc = func(context.Context, ai.CompletionRequest) (string, error) {
		return "", errors.New("502 bad gateway")
	}

	_, err := f.orch.Answer(context.Background(), ask("coolant?"))
	assert.ErrorIs(t, err, core.ErrCompletionService)
}

func TestAnswer_NoUserTurnSkipsClassification(t *testing.T) {
	f := newFixture(t, core.AlertIntent("urn:iff:asset:7"))

	res, err := f.orch.Answer(context.Background(), []core.ChatTurn{{Role: core.RoleAssistant, Content: "hello"}})
	require.NoError(t, err)
	assert.Equal(t, core.ResultAnswer, res.Kind)
	assert.Equal(t, 0, f.classifier.CallCount())
}

func TestAnswer_RuleClassifierWithSQLStore(t *testing.T) {
	store, err := timeseries.OpenSQLStore("")
	require.NoError(t, err)
	defer store.Close()

	var samples []timeseries.Sample
	for i := 0; i < 30; i++ {
		samples = append(samples, timeseries.Sample{
			EntityID:   "urn:iff:asset:42",
			Attribute:  "https://industry-fusion.org/base/v0.1/temperature",
			ObservedAt: now.Add(-time.Duration(i) * time.Hour),
			Value:      20 + float64(i),
		})
	}
	require.NoError(t, store.Insert(context.Background(), samples))

	series, err := timeseries.NewDegrading(store, nil)
	require.NoError(t, err)
	completer := mock.NewMockCompleter("unused")
	classifier := mock.NewRuleClassifier(time.UTC).WithClock(func() time.Time { return now })

	orch, err := NewOrchestrator(classifier, &stubRetriever{}, completer,
		WithSeriesResolver(series),
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	res, err := orch.Answer(context.Background(), ask("show me the temperature trend for urn:iff:asset:42 over the last 24h"))
	require.NoError(t, err)
	assert.Equal(t, core.ResultSeries, res.Kind)
	assert.Equal(t, "temperature", res.Metric)
	assert.Equal(t, 25, res.Stats.Count, "24h window is inclusive at both ends")
	assert.Equal(t, 20.0, res.Stats.Min)
	assert.Equal(t, 44.0, res.Stats.Max)
	assert.Equal(t, 0, completer.CallCount())

	res, err = orch.Answer(context.Background(), ask("hello, how are you"))
	require.NoError(t, err)
	assert.Equal(t, core.ResultAnswer, res.Kind)
	assert.Equal(t, 1, completer.CallCount())
}

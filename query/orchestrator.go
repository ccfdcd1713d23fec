package query

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/machinerag/ai"
	"github.com/poiesic/machinerag/alerts"
	"github.com/poiesic/machinerag/core"
	"github.com/poiesic/machinerag/search"
	"github.com/poiesic/machinerag/timeseries"
)

const (
	// DefaultHistoryLimit is the number of most recent turns sent for synthesis.
	DefaultHistoryLimit = 10

	// DefaultPreviewLimit caps the readings returned in a series result.
	DefaultPreviewLimit = 500
)

// Retriever supplies grounding sources for a conversation.
type Retriever interface {
	Retrieve(ctx context.Context, turns []core.ChatTurn) ([]core.Source, error)
}

// Orchestrator answers one request at a time. It holds no per-request
// state and is safe for concurrent use.
type Orchestrator struct {
	classifier ai.IntentClassifier
	retriever  Retriever
	completer  ai.Completer
	series     timeseries.Resolver
	alerts     alerts.Resolver

	historyLimit int
	previewLimit int
	systemPrompt string
	temperature  float64
	maxTokens    int
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithSeriesResolver enables the chart path. Without it chart intents fall
// through to semantic retrieval.
func WithSeriesResolver(r timeseries.Resolver) Option {
	return func(o *Orchestrator) error {
		o.series = r
		return nil
	}
}

// WithAlertResolver enables the alert path. Without it alert intents fall
// through to semantic retrieval.
func WithAlertResolver(r alerts.Resolver) Option {
	return func(o *Orchestrator) error {
		o.alerts = r
		return nil
	}
}

// WithHistoryLimit sets how many recent turns follow the system turn.
func WithHistoryLimit(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("history limit must be at least 1, got %d", n)
		}
		o.historyLimit = n
		return nil
	}
}

// WithPreviewLimit caps the readings returned in a series result.
func WithPreviewLimit(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("preview limit must be at least 1, got %d", n)
		}
		o.previewLimit = n
		return nil
	}
}

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) error {
		if prompt == "" {
			return fmt.Errorf("system prompt cannot be empty")
		}
		o.systemPrompt = prompt
		return nil
	}
}

// WithSampling sets temperature and max tokens of the completion call.
func WithSampling(temperature float64, maxTokens int) Option {
	return func(o *Orchestrator) error {
		o.temperature = temperature
		o.maxTokens = maxTokens
		return nil
	}
}

// WithClock sets the time source used to resolve relative windows.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) error {
		if now == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		o.now = now
		return nil
	}
}

// NewOrchestrator creates an orchestrator. Resolvers are optional and
// should already degrade to empty results on failure.
func NewOrchestrator(classifier ai.IntentClassifier, retriever Retriever, completer ai.Completer, opts ...Option) (*Orchestrator, error) {
	if classifier == nil {
		return nil, ErrClassifierRequired
	}
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if completer == nil {
		return nil, ErrCompleterRequired
	}

	o := &Orchestrator{
		classifier:   classifier,
		retriever:    retriever,
		completer:    completer,
		historyLimit: DefaultHistoryLimit,
		previewLimit: DefaultPreviewLimit,
		systemPrompt: DefaultSystemPrompt,
		now:          time.Now,
		logger:       slog.Default().With("component", "orchestrator"),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// Answer handles one request for the conversation turns, oldest first.
// The returned error wraps core.ErrCompletionService when answer synthesis
// fails; every other failure degrades.
func (o *Orchestrator) Answer(ctx context.Context, turns []core.ChatTurn) (core.QueryResult, error) {
	intent := o.classify(ctx, turns)

	switch intent.Kind {
	case core.IntentChart:
		if o.series == nil || intent.AssetRef == "" {
			break
		}
		from, to, ok := intent.Window.Resolve(o.now())
		if !ok {
			o.logger.Debug("chart intent without resolvable window", "intent", intent.String())
			break
		}
		return o.seriesResult(ctx, intent, from, to), nil

	case core.IntentAlert:
		if o.alerts == nil || intent.AssetRef == "" {
			break
		}
		return o.alertsResult(ctx, intent), nil
	}

	return o.answer(ctx, turns)
}

// classify runs the classifier once on the last user turn. Errors route
// like a negative result.
func (o *Orchestrator) classify(ctx context.Context, turns []core.ChatTurn) core.Intent {
	message, ok := core.LastUserTurn(turns)
	if !ok || message == "" {
		return core.NoIntent(core.ReasonClassified)
	}

	intent, err := o.classifier.Classify(ctx, message)
	if err != nil {
		reason := intent.Reason
		if reason == "" || reason == core.ReasonClassified {
			reason = core.ReasonServiceError
		}
		o.logger.Warn("intent classification failed, continuing without intent",
			"reason", reason,
			"err", err)
		return core.NoIntent(reason)
	}
	o.logger.Debug("classified intent", "intent", intent.String())
	return intent
}

func (o *Orchestrator) seriesResult(ctx context.Context, intent core.Intent, from, to time.Time) core.QueryResult {
	readings, err := o.series.Fetch(ctx, intent.AssetRef, intent.Metric, from, to)
	if err != nil {
		o.logger.Warn("time-series fetch failed", "asset", intent.AssetRef, "err", err)
		readings = nil
	}

	res := core.QueryResult{
		Kind:     core.ResultSeries,
		AssetRef: intent.AssetRef,
		Metric:   intent.Metric,
		From:     from,
		To:       to,
		NoData:   len(readings) == 0,
	}
	if res.NoData {
		return res
	}

	res.Stats = summarize(readings)
	res.Points, res.Truncated = preview(readings, o.previewLimit)
	return res
}

func (o *Orchestrator) alertsResult(ctx context.Context, intent core.Intent) core.QueryResult {
	list, err := o.alerts.Fetch(ctx, intent.AssetRef)
	if err != nil {
		o.logger.Warn("alert fetch failed", "asset", intent.AssetRef, "err", err)
		list = nil
	}
	return core.QueryResult{
		Kind:     core.ResultAlerts,
		AssetRef: intent.AssetRef,
		Alerts:   list,
		NoData:   len(list) == 0,
	}
}

func (o *Orchestrator) answer(ctx context.Context, turns []core.ChatTurn) (core.QueryResult, error) {
	sources, err := o.retriever.Retrieve(ctx, turns)
	if err != nil {
		o.logger.Warn("retrieval failed, answering without context", "err", err)
		sources = nil
	}

	req := ai.CompletionRequest{
		Messages:    o.messages(turns, sources),
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}
	text, err := o.completer.Complete(ctx, req)
	if err != nil {
		return core.QueryResult{}, fmt.Errorf("%w: %w", core.ErrCompletionService, err)
	}

	return core.QueryResult{
		Kind:    core.ResultAnswer,
		Text:    text,
		Sources: sources,
	}, nil
}

// messages builds the system turn followed by the most recent turns.
func (o *Orchestrator) messages(turns []core.ChatTurn, sources []core.Source) []core.ChatTurn {
	recent := turns
	if len(recent) > o.historyLimit {
		recent = recent[len(recent)-o.historyLimit:]
	}

	out := make([]core.ChatTurn, 0, len(recent)+1)
	out = append(out, core.ChatTurn{
		Role:    core.RoleSystem,
		Content: o.systemPrompt + contextSeparator + search.BuildContext(sources),
	})
	return append(out, recent...)
}

func summarize(readings []core.Reading) core.SeriesStats {
	stats := core.SeriesStats{Count: len(readings), Min: readings[0].Value, Max: readings[0].Value}
	for _, r := range readings[1:] {
		stats.Min = min(stats.Min, r.Value)
		stats.Max = max(stats.Max, r.Value)
	}
	return stats
}

// preview returns at most limit readings in ascending time order, keeping
// the newest.
func preview(readings []core.Reading, limit int) ([]core.Reading, bool) {
	sorted := slices.Clone(readings)
	slices.SortStableFunc(sorted, func(a, b core.Reading) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	if len(sorted) <= limit {
		return sorted, false
	}
	return sorted[len(sorted)-limit:], true
}

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/machinerag/ai"
	"github.com/poiesic/machinerag/core"
	"github.com/poiesic/machinerag/retry"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// IntentClassifier implements ai.IntentClassifier with a single strict
// json_schema structured output call.
type IntentClassifier struct {
	client llms.Model
	loc    *time.Location
	now    func() time.Time
	policy *retry.Policy
	logger *slog.Logger
}

// intentPayload matches the structured output schema.
type intentPayload struct {
	Intent        string `json:"intent"`
	AssetRef      string `json:"asset_ref"`
	Metric        string `json:"metric"`
	RelativeValue int    `json:"relative_value"`
	RelativeUnit  string `json:"relative_unit"`
	From          string `json:"from"`
	To            string `json:"to"`
}

func newIntentClassifier(config *ai.Config, policy *retry.Policy) (*IntentClassifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	loc, err := config.Location()
	if err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.CompletionHost),
		openai.WithToken(token(config)),
		openai.WithModel(config.ClassifierModel),
		openai.WithResponseFormat(intentResponseFormat()),
	)
	if err != nil {
		return nil, err
	}

	return &IntentClassifier{
		client: client,
		loc:    loc,
		now:    time.Now,
		policy: policy,
		logger: slog.Default().With("component", "openai-classifier"),
	}, nil
}

// NewIntentClassifier creates a new structured intent classifier.
//
// Returns ai.IntentClassifier interface to enforce abstraction.
func NewIntentClassifier(config *ai.Config) (ai.IntentClassifier, error) {
	return newIntentClassifier(config, policyFor(config))
}

// Classify makes one structured output call for message. Unparseable output
// yields NoIntent with ReasonParseFailure and an error wrapping
// core.ErrClassificationParse.
func (c *IntentClassifier) Classify(ctx context.Context, message string) (core.Intent, error) {
	now := c.now()
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildIntentPrompt(now.In(c.loc)))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(message)},
		},
	}

	var response *llms.ContentResponse
	err := c.policy.Do(ctx, func() error {
		var err error
		response, err = c.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
		return err
	})
	if err != nil {
		c.logger.Error("classification call failed", "err", err)
		return core.NoIntent(core.ReasonServiceError), err
	}
	if len(response.Choices) == 0 {
		return core.NoIntent(core.ReasonParseFailure), fmt.Errorf("%w: no choices returned", core.ErrClassificationParse)
	}

	payload, err := parseIntentPayload(response.Choices[0].Content)
	if err != nil {
		c.logger.Warn("error parsing classifier response", "response", response.Choices[0].Content, "err", err)
		return core.NoIntent(core.ReasonParseFailure), err
	}

	intent := intentFromPayload(payload, now, c.loc)
	c.logger.Debug("classified message", "intent", intent.String())
	return intent, nil
}

// parseIntentPayload strips code fences, repairs common key quoting
// mistakes and decodes the result.
func parseIntentPayload(raw string) (intentPayload, error) {
	var payload intentPayload
	text := repairJSON(stripCodeFences(raw))
	if text == "" {
		return payload, fmt.Errorf("%w: empty response", core.ErrClassificationParse)
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return payload, fmt.Errorf("%w: %w", core.ErrClassificationParse, err)
	}
	return payload, nil
}

// intentFromPayload maps decoded output onto a core.Intent. Intents without
// an asset reference are treated as none.
func intentFromPayload(p intentPayload, now time.Time, loc *time.Location) core.Intent {
	assetRef := strings.TrimSpace(p.AssetRef)

	switch strings.ToLower(strings.TrimSpace(p.Intent)) {
	case "chart":
		if assetRef == "" {
			return core.NoIntent(core.ReasonClassified)
		}
		metric := strings.ToLower(strings.TrimSpace(p.Metric))
		return core.ChartIntent(assetRef, metric, windowFromPayload(p, now, loc))
	case "alert":
		if assetRef == "" {
			return core.NoIntent(core.ReasonClassified)
		}
		return core.AlertIntent(assetRef)
	default:
		return core.NoIntent(core.ReasonClassified)
	}
}

// windowFromPayload prefers a relative period, then an explicit pair, then
// the default yesterday-through-today window. A single explicit bound is
// kept as is, which leaves the window unresolvable.
func windowFromPayload(p intentPayload, now time.Time, loc *time.Location) core.TimeWindow {
	unit := core.TimeUnit(strings.ToLower(strings.TrimSpace(p.RelativeUnit)))
	if p.RelativeValue > 0 && unit.Duration() > 0 {
		return core.RelativeWindow(p.RelativeValue, unit)
	}

	from, fromOK := parseInstant(p.From, loc, false)
	to, toOK := parseInstant(p.To, loc, true)
	switch {
	case fromOK && toOK:
		return core.ExplicitWindow(from, to)
	case fromOK:
		return core.TimeWindow{From: from}
	case toOK:
		return core.TimeWindow{To: to}
	}
	return core.DefaultWindow(now, loc)
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// parseInstant accepts ISO 8601 instants and plain dates. A plain date used
// as an upper bound means the end of that day.
func parseInstant(s string, loc *time.Location, endOfDay bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if d, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		if endOfDay {
			return d.AddDate(0, 0, 1).Add(-time.Nanosecond), true
		}
		return d, true
	}
	return time.Time{}, false
}

package mock

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/machinerag/core"
)

var (
	assetRefPattern = regexp.MustCompile(`(?i)\burn:[a-z0-9-]+(?::[a-z0-9._-]+)+`)
	chartPattern    = regexp.MustCompile(`(?i)\b(trend|trends|chart|plot|graph|history|timeseries|time series)\b`)
	alertPattern    = regexp.MustCompile(`(?i)\b(alerts?|alarms?)\b`)
	relativePattern = regexp.MustCompile(`(?i)\b(?:last|past|previous)\s+(\d+)?\s*(minutes?|mins?|m|hours?|hrs?|h|days?|d|weeks?|wks?|w)\b`)
	explicitPattern = regexp.MustCompile(`(?i)\bfrom\s+(\d{4}-\d{2}-\d{2})\s+(?:to|until|through)\s+(\d{4}-\d{2}-\d{2})\b`)

	// "<metric> trend", "<metric> chart", ...
	metricBefore = regexp.MustCompile(`(?i)\b([a-z_]+)\s+(?:trend|trends|chart|plot|graph|history)\b`)
	// "plot <metric>", "chart of the <metric>", ...
	metricAfter = regexp.MustCompile(`(?i)\b(?:plot|chart|graph|trend|history)\s+(?:of\s+)?(?:the\s+)?([a-z_]+)\b`)
)

var notMetrics = map[string]bool{
	"a": true, "an": true, "the": true, "me": true, "show": true, "us": true,
	"for": true, "of": true, "draw": true, "display": true, "give": true,
}

// RuleClassifier is a deterministic ai.IntentClassifier based on keyword
// rules. It recognizes asset URNs, chart and alert keywords, relative
// periods such as "last 24h" and explicit "from <date> to <date>" ranges.
// Without a recognized keyword and asset reference it answers NoIntent.
type RuleClassifier struct {
	loc *time.Location
	now func() time.Time
}

// NewRuleClassifier creates a rule based classifier resolving default
// windows in loc. A nil loc means UTC.
func NewRuleClassifier(loc *time.Location) *RuleClassifier {
	if loc == nil {
		loc = time.UTC
	}
	return &RuleClassifier{loc: loc, now: time.Now}
}

// WithClock replaces the clock used for default windows.
func (r *RuleClassifier) WithClock(now func() time.Time) *RuleClassifier {
	r.now = now
	return r
}

// Classify applies the keyword rules to message.
func (r *RuleClassifier) Classify(_ context.Context, message string) (core.Intent, error) {
	assetRef := assetRefPattern.FindString(message)
	if assetRef == "" {
		return core.NoIntent(core.ReasonClassified), nil
	}

	if chartPattern.MatchString(message) {
		return core.ChartIntent(assetRef, extractMetric(message, assetRef), r.window(message)), nil
	}
	if alertPattern.MatchString(message) {
		return core.AlertIntent(assetRef), nil
	}
	return core.NoIntent(core.ReasonClassified), nil
}

func (r *RuleClassifier) window(message string) core.TimeWindow {
	if m := relativePattern.FindStringSubmatch(message); m != nil {
		value := 1
		if m[1] != "" {
			if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
				value = v
			}
		}
		return core.RelativeWindow(value, normalizeUnit(m[2]))
	}
	if m := explicitPattern.FindStringSubmatch(message); m != nil {
		from, errFrom := time.ParseInLocation("2006-01-02", m[1], r.loc)
		to, errTo := time.ParseInLocation("2006-01-02", m[2], r.loc)
		if errFrom == nil && errTo == nil {
			return core.ExplicitWindow(from, to.AddDate(0, 0, 1).Add(-time.Nanosecond))
		}
	}
	return core.DefaultWindow(r.now(), r.loc)
}

func normalizeUnit(s string) core.TimeUnit {
	switch strings.ToLower(s)[0] {
	case 'm':
		return core.UnitMinute
	case 'h':
		return core.UnitHour
	case 'd':
		return core.UnitDay
	default:
		return core.UnitWeek
	}
}

func extractMetric(message, assetRef string) string {
	text := strings.ReplaceAll(message, assetRef, " ")
	for _, re := range []*regexp.Regexp{metricBefore, metricAfter} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			word := strings.ToLower(m[1])
			if !notMetrics[word] {
				return word
			}
		}
	}
	return ""
}

// MockClassifier is a test double for ai.IntentClassifier returning a fixed
// result or delegating to ClassifyFunc.
type MockClassifier struct {
	ClassifyFunc func(ctx context.Context, message string) (core.Intent, error)
	Intent       core.Intent
	Err          error

	mu       sync.Mutex
	messages []string
}

// NewMockClassifier creates a classifier that always answers intent.
func NewMockClassifier(intent core.Intent) *MockClassifier {
	return &MockClassifier{Intent: intent}
}

// Classify records message and returns the configured result.
func (m *MockClassifier) Classify(ctx context.Context, message string) (core.Intent, error) {
	m.mu.Lock()
	m.messages = append(m.messages, message)
	fn := m.ClassifyFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, message)
	}
	return m.Intent, m.Err
}

// CallCount returns the number of Classify calls.
func (m *MockClassifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Messages returns the classified messages in call order.
func (m *MockClassifier) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

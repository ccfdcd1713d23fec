// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"fmt"
	"time"
)

// IntentKind tags the active variant of an Intent.
type IntentKind int

const (
	// IntentNone means neither live chart nor alert data was requested.
	IntentNone IntentKind = iota
	// IntentChart requests a time-series chart for an asset.
	IntentChart
	// IntentAlert requests the live alert listing for an asset.
	IntentAlert
)

func (k IntentKind) String() string {
	switch k {
	case IntentChart:
		return "chart"
	case IntentAlert:
		return "alert"
	default:
		return "none"
	}
}

// IntentReason records how a classifier arrived at its result.
// Failures route like a negative result but are logged differently.
type IntentReason string

const (
	ReasonClassified   IntentReason = "classified"
	ReasonParseFailure IntentReason = "parse_failure"
	ReasonServiceError IntentReason = "service_error"
)

// Intent is the tagged result of classifying one user turn.
// Exactly one of the variants is active, selected by Kind.
type Intent struct {
	Kind     IntentKind
	AssetRef string
	Metric   string // optional, chart only
	Window   TimeWindow
	Reason   IntentReason
}

// NoIntent returns a negative classification with the given reason.
func NoIntent(reason IntentReason) Intent {
	return Intent{Kind: IntentNone, Reason: reason}
}

// ChartIntent returns a chart classification.
func ChartIntent(assetRef, metric string, window TimeWindow) Intent {
	return Intent{Kind: IntentChart, AssetRef: assetRef, Metric: metric, Window: window, Reason: ReasonClassified}
}

// AlertIntent returns an alert classification.
func AlertIntent(assetRef string) Intent {
	return Intent{Kind: IntentAlert, AssetRef: assetRef, Reason: ReasonClassified}
}

func (i Intent) String() string {
	switch i.Kind {
	case IntentChart:
		return fmt.Sprintf("chart(%s, %s, %s)", i.AssetRef, i.Metric, i.Window)
	case IntentAlert:
		return fmt.Sprintf("alert(%s)", i.AssetRef)
	default:
		return "none(" + string(i.Reason) + ")"
	}
}

// TimeUnit is the unit of a relative time window.
type TimeUnit string

const (
	UnitMinute TimeUnit = "minute"
	UnitHour   TimeUnit = "hour"
	UnitDay    TimeUnit = "day"
	UnitWeek   TimeUnit = "week"
)

// TimeUnits lists the accepted relative units in schema order.
var TimeUnits = []TimeUnit{UnitMinute, UnitHour, UnitDay, UnitWeek}

// Duration returns the length of one unit, or zero for unknown units.
func (u TimeUnit) Duration() time.Duration {
	switch u {
	case UnitMinute:
		return time.Minute
	case UnitHour:
		return time.Hour
	case UnitDay:
		return 24 * time.Hour
	case UnitWeek:
		return 7 * 24 * time.Hour
	}
	return 0
}

// TimeWindow is either relative ({Value, Unit}) or explicit ({From, To}).
// The zero value is an unresolvable window.
type TimeWindow struct {
	Value int
	Unit  TimeUnit
	From  time.Time
	To    time.Time
}

// RelativeWindow builds a window ending now.
func RelativeWindow(value int, unit TimeUnit) TimeWindow {
	return TimeWindow{Value: value, Unit: unit}
}

// ExplicitWindow builds a window between two instants.
func ExplicitWindow(from, to time.Time) TimeWindow {
	return TimeWindow{From: from, To: to}
}

// DefaultWindow covers yesterday 00:00 through the end of today in loc.
func DefaultWindow(now time.Time, loc *time.Location) TimeWindow {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return ExplicitWindow(today.AddDate(0, 0, -1), today.AddDate(0, 0, 1).Add(-time.Nanosecond))
}

// IsRelative reports whether the window is expressed as {Value, Unit}.
func (w TimeWindow) IsRelative() bool {
	return w.Value > 0 && w.Unit.Duration() > 0
}

// Resolve returns the explicit bounds of the window.
// ok is false when the window is neither a valid relative window nor a
// complete explicit pair.
func (w TimeWindow) Resolve(now time.Time) (from, to time.Time, ok bool) {
	if w.IsRelative() {
		return now.Add(-time.Duration(w.Value) * w.Unit.Duration()), now, true
	}
	if w.From.IsZero() || w.To.IsZero() || w.To.Before(w.From) {
		return time.Time{}, time.Time{}, false
	}
	return w.From, w.To, true
}

func (w TimeWindow) String() string {
	if w.IsRelative() {
		return fmt.Sprintf("last %d %s", w.Value, w.Unit)
	}
	if w.From.IsZero() && w.To.IsZero() {
		return "unbounded"
	}
	return w.From.Format(time.RFC3339) + ".." + w.To.Format(time.RFC3339)
}

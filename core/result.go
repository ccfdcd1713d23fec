package core

import "time"

// ResultKind tags the active variant of a QueryResult.
type ResultKind int

const (
	ResultAnswer ResultKind = iota
	ResultSeries
	ResultAlerts
)

// SeriesStats summarises a full time-series before preview capping.
type SeriesStats struct {
	Count int
	Min   float64
	Max   float64
}

// Source is one retrieved context passage, numbered from 1 in result order.
type Source struct {
	Marker string // "[S1]", "[S2]", ...
	ID     string
	Score  float32
	Text   string
	Labels map[string]string
}

// QueryResult is returned by the orchestrator for one request.
// Series and Alerts results never involve the completion service.
type QueryResult struct {
	Kind ResultKind

	// Series and Alerts
	AssetRef string
	NoData   bool

	// Series
	Metric    string
	From      time.Time
	To        time.Time
	Points    []Reading
	Truncated bool
	Stats     SeriesStats

	// Alerts
	Alerts []Alert

	// Answer
	Text    string
	Sources []Source
}

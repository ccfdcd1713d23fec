package timeseries

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrBadCSV is returned for malformed sample files.
var ErrBadCSV = errors.New("malformed time-series csv")

var csvColumns = []string{"entity_id", "attribute", "observed_at", "value"}

// ParseCSV reads samples from r. The first row must name the columns
// entity_id, attribute, observed_at and value in any order. observed_at is
// RFC 3339 or unix milliseconds.
func ParseCSV(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrBadCSV, err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range csvColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrBadCSV, col)
		}
	}

	var out []Sample
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrBadCSV, line, err)
		}
		ts, err := parseTimestamp(rec[idx["observed_at"]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrBadCSV, line, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx["value"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrBadCSV, line, err)
		}
		out = append(out, Sample{
			EntityID:   strings.TrimSpace(rec[idx["entity_id"]]),
			Attribute:  strings.TrimSpace(rec[idx["attribute"]]),
			ObservedAt: ts,
			Value:      v,
		})
	}
	return out, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}

// LoadCSV parses r and inserts the samples. It returns the number of
// samples stored.
func (s *SQLStore) LoadCSV(ctx context.Context, r io.Reader) (int, error) {
	samples, err := ParseCSV(r)
	if err != nil {
		return 0, err
	}
	if err := s.Insert(ctx, samples); err != nil {
		return 0, err
	}
	return len(samples), nil
}

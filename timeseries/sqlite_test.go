package timeseries

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/machinerag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *SQLStore) {
	t.Helper()
	samples := []Sample{
		{EntityID: "urn:iff:asset:42", Attribute: "https://industry-fusion.org/base/v0.1/temperature", ObservedAt: t0.Add(2 * time.Minute), Value: 22.5},
		{EntityID: "urn:iff:asset:42", Attribute: "https://industry-fusion.org/base/v0.1/temperature", ObservedAt: t0, Value: 21.0},
		{EntityID: "urn:iff:asset:42", Attribute: "https://industry-fusion.org/base/v0.1/temperature", ObservedAt: t0.Add(time.Minute), Value: 21.7},
		{EntityID: "urn:iff:asset:42", Attribute: "pressure", ObservedAt: t0, Value: 3.1},
		{EntityID: "urn:iff:asset:7", Attribute: "temperature", ObservedAt: t0, Value: 80},
	}
	require.NoError(t, s.Insert(context.Background(), samples))
}

func TestSQLStore_Fetch(t *testing.T) {
	s, err := OpenSQLStore("")
	require.NoError(t, err)
	defer s.Close()
	seed(t, s)
	ctx := context.Background()

	got, err := s.Fetch(ctx, "urn:iff:asset:42", "temperature", t0.Add(-time.Hour), t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{21.0, 21.7, 22.5}, []float64{got[0].Value, got[1].Value, got[2].Value})
	assert.True(t, got[0].Timestamp.Equal(t0))

	t.Run("window bounds are inclusive", func(t *testing.T) {
		got, err := s.Fetch(ctx, "urn:iff:asset:42", "temperature", t0.Add(time.Minute), t0.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("exact attribute", func(t *testing.T) {
		got, err := s.Fetch(ctx, "urn:iff:asset:42", "pressure", t0, t0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 3.1, got[0].Value)
	})

	t.Run("empty metric returns every attribute", func(t *testing.T) {
		got, err := s.Fetch(ctx, "urn:iff:asset:42", "", t0.Add(-time.Hour), t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("unknown asset is empty", func(t *testing.T) {
		got, err := s.Fetch(ctx, "urn:iff:asset:1", "temperature", t0.Add(-time.Hour), t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestSQLStore_InsertReplaces(t *testing.T) {
	s, err := OpenSQLStore(filepath.Join(t.TempDir(), "ts", "history.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []Sample{{EntityID: "a", Attribute: "m", ObservedAt: t0, Value: 1}}))
	require.NoError(t, s.Insert(ctx, []Sample{{EntityID: "a", Attribute: "m", ObservedAt: t0, Value: 2}}))

	got, err := s.Fetch(ctx, "a", "m", t0, t0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Value)

	assert.Error(t, s.Insert(ctx, []Sample{{Attribute: "m", ObservedAt: t0}}))
}

func TestLoadCSV(t *testing.T) {
	s, err := OpenSQLStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	data := `value,observed_at,entity_id,attribute
21.5,2025-03-01T12:00:00Z,urn:iff:asset:42,temperature
22.0,1740830460000,urn:iff:asset:42,temperature
`
	n, err := s.LoadCSV(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Fetch(context.Background(), "urn:iff:asset:42", "temperature", t0, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 22.0, got[1].Value)
}

func TestParseCSV_Errors(t *testing.T) {
	tests := map[string]string{
		"missing column": "entity_id,attribute,value\na,b,1\n",
		"bad value":      "entity_id,attribute,observed_at,value\na,b,2025-03-01T12:00:00Z,hot\n",
		"bad timestamp":  "entity_id,attribute,observed_at,value\na,b,yesterday,1\n",
		"short row":      "entity_id,attribute,observed_at,value\na,b\n",
		"empty":          "",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(data))
			assert.ErrorIs(t, err, ErrBadCSV)
		})
	}
}

type failingResolver struct{ calls int }

func (f *failingResolver) Fetch(context.Context, string, string, time.Time, time.Time) ([]core.Reading, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func TestDegrading(t *testing.T) {
	_, err := NewDegrading(nil, nil)
	assert.ErrorIs(t, err, ErrResolverRequired)

	inner := &failingResolver{}
	d, err := NewDegrading(inner, nil)
	require.NoError(t, err)

	got, err := d.Fetch(context.Background(), "urn:iff:asset:42", "temperature", t0, t0)
	assert.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, inner.calls)

	s, err := OpenSQLStore("")
	require.NoError(t, err)
	defer s.Close()
	seed(t, s)
	d, err = NewDegrading(s, nil)
	require.NoError(t, err)
	got, err = d.Fetch(context.Background(), "urn:iff:asset:7", "temperature", t0, t0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

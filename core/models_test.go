package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent(t *testing.T) {
	a := IDFromContent("chunk one")
	b := IDFromContent("chunk one")
	c := IDFromContent("chunk two")

	assert.Equal(t, a, b, "identical content must produce identical IDs")
	assert.NotEqual(t, a, c)
}

func TestFingerprint(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Fingerprint([]byte("abc")))
	assert.Len(t, Fingerprint(nil), 64)
}

func TestMachineMetaLabels(t *testing.T) {
	meta := MachineMeta{ID: "urn:iff:asset:42", Name: "Cutter"}
	labels := meta.Labels()

	assert.Equal(t, map[string]string{
		LabelMachineID:   "urn:iff:asset:42",
		LabelMachineName: "Cutter",
	}, labels, "empty fields must be omitted")
}

func TestTimeWindowResolve(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

	t.Run("relative", func(t *testing.T) {
		from, to, ok := RelativeWindow(24, UnitHour).Resolve(now)
		require.True(t, ok)
		assert.Equal(t, now.Add(-24*time.Hour), from)
		assert.Equal(t, now, to)
	})

	t.Run("relative weeks", func(t *testing.T) {
		from, _, ok := RelativeWindow(2, UnitWeek).Resolve(now)
		require.True(t, ok)
		assert.Equal(t, now.AddDate(0, 0, -14), from)
	})

	t.Run("explicit", func(t *testing.T) {
		start := now.Add(-time.Hour)
		from, to, ok := ExplicitWindow(start, now).Resolve(now)
		require.True(t, ok)
		assert.Equal(t, start, from)
		assert.Equal(t, now, to)
	})

	t.Run("missing bound", func(t *testing.T) {
		_, _, ok := TimeWindow{From: now}.Resolve(now)
		assert.False(t, ok)
	})

	t.Run("reversed", func(t *testing.T) {
		_, _, ok := ExplicitWindow(now, now.Add(-time.Hour)).Resolve(now)
		assert.False(t, ok)
	})

	t.Run("unknown unit", func(t *testing.T) {
		_, _, ok := RelativeWindow(3, "fortnight").Resolve(now)
		assert.False(t, ok)
	})
}

func TestDefaultWindow(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)

	// 23:30 UTC on the 10th is already the 11th in Berlin
	now := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
	w := DefaultWindow(now, berlin)

	from, to, ok := w.Resolve(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, berlin), from)
	assert.Equal(t, 11, to.In(berlin).Day())
	assert.Equal(t, 23, to.In(berlin).Hour())

	utc := DefaultWindow(now, nil)
	from, _, _ = utc.Resolve(now)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), from)
}

func TestVectorRecordMUS(t *testing.T) {
	record := VectorRecord{
		Id:          IDFromContent("x"),
		Name:        "manual.pdf#3",
		ContentType: "application/pdf",
		Embedding:   []float32{0.25, -1, 3.5},
		Labels: map[string]string{
			LabelText:     "Check the coolant level daily.",
			LabelParentID: "p-1",
		},
		InsertedAt: time.UnixMicro(1741600000000000),
	}

	bs := make([]byte, VectorRecordMUS.Size(record))
	n := VectorRecordMUS.Marshal(record, bs)
	require.Equal(t, len(bs), n)

	decoded, read, err := VectorRecordMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Equal(t, n, read)
	assert.Equal(t, record.Id, decoded.Id)
	assert.Equal(t, record.Name, decoded.Name)
	assert.Equal(t, record.ContentType, decoded.ContentType)
	assert.Equal(t, record.Embedding, decoded.Embedding)
	assert.Equal(t, record.Labels, decoded.Labels)
	assert.True(t, record.InsertedAt.Equal(decoded.InsertedAt))
}

func TestVectorRecordMUSTruncated(t *testing.T) {
	record := VectorRecord{Id: 7, Name: "n", Embedding: []float32{1, 2, 3, 4}}
	bs := make([]byte, VectorRecordMUS.Size(record))
	VectorRecordMUS.Marshal(record, bs)

	_, _, err := VectorRecordMUS.Unmarshal(bs[:len(bs)-6])
	assert.Error(t, err)
}

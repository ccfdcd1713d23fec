package ingestion

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Basic(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 1)

	tracker.Start()
	tracker.AddTotal(4)
	tracker.Increment(1)
	tracker.AddTotal(2)
	tracker.Increment(5)

	assert.Greater(t, tracker.Elapsed(), time.Duration(0))

	output := buf.String()
	assert.Contains(t, output, "1/4 sources (25.0%)")
	assert.Contains(t, output, "6/6 sources (100.0%)")
}

func TestProgressTracker_CapsAtTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 1)

	tracker.Start()
	tracker.AddTotal(2)
	tracker.Increment(10)
	tracker.Finish()

	assert.NotContains(t, buf.String(), "10/2")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"), "finish prints a newline")
}

func TestProgressTracker_Interval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 5)

	tracker.Start()
	tracker.AddTotal(10)
	for i := 0; i < 4; i++ {
		tracker.Increment(1)
	}
	assert.Empty(t, buf.String(), "no report before the interval")

	tracker.Increment(1)
	assert.Contains(t, buf.String(), "5/10")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 0)

	tracker.AddTotal(3)
	tracker.Increment(1)
	tracker.Finish()

	assert.Empty(t, buf.String())
	assert.Equal(t, time.Duration(0), tracker.Elapsed())
}

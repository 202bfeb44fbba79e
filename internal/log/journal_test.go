package log

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	j, err := OpenJournal(dir)
	require.NoError(t, err)

	require.NoError(t, j.Append(LogEvent{Event: EventSessionStarted, SessionID: "s1"}))
	require.NoError(t, j.Append(LogEvent{Event: EventSessionSubmitted, SessionID: "s1", HistoricalID: "h1", Score: 55.5}))

	events, err := j.Read(Filter{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventSessionStarted, events[0].Event)
	assert.False(t, events[0].Time.IsZero(), "time is stamped on append")
	assert.Equal(t, "h1", events[1].HistoricalID)
	assert.Equal(t, 55.5, events[1].Score)
}

func TestReadMissingFile(t *testing.T) {
	j, err := OpenJournal(t.TempDir())
	require.NoError(t, err)

	events, err := j.Read(Filter{})
	require.NoError(t, err)
	assert.Empty(t, events)

	counts, err := j.Count(Filter{})
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestReadCorruptedLine(t *testing.T) {
	j, err := OpenJournal(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(j.Path(), []byte("{\"event\":\"ok\"}\nnot json\n"), 0644))

	_, err = j.Read(Filter{})
	assert.ErrorContains(t, err, "line 2")
}

func TestFilter(t *testing.T) {
	j, err := OpenJournal(t.TempDir())
	require.NoError(t, err)

	t0 := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.Append(LogEvent{Time: t0, Event: EventSessionExpired, SessionID: "a"}))
	require.NoError(t, j.Append(LogEvent{Time: t0.Add(time.Hour), Event: EventPublishFailed, SessionID: "b"}))
	require.NoError(t, j.Append(LogEvent{Time: t0.Add(2 * time.Hour), Event: EventPublishFailed, SessionID: "a"}))
	require.NoError(t, j.Append(LogEvent{Time: t0.Add(3 * time.Hour), Event: EventSessionResumed, SessionID: "a"}))

	tests := []struct {
		name   string
		filter Filter
		want   map[string]int
	}{
		{"all", Filter{}, map[string]int{EventSessionExpired: 1, EventPublishFailed: 2, EventSessionResumed: 1}},
		{"by name", Filter{Events: []string{EventPublishFailed, EventSessionExpired}}, map[string]int{EventSessionExpired: 1, EventPublishFailed: 2}},
		{"by session", Filter{SessionID: "b"}, map[string]int{EventPublishFailed: 1}},
		{"since is inclusive", Filter{Since: t0.Add(2 * time.Hour)}, map[string]int{EventPublishFailed: 1, EventSessionResumed: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := j.Count(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanStopsOnCallbackError(t *testing.T) {
	j, err := OpenJournal(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, j.Append(LogEvent{Event: EventSessionStarted}))
	require.NoError(t, j.Append(LogEvent{Event: EventSessionStarted}))

	stop := errors.New("stop")
	seen := 0
	err = j.Scan(Filter{}, func(LogEvent) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestConcurrentAppend(t *testing.T) {
	j, err := OpenJournal(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, j.Append(LogEvent{Event: EventSessionResumed}))
		}()
	}
	wg.Wait()

	counts, err := j.Count(Filter{Events: []string{EventSessionResumed}})
	require.NoError(t, err)
	assert.Equal(t, 20, counts[EventSessionResumed])
}

// Package log provides the session event journal, an append-only
// events.jsonl file in the data directory.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event names.
const (
	EventSessionStarted   = "session_started"
	EventSessionExpired   = "session_expired"
	EventSessionPreFilled = "session_prefilled"
	EventSessionResumed   = "session_resumed"
	EventSessionFresh     = "session_fresh"
	EventSessionSubmitted = "session_submitted"
	EventPublishFailed    = "publish_failed"
	EventHistoryDeleted   = "history_deleted"
)

const (
	journalFile  = "events.jsonl"
	maxLineBytes = 1 << 20
)

// LogEvent is one journal line.
type LogEvent struct {
	Time         time.Time              `json:"time"`
	Event        string                 `json:"event"`
	SessionID    string                 `json:"session,omitempty"`
	HistoricalID string                 `json:"historical,omitempty"`
	Score        float64                `json:"score,omitempty"`
	Answered     int                    `json:"answered,omitempty"`
	Total        int                    `json:"total,omitempty"`
	DurationSecs int64                  `json:"duration_secs,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// Filter selects journal events. Zero fields match everything.
type Filter struct {
	Events    []string
	SessionID string
	Since     time.Time // inclusive
}

// Match reports whether e passes the filter.
func (f Filter) Match(e LogEvent) bool {
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if !f.Since.IsZero() && e.Time.Before(f.Since) {
		return false
	}
	if len(f.Events) == 0 {
		return true
	}
	for _, name := range f.Events {
		if e.Event == name {
			return true
		}
	}
	return false
}

// Journal appends lifecycle events to events.jsonl and reads them back.
// It is safe for concurrent use within one process.
type Journal struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// OpenJournal returns the journal in dir, creating dir when missing. An
// existing journal is appended to.
func OpenJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Journal{
		path: filepath.Join(dir, journalFile),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return j.path
}

// Append writes event as one line, stamping Time when it is zero.
func (j *Journal) Append(event LogEvent) error {
	if event.Time.IsZero() {
		event.Time = j.now()
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Event, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("write event %s: %w", event.Event, err)
	}
	return f.Close()
}

// Scan calls fn for every event matching f, in file order. A missing
// journal has no events. Scanning stops at the first error from fn or at an
// unparsable line.
func (j *Journal) Scan(f Filter, fn func(LogEvent) error) error {
	file, err := os.Open(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for n := 1; sc.Scan(); n++ {
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e LogEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("parse journal line %d: %w", n, err)
		}
		if !f.Match(e) {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	return nil
}

// Read returns the events matching f.
func (j *Journal) Read(f Filter) ([]LogEvent, error) {
	events := []LogEvent{}
	err := j.Scan(f, func(e LogEvent) error {
		events = append(events, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Count tallies the events matching f by name.
func (j *Journal) Count(f Filter) (map[string]int, error) {
	counts := make(map[string]int)
	err := j.Scan(f, func(e LogEvent) error {
		counts[e.Event]++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

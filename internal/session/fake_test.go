package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/berth-dev/gauge/internal/log"
	"github.com/berth-dev/gauge/internal/publish"
	"github.com/berth-dev/gauge/internal/store"
)

var errBoom = errors.New("boom")

type activity struct {
	started time.Time
	last    time.Time
}

// memStore is an in-memory Store with failure injection.
type memStore struct {
	mu       sync.Mutex
	settings map[string]string
	answers  map[string]map[string]int
	activity map[string]activity
	history  []store.HistoricalSession
	seq      int

	saveCalls    int
	archiveCalls int
	clearCalls   int

	failGetSetting error
	failSave       error
	failArchive    error
	failHeartbeat  error
	archiveGate    chan struct{} // when set, archival blocks until it is closed
	archiveStarted chan struct{} // when set, receives once archival begins
}

func newMemStore() *memStore {
	return &memStore{
		settings: make(map[string]string),
		answers:  make(map[string]map[string]int),
		activity: make(map[string]activity),
	}
}

func (s *memStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGetSetting != nil {
		return "", false, s.failGetSetting
	}
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *memStore) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *memStore) SaveAnswer(_ context.Context, sessionID, questionID string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.failSave != nil {
		return s.failSave
	}
	if s.answers[sessionID] == nil {
		s.answers[sessionID] = make(map[string]int)
	}
	s.answers[sessionID][questionID] = value
	return nil
}

func (s *memStore) LoadAnswers(_ context.Context, sessionID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for k, v := range s.answers[sessionID] {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) ClearSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCalls++
	delete(s.answers, sessionID)
	delete(s.activity, sessionID)
	return nil
}

func (s *memStore) LastActive(_ context.Context, sessionID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activity[sessionID]
	return a.last, ok, nil
}

func (s *memStore) StartedAt(_ context.Context, sessionID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activity[sessionID]
	return a.started, ok, nil
}

func (s *memStore) UpdateLastActive(_ context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failHeartbeat != nil {
		return s.failHeartbeat
	}
	a, ok := s.activity[sessionID]
	if !ok {
		a.started = at
	}
	a.last = at
	s.activity[sessionID] = a
	return nil
}

func (s *memStore) RestartActivity(_ context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failHeartbeat != nil {
		return s.failHeartbeat
	}
	s.activity[sessionID] = activity{started: at, last: at}
	return nil
}

func (s *memStore) setActivity(sessionID string, started, last time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity[sessionID] = activity{started: started, last: last}
}

func (s *memStore) SaveHistoricalSession(_ context.Context, in store.HistoricalInput) (string, error) {
	s.mu.Lock()
	s.archiveCalls++
	started, gate := s.archiveStarted, s.archiveGate
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failArchive != nil {
		return "", s.failArchive
	}
	s.seq++
	hs := store.HistoricalSession{
		Summary: store.Summary{
			ID:              fmt.Sprintf("h%d", s.seq),
			CompletedAt:     in.CompletedAt,
			TotalScore:      in.Score,
			DurationSeconds: in.DurationSeconds,
			Notes:           in.Notes,
			ResponseCount:   len(in.Responses),
		},
		Responses: append([]store.Response(nil), in.Responses...),
	}
	s.history = append(s.history, hs)
	return hs.ID, nil
}

func (s *memStore) LoadHistoricalSessions(context.Context) ([]store.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Summary, 0, len(s.history))
	for _, h := range s.history {
		out = append(out, h.Summary)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	return out, nil
}

func (s *memStore) LoadSessionResponses(_ context.Context, id string) ([]store.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.history {
		if h.ID == id {
			return append([]store.Response(nil), h.Responses...), nil
		}
	}
	return nil, nil
}

func (s *memStore) GetHistoricalSession(_ context.Context, id string) (*store.HistoricalSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.history {
		if h.ID == id {
			h := h
			return &h, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) DeleteHistoricalSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, h := range s.history {
		if h.ID == id {
			s.history = append(s.history[:i], s.history[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *memStore) DeleteAllHistoricalSessions(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.history))
	s.history = nil
	return n, nil
}

func (s *memStore) addHistory(completed time.Time, score float64, responses ...store.Response) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("h%d", s.seq)
	s.history = append(s.history, store.HistoricalSession{
		Summary:   store.Summary{ID: id, CompletedAt: completed, TotalScore: score, ResponseCount: len(responses)},
		Responses: responses,
	})
	return id
}

func (s *memStore) historyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

func (s *memStore) counts() (save, archive, clear int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCalls, s.archiveCalls, s.clearCalls
}

// fakePublisher records published results.
type fakePublisher struct {
	mu      sync.Mutex
	err     error
	results []publish.Result
}

func (p *fakePublisher) Publish(_ context.Context, r publish.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, r)
	return p.err
}

func (p *fakePublisher) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.results)
}

// memEvents collects journal events.
type memEvents struct {
	mu     sync.Mutex
	events []log.LogEvent
}

func (e *memEvents) Append(ev log.LogEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *memEvents) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, ev := range e.events {
		out = append(out, ev.Event)
	}
	return out
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

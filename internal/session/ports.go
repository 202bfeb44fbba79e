// Package session owns the lifecycle of a self-assessment: the stable session
// identity and its inactivity timeout, the live answer sheet with its
// resume / fresh / pre-fill arbitration, and final submission.
package session

import (
	"context"
	"time"

	"github.com/berth-dev/gauge/internal/log"
	"github.com/berth-dev/gauge/internal/publish"
	"github.com/berth-dev/gauge/internal/store"
)

// SettingsStore holds small key/value preferences and the session id.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// AnswerStore holds in-progress ratings keyed by session and question.
type AnswerStore interface {
	SaveAnswer(ctx context.Context, sessionID, questionID string, value int) error
	LoadAnswers(ctx context.Context, sessionID string) (map[string]int, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// ActivityStore holds the session heartbeat.
type ActivityStore interface {
	LastActive(ctx context.Context, sessionID string) (time.Time, bool, error)
	StartedAt(ctx context.Context, sessionID string) (time.Time, bool, error)
	UpdateLastActive(ctx context.Context, sessionID string, at time.Time) error
	RestartActivity(ctx context.Context, sessionID string, at time.Time) error
}

// HistoryStore archives completed assessments.
type HistoryStore interface {
	SaveHistoricalSession(ctx context.Context, in store.HistoricalInput) (string, error)
	LoadHistoricalSessions(ctx context.Context) ([]store.Summary, error)
	LoadSessionResponses(ctx context.Context, sessionID string) ([]store.Response, error)
	GetHistoricalSession(ctx context.Context, id string) (*store.HistoricalSession, error)
	DeleteHistoricalSession(ctx context.Context, id string) error
	DeleteAllHistoricalSessions(ctx context.Context) (int64, error)
}

// Store is the full persistence adapter consumed by the Manager.
type Store interface {
	SettingsStore
	AnswerStore
	ActivityStore
	HistoryStore
}

// Publisher shares anonymized results. Failures never affect submission.
type Publisher interface {
	Publish(ctx context.Context, r publish.Result) error
}

// EventSink receives lifecycle events for the journal.
type EventSink interface {
	Append(event log.LogEvent) error
}

var (
	_ Store     = (*store.Store)(nil)
	_ Publisher = (*publish.HTTPPublisher)(nil)
	_ Publisher = publish.Nop{}
	_ EventSink = (*log.Journal)(nil)
)

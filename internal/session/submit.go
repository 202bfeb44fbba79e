package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/berth-dev/gauge/internal/log"
	"github.com/berth-dev/gauge/internal/publish"
	"github.com/berth-dev/gauge/internal/scoring"
	"github.com/berth-dev/gauge/internal/store"
)

// ErrSubmitInProgress is returned by Submit while another submission is in flight.
var ErrSubmitInProgress = errors.New("submission already in progress")

// Submit archives the session and starts a new empty one.
//
// Every leaf without an answer is archived at the minimum rating, so a
// session can always be submitted. The score is recomputed from that complete
// sheet. Only the archival write can fail Submit; on failure nothing is
// cleared and the caller may retry. When sharing is enabled the anonymized
// result is published after archival; a publish failure is logged and
// ignored. A concurrent call returns ErrSubmitInProgress without archiving.
func (m *Manager) Submit(ctx context.Context, notes string) (string, error) {
	if !m.submitting.CompareAndSwap(false, true) {
		return "", ErrSubmitInProgress
	}
	defer m.submitting.Store(false)

	m.mu.Lock()
	id := m.sessionID
	sheet := m.answers.clone()
	sharing := m.prefs.Sharing
	m.mu.Unlock()

	complete := scoring.Complete(m.tree, sheet)
	score := scoring.CalculateScore(m.tree, complete)

	responses := make([]store.Response, 0, len(complete))
	for _, leaf := range m.tree.Leaves() {
		responses = append(responses, store.Response{
			QuestionID: leaf.ID,
			Category:   m.tree.Category(leaf.ID),
			Value:      complete[leaf.ID],
		})
	}

	duration := m.identity.Elapsed(ctx, id)
	historicalID, err := m.store.SaveHistoricalSession(ctx, store.HistoricalInput{
		Score:           score,
		Responses:       responses,
		DurationSeconds: int64(duration.Seconds()),
		Notes:           notes,
		CompletedAt:     m.now(),
	})
	if err != nil {
		m.logger.Error("archive session failed", zap.String("session_id", id), zap.Error(err))
		return "", fmt.Errorf("archive session: %w", err)
	}

	m.logger.Info("session archived",
		zap.String("session_id", id),
		zap.String("historical_id", historicalID),
		zap.Float64("score", score),
		zap.Int("answered", len(sheet)),
	)

	if sharing {
		m.publishResult(ctx, id, publish.Result{
			Score:      score,
			Categories: scoring.CategoryScores(m.tree, complete),
		})
	}

	if err := m.discard(ctx, id); err != nil {
		m.logger.Warn("clear submitted session failed", zap.String("session_id", id), zap.Error(err))
	}
	m.touch(ctx, id)
	m.persistIndex(ctx, 0)
	m.setPreFillDeclined(ctx, false)

	m.record(log.LogEvent{
		Event:        log.EventSessionSubmitted,
		SessionID:    id,
		HistoricalID: historicalID,
		Score:        score,
		Answered:     len(sheet),
		Total:        m.tree.Len(),
		DurationSecs: int64(duration.Seconds()),
	})
	return historicalID, nil
}

func (m *Manager) publishResult(ctx context.Context, id string, r publish.Result) {
	if err := m.publisher.Publish(ctx, r); err != nil {
		m.logger.Warn("publish result failed", zap.String("session_id", id), zap.Error(err))
		m.record(log.LogEvent{Event: log.EventPublishFailed, SessionID: id, Error: err.Error()})
	}
}

// --- History ---

// History returns archived sessions, most recent first.
func (m *Manager) History(ctx context.Context) ([]store.Summary, error) {
	sums, err := m.store.LoadHistoricalSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return sums, nil
}

// HistoricalSession returns one archived session with its responses.
func (m *Manager) HistoricalSession(ctx context.Context, id string) (*store.HistoricalSession, error) {
	return m.store.GetHistoricalSession(ctx, id)
}

// DeleteHistorical removes one archived session. The in-progress session is not affected.
func (m *Manager) DeleteHistorical(ctx context.Context, id string) error {
	if err := m.store.DeleteHistoricalSession(ctx, id); err != nil {
		return err
	}
	m.record(log.LogEvent{Event: log.EventHistoryDeleted, HistoricalID: id})
	return nil
}

// ClearHistory removes every archived session and returns how many were removed.
func (m *Manager) ClearHistory(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteAllHistoricalSessions(ctx)
	if err != nil {
		return 0, err
	}
	m.record(log.LogEvent{Event: log.EventHistoryDeleted, Data: map[string]interface{}{"count": n}})
	return n, nil
}

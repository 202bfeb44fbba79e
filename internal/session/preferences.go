package session

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

const (
	settingPreFill = "prefill_enabled"
	settingSharing = "sharing_enabled"
	settingGoal    = "goal_score"
	settingNav     = "nav_index"

	// settingDeclined is "1" after StartFresh until the next submission or
	// expiry, so a later launch does not pre-fill the blank session again.
	settingDeclined = "prefill_declined"
)

// Preferences are user choices persisted in the settings store.
type Preferences struct {
	PreFill bool    // seed a new session from the last archived one
	Sharing bool    // publish anonymized results on submit
	Goal    float64 // target score; 0 means unset
}

// DefaultPreferences returns the preferences of a new installation.
func DefaultPreferences() Preferences {
	return Preferences{PreFill: true}
}

// loadPreferences reads every preference, keeping the default for keys that
// are unset or unreadable.
func loadPreferences(ctx context.Context, s SettingsStore, logger *zap.Logger) Preferences {
	p := DefaultPreferences()

	if v, ok := readSetting(ctx, s, settingPreFill, logger); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			p.PreFill = b
		}
	}
	if v, ok := readSetting(ctx, s, settingSharing, logger); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			p.Sharing = b
		}
	}
	if v, ok := readSetting(ctx, s, settingGoal, logger); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			p.Goal = f
		}
	}
	return p
}

func readSetting(ctx context.Context, s SettingsStore, key string, logger *zap.Logger) (string, bool) {
	v, ok, err := s.GetSetting(ctx, key)
	if err != nil {
		logger.Warn("read setting failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, ok
}

// Preferences returns the preferences loaded at Init or last changed.
func (m *Manager) Preferences() Preferences {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs
}

// SetPreFill enables or disables seeding new sessions from the last archived one.
func (m *Manager) SetPreFill(ctx context.Context, enabled bool) error {
	if err := m.store.SetSetting(ctx, settingPreFill, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("save prefill preference: %w", err)
	}
	m.mu.Lock()
	m.prefs.PreFill = enabled
	m.mu.Unlock()
	return nil
}

// SetSharing opts in or out of publishing results to the peer network.
func (m *Manager) SetSharing(ctx context.Context, enabled bool) error {
	if err := m.store.SetSetting(ctx, settingSharing, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("save sharing preference: %w", err)
	}
	m.mu.Lock()
	m.prefs.Sharing = enabled
	m.mu.Unlock()
	return nil
}

// SetGoal stores the target score. It must lie between 0 and the maximum score.
func (m *Manager) SetGoal(ctx context.Context, goal float64) error {
	if goal < 0 || goal > m.MaxScore() {
		return fmt.Errorf("goal %.1f outside 0..%.1f", goal, m.MaxScore())
	}
	if err := m.store.SetSetting(ctx, settingGoal, strconv.FormatFloat(goal, 'f', -1, 64)); err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	m.mu.Lock()
	m.prefs.Goal = goal
	m.mu.Unlock()
	return nil
}

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout is how long a session may sit idle before its in-progress
// answers are discarded.
const DefaultTimeout = 30 * 24 * time.Hour

const settingSessionID = "session_id"

// Expiry is the outcome of an inactivity check.
type Expiry struct {
	Expired    bool
	LastActive time.Time // zero when no heartbeat was ever recorded
	Elapsed    time.Duration
}

// Identity owns the stable session id and its heartbeat.
type Identity struct {
	settings SettingsStore
	activity ActivityStore
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewIdentity creates an Identity. A non-positive timeout means DefaultTimeout.
func NewIdentity(settings SettingsStore, activity ActivityStore, timeout time.Duration, now func() time.Time, logger *zap.Logger) *Identity {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Identity{
		settings: settings,
		activity: activity,
		timeout:  timeout,
		now:      now,
		logger:   logger,
	}
}

// Timeout returns the inactivity threshold.
func (i *Identity) Timeout() time.Duration {
	return i.timeout
}

// EnsureSessionID returns the persisted session id, generating and storing a
// random UUID the first time. An existing id is never replaced.
func (i *Identity) EnsureSessionID(ctx context.Context) (string, error) {
	id, ok, err := i.settings.GetSetting(ctx, settingSessionID)
	if err != nil {
		return "", fmt.Errorf("read session id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}

	id = uuid.NewString()
	if err := i.settings.SetSetting(ctx, settingSessionID, id); err != nil {
		return "", fmt.Errorf("persist session id: %w", err)
	}
	i.logger.Info("created session id", zap.String("session_id", id))
	return id, nil
}

// CheckExpiry reports whether the session has been idle for longer than the
// timeout. Idle time exactly equal to the timeout is not expired. A session
// without a heartbeat is not expired.
func (i *Identity) CheckExpiry(ctx context.Context, sessionID string) (Expiry, error) {
	last, ok, err := i.activity.LastActive(ctx, sessionID)
	if err != nil {
		return Expiry{}, fmt.Errorf("read last active: %w", err)
	}
	if !ok {
		return Expiry{}, nil
	}

	elapsed := i.now().Sub(last)
	return Expiry{
		Expired:    elapsed > i.timeout,
		LastActive: last,
		Elapsed:    elapsed,
	}, nil
}

// Touch records the current time as the session's last activity. Failures
// are logged and otherwise ignored.
func (i *Identity) Touch(ctx context.Context, sessionID string) {
	if err := i.activity.UpdateLastActive(ctx, sessionID, i.now()); err != nil {
		i.logger.Warn("heartbeat write failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

// Restart marks now as both the start and the last activity of the session,
// so Elapsed measures from the first answer of a new sitting.
func (i *Identity) Restart(ctx context.Context, sessionID string) {
	if err := i.activity.RestartActivity(ctx, sessionID, i.now()); err != nil {
		i.logger.Warn("session clock reset failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

// Elapsed returns how long ago the session's first heartbeat was recorded,
// or zero when unknown.
func (i *Identity) Elapsed(ctx context.Context, sessionID string) time.Duration {
	started, ok, err := i.activity.StartedAt(ctx, sessionID)
	if err != nil {
		i.logger.Warn("read session start failed", zap.String("session_id", sessionID), zap.Error(err))
		return 0
	}
	if !ok {
		return 0
	}
	d := i.now().Sub(started)
	if d < 0 {
		return 0
	}
	return d
}

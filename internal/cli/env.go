// env.go opens the data directory and wires the session Manager for a command.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/berth-dev/gauge/internal/config"
	"github.com/berth-dev/gauge/internal/log"
	"github.com/berth-dev/gauge/internal/publish"
	"github.com/berth-dev/gauge/internal/questions"
	"github.com/berth-dev/gauge/internal/session"
	"github.com/berth-dev/gauge/internal/store"
	"github.com/berth-dev/gauge/internal/ui"
)

const lockFile = "gauge.lock"

// env is everything a session command needs. Close releases it.
type env struct {
	cfg     *config.Config
	dir     string
	logger  *zap.Logger
	lock    *flock.Flock
	store   *store.Store
	journal *log.Journal
	mgr     *session.Manager
	out     *ui.Display
}

// resolveDataDir applies --data-dir, then $GAUGE_DATA_DIR, then $HOME/.gauge.
func resolveDataDir() (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}
	if v := os.Getenv("GAUGE_DATA_DIR"); v != "" {
		return v, nil
	}
	return config.DefaultDataDir()
}

// openEnv loads config, takes the data-dir lock, opens storage, and runs the
// session startup sequence.
func openEnv(cmd *cobra.Command) (*env, error) {
	dir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	cfg, err := config.ReadConfig(dir)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Logging.Level, debug)
	if err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(dir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking data directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another gauge process is using %s", dir)
	}

	db, err := store.NewStore(cfg.DBPath(dir))
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	journal, err := log.OpenJournal(dir)
	if err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	var pub session.Publisher = publish.Nop{}
	if cfg.Sharing.Endpoint != "" {
		pub = publish.NewHTTPPublisher(cfg.Sharing.Endpoint, cfg.SharingTimeout())
	}

	mgr := session.NewManager(session.Options{
		Store:     db,
		Tree:      questions.Default(),
		Publisher: pub,
		Events:    journal,
		Logger:    logger,
		Timeout:   cfg.SessionTimeout(),
	})
	mgr.Init(cmd.Context())
	if cfg.Session.AutoResume && mgr.HasSavedSession() {
		mgr.ResumeSession(cmd.Context())
	}

	return &env{
		cfg:     cfg,
		dir:     dir,
		logger:  logger,
		lock:    lock,
		store:   db,
		journal: journal,
		mgr:     mgr,
		out:     ui.NewDisplay(cmd.OutOrStdout()),
	}, nil
}

// Close waits for background writes, then releases storage and the lock.
func (e *env) Close() {
	e.mgr.Flush()
	if err := e.store.Close(); err != nil {
		e.logger.Warn("closing database", zap.Error(err))
	}
	if err := e.lock.Unlock(); err != nil {
		e.logger.Warn("releasing lock", zap.Error(err))
	}
	_ = e.logger.Sync()
}

// newLogger builds the diagnostic logger. Output goes to stderr so it never
// mixes with command output.
func newLogger(level string, debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parsing log level: %w", err)
		}
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// withEnv adapts a command body that needs an open env to cobra's RunE.
func withEnv(fn func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cmd, args, e)
	}
}

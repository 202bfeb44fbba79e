package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/berth-dev/gauge/internal/log"
	"github.com/berth-dev/gauge/internal/publish"
	"github.com/berth-dev/gauge/internal/questions"
	"github.com/berth-dev/gauge/internal/scoring"
)

// Phase is the state of the answer sheet with respect to the resume decision.
type Phase int

const (
	// PhaseEmpty is the state before Init.
	PhaseEmpty Phase = iota
	// PhaseResumable holds in-progress answers awaiting acknowledgment.
	PhaseResumable
	// PhaseActive is a session the user is working on.
	PhaseActive
	// PhaseHistoricalPreFill holds answers copied from the last archived
	// session, awaiting acknowledgment.
	PhaseHistoricalPreFill
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseResumable:
		return "resumable"
	case PhaseActive:
		return "active"
	case PhaseHistoricalPreFill:
		return "historical_prefill"
	default:
		return "unknown"
	}
}

// AnswerSheet maps leaf question ids to ratings.
type AnswerSheet map[string]int

func (s AnswerSheet) clone() AnswerSheet {
	out := make(AnswerSheet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Options configures a Manager. Store and Tree are required.
type Options struct {
	Store     Store
	Tree      *questions.Tree
	Publisher Publisher
	Events    EventSink
	Logger    *zap.Logger
	Timeout   time.Duration
	Now       func() time.Time
}

// Manager is the single owner of the in-progress session. The presentation
// layer creates one per process, calls Init once, and drives it from there.
type Manager struct {
	store     Store
	tree      *questions.Tree
	identity  *Identity
	publisher Publisher
	events    EventSink
	logger    *zap.Logger
	now       func() time.Time

	mu          sync.Mutex
	sessionID   string
	answers     AnswerSheet
	phase       Phase
	awaitingAck bool
	preFilled   bool
	index       int
	prefs       Preferences
	gen         uint64 // bumped whenever stored in-progress data is discarded

	// clearMu orders background answer writes against clears: writers hold
	// it shared, clears hold it exclusively.
	clearMu    sync.RWMutex
	pending    sync.WaitGroup
	submitting atomic.Bool
}

// NewManager creates a Manager in PhaseEmpty.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Publisher == nil {
		opts.Publisher = publish.Nop{}
	}
	return &Manager{
		store:     opts.Store,
		tree:      opts.Tree,
		identity:  NewIdentity(opts.Store, opts.Store, opts.Timeout, opts.Now, opts.Logger),
		publisher: opts.Publisher,
		events:    opts.Events,
		logger:    opts.Logger,
		now:       opts.Now,
		answers:   AnswerSheet{},
		prefs:     DefaultPreferences(),
	}
}

// Init establishes the session id, discards the session if it has expired,
// and loads in-progress answers or a historical pre-fill. It never fails:
// errors are logged and the Manager falls back to an empty active session.
func (m *Manager) Init(ctx context.Context) {
	m.mu.Lock()
	m.awaitingAck = false
	m.mu.Unlock()

	if err := m.init(ctx); err != nil {
		m.logger.Error("session init failed, starting empty", zap.Error(err))
		m.mu.Lock()
		if m.sessionID == "" {
			m.sessionID = uuid.NewString()
		}
		m.resetLocked()
		m.mu.Unlock()
	}
}

func (m *Manager) init(ctx context.Context) error {
	id, err := m.identity.EnsureSessionID(ctx)
	if err != nil {
		return err
	}
	prefs := loadPreferences(ctx, m.store, m.logger)

	m.mu.Lock()
	m.sessionID = id
	m.prefs = prefs
	m.mu.Unlock()

	expiry, err := m.identity.CheckExpiry(ctx, id)
	if err != nil {
		return err
	}
	if expiry.Expired {
		if err := m.discard(ctx, id); err != nil {
			return fmt.Errorf("clear expired session: %w", err)
		}
		m.logger.Info("session expired, in-progress answers discarded",
			zap.String("session_id", id),
			zap.Duration("idle", expiry.Elapsed),
		)
		m.touch(ctx, id)
		m.persistIndex(ctx, 0)
		m.setPreFillDeclined(ctx, false)
		m.record(log.LogEvent{Event: log.EventSessionExpired, SessionID: id,
			Data: map[string]interface{}{"idle_hours": int64(expiry.Elapsed.Hours())}})
		return nil
	}
	m.touch(ctx, id)

	loaded, err := m.store.LoadAnswers(ctx, id)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}
	sheet := m.sanitize(loaded)
	idx := m.loadIndex(ctx)

	if len(sheet) > 0 {
		m.mu.Lock()
		m.answers = sheet
		m.phase = PhaseResumable
		m.awaitingAck = true
		m.preFilled = false
		m.index = idx
		m.mu.Unlock()
		m.record(log.LogEvent{Event: log.EventSessionStarted, SessionID: id, Answered: len(sheet), Total: m.tree.Len()})
		return nil
	}

	if prefs.PreFill && !m.preFillDeclined(ctx) {
		if sheet, from := m.historicalPreFill(ctx); len(sheet) > 0 {
			m.mu.Lock()
			m.answers = sheet
			m.phase = PhaseHistoricalPreFill
			m.awaitingAck = true
			m.preFilled = true
			m.index = idx
			m.mu.Unlock()
			m.record(log.LogEvent{Event: log.EventSessionPreFilled, SessionID: id, HistoricalID: from, Answered: len(sheet), Total: m.tree.Len()})
			return nil
		}
	}

	m.mu.Lock()
	m.resetLocked()
	m.index = idx
	m.mu.Unlock()
	m.record(log.LogEvent{Event: log.EventSessionStarted, SessionID: id, Total: m.tree.Len()})
	return nil
}

// sanitize drops ids that are not leaves of the tree and out-of-range values.
func (m *Manager) sanitize(raw map[string]int) AnswerSheet {
	sheet := make(AnswerSheet, len(raw))
	for id, v := range raw {
		if !m.tree.IsLeaf(id) || !scoring.ValidRating(v) {
			m.logger.Debug("dropping stored answer", zap.String("question_id", id), zap.Int("value", v))
			continue
		}
		sheet[id] = v
	}
	return sheet
}

// historicalPreFill returns the valid answers of the most recent archived
// session that has any, and that session's id.
func (m *Manager) historicalPreFill(ctx context.Context) (AnswerSheet, string) {
	summaries, err := m.store.LoadHistoricalSessions(ctx)
	if err != nil {
		m.logger.Warn("load history for pre-fill failed", zap.Error(err))
		return nil, ""
	}

	for _, sum := range summaries {
		responses, err := m.store.LoadSessionResponses(ctx, sum.ID)
		if err != nil {
			m.logger.Warn("load responses for pre-fill failed", zap.String("historical_id", sum.ID), zap.Error(err))
			return nil, ""
		}
		raw := make(map[string]int, len(responses))
		for _, r := range responses {
			raw[r.QuestionID] = r.Value
		}
		if sheet := m.sanitize(raw); len(sheet) > 0 {
			return sheet, sum.ID
		}
	}
	return nil, ""
}

// ResumeSession acknowledges loaded answers and makes the session active.
// Answers pre-filled from history are written to in-progress storage so they
// survive a restart. Returns false when nothing was awaiting acknowledgment.
func (m *Manager) ResumeSession(ctx context.Context) bool {
	m.mu.Lock()
	if !m.awaitingAck {
		m.mu.Unlock()
		return false
	}
	sheet := m.acknowledgeLocked()
	id, gen := m.sessionID, m.gen
	m.mu.Unlock()

	if sheet != nil {
		m.persistAnswers(ctx, id, gen, sheet, true)
	}
	m.record(log.LogEvent{Event: log.EventSessionResumed, SessionID: id})
	return true
}

// acknowledgeLocked moves an awaiting session to PhaseActive and returns the
// sheet to persist when it came from history.
func (m *Manager) acknowledgeLocked() AnswerSheet {
	m.awaitingAck = false
	m.phase = PhaseActive
	if m.preFilled {
		return m.answers.clone()
	}
	return nil
}

// StartFresh discards the in-progress answers (memory and storage) and
// starts an empty active session under the same session id. Archived
// sessions are not touched.
func (m *Manager) StartFresh(ctx context.Context) {
	m.mu.Lock()
	id := m.sessionID
	m.mu.Unlock()

	if err := m.discard(ctx, id); err != nil {
		m.logger.Warn("clear in-progress answers failed", zap.String("session_id", id), zap.Error(err))
	}
	m.touch(ctx, id)
	m.persistIndex(ctx, 0)
	m.setPreFillDeclined(ctx, true)
	m.record(log.LogEvent{Event: log.EventSessionFresh, SessionID: id})
}

func (m *Manager) preFillDeclined(ctx context.Context) bool {
	v, ok := readSetting(ctx, m.store, settingDeclined, m.logger)
	return ok && v == "1"
}

func (m *Manager) setPreFillDeclined(ctx context.Context, declined bool) {
	v := "0"
	if declined {
		v = "1"
	}
	if err := m.store.SetSetting(ctx, settingDeclined, v); err != nil {
		m.logger.Warn("pre-fill marker write failed", zap.Error(err))
	}
}

// discard resets in-memory state and clears stored answers. Writes spawned
// before the reset either land before the clear or are skipped.
func (m *Manager) discard(ctx context.Context, id string) error {
	m.clearMu.Lock()
	defer m.clearMu.Unlock()

	m.mu.Lock()
	m.gen++
	m.resetLocked()
	m.mu.Unlock()

	if id == "" {
		return nil
	}
	return m.store.ClearSession(ctx, id)
}

func (m *Manager) resetLocked() {
	m.answers = AnswerSheet{}
	m.phase = PhaseActive
	m.awaitingAck = false
	m.preFilled = false
	m.index = 0
}

// SetAnswer records a rating for a leaf question. Unknown ids and values
// outside 1..10 are ignored. The in-memory sheet is updated immediately and
// the write is persisted in the background; a storage failure is logged and
// the accepted value kept. Answering a session that awaits acknowledgment
// resumes it.
func (m *Manager) SetAnswer(ctx context.Context, questionID string, value int) bool {
	if !m.tree.IsLeaf(questionID) {
		m.logger.Debug("rejected answer for unknown question", zap.String("question_id", questionID))
		return false
	}
	if !scoring.ValidRating(value) {
		m.logger.Debug("rejected out-of-range answer", zap.String("question_id", questionID), zap.Int("value", value))
		return false
	}

	m.mu.Lock()
	if m.submitting.Load() {
		m.mu.Unlock()
		m.logger.Warn("rejected answer during submission", zap.String("question_id", questionID))
		return false
	}
	restart := len(m.answers) == 0
	m.answers[questionID] = value
	toPersist := AnswerSheet{questionID: value}
	if m.awaitingAck {
		if sheet := m.acknowledgeLocked(); sheet != nil {
			toPersist = sheet
			restart = true
		}
	}
	if m.phase == PhaseEmpty {
		m.phase = PhaseActive
	}
	id, gen := m.sessionID, m.gen
	m.mu.Unlock()

	m.persistAnswers(ctx, id, gen, toPersist, restart)
	return true
}

// persistAnswers writes sheet and touches the session on a background
// goroutine. restart also resets the session start time, for the first
// answer of a new sitting.
func (m *Manager) persistAnswers(ctx context.Context, id string, gen uint64, sheet AnswerSheet, restart bool) {
	if id == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()

		m.clearMu.RLock()
		defer m.clearMu.RUnlock()

		if m.generation() != gen {
			return
		}
		for q, v := range sheet {
			if err := m.store.SaveAnswer(ctx, id, q, v); err != nil {
				m.logger.Warn("answer write failed, keeping in-memory value",
					zap.String("session_id", id),
					zap.String("question_id", q),
					zap.Error(err),
				)
			}
		}
		if restart {
			m.identity.Restart(ctx, id)
			return
		}
		m.identity.Touch(ctx, id)
	}()
}

func (m *Manager) generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// touch records a heartbeat in the background.
func (m *Manager) touch(ctx context.Context, id string) {
	if id == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		m.identity.Touch(ctx, id)
	}()
}

// Flush blocks until every background write started so far has finished.
func (m *Manager) Flush() {
	m.pending.Wait()
}

func (m *Manager) record(event log.LogEvent) {
	if m.events == nil {
		return
	}
	if err := m.events.Append(event); err != nil {
		m.logger.Warn("journal append failed", zap.String("event", event.Event), zap.Error(err))
	}
}

// --- Navigation ---

func (m *Manager) loadIndex(ctx context.Context) int {
	v, ok := readSetting(ctx, m.store, settingNav, m.logger)
	if !ok {
		return 0
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 || i >= m.tree.Len() {
		return 0
	}
	return i
}

// persistIndex stores the navigation position. It runs inline so positions
// land in call order; a failure is logged only.
func (m *Manager) persistIndex(ctx context.Context, i int) {
	if err := m.store.SetSetting(ctx, settingNav, strconv.Itoa(i)); err != nil {
		m.logger.Warn("navigation write failed", zap.Error(err))
	}
}

// CurrentIndex returns the position of the current question in leaf order.
func (m *Manager) CurrentIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// CurrentQuestion returns the leaf at the current position.
func (m *Manager) CurrentQuestion() *questions.Question {
	return m.tree.Leaves()[m.CurrentIndex()]
}

// GoTo moves to leaf position i. Returns false when i is out of range.
func (m *Manager) GoTo(ctx context.Context, i int) bool {
	if i < 0 || i >= m.tree.Len() {
		return false
	}
	m.mu.Lock()
	m.index = i
	m.mu.Unlock()
	m.persistIndex(ctx, i)
	return true
}

// Next moves to the following question. Returns false on the last one.
func (m *Manager) Next(ctx context.Context) bool {
	return m.GoTo(ctx, m.CurrentIndex()+1)
}

// Previous moves to the preceding question. Returns false on the first one.
func (m *Manager) Previous(ctx context.Context) bool {
	return m.GoTo(ctx, m.CurrentIndex()-1)
}

// FirstUnanswered returns the position of the first leaf without an answer,
// or -1 when every leaf is answered.
func (m *Manager) FirstUnanswered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, leaf := range m.tree.Leaves() {
		if _, ok := m.answers[leaf.ID]; !ok {
			return i
		}
	}
	return -1
}

// --- Derived state ---

// SessionID returns the active session id, empty before Init.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Phase returns the current state.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Answers returns a copy of the answer sheet.
func (m *Manager) Answers() AnswerSheet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.answers.clone()
}

// HasSavedSession reports whether loaded answers await the user's resume or
// start-fresh decision.
func (m *Manager) HasSavedSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.answers) > 0 && m.awaitingAck
}

// IsHistoricalPreFill reports whether the answer sheet was seeded from an
// archived session.
func (m *Manager) IsHistoricalPreFill() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preFilled
}

// Score returns the live score, counting unanswered leaves at the minimum rating.
func (m *Manager) Score() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return scoring.CalculateScore(m.tree, m.answers)
}

// MaxScore returns the highest reachable score.
func (m *Manager) MaxScore() float64 {
	return scoring.MaxPossibleScore(m.tree)
}

// PercentComplete returns the share of leaves answered, 0–100.
func (m *Manager) PercentComplete() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return scoring.PercentComplete(m.tree, m.answers)
}

// Tree returns the question tree the session is rated against.
func (m *Manager) Tree() *questions.Tree {
	return m.tree
}

// IsSubmitting reports whether a submission is in flight.
func (m *Manager) IsSubmitting() bool {
	return m.submitting.Load()
}

// Snapshot is a consistent view of the derived state.
type Snapshot struct {
	SessionID           string
	Phase               Phase
	Answers             AnswerSheet
	Index               int
	Score               float64
	MaxScore            float64
	PercentComplete     float64
	CategoryScores      map[string]float64
	HasSavedSession     bool
	IsHistoricalPreFill bool
	Preferences         Preferences
}

// Snapshot returns the derived state under a single lock.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		SessionID:           m.sessionID,
		Phase:               m.phase,
		Answers:             m.answers.clone(),
		Index:               m.index,
		Score:               scoring.CalculateScore(m.tree, m.answers),
		MaxScore:            scoring.MaxPossibleScore(m.tree),
		PercentComplete:     scoring.PercentComplete(m.tree, m.answers),
		CategoryScores:      scoring.CategoryScores(m.tree, m.answers),
		HasSavedSession:     len(m.answers) > 0 && m.awaitingAck,
		IsHistoricalPreFill: m.preFilled,
		Preferences:         m.prefs,
	}
}

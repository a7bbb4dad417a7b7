package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codekids/quiz-backend/internal/quiz"
	"github.com/codekids/quiz-backend/internal/realtime"
	"github.com/codekids/quiz-backend/pkg/monitoring"
)

var (
	// ErrSessionNotFound is returned for ids that are neither live nor restorable.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAnswerRequired blocks moving on (or submitting) while the current question is unanswered.
	ErrAnswerRequired = errors.New("answer the current question first")
	// ErrNotOnLastQuestion blocks a manual submit before the last question.
	ErrNotOnLastQuestion = errors.New("submit is only available on the last question")
)

// Completion triggers.
const (
	TriggerManual = "manual"
	TriggerTimer  = "timer"
)

// SnapshotStore persists the participant, answers, index and final result of a session.
type SnapshotStore interface {
	Save(ctx context.Context, id uuid.UUID, snap quiz.Snapshot) error
	Load(ctx context.Context, id uuid.UUID) (quiz.Snapshot, bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Publisher pushes session events to watchers.
type Publisher interface {
	Publish(sessionID uuid.UUID, event string, payload interface{})
}

// Dispatcher hands a completed result to the exporters. It is called once per completed session.
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID uuid.UUID, result quiz.Result) error
}

// DurationSource supplies the countdown length for new timers.
type DurationSource interface {
	DurationSeconds(ctx context.Context) int
}

// Options wires the manager's collaborators. Every field is optional.
// IdleTTL of zero keeps sessions in memory until Reset.
type Options struct {
	Store           SnapshotStore
	Publisher       Publisher
	Dispatcher      Dispatcher
	Durations       DurationSource
	TickInterval    time.Duration
	DispatchTimeout time.Duration
	IdleTTL         time.Duration
	Clock           func() time.Time
}

type entry struct {
	session *quiz.Session

	mu        sync.Mutex
	countdown *Countdown
	lastSeen  time.Time
}

func (e *entry) touch(now time.Time) {
	e.mu.Lock()
	e.lastSeen = now
	e.mu.Unlock()
}

// idleSince reports whether the entry was last used before cutoff and has no running countdown.
func (e *entry) idleSince(cutoff time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.lastSeen.Before(cutoff) {
		return false
	}
	if e.countdown == nil {
		return true
	}
	select {
	case <-e.countdown.Done():
		return true
	default:
		return false
	}
}

func (e *entry) stopCountdown() {
	e.mu.Lock()
	cd := e.countdown
	e.countdown = nil
	e.mu.Unlock()
	if cd != nil {
		cd.Stop()
	}
}

// Manager owns the live sessions of this process, their countdowns and the completion hook.
type Manager struct {
	bank   *quiz.Bank
	opts   Options
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
	wg       sync.WaitGroup
}

// NewManager creates a session manager over a question bank.
func NewManager(bank *quiz.Bank, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 10 * time.Second
	}
	return &Manager{
		bank:     bank,
		opts:     opts,
		logger:   logger,
		sessions: make(map[uuid.UUID]*entry),
	}
}

func (m *Manager) duration(ctx context.Context) int {
	if m.opts.Durations == nil {
		return quiz.DefaultDurationSeconds
	}
	if d := m.opts.Durations.DurationSeconds(ctx); d > 0 {
		return d
	}
	return quiz.DefaultDurationSeconds
}

func (m *Manager) newSession(ctx context.Context) *quiz.Session {
	return quiz.NewSession(m.bank, quiz.WithClock(m.opts.Clock), quiz.WithDuration(m.duration(ctx)))
}

// Create starts a new session for a participant.
func (m *Manager) Create(ctx context.Context, name string, age int) (uuid.UUID, quiz.State, error) {
	s := m.newSession(ctx)
	if err := s.SetParticipant(name, age); err != nil {
		return uuid.Nil, quiz.State{}, err
	}
	id := uuid.New()
	m.mu.Lock()
	m.sessions[id] = &entry{session: s, lastSeen: m.opts.Clock()}
	m.mu.Unlock()
	m.persist(ctx, id, s)
	m.logger.Info("session created", zap.String("session_id", id.String()))
	return id, s.State(), nil
}

// lookup returns the live entry, restoring it from the snapshot store on a miss.
func (m *Manager) lookup(ctx context.Context, id uuid.UUID) (*entry, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		e.touch(m.opts.Clock())
		return e, nil
	}
	if m.opts.Store == nil {
		return nil, ErrSessionNotFound
	}
	snap, found, err := m.opts.Store.Load(ctx, id)
	if err != nil {
		m.logger.Warn("snapshot load failed", zap.Error(err), zap.String("session_id", id.String()))
		return nil, ErrSessionNotFound
	}
	if !found {
		return nil, ErrSessionNotFound
	}
	s := m.newSession(ctx)
	if err := s.Restore(snap); err != nil {
		m.logger.Warn("snapshot rejected", zap.Error(err), zap.String("session_id", id.String()))
		return nil, ErrSessionNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		existing.touch(m.opts.Clock())
		return existing, nil
	}
	e = &entry{session: s, lastSeen: m.opts.Clock()}
	m.sessions[id] = e
	m.logger.Info("session restored", zap.String("session_id", id.String()))
	return e, nil
}

// State returns the session's current state.
func (m *Manager) State(ctx context.Context, id uuid.UUID) (quiz.State, error) {
	e, err := m.lookup(ctx, id)
	if err != nil {
		return quiz.State{}, err
	}
	return e.session.State(), nil
}

// SetParticipant replaces the participant, discarding progress and any running countdown.
func (m *Manager) SetParticipant(ctx context.Context, id uuid.UUID, name string, age int) (quiz.State, error) {
	e, err := m.lookup(ctx, id)
	if err != nil {
		return quiz.State{}, err
	}
	if _, err := quiz.ValidateParticipant(name, age); err != nil {
		return quiz.State{}, err
	}
	e.stopCountdown()
	if err := e.session.SetParticipant(name, age); err != nil {
		return quiz.State{}, err
	}
	return m.changed(ctx, id, e), nil
}

// Start moves to the first question.
func (m *Manager) Start(ctx context.Context, id uuid.UUID) (quiz.State, error) {
	e, err := m.lookup(ctx, id)
	if err != nil {
		return quiz.State{}, err
	}
	if err := e.session.Start(); err != nil {
		return quiz.State{}, err
	}
	return m.changed(ctx, id, e), nil
}

// StartTimer starts the countdown with the configured duration. Calling it on a running timer is
// a no-op that returns the current state.
func (m *Manager) StartTimer(ctx context.Context, id uuid.UUID) (quiz.State, error) {
	e, err := m.lookup(ctx, id)
	if err != nil {
		return quiz.State{}, err
	}
	seconds := m.duration(ctx)
	err = e.session.StartTimer(seconds)
	if errors.Is(err, quiz.ErrTimerAlreadyStarted) {
		return e.session.State(), nil
	}
	if err != nil {
		return quiz.State{}, err
	}

	cd := NewCountdown(e.session, m.opts.TickInterval, m.opts.Clock,
		func(remaining int) {
			m.publish(id, realtime.EventTick, map[string]int{"timeRemaining": remaining})
		},
		func(result quiz.Result) {
			m.completed(id, e.session, result, TriggerTimer)
		},
	)
	e.mu.Lock()
	old := e.countdown
	e.countdown = cd
	e.mu.Unlock()
	if old != nil {
		old.Stop()
	}
	cd.Start()
	m.logger.Info("timer started", zap.String("session_id", id.String()), zap.Int("seconds", seconds))
	return m.changed(ctx, id, e), nil
}

// Answer records the selected option for a question.
func (m *Manager) Answer(ctx context.Context, id uuid.UUID, questionID int, option quiz.Option) (quiz.State, error) {
	e, err := m.lookup(ctx, id)
	if err != nil {
		return quiz.State{}, err
	}
	if err := e.session.RecordAnswer(questionID, option); err != nil {
		return quiz.State{}, err
	}
	return m.changed(ctx, id, e), nil
}

// Next advances one question. The current question must be answered.
func (m *Manager) Next(ctx context.Context, id uuid.UUID) (quiz.State, error) {
	e, err := m.lookup(ctx, id)
	if err != nil {
		return quiz.State{}, err
	}
	if !e.session.State().CurrentAnswer().Answered() {
		return quiz.State{}, ErrAnswerRequired
	}
	e.session.Advance()
	return m.changed(ctx, id, e), nil
}

// Prev goes back one question.
func (m *Manager) Prev(ctx context.Context, id uuid.UUID) (quiz.State, error) {
	e, err := m.lookup(ctx, id)
	if err != nil {
		return quiz.State{}, err
	}
	e.session.Retreat()
	return m.changed(ctx, id, e), nil
}

// Submit is the manual submission: only from the last question, once it is answered.
// Repeated submits return the stored result.
func (m *Manager) Submit(ctx context.Context, id uuid.UUID) (quiz.Result, error) {
	e, err := m.lookup(ctx, id)
	if err != nil {
		return quiz.Result{}, err
	}
	st := e.session.State()
	if !st.Completed {
		if st.CurrentIndex != m.bank.Len()-1 {
			return quiz.Result{}, ErrNotOnLastQuestion
		}
		if !st.CurrentAnswer().Answered() {
			return quiz.Result{}, ErrAnswerRequired
		}
	}
	result, first, err := e.session.Submit()
	if err != nil {
		return quiz.Result{}, err
	}
	if first {
		e.stopCountdown()
		m.completed(id, e.session, result, TriggerManual)
	}
	return result, nil
}

// Reset clears the session and forgets it.
func (m *Manager) Reset(ctx context.Context, id uuid.UUID) error {
	e, err := m.lookup(ctx, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	e.stopCountdown()
	e.session.Reset()
	if m.opts.Store != nil {
		if err := m.opts.Store.Delete(ctx, id); err != nil {
			m.logger.Warn("snapshot delete failed", zap.Error(err), zap.String("session_id", id.String()))
		}
	}
	m.publish(id, realtime.EventState, e.session.State())
	m.logger.Info("session reset", zap.String("session_id", id.String()))
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EvictIdle forgets sessions unused for longer than IdleTTL. Sessions with a running countdown
// are kept. Snapshots stay in the store, so an evicted session can still be restored until its
// TTL runs out. It returns the number of evicted sessions.
func (m *Manager) EvictIdle() int {
	if m.opts.IdleTTL <= 0 {
		return 0
	}
	cutoff := m.opts.Clock().Add(-m.opts.IdleTTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.sessions {
		if e.idleSince(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// RunEviction calls EvictIdle every interval until ctx is cancelled.
func (m *Manager) RunEviction(ctx context.Context, interval time.Duration) {
	if m.opts.IdleTTL <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if n := m.EvictIdle(); n > 0 {
			m.logger.Debug("idle sessions evicted", zap.Int("count", n))
		}
	}
}

// Close stops every countdown and waits for pending dispatches.
func (m *Manager) Close() {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()
	for _, e := range entries {
		e.stopCountdown()
	}
	m.wg.Wait()
}

// changed persists and publishes the new state after a successful mutation.
func (m *Manager) changed(ctx context.Context, id uuid.UUID, e *entry) quiz.State {
	m.persist(ctx, id, e.session)
	st := e.session.State()
	m.publish(id, realtime.EventState, st)
	return st
}

func (m *Manager) persist(ctx context.Context, id uuid.UUID, s *quiz.Session) {
	if m.opts.Store == nil {
		return
	}
	snap, ok := s.Snapshot()
	if !ok {
		return
	}
	if err := m.opts.Store.Save(ctx, id, snap); err != nil {
		m.logger.Warn("snapshot save failed", zap.Error(err), zap.String("session_id", id.String()))
	}
}

func (m *Manager) publish(id uuid.UUID, event string, payload interface{}) {
	if m.opts.Publisher != nil {
		m.opts.Publisher.Publish(id, event, payload)
	}
}

// completed runs once per session, after the transition to Completed. The snapshot is
// rewritten with the result so no other instance can restore the session as unfinished.
func (m *Manager) completed(id uuid.UUID, s *quiz.Session, result quiz.Result, trigger string) {
	monitoring.SessionsCompleted.WithLabelValues(trigger).Inc()
	m.logger.Info("session completed",
		zap.String("session_id", id.String()),
		zap.String("trigger", trigger),
		zap.Int("score", result.Score),
		zap.Int("completion_time", result.CompletionTime),
	)
	m.publish(id, realtime.EventCompleted, result)

	persistCtx, cancel := context.WithTimeout(context.Background(), m.opts.DispatchTimeout)
	m.persist(persistCtx, id, s)
	cancel()

	if m.opts.Dispatcher == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.DispatchTimeout)
		defer cancel()
		if err := m.opts.Dispatcher.Dispatch(ctx, id, result); err != nil {
			m.logger.Error("export dispatch failed", zap.Error(err), zap.String("session_id", id.String()))
		}
	}()
}

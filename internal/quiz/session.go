package quiz

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Participant limits for this deployment.
const (
	MinNameLength = 2
	MaxNameLength = 50
	MinAge        = 9
	MaxAge        = 13

	// DefaultDurationSeconds is the countdown length used when no configured value is supplied.
	DefaultDurationSeconds = 10 * 60
)

// Phase is the coarse session state derived from State.
type Phase string

const (
	PhaseNoParticipant      Phase = "no_participant"
	PhaseAwaitingTimerStart Phase = "awaiting_timer_start"
	PhaseInProgress         Phase = "in_progress"
	PhaseCompleted          Phase = "completed"
)

// State is a point-in-time copy of a session, safe to hand to observers.
type State struct {
	Phase         Phase        `json:"phase"`
	Participant   *Participant `json:"participant"`
	CurrentIndex  int          `json:"currentIndex"`
	Answers       []Answer     `json:"answers"`
	StartTime     *time.Time   `json:"startTime"`
	Duration      int          `json:"duration"`
	TimeRemaining int          `json:"timeRemaining"`
	TimerStarted  bool         `json:"timerStarted"`
	Completed     bool         `json:"completed"`
	Result        *Result      `json:"result"`
}

// CurrentAnswer returns the answer entry for the question at CurrentIndex.
func (s State) CurrentAnswer() Answer {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Answers) {
		return Answer{}
	}
	return s.Answers[s.CurrentIndex]
}

func (s State) clone() State {
	out := s
	out.Answers = copyAnswers(s.Answers)
	if s.Participant != nil {
		p := *s.Participant
		out.Participant = &p
	}
	if s.StartTime != nil {
		t := *s.StartTime
		out.StartTime = &t
	}
	if s.Result != nil {
		r := s.Result.Clone()
		out.Result = &r
	}
	return out
}

func (s State) phase() Phase {
	switch {
	case s.Participant == nil:
		return PhaseNoParticipant
	case s.Completed:
		return PhaseCompleted
	case s.TimerStarted:
		return PhaseInProgress
	default:
		return PhaseAwaitingTimerStart
	}
}

// Snapshot is the persisted subset of a session: who is answering, what they chose so far
// and, once submitted, the result.
type Snapshot struct {
	Participant  Participant `json:"participant"`
	Answers      []Answer    `json:"answers"`
	CurrentIndex int         `json:"currentIndex"`
	Result       *Result     `json:"result,omitempty"`
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock replaces time.Now, for deterministic tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithDuration sets the countdown length reported before the timer starts.
func WithDuration(seconds int) SessionOption {
	return func(s *Session) {
		if seconds > 0 {
			s.duration = seconds
		}
	}
}

// Session is one participant's quiz attempt. All methods are safe for concurrent use;
// each mutation builds the next State and assigns it whole under the lock.
type Session struct {
	mu       sync.Mutex
	bank     *Bank
	now      func() time.Time
	duration int
	state    State
}

// NewSession creates a session with no participant.
func NewSession(bank *Bank, opts ...SessionOption) *Session {
	s := &Session{bank: bank, now: time.Now, duration: DefaultDurationSeconds}
	for _, opt := range opts {
		opt(s)
	}
	s.state = s.initialState()
	return s
}

func (s *Session) initialState() State {
	answers := make([]Answer, s.bank.Len())
	for i := range answers {
		answers[i].QuestionID = s.bank.At(i).ID
	}
	return State{
		Answers:       answers,
		Duration:      s.duration,
		TimeRemaining: s.duration,
	}
}

// ValidateParticipant checks name and age limits. Name is trimmed first.
func ValidateParticipant(name string, age int) (Participant, error) {
	name = strings.TrimSpace(name)
	fields := make(map[string]string)
	switch n := utf8.RuneCountInString(name); {
	case n < MinNameLength:
		fields["name"] = "Name must be at least 2 characters."
	case n > MaxNameLength:
		fields["name"] = "Name must be less than 50 characters."
	}
	switch {
	case age < MinAge:
		fields["age"] = "You must be at least 9 years old."
	case age > MaxAge:
		fields["age"] = "This quiz is designed for ages 9-13."
	}
	if len(fields) > 0 {
		return Participant{}, &ValidationError{Fields: fields}
	}
	return Participant{Name: name, Age: age}, nil
}

// SetParticipant captures the participant and resets every other field.
// Invalid input returns a *ValidationError and leaves the session untouched.
func (s *Session) SetParticipant(name string, age int) error {
	p, err := ValidateParticipant(name, age)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.initialState()
	next.Participant = &p
	s.state = next
	return nil
}

// Start moves to the first question while waiting for the timer.
// It is a no-op once the timer runs and rejected after completion.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state.Participant == nil:
		return ErrNoParticipant
	case s.state.Completed:
		return ErrCompleted
	case s.state.TimerStarted:
		return nil
	}
	next := s.state
	next.CurrentIndex = 0
	next.Completed = false
	next.Result = nil
	s.state = next
	return nil
}

// StartTimer records the start instant and arms a countdown of the given length.
// A second call leaves the running countdown alone and returns ErrTimerAlreadyStarted.
func (s *Session) StartTimer(seconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state.Participant == nil:
		return ErrNoParticipant
	case s.state.Completed:
		return ErrCompleted
	case s.state.TimerStarted:
		return ErrTimerAlreadyStarted
	case seconds <= 0:
		return invalid("duration", "duration must be positive")
	}
	now := s.now()
	next := s.state
	next.StartTime = &now
	next.Duration = seconds
	next.TimeRemaining = seconds
	next.TimerStarted = true
	s.state = next
	return nil
}

// RecordAnswer sets the selection for a question, overwriting any earlier choice.
// Rejected answers leave the session unchanged.
func (s *Session) RecordAnswer(questionID int, option Option) error {
	if !option.Valid() {
		return invalid("option", "option must be one of a, b, c, d")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state.Completed:
		return ErrCompleted
	case !s.state.TimerStarted:
		return ErrTimerNotStarted
	}
	pos, ok := s.bank.position(questionID)
	if !ok {
		return ErrQuestionNotFound
	}
	next := s.state
	next.Answers = copyAnswers(s.state.Answers)
	o := option
	next.Answers[pos].SelectedAnswer = &o
	s.state = next
	return nil
}

// Advance moves to the next question, clamped to the last one.
func (s *Session) Advance() int {
	return s.move(1)
}

// Retreat moves to the previous question, clamped to the first one.
func (s *Session) Retreat() int {
	return s.move(-1)
}

func (s *Session) move(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.state.CurrentIndex + delta
	if last := s.bank.Len() - 1; idx > last {
		idx = last
	}
	if idx < 0 {
		idx = 0
	}
	next := s.state
	next.CurrentIndex = idx
	s.state = next
	return idx
}

// Submit scores the session and stores the result. The first successful call reports first=true;
// later calls return the stored result unchanged with first=false.
func (s *Session) Submit() (result Result, first bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked()
}

func (s *Session) submitLocked() (Result, bool, error) {
	switch {
	case s.state.Participant == nil:
		return Result{}, false, ErrNoParticipant
	case s.state.StartTime == nil:
		return Result{}, false, ErrTimerNotStarted
	case s.state.Completed:
		return s.state.Result.Clone(), false, nil
	}
	now := s.now()
	elapsed := int(now.Sub(*s.state.StartTime) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	n, breakdown := score(s.bank, s.state.Answers)
	total := s.bank.Len()
	result := Result{
		Participant:    *s.state.Participant,
		Answers:        copyAnswers(s.state.Answers),
		Score:          n,
		TotalQuestions: total,
		CompletionTime: elapsed,
		Timestamp:      now,
		Breakdown:      breakdown,
		Feedback:       Feedback(n, total),
	}
	next := s.state
	next.Result = &result
	next.Completed = true
	s.state = next
	return result.Clone(), true, nil
}

// Tick reports the time left on the external countdown. When remaining reaches zero the
// session submits itself; completed reports whether this call did so.
func (s *Session) Tick(remaining int) (result Result, completed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.TimerStarted || s.state.Completed {
		return Result{}, false
	}
	if remaining < 0 {
		remaining = 0
	}
	next := s.state
	next.TimeRemaining = remaining
	s.state = next
	if remaining > 0 {
		return Result{}, false
	}
	r, first, err := s.submitLocked()
	if err != nil {
		return Result{}, false
	}
	return r, first
}

// Reset returns the session to the no-participant state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.initialState()
}

// State returns a deep copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state.clone()
	st.Phase = s.state.phase()
	return st
}

// Snapshot returns the persistable subset, or false when no participant is set.
func (s *Session) Snapshot() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Participant == nil {
		return Snapshot{}, false
	}
	snap := Snapshot{
		Participant:  *s.state.Participant,
		Answers:      copyAnswers(s.state.Answers),
		CurrentIndex: s.state.CurrentIndex,
	}
	if s.state.Completed && s.state.Result != nil {
		r := s.state.Result.Clone()
		snap.Result = &r
	}
	return snap, true
}

// Restore rebuilds a session from a snapshot. An unfinished session comes back with the timer
// not started; a snapshot carrying a result comes back Completed with that result. Answers for
// unknown questions or with invalid options are dropped.
func (s *Session) Restore(snap Snapshot) error {
	p, err := ValidateParticipant(snap.Participant.Name, snap.Participant.Age)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.initialState()
	next.Participant = &p
	for _, a := range snap.Answers {
		pos, ok := s.bank.position(a.QuestionID)
		if !ok || a.SelectedAnswer == nil || !a.SelectedAnswer.Valid() {
			continue
		}
		o := *a.SelectedAnswer
		next.Answers[pos].SelectedAnswer = &o
	}
	idx := snap.CurrentIndex
	if last := s.bank.Len() - 1; idx > last {
		idx = last
	}
	if idx < 0 {
		idx = 0
	}
	next.CurrentIndex = idx
	if snap.Result != nil {
		r := snap.Result.Clone()
		started := r.Timestamp.Add(-time.Duration(r.CompletionTime) * time.Second)
		next.StartTime = &started
		next.TimerStarted = true
		next.TimeRemaining = max(next.Duration-r.CompletionTime, 0)
		next.Completed = true
		next.Result = &r
	}
	s.state = next
	return nil
}

package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/codekids/quiz-backend/internal/quiz"
	"github.com/codekids/quiz-backend/internal/realtime"
)

type managerFixture struct {
	manager    *Manager
	bank       *quiz.Bank
	clock      *fakeClock
	dispatcher *fakeDispatcher
	publisher  *recordingPublisher
}

func newManagerFixture(t *testing.T, store SnapshotStore) *managerFixture {
	t.Helper()
	f := &managerFixture{
		bank:       testBank(t),
		clock:      newFakeClock(),
		dispatcher: newFakeDispatcher(),
		publisher:  &recordingPublisher{},
	}
	f.manager = NewManager(f.bank, Options{
		Store:        store,
		Publisher:    f.publisher,
		Dispatcher:   f.dispatcher,
		Durations:    fixedDuration(60),
		TickInterval: 2 * time.Millisecond,
		IdleTTL:      time.Hour,
		Clock:        f.clock.Now,
	}, nil)
	t.Cleanup(f.manager.Close)
	return f
}

func (f *managerFixture) running(t *testing.T) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id, _, err := f.manager.Create(ctx, "Ava", 11)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.manager.Start(ctx, id); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st, err := f.manager.StartTimer(ctx, id)
	if err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	if st.Duration != 60 || !st.TimerStarted {
		t.Fatalf("unexpected state after StartTimer: %+v", st)
	}
	return id
}

func (f *managerFixture) answerAll(t *testing.T, id uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	for i, q := range f.bank.Questions() {
		if _, err := f.manager.Answer(ctx, id, q.ID, quiz.OptionA); err != nil {
			t.Fatalf("Answer %d: %v", q.ID, err)
		}
		if i < f.bank.Len()-1 {
			if _, err := f.manager.Next(ctx, id); err != nil {
				t.Fatalf("Next after %d: %v", q.ID, err)
			}
		}
	}
}

func TestTimerExpiryExportsOnce(t *testing.T) {
	f := newManagerFixture(t, nil)
	id := f.running(t)
	ctx := context.Background()
	if _, err := f.manager.Answer(ctx, id, 1, quiz.OptionB); err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(61 * time.Second)
	f.dispatcher.wait(t)

	st, err := f.manager.State(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Completed || st.TimeRemaining != 0 || st.Result == nil {
		t.Fatalf("not auto-submitted: %+v", st)
	}
	if st.Result.CompletionTime != 61 {
		t.Fatalf("CompletionTime = %d, want 61", st.Result.CompletionTime)
	}

	// A late manual submit returns the stored result and does not export again.
	result, err := f.manager.Submit(ctx, id)
	if err != nil {
		t.Fatalf("Submit after expiry: %v", err)
	}
	if result.CompletionTime != 61 {
		t.Fatalf("Submit returned a different result: %+v", result)
	}
	time.Sleep(20 * time.Millisecond)
	if n := f.dispatcher.count(); n != 1 {
		t.Fatalf("dispatch called %d times, want 1", n)
	}
	if n := f.publisher.count(realtime.EventCompleted); n != 1 {
		t.Fatalf("completed published %d times, want 1", n)
	}
	if f.publisher.count(realtime.EventTick) == 0 {
		t.Fatal("expected tick events")
	}
}

func TestManualSubmitExportsOnceAndStopsTimer(t *testing.T) {
	f := newManagerFixture(t, nil)
	id := f.running(t)
	f.answerAll(t, id)
	f.clock.Advance(42 * time.Second)

	ctx := context.Background()
	result, err := f.manager.Submit(ctx, id)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.TotalQuestions != 10 || result.CompletionTime != 42 || len(result.Answers) != 10 {
		t.Fatalf("unexpected result %+v", result)
	}
	f.dispatcher.wait(t)

	if _, err := f.manager.Submit(ctx, id); err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	f.clock.Advance(5 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	if n := f.dispatcher.count(); n != 1 {
		t.Fatalf("dispatch called %d times, want 1", n)
	}
	if _, err := f.manager.Answer(ctx, id, 1, quiz.OptionB); !errors.Is(err, quiz.ErrCompleted) {
		t.Fatalf("Answer after submit: err = %v", err)
	}
}

func TestNavigationGating(t *testing.T) {
	f := newManagerFixture(t, nil)
	id := f.running(t)
	ctx := context.Background()

	if _, err := f.manager.Next(ctx, id); !errors.Is(err, ErrAnswerRequired) {
		t.Fatalf("Next without answer: err = %v", err)
	}
	if _, err := f.manager.Submit(ctx, id); !errors.Is(err, ErrNotOnLastQuestion) {
		t.Fatalf("Submit on first question: err = %v", err)
	}
	if _, err := f.manager.Answer(ctx, id, 1, quiz.OptionD); err != nil {
		t.Fatal(err)
	}
	st, err := f.manager.Next(ctx, id)
	if err != nil || st.CurrentIndex != 1 {
		t.Fatalf("Next: index=%d err=%v", st.CurrentIndex, err)
	}
	st, err = f.manager.Prev(ctx, id)
	if err != nil || st.CurrentIndex != 0 {
		t.Fatalf("Prev: index=%d err=%v", st.CurrentIndex, err)
	}
	st, _ = f.manager.Prev(ctx, id)
	if st.CurrentIndex != 0 {
		t.Fatalf("Prev must clamp at 0, got %d", st.CurrentIndex)
	}

	// Jump to the last question with it unanswered.
	for i := 0; i < 9; i++ {
		q := f.bank.At(i)
		if _, err := f.manager.Answer(ctx, id, q.ID, quiz.OptionA); err != nil {
			t.Fatal(err)
		}
		if _, err := f.manager.Next(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.manager.Submit(ctx, id); !errors.Is(err, ErrAnswerRequired) {
		t.Fatalf("Submit with unanswered last question: err = %v", err)
	}
	if f.dispatcher.count() != 0 {
		t.Fatal("gated submit must not export")
	}
}

func TestStartTimerTwiceKeepsFirstStart(t *testing.T) {
	f := newManagerFixture(t, nil)
	id := f.running(t)
	ctx := context.Background()
	before, _ := f.manager.State(ctx, id)

	f.clock.Advance(5 * time.Second)
	after, err := f.manager.StartTimer(ctx, id)
	if err != nil {
		t.Fatalf("second StartTimer: %v", err)
	}
	if !after.StartTime.Equal(*before.StartTime) {
		t.Fatalf("start time moved from %v to %v", before.StartTime, after.StartTime)
	}
}

func TestAnswerBeforeTimer(t *testing.T) {
	f := newManagerFixture(t, nil)
	ctx := context.Background()
	id, _, err := f.manager.Create(ctx, "Ava", 11)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.manager.Answer(ctx, id, 1, quiz.OptionA); !errors.Is(err, quiz.ErrTimerNotStarted) {
		t.Fatalf("err = %v, want ErrTimerNotStarted", err)
	}
	if _, err := f.manager.Submit(ctx, id); err == nil {
		t.Fatal("submit before timer must fail")
	}
}

func TestCreateValidatesParticipant(t *testing.T) {
	f := newManagerFixture(t, nil)
	_, _, err := f.manager.Create(context.Background(), "A", 8)
	var verr *quiz.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if verr.Fields["name"] == "" || verr.Fields["age"] == "" {
		t.Fatalf("expected name and age errors, got %v", verr.Fields)
	}
	if f.manager.Len() != 0 {
		t.Fatal("invalid participant must not create a session")
	}
}

func TestSetParticipantStopsCountdown(t *testing.T) {
	f := newManagerFixture(t, nil)
	id := f.running(t)
	ctx := context.Background()
	st, err := f.manager.SetParticipant(ctx, id, "Noah", 12)
	if err != nil {
		t.Fatalf("SetParticipant: %v", err)
	}
	if st.TimerStarted || st.Participant.Name != "Noah" {
		t.Fatalf("unexpected state %+v", st)
	}
	f.clock.Advance(2 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	if f.dispatcher.count() != 0 {
		t.Fatal("replaced participant's countdown must not submit")
	}
}

func TestRestoreFromSnapshot(t *testing.T) {
	_, client := newRedis(t)
	store := NewRedisStore(client, time.Hour)
	first := newManagerFixture(t, store)
	id := first.running(t)
	ctx := context.Background()
	if _, err := first.manager.Answer(ctx, id, 1, quiz.OptionC); err != nil {
		t.Fatal(err)
	}
	if _, err := first.manager.Next(ctx, id); err != nil {
		t.Fatal(err)
	}

	second := newManagerFixture(t, store)
	st, err := second.manager.State(ctx, id)
	if err != nil {
		t.Fatalf("State on fresh manager: %v", err)
	}
	if st.Participant == nil || st.Participant.Name != "Ava" {
		t.Fatalf("participant not restored: %+v", st.Participant)
	}
	if st.CurrentIndex != 1 || st.Answers[0].SelectedAnswer == nil || *st.Answers[0].SelectedAnswer != quiz.OptionC {
		t.Fatalf("progress not restored: %+v", st)
	}
	if st.TimerStarted || st.Phase != quiz.PhaseAwaitingTimerStart {
		t.Fatalf("restored session must wait for the timer: %+v", st)
	}
}

func TestResetForgetsSession(t *testing.T) {
	mr, client := newRedis(t)
	f := newManagerFixture(t, NewRedisStore(client, time.Hour))
	id := f.running(t)
	ctx := context.Background()

	if err := f.manager.Reset(ctx, id); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := f.manager.State(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("State after reset: err = %v", err)
	}
	if mr.Exists("quiz:session:" + id.String()) {
		t.Fatal("snapshot must be deleted on reset")
	}
	if err := f.manager.Reset(ctx, uuid.New()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Reset unknown: err = %v", err)
	}
}

func TestCompletedSessionStaysCompletedOnAnotherInstance(t *testing.T) {
	_, client := newRedis(t)
	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	first := newManagerFixture(t, store)
	id := first.running(t)
	first.answerAll(t, id)
	first.clock.Advance(40 * time.Second)
	if _, err := first.manager.Submit(ctx, id); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	first.dispatcher.wait(t)

	second := newManagerFixture(t, store)
	st, err := second.manager.State(ctx, id)
	if err != nil {
		t.Fatalf("State on second instance: %v", err)
	}
	if !st.Completed || st.Result == nil || st.Result.CompletionTime != 40 {
		t.Fatalf("restored session lost its result: %+v", st)
	}
	if _, err := second.manager.StartTimer(ctx, id); !errors.Is(err, quiz.ErrCompleted) {
		t.Fatalf("StartTimer on completed session: err = %v", err)
	}
	result, err := second.manager.Submit(ctx, id)
	if err != nil || result.CompletionTime != 40 {
		t.Fatalf("Submit on second instance: %+v %v", result, err)
	}
	time.Sleep(20 * time.Millisecond)
	if n := second.dispatcher.count(); n != 0 {
		t.Fatalf("second instance exported %d times, want 0", n)
	}
	if n := first.dispatcher.count(); n != 1 {
		t.Fatalf("first instance exported %d times, want 1", n)
	}
}

func TestTimerCompletionIsPersisted(t *testing.T) {
	_, client := newRedis(t)
	store := NewRedisStore(client, time.Hour)
	f := newManagerFixture(t, store)
	id := f.running(t)

	f.clock.Advance(61 * time.Second)
	f.dispatcher.wait(t)

	snap, ok, err := store.Load(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if snap.Result == nil || snap.Result.CompletionTime != 61 {
		t.Fatalf("snapshot missing timer result: %+v", snap.Result)
	}
}

func TestEvictIdleForgetsStaleSessions(t *testing.T) {
	mr, client := newRedis(t)
	f := newManagerFixture(t, NewRedisStore(client, time.Hour))
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id, _, err := f.manager.Create(ctx, "Ava", 11)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, id)
	}
	f.clock.Advance(30 * time.Minute)
	if _, err := f.manager.State(ctx, ids[0]); err != nil {
		t.Fatalf("State: %v", err)
	}
	f.clock.Advance(45 * time.Minute)

	if n := f.manager.EvictIdle(); n != 2 {
		t.Fatalf("evicted %d, want 2", n)
	}
	if f.manager.Len() != 1 {
		t.Fatalf("Len = %d, want 1", f.manager.Len())
	}

	// Evicted sessions come back from the snapshot while it lives.
	if _, err := f.manager.State(ctx, ids[1]); err != nil {
		t.Fatalf("restore after eviction: %v", err)
	}

	mr.FastForward(2 * time.Hour)
	f.clock.Advance(2 * time.Hour)
	f.manager.EvictIdle()
	if f.manager.Len() != 0 {
		t.Fatalf("Len = %d after TTL, want 0", f.manager.Len())
	}
	if _, err := f.manager.State(ctx, ids[2]); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after TTL, got %v", err)
	}
}

func TestRunEvictionStopsWithContext(t *testing.T) {
	f := newManagerFixture(t, nil)
	if _, _, err := f.manager.Create(context.Background(), "Ava", 11); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(2 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.manager.RunEviction(ctx, time.Millisecond)
		close(done)
	}()
	deadline := time.Now().Add(3 * time.Second)
	for f.manager.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
	if f.manager.Len() != 0 {
		t.Fatalf("Len = %d, want 0", f.manager.Len())
	}
}

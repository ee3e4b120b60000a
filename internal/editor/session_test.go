package editor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type fakeTimer struct {
	deadline time.Time
	fn       func()
	stopped  bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward, firing due timers in deadline order.
// Callbacks run without the clock lock held so they may schedule new
// timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	end := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.deadline.After(end) {
				continue
			}
			if next == nil || t.deadline.Before(next.deadline) {
				next = t
			}
		}
		if next == nil {
			c.now = end
			c.mu.Unlock()
			return
		}
		next.stopped = true
		c.now = next.deadline
		c.mu.Unlock()
		next.fn()
	}
}

type savedValue struct {
	value string
	at    time.Time
}

type fakePersister struct {
	mu          sync.Mutex
	contents    []savedValue
	titles      []savedValue
	discussions [][]Discussion
}

func (p *fakePersister) SaveContent(_ context.Context, _ Kind, _ string, content json.RawMessage, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contents = append(p.contents, savedValue{value: string(content), at: at})
	return nil
}

func (p *fakePersister) SaveTitle(_ context.Context, _ Kind, _ string, title string, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles = append(p.titles, savedValue{value: title, at: at})
	return nil
}

func (p *fakePersister) SaveDiscussions(_ context.Context, _ Kind, _ string, discussions []Discussion, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.discussions = append(p.discussions, discussions)
	return nil
}

func (p *fakePersister) contentValues() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.contents))
	for i, s := range p.contents {
		out[i] = s.value
	}
	return out
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func newTestSession(t *testing.T) (*Session, *fakeClock, *fakePersister) {
	t.Helper()
	clock := newFakeClock()
	persist := &fakePersister{}
	s := NewSession(context.Background(), "sess_1", KindDocument, persist, clock)
	s.ApplyRemote(&Entity{
		ID:        "doc_1",
		Kind:      KindDocument,
		Title:     "Initial",
		Content:   raw(`{"type":"doc"}`),
		UpdatedAt: clock.Now().UnixMilli(),
	})
	return s, clock, persist
}

func TestContentThrottleWithTrailingFlush(t *testing.T) {
	s, clock, persist := newTestSession(t)

	// First edit saves immediately, edits inside the window accumulate,
	// the trailing flush carries the latest value.
	if err := s.EditContent(raw(`{"v":"A"}`)); err != nil {
		t.Fatal(err)
	}
	clock.Advance(200 * time.Millisecond)
	if err := s.EditContent(raw(`{"v":"B"}`)); err != nil {
		t.Fatal(err)
	}
	clock.Advance(200 * time.Millisecond)
	if err := s.EditContent(raw(`{"v":"C"}`)); err != nil {
		t.Fatal(err)
	}

	if got := persist.contentValues(); len(got) != 1 || got[0] != `{"v":"A"}` {
		t.Fatalf("before window edge: saves = %v", got)
	}

	clock.Advance(600 * time.Millisecond) // t=1000, trailing flush
	if got := persist.contentValues(); len(got) != 2 || got[1] != `{"v":"C"}` {
		t.Fatalf("after window edge: saves = %v", got)
	}

	// An edit shortly after the flush schedules the next trailing flush
	// at the new window edge.
	clock.Advance(100 * time.Millisecond) // t=1100
	if err := s.EditContent(raw(`{"v":"D"}`)); err != nil {
		t.Fatal(err)
	}
	if got := persist.contentValues(); len(got) != 2 {
		t.Fatalf("inside second window: saves = %v", got)
	}
	clock.Advance(900 * time.Millisecond) // t=2000
	if got := persist.contentValues(); len(got) != 3 || got[2] != `{"v":"D"}` {
		t.Fatalf("after second window: saves = %v", got)
	}
}

func TestTitleTrailingDebounce(t *testing.T) {
	s, clock, persist := newTestSession(t)

	for _, title := range []string{"H", "He", "Hel"} {
		if err := s.EditTitle(title); err != nil {
			t.Fatal(err)
		}
		clock.Advance(100 * time.Millisecond)
	}
	// Last edit at t=200, debounce fires at t=700.
	clock.Advance(300 * time.Millisecond) // t=600
	if len(persist.titles) != 0 {
		t.Fatalf("title saved before debounce elapsed: %v", persist.titles)
	}
	clock.Advance(100 * time.Millisecond) // t=700
	if len(persist.titles) != 1 || persist.titles[0].value != "Hel" {
		t.Fatalf("titles = %v, want single save of latest value", persist.titles)
	}
}

func TestRemoteGuardRejectsOwnEcho(t *testing.T) {
	s, clock, persist := newTestSession(t)
	base := clock.Now()

	if err := s.EditContent(raw(`{"v":"local"}`)); err != nil {
		t.Fatal(err)
	}
	if got := persist.contentValues(); len(got) != 1 {
		t.Fatalf("saves = %v", got)
	}

	// A remote update arriving while the local-edit flag is still set is
	// dropped even though the guard window has elapsed.
	clock.Advance(1600 * time.Millisecond)
	s.ApplyRemote(&Entity{
		ID:        "doc_1",
		Kind:      KindDocument,
		Title:     "Initial",
		Content:   raw(`{"v":"remote1"}`),
		UpdatedAt: base.Add(1600 * time.Millisecond).UnixMilli(),
	})
	if got := s.Entity().Content; string(got) != `{"v":"local"}` {
		t.Fatalf("content = %s, want local value kept while edit flag set", got)
	}

	// After the flag TTL and the guard window, a newer differing remote
	// update wins.
	clock.Advance(500 * time.Millisecond) // t=2100, flag cleared at t=2000
	s.ApplyRemote(&Entity{
		ID:        "doc_1",
		Kind:      KindDocument,
		Title:     "Renamed",
		Content:   raw(`{"v":"remote2"}`),
		UpdatedAt: base.Add(2100 * time.Millisecond).UnixMilli(),
	})
	got := s.Entity()
	if string(got.Content) != `{"v":"remote2"}` || got.Title != "Renamed" {
		t.Fatalf("content = %s title = %q, want remote applied", got.Content, got.Title)
	}
}

func TestRemoteStaleTimestampIgnored(t *testing.T) {
	s, clock, _ := newTestSession(t)
	initial := s.Entity()

	clock.Advance(5 * time.Second)
	s.ApplyRemote(&Entity{
		ID:        "doc_1",
		Kind:      KindDocument,
		Title:     "Old",
		Content:   raw(`{"v":"old"}`),
		UpdatedAt: initial.UpdatedAt - 1000,
	})
	if got := s.Entity(); string(got.Content) != string(initial.Content) {
		t.Fatalf("stale remote applied: %s", got.Content)
	}
}

func TestRemoteIdenticalContentSkipped(t *testing.T) {
	s, clock, _ := newTestSession(t)
	initial := s.Entity()

	clock.Advance(5 * time.Second)
	// Same content with whitespace differences only: must not count as a
	// differing update.
	s.ApplyRemote(&Entity{
		ID:        "doc_1",
		Kind:      KindDocument,
		Title:     initial.Title,
		Content:   raw(`{ "type" : "doc" }`),
		UpdatedAt: clock.Now().UnixMilli(),
	})
	if got := s.Entity(); string(got.Content) != string(initial.Content) {
		t.Fatalf("equivalent remote replaced local content: %s", got.Content)
	}
}

func TestDiscussionDebounceReschedules(t *testing.T) {
	s, clock, persist := newTestSession(t)

	if err := s.UpdateDiscussions([]Discussion{{ID: "d1"}}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(600 * time.Millisecond)
	if err := s.UpdateDiscussions([]Discussion{{ID: "d1"}, {ID: "d2"}}); err != nil {
		t.Fatal(err)
	}

	// The timer from t=0 fires at t=1000, sees the t=600 edit inside the
	// window and re-arms for t=1600.
	clock.Advance(500 * time.Millisecond) // t=1100
	if len(persist.discussions) != 0 {
		t.Fatalf("saved before rescheduled deadline: %v", persist.discussions)
	}
	clock.Advance(500 * time.Millisecond) // t=1600
	if len(persist.discussions) != 1 || len(persist.discussions[0]) != 2 {
		t.Fatalf("discussions saves = %v, want single save of latest list", persist.discussions)
	}
}

func TestDiscussionRemoteSuppressionWindow(t *testing.T) {
	s, clock, persist := newTestSession(t)
	base := clock.Now()

	if err := s.UpdateDiscussions([]Discussion{{ID: "mine"}}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(1000 * time.Millisecond) // local save fires
	if len(persist.discussions) != 1 {
		t.Fatalf("discussions saves = %v", persist.discussions)
	}

	// Within the suppression window the remote list is ignored.
	clock.Advance(500 * time.Millisecond) // t=1500, save was at t=1000
	s.ApplyRemote(&Entity{
		ID:          "doc_1",
		Kind:        KindDocument,
		Title:       "Initial",
		Content:     raw(`{"type":"doc"}`),
		Discussions: []Discussion{{ID: "theirs"}},
		UpdatedAt:   base.UnixMilli(),
	})
	if got := s.Entity().Discussions; len(got) != 1 || got[0].ID != "mine" {
		t.Fatalf("discussions = %v, want local list kept", got)
	}

	clock.Advance(2 * time.Second) // t=3500
	s.ApplyRemote(&Entity{
		ID:          "doc_1",
		Kind:        KindDocument,
		Title:       "Initial",
		Content:     raw(`{"type":"doc"}`),
		Discussions: []Discussion{{ID: "theirs"}},
		UpdatedAt:   base.UnixMilli(),
	})
	if got := s.Entity().Discussions; len(got) != 1 || got[0].ID != "theirs" {
		t.Fatalf("discussions = %v, want remote list applied after window", got)
	}
}

func TestCloseFlushesDirtyStateAndCancelsTimers(t *testing.T) {
	s, clock, persist := newTestSession(t)

	if err := s.EditContent(raw(`{"v":"A"}`)); err != nil {
		t.Fatal(err)
	}
	clock.Advance(200 * time.Millisecond)
	if err := s.EditContent(raw(`{"v":"B"}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.EditTitle("Closing"); err != nil {
		t.Fatal(err)
	}

	s.Close()

	if got := persist.contentValues(); len(got) != 2 || got[1] != `{"v":"B"}` {
		t.Fatalf("content saves = %v, want dirty content flushed on close", got)
	}
	if len(persist.titles) != 1 || persist.titles[0].value != "Closing" {
		t.Fatalf("title saves = %v, want dirty title flushed on close", persist.titles)
	}

	// Nothing fires after close, and edits are refused.
	clock.Advance(10 * time.Second)
	if got := persist.contentValues(); len(got) != 2 {
		t.Fatalf("timer fired after close: %v", got)
	}
	if err := s.EditContent(raw(`{"v":"C"}`)); err != ErrSessionClosed {
		t.Fatalf("EditContent after close = %v, want ErrSessionClosed", err)
	}
}

func TestRestoreBypassesThrottle(t *testing.T) {
	s, clock, persist := newTestSession(t)

	if err := s.EditContent(raw(`{"v":"live"}`)); err != nil {
		t.Fatal(err)
	}
	clock.Advance(100 * time.Millisecond)
	if err := s.Restore("Restored", raw(`{"v":"snapshot"}`)); err != nil {
		t.Fatal(err)
	}

	got := persist.contentValues()
	if len(got) != 2 || got[1] != `{"v":"snapshot"}` {
		t.Fatalf("content saves = %v, want restore persisted immediately", got)
	}
	if len(persist.titles) != 1 || persist.titles[0].value != "Restored" {
		t.Fatalf("title saves = %v", persist.titles)
	}
}

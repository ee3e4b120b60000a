package editor

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"
)

// Timing windows of the reconciliation machinery. Content and title use
// deliberately different strategies: content is throttled (with a trailing
// flush so the last keystroke before a pause still persists), the title is
// a plain trailing debounce.
const (
	ContentSaveInterval      = 1000 * time.Millisecond
	TitleSaveDebounce        = 500 * time.Millisecond
	RemoteGuardWindow        = 1500 * time.Millisecond
	LocalEditFlagTTL         = 2000 * time.Millisecond
	DiscussionSuppressWindow = 2000 * time.Millisecond
	DiscussionSaveDebounce   = 1000 * time.Millisecond
)

var ErrSessionClosed = errors.New("editor session closed")

// Clock abstracts time for the session scheduler so tests can drive the
// windows deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock is the production clock.
func RealClock() Clock { return realClock{} }

// Persister is where the session flushes dirty state. Implementations save
// against the live entity record; failures are logged and local state is
// kept, matching the optimistic write policy.
type Persister interface {
	SaveContent(ctx context.Context, kind Kind, entityID string, content json.RawMessage, at time.Time) error
	SaveTitle(ctx context.Context, kind Kind, entityID string, title string, at time.Time) error
	SaveDiscussions(ctx context.Context, kind Kind, entityID string, discussions []Discussion, at time.Time) error
}

// Session is the single source of truth for one open editing session. All
// mutable timing state is session-scoped; Close cancels every pending
// timer, so nothing fires against a dead session.
type Session struct {
	ID   string
	Kind Kind

	mu      sync.Mutex
	clock   Clock
	persist Persister
	ctx     context.Context

	entity      *Entity
	initialized bool
	closed      bool

	lastRemoteUpdatedAt int64

	// content state
	lastContentSaveAt time.Time
	lastLocalSaveAt   time.Time
	contentDirty      bool
	contentTimer      Timer

	// local-edit flag
	localEditFlag  bool
	localEditTimer Timer

	// title state
	titleDirty bool
	titleTimer Timer

	// discussions state
	lastDiscussionSaveAt time.Time
	lastDiscussionEditAt time.Time
	discussionsDirty     bool
	discussionTimer      Timer
}

// NewSession creates an empty session; the first ApplyRemote initializes
// it. ctx outlives individual requests and bounds timer-driven saves.
func NewSession(ctx context.Context, id string, kind Kind, persist Persister, clock Clock) *Session {
	if clock == nil {
		clock = RealClock()
	}
	return &Session{
		ID:      id,
		Kind:    kind,
		clock:   clock,
		persist: persist,
		ctx:     ctx,
	}
}

// Entity returns a copy of the session's current local state, or nil before
// initialization.
func (s *Session) Entity() *Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entity == nil {
		return nil
	}
	copied := *s.entity
	copied.Discussions = append([]Discussion(nil), s.entity.Discussions...)
	return &copied
}

// ApplyRemote feeds a store read into the session. The first non-nil
// payload initializes local state; after that the one-shot latch is set and
// every subsequent payload goes through the reconciliation guard instead:
// content is applied only when the remote timestamp is newer than the last
// known one, the content actually differs, no local edit is in flight, and
// the last local save is at least RemoteGuardWindow old — otherwise the
// update is our own just-saved echo, or would clobber typing in progress.
func (s *Session) ApplyRemote(remote *Entity) {
	if remote == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if !s.initialized {
		copied := *remote
		s.entity = &copied
		s.initialized = true
		s.lastRemoteUpdatedAt = remote.UpdatedAt
		return
	}

	now := s.clock.Now()

	if remote.UpdatedAt > s.lastRemoteUpdatedAt {
		s.lastRemoteUpdatedAt = remote.UpdatedAt
		differs := !jsonEqual(remote.Content, s.entity.Content) || remote.Title != s.entity.Title
		if differs && !s.localEditFlag && now.Sub(s.lastLocalSaveAt) >= RemoteGuardWindow {
			s.entity.Content = remote.Content
			s.entity.Title = remote.Title
			s.entity.UpdatedAt = remote.UpdatedAt
		}
	}

	// Discussions reconcile independently with their own, wider window.
	if now.Sub(s.lastDiscussionSaveAt) >= DiscussionSuppressWindow && !s.discussionsDirty {
		s.entity.Discussions = remote.Discussions
	}
}

// EditContent applies a local content change optimistically and schedules
// persistence: an immediate flush when the save interval has elapsed,
// otherwise a trailing flush at the window edge carrying the latest value.
func (s *Session) EditContent(content json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.entity == nil {
		return errors.New("session not initialized")
	}

	now := s.clock.Now()
	s.entity.Content = content
	s.entity.UpdatedAt = now.UnixMilli()
	s.markLocalEditLocked()

	if now.Sub(s.lastContentSaveAt) >= ContentSaveInterval {
		s.flushContentLocked(now)
		return nil
	}
	s.contentDirty = true
	if s.contentTimer == nil {
		remaining := ContentSaveInterval - now.Sub(s.lastContentSaveAt)
		s.contentTimer = s.clock.AfterFunc(remaining, s.onContentTimer)
	}
	return nil
}

func (s *Session) onContentTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.contentTimer = nil
	if s.contentDirty {
		s.flushContentLocked(s.clock.Now())
	}
}

func (s *Session) flushContentLocked(now time.Time) {
	s.lastContentSaveAt = now
	s.lastLocalSaveAt = now
	s.contentDirty = false
	if err := s.persist.SaveContent(s.ctx, s.Kind, s.entity.ID, s.entity.Content, now); err != nil {
		// Local state stays as-is: the UI already applied the edit.
		log.Printf("editor: save content %s: %v", s.entity.ID, err)
	}
}

// EditTitle applies a local title change and debounces persistence: only
// the final value after a pause is written.
func (s *Session) EditTitle(title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.entity == nil {
		return errors.New("session not initialized")
	}

	s.entity.Title = title
	s.titleDirty = true
	if s.titleTimer != nil {
		s.titleTimer.Stop()
	}
	s.titleTimer = s.clock.AfterFunc(TitleSaveDebounce, s.onTitleTimer)
	return nil
}

func (s *Session) onTitleTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.titleTimer = nil
	if s.titleDirty {
		s.flushTitleLocked(s.clock.Now())
	}
}

func (s *Session) flushTitleLocked(now time.Time) {
	s.titleDirty = false
	s.lastLocalSaveAt = now
	if err := s.persist.SaveTitle(s.ctx, s.Kind, s.entity.ID, s.entity.Title, now); err != nil {
		log.Printf("editor: save title %s: %v", s.entity.ID, err)
	}
}

// UpdateDiscussions applies a local discussions change. Its debounce
// self-reschedules: a save attempt landing inside the previous save's
// window waits out the remaining time instead of dropping.
func (s *Session) UpdateDiscussions(discussions []Discussion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.entity == nil {
		return errors.New("session not initialized")
	}

	s.entity.Discussions = discussions
	s.discussionsDirty = true
	s.lastDiscussionEditAt = s.clock.Now()
	if s.discussionTimer == nil {
		s.discussionTimer = s.clock.AfterFunc(DiscussionSaveDebounce, s.onDiscussionTimer)
	}
	return nil
}

// onDiscussionTimer re-arms itself for the remaining window when edits are
// still fresher than the debounce, instead of restarting a timer on every
// update.
func (s *Session) onDiscussionTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	now := s.clock.Now()
	if since := now.Sub(s.lastDiscussionEditAt); since < DiscussionSaveDebounce {
		s.discussionTimer = s.clock.AfterFunc(DiscussionSaveDebounce-since, s.onDiscussionTimer)
		return
	}
	s.discussionTimer = nil
	if s.discussionsDirty {
		s.flushDiscussionsLocked(now)
	}
}

func (s *Session) flushDiscussionsLocked(now time.Time) {
	s.lastDiscussionSaveAt = now
	s.discussionsDirty = false
	if err := s.persist.SaveDiscussions(s.ctx, s.Kind, s.entity.ID, s.entity.Discussions, now); err != nil {
		log.Printf("editor: save discussions %s: %v", s.entity.ID, err)
	}
}

// Restore overwrites local state from a snapshot and persists immediately,
// bypassing the throttle. It does not snapshot the state it replaces; the
// caller decides whether to create a version first.
func (s *Session) Restore(title string, content json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.entity == nil {
		return errors.New("session not initialized")
	}

	now := s.clock.Now()
	s.entity.Title = title
	s.entity.Content = content
	s.entity.UpdatedAt = now.UnixMilli()
	s.contentDirty = false
	s.titleDirty = false
	s.flushContentLocked(now)
	s.flushTitleLocked(now)
	return nil
}

func (s *Session) markLocalEditLocked() {
	s.localEditFlag = true
	if s.localEditTimer != nil {
		s.localEditTimer.Stop()
	}
	s.localEditTimer = s.clock.AfterFunc(LocalEditFlagTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		s.localEditFlag = false
	})
}

// Close tears the session down: every pending timer is cancelled and any
// dirty field gets one final flush, so the last edit of a session is never
// lost and no timer ever fires against a closed session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for _, timer := range []Timer{s.contentTimer, s.titleTimer, s.discussionTimer, s.localEditTimer} {
		if timer != nil {
			timer.Stop()
		}
	}
	s.contentTimer, s.titleTimer, s.discussionTimer, s.localEditTimer = nil, nil, nil, nil

	now := s.clock.Now()
	if s.entity != nil {
		if s.contentDirty {
			s.flushContentLocked(now)
		}
		if s.titleDirty {
			s.flushTitleLocked(now)
		}
		if s.discussionsDirty {
			s.flushDiscussionsLocked(now)
		}
	}
	s.closed = true
}

func jsonEqual(a, b json.RawMessage) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return string(a) == string(b)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return string(a) == string(b)
	}
	an, errA := json.Marshal(av)
	bn, errB := json.Marshal(bv)
	if errA != nil || errB != nil {
		return string(a) == string(b)
	}
	return string(an) == string(bn)
}

package clone

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"concord/api/internal/store"
)

type fakeCloneStore struct {
	amendments    map[string]store.Amendment
	documents     map[string]store.Document
	events        map[string]store.Event
	groups        []store.Group
	relationships []store.GroupRelationship
	memberships   map[string][]string
	upcoming      map[string][]store.Event
	paths         map[string]store.Path

	batches []store.CloneBatch
}

func (f *fakeCloneStore) GetAmendment(_ context.Context, id string) (store.Amendment, error) {
	a, ok := f.amendments[id]
	if !ok {
		return store.Amendment{}, sql.ErrNoRows
	}
	return a, nil
}

func (f *fakeCloneStore) GetDocument(_ context.Context, id string) (store.Document, error) {
	d, ok := f.documents[id]
	if !ok {
		return store.Document{}, sql.ErrNoRows
	}
	return d, nil
}

func (f *fakeCloneStore) GetEvent(_ context.Context, id string) (store.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return store.Event{}, sql.ErrNoRows
	}
	return e, nil
}

func (f *fakeCloneStore) ListGroups(context.Context) ([]store.Group, error) {
	return f.groups, nil
}

func (f *fakeCloneStore) ListRelationships(context.Context) ([]store.GroupRelationship, error) {
	return f.relationships, nil
}

func (f *fakeCloneStore) UserGroupIDs(_ context.Context, userID string) ([]string, error) {
	return f.memberships[userID], nil
}

func (f *fakeCloneStore) ListUpcomingEvents(_ context.Context, groupID string, after time.Time) ([]store.Event, error) {
	var out []store.Event
	for _, ev := range f.upcoming[groupID] {
		if ev.StartDate.After(after) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeCloneStore) GetPathByAmendment(_ context.Context, amendmentID string) (store.Path, error) {
	p, ok := f.paths[amendmentID]
	if !ok {
		return store.Path{}, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakeCloneStore) InsertCloneBatch(_ context.Context, batch store.CloneBatch) error {
	f.batches = append(f.batches, batch)
	return nil
}

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// threeHopStore builds a network A -> B -> C linked by active amendment
// rights, with the user in A, the source amendment in A, and events only
// where the test puts them.
func threeHopStore() *fakeCloneStore {
	return &fakeCloneStore{
		amendments: map[string]store.Amendment{
			"amd_src": {
				ID:         "amd_src",
				Title:      "Shorter meetings",
				Code:       "A-17",
				GroupID:    "grp_a",
				DocumentID: "doc_src",
				Supporters: 12,
			},
		},
		documents: map[string]store.Document{
			"doc_src": {
				ID:      "doc_src",
				Title:   "Shorter meetings",
				Content: json.RawMessage(`{"type":"doc"}`),
			},
		},
		events: map[string]store.Event{
			"evt_c": {
				ID:        "evt_c",
				GroupID:   "grp_c",
				Title:     "General assembly",
				StartDate: testNow.Add(20 * 24 * time.Hour),
			},
		},
		groups: []store.Group{
			{ID: "grp_a", Name: "Local A"},
			{ID: "grp_b", Name: "Regional B"},
			{ID: "grp_c", Name: "Federal C"},
		},
		relationships: []store.GroupRelationship{
			{ParentGroupID: "grp_b", ChildGroupID: "grp_a", RightType: store.RightAmendment, Status: "active"},
			{ParentGroupID: "grp_c", ChildGroupID: "grp_b", RightType: store.RightAmendment, Status: "active"},
		},
		memberships: map[string][]string{"usr_1": {"grp_a"}},
		upcoming:    map[string][]store.Event{},
		paths:       map[string]store.Path{},
	}
}

func TestCloneConfirmsOnlyClosestEvent(t *testing.T) {
	fs := threeHopStore()
	// Only the middle hop has an upcoming event, and it is sooner than
	// the selected target event.
	fs.upcoming["grp_b"] = []store.Event{
		{ID: "evt_b", GroupID: "grp_b", Title: "Board meeting", StartDate: testNow.Add(5 * 24 * time.Hour)},
		{ID: "evt_b2", GroupID: "grp_b", Title: "Later meeting", StartDate: testNow.Add(9 * 24 * time.Hour)},
	}

	o := New(fs)
	o.now = func() time.Time { return testNow }

	result, err := o.Clone(context.Background(), Request{
		AmendmentID:   "amd_src",
		UserID:        "usr_1",
		TargetGroupID: "grp_c",
		TargetEventID: "evt_c",
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Segments) != 3 {
		t.Fatalf("segments = %d, want 3 hops A, B, C", len(result.Segments))
	}
	a, b, c := result.Segments[0], result.Segments[1], result.Segments[2]

	if a.EventID != nil {
		t.Fatalf("hop A got event %v, group has none", *a.EventID)
	}
	if a.ForwardingStatus != store.ForwardingOutstanding {
		t.Fatalf("hop A status = %q", a.ForwardingStatus)
	}

	// Hop B's nearest upcoming event is chosen, and because it is the
	// chronologically closest event on the whole route it is the one
	// confirmed segment.
	if b.EventID == nil || *b.EventID != "evt_b" {
		t.Fatalf("hop B event = %v, want nearest upcoming", b.EventID)
	}
	if b.ForwardingStatus != store.ForwardingConfirmed {
		t.Fatalf("hop B status = %q, want confirmed", b.ForwardingStatus)
	}

	// The final hop carries the explicitly selected event but stays
	// outstanding behind B's earlier decision.
	if c.EventID == nil || *c.EventID != "evt_c" {
		t.Fatalf("hop C event = %v, want selected target event", c.EventID)
	}
	if c.ForwardingStatus != store.ForwardingOutstanding {
		t.Fatalf("hop C status = %q, want outstanding", c.ForwardingStatus)
	}

	if len(fs.batches) != 1 {
		t.Fatalf("batches = %d", len(fs.batches))
	}
	batch := fs.batches[0]
	if len(batch.AgendaItems) != 2 || len(batch.Votes) != 2 {
		t.Fatalf("agenda items = %d votes = %d, want one per hop with an event",
			len(batch.AgendaItems), len(batch.Votes))
	}
	for _, item := range batch.AgendaItems {
		if item.AmendmentID != result.Amendment.ID {
			t.Fatalf("agenda item points at %q", item.AmendmentID)
		}
	}
	if batch.Collaborator.UserID != "usr_1" || batch.Collaborator.Status != "admin" {
		t.Fatalf("collaborator = %+v", batch.Collaborator)
	}
	if batch.Collaborator.RoleName != "initiator" {
		t.Fatalf("collaborator role = %q", batch.Collaborator.RoleName)
	}
	if batch.Path.PathLength != 3 {
		t.Fatalf("path length = %d", batch.Path.PathLength)
	}
	for i, seg := range batch.Segments {
		if seg.PathID != batch.Path.ID || seg.Position != i {
			t.Fatalf("segment %d = %+v", i, seg)
		}
	}
}

func TestCloneCopiesDocumentIntoTargetGroup(t *testing.T) {
	fs := threeHopStore()
	o := New(fs)
	o.now = func() time.Time { return testNow }

	result, err := o.Clone(context.Background(), Request{
		AmendmentID:   "amd_src",
		UserID:        "usr_1",
		TargetGroupID: "grp_c",
		TargetEventID: "evt_c",
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Document.ID == "doc_src" || result.Amendment.ID == "amd_src" {
		t.Fatal("clone reused source ids")
	}
	if string(result.Document.Content) != `{"type":"doc"}` {
		t.Fatalf("content = %s", result.Document.Content)
	}
	if result.Document.GroupID == nil || *result.Document.GroupID != "grp_c" {
		t.Fatalf("document group = %v", result.Document.GroupID)
	}
	if result.Amendment.GroupID != "grp_c" || result.Amendment.DocumentID != result.Document.ID {
		t.Fatalf("amendment = %+v", result.Amendment)
	}
	if result.Amendment.Supporters != 12 || result.Amendment.Code != "A-17" {
		t.Fatalf("amendment lost source fields: %+v", result.Amendment)
	}
}

func TestCloneNoPathWritesNothing(t *testing.T) {
	fs := threeHopStore()
	// Break the network: B -> C is only requested, not active.
	fs.relationships[1].Status = "requested"

	o := New(fs)
	o.now = func() time.Time { return testNow }

	_, err := o.Clone(context.Background(), Request{
		AmendmentID:   "amd_src",
		UserID:        "usr_1",
		TargetGroupID: "grp_c",
		TargetEventID: "evt_c",
	})
	if err != ErrNoPath {
		t.Fatalf("err = %v, want ErrNoPath", err)
	}
	if len(fs.batches) != 0 {
		t.Fatalf("batch written despite missing path: %d", len(fs.batches))
	}
}

func TestCloneRejectsForeignTargetEvent(t *testing.T) {
	fs := threeHopStore()
	fs.events["evt_b"] = store.Event{ID: "evt_b", GroupID: "grp_b", StartDate: testNow.Add(time.Hour)}

	o := New(fs)
	o.now = func() time.Time { return testNow }

	_, err := o.Clone(context.Background(), Request{
		AmendmentID:   "amd_src",
		UserID:        "usr_1",
		TargetGroupID: "grp_c",
		TargetEventID: "evt_b",
	})
	if err != ErrEventMismatch {
		t.Fatalf("err = %v, want ErrEventMismatch", err)
	}
	if len(fs.batches) != 0 {
		t.Fatal("batch written despite event mismatch")
	}
}

func TestCloneRejectsSecondForwarding(t *testing.T) {
	fs := threeHopStore()
	fs.paths["amd_src"] = store.Path{ID: "pth_existing", AmendmentID: "amd_src"}

	o := New(fs)
	o.now = func() time.Time { return testNow }

	_, err := o.Clone(context.Background(), Request{
		AmendmentID:   "amd_src",
		UserID:        "usr_1",
		TargetGroupID: "grp_c",
		TargetEventID: "evt_c",
	})
	if err != ErrAlreadyForward {
		t.Fatalf("err = %v, want ErrAlreadyForward", err)
	}
}

func TestCloneUserWithoutGroups(t *testing.T) {
	fs := threeHopStore()
	o := New(fs)
	o.now = func() time.Time { return testNow }

	_, err := o.Clone(context.Background(), Request{
		AmendmentID:   "amd_src",
		UserID:        "usr_nobody",
		TargetGroupID: "grp_c",
		TargetEventID: "evt_c",
	})
	if err != ErrNoMembership {
		t.Fatalf("err = %v, want ErrNoMembership", err)
	}
}

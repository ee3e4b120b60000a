package editor

import (
	"encoding/json"
	"testing"
	"time"

	"concord/api/internal/store"
)

func testDocument() *store.Document {
	return &store.Document{
		ID:        "doc_1",
		Title:     "Draft",
		Content:   json.RawMessage(`{"type":"doc"}`),
		UpdatedAt: time.Unix(1700000000, 0),
	}
}

func TestAdaptAmendmentMergesCollaborators(t *testing.T) {
	src := AmendmentSource{
		Amendment: &store.Amendment{ID: "amd_1", GroupID: "grp_1", Status: "draft"},
		Document:  testDocument(),
		Group:     &store.Group{ID: "grp_1", Name: "Assembly"},
		Owner:     &store.User{ID: "usr_owner", DisplayName: "Owner"},
		AmendmentCollaborators: []store.AmendmentCollaborator{
			{UserID: "usr_a", UserName: "Ada", RoleName: "rapporteur", Status: "collaborator"},
			{UserID: "usr_b", UserName: "Ben", Status: "viewer"},
		},
		DocumentCollaborators: []store.DocumentCollaborator{
			{UserID: "usr_a", UserName: "Ada", CanEdit: true},
			{UserID: "usr_c", UserName: "Cam", CanEdit: true},
		},
	}

	entity := Adapt(src)
	if entity == nil {
		t.Fatal("Adapt returned nil for a complete amendment source")
	}
	if entity.Kind != KindAmendment {
		t.Fatalf("kind = %q", entity.Kind)
	}
	// The content-holding document is the entity, not the amendment row.
	if entity.ID != "doc_1" {
		t.Fatalf("id = %q, want content document id", entity.ID)
	}
	if entity.EditingMode != ModeSuggest {
		t.Fatalf("mode = %q, want suggest default for amendments", entity.EditingMode)
	}

	if len(entity.Collaborators) != 3 {
		t.Fatalf("collaborators = %d, want amendment and document lists merged without duplicates", len(entity.Collaborators))
	}
	// usr_a appears in both lists; the amendment-side entry carries the
	// role and must win.
	first := entity.Collaborators[0]
	if first.User.ID != "usr_a" || first.RoleName != "rapporteur" || first.Status != StatusCollaborator {
		t.Fatalf("merged collaborator = %+v", first)
	}
	for _, c := range entity.Collaborators {
		if c.User.ID == "usr_c" && !c.CanEdit {
			t.Fatalf("document collaborator lost edit access: %+v", c)
		}
	}
}

func TestAdaptAmendmentNilParts(t *testing.T) {
	if got := Adapt(AmendmentSource{Document: testDocument()}); got != nil {
		t.Fatalf("Adapt without amendment = %+v, want nil", got)
	}
	if got := Adapt(AmendmentSource{Amendment: &store.Amendment{ID: "amd_1"}}); got != nil {
		t.Fatalf("Adapt without document = %+v, want nil", got)
	}
}

func TestAdaptBlogPicksOwner(t *testing.T) {
	src := BlogSource{
		Blog: &store.Blog{
			ID:        "blg_1",
			Title:     "Announcements",
			Content:   json.RawMessage(`{"type":"doc"}`),
			UpdatedAt: time.Unix(1700000000, 0),
		},
		Bloggers: []store.Blogger{
			{UserID: "usr_w", UserName: "Wren", Status: "collaborator"},
			{UserID: "usr_o", UserName: "Omar", Status: "owner"},
		},
	}

	entity := Adapt(src)
	if entity == nil {
		t.Fatal("Adapt returned nil")
	}
	if entity.Owner == nil || entity.Owner.ID != "usr_o" {
		t.Fatalf("owner = %+v, want the blogger with owner status", entity.Owner)
	}
	if entity.EditingMode != ModeEdit {
		t.Fatalf("mode = %q, want edit default", entity.EditingMode)
	}
	if len(entity.Collaborators) != 2 {
		t.Fatalf("collaborators = %d", len(entity.Collaborators))
	}
}

func TestAdaptDocumentAndGroupDocument(t *testing.T) {
	doc := testDocument()
	owner := &store.User{ID: "usr_1", DisplayName: "Nia"}

	plain := Adapt(DocumentSource{Document: doc, Owner: owner})
	if plain == nil || plain.Kind != KindDocument {
		t.Fatalf("document entity = %+v", plain)
	}
	if plain.Metadata.Group != nil {
		t.Fatalf("plain document carries group metadata: %+v", plain.Metadata.Group)
	}

	grouped := Adapt(GroupDocumentSource{
		Document: doc,
		Group:    &store.Group{ID: "grp_1", Name: "Assembly"},
	})
	if grouped == nil || grouped.Kind != KindGroupDocument {
		t.Fatalf("group document entity = %+v", grouped)
	}
	if grouped.Metadata.Group == nil || grouped.Metadata.Group.GroupID != "grp_1" {
		t.Fatalf("group metadata = %+v", grouped.Metadata.Group)
	}

	if got := Adapt(GroupDocumentSource{Document: doc}); got != nil {
		t.Fatalf("group document without group = %+v, want nil", got)
	}
}

func TestDecodeDiscussionsMalformed(t *testing.T) {
	if got := DecodeDiscussions(json.RawMessage(`{not json`)); len(got) != 0 {
		t.Fatalf("malformed payload decoded to %v, want empty list", got)
	}
	if got := DecodeDiscussions(nil); len(got) != 0 {
		t.Fatalf("nil payload decoded to %v", got)
	}
	payload := json.RawMessage(`[{"id":"d1","status":"open"}]`)
	got := DecodeDiscussions(payload)
	if len(got) != 1 || got[0].ID != "d1" {
		t.Fatalf("decoded = %v", got)
	}
}

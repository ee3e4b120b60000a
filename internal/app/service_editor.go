package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"concord/api/internal/archive"
	"concord/api/internal/editor"
	"concord/api/internal/rbac"
	"concord/api/internal/store"
	"concord/api/internal/util"
	"concord/api/internal/version"
)

// editorHandle tracks one open editing session. refID is the entity's
// natural id (the amendment id for amendments), while the session works on
// the content holder's id.
type editorHandle struct {
	session *editor.Session
	kind    editor.Kind
	refID   string
	userID  string
	cancel  context.CancelFunc
}

func parseKind(raw string) (editor.Kind, bool) {
	switch editor.Kind(raw) {
	case editor.KindAmendment, editor.KindBlog, editor.KindDocument, editor.KindGroupDocument:
		return editor.Kind(raw), true
	default:
		return "", false
	}
}

// storePersister is the write-through side of editor sessions. Blogs keep
// their own rows; every other kind persists against the documents table.
type storePersister struct {
	store dataStore
}

func (p storePersister) SaveContent(ctx context.Context, kind editor.Kind, entityID string, content json.RawMessage, at time.Time) error {
	if kind == editor.KindBlog {
		return p.store.UpdateBlogContent(ctx, entityID, content, at)
	}
	return p.store.UpdateDocumentContent(ctx, entityID, content, at)
}

func (p storePersister) SaveTitle(ctx context.Context, kind editor.Kind, entityID string, title string, at time.Time) error {
	if kind == editor.KindBlog {
		return p.store.UpdateBlogTitle(ctx, entityID, title, at)
	}
	return p.store.UpdateDocumentTitle(ctx, entityID, title, at)
}

func (p storePersister) SaveDiscussions(ctx context.Context, kind editor.Kind, entityID string, discussions []editor.Discussion, at time.Time) error {
	raw, err := json.Marshal(discussions)
	if err != nil {
		return fmt.Errorf("encode discussions: %w", err)
	}
	if kind == editor.KindBlog {
		return p.store.UpdateBlogDiscussions(ctx, entityID, raw, at)
	}
	return p.store.UpdateDocumentDiscussions(ctx, entityID, raw, at)
}

// loadEntity assembles the store rows for one editable entity and projects
// them onto the unified shape.
func (s *Service) loadEntity(ctx context.Context, kind editor.Kind, refID string) (*editor.Entity, error) {
	switch kind {
	case editor.KindAmendment:
		amendment, err := s.store.GetAmendment(ctx, refID)
		if err != nil {
			return nil, err
		}
		document, err := s.store.GetDocument(ctx, amendment.DocumentID)
		if err != nil {
			return nil, err
		}
		group, err := s.store.GetGroup(ctx, amendment.GroupID)
		if err != nil && !store.IsNotFound(err) {
			return nil, err
		}
		var groupRef *store.Group
		if err == nil {
			groupRef = &group
		}
		docCollabs, err := s.store.ListDocumentCollaborators(ctx, document.ID)
		if err != nil {
			return nil, err
		}
		amdCollabs, err := s.store.ListAmendmentCollaborators(ctx, amendment.ID)
		if err != nil {
			return nil, err
		}
		return editor.Adapt(editor.AmendmentSource{
			Amendment:              &amendment,
			Document:               &document,
			Group:                  groupRef,
			Owner:                  s.documentOwner(ctx, document),
			DocumentCollaborators:  docCollabs,
			AmendmentCollaborators: amdCollabs,
		}), nil

	case editor.KindBlog:
		blog, err := s.store.GetBlog(ctx, refID)
		if err != nil {
			return nil, err
		}
		bloggers, err := s.store.ListBloggers(ctx, blog.ID)
		if err != nil {
			return nil, err
		}
		return editor.Adapt(editor.BlogSource{Blog: &blog, Bloggers: bloggers}), nil

	case editor.KindDocument, editor.KindGroupDocument:
		document, err := s.store.GetDocument(ctx, refID)
		if err != nil {
			return nil, err
		}
		collabs, err := s.store.ListDocumentCollaborators(ctx, document.ID)
		if err != nil {
			return nil, err
		}
		if document.GroupID != nil {
			group, err := s.store.GetGroup(ctx, *document.GroupID)
			if err != nil && !store.IsNotFound(err) {
				return nil, err
			}
			var groupRef *store.Group
			if err == nil {
				groupRef = &group
			}
			return editor.Adapt(editor.GroupDocumentSource{
				Document:      &document,
				Group:         groupRef,
				Collaborators: collabs,
			}), nil
		}
		return editor.Adapt(editor.DocumentSource{
			Document:      &document,
			Owner:         s.documentOwner(ctx, document),
			Collaborators: collabs,
		}), nil
	}
	return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown entity kind", nil)
}

func (s *Service) documentOwner(ctx context.Context, document store.Document) *store.User {
	if document.OwnerID == nil {
		return nil
	}
	owner, err := s.store.GetUserByID(ctx, *document.OwnerID)
	if err != nil {
		return nil
	}
	return &owner
}

// collaboratorStatus resolves the caller's standing on an entity, or ""
// when they are neither owner nor collaborator.
func collaboratorStatus(entity *editor.Entity, userID string) rbac.Status {
	if entity.Owner != nil && entity.Owner.ID == userID {
		return rbac.StatusOwner
	}
	for _, c := range entity.Collaborators {
		if c.User.ID == userID {
			return rbac.Normalize(c.Status)
		}
	}
	return ""
}

// OpenEditor starts an editing session over one entity. Private entities
// require the caller to be owner or collaborator; public ones open for
// anyone, read-only unless their standing allows more.
func (s *Service) OpenEditor(ctx context.Context, sess Session, kindRaw, refID string) (map[string]any, error) {
	kind, ok := parseKind(kindRaw)
	if !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown entity kind", map[string]any{"kind": kindRaw})
	}
	entity, err := s.loadEntity(ctx, kind, refID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "entity not found", nil)
	}

	status := collaboratorStatus(entity, sess.UserID)
	if status == "" {
		if !entity.IsPublic {
			return nil, domainError(http.StatusForbidden, "FORBIDDEN", "not a collaborator", nil)
		}
		status = rbac.StatusViewer
	}
	effectiveMode := entity.EditingMode
	if !rbac.CanUseMode(status, effectiveMode) {
		effectiveMode = "view"
	}

	sessionID := util.NewID("ses")
	sessionCtx, cancel := context.WithCancel(context.Background())
	es := editor.NewSession(sessionCtx, sessionID, kind, storePersister{store: s.store}, nil)
	es.ApplyRemote(entity)

	s.editorMu.Lock()
	s.editors[sessionID] = &editorHandle{
		session: es,
		kind:    kind,
		refID:   refID,
		userID:  sess.UserID,
		cancel:  cancel,
	}
	s.editorMu.Unlock()

	return map[string]any{
		"sessionId": sessionID,
		"mode":      effectiveMode,
		"status":    string(status),
		"entity":    es.Entity(),
	}, nil
}

func (s *Service) editorSession(sessionID, userID string) (*editorHandle, error) {
	s.editorMu.Lock()
	handle, ok := s.editors[sessionID]
	s.editorMu.Unlock()
	if !ok {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "editing session not found", nil)
	}
	if handle.userID != userID {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "not your editing session", nil)
	}
	return handle, nil
}

// PollEditor reloads the entity from the store, feeds it through the
// session's reconciliation guard and returns the resulting local state.
func (s *Service) PollEditor(ctx context.Context, sess Session, sessionID string) (map[string]any, error) {
	handle, err := s.editorSession(sessionID, sess.UserID)
	if err != nil {
		return nil, err
	}
	remote, err := s.loadEntity(ctx, handle.kind, handle.refID)
	if err != nil && !store.IsNotFound(err) {
		return nil, err
	}
	if remote != nil {
		handle.session.ApplyRemote(remote)
	}
	return map[string]any{"entity": handle.session.Entity()}, nil
}

func (s *Service) EditContent(sess Session, sessionID string, content json.RawMessage) error {
	handle, err := s.editorSession(sessionID, sess.UserID)
	if err != nil {
		return err
	}
	return mapEditorError(handle.session.EditContent(content))
}

func (s *Service) EditTitle(sess Session, sessionID, title string) error {
	handle, err := s.editorSession(sessionID, sess.UserID)
	if err != nil {
		return err
	}
	return mapEditorError(handle.session.EditTitle(title))
}

func (s *Service) EditDiscussions(sess Session, sessionID string, discussions []editor.Discussion) error {
	handle, err := s.editorSession(sessionID, sess.UserID)
	if err != nil {
		return err
	}
	return mapEditorError(handle.session.UpdateDiscussions(discussions))
}

// RestoreVersion loads a snapshot and pushes it into the open session,
// bypassing the save throttle.
func (s *Service) RestoreVersion(ctx context.Context, sess Session, sessionID, versionID string) (map[string]any, error) {
	handle, err := s.editorSession(sessionID, sess.UserID)
	if err != nil {
		return nil, err
	}
	v, content, err := s.versions.Restore(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if err := mapEditorError(handle.session.Restore(content.Title, content.Doc)); err != nil {
		return nil, err
	}
	return map[string]any{
		"version": versionPayload(v),
		"entity":  handle.session.Entity(),
	}, nil
}

func (s *Service) CloseEditor(sess Session, sessionID string) error {
	handle, err := s.editorSession(sessionID, sess.UserID)
	if err != nil {
		return err
	}
	handle.session.Close()
	handle.cancel()
	s.editorMu.Lock()
	delete(s.editors, sessionID)
	s.editorMu.Unlock()
	return nil
}

func mapEditorError(err error) error {
	if errors.Is(err, editor.ErrSessionClosed) {
		return domainError(http.StatusGone, "SESSION_CLOSED", "editing session is closed", nil)
	}
	return err
}

// --- suggestions ---

type SuggestionInput struct {
	Description    string `json:"description"`
	ProposedChange string `json:"proposedChange"`
	Justification  string `json:"justification"`
}

// AddSuggestion appends a suggestion thread to a document's discussions.
// The pre-suggestion content is snapshotted first so the state before the
// proposal stays recoverable.
func (s *Service) AddSuggestion(ctx context.Context, sess Session, documentID string, input SuggestionInput) (map[string]any, error) {
	if strings.TrimSpace(input.Description) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "description is required", nil)
	}
	document, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if _, err := s.versions.Snapshot(ctx, "document", document.ID, "", store.VersionSuggestionAdded, sess.UserID, archive.Content{
		Title:       document.Title,
		Doc:         document.Content,
		Discussions: document.Discussions,
	}); err != nil {
		return nil, err
	}

	discussion := editor.Discussion{
		ID:             util.NewID("dsc"),
		UserID:         sess.UserID,
		Description:    strings.TrimSpace(input.Description),
		ProposedChange: input.ProposedChange,
		Justification:  input.Justification,
		CreatedAt:      time.Now().UnixMilli(),
		Status:         "pending",
	}
	discussions := append(editor.DecodeDiscussions(document.Discussions), discussion)
	raw, err := json.Marshal(discussions)
	if err != nil {
		return nil, fmt.Errorf("encode discussions: %w", err)
	}
	if err := s.store.UpdateDocumentDiscussions(ctx, document.ID, raw, time.Now()); err != nil {
		return nil, err
	}
	return map[string]any{"discussion": discussion}, nil
}

// ResolveSuggestion accepts or rejects a pending suggestion. The decision
// is recorded as a change request row and the document state at decision
// time is snapshotted.
func (s *Service) ResolveSuggestion(ctx context.Context, sess Session, documentID, discussionID, outcome string) (map[string]any, error) {
	if outcome != "accepted" && outcome != "rejected" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "outcome must be accepted or rejected", nil)
	}
	document, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	discussions := editor.DecodeDiscussions(document.Discussions)
	idx := -1
	for i := range discussions {
		if discussions[i].ID == discussionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "suggestion not found", nil)
	}
	if discussions[idx].IsResolved {
		return nil, domainError(http.StatusConflict, "ALREADY_RESOLVED", "suggestion already resolved", nil)
	}

	creationType := store.VersionSuggestionAccepted
	if outcome == "rejected" {
		creationType = store.VersionSuggestionDeclined
	}
	if _, err := s.versions.Snapshot(ctx, "document", document.ID, "", creationType, sess.UserID, archive.Content{
		Title:       document.Title,
		Doc:         document.Content,
		Discussions: document.Discussions,
	}); err != nil {
		return nil, err
	}

	crID := util.NewID("chr")
	if err := s.store.InsertChangeRequest(ctx, store.ChangeRequest{
		ID:             crID,
		DocumentID:     document.ID,
		DiscussionID:   discussionID,
		UserID:         discussions[idx].UserID,
		Description:    discussions[idx].Description,
		ProposedChange: discussions[idx].ProposedChange,
		Justification:  discussions[idx].Justification,
		Status:         outcome,
	}); err != nil {
		return nil, err
	}

	discussions[idx].Status = outcome
	discussions[idx].IsResolved = true
	discussions[idx].CrID = crID
	raw, err := json.Marshal(discussions)
	if err != nil {
		return nil, fmt.Errorf("encode discussions: %w", err)
	}
	if err := s.store.UpdateDocumentDiscussions(ctx, document.ID, raw, time.Now()); err != nil {
		return nil, err
	}
	return map[string]any{"discussion": discussions[idx]}, nil
}

// --- versions ---

func (s *Service) SnapshotVersion(ctx context.Context, sess Session, ownerKind, ownerID, title string) (map[string]any, error) {
	content, err := s.ownerContent(ctx, ownerKind, ownerID)
	if err != nil {
		return nil, err
	}
	v, err := s.versions.Snapshot(ctx, ownerKind, ownerID, title, store.VersionManual, sess.UserID, content)
	if err != nil {
		return nil, err
	}
	return map[string]any{"version": versionPayload(v)}, nil
}

func (s *Service) ListVersions(ctx context.Context, ownerKind, ownerID string) (map[string]any, error) {
	versions, err := s.versions.List(ctx, ownerKind, ownerID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(versions))
	for _, v := range versions {
		items = append(items, versionPayload(v))
	}
	return map[string]any{"versions": items}, nil
}

// VersionContent returns a snapshot's full content without touching the
// live entity.
func (s *Service) VersionContent(ctx context.Context, versionID string) (map[string]any, error) {
	v, content, err := s.versions.Restore(ctx, versionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"version": versionPayload(v),
		"content": map[string]any{
			"title":       content.Title,
			"doc":         content.Doc,
			"discussions": content.Discussions,
		},
	}, nil
}

func (s *Service) RenameVersion(ctx context.Context, versionID, title string) error {
	err := s.versions.Rename(ctx, versionID, title)
	if errors.Is(err, version.ErrEmptyTitle) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	return err
}

func (s *Service) DeleteVersion(ctx context.Context, versionID string) error {
	return s.versions.Delete(ctx, versionID)
}

func (s *Service) ownerContent(ctx context.Context, ownerKind, ownerID string) (archive.Content, error) {
	switch ownerKind {
	case "document":
		d, err := s.store.GetDocument(ctx, ownerID)
		if err != nil {
			return archive.Content{}, err
		}
		return archive.Content{Title: d.Title, Doc: d.Content, Discussions: d.Discussions}, nil
	case "blog":
		b, err := s.store.GetBlog(ctx, ownerID)
		if err != nil {
			return archive.Content{}, err
		}
		return archive.Content{Title: b.Title, Doc: b.Content, Discussions: b.Discussions}, nil
	}
	return archive.Content{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "ownerKind must be document or blog", nil)
}

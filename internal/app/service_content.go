package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"concord/api/internal/archive"
	"concord/api/internal/clone"
	"concord/api/internal/editor"
	"concord/api/internal/export"
	"concord/api/internal/presence"
	"concord/api/internal/rbac"
	"concord/api/internal/search"
	"concord/api/internal/store"
	"concord/api/internal/util"
)

var allowedAttachmentOwners = map[string]struct{}{
	"document":  {},
	"blog":      {},
	"amendment": {},
}

// --- amendments ---

type CreateAmendmentInput struct {
	Title    string          `json:"title"`
	Code     string          `json:"code"`
	GroupID  string          `json:"groupId"`
	IsPublic bool            `json:"isPublic"`
	Content  json.RawMessage `json:"content"`
}

// CreateAmendment creates the amendment together with its content
// document, the author's owner collaborator row and the baseline archive
// commit.
func (s *Service) CreateAmendment(ctx context.Context, sess Session, input CreateAmendmentInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if input.GroupID == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "groupId is required", nil)
	}
	memberGroups, err := s.store.UserGroupIDs(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !containsString(memberGroups, input.GroupID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "not a member of the group", nil)
	}

	now := time.Now()
	document := store.Document{
		ID:          util.NewID("doc"),
		Title:       title,
		Content:     input.Content,
		EditingMode: editor.ModeSuggest,
		IsPublic:    input.IsPublic,
		OwnerID:     &sess.UserID,
		GroupID:     &input.GroupID,
		UpdatedAt:   now,
	}
	if err := s.store.InsertDocument(ctx, document); err != nil {
		return nil, err
	}

	amendment := store.Amendment{
		ID:         util.NewID("amd"),
		Title:      title,
		Code:       strings.TrimSpace(input.Code),
		Status:     "draft",
		GroupID:    input.GroupID,
		DocumentID: document.ID,
		IsPublic:   input.IsPublic,
		CreatedBy:  sess.UserID,
	}
	if err := s.store.InsertAmendment(ctx, amendment); err != nil {
		return nil, err
	}
	if err := s.store.InsertAmendmentCollaborator(ctx, store.AmendmentCollaborator{
		ID:          util.NewID("acl"),
		AmendmentID: amendment.ID,
		UserID:      sess.UserID,
		RoleName:    "author",
		Status:      editor.StatusOwner,
	}); err != nil {
		return nil, err
	}

	if err := s.archive.EnsureRepo(document.ID, archive.Content{Title: title, Doc: input.Content}, sess.UserName); err != nil {
		return nil, fmt.Errorf("init amendment archive: %w", err)
	}

	if s.search != nil {
		s.search.IndexAmendment(search.AmendmentRecord{
			ID:       amendment.ID,
			Title:    amendment.Title,
			Code:     amendment.Code,
			Status:   amendment.Status,
			GroupID:  amendment.GroupID,
			IsPublic: amendment.IsPublic,
		})
	}

	return map[string]any{"amendment": amendmentPayload(amendment), "documentId": document.ID}, nil
}

// AmendmentDetail returns the amendment row plus its unified entity
// projection.
func (s *Service) AmendmentDetail(ctx context.Context, amendmentID string) (map[string]any, error) {
	amendment, err := s.store.GetAmendment(ctx, amendmentID)
	if err != nil {
		return nil, err
	}
	entity, err := s.loadEntity(ctx, editor.KindAmendment, amendmentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"amendment": amendmentPayload(amendment), "entity": entity}, nil
}

func (s *Service) GroupAmendments(ctx context.Context, groupID string) (map[string]any, error) {
	amendments, err := s.store.ListAmendmentsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(amendments))
	for _, a := range amendments {
		items = append(items, amendmentPayload(a))
	}
	return map[string]any{"amendments": items}, nil
}

// ForwardAmendment clones an amendment to a target group along the
// shortest amendment-right route.
func (s *Service) ForwardAmendment(ctx context.Context, sess Session, amendmentID, targetGroupID, targetEventID string) (map[string]any, error) {
	result, err := s.cloner.Clone(ctx, clone.Request{
		AmendmentID:   amendmentID,
		UserID:        sess.UserID,
		TargetGroupID: targetGroupID,
		TargetEventID: targetEventID,
	})
	if err != nil {
		return nil, mapCloneError(err)
	}

	if err := s.archive.EnsureRepo(result.Document.ID, archive.Content{
		Title: result.Document.Title,
		Doc:   result.Document.Content,
	}, sess.UserName); err != nil {
		logServiceError("init clone archive", err)
	}

	if s.search != nil {
		s.search.IndexAmendment(search.AmendmentRecord{
			ID:       result.Amendment.ID,
			Title:    result.Amendment.Title,
			Code:     result.Amendment.Code,
			Status:   result.Amendment.Status,
			GroupID:  result.Amendment.GroupID,
			IsPublic: result.Amendment.IsPublic,
		})
	}

	s.notifyForwarding(ctx, sess, result)

	segments := make([]map[string]any, 0, len(result.Segments))
	for _, seg := range result.Segments {
		segments = append(segments, segmentPayload(seg))
	}
	return map[string]any{
		"amendment": amendmentPayload(result.Amendment),
		"path": map[string]any{
			"id":     result.Path.ID,
			"length": result.Path.PathLength,
		},
		"segments": segments,
	}, nil
}

func (s *Service) notifyForwarding(ctx context.Context, sess Session, result clone.Result) {
	if s.notify == nil || !s.notify.IsConfigured() || len(result.Segments) == 0 {
		return
	}
	user, err := s.store.GetUserByID(ctx, sess.UserID)
	if err != nil || user.Email == "" {
		return
	}
	last := result.Segments[len(result.Segments)-1]
	amendmentURL := "/amendments/" + result.Amendment.ID
	go func() {
		logServiceError("send forwarding email", s.notify.SendForwardingUpdate(
			user.Email, user.DisplayName, result.Amendment.Title, last.GroupName, last.EventTitle, amendmentURL,
		))
	}()
}

func mapCloneError(err error) error {
	switch {
	case errors.Is(err, clone.ErrNoPath):
		return domainError(http.StatusUnprocessableEntity, "NO_ROUTE", "no route to target group", nil)
	case errors.Is(err, clone.ErrNoMembership):
		return domainError(http.StatusForbidden, "NO_MEMBERSHIP", "user belongs to no group", nil)
	case errors.Is(err, clone.ErrEventMismatch):
		return domainError(http.StatusUnprocessableEntity, "EVENT_MISMATCH", "selected event does not belong to the target group", nil)
	case errors.Is(err, clone.ErrAlreadyForward):
		return domainError(http.StatusConflict, "ALREADY_FORWARDED", "amendment already has a forwarding path", nil)
	}
	return err
}

// AmendmentRoute returns the recorded forwarding path of an amendment.
func (s *Service) AmendmentRoute(ctx context.Context, amendmentID string) (map[string]any, error) {
	path, err := s.store.GetPathByAmendment(ctx, amendmentID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "amendment has no forwarding path", nil)
		}
		return nil, err
	}
	segs, err := s.store.ListPathSegments(ctx, path.ID)
	if err != nil {
		return nil, err
	}
	segments := make([]map[string]any, 0, len(segs))
	for _, seg := range segs {
		segments = append(segments, segmentPayload(seg))
	}
	return map[string]any{
		"path": map[string]any{
			"id":          path.ID,
			"amendmentId": path.AmendmentID,
			"length":      path.PathLength,
		},
		"segments": segments,
	}, nil
}

// --- collaborators ---

// InviteCollaborator adds a user to a document and mails them when a
// notifier is configured. Only owners and admins may invite.
func (s *Service) InviteCollaborator(ctx context.Context, sess Session, documentID, userID string, canEdit bool) (map[string]any, error) {
	entity, err := s.loadEntity(ctx, editor.KindDocument, documentID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "document not found", nil)
	}
	status := collaboratorStatus(entity, sess.UserID)
	if status == "" || !rbac.Can(status, rbac.ActionManage) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "only owners and admins may invite", nil)
	}

	invitee, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	item := store.DocumentCollaborator{
		ID:         util.NewID("dcl"),
		DocumentID: documentID,
		UserID:     invitee.ID,
		CanEdit:    canEdit,
	}
	if err := s.store.InsertDocumentCollaborator(ctx, item); err != nil {
		return nil, err
	}

	if s.notify != nil && s.notify.IsConfigured() && invitee.Email != "" {
		entityURL := "/documents/" + documentID
		go func() {
			logServiceError("send invite email", s.notify.SendCollaboratorInvite(
				invitee.Email, invitee.DisplayName, sess.UserName, entity.Title, entityURL,
			))
		}()
	}

	return map[string]any{
		"collaborator": map[string]any{
			"id":         item.ID,
			"documentId": item.DocumentID,
			"userId":     item.UserID,
			"canEdit":    item.CanEdit,
		},
	}, nil
}

// --- search ---

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func (s *Service) ReindexSearch(ctx context.Context) {
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
}

// --- export ---

func (s *Service) ExportAmendment(ctx context.Context, req export.Request) (*export.Result, error) {
	if req.Format != export.FormatPDF && req.Format != export.FormatDOCX {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be pdf or docx", nil)
	}
	result, err := s.exporter.Export(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrNotPublic):
			return nil, domainError(http.StatusForbidden, "FORBIDDEN", "amendment is not public", nil)
		case errors.Is(err, export.ErrContentUnavailable):
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "amendment content unavailable", nil)
		case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "export backend unavailable", nil)
		}
		return nil, err
	}
	return result, nil
}

// --- attachments ---

func (s *Service) UploadAttachment(ctx context.Context, sess Session, ownerKind, ownerID, filename, contentType string, size int64, body io.Reader) (map[string]any, error) {
	if s.blob == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ATTACHMENTS_DISABLED", "attachment storage not configured", nil)
	}
	if _, ok := allowedAttachmentOwners[ownerKind]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown attachment owner kind", nil)
	}
	if filename == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "filename is required", nil)
	}

	id := util.NewID("att")
	objectKey := ownerKind + "/" + ownerID + "/" + id + "/" + filename
	if err := s.blob.Put(ctx, objectKey, body, size, contentType); err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}

	item := store.Attachment{
		ID:          id,
		OwnerKind:   ownerKind,
		OwnerID:     ownerID,
		ObjectKey:   objectKey,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		CreatedBy:   sess.UserID,
	}
	if err := s.store.InsertAttachment(ctx, item); err != nil {
		return nil, err
	}
	return map[string]any{"attachment": attachmentPayload(item, "")}, nil
}

func (s *Service) Attachments(ctx context.Context, ownerKind, ownerID string) (map[string]any, error) {
	if s.blob == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ATTACHMENTS_DISABLED", "attachment storage not configured", nil)
	}
	rows, err := s.store.ListAttachments(ctx, ownerKind, ownerID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		url, err := s.blob.PresignedURL(ctx, row.ObjectKey, row.Filename)
		if err != nil {
			logServiceError("presign attachment", err)
			url = ""
		}
		items = append(items, attachmentPayload(row, url))
	}
	return map[string]any{"attachments": items}, nil
}

func attachmentPayload(item store.Attachment, url string) map[string]any {
	payload := map[string]any{
		"id":          item.ID,
		"ownerKind":   item.OwnerKind,
		"ownerId":     item.OwnerID,
		"filename":    item.Filename,
		"contentType": item.ContentType,
		"size":        item.Size,
	}
	if url != "" {
		payload["url"] = url
	}
	return payload
}

// --- presence ---

func (s *Service) JoinRoom(ctx context.Context, sess Session, room string) (map[string]any, error) {
	if s.presence == nil {
		return nil, domainError(http.StatusServiceUnavailable, "PRESENCE_DISABLED", "presence not configured", nil)
	}
	member := presence.Member{UserID: sess.UserID, Name: sess.UserName, Avatar: sess.Avatar}
	if err := s.presence.Join(ctx, room, member); err != nil {
		return nil, err
	}
	peers, err := s.presence.Peers(ctx, room, sess.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"peers": peers, "color": presence.ColorForUser(sess.UserID)}, nil
}

// HeartbeatRoom refreshes the member's TTL; ok=false asks the client to
// rejoin.
func (s *Service) HeartbeatRoom(ctx context.Context, sess Session, room string) (map[string]any, error) {
	if s.presence == nil {
		return nil, domainError(http.StatusServiceUnavailable, "PRESENCE_DISABLED", "presence not configured", nil)
	}
	alive, err := s.presence.Heartbeat(ctx, room, sess.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"ok": alive}, nil
}

func (s *Service) LeaveRoom(ctx context.Context, sess Session, room string) error {
	if s.presence == nil {
		return domainError(http.StatusServiceUnavailable, "PRESENCE_DISABLED", "presence not configured", nil)
	}
	return s.presence.Leave(ctx, room, sess.UserID)
}

func (s *Service) RoomPeers(ctx context.Context, sess Session, room string) (map[string]any, error) {
	if s.presence == nil {
		return nil, domainError(http.StatusServiceUnavailable, "PRESENCE_DISABLED", "presence not configured", nil)
	}
	peers, err := s.presence.Peers(ctx, room, sess.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"peers": peers}, nil
}

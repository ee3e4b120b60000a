package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"concord/api/internal/auth"
	"concord/api/internal/authpw"
	"concord/api/internal/editor"
	"concord/api/internal/export"
	"concord/api/internal/search"
	"concord/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

// knownResources are the top-level /api/<resource> segments the dispatcher
// routes. Anything else is 404 before session checks.
var knownResources = map[string]struct{}{
	"auth":          {},
	"session":       {},
	"search":        {},
	"groups":        {},
	"relationships": {},
	"forwarding":    {},
	"amendments":    {},
	"versions":      {},
	"editor":        {},
	"documents":     {},
	"events":        {},
	"presence":      {},
	"attachments":   {},
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes, no session required.
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleAuthSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleAuthSignIn(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(session))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userId":        session.UserID,
			"userName":      session.UserName,
			"avatar":        session.Avatar,
		})
		return
	}

	// Search is open to anonymous callers; they only see public entities.
	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	parts := splitPath(r.URL.Path)

	// Export is open to anonymous callers for public amendments.
	if r.Method == http.MethodGet && len(parts) == 4 && parts[0] == "api" && parts[1] == "amendments" && parts[3] == "export" {
		s.handleExport(w, r, parts[2])
		return
	}

	// Unknown resources 404 without leaking whether a session is needed.
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if _, ok := knownResources[parts[1]]; !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.URL.Path == "/api/groups" {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListGroups(r.Context())
			s.respond(w, payload, err)
		case http.MethodPost:
			var body struct {
				Name string `json:"name"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateGroup(r.Context(), body.Name, session.UserID)
			s.respond(w, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if r.URL.Path == "/api/relationships" && r.Method == http.MethodPost {
		var body struct {
			ParentGroupID    string `json:"parentGroupId"`
			ChildGroupID     string `json:"childGroupId"`
			RightType        string `json:"rightType"`
			InitiatorGroupID string `json:"initiatorGroupId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.RequestRelationship(r.Context(), body.ParentGroupID, body.ChildGroupID, body.RightType, body.InitiatorGroupID, session.UserID)
		s.respond(w, payload, err)
		return
	}

	if r.URL.Path == "/api/forwarding/preview" && r.Method == http.MethodGet {
		targetGroupID := strings.TrimSpace(r.URL.Query().Get("targetGroupId"))
		if targetGroupID == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "targetGroupId is required", nil)
			return
		}
		payload, err := s.service.ForwardingPreview(r.Context(), session.UserID, targetGroupID)
		s.respond(w, payload, err)
		return
	}

	if r.URL.Path == "/api/amendments" && r.Method == http.MethodPost {
		var body CreateAmendmentInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateAmendment(r.Context(), session, body)
		s.respond(w, payload, err)
		return
	}

	if r.URL.Path == "/api/versions" {
		switch r.Method {
		case http.MethodPost:
			var body struct {
				OwnerKind string `json:"ownerKind"`
				OwnerID   string `json:"ownerId"`
				Title     string `json:"title"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.SnapshotVersion(r.Context(), session, body.OwnerKind, body.OwnerID, body.Title)
			s.respond(w, payload, err)
		case http.MethodGet:
			ownerKind := strings.TrimSpace(r.URL.Query().Get("ownerKind"))
			ownerID := strings.TrimSpace(r.URL.Query().Get("ownerId"))
			if ownerKind == "" || ownerID == "" {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "ownerKind and ownerId are required", nil)
				return
			}
			payload, err := s.service.ListVersions(r.Context(), ownerKind, ownerID)
			s.respond(w, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if r.URL.Path == "/api/editor/sessions" && r.Method == http.MethodPost {
		var body struct {
			Kind string `json:"kind"`
			ID   string `json:"id"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.OpenEditor(r.Context(), session, body.Kind, body.ID)
		s.respond(w, payload, err)
		return
	}

	if r.URL.Path == "/api/search/reindex" && r.Method == http.MethodPost {
		s.service.ReindexSearch(r.Context())
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
		return
	}

	if len(parts) >= 3 && parts[0] == "api" {
		switch parts[1] {
		case "groups":
			if s.routeGroups(w, r, session, parts[2:]) {
				return
			}
		case "relationships":
			if len(parts) == 3 && r.Method == http.MethodPatch {
				var body struct {
					Status string `json:"status"`
				}
				if err := decodeBody(r, &body); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				if err := s.service.RespondRelationship(r.Context(), parts[2], body.Status, session.UserID); err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true})
				return
			}
		case "amendments":
			if s.routeAmendments(w, r, session, parts[2:]) {
				return
			}
		case "events":
			if len(parts) == 4 && parts[3] == "agenda" && r.Method == http.MethodGet {
				payload, err := s.service.EventAgenda(r.Context(), parts[2])
				s.respond(w, payload, err)
				return
			}
		case "editor":
			if parts[2] == "sessions" && s.routeEditor(w, r, session, parts[3:]) {
				return
			}
		case "documents":
			if s.routeDocuments(w, r, session, parts[2:]) {
				return
			}
		case "versions":
			if len(parts) == 3 && s.routeVersion(w, r, parts[2]) {
				return
			}
		case "presence":
			if s.routePresence(w, r, session, parts[2:]) {
				return
			}
		case "attachments":
			if s.routeAttachments(w, r, session, parts[2:]) {
				return
			}
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routeGroups(w http.ResponseWriter, r *http.Request, session Session, rest []string) bool {
	if len(rest) != 2 {
		return false
	}
	groupID := rest[0]
	switch rest[1] {
	case "members":
		if r.Method != http.MethodPost {
			return false
		}
		if err := s.service.JoinGroup(r.Context(), groupID, session.UserID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return true
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return true
	case "network":
		if r.Method != http.MethodGet {
			return false
		}
		payload, err := s.service.NetworkView(r.Context(), groupID)
		s.respond(w, payload, err)
		return true
	case "events":
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.UpcomingEvents(r.Context(), groupID)
			s.respond(w, payload, err)
			return true
		case http.MethodPost:
			var body struct {
				Title     string    `json:"title"`
				StartDate time.Time `json:"startDate"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.CreateEvent(r.Context(), groupID, body.Title, body.StartDate)
			s.respond(w, payload, err)
			return true
		}
	case "amendments":
		if r.Method != http.MethodGet {
			return false
		}
		payload, err := s.service.GroupAmendments(r.Context(), groupID)
		s.respond(w, payload, err)
		return true
	}
	return false
}

func (s *HTTPServer) routeAmendments(w http.ResponseWriter, r *http.Request, session Session, rest []string) bool {
	if len(rest) == 1 && r.Method == http.MethodGet {
		payload, err := s.service.AmendmentDetail(r.Context(), rest[0])
		s.respond(w, payload, err)
		return true
	}
	if len(rest) != 2 {
		return false
	}
	amendmentID := rest[0]
	switch rest[1] {
	case "forward":
		if r.Method != http.MethodPost {
			return false
		}
		var body struct {
			TargetGroupID string `json:"targetGroupId"`
			TargetEventID string `json:"targetEventId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.ForwardAmendment(r.Context(), session, amendmentID, body.TargetGroupID, body.TargetEventID)
		s.respond(w, payload, err)
		return true
	case "route":
		if r.Method != http.MethodGet {
			return false
		}
		payload, err := s.service.AmendmentRoute(r.Context(), amendmentID)
		s.respond(w, payload, err)
		return true
	}
	return false
}

func (s *HTTPServer) routeEditor(w http.ResponseWriter, r *http.Request, session Session, rest []string) bool {
	if len(rest) == 0 {
		return false
	}
	sessionID := rest[0]

	if len(rest) == 1 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.PollEditor(r.Context(), session, sessionID)
			s.respond(w, payload, err)
			return true
		case http.MethodDelete:
			if err := s.service.CloseEditor(session, sessionID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return true
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return true
		}
		return false
	}

	if len(rest) != 2 {
		return false
	}
	switch rest[1] {
	case "content":
		if r.Method != http.MethodPut {
			return false
		}
		var body struct {
			Content json.RawMessage `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		s.respondOK(w, s.service.EditContent(session, sessionID, body.Content))
		return true
	case "title":
		if r.Method != http.MethodPut {
			return false
		}
		var body struct {
			Title string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		s.respondOK(w, s.service.EditTitle(session, sessionID, body.Title))
		return true
	case "discussions":
		if r.Method != http.MethodPut {
			return false
		}
		var body struct {
			Discussions []editor.Discussion `json:"discussions"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		s.respondOK(w, s.service.EditDiscussions(session, sessionID, body.Discussions))
		return true
	case "restore":
		if r.Method != http.MethodPost {
			return false
		}
		var body struct {
			VersionID string `json:"versionId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.RestoreVersion(r.Context(), session, sessionID, body.VersionID)
		s.respond(w, payload, err)
		return true
	}
	return false
}

func (s *HTTPServer) routeDocuments(w http.ResponseWriter, r *http.Request, session Session, rest []string) bool {
	if len(rest) < 2 {
		return false
	}
	documentID := rest[0]
	switch rest[1] {
	case "suggestions":
		if len(rest) == 2 && r.Method == http.MethodPost {
			var body SuggestionInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.AddSuggestion(r.Context(), session, documentID, body)
			s.respond(w, payload, err)
			return true
		}
		if len(rest) == 4 && rest[3] == "resolve" && r.Method == http.MethodPost {
			var body struct {
				Outcome string `json:"outcome"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.ResolveSuggestion(r.Context(), session, documentID, rest[2], body.Outcome)
			s.respond(w, payload, err)
			return true
		}
	case "collaborators":
		if len(rest) == 2 && r.Method == http.MethodPost {
			var body struct {
				UserID  string `json:"userId"`
				CanEdit bool   `json:"canEdit"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.InviteCollaborator(r.Context(), session, documentID, body.UserID, body.CanEdit)
			s.respond(w, payload, err)
			return true
		}
	}
	return false
}

func (s *HTTPServer) routeVersion(w http.ResponseWriter, r *http.Request, versionID string) bool {
	switch r.Method {
	case http.MethodGet:
		payload, err := s.service.VersionContent(r.Context(), versionID)
		s.respond(w, payload, err)
		return true
	case http.MethodPatch:
		var body struct {
			Title string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		s.respondOK(w, s.service.RenameVersion(r.Context(), versionID, body.Title))
		return true
	case http.MethodDelete:
		s.respondOK(w, s.service.DeleteVersion(r.Context(), versionID))
		return true
	}
	return false
}

func (s *HTTPServer) routePresence(w http.ResponseWriter, r *http.Request, session Session, rest []string) bool {
	if len(rest) != 2 {
		return false
	}
	room := rest[0]
	switch rest[1] {
	case "join":
		if r.Method != http.MethodPost {
			return false
		}
		payload, err := s.service.JoinRoom(r.Context(), session, room)
		s.respond(w, payload, err)
		return true
	case "heartbeat":
		if r.Method != http.MethodPost {
			return false
		}
		payload, err := s.service.HeartbeatRoom(r.Context(), session, room)
		s.respond(w, payload, err)
		return true
	case "leave":
		if r.Method != http.MethodPost {
			return false
		}
		s.respondOK(w, s.service.LeaveRoom(r.Context(), session, room))
		return true
	case "peers":
		if r.Method != http.MethodGet {
			return false
		}
		payload, err := s.service.RoomPeers(r.Context(), session, room)
		s.respond(w, payload, err)
		return true
	}
	return false
}

func (s *HTTPServer) routeAttachments(w http.ResponseWriter, r *http.Request, session Session, rest []string) bool {
	if len(rest) != 2 {
		return false
	}
	ownerKind, ownerID := rest[0], rest[1]
	switch r.Method {
	case http.MethodGet:
		payload, err := s.service.Attachments(r.Context(), ownerKind, ownerID)
		s.respond(w, payload, err)
		return true
	case http.MethodPost:
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart body", nil)
			return true
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file field is required", nil)
			return true
		}
		defer file.Close()
		payload, err := s.service.UploadAttachment(r.Context(), session, ownerKind, ownerID, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
		s.respond(w, payload, err)
		return true
	}
	return false
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	publicOnly := true
	if token := bearerToken(r); token != "" {
		if _, err := s.service.SessionFromToken(r.Context(), token); err == nil {
			publicOnly = false
		}
	}

	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		limit = parsed
	}
	offset := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		offset = parsed
	}

	response := s.service.Search(search.Query{
		Text:          strings.TrimSpace(r.URL.Query().Get("q")),
		FilterType:    search.ResultType(strings.TrimSpace(r.URL.Query().Get("type"))),
		FilterGroupID: strings.TrimSpace(r.URL.Query().Get("groupId")),
		Limit:         limit,
		Offset:        offset,
		PublicOnly:    publicOnly,
	})
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, amendmentID string) {
	anonymous := true
	if token := bearerToken(r); token != "" {
		if _, err := s.service.SessionFromToken(r.Context(), token); err == nil {
			anonymous = false
		}
	}

	result, err := s.service.ExportAmendment(r.Context(), export.Request{
		AmendmentID:        amendmentID,
		VersionID:          strings.TrimSpace(r.URL.Query().Get("versionId")),
		Format:             export.Format(strings.TrimSpace(r.URL.Query().Get("format"))),
		IncludeDiscussions: r.URL.Query().Get("discussions") == "true",
		IncludeRoute:       r.URL.Query().Get("route") == "true",
		ViewerIsAnonymous:  anonymous,
	})
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// Auth handlers for email/password authentication.

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	authSvc := s.service.AuthPasswordService()
	if authSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
		return
	}

	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
		Avatar      string `json:"avatar"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	user, err := authSvc.SignUp(r.Context(), authpw.SignUpRequest{
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
		Avatar:      body.Avatar,
	})
	if err != nil {
		if errors.Is(err, authpw.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
			return
		}
		writeError(w, http.StatusUnprocessableEntity, "SIGNUP_FAILED", err.Error(), nil)
		return
	}

	session, err := s.service.CreateSession(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SESSION_FAILED", "Failed to create session", nil)
		return
	}
	writeJSON(w, http.StatusCreated, sessionPayload(session))
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	authSvc := s.service.AuthPasswordService()
	if authSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
		return
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	user, err := authSvc.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}

	session, err := s.service.CreateSession(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SESSION_FAILED", "Failed to create session", nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"avatar":       session.Avatar,
		"expiresAt":    session.ExpiresAt.Unix(),
	}
}

func (s *HTTPServer) respond(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) respondOK(w http.ResponseWriter, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if store.IsNotFound(err) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

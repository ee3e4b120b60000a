package app

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"concord/api/internal/archive"
	"concord/api/internal/auth"
	"concord/api/internal/authpw"
	"concord/api/internal/blob"
	"concord/api/internal/clone"
	"concord/api/internal/config"
	"concord/api/internal/export"
	"concord/api/internal/graph"
	"concord/api/internal/notify"
	"concord/api/internal/presence"
	"concord/api/internal/search"
	"concord/api/internal/session"
	"concord/api/internal/store"
	"concord/api/internal/util"
	"concord/api/internal/version"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Avatar       string
	JTI          string
	ExpiresAt    time.Time
}

// Relationship statuses in the group network.
var allowedRelationshipResponses = map[string]struct{}{
	"active":   {},
	"rejected": {},
}

var allowedRightTypes = map[string]struct{}{
	store.RightInformation:   {},
	store.RightAmendment:     {},
	store.RightToSpeak:       {},
	store.RightActiveVoting:  {},
	store.RightPassiveVoting: {},
}

type dataStore interface {
	Ping(ctx context.Context) error
	GetUserByID(ctx context.Context, userID string) (store.User, error)

	InsertGroup(ctx context.Context, group store.Group) error
	GetGroup(ctx context.Context, groupID string) (store.Group, error)
	ListGroups(ctx context.Context) ([]store.Group, error)
	AddGroupMember(ctx context.Context, groupID, userID string) error
	UserGroupIDs(ctx context.Context, userID string) ([]string, error)
	InsertRelationship(ctx context.Context, rel store.GroupRelationship) error
	UpdateRelationshipStatus(ctx context.Context, relationshipID, status string) error
	ListRelationships(ctx context.Context) ([]store.GroupRelationship, error)

	InsertDocument(ctx context.Context, item store.Document) error
	GetDocument(ctx context.Context, documentID string) (store.Document, error)
	UpdateDocumentContent(ctx context.Context, documentID string, content json.RawMessage, updatedAt time.Time) error
	UpdateDocumentTitle(ctx context.Context, documentID, title string, updatedAt time.Time) error
	UpdateDocumentDiscussions(ctx context.Context, documentID string, discussions json.RawMessage, updatedAt time.Time) error
	InsertAmendment(ctx context.Context, item store.Amendment) error
	GetAmendment(ctx context.Context, amendmentID string) (store.Amendment, error)
	ListAmendmentsByGroup(ctx context.Context, groupID string) ([]store.Amendment, error)
	InsertBlog(ctx context.Context, item store.Blog) error
	GetBlog(ctx context.Context, blogID string) (store.Blog, error)
	UpdateBlogContent(ctx context.Context, blogID string, content json.RawMessage, updatedAt time.Time) error
	UpdateBlogTitle(ctx context.Context, blogID, title string, updatedAt time.Time) error
	UpdateBlogDiscussions(ctx context.Context, blogID string, discussions json.RawMessage, updatedAt time.Time) error
	ListDocumentCollaborators(ctx context.Context, documentID string) ([]store.DocumentCollaborator, error)
	ListAmendmentCollaborators(ctx context.Context, amendmentID string) ([]store.AmendmentCollaborator, error)
	ListBloggers(ctx context.Context, blogID string) ([]store.Blogger, error)
	InsertDocumentCollaborator(ctx context.Context, item store.DocumentCollaborator) error
	InsertAmendmentCollaborator(ctx context.Context, item store.AmendmentCollaborator) error
	InsertChangeRequest(ctx context.Context, item store.ChangeRequest) error
	ListChangeRequests(ctx context.Context, documentID string) ([]store.ChangeRequest, error)

	InsertEvent(ctx context.Context, event store.Event) error
	GetEvent(ctx context.Context, eventID string) (store.Event, error)
	ListUpcomingEvents(ctx context.Context, groupID string, after time.Time) ([]store.Event, error)
	ListAgendaItems(ctx context.Context, eventID string) ([]store.AgendaItem, error)

	GetPathByAmendment(ctx context.Context, amendmentID string) (store.Path, error)
	ListPathSegments(ctx context.Context, pathID string) ([]store.PathSegment, error)

	InsertAttachment(ctx context.Context, item store.Attachment) error
	ListAttachments(ctx context.Context, ownerKind, ownerID string) ([]store.Attachment, error)
}

type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// Services bundles the domain services the app layer dispatches into.
// Blob and Notify may be nil when their backends are not configured.
type Services struct {
	Versions *version.Service
	Cloner   *clone.Orchestrator
	Presence *presence.Service
	Search   *search.Service
	Export   *export.Service
	Blob     *blob.Service
	Notify   *notify.Service
	Auth     *authpw.Service
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshStore
	archive  *archive.Service
	versions *version.Service
	cloner   *clone.Orchestrator
	presence *presence.Service
	search   *search.Service
	exporter *export.Service
	blob     *blob.Service
	notify   *notify.Service
	authpw   *authpw.Service

	editorMu sync.Mutex
	editors  map[string]*editorHandle
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, contentArchive *archive.Service, svcs Services) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		archive:  contentArchive,
		versions: svcs.Versions,
		cloner:   svcs.Cloner,
		presence: svcs.Presence,
		search:   svcs.Search,
		exporter: svcs.Export,
		blob:     svcs.Blob,
		notify:   svcs.Notify,
		authpw:   svcs.Auth,
		editors:  make(map[string]*editorHandle),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.notify != nil && s.notify.IsConfigured()
}

// --- sessions ---

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	known, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	// The refresh store only vouches for the user id; the profile is
	// always loaded fresh.
	user, err := s.store.GetUserByID(ctx, known.ID)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:    user.ID,
		Name:   user.DisplayName,
		Avatar: user.Avatar,
		JTI:    jti,
		Exp:    expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Avatar:       user.Avatar,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken validates an access token. Access tokens are
// short-lived and carry the full identity, so no store read is needed.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Avatar:    claims.Avatar,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

// --- groups and the rights network ---

func (s *Service) CreateGroup(ctx context.Context, name, creatorID string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	group := store.Group{ID: util.NewID("grp"), Name: name}
	if err := s.store.InsertGroup(ctx, group); err != nil {
		return nil, err
	}
	if err := s.store.AddGroupMember(ctx, group.ID, creatorID); err != nil {
		return nil, err
	}
	return groupPayload(group), nil
}

func (s *Service) ListGroups(ctx context.Context) (map[string]any, error) {
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		items = append(items, groupPayload(g))
	}
	return map[string]any{"groups": items}, nil
}

func (s *Service) JoinGroup(ctx context.Context, groupID, userID string) error {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return err
	}
	return s.store.AddGroupMember(ctx, groupID, userID)
}

// RequestRelationship creates a pending edge between two groups. The
// requesting user must belong to the initiating group.
func (s *Service) RequestRelationship(ctx context.Context, parentID, childID, rightType, initiatorGroupID, userID string) (map[string]any, error) {
	if _, ok := allowedRightTypes[rightType]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown right type", map[string]any{"rightType": rightType})
	}
	if parentID == childID {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a group cannot relate to itself", nil)
	}
	if initiatorGroupID != parentID && initiatorGroupID != childID {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "initiator must be one side of the relationship", nil)
	}
	memberGroups, err := s.store.UserGroupIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !containsString(memberGroups, initiatorGroupID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "not a member of the initiating group", nil)
	}

	rel := store.GroupRelationship{
		ID:               util.NewID("rel"),
		ParentGroupID:    parentID,
		ChildGroupID:     childID,
		RightType:        rightType,
		Status:           "requested",
		InitiatorGroupID: initiatorGroupID,
	}
	if err := s.store.InsertRelationship(ctx, rel); err != nil {
		return nil, err
	}
	return relationshipPayload(rel), nil
}

// RespondRelationship lets the non-initiating side accept or reject a
// requested relationship.
func (s *Service) RespondRelationship(ctx context.Context, relationshipID, status, userID string) error {
	if _, ok := allowedRelationshipResponses[status]; !ok {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be active or rejected", nil)
	}
	rels, err := s.store.ListRelationships(ctx)
	if err != nil {
		return err
	}
	var rel *store.GroupRelationship
	for i := range rels {
		if rels[i].ID == relationshipID {
			rel = &rels[i]
			break
		}
	}
	if rel == nil {
		return domainError(http.StatusNotFound, "NOT_FOUND", "relationship not found", nil)
	}
	responder := rel.ParentGroupID
	if rel.InitiatorGroupID == rel.ParentGroupID {
		responder = rel.ChildGroupID
	}
	memberGroups, err := s.store.UserGroupIDs(ctx, userID)
	if err != nil {
		return err
	}
	if !containsString(memberGroups, responder) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "only the responding group may answer", nil)
	}
	return s.store.UpdateRelationshipStatus(ctx, relationshipID, status)
}

// NetworkView answers the network page for one focal group: its direct
// neighbors with aggregated rights, plus the transitive closure per right
// type.
func (s *Service) NetworkView(ctx context.Context, focalGroupID string) (map[string]any, error) {
	group, err := s.store.GetGroup(ctx, focalGroupID)
	if err != nil {
		return nil, err
	}
	nodes, edges, err := s.graphInputs(ctx)
	if err != nil {
		return nil, err
	}
	active := graph.ActiveEdges(edges, "")

	neighbors := graph.DirectNeighbors(focalGroupID, active, nodes)
	neighborItems := make([]map[string]any, 0, len(neighbors))
	for _, n := range neighbors {
		neighborItems = append(neighborItems, map[string]any{
			"groupId":   n.Group.ID,
			"groupName": n.Group.Name,
			"rights":    n.Rights,
			"direction": n.Direction,
		})
	}

	closure := graph.Closure(focalGroupID, active, nodes)
	closureItems := make([]map[string]any, 0, len(closure))
	for _, entry := range closure {
		closureItems = append(closureItems, map[string]any{
			"groupId":   entry.Group.ID,
			"groupName": entry.Group.Name,
			"rightType": entry.RightType,
			"level":     entry.Level,
			"viaId":     entry.ViaID,
			"direction": entry.Direction,
		})
	}

	return map[string]any{
		"group":     groupPayload(group),
		"neighbors": neighborItems,
		"closure":   closureItems,
	}, nil
}

// ForwardingPreview computes the route an amendment clone would take from
// the user's groups to the target, without writing anything.
func (s *Service) ForwardingPreview(ctx context.Context, userID, targetGroupID string) (map[string]any, error) {
	memberGroups, err := s.store.UserGroupIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(memberGroups) == 0 {
		return nil, domainError(http.StatusForbidden, "NO_MEMBERSHIP", "user belongs to no group", nil)
	}
	nodes, edges, err := s.graphInputs(ctx)
	if err != nil {
		return nil, err
	}
	hops := graph.ShortestPath(memberGroups, targetGroupID, graph.ActiveEdges(edges, store.RightAmendment), nodes)
	if hops == nil {
		return nil, domainError(http.StatusUnprocessableEntity, "NO_ROUTE", "no route to target group", nil)
	}
	hopItems := make([]map[string]any, 0, len(hops))
	for _, hop := range hops {
		hopItems = append(hopItems, map[string]any{
			"groupId":   hop.Group.ID,
			"groupName": hop.Group.Name,
			"rights":    hop.Rights,
			"direction": hop.Direction,
		})
	}
	return map[string]any{"hops": hopItems, "length": len(hops)}, nil
}

func (s *Service) graphInputs(ctx context.Context) (map[string]graph.Node, []graph.Edge, error) {
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return nil, nil, err
	}
	rels, err := s.store.ListRelationships(ctx)
	if err != nil {
		return nil, nil, err
	}
	nodes := make(map[string]graph.Node, len(groups))
	for _, g := range groups {
		nodes[g.ID] = graph.Node{ID: g.ID, Name: g.Name}
	}
	edges := make([]graph.Edge, 0, len(rels))
	for _, rel := range rels {
		edges = append(edges, graph.Edge{
			ParentID:  rel.ParentGroupID,
			ChildID:   rel.ChildGroupID,
			RightType: rel.RightType,
			Status:    rel.Status,
		})
	}
	return nodes, edges, nil
}

// --- events ---

func (s *Service) CreateEvent(ctx context.Context, groupID, title string, startDate time.Time) (map[string]any, error) {
	if strings.TrimSpace(title) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if startDate.IsZero() {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "startDate is required", nil)
	}
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	event := store.Event{
		ID:        util.NewID("evt"),
		GroupID:   groupID,
		Title:     strings.TrimSpace(title),
		StartDate: startDate,
	}
	if err := s.store.InsertEvent(ctx, event); err != nil {
		return nil, err
	}
	return eventPayload(event), nil
}

func (s *Service) UpcomingEvents(ctx context.Context, groupID string) (map[string]any, error) {
	events, err := s.store.ListUpcomingEvents(ctx, groupID, time.Now())
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(events))
	for _, e := range events {
		items = append(items, eventPayload(e))
	}
	return map[string]any{"events": items}, nil
}

func (s *Service) EventAgenda(ctx context.Context, eventID string) (map[string]any, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListAgendaItems(ctx, eventID)
	if err != nil {
		return nil, err
	}
	agenda := make([]map[string]any, 0, len(items))
	for _, item := range items {
		agenda = append(agenda, map[string]any{
			"id":          item.ID,
			"eventId":     item.EventID,
			"amendmentId": item.AmendmentID,
			"title":       item.Title,
		})
	}
	return map[string]any{"event": eventPayload(event), "agenda": agenda}, nil
}

// --- payload helpers ---

func groupPayload(g store.Group) map[string]any {
	return map[string]any{
		"id":        g.ID,
		"name":      g.Name,
		"createdAt": g.CreatedAt.UnixMilli(),
	}
}

func relationshipPayload(rel store.GroupRelationship) map[string]any {
	return map[string]any{
		"id":               rel.ID,
		"parentGroupId":    rel.ParentGroupID,
		"childGroupId":     rel.ChildGroupID,
		"rightType":        rel.RightType,
		"status":           rel.Status,
		"initiatorGroupId": rel.InitiatorGroupID,
	}
}

func eventPayload(e store.Event) map[string]any {
	return map[string]any{
		"id":        e.ID,
		"groupId":   e.GroupID,
		"title":     e.Title,
		"startDate": e.StartDate.Format(time.RFC3339),
	}
}

func amendmentPayload(a store.Amendment) map[string]any {
	payload := map[string]any{
		"id":         a.ID,
		"title":      a.Title,
		"code":       a.Code,
		"status":     a.Status,
		"groupId":    a.GroupID,
		"documentId": a.DocumentID,
		"supporters": a.Supporters,
		"isPublic":   a.IsPublic,
	}
	if a.Date != nil {
		payload["date"] = a.Date.Format(time.RFC3339)
	}
	return payload
}

func segmentPayload(seg store.PathSegment) map[string]any {
	payload := map[string]any{
		"id":               seg.ID,
		"position":         seg.Position,
		"groupId":          seg.GroupID,
		"groupName":        seg.GroupName,
		"forwardingStatus": seg.ForwardingStatus,
	}
	if seg.EventID != nil {
		payload["eventId"] = *seg.EventID
		payload["eventTitle"] = seg.EventTitle
		if seg.EventStartDate != nil {
			payload["eventStartDate"] = seg.EventStartDate.Format(time.RFC3339)
		}
	}
	return payload
}

func versionPayload(v store.DocumentVersion) map[string]any {
	return map[string]any{
		"id":            v.ID,
		"ownerKind":     v.OwnerKind,
		"ownerId":       v.OwnerID,
		"versionNumber": v.VersionNumber,
		"title":         v.Title,
		"creationType":  v.CreationType,
		"creatorId":     v.CreatorID,
		"createdAt":     v.CreatedAt.UnixMilli(),
	}
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func logServiceError(op string, err error) {
	if err != nil {
		log.Printf("%s: %v", op, err)
	}
}

// Package clone forwards an amendment along the group network. One clone
// operation copies the amendment and its document into the user's sphere,
// computes the route to the target group over amendment-right edges and
// records the route with per-hop event assignments, all as a single
// transactional batch.
package clone

import (
	"context"
	"errors"
	"fmt"
	"time"

	"concord/api/internal/graph"
	"concord/api/internal/store"
	"concord/api/internal/util"
)

var (
	ErrNoPath         = errors.New("no route to target group")
	ErrNoMembership   = errors.New("user belongs to no group")
	ErrEventMismatch  = errors.New("selected event does not belong to the target group")
	ErrAlreadyForward = errors.New("amendment already has a forwarding path")
)

type cloneStore interface {
	GetAmendment(ctx context.Context, amendmentID string) (store.Amendment, error)
	GetDocument(ctx context.Context, documentID string) (store.Document, error)
	GetEvent(ctx context.Context, eventID string) (store.Event, error)
	ListGroups(ctx context.Context) ([]store.Group, error)
	ListRelationships(ctx context.Context) ([]store.GroupRelationship, error)
	UserGroupIDs(ctx context.Context, userID string) ([]string, error)
	ListUpcomingEvents(ctx context.Context, groupID string, after time.Time) ([]store.Event, error)
	GetPathByAmendment(ctx context.Context, amendmentID string) (store.Path, error)
	InsertCloneBatch(ctx context.Context, batch store.CloneBatch) error
}

// Request describes one forwarding operation. TargetEventID is the event
// the user picked for the final hop; intermediate hops get their nearest
// upcoming event automatically.
type Request struct {
	AmendmentID   string
	UserID        string
	TargetGroupID string
	TargetEventID string
}

// Result is what one completed clone produced.
type Result struct {
	Amendment store.Amendment
	Document  store.Document
	Path      store.Path
	Segments  []store.PathSegment
}

type Orchestrator struct {
	store cloneStore
	now   func() time.Time
}

func New(s cloneStore) *Orchestrator {
	return &Orchestrator{store: s, now: time.Now}
}

// Clone runs the full forwarding operation. Everything is computed and
// validated before the single batch write, so a failed precondition leaves
// no partial state behind.
func (o *Orchestrator) Clone(ctx context.Context, req Request) (Result, error) {
	now := o.now()

	source, err := o.store.GetAmendment(ctx, req.AmendmentID)
	if err != nil {
		return Result{}, fmt.Errorf("load amendment: %w", err)
	}
	sourceDoc, err := o.store.GetDocument(ctx, source.DocumentID)
	if err != nil {
		return Result{}, fmt.Errorf("load amendment document: %w", err)
	}
	if _, err := o.store.GetPathByAmendment(ctx, req.AmendmentID); err == nil {
		return Result{}, ErrAlreadyForward
	} else if !store.IsNotFound(err) {
		return Result{}, fmt.Errorf("check existing path: %w", err)
	}

	targetEvent, err := o.store.GetEvent(ctx, req.TargetEventID)
	if err != nil {
		return Result{}, fmt.Errorf("load target event: %w", err)
	}
	if targetEvent.GroupID != req.TargetGroupID {
		return Result{}, ErrEventMismatch
	}

	hops, err := o.route(ctx, req.UserID, req.TargetGroupID)
	if err != nil {
		return Result{}, err
	}

	segments, agendaTitle := o.assignEvents(ctx, hops, source.Title, targetEvent, now)

	batch, result := o.buildBatch(req, source, sourceDoc, segments, agendaTitle, now)
	if err := o.store.InsertCloneBatch(ctx, batch); err != nil {
		return Result{}, fmt.Errorf("apply clone batch: %w", err)
	}
	return result, nil
}

// route computes the hop sequence from the user's groups to the target over
// active amendment-right relationships.
func (o *Orchestrator) route(ctx context.Context, userID, targetGroupID string) ([]graph.Hop, error) {
	sourceIDs, err := o.store.UserGroupIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user groups: %w", err)
	}
	if len(sourceIDs) == 0 {
		return nil, ErrNoMembership
	}

	groupRows, err := o.store.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	groups := make(map[string]graph.Node, len(groupRows))
	for _, g := range groupRows {
		groups[g.ID] = graph.Node{ID: g.ID, Name: g.Name}
	}

	relationships, err := o.store.ListRelationships(ctx)
	if err != nil {
		return nil, fmt.Errorf("load relationships: %w", err)
	}
	edges := make([]graph.Edge, 0, len(relationships))
	for _, rel := range relationships {
		edges = append(edges, graph.Edge{
			ParentID:  rel.ParentGroupID,
			ChildID:   rel.ChildGroupID,
			RightType: rel.RightType,
			Status:    rel.Status,
		})
	}

	hops := graph.ShortestPath(sourceIDs, targetGroupID, graph.ActiveEdges(edges, store.RightAmendment), groups)
	if hops == nil {
		return nil, ErrNoPath
	}
	return hops, nil
}

type segmentPlan struct {
	group graph.Hop
	event *store.Event
}

// assignEvents picks an event per hop: the final hop gets the explicitly
// selected event, every earlier hop its group's nearest upcoming event if
// one exists. Exactly one segment, the one whose event is chronologically
// closest across the whole route, is marked forward-confirmed; the
// decisions before it are still outstanding.
func (o *Orchestrator) assignEvents(ctx context.Context, hops []graph.Hop, amendmentTitle string, targetEvent store.Event, now time.Time) ([]store.PathSegment, string) {
	plans := make([]segmentPlan, len(hops))
	for i, hop := range hops {
		plans[i] = segmentPlan{group: hop}
		if i == len(hops)-1 {
			ev := targetEvent
			plans[i].event = &ev
			continue
		}
		upcoming, err := o.store.ListUpcomingEvents(ctx, hop.Group.ID, now)
		if err == nil && len(upcoming) > 0 {
			ev := upcoming[0]
			plans[i].event = &ev
		}
	}

	confirmed := -1
	for i, plan := range plans {
		if plan.event == nil {
			continue
		}
		if confirmed == -1 || plan.event.StartDate.Before(plans[confirmed].event.StartDate) {
			confirmed = i
		}
	}

	segments := make([]store.PathSegment, len(plans))
	for i, plan := range plans {
		seg := store.PathSegment{
			ID:               util.NewID("seg"),
			Position:         i,
			GroupID:          plan.group.Group.ID,
			GroupName:        plan.group.Group.Name,
			ForwardingStatus: store.ForwardingOutstanding,
		}
		if plan.event != nil {
			eventID := plan.event.ID
			startDate := plan.event.StartDate
			seg.EventID = &eventID
			seg.EventTitle = plan.event.Title
			seg.EventStartDate = &startDate
			if i == confirmed {
				seg.ForwardingStatus = store.ForwardingConfirmed
			}
		}
		segments[i] = seg
	}
	return segments, "Decision: " + amendmentTitle
}

// buildBatch assembles the transactional record set: the cloned document
// and amendment, the forwarder as admin collaborator, the path with its
// segments, and an agenda item plus an open vote for every hop that has an
// event.
func (o *Orchestrator) buildBatch(req Request, source store.Amendment, sourceDoc store.Document, segments []store.PathSegment, agendaTitle string, now time.Time) (store.CloneBatch, Result) {
	newDoc := store.Document{
		ID:          util.NewID("doc"),
		Title:       sourceDoc.Title,
		Content:     sourceDoc.Content,
		Discussions: sourceDoc.Discussions,
		EditingMode: sourceDoc.EditingMode,
		IsPublic:    false,
		GroupID:     &req.TargetGroupID,
	}
	newAmendment := store.Amendment{
		ID:         util.NewID("amd"),
		Title:      source.Title,
		Code:       source.Code,
		Status:     "forwarded",
		GroupID:    req.TargetGroupID,
		DocumentID: newDoc.ID,
		Date:       source.Date,
		Supporters: source.Supporters,
		IsPublic:   false,
		CreatedBy:  req.UserID,
	}
	path := store.Path{
		ID:          util.NewID("pth"),
		AmendmentID: newAmendment.ID,
		UserID:      req.UserID,
		PathLength:  len(segments),
	}

	var agendaItems []store.AgendaItem
	var votes []store.AmendmentVote
	for i := range segments {
		segments[i].PathID = path.ID
		if segments[i].EventID == nil {
			continue
		}
		agendaItems = append(agendaItems, store.AgendaItem{
			ID:          util.NewID("agd"),
			EventID:     *segments[i].EventID,
			AmendmentID: newAmendment.ID,
			Title:       agendaTitle,
		})
		votes = append(votes, store.AmendmentVote{
			ID:          util.NewID("vot"),
			AmendmentID: newAmendment.ID,
			EventID:     *segments[i].EventID,
			GroupID:     segments[i].GroupID,
			Status:      "open",
		})
	}

	batch := store.CloneBatch{
		Document:  newDoc,
		Amendment: newAmendment,
		// The forwarder administers the clone; ownership stays with the
		// receiving group's process.
		Collaborator: store.AmendmentCollaborator{
			ID:          util.NewID("acl"),
			AmendmentID: newAmendment.ID,
			UserID:      req.UserID,
			RoleName:    "initiator",
			Status:      "admin",
		},
		Path:        path,
		Segments:    segments,
		AgendaItems: agendaItems,
		Votes:       votes,
	}
	return batch, Result{Amendment: newAmendment, Document: newDoc, Path: path, Segments: segments}
}

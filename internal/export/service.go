package export

import (
	"context"
	"fmt"
	"html/template"

	"concord/api/internal/archive"
	"concord/api/internal/editor"
	"concord/api/internal/store"
)

// DataStore is what the export service reads from Postgres.
type DataStore interface {
	GetAmendment(ctx context.Context, amendmentID string) (store.Amendment, error)
	GetDocument(ctx context.Context, documentID string) (store.Document, error)
	GetGroup(ctx context.Context, groupID string) (store.Group, error)
	GetPathByAmendment(ctx context.Context, amendmentID string) (store.Path, error)
	ListPathSegments(ctx context.Context, pathID string) ([]store.PathSegment, error)
}

// VersionLoader resolves a named snapshot to its archived content.
type VersionLoader interface {
	Restore(ctx context.Context, versionID string) (store.DocumentVersion, archive.Content, error)
}

// Service renders amendments to downloadable files.
type Service struct {
	store    DataStore
	versions VersionLoader
}

// NewService creates a new export service. versions may be nil when
// snapshot export is not wired up.
func NewService(store DataStore, versions VersionLoader) *Service {
	return &Service{store: store, versions: versions}
}

// Export generates an export in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	amendment, err := s.store.GetAmendment(ctx, req.AmendmentID)
	if err != nil {
		return nil, fmt.Errorf("get amendment: %w", err)
	}
	if req.ViewerIsAnonymous && !amendment.IsPublic {
		return nil, ErrNotPublic
	}

	doc, err := s.store.GetDocument(ctx, amendment.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("get amendment document: %w", err)
	}

	data := TemplateData{
		Title:      doc.Title,
		Code:       amendment.Code,
		Status:     amendment.Status,
		Supporters: amendment.Supporters,
		Date:       amendment.Date,
	}

	if group, err := s.store.GetGroup(ctx, amendment.GroupID); err == nil {
		data.GroupName = group.Name
	}

	content := doc.Content
	discussions := doc.Discussions
	if req.VersionID != "" {
		if s.versions == nil {
			return nil, ErrContentUnavailable
		}
		v, snapshot, err := s.versions.Restore(ctx, req.VersionID)
		if err != nil {
			return nil, fmt.Errorf("load version: %w", err)
		}
		content = snapshot.Doc
		discussions = snapshot.Discussions
		data.Title = firstNonBlankTitle(snapshot.Title, data.Title)
		data.VersionName = v.Title
	}
	data.ContentHTML = template.HTML(RenderHTML(content))

	if req.IncludeDiscussions {
		for _, d := range editor.DecodeDiscussions(discussions) {
			td := TemplateDiscussion{
				Description:    d.Description,
				ProposedChange: d.ProposedChange,
				Justification:  d.Justification,
				Status:         d.Status,
				Resolved:       d.IsResolved,
			}
			for _, c := range d.Comments {
				td.Comments = append(td.Comments, TemplateComment{Author: c.UserID, Body: c.Body})
			}
			data.Discussions = append(data.Discussions, td)
		}
	}

	if req.IncludeRoute {
		if path, err := s.store.GetPathByAmendment(ctx, req.AmendmentID); err == nil {
			segments, err := s.store.ListPathSegments(ctx, path.ID)
			if err != nil {
				return nil, fmt.Errorf("list route segments: %w", err)
			}
			for _, seg := range segments {
				data.Route = append(data.Route, TemplateHop{
					Position:   seg.Position + 1,
					GroupName:  seg.GroupName,
					EventTitle: seg.EventTitle,
					EventDate:  seg.EventStartDate,
					Status:     seg.ForwardingStatus,
				})
			}
		} else if !store.IsNotFound(err) {
			return nil, fmt.Errorf("get route: %w", err)
		}
	}

	html, err := RenderAmendmentHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, data.Title)
	case FormatDOCX:
		return exportDOCX(html, data.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func firstNonBlankTitle(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package editor

import (
	"concord/api/internal/store"
)

// Source is the sealed input union for Adapt. Each editable kind has one
// source struct assembling the rows the projection needs; the type switch
// in Adapt is exhaustive over them.
type Source interface {
	kind() Kind
}

type AmendmentSource struct {
	Amendment              *store.Amendment
	Document               *store.Document
	Group                  *store.Group
	Owner                  *store.User
	DocumentCollaborators  []store.DocumentCollaborator
	AmendmentCollaborators []store.AmendmentCollaborator
}

type BlogSource struct {
	Blog     *store.Blog
	Bloggers []store.Blogger
}

type DocumentSource struct {
	Document      *store.Document
	Owner         *store.User
	Collaborators []store.DocumentCollaborator
}

type GroupDocumentSource struct {
	Document      *store.Document
	Group         *store.Group
	Collaborators []store.DocumentCollaborator
}

func (AmendmentSource) kind() Kind     { return KindAmendment }
func (BlogSource) kind() Kind          { return KindBlog }
func (DocumentSource) kind() Kind      { return KindDocument }
func (GroupDocumentSource) kind() Kind { return KindGroupDocument }

// Adapt projects a source onto the unified entity shape. It returns nil
// when the required root rows are missing and degrades malformed nested
// data to defaults; it never panics.
func Adapt(source Source) *Entity {
	switch s := source.(type) {
	case AmendmentSource:
		return adaptAmendment(s)
	case BlogSource:
		return adaptBlog(s)
	case DocumentSource:
		return adaptDocument(s)
	case GroupDocumentSource:
		return adaptGroupDocument(s)
	default:
		return nil
	}
}

// adaptAmendment merges the document's plain collaborators with the
// amendment's role collaborators, de-duplicated by user id. Role
// collaborators win the merge: they carry a role name and status the
// document side lacks. The entity id is the linked document's id.
func adaptAmendment(s AmendmentSource) *Entity {
	if s.Amendment == nil || s.Document == nil {
		return nil
	}

	collaborators := make([]Collaborator, 0, len(s.AmendmentCollaborators)+len(s.DocumentCollaborators))
	seen := make(map[string]struct{})
	for _, ac := range s.AmendmentCollaborators {
		if _, ok := seen[ac.UserID]; ok {
			continue
		}
		seen[ac.UserID] = struct{}{}
		collaborators = append(collaborators, Collaborator{
			User:     UserRef{ID: ac.UserID, Name: ac.UserName, Avatar: ac.UserAvatar},
			RoleName: ac.RoleName,
			CanEdit:  ac.Status == StatusOwner || ac.Status == StatusAdmin || ac.Status == StatusCollaborator,
			Status:   normalizeStatus(ac.Status),
		})
	}
	for _, dc := range s.DocumentCollaborators {
		if _, ok := seen[dc.UserID]; ok {
			continue
		}
		seen[dc.UserID] = struct{}{}
		collaborators = append(collaborators, Collaborator{
			User:    UserRef{ID: dc.UserID, Name: dc.UserName, Avatar: dc.UserAvatar},
			CanEdit: dc.CanEdit,
			Status:  StatusCollaborator,
		})
	}

	entity := &Entity{
		ID:            s.Document.ID,
		Kind:          KindAmendment,
		Title:         s.Document.Title,
		Content:       s.Document.Content,
		Discussions:   DecodeDiscussions(s.Document.Discussions),
		EditingMode:   defaultMode(s.Document.EditingMode, KindAmendment),
		IsPublic:      s.Amendment.IsPublic,
		UpdatedAt:     EpochMillis(s.Document.UpdatedAt),
		Owner:         userRef(s.Owner),
		Collaborators: collaborators,
		Metadata: Metadata{
			Amendment: &AmendmentMeta{
				AmendmentID: s.Amendment.ID,
				Code:        s.Amendment.Code,
				Date:        s.Amendment.Date,
				Supporters:  s.Amendment.Supporters,
				Status:      s.Amendment.Status,
			},
		},
	}
	if s.Group != nil {
		entity.Metadata.Group = &GroupMeta{GroupID: s.Group.ID, GroupName: s.Group.Name}
	}
	return entity
}

// adaptBlog derives the owner by scanning for the blogger whose status is
// "owner"; blogs have no dedicated owner column.
func adaptBlog(s BlogSource) *Entity {
	if s.Blog == nil {
		return nil
	}

	var owner *UserRef
	collaborators := make([]Collaborator, 0, len(s.Bloggers))
	for _, blogger := range s.Bloggers {
		ref := UserRef{ID: blogger.UserID, Name: blogger.UserName, Avatar: blogger.UserAvatar}
		if blogger.Status == StatusOwner && owner == nil {
			owner = &UserRef{ID: ref.ID, Name: ref.Name, Avatar: ref.Avatar}
		}
		collaborators = append(collaborators, Collaborator{
			User:    ref,
			CanEdit: blogger.Status != StatusViewer,
			Status:  normalizeStatus(blogger.Status),
		})
	}

	return &Entity{
		ID:            s.Blog.ID,
		Kind:          KindBlog,
		Title:         s.Blog.Title,
		Content:       s.Blog.Content,
		Discussions:   DecodeDiscussions(s.Blog.Discussions),
		EditingMode:   defaultMode("", KindBlog),
		IsPublic:      s.Blog.IsPublic,
		UpdatedAt:     EpochMillis(s.Blog.UpdatedAt),
		Owner:         owner,
		Collaborators: collaborators,
		Metadata: Metadata{
			Blog: &BlogMeta{Date: s.Blog.Date, Upvotes: s.Blog.Upvotes},
		},
	}
}

func adaptDocument(s DocumentSource) *Entity {
	if s.Document == nil {
		return nil
	}
	return &Entity{
		ID:            s.Document.ID,
		Kind:          KindDocument,
		Title:         s.Document.Title,
		Content:       s.Document.Content,
		Discussions:   DecodeDiscussions(s.Document.Discussions),
		EditingMode:   defaultMode(s.Document.EditingMode, KindDocument),
		IsPublic:      s.Document.IsPublic,
		UpdatedAt:     EpochMillis(s.Document.UpdatedAt),
		Owner:         userRef(s.Owner),
		Collaborators: documentCollaborators(s.Collaborators),
		Metadata:      Metadata{},
	}
}

func adaptGroupDocument(s GroupDocumentSource) *Entity {
	if s.Document == nil || s.Group == nil {
		return nil
	}
	return &Entity{
		ID:            s.Document.ID,
		Kind:          KindGroupDocument,
		Title:         s.Document.Title,
		Content:       s.Document.Content,
		Discussions:   DecodeDiscussions(s.Document.Discussions),
		EditingMode:   defaultMode(s.Document.EditingMode, KindGroupDocument),
		IsPublic:      s.Document.IsPublic,
		UpdatedAt:     EpochMillis(s.Document.UpdatedAt),
		Collaborators: documentCollaborators(s.Collaborators),
		Metadata: Metadata{
			Group: &GroupMeta{GroupID: s.Group.ID, GroupName: s.Group.Name},
		},
	}
}

func documentCollaborators(rows []store.DocumentCollaborator) []Collaborator {
	collaborators := make([]Collaborator, 0, len(rows))
	for _, dc := range rows {
		collaborators = append(collaborators, Collaborator{
			User:    UserRef{ID: dc.UserID, Name: dc.UserName, Avatar: dc.UserAvatar},
			CanEdit: dc.CanEdit,
			Status:  StatusCollaborator,
		})
	}
	return collaborators
}

func userRef(user *store.User) *UserRef {
	if user == nil {
		return nil
	}
	return &UserRef{ID: user.ID, Name: user.DisplayName, Avatar: user.Avatar}
}

// defaultMode applies the per-kind default when the stored mode is unset:
// amendments open in suggest mode, everything else in edit.
func defaultMode(stored string, kind Kind) string {
	if stored != "" {
		return stored
	}
	if kind == KindAmendment {
		return ModeSuggest
	}
	return ModeEdit
}

func normalizeStatus(status string) string {
	switch status {
	case StatusOwner, StatusAdmin, StatusCollaborator, StatusViewer:
		return status
	default:
		return StatusCollaborator
	}
}

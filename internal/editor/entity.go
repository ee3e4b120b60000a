// Package editor owns the unified editing substrate: one entity projection
// shared by amendments, blogs, documents and group documents, and one
// session state machine reconciling local edits, remote updates and
// programmatic restores.
package editor

import (
	"encoding/json"
	"time"
)

// Kind is the closed set of editable entity types. Adding a kind without
// teaching the adapter about it is a compile-time error (see Adapt).
type Kind string

const (
	KindAmendment     Kind = "amendment"
	KindBlog          Kind = "blog"
	KindDocument      Kind = "document"
	KindGroupDocument Kind = "groupDocument"
)

// Editing modes. The default differs per kind and controls which
// affordances the client shows.
const (
	ModeEdit    = "edit"
	ModeView    = "view"
	ModeSuggest = "suggest"
	ModeVote    = "vote"
)

// Collaborator statuses.
const (
	StatusOwner        = "owner"
	StatusAdmin        = "admin"
	StatusCollaborator = "collaborator"
	StatusViewer       = "viewer"
)

type UserRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type Collaborator struct {
	User     UserRef `json:"user"`
	RoleName string  `json:"roleName,omitempty"`
	CanEdit  bool    `json:"canEdit"`
	Status   string  `json:"status"`
}

type DiscussionComment struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"createdAt"`
}

// Discussion is a suggestion thread living inside the content tree. It is
// promoted to a persisted change request only on accept or decline.
type Discussion struct {
	ID             string              `json:"id"`
	CrID           string              `json:"crId,omitempty"`
	UserID         string              `json:"userId"`
	Description    string              `json:"description"`
	ProposedChange string              `json:"proposedChange,omitempty"`
	Justification  string              `json:"justification,omitempty"`
	CreatedAt      int64               `json:"createdAt"`
	Status         string              `json:"status"` // pending, accepted, rejected
	Comments       []DiscussionComment `json:"comments,omitempty"`
	IsResolved     bool                `json:"isResolved"`
}

type AmendmentMeta struct {
	AmendmentID string     `json:"amendmentId"`
	Code        string     `json:"code,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	Supporters  int        `json:"supporters"`
	Status      string     `json:"status,omitempty"`
}

type BlogMeta struct {
	Date    *time.Time `json:"date,omitempty"`
	Upvotes int        `json:"upvotes"`
}

type GroupMeta struct {
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName,omitempty"`
}

// Metadata carries the kind-specific extras; exactly the ones matching the
// entity's kind are set.
type Metadata struct {
	Amendment *AmendmentMeta `json:"amendment,omitempty"`
	Blog      *BlogMeta      `json:"blog,omitempty"`
	Group     *GroupMeta     `json:"group,omitempty"`
}

// Entity is the read-time projection every editing session works on. ID is
// the content holder's id — for amendments that is the linked document's
// id, not the amendment's. It is recomputed from store data on every read
// and never persisted itself.
type Entity struct {
	ID            string          `json:"id"`
	Kind          Kind            `json:"kind"`
	Title         string          `json:"title"`
	Content       json.RawMessage `json:"content,omitempty"`
	Discussions   []Discussion    `json:"discussions"`
	EditingMode   string          `json:"editingMode"`
	IsPublic      bool            `json:"isPublic"`
	UpdatedAt     int64           `json:"updatedAt"` // epoch ms
	Owner         *UserRef        `json:"owner,omitempty"`
	Collaborators []Collaborator  `json:"collaborators"`
	Metadata      Metadata        `json:"metadata"`
}

// EpochMillis converts a store timestamp to the projection's epoch-ms form.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// DecodeDiscussions parses the stored discussions JSON; malformed or empty
// input degrades to an empty list, never an error.
func DecodeDiscussions(raw json.RawMessage) []Discussion {
	if len(raw) == 0 {
		return []Discussion{}
	}
	var discussions []Discussion
	if err := json.Unmarshal(raw, &discussions); err != nil {
		return []Discussion{}
	}
	if discussions == nil {
		return []Discussion{}
	}
	return discussions
}

// EncodeDiscussions serializes discussions for storage.
func EncodeDiscussions(discussions []Discussion) json.RawMessage {
	if discussions == nil {
		discussions = []Discussion{}
	}
	raw, err := json.Marshal(discussions)
	if err != nil {
		return json.RawMessage(`[]`)
	}
	return raw
}

package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Avatar       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Group is a node in the rights network.
type Group struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Right types carried by group-to-group relationships.
const (
	RightInformation   = "informationRight"
	RightAmendment     = "amendmentRight"
	RightToSpeak       = "rightToSpeak"
	RightActiveVoting  = "activeVotingRight"
	RightPassiveVoting = "passiveVotingRight"
)

// GroupRelationship is a directed, typed edge between two groups. A pair of
// groups can hold several right types in parallel, one row per right type.
type GroupRelationship struct {
	ID               string
	ParentGroupID    string
	ChildGroupID     string
	RightType        string
	Status           string // active, requested, rejected
	InitiatorGroupID string
	CreatedAt        time.Time
}

type Amendment struct {
	ID         string
	Title      string
	Code       string
	Status     string
	GroupID    string
	DocumentID string
	Date       *time.Time
	Supporters int
	IsPublic   bool
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Document is a content holder. Amendments link to one; standalone documents
// and group documents are documents with no amendment attached.
type Document struct {
	ID          string
	Title       string
	Content     json.RawMessage
	Discussions json.RawMessage
	EditingMode string
	IsPublic    bool
	OwnerID     *string
	GroupID     *string
	UpdatedAt   time.Time
}

type Blog struct {
	ID          string
	Title       string
	Content     json.RawMessage
	Discussions json.RawMessage
	Date        *time.Time
	Upvotes     int
	IsPublic    bool
	UpdatedAt   time.Time
}

// DocumentCollaborator is a plain per-document collaborator row. Amendment
// collaborators carry a role name and status that these lack.
type DocumentCollaborator struct {
	ID         string
	DocumentID string
	UserID     string
	CanEdit    bool
	CreatedAt  time.Time
	// Joined fields for API responses
	UserName   string
	UserAvatar string
}

type AmendmentCollaborator struct {
	ID          string
	AmendmentID string
	UserID      string
	RoleName    string
	Status      string // owner, admin, collaborator, viewer
	CreatedAt   time.Time
	UserName    string
	UserAvatar  string
}

// Blogger links a user to a blog. Blogs have no dedicated owner column; the
// owner is the blogger row whose status is "owner".
type Blogger struct {
	ID         string
	BlogID     string
	UserID     string
	Status     string
	CreatedAt  time.Time
	UserName   string
	UserAvatar string
}

type ChangeRequest struct {
	ID             string
	DocumentID     string
	DiscussionID   string
	UserID         string
	Description    string
	ProposedChange string
	Justification  string
	Status         string // pending, accepted, rejected
	CreatedAt      time.Time
}

// Version creation types.
const (
	VersionManual             = "manual"
	VersionSuggestionAdded    = "suggestion_added"
	VersionSuggestionAccepted = "suggestion_accepted"
	VersionSuggestionDeclined = "suggestion_declined"
)

// DocumentVersion is immutable snapshot metadata. The content itself lives in
// the archive, addressed by CommitHash. Only Title may be renamed afterwards.
type DocumentVersion struct {
	ID            string
	OwnerKind     string // document or blog
	OwnerID       string
	VersionNumber int
	Title         string
	CommitHash    string
	CreationType  string
	CreatorID     string
	CreatedAt     time.Time
}

type Event struct {
	ID        string
	GroupID   string
	Title     string
	StartDate time.Time
	CreatedAt time.Time
}

// Forwarding statuses for path segments.
const (
	ForwardingOutstanding = "previous_decision_outstanding"
	ForwardingConfirmed   = "forward_confirmed"
)

// Path records one amendment-cloning route through the group network.
type Path struct {
	ID          string
	AmendmentID string
	UserID      string
	PathLength  int
	CreatedAt   time.Time
}

// PathSegment is one ordered hop of a Path. Created once, never mutated.
type PathSegment struct {
	ID               string
	PathID           string
	Position         int
	GroupID          string
	GroupName        string
	EventID          *string
	EventTitle       string
	EventStartDate   *time.Time
	ForwardingStatus string
}

type AgendaItem struct {
	ID          string
	EventID     string
	AmendmentID string
	Title       string
	CreatedAt   time.Time
}

type AmendmentVote struct {
	ID          string
	AmendmentID string
	EventID     string
	GroupID     string
	Status      string
	CreatedAt   time.Time
}

type Attachment struct {
	ID          string
	OwnerKind   string
	OwnerID     string
	ObjectKey   string
	Filename    string
	ContentType string
	Size        int64
	CreatedBy   string
	CreatedAt   time.Time
}

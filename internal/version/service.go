// Package version manages named snapshots of editable content. The content
// itself lives in the per-entity archive; the store holds the numbered
// metadata rows pointing at archive commits.
package version

import (
	"context"
	"errors"
	"fmt"
	"time"

	"concord/api/internal/archive"
	"concord/api/internal/store"
	"concord/api/internal/util"
)

var ErrEmptyTitle = errors.New("version title must not be empty")

type versionStore interface {
	InsertVersion(ctx context.Context, v store.DocumentVersion) (store.DocumentVersion, error)
	GetVersion(ctx context.Context, versionID string) (store.DocumentVersion, error)
	ListVersions(ctx context.Context, ownerKind, ownerID string) ([]store.DocumentVersion, error)
	RenameVersion(ctx context.Context, versionID, title string) error
	DeleteVersion(ctx context.Context, versionID string) error
}

type contentArchive interface {
	Commit(entityID string, content archive.Content, author, message string) (archive.CommitInfo, error)
	GetByHash(entityID, hash string) (archive.Content, error)
}

type Service struct {
	store   versionStore
	archive contentArchive
	now     func() time.Time
}

func New(vs versionStore, ca contentArchive) *Service {
	return &Service{store: vs, archive: ca, now: time.Now}
}

// Snapshot commits the given content to the entity's archive and records a
// numbered version pointing at the commit. Numbering is assigned by the
// store atomically; concurrent snapshots of the same entity get distinct
// consecutive numbers. An empty title gets a default derived from the
// creation type and the current time.
func (s *Service) Snapshot(ctx context.Context, ownerKind, ownerID, title, creationType, creatorID string, content archive.Content) (store.DocumentVersion, error) {
	if title == "" {
		title = defaultTitle(creationType, s.now())
	}

	info, err := s.archive.Commit(ownerID, content, creatorID, title)
	if err != nil {
		return store.DocumentVersion{}, fmt.Errorf("commit snapshot: %w", err)
	}

	v, err := s.store.InsertVersion(ctx, store.DocumentVersion{
		ID:           util.NewID("ver"),
		OwnerKind:    ownerKind,
		OwnerID:      ownerID,
		Title:        title,
		CommitHash:   info.Hash,
		CreationType: creationType,
		CreatorID:    creatorID,
	})
	if err != nil {
		// The archive commit stays; it is content history either way.
		return store.DocumentVersion{}, err
	}
	return v, nil
}

func (s *Service) List(ctx context.Context, ownerKind, ownerID string) ([]store.DocumentVersion, error) {
	return s.store.ListVersions(ctx, ownerKind, ownerID)
}

// Restore loads the content a version points at. Applying it to the live
// entity is the caller's job; no snapshot of the replaced state is taken
// here.
func (s *Service) Restore(ctx context.Context, versionID string) (store.DocumentVersion, archive.Content, error) {
	v, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return store.DocumentVersion{}, archive.Content{}, err
	}
	content, err := s.archive.GetByHash(v.OwnerID, v.CommitHash)
	if err != nil {
		return store.DocumentVersion{}, archive.Content{}, fmt.Errorf("load version content: %w", err)
	}
	return v, content, nil
}

// Rename is the only mutation versions support after creation.
func (s *Service) Rename(ctx context.Context, versionID, title string) error {
	if title == "" {
		return ErrEmptyTitle
	}
	return s.store.RenameVersion(ctx, versionID, title)
}

// Delete removes the metadata row. The archive commit is kept; history is
// append-only.
func (s *Service) Delete(ctx context.Context, versionID string) error {
	return s.store.DeleteVersion(ctx, versionID)
}

func defaultTitle(creationType string, at time.Time) string {
	stamp := at.Format("Jan 2, 2006 15:04")
	switch creationType {
	case store.VersionSuggestionAdded:
		return "Before suggestion, " + stamp
	case store.VersionSuggestionAccepted:
		return "Suggestion accepted, " + stamp
	case store.VersionSuggestionDeclined:
		return "Suggestion declined, " + stamp
	default:
		return "Version of " + stamp
	}
}

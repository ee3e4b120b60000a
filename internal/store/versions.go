package store

import (
	"context"
	"fmt"
)

// InsertVersion assigns the next version number inside the INSERT itself so
// two concurrent snapshots cannot read the same max. The unique constraint
// on (owner_kind, owner_id, version_number) backs this up.
func (s *PostgresStore) InsertVersion(ctx context.Context, v DocumentVersion) (DocumentVersion, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO document_versions (id, owner_kind, owner_id, version_number, title, commit_hash, creation_type, creator_id)
		SELECT $1, $2, $3, COALESCE(MAX(version_number), 0) + 1, $4, $5, $6, $7
		FROM document_versions
		WHERE owner_kind=$2 AND owner_id=$3
		RETURNING version_number, created_at
	`, v.ID, v.OwnerKind, v.OwnerID, v.Title, v.CommitHash, v.CreationType, v.CreatorID).
		Scan(&v.VersionNumber, &v.CreatedAt)
	if err != nil {
		return DocumentVersion{}, fmt.Errorf("insert version: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, versionID string) (DocumentVersion, error) {
	var v DocumentVersion
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_kind, owner_id, version_number, title, commit_hash, creation_type, creator_id, created_at
		FROM document_versions
		WHERE id=$1
	`, versionID).Scan(&v.ID, &v.OwnerKind, &v.OwnerID, &v.VersionNumber, &v.Title, &v.CommitHash, &v.CreationType, &v.CreatorID, &v.CreatedAt)
	if err != nil {
		return DocumentVersion{}, err
	}
	return v, nil
}

// ListVersions returns the entity's snapshots newest first.
func (s *PostgresStore) ListVersions(ctx context.Context, ownerKind, ownerID string) ([]DocumentVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_kind, owner_id, version_number, title, commit_hash, creation_type, creator_id, created_at
		FROM document_versions
		WHERE owner_kind=$1 AND owner_id=$2
		ORDER BY version_number DESC
	`, ownerKind, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	items := make([]DocumentVersion, 0)
	for rows.Next() {
		var v DocumentVersion
		if err := rows.Scan(&v.ID, &v.OwnerKind, &v.OwnerID, &v.VersionNumber, &v.Title, &v.CommitHash, &v.CreationType, &v.CreatorID, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return items, nil
}

// RenameVersion is the only mutation versions allow.
func (s *PostgresStore) RenameVersion(ctx context.Context, versionID, title string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE document_versions SET title=$2 WHERE id=$1
	`, versionID, title)
	if err != nil {
		return fmt.Errorf("rename version: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteVersion(ctx context.Context, versionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_versions WHERE id=$1`, versionID)
	if err != nil {
		return fmt.Errorf("delete version: %w", err)
	}
	return nil
}

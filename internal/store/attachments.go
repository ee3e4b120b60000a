package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertAttachment(ctx context.Context, item Attachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, owner_kind, owner_id, object_key, filename, content_type, size, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.OwnerKind, item.OwnerID, item.ObjectKey, item.Filename, item.ContentType, item.Size, item.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context, ownerKind, ownerID string) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_kind, owner_id, object_key, filename, content_type, size, created_by, created_at
		FROM attachments
		WHERE owner_kind=$1 AND owner_id=$2
		ORDER BY created_at
	`, ownerKind, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	items := make([]Attachment, 0)
	for rows.Next() {
		var item Attachment
		if err := rows.Scan(&item.ID, &item.OwnerKind, &item.OwnerID, &item.ObjectKey, &item.Filename, &item.ContentType, &item.Size, &item.CreatedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return items, nil
}

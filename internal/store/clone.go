package store

import (
	"context"
	"fmt"
)

// CloneBatch is the full record set one amendment-cloning operation writes.
// It is applied in a single transaction: either everything lands or nothing
// does. The clone orchestrator depends on that.
type CloneBatch struct {
	Document     Document
	Amendment    Amendment
	Collaborator AmendmentCollaborator
	Path         Path
	Segments     []PathSegment
	AgendaItems  []AgendaItem
	Votes        []AmendmentVote
}

func (s *PostgresStore) InsertCloneBatch(ctx context.Context, batch CloneBatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clone tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	doc := batch.Document
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, title, content, discussions, editing_mode, is_public, owner_id, group_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, doc.ID, doc.Title, nullableJSON(doc.Content), nullableJSON(doc.Discussions), doc.EditingMode, doc.IsPublic, doc.OwnerID, doc.GroupID); err != nil {
		return fmt.Errorf("clone document: %w", err)
	}

	am := batch.Amendment
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO amendments (id, title, code, status, group_id, document_id, date, supporters, is_public, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, am.ID, am.Title, am.Code, am.Status, am.GroupID, am.DocumentID, am.Date, am.Supporters, am.IsPublic, am.CreatedBy); err != nil {
		return fmt.Errorf("clone amendment: %w", err)
	}

	col := batch.Collaborator
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO amendment_collaborators (id, amendment_id, user_id, role_name, status)
		VALUES ($1, $2, $3, $4, $5)
	`, col.ID, col.AmendmentID, col.UserID, col.RoleName, col.Status); err != nil {
		return fmt.Errorf("clone collaborator link: %w", err)
	}

	path := batch.Path
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO paths (id, amendment_id, user_id, path_length)
		VALUES ($1, $2, $3, $4)
	`, path.ID, path.AmendmentID, path.UserID, path.PathLength); err != nil {
		return fmt.Errorf("insert path: %w", err)
	}

	for _, segment := range batch.Segments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO path_segments (id, path_id, position, group_id, group_name, event_id, event_title, event_start_date, forwarding_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, segment.ID, segment.PathID, segment.Position, segment.GroupID, segment.GroupName, segment.EventID, segment.EventTitle, segment.EventStartDate, segment.ForwardingStatus); err != nil {
			return fmt.Errorf("insert path segment %d: %w", segment.Position, err)
		}
	}

	for _, item := range batch.AgendaItems {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO agenda_items (id, event_id, amendment_id, title)
			VALUES ($1, $2, $3, $4)
		`, item.ID, item.EventID, item.AmendmentID, item.Title); err != nil {
			return fmt.Errorf("insert agenda item: %w", err)
		}
	}

	for _, vote := range batch.Votes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO amendment_votes (id, amendment_id, event_id, group_id, status)
			VALUES ($1, $2, $3, $4, $5)
		`, vote.ID, vote.AmendmentID, vote.EventID, vote.GroupID, vote.Status); err != nil {
			return fmt.Errorf("insert amendment vote: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clone tx: %w", err)
	}
	return nil
}

// ListPathSegments returns a path's hops in order.
func (s *PostgresStore) ListPathSegments(ctx context.Context, pathID string) ([]PathSegment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path_id, position, group_id, group_name, event_id, event_title, event_start_date, forwarding_status
		FROM path_segments
		WHERE path_id=$1
		ORDER BY position
	`, pathID)
	if err != nil {
		return nil, fmt.Errorf("list path segments: %w", err)
	}
	defer rows.Close()

	items := make([]PathSegment, 0)
	for rows.Next() {
		var segment PathSegment
		if err := rows.Scan(&segment.ID, &segment.PathID, &segment.Position, &segment.GroupID, &segment.GroupName, &segment.EventID, &segment.EventTitle, &segment.EventStartDate, &segment.ForwardingStatus); err != nil {
			return nil, fmt.Errorf("scan path segment: %w", err)
		}
		items = append(items, segment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate path segments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPathByAmendment(ctx context.Context, amendmentID string) (Path, error) {
	var path Path
	err := s.db.QueryRowContext(ctx, `
		SELECT id, amendment_id, user_id, path_length, created_at
		FROM paths
		WHERE amendment_id=$1
	`, amendmentID).Scan(&path.ID, &path.AmendmentID, &path.UserID, &path.PathLength, &path.CreatedAt)
	if err != nil {
		return Path{}, err
	}
	return path, nil
}

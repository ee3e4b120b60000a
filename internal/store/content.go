package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, content, discussions, editing_mode, is_public, owner_id, group_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.Title, nullableJSON(item.Content), nullableJSON(item.Discussions), item.EditingMode, item.IsPublic, item.OwnerID, item.GroupID)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	var item Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, COALESCE(content, 'null'), COALESCE(discussions, 'null'), editing_mode, is_public, owner_id, group_id, updated_at
		FROM documents
		WHERE id=$1
	`, documentID).Scan(&item.ID, &item.Title, &item.Content, &item.Discussions, &item.EditingMode, &item.IsPublic, &item.OwnerID, &item.GroupID, &item.UpdatedAt)
	if err != nil {
		return Document{}, err
	}
	return item, nil
}

// UpdateDocumentContent overwrites the live content and bumps updated_at.
// Restores go through here too; snapshotting first is the caller's job.
func (s *PostgresStore) UpdateDocumentContent(ctx context.Context, documentID string, content json.RawMessage, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET content=$2, updated_at=$3 WHERE id=$1
	`, documentID, nullableJSON(content), updatedAt)
	if err != nil {
		return fmt.Errorf("update document content: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateDocumentTitle(ctx context.Context, documentID, title string, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET title=$2, updated_at=$3 WHERE id=$1
	`, documentID, title, updatedAt)
	if err != nil {
		return fmt.Errorf("update document title: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateDocumentDiscussions(ctx context.Context, documentID string, discussions json.RawMessage, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET discussions=$2, updated_at=$3 WHERE id=$1
	`, documentID, nullableJSON(discussions), updatedAt)
	if err != nil {
		return fmt.Errorf("update document discussions: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertAmendment(ctx context.Context, item Amendment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO amendments (id, title, code, status, group_id, document_id, date, supporters, is_public, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.Title, item.Code, item.Status, item.GroupID, item.DocumentID, item.Date, item.Supporters, item.IsPublic, item.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert amendment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAmendment(ctx context.Context, amendmentID string) (Amendment, error) {
	var item Amendment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, code, status, group_id, document_id, date, supporters, is_public, created_by, created_at, updated_at
		FROM amendments
		WHERE id=$1
	`, amendmentID).Scan(&item.ID, &item.Title, &item.Code, &item.Status, &item.GroupID, &item.DocumentID, &item.Date, &item.Supporters, &item.IsPublic, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Amendment{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListAmendmentsByGroup(ctx context.Context, groupID string) ([]Amendment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, code, status, group_id, document_id, date, supporters, is_public, created_by, created_at, updated_at
		FROM amendments
		WHERE group_id=$1
		ORDER BY created_at DESC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list amendments: %w", err)
	}
	defer rows.Close()

	items := make([]Amendment, 0)
	for rows.Next() {
		var item Amendment
		if err := rows.Scan(&item.ID, &item.Title, &item.Code, &item.Status, &item.GroupID, &item.DocumentID, &item.Date, &item.Supporters, &item.IsPublic, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan amendment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate amendments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertBlog(ctx context.Context, item Blog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blogs (id, title, content, discussions, date, upvotes, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.Title, nullableJSON(item.Content), nullableJSON(item.Discussions), item.Date, item.Upvotes, item.IsPublic)
	if err != nil {
		return fmt.Errorf("insert blog: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBlog(ctx context.Context, blogID string) (Blog, error) {
	var item Blog
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, COALESCE(content, 'null'), COALESCE(discussions, 'null'), date, upvotes, is_public, updated_at
		FROM blogs
		WHERE id=$1
	`, blogID).Scan(&item.ID, &item.Title, &item.Content, &item.Discussions, &item.Date, &item.Upvotes, &item.IsPublic, &item.UpdatedAt)
	if err != nil {
		return Blog{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateBlogContent(ctx context.Context, blogID string, content json.RawMessage, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE blogs SET content=$2, updated_at=$3 WHERE id=$1
	`, blogID, nullableJSON(content), updatedAt)
	if err != nil {
		return fmt.Errorf("update blog content: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateBlogTitle(ctx context.Context, blogID, title string, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE blogs SET title=$2, updated_at=$3 WHERE id=$1
	`, blogID, title, updatedAt)
	if err != nil {
		return fmt.Errorf("update blog title: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateBlogDiscussions(ctx context.Context, blogID string, discussions json.RawMessage, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE blogs SET discussions=$2, updated_at=$3 WHERE id=$1
	`, blogID, nullableJSON(discussions), updatedAt)
	if err != nil {
		return fmt.Errorf("update blog discussions: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDocumentCollaborators(ctx context.Context, documentID string) ([]DocumentCollaborator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dc.id, dc.document_id, dc.user_id, dc.can_edit, dc.created_at, u.display_name, u.avatar
		FROM document_collaborators dc
		JOIN users u ON u.id = dc.user_id
		WHERE dc.document_id=$1
		ORDER BY dc.created_at
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document collaborators: %w", err)
	}
	defer rows.Close()

	items := make([]DocumentCollaborator, 0)
	for rows.Next() {
		var item DocumentCollaborator
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.UserID, &item.CanEdit, &item.CreatedAt, &item.UserName, &item.UserAvatar); err != nil {
			return nil, fmt.Errorf("scan document collaborator: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document collaborators: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListAmendmentCollaborators(ctx context.Context, amendmentID string) ([]AmendmentCollaborator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ac.id, ac.amendment_id, ac.user_id, ac.role_name, ac.status, ac.created_at, u.display_name, u.avatar
		FROM amendment_collaborators ac
		JOIN users u ON u.id = ac.user_id
		WHERE ac.amendment_id=$1
		ORDER BY ac.created_at
	`, amendmentID)
	if err != nil {
		return nil, fmt.Errorf("list amendment collaborators: %w", err)
	}
	defer rows.Close()

	items := make([]AmendmentCollaborator, 0)
	for rows.Next() {
		var item AmendmentCollaborator
		if err := rows.Scan(&item.ID, &item.AmendmentID, &item.UserID, &item.RoleName, &item.Status, &item.CreatedAt, &item.UserName, &item.UserAvatar); err != nil {
			return nil, fmt.Errorf("scan amendment collaborator: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate amendment collaborators: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListBloggers(ctx context.Context, blogID string) ([]Blogger, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.blog_id, b.user_id, b.status, b.created_at, u.display_name, u.avatar
		FROM bloggers b
		JOIN users u ON u.id = b.user_id
		WHERE b.blog_id=$1
		ORDER BY b.created_at
	`, blogID)
	if err != nil {
		return nil, fmt.Errorf("list bloggers: %w", err)
	}
	defer rows.Close()

	items := make([]Blogger, 0)
	for rows.Next() {
		var item Blogger
		if err := rows.Scan(&item.ID, &item.BlogID, &item.UserID, &item.Status, &item.CreatedAt, &item.UserName, &item.UserAvatar); err != nil {
			return nil, fmt.Errorf("scan blogger: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bloggers: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertDocumentCollaborator(ctx context.Context, item DocumentCollaborator) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_collaborators (id, document_id, user_id, can_edit)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id, user_id) DO UPDATE SET can_edit=EXCLUDED.can_edit
	`, item.ID, item.DocumentID, item.UserID, item.CanEdit)
	if err != nil {
		return fmt.Errorf("insert document collaborator: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertAmendmentCollaborator(ctx context.Context, item AmendmentCollaborator) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO amendment_collaborators (id, amendment_id, user_id, role_name, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (amendment_id, user_id) DO UPDATE SET role_name=EXCLUDED.role_name, status=EXCLUDED.status
	`, item.ID, item.AmendmentID, item.UserID, item.RoleName, item.Status)
	if err != nil {
		return fmt.Errorf("insert amendment collaborator: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertChangeRequest(ctx context.Context, item ChangeRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO change_requests (id, document_id, discussion_id, user_id, description, proposed_change, justification, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.DocumentID, item.DiscussionID, item.UserID, item.Description, item.ProposedChange, item.Justification, item.Status)
	if err != nil {
		return fmt.Errorf("insert change request: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListChangeRequests(ctx context.Context, documentID string) ([]ChangeRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, discussion_id, user_id, description, proposed_change, justification, status, created_at
		FROM change_requests
		WHERE document_id=$1
		ORDER BY created_at
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list change requests: %w", err)
	}
	defer rows.Close()

	items := make([]ChangeRequest, 0)
	for rows.Next() {
		var item ChangeRequest
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.DiscussionID, &item.UserID, &item.Description, &item.ProposedChange, &item.Justification, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan change request: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change requests: %w", err)
	}
	return items, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

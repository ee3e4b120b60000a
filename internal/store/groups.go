package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertGroup(ctx context.Context, group Group) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO groups (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, group.ID, group.Name)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGroup(ctx context.Context, groupID string) (Group, error) {
	var group Group
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM groups WHERE id=$1
	`, groupID).Scan(&group.ID, &group.Name, &group.CreatedAt)
	if err != nil {
		return Group{}, err
	}
	return group, nil
}

func (s *PostgresStore) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	items := make([]Group, 0)
	for rows.Next() {
		var group Group
		if err := rows.Scan(&group.ID, &group.Name, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		items = append(items, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) AddGroupMember(ctx context.Context, groupID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_memberships (group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, groupID, userID)
	if err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// UserGroupIDs lists the ids of the groups the user belongs to. These are
// the source set for path computations.
func (s *PostgresStore) UserGroupIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id FROM group_memberships WHERE user_id=$1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user groups: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user groups: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) InsertRelationship(ctx context.Context, rel GroupRelationship) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_relationships (id, parent_group_id, child_group_id, right_type, status, initiator_group_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rel.ID, rel.ParentGroupID, rel.ChildGroupID, rel.RightType, rel.Status, rel.InitiatorGroupID)
	if err != nil {
		return fmt.Errorf("insert relationship: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateRelationshipStatus(ctx context.Context, relationshipID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE group_relationships SET status=$2 WHERE id=$1
	`, relationshipID, status)
	if err != nil {
		return fmt.Errorf("update relationship status: %w", err)
	}
	return nil
}

// ListRelationships returns every relationship in insertion order. Order is
// load-bearing: the traversal's tie-break follows it.
func (s *PostgresStore) ListRelationships(ctx context.Context) ([]GroupRelationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_group_id, child_group_id, right_type, status, initiator_group_id, created_at
		FROM group_relationships
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	items := make([]GroupRelationship, 0)
	for rows.Next() {
		var rel GroupRelationship
		if err := rows.Scan(&rel.ID, &rel.ParentGroupID, &rel.ChildGroupID, &rel.RightType, &rel.Status, &rel.InitiatorGroupID, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		items = append(items, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relationships: %w", err)
	}
	return items, nil
}

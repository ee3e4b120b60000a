package store

import (
	"context"
	"fmt"
	"time"
)

func (s *PostgresStore) InsertEvent(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, group_id, title, start_date)
		VALUES ($1, $2, $3, $4)
	`, event.ID, event.GroupID, event.Title, event.StartDate)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, eventID string) (Event, error) {
	var event Event
	err := s.db.QueryRowContext(ctx, `
		SELECT id, group_id, title, start_date, created_at FROM events WHERE id=$1
	`, eventID).Scan(&event.ID, &event.GroupID, &event.Title, &event.StartDate, &event.CreatedAt)
	if err != nil {
		return Event{}, err
	}
	return event, nil
}

// ListUpcomingEvents returns a group's future events ascending by start
// date; the first element is the chronologically nearest.
func (s *PostgresStore) ListUpcomingEvents(ctx context.Context, groupID string, after time.Time) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, title, start_date, created_at
		FROM events
		WHERE group_id=$1 AND start_date > $2
		ORDER BY start_date
	`, groupID, after)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	defer rows.Close()

	items := make([]Event, 0)
	for rows.Next() {
		var event Event
		if err := rows.Scan(&event.ID, &event.GroupID, &event.Title, &event.StartDate, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		items = append(items, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListAgendaItems(ctx context.Context, eventID string) ([]AgendaItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, amendment_id, title, created_at
		FROM agenda_items
		WHERE event_id=$1
		ORDER BY created_at
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list agenda items: %w", err)
	}
	defer rows.Close()

	items := make([]AgendaItem, 0)
	for rows.Next() {
		var item AgendaItem
		if err := rows.Scan(&item.ID, &item.EventID, &item.AmendmentID, &item.Title, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan agenda item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agenda items: %w", err)
	}
	return items, nil
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UserActivity is the persisted per-user message record for one group.
type UserActivity struct {
	GroupID       string    `json:"group_id"`
	UserID        string    `json:"user_id"`
	FirstSeen     time.Time `json:"first_seen"`
	LastMessageAt time.Time `json:"last_message_at"`
	TotalMessages int64     `json:"total_messages"`
}

// Store handles database operations for user activity
type Store struct {
	db *sql.DB
}

// NewStore creates a new database store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordMessage upserts one message observation for (group, user).
func (s *Store) RecordMessage(ctx context.Context, groupID, userID string, at time.Time) error {
	query := `
		INSERT INTO user_activity (group_id, user_id, first_seen, last_message_at, total_messages)
		VALUES ($1, $2, $3, $3, 1)
		ON CONFLICT (group_id, user_id) DO UPDATE SET
			last_message_at = EXCLUDED.last_message_at,
			total_messages = user_activity.total_messages + 1
	`

	if _, err := s.db.ExecContext(ctx, query, groupID, userID, at); err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}

	return nil
}

// GetUserActivity retrieves one user's activity record, or nil when the user
// has never been seen in the group.
func (s *Store) GetUserActivity(ctx context.Context, groupID, userID string) (*UserActivity, error) {
	query := `
		SELECT first_seen, last_message_at, total_messages
		FROM user_activity WHERE group_id = $1 AND user_id = $2
	`

	activity := &UserActivity{GroupID: groupID, UserID: userID}
	err := s.db.QueryRowContext(ctx, query, groupID, userID).Scan(
		&activity.FirstSeen, &activity.LastMessageAt, &activity.TotalMessages)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user activity: %w", err)
	}

	return activity, nil
}

package store

import (
	"fmt"
	"time"
)

// noticeLayout is fixed-width so created_at sorts as text.
const noticeLayout = "2006-01-02T15:04:05.000000Z"

func (s *Store) AddNotification(level, message, taskID string, at time.Time) (*Notification, error) {
	res, err := s.db.Exec(
		`INSERT INTO notifications (level, message, task_id, created_at) VALUES (?, ?, ?, ?)`,
		level, message, taskID, at.UTC().Format(noticeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, _ := res.LastInsertId()
	return &Notification{
		ID:        id,
		Level:     level,
		Message:   message,
		TaskID:    taskID,
		CreatedAt: at.UTC(),
	}, nil
}

// ListNotifications returns the newest notifications first. limit <= 0
// returns all of them.
func (s *Store) ListNotifications(limit int) ([]Notification, error) {
	query := `SELECT id, level, message, task_id, read, created_at FROM notifications ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var read int
		var createdAt string
		if err := rows.Scan(&n.ID, &n.Level, &n.Message, &n.TaskID, &read, &createdAt); err != nil {
			return nil, err
		}
		n.Read = read == 1
		n.CreatedAt, _ = time.Parse(noticeLayout, createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) UnreadCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE read = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (s *Store) MarkAllRead() error {
	_, err := s.db.Exec(`UPDATE notifications SET read = 1 WHERE read = 0`)
	return err
}

func (s *Store) ClearNotifications() error {
	_, err := s.db.Exec(`DELETE FROM notifications`)
	return err
}

package store

import (
	"fmt"
	"time"
)

// Token, SetToken and ClearToken make Store an api.TokenStore.

func (s *Store) Token() (string, error) {
	var token string
	if err := s.db.QueryRow(`SELECT token FROM session WHERE id = 1`).Scan(&token); err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return token, nil
}

func (s *Store) SetToken(token string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`UPDATE session SET token = ?, updated_at = ? WHERE id = 1`, token, now)
	if err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	return nil
}

// ClearToken forgets the token and the user it belonged to.
func (s *Store) ClearToken() error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`UPDATE session SET token = '', user_id = '', email = '', updated_at = ? WHERE id = 1`, now,
	)
	if err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// SetUser records who the stored token belongs to.
func (s *Store) SetUser(userID, email string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`UPDATE session SET user_id = ?, email = ?, updated_at = ? WHERE id = 1`, userID, email, now,
	)
	if err != nil {
		return fmt.Errorf("set user: %w", err)
	}
	return nil
}

func (s *Store) GetSession() (*Session, error) {
	sess := &Session{}
	var updatedAt string
	err := s.db.QueryRow(
		`SELECT token, user_id, email, updated_at FROM session WHERE id = 1`,
	).Scan(&sess.Token, &sess.UserID, &sess.Email, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return sess, nil
}

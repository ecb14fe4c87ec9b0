package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	MaxTitleLen       = 255
	MaxDescriptionLen = 1000
)

// Task is a user-owned to-do item as returned by the task API.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	IsCompleted bool      `json:"is_completed"`
	IsDeleted   bool      `json:"is_deleted,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
	UpdatedAt   Timestamp `json:"updated_at"`
	UserID      string    `json:"user_id"`
}

// Draft is the client-supplied part of a new task.
type Draft struct {
	Title       string
	Description string
}

func (d Draft) MarshalJSON() ([]byte, error) {
	body := struct {
		Title       string  `json:"title"`
		Description *string `json:"description,omitempty"`
		IsCompleted bool    `json:"is_completed"`
	}{Title: d.Title}
	if d.Description != "" {
		body.Description = &d.Description
	}
	return json.Marshal(body)
}

// Patch holds a partial update. Nil fields are left untouched by the server.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	IsCompleted *bool   `json:"is_completed,omitempty"`
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.IsCompleted == nil
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt Timestamp `json:"created_at"`
}

// Name is the local part of the user's email, used for greetings.
func (u User) Name() string {
	for i := 0; i < len(u.Email); i++ {
		if u.Email[i] == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}

// Timestamp decodes the server's date formats. Zone-less values are UTC.
// A null or empty value decodes to the zero time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("parse timestamp %q", s)
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

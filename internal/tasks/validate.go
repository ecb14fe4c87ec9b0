package tasks

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sadopc/taskdeck/internal/model"
)

var (
	ErrEmptyTitle         = errors.New("title is required and cannot be empty")
	ErrTitleTooLong       = fmt.Errorf("title must be at most %d characters", model.MaxTitleLen)
	ErrDescriptionTooLong = fmt.Errorf("description must be at most %d characters", model.MaxDescriptionLen)
	ErrEmptyPatch         = errors.New("nothing to update")
	ErrUnknownTask        = errors.New("task not found")
)

// ValidateDraft trims the title and checks both fields against the
// server's bounds.
func ValidateDraft(d model.Draft) (model.Draft, error) {
	title, err := validateTitle(d.Title)
	if err != nil {
		return d, err
	}
	d.Title = title
	if utf8.RuneCountInString(d.Description) > model.MaxDescriptionLen {
		return d, ErrDescriptionTooLong
	}
	return d, nil
}

// ValidatePatch applies the draft rules to whichever fields are set.
func ValidatePatch(p model.Patch) (model.Patch, error) {
	if p.Empty() {
		return p, ErrEmptyPatch
	}
	if p.Title != nil {
		title, err := validateTitle(*p.Title)
		if err != nil {
			return p, err
		}
		p.Title = &title
	}
	if p.Description != nil && utf8.RuneCountInString(*p.Description) > model.MaxDescriptionLen {
		return p, ErrDescriptionTooLong
	}
	return p, nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > model.MaxTitleLen {
		return "", ErrTitleTooLong
	}
	return title, nil
}

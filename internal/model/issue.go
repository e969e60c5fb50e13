package model

import (
	"fmt"
	"time"

	"github.com/sakif/sprintium/internal/apperror"
)

// Status is an issue's position in the workflow.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Statuses returns the workflow states in board order.
func Statuses() []Status {
	return []Status{StatusToDo, StatusInProgress, StatusDone}
}

func (s Status) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// ParseStatus maps "" to To Do and rejects anything outside the workflow.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return StatusToDo, nil
	}
	if st := Status(s); st.Valid() {
		return st, nil
	}
	return "", apperror.ValidationFailed("status",
		fmt.Sprintf("status must be one of To Do, In Progress, Done (got %q)", s))
}

// Issue is a unit of work inside one project. Reporter is the creating
// user's e-mail and never changes.
type Issue struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Reporter    string    `json:"reporter"`
	Assignee    string    `json:"assignee,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/permission"
)

// ProjectType classifies a project.
type ProjectType string

const (
	ProjectSoftware ProjectType = "software"
	ProjectService  ProjectType = "service"
)

// ParseProjectType maps "" to the default (software).
func ParseProjectType(s string) (ProjectType, error) {
	switch t := ProjectType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return ProjectSoftware, nil
	case ProjectSoftware, ProjectService:
		return t, nil
	}
	return "", apperror.ValidationFailed("type",
		fmt.Sprintf("project type must be software or service (got %q)", s))
}

// Member binds a user, by e-mail, to one role within one project.
// There is at most one Member per (project, email).
type Member struct {
	Email string          `json:"email"`
	Role  permission.Role `json:"role"`
}

// Project is the aggregate returned by /projects endpoints.
//
// Owner is the creator's e-mail. The owner is expected to also appear in
// Members as an Admin; when the two disagree the Members row wins.
//
// CurrentUserRole is filled per request for the caller and is never stored.
type Project struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Key             string          `json:"key"`
	Description     string          `json:"description"`
	Type            ProjectType     `json:"type"`
	Owner           string          `json:"owner"`
	Members         []Member        `json:"members"`
	CurrentUserRole permission.Role `json:"current_user_role,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// RoleOf looks e-mail up in the explicit member rows.
func (p *Project) RoleOf(email string) (permission.Role, bool) {
	email = NormalizeEmail(email)
	for _, m := range p.Members {
		if NormalizeEmail(m.Email) == email {
			return m.Role, true
		}
	}
	return "", false
}

// NormalizeEmail is the canonical form used for every e-mail comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

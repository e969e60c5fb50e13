// Package permission holds the project authorization matrix.
//
// Roles and actions are closed enumerations and the matrix is one lookup
// table. The server and the client both consult it, so a rule changes in one
// place only.
//
// Passing a role or action outside the enumeration is a programming error:
// CanPerform panics rather than answering either way.
package permission

import (
	"fmt"
	"strings"

	"github.com/sakif/sprintium/internal/apperror"
)

// Role is a project-scoped authorization level.
type Role string

const (
	Admin  Role = "Admin"
	Member Role = "Member"
	Viewer Role = "Viewer"
)

// Roles returns every role, most privileged first.
func Roles() []Role {
	return []Role{Admin, Member, Viewer}
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case Admin, Member, Viewer:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole accepts a role name case-insensitively ("admin", "Admin").
// Anything else is a validation error; there is no default role.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles() {
		if strings.EqualFold(strings.TrimSpace(s), string(r)) {
			return r, nil
		}
	}
	return "", apperror.ValidationFailed("role",
		fmt.Sprintf("role must be one of Admin, Member, Viewer (got %q)", s))
}

// Action is a gated mutation.
type Action int

const (
	CreateIssue Action = iota + 1
	DeleteIssue
	CreateProject
	EditProject
	DeleteProject
	AddMember
	ChangeMemberRole
	RemoveMember
)

var actionNames = map[Action]string{
	CreateIssue:      "CreateIssue",
	DeleteIssue:      "DeleteIssue",
	CreateProject:    "CreateProject",
	EditProject:      "EditProject",
	DeleteProject:    "DeleteProject",
	AddMember:        "AddMember",
	ChangeMemberRole: "ChangeMemberRole",
	RemoveMember:     "RemoveMember",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ScopedActions returns the actions that are decided by a project role.
// CreateProject is not among them.
func ScopedActions() []Action {
	return []Action{
		CreateIssue, DeleteIssue,
		EditProject, DeleteProject,
		AddMember, ChangeMemberRole, RemoveMember,
	}
}

// matrix is the single definition of who may do what. Viewer has no row:
// it may perform none of the mutating actions.
var matrix = map[Role]map[Action]bool{
	Admin: {
		CreateIssue:      true,
		DeleteIssue:      true,
		EditProject:      true,
		DeleteProject:    true,
		AddMember:        true,
		ChangeMemberRole: true,
		RemoveMember:     true,
	},
	Member: {
		CreateIssue: true,
		DeleteIssue: true,
	},
	Viewer: {},
}

// CanPerform reports whether role may perform action.
//
// It panics for an unknown role, an unknown action, or CreateProject (which
// is not role-scoped; use CanCreateProject).
func CanPerform(role Role, action Action) bool {
	allowed, ok := matrix[role]
	if !ok {
		panic(fmt.Sprintf("permission: unknown role %q", string(role)))
	}
	if action == CreateProject {
		panic("permission: CreateProject is not decided by a project role")
	}
	if _, known := actionNames[action]; !known {
		panic(fmt.Sprintf("permission: unknown action %d", int(action)))
	}
	return allowed[action]
}

// CanCreateProject reports whether an authenticated user may create a
// project. Any authenticated user may; the creator becomes its Admin.
func CanCreateProject() bool {
	return true
}

// Require returns apperror.ErrForbidden when role may not perform action.
func Require(role Role, action Action) error {
	if !CanPerform(role, action) {
		return apperror.Forbidden(fmt.Sprintf("role %s may not %s", role, action))
	}
	return nil
}

// Package repository declares the storage interfaces the service layer
// depends on. Implementations live in sub-packages (sqlite, redis).
package repository

import (
	"context"
	"time"

	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/permission"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
}

// ProjectRepository stores projects. GetProject and ListProjectsForMember
// return projects with their Members populated.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjectsForMember(ctx context.Context, email string) ([]model.Project, error)
	UpdateProject(ctx context.Context, project *model.Project) error
	DeleteProject(ctx context.Context, id string) error
}

// MemberRepository stores (project, email, role) rows.
//
// AddMember returns apperror.ErrAlreadyMember for an existing pair;
// SetMemberRole and RemoveMember return apperror.ErrNotAMember for a
// missing one. Neither checks permissions.
type MemberRepository interface {
	GetMemberRole(ctx context.Context, projectID, email string) (permission.Role, error)
	AddMember(ctx context.Context, projectID string, member model.Member) error
	SetMemberRole(ctx context.Context, projectID, email string, role permission.Role) error
	RemoveMember(ctx context.Context, projectID, email string) error
}

type IssueRepository interface {
	CreateIssue(ctx context.Context, issue *model.Issue) error
	ListIssues(ctx context.Context, projectID string) ([]model.Issue, error)
	DeleteIssue(ctx context.Context, projectID, issueID string) error
}

// TokenDenylist records revoked token IDs (the JWT "jti") until the token
// would have expired anyway.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Package service contains the business rules of the API server.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces permissions, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services accept primitives and return domain values and apperror errors.
// They have no knowledge of HTTP, so the same rules hold for any caller.
//
// AUTHORIZATION:
// Every project-scoped operation resolves the caller's role from the
// membership table and asks permission.CanPerform. That is the same matrix
// the client consults before it ever sends a request, so the two sides can
// not drift apart.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/permission"
	"github.com/sakif/sprintium/internal/repository"
)

// access resolves callers' roles. It is embedded by every project-scoped
// service.
type access struct {
	projects repository.ProjectRepository
	members  repository.MemberRepository
}

// roleForRead returns the caller's role in projectID.
//
// A missing project is ErrNotFound; an existing project the caller does not
// belong to is ErrNotAMember.
func (a access) roleForRead(ctx context.Context, projectID, caller string) (permission.Role, error) {
	role, err := a.members.GetMemberRole(ctx, projectID, caller)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, apperror.ErrNotAMember) {
		return "", fmt.Errorf("resolving role: %w", err)
	}
	if _, perr := a.projects.GetProject(ctx, projectID); perr != nil {
		return "", perr
	}
	return "", err
}

// authorize checks that caller may perform action in projectID.
//
// Non-members are denied with ErrForbidden (not ErrNotAMember): on a
// mutation the answer is "you may not", whatever the reason.
func (a access) authorize(ctx context.Context, projectID, caller string, action permission.Action) error {
	role, err := a.roleForRead(ctx, projectID, caller)
	if err != nil {
		if errors.Is(err, apperror.ErrNotAMember) {
			return apperror.Forbidden(fmt.Sprintf("%s is not a member of project %s", caller, projectID))
		}
		return err
	}
	return permission.Require(role, action)
}

// projectFor loads a project and stamps the caller's role on it.
func (a access) projectFor(ctx context.Context, projectID, caller string) (*model.Project, error) {
	p, err := a.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	role, ok := p.RoleOf(caller)
	if !ok {
		return nil, apperror.NotAMember(projectID, caller)
	}
	p.CurrentUserRole = role
	return p, nil
}

// logFailure logs err unless it is an expected domain error.
func logFailure(logger *slog.Logger, msg string, err error, attrs ...slog.Attr) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return
	}
	args := make([]any, 0, len(attrs)+1)
	for _, a := range attrs {
		args = append(args, a)
	}
	args = append(args, slog.String("error", err.Error()))
	logger.Error(msg, args...)
}

package service

import (
	"context"
	"log/slog"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/metrics"
	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/permission"
	"github.com/sakif/sprintium/internal/repository"
)

// MembershipService adds, re-roles and removes project members. Every
// operation returns the project as it stands afterwards.
//
// Nothing stops an Admin from demoting or removing themselves, or from
// removing the owner.
type MembershipService struct {
	access
	metrics metrics.Recorder
	logger  *slog.Logger
}

func NewMembershipService(projects repository.ProjectRepository, members repository.MemberRepository, rec metrics.Recorder, logger *slog.Logger) *MembershipService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &MembershipService{
		access:  access{projects: projects, members: members},
		metrics: rec,
		logger:  logger,
	}
}

// Add grants email a role in the project. An existing member is
// apperror.ErrAlreadyMember; change the role instead.
func (s *MembershipService) Add(ctx context.Context, caller, projectID, email string, role permission.Role) (*model.Project, error) {
	if err := s.authorize(ctx, projectID, caller, permission.AddMember); err != nil {
		return nil, err
	}
	email, err := validateMember(email, role)
	if err != nil {
		return nil, err
	}

	if err := s.members.AddMember(ctx, projectID, model.Member{Email: email, Role: role}); err != nil {
		logFailure(s.logger, "failed to add member", err, slog.String("project", projectID))
		return nil, err
	}
	s.metrics.RecordMembershipChange("add")
	s.logger.Info("member added",
		slog.String("project", projectID),
		slog.String("email", email),
		slog.String("role", role.String()),
	)
	return s.projectFor(ctx, projectID, caller)
}

// SetRole changes an existing member's role. A missing member is
// apperror.ErrNotAMember.
func (s *MembershipService) SetRole(ctx context.Context, caller, projectID, email string, role permission.Role) (*model.Project, error) {
	if err := s.authorize(ctx, projectID, caller, permission.ChangeMemberRole); err != nil {
		return nil, err
	}
	email, err := validateMember(email, role)
	if err != nil {
		return nil, err
	}

	if err := s.members.SetMemberRole(ctx, projectID, email, role); err != nil {
		logFailure(s.logger, "failed to change member role", err, slog.String("project", projectID))
		return nil, err
	}
	s.metrics.RecordMembershipChange("set_role")
	s.logger.Info("member role changed",
		slog.String("project", projectID),
		slog.String("email", email),
		slog.String("role", role.String()),
	)
	return s.projectFor(ctx, projectID, caller)
}

// Remove drops a member. A missing member is apperror.ErrNotAMember.
//
// If the caller removes themselves the returned project carries no
// CurrentUserRole and is still returned.
func (s *MembershipService) Remove(ctx context.Context, caller, projectID, email string) (*model.Project, error) {
	if err := s.authorize(ctx, projectID, caller, permission.RemoveMember); err != nil {
		return nil, err
	}
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "member email is required")
	}

	if err := s.members.RemoveMember(ctx, projectID, email); err != nil {
		logFailure(s.logger, "failed to remove member", err, slog.String("project", projectID))
		return nil, err
	}
	s.metrics.RecordMembershipChange("remove")
	s.logger.Info("member removed", slog.String("project", projectID), slog.String("email", email))

	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if role, ok := p.RoleOf(caller); ok {
		p.CurrentUserRole = role
	}
	return p, nil
}

func validateMember(email string, role permission.Role) (string, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return "", apperror.ValidationFailed("email", "member email is required")
	}
	if !role.Valid() {
		return "", apperror.ValidationFailed("role", "role must be one of Admin, Member, Viewer")
	}
	return email, nil
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/permission"
	"github.com/sakif/sprintium/internal/repository"
	"github.com/sakif/sprintium/internal/sanitize"
)

const (
	MaxProjectNameLength = 100
	MinProjectKeyLength  = 2
	MaxProjectKeyLength  = 10
	MaxDescriptionLength = 10000
)

// ProjectService handles project CRUD. Creating a project is open to any
// authenticated user; editing and deleting need the EditProject and
// DeleteProject permissions.
type ProjectService struct {
	access
	logger *slog.Logger
}

func NewProjectService(projects repository.ProjectRepository, members repository.MemberRepository, logger *slog.Logger) *ProjectService {
	return &ProjectService{
		access: access{projects: projects, members: members},
		logger: logger,
	}
}

// ProjectInput carries the editable fields of a project. Key is only read
// on create.
type ProjectInput struct {
	Name        string
	Key         string
	Description string
	Type        string
}

// Create stores a new project owned by caller. The caller becomes its first
// member, as Admin.
func (s *ProjectService) Create(ctx context.Context, caller string, in ProjectInput) (*model.Project, error) {
	if !permission.CanCreateProject() {
		return nil, apperror.Forbidden("project creation is disabled")
	}

	name, description, typ, err := validateProjectFields(in)
	if err != nil {
		return nil, err
	}
	key, err := normalizeKey(in.Key)
	if err != nil {
		return nil, err
	}

	caller = model.NormalizeEmail(caller)
	p := &model.Project{
		Name:        name,
		Key:         key,
		Description: description,
		Type:        typ,
		Owner:       caller,
		Members:     []model.Member{{Email: caller, Role: permission.Admin}},
	}
	if err := s.projects.CreateProject(ctx, p); err != nil {
		logFailure(s.logger, "failed to create project", err, slog.String("key", key))
		return nil, err
	}
	p.CurrentUserRole = permission.Admin

	s.logger.Info("project created",
		slog.String("id", p.ID),
		slog.String("key", p.Key),
		slog.String("owner", p.Owner),
	)
	return p, nil
}

// List returns the projects caller is a member of, each stamped with the
// caller's role.
func (s *ProjectService) List(ctx context.Context, caller string) ([]model.Project, error) {
	projects, err := s.projects.ListProjectsForMember(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	for i := range projects {
		if role, ok := projects[i].RoleOf(caller); ok {
			projects[i].CurrentUserRole = role
		}
	}
	return projects, nil
}

// Get returns one project. Non-members get apperror.ErrNotAMember.
func (s *ProjectService) Get(ctx context.Context, caller, projectID string) (*model.Project, error) {
	return s.projectFor(ctx, projectID, caller)
}

// Update replaces name, description and type. The key is immutable.
func (s *ProjectService) Update(ctx context.Context, caller, projectID string, in ProjectInput) (*model.Project, error) {
	if err := s.authorize(ctx, projectID, caller, permission.EditProject); err != nil {
		return nil, err
	}

	name, description, typ, err := validateProjectFields(in)
	if err != nil {
		return nil, err
	}

	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	p.Name = name
	p.Description = description
	p.Type = typ

	if err := s.projects.UpdateProject(ctx, p); err != nil {
		logFailure(s.logger, "failed to update project", err, slog.String("id", projectID))
		return nil, err
	}

	s.logger.Info("project updated", slog.String("id", projectID), slog.String("by", caller))
	return s.projectFor(ctx, projectID, caller)
}

// Delete removes the project with its issues and memberships.
func (s *ProjectService) Delete(ctx context.Context, caller, projectID string) error {
	if err := s.authorize(ctx, projectID, caller, permission.DeleteProject); err != nil {
		return err
	}
	if err := s.projects.DeleteProject(ctx, projectID); err != nil {
		logFailure(s.logger, "failed to delete project", err, slog.String("id", projectID))
		return err
	}
	s.logger.Info("project deleted", slog.String("id", projectID), slog.String("by", caller))
	return nil
}

func validateProjectFields(in ProjectInput) (string, string, model.ProjectType, error) {
	name := sanitize.Text(in.Name)
	if name == "" {
		return "", "", "", apperror.ValidationFailed("name", "project name is required")
	}
	if len(name) > MaxProjectNameLength {
		return "", "", "", apperror.ValidationFailed("name",
			fmt.Sprintf("project name must be %d characters or less", MaxProjectNameLength))
	}

	description := sanitize.RichText(in.Description)
	if len(description) > MaxDescriptionLength {
		return "", "", "", apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	typ, err := model.ParseProjectType(in.Type)
	if err != nil {
		return "", "", "", err
	}
	return name, description, typ, nil
}

// normalizeKey upper-cases the key and checks it is 2–10 letters or digits.
func normalizeKey(key string) (string, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if len(key) < MinProjectKeyLength || len(key) > MaxProjectKeyLength {
		return "", apperror.ValidationFailed("key",
			fmt.Sprintf("project key must be %d to %d characters", MinProjectKeyLength, MaxProjectKeyLength))
	}
	for _, r := range key {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", apperror.ValidationFailed("key", "project key may only contain letters and digits")
		}
	}
	return key, nil
}

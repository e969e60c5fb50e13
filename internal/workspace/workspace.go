// Package workspace is the screen layer shared by every front end.
//
// Each gated operation follows the same path:
//
//	session.Subject()            no session → ErrUnauthenticated, no remote call
//	registry.RoleOf(project, me) not a member → ErrForbidden
//	permission.Require(role, a)  denied → ErrForbidden
//	remote write
//	full re-fetch                the fetched aggregate is the new state
//
// Nothing is retried and nothing is mutated locally before the remote
// confirms it.
package workspace

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/board"
	"github.com/sakif/sprintium/internal/client"
	"github.com/sakif/sprintium/internal/membership"
	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/permission"
)

// Session is the credential holder.
type Session interface {
	Establish(credential string) error
	Current() (string, error)
	Clear()
	Subject() (string, error)
}

// API is the part of the remote the workspace calls directly. Membership
// and issue calls go through the registry and the board.
type API interface {
	Register(ctx context.Context, username, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*model.User, error)

	ListProjects(ctx context.Context) ([]model.Project, error)
	CreateProject(ctx context.Context, in client.ProjectInput) (*model.Project, error)
	UpdateProject(ctx context.Context, projectID string, in client.ProjectInput) (*model.Project, error)
	DeleteProject(ctx context.Context, projectID string) error
}

// Deps bundles the workspace's collaborators.
type Deps struct {
	Session  Session
	API      API
	Registry *membership.Registry
	Board    *board.Board
}

type Workspace struct {
	session  Session
	api      API
	registry *membership.Registry
	board    *board.Board
	logger   *slog.Logger
}

func New(deps Deps, logger *slog.Logger) *Workspace {
	return &Workspace{
		session:  deps.Session,
		api:      deps.API,
		registry: deps.Registry,
		board:    deps.Board,
		logger:   logger,
	}
}

// ==== Account ====

// Login authenticates and establishes the session.
func (w *Workspace) Login(ctx context.Context, email, password string) error {
	token, err := w.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := w.session.Establish(token); err != nil {
		return err
	}
	w.logger.Info("logged in", slog.String("email", email))
	return nil
}

func (w *Workspace) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	return w.api.Register(ctx, username, email, password)
}

// Logout revokes the token remotely and always clears the local session.
// The remote error, if any, is still returned.
func (w *Workspace) Logout(ctx context.Context) error {
	if _, err := w.session.Current(); err != nil {
		w.session.Clear()
		return err
	}
	err := w.api.Logout(ctx)
	w.session.Clear()
	if err != nil && !errors.Is(err, apperror.ErrUnauthenticated) {
		return err
	}
	return nil
}

func (w *Workspace) ForgotPassword(ctx context.Context, email string) (string, error) {
	return w.api.ForgotPassword(ctx, email)
}

func (w *Workspace) ResetPassword(ctx context.Context, token, newPassword string) error {
	return w.api.ResetPassword(ctx, token, newPassword)
}

// Whoami returns the logged-in user as the server knows them.
func (w *Workspace) Whoami(ctx context.Context) (*model.User, error) {
	if _, err := w.session.Current(); err != nil {
		return nil, err
	}
	return w.api.Me(ctx)
}

// ==== Projects ====

// Projects lists the projects the caller belongs to.
func (w *Workspace) Projects(ctx context.Context) ([]model.Project, error) {
	if _, err := w.session.Current(); err != nil {
		return nil, err
	}
	return w.api.ListProjects(ctx)
}

// OpenProject fetches a project and refreshes its member snapshot.
func (w *Workspace) OpenProject(ctx context.Context, projectID string) (*model.Project, error) {
	if _, err := w.session.Current(); err != nil {
		return nil, err
	}
	return w.registry.Load(ctx, projectID)
}

// CreateProject creates a project owned by the caller, who becomes its
// Admin.
func (w *Workspace) CreateProject(ctx context.Context, in client.ProjectInput) (*model.Project, error) {
	if _, err := w.session.Subject(); err != nil {
		return nil, err
	}
	if !permission.CanCreateProject() {
		return nil, apperror.Forbidden("you may not create projects")
	}

	created, err := w.api.CreateProject(ctx, in)
	if err != nil {
		return nil, err
	}
	w.logger.Info("project created", slog.String("project_id", created.ID), slog.String("key", created.Key))
	return w.registry.Load(ctx, created.ID)
}

// EditProject renames, re-describes or retypes a project. Admin only.
func (w *Workspace) EditProject(ctx context.Context, projectID string, in client.ProjectInput) (*model.Project, error) {
	if _, err := w.gate(ctx, projectID, permission.EditProject); err != nil {
		return nil, err
	}
	if _, err := w.api.UpdateProject(ctx, projectID, in); err != nil {
		return nil, err
	}
	return w.registry.Load(ctx, projectID)
}

// DeleteProject deletes a project and returns the caller's refreshed
// project list. Admin only.
func (w *Workspace) DeleteProject(ctx context.Context, projectID string) ([]model.Project, error) {
	if _, err := w.gate(ctx, projectID, permission.DeleteProject); err != nil {
		return nil, err
	}
	if err := w.api.DeleteProject(ctx, projectID); err != nil {
		return nil, err
	}
	w.registry.Forget(projectID)
	w.logger.Info("project deleted", slog.String("project_id", projectID))
	return w.api.ListProjects(ctx)
}

// ==== Members ====

func (w *Workspace) AddMember(ctx context.Context, projectID, email string, role permission.Role) (*model.Project, error) {
	if _, err := w.gate(ctx, projectID, permission.AddMember); err != nil {
		return nil, err
	}
	return w.registry.Add(ctx, projectID, email, role)
}

func (w *Workspace) ChangeMemberRole(ctx context.Context, projectID, email string, role permission.Role) (*model.Project, error) {
	if _, err := w.gate(ctx, projectID, permission.ChangeMemberRole); err != nil {
		return nil, err
	}
	return w.registry.SetRole(ctx, projectID, email, role)
}

func (w *Workspace) RemoveMember(ctx context.Context, projectID, email string) (*model.Project, error) {
	if _, err := w.gate(ctx, projectID, permission.RemoveMember); err != nil {
		return nil, err
	}
	return w.registry.Remove(ctx, projectID, email)
}

// ==== Issues ====

// Board returns the project's issues grouped by status. Any member may
// read it; a non-member gets apperror.ErrNotAMember.
func (w *Workspace) Board(ctx context.Context, projectID string) (board.Columns, error) {
	if _, err := w.role(ctx, projectID); err != nil {
		return nil, err
	}
	issues, err := w.board.Refresh(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return board.GroupByStatus(issues)
}

// CreateIssue adds an issue and returns the refreshed board.
func (w *Workspace) CreateIssue(ctx context.Context, projectID, title, description string, status model.Status) (board.Columns, error) {
	role, err := w.gate(ctx, projectID, permission.CreateIssue)
	if err != nil {
		return nil, err
	}
	issues, err := w.board.Create(ctx, projectID, title, description, status, role)
	if err != nil {
		return nil, err
	}
	return board.GroupByStatus(issues)
}

// DeleteIssue removes an issue and returns the refreshed board.
func (w *Workspace) DeleteIssue(ctx context.Context, projectID, issueID string) (board.Columns, error) {
	role, err := w.gate(ctx, projectID, permission.DeleteIssue)
	if err != nil {
		return nil, err
	}
	issues, err := w.board.Delete(ctx, projectID, issueID, role)
	if err != nil {
		return nil, err
	}
	return board.GroupByStatus(issues)
}

// role resolves the caller's role in projectID, loading the project's
// members on first use.
func (w *Workspace) role(ctx context.Context, projectID string) (permission.Role, error) {
	me, err := w.session.Subject()
	if err != nil {
		return "", err
	}
	if !w.registry.Loaded(projectID) {
		if _, err := w.registry.Load(ctx, projectID); err != nil {
			return "", err
		}
	}
	return w.registry.RoleOf(projectID, me)
}

// gate resolves the caller's role and checks it against action. A
// non-member is denied every action.
func (w *Workspace) gate(ctx context.Context, projectID string, action permission.Action) (permission.Role, error) {
	role, err := w.role(ctx, projectID)
	if errors.Is(err, apperror.ErrNotAMember) {
		return "", apperror.Forbidden("you are not a member of this project")
	}
	if err != nil {
		return "", err
	}
	if !role.Valid() {
		return "", apperror.Invariant("project %s lists role %q", projectID, role)
	}
	if err := permission.Require(role, action); err != nil {
		return "", err
	}
	return role, nil
}

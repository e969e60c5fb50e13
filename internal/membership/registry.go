// Package membership keeps the client's view of who holds which role in
// each project.
//
// The registry never edits a member list in place. Every successful write
// is followed by a full GET of the project, and the fetched list replaces
// the snapshot wholesale; a failed write or fetch leaves the previous
// snapshot untouched.
//
// The registry does not check permissions. Callers gate with
// permission.CanPerform before calling Add, SetRole or Remove.
package membership

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/permission"
)

// ProjectAPI is the remote side of the registry.
type ProjectAPI interface {
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	AddMember(ctx context.Context, projectID, email string, role permission.Role) (*model.Project, error)
	SetMemberRole(ctx context.Context, projectID, email string, role permission.Role) (*model.Project, error)
	RemoveMember(ctx context.Context, projectID, email string) (*model.Project, error)
}

// Registry holds the last fetched member list per project.
type Registry struct {
	api ProjectAPI

	mu        sync.RWMutex
	snapshots map[string][]model.Member
}

func NewRegistry(api ProjectAPI) *Registry {
	return &Registry{
		api:       api,
		snapshots: make(map[string][]model.Member),
	}
}

// Load fetches the project and replaces its snapshot.
func (r *Registry) Load(ctx context.Context, projectID string) (*model.Project, error) {
	p, err := r.api.GetProject(ctx, projectID)
	if err != nil {
		return nil, remoteErr("loading project", err)
	}

	r.mu.Lock()
	r.snapshots[projectID] = slices.Clone(p.Members)
	r.mu.Unlock()

	return p, nil
}

// Loaded reports whether a snapshot exists for projectID.
func (r *Registry) Loaded(projectID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.snapshots[projectID]
	return ok
}

// Forget drops the snapshot, e.g. after the project was deleted.
func (r *Registry) Forget(projectID string) {
	r.mu.Lock()
	delete(r.snapshots, projectID)
	r.mu.Unlock()
}

// Members returns a copy of the snapshot for projectID.
func (r *Registry) Members(projectID string) []model.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.snapshots[projectID])
}

// RoleOf returns email's role in projectID, or apperror.ErrNotAMember.
// Only explicit member rows count; being the owner grants nothing here.
func (r *Registry) RoleOf(projectID, email string) (permission.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if role, ok := lookup(r.snapshots[projectID], email); ok {
		return role, nil
	}
	return "", apperror.NotAMember(projectID, email)
}

// Add creates a membership. An existing pair is apperror.ErrAlreadyMember;
// use SetRole for it instead.
func (r *Registry) Add(ctx context.Context, projectID, email string, role permission.Role) (*model.Project, error) {
	if !role.Valid() {
		return nil, apperror.ValidationFailed("role", "role must be one of Admin, Member, Viewer")
	}
	if _, err := r.RoleOf(projectID, email); err == nil {
		return nil, apperror.AlreadyMember(projectID, email)
	}

	written, err := r.api.AddMember(ctx, projectID, email, role)
	if err != nil {
		return nil, remoteErr("adding member", err)
	}
	return r.reload(ctx, projectID, written)
}

// SetRole changes an existing member's role. An absent pair is
// apperror.ErrNotAMember and the snapshot is not touched.
func (r *Registry) SetRole(ctx context.Context, projectID, email string, role permission.Role) (*model.Project, error) {
	if !role.Valid() {
		return nil, apperror.ValidationFailed("role", "role must be one of Admin, Member, Viewer")
	}
	if _, err := r.RoleOf(projectID, email); err != nil {
		return nil, err
	}

	written, err := r.api.SetMemberRole(ctx, projectID, email, role)
	if err != nil {
		return nil, remoteErr("changing member role", err)
	}
	return r.reload(ctx, projectID, written)
}

// Remove deletes a membership. An absent pair is apperror.ErrNotAMember.
// Removing the owner, or the caller's own row, is allowed.
func (r *Registry) Remove(ctx context.Context, projectID, email string) (*model.Project, error) {
	if _, err := r.RoleOf(projectID, email); err != nil {
		return nil, err
	}

	written, err := r.api.RemoveMember(ctx, projectID, email)
	if err != nil {
		return nil, remoteErr("removing member", err)
	}
	return r.reload(ctx, projectID, written)
}

// reload refetches the project after a successful write. A caller who is
// no longer a member cannot read it; the written project stands in, so the
// next RoleOf answers ErrNotAMember without a remote call.
func (r *Registry) reload(ctx context.Context, projectID string, written *model.Project) (*model.Project, error) {
	p, err := r.Load(ctx, projectID)
	if !errors.Is(err, apperror.ErrNotAMember) {
		return p, err
	}
	r.mu.Lock()
	r.snapshots[projectID] = slices.Clone(written.Members)
	r.mu.Unlock()

	written.CurrentUserRole = ""
	return written, nil
}

func lookup(members []model.Member, email string) (permission.Role, bool) {
	email = model.NormalizeEmail(email)
	for _, m := range members {
		if model.NormalizeEmail(m.Email) == email {
			return m.Role, true
		}
	}
	return "", false
}

// remoteErr passes classified errors through and wraps anything else as
// apperror.ErrRemote.
func remoteErr(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Remote(op, err)
}

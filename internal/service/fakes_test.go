package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/permission"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore implements every repository interface in memory. It mirrors the
// SQLite behaviour the services rely on: normalised e-mails, ErrConflict on
// duplicates, ErrNotAMember for a missing (project, email) row.

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]model.User
	projects map[string]*model.Project
	issues   map[string]model.Issue
	revoked  map[string]time.Time
	nextID   int

	// set to simulate a database failure
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]model.User),
		projects: make(map[string]*model.Project),
		issues:   make(map[string]model.Issue),
		revoked:  make(map[string]time.Time),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// --- users ---

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	u.Email = model.NormalizeEmail(u.Email)
	if _, ok := f.users[u.Email]; ok {
		return &apperror.AppError{Err: apperror.ErrConflict, Message: "duplicate email", Field: "email"}
	}
	u.ID = f.id("user")
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.users[u.Email] = *u
	return nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[model.NormalizeEmail(email)]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	return &u, nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, email, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = model.NormalizeEmail(email)
	u, ok := f.users[email]
	if !ok {
		return apperror.NotFound("user", email)
	}
	u.PasswordHash = hash
	f.users[email] = u
	return nil
}

// --- projects ---

func (f *fakeStore) CreateProject(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	for _, existing := range f.projects {
		if existing.Key == p.Key {
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "duplicate key", Field: "key"}
		}
	}
	p.ID = f.id("proj")
	p.CreatedAt = time.Now()
	stored := *p
	stored.Members = append([]model.Member(nil), p.Members...)
	stored.CurrentUserRole = ""
	f.projects[p.ID] = &stored
	return nil
}

func (f *fakeStore) GetProject(_ context.Context, id string) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, apperror.NotFound("project", id)
	}
	cp := *p
	cp.Members = append([]model.Member(nil), p.Members...)
	return &cp, nil
}

func (f *fakeStore) ListProjectsForMember(_ context.Context, email string) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := make([]model.Project, 0)
	for _, p := range f.projects {
		if _, ok := p.RoleOf(email); ok {
			cp := *p
			cp.Members = append([]model.Member(nil), p.Members...)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateProject(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.projects[p.ID]
	if !ok {
		return apperror.NotFound("project", p.ID)
	}
	stored.Name, stored.Description, stored.Type = p.Name, p.Description, p.Type
	return nil
}

func (f *fakeStore) DeleteProject(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.projects[id]; !ok {
		return apperror.NotFound("project", id)
	}
	delete(f.projects, id)
	for iid, is := range f.issues {
		if is.ProjectID == id {
			delete(f.issues, iid)
		}
	}
	return nil
}

// --- members ---

func (f *fakeStore) GetMemberRole(_ context.Context, projectID, email string) (permission.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	p, ok := f.projects[projectID]
	if !ok {
		return "", apperror.NotAMember(projectID, email)
	}
	role, ok := p.RoleOf(email)
	if !ok {
		return "", apperror.NotAMember(projectID, email)
	}
	return role, nil
}

func (f *fakeStore) AddMember(_ context.Context, projectID string, m model.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.projects[projectID]
	if _, ok := p.RoleOf(m.Email); ok {
		return apperror.AlreadyMember(projectID, m.Email)
	}
	p.Members = append(p.Members, model.Member{Email: model.NormalizeEmail(m.Email), Role: m.Role})
	return nil
}

func (f *fakeStore) SetMemberRole(_ context.Context, projectID, email string, role permission.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.projects[projectID]
	for i := range p.Members {
		if p.Members[i].Email == model.NormalizeEmail(email) {
			p.Members[i].Role = role
			return nil
		}
	}
	return apperror.NotAMember(projectID, email)
}

func (f *fakeStore) RemoveMember(_ context.Context, projectID, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.projects[projectID]
	for i := range p.Members {
		if p.Members[i].Email == model.NormalizeEmail(email) {
			p.Members = append(p.Members[:i], p.Members[i+1:]...)
			return nil
		}
	}
	return apperror.NotAMember(projectID, email)
}

// --- issues ---

func (f *fakeStore) CreateIssue(_ context.Context, is *model.Issue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	is.ID = f.id("issue")
	is.CreatedAt = time.Now()
	is.UpdatedAt = is.CreatedAt
	f.issues[is.ID] = *is
	return nil
}

func (f *fakeStore) ListIssues(_ context.Context, projectID string) ([]model.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Issue, 0)
	for _, is := range f.issues {
		if is.ProjectID == projectID {
			out = append(out, is)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) DeleteIssue(_ context.Context, projectID, issueID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	is, ok := f.issues[issueID]
	if !ok || is.ProjectID != projectID {
		return apperror.NotFound("issue", issueID)
	}
	delete(f.issues, issueID)
	return nil
}

// --- denylist ---

func (f *fakeStore) Revoke(_ context.Context, tokenID string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[tokenID] = until
	return nil
}

func (f *fakeStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	until, ok := f.revoked[tokenID]
	return ok && time.Now().Before(until), nil
}

// =========================================================================
// FAKE METRICS
// =========================================================================

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{counts: make(map[string]int)}
}

func (r *countingRecorder) inc(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key]++
}

func (r *countingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

func (r *countingRecorder) RecordIssueOp(op string)          { r.inc("issue:" + op) }
func (r *countingRecorder) RecordMembershipChange(op string) { r.inc("member:" + op) }
func (r *countingRecorder) RecordAuthEvent(event, outcome string) {
	r.inc("auth:" + event + ":" + outcome)
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// seedProject stores a project owned by owner (Admin) plus extra members.
func seedProject(t *testing.T, store *fakeStore, key, owner string, extra ...model.Member) *model.Project {
	t.Helper()
	p := &model.Project{
		Name:    key + " project",
		Key:     key,
		Type:    model.ProjectSoftware,
		Owner:   owner,
		Members: append([]model.Member{{Email: owner, Role: permission.Admin}}, extra...),
	}
	if err := store.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("seeding project: %v", err)
	}
	return p
}

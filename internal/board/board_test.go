package board

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/permission"
)

type fakeIssues struct {
	issues []model.Issue
	next   int
	calls  int
}

func (f *fakeIssues) ListIssues(ctx context.Context, projectID string) ([]model.Issue, error) {
	f.calls++
	var out []model.Issue
	for _, is := range f.issues {
		if is.ProjectID == projectID {
			out = append(out, is)
		}
	}
	return out, nil
}

func (f *fakeIssues) CreateIssue(ctx context.Context, projectID string, issue model.Issue) (*model.Issue, error) {
	f.calls++
	f.next++
	issue.ID = fmt.Sprintf("i%d", f.next)
	issue.ProjectID = projectID
	f.issues = append(f.issues, issue)
	return &issue, nil
}

func (f *fakeIssues) DeleteIssue(ctx context.Context, projectID, issueID string) error {
	f.calls++
	for i, is := range f.issues {
		if is.ID == issueID && is.ProjectID == projectID {
			f.issues = append(f.issues[:i], f.issues[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("issue", issueID)
}

type fixedIdentity string

func (f fixedIdentity) Subject() (string, error) {
	if f == "" {
		return "", apperror.Unauthenticated("not logged in")
	}
	return string(f), nil
}

// ====================================================================
// GroupByStatus
// ====================================================================

func TestGroupByStatus_PartitionsAndKeepsOrder(t *testing.T) {
	statuses := model.Statuses()
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(30)
		in := make([]model.Issue, n)
		for i := range in {
			in[i] = model.Issue{ID: fmt.Sprintf("i%d", i), Status: statuses[rng.Intn(len(statuses))]}
		}

		cols, err := GroupByStatus(in)
		if err != nil {
			t.Fatalf("GroupByStatus: %v", err)
		}
		if len(cols) != 3 {
			t.Fatalf("expected 3 columns, got %d", len(cols))
		}
		if cols.Len() != n {
			t.Fatalf("issues dropped or duplicated: in %d, out %d", n, cols.Len())
		}

		seen := map[string]bool{}
		for status, issues := range cols {
			for _, is := range issues {
				if is.Status != status {
					t.Fatalf("issue %s in column %q has status %q", is.ID, status, is.Status)
				}
				if seen[is.ID] {
					t.Fatalf("issue %s duplicated", is.ID)
				}
				seen[is.ID] = true
			}
			// relative input order: ids were assigned in input order
			for i := 1; i < len(issues); i++ {
				var a, b int
				fmt.Sscanf(issues[i-1].ID, "i%d", &a)
				fmt.Sscanf(issues[i].ID, "i%d", &b)
				if a >= b {
					t.Fatalf("column %q out of order: %s before %s", status, issues[i-1].ID, issues[i].ID)
				}
			}
		}
	}
}

func TestGroupByStatus_EmptyHasAllColumns(t *testing.T) {
	cols, err := GroupByStatus(nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range model.Statuses() {
		issues, ok := cols[s]
		if !ok || issues == nil || len(issues) != 0 {
			t.Errorf("column %q: %v, present=%v", s, issues, ok)
		}
	}
}

func TestGroupByStatus_UnknownStatusIsInvariant(t *testing.T) {
	_, err := GroupByStatus([]model.Issue{
		{ID: "a", Status: model.StatusToDo},
		{ID: "b", Status: "Blocked"},
	})
	if !errors.Is(err, apperror.ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
}

// ====================================================================
// Create / Delete
// ====================================================================

func TestCreate_ViewerForbiddenMemberAllowed(t *testing.T) {
	api := &fakeIssues{}
	b := New(api, fixedIdentity("me@x.com"))
	ctx := context.Background()

	_, err := b.Create(ctx, "P", "Bug", "desc", model.StatusToDo, permission.Viewer)
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if api.calls != 0 {
		t.Fatal("forbidden create must not reach the remote")
	}

	issues, err := b.Create(ctx, "P", "Bug", "desc", model.StatusToDo, permission.Member)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("expected exactly one issue, got %d", len(issues))
	}
	if issues[0].Status != model.StatusToDo || issues[0].Reporter != "me@x.com" {
		t.Errorf("got %+v", issues[0])
	}
}

func TestCreate_DefaultsToToDo(t *testing.T) {
	b := New(&fakeIssues{}, fixedIdentity("me@x.com"))

	issues, err := b.Create(context.Background(), "P", "Bug", "", "", permission.Admin)
	if err != nil {
		t.Fatal(err)
	}
	if issues[0].Status != model.StatusToDo {
		t.Errorf("status = %q, want To Do", issues[0].Status)
	}
}

func TestCreate_ReturnsFullRefetchedList(t *testing.T) {
	api := &fakeIssues{issues: []model.Issue{
		{ID: "old", ProjectID: "P", Title: "Existing", Status: model.StatusDone},
		{ID: "other", ProjectID: "Q", Title: "Elsewhere", Status: model.StatusDone},
	}}
	b := New(api, fixedIdentity("me@x.com"))

	issues, err := b.Create(context.Background(), "P", "New", "", model.StatusInProgress, permission.Member)
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 2 {
		t.Fatalf("expected the whole project list (2), got %d", len(issues))
	}
}

func TestCreate_RejectsBadInputBeforeRemote(t *testing.T) {
	api := &fakeIssues{}
	b := New(api, fixedIdentity("me@x.com"))

	if _, err := b.Create(context.Background(), "P", "x", "", "Blocked", permission.Admin); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("unknown status: expected ErrValidation, got %v", err)
	}
	if _, err := b.Create(context.Background(), "P", "  ", "", "", permission.Admin); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("blank title: expected ErrValidation, got %v", err)
	}
	if api.calls != 0 {
		t.Error("invalid input must not reach the remote")
	}
}

func TestCreate_NoSession(t *testing.T) {
	api := &fakeIssues{}
	b := New(api, fixedIdentity(""))

	_, err := b.Create(context.Background(), "P", "x", "", "", permission.Admin)
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if api.calls != 0 {
		t.Error("no remote call without a session")
	}
}

func TestDelete(t *testing.T) {
	api := &fakeIssues{issues: []model.Issue{
		{ID: "a", ProjectID: "P", Status: model.StatusToDo},
		{ID: "b", ProjectID: "P", Status: model.StatusDone},
	}}
	b := New(api, fixedIdentity("me@x.com"))
	ctx := context.Background()

	if _, err := b.Delete(ctx, "P", "a", permission.Viewer); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("viewer: expected ErrForbidden, got %v", err)
	}

	issues, err := b.Delete(ctx, "P", "a", permission.Member)
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 1 || issues[0].ID != "b" {
		t.Errorf("got %+v", issues)
	}

	if _, err := b.Delete(ctx, "P", "a", permission.Member); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/permission"
)

// =========================================================================
// PROJECT TESTS
// =========================================================================

func TestCreateProject_WithOwnerRow(t *testing.T) {
	db := newTestDB(t)
	p := createTestProject(t, db, "CORE", "owner@x.com")

	if p.ID == "" {
		t.Fatal("CreateProject() did not set ID")
	}

	got, err := db.GetProject(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if got.Key != "CORE" || got.Owner != "owner@x.com" || got.Type != model.ProjectSoftware {
		t.Errorf("GetProject() = %+v", got)
	}
	if len(got.Members) != 1 || got.Members[0].Role != permission.Admin {
		t.Errorf("Members = %+v, want one Admin row", got.Members)
	}
}

func TestCreateProject_DuplicateKey(t *testing.T) {
	db := newTestDB(t)
	createTestProject(t, db, "DUP", "a@x.com")

	err := db.CreateProject(context.Background(), &model.Project{
		Name: "Other", Key: "DUP", Type: model.ProjectService, Owner: "b@x.com",
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("CreateProject() error = %v, want ErrConflict", err)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetProject(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetProject() error = %v, want ErrNotFound", err)
	}
}

func TestListProjectsForMember(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mine := createTestProject(t, db, "MINE", "me@x.com")
	theirs := createTestProject(t, db, "THEIRS", "them@x.com")
	if err := db.AddMember(ctx, theirs.ID, model.Member{Email: "me@x.com", Role: permission.Viewer}); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	createTestProject(t, db, "OTHER", "them@x.com")

	projects, err := db.ListProjectsForMember(ctx, "ME@x.com")
	if err != nil {
		t.Fatalf("ListProjectsForMember() error = %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("ListProjectsForMember() returned %d projects, want 2", len(projects))
	}
	if projects[0].ID != mine.ID || projects[1].ID != theirs.ID {
		t.Errorf("order = [%s %s], want [%s %s]", projects[0].Key, projects[1].Key, mine.Key, theirs.Key)
	}
	if len(projects[1].Members) != 2 {
		t.Errorf("members of THEIRS = %+v, want 2 rows", projects[1].Members)
	}
}

func TestUpdateProject(t *testing.T) {
	db := newTestDB(t)
	p := createTestProject(t, db, "UPD", "a@x.com")

	p.Name = "Renamed"
	p.Description = "new description"
	p.Type = model.ProjectService
	if err := db.UpdateProject(context.Background(), p); err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}

	got, _ := db.GetProject(context.Background(), p.ID)
	if got.Name != "Renamed" || got.Description != "new description" || got.Type != model.ProjectService {
		t.Errorf("after update = %+v", got)
	}
}

func TestDeleteProject_Cascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := createTestProject(t, db, "DEL", "a@x.com")

	issue := &model.Issue{ProjectID: p.ID, Title: "t", Status: model.StatusToDo, Reporter: "a@x.com"}
	if err := db.CreateIssue(ctx, issue); err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}

	if err := db.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}

	if _, err := db.GetProject(ctx, p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetProject() after delete error = %v, want ErrNotFound", err)
	}
	issues, _ := db.ListIssues(ctx, p.ID)
	if len(issues) != 0 {
		t.Errorf("issues survived project delete: %+v", issues)
	}
	if _, err := db.GetMemberRole(ctx, p.ID, "a@x.com"); !errors.Is(err, apperror.ErrNotAMember) {
		t.Errorf("member row survived project delete: %v", err)
	}
}

func TestDeleteProject_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.DeleteProject(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteProject() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// MEMBER TESTS
// =========================================================================

func TestMembers_AddSetRemove(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := createTestProject(t, db, "MEM", "owner@x.com")

	if err := db.AddMember(ctx, p.ID, model.Member{Email: "a@x.com", Role: permission.Member}); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if role, err := db.GetMemberRole(ctx, p.ID, "a@x.com"); err != nil || role != permission.Member {
		t.Fatalf("GetMemberRole() = %q, %v; want Member", role, err)
	}

	if err := db.SetMemberRole(ctx, p.ID, "a@x.com", permission.Admin); err != nil {
		t.Fatalf("SetMemberRole() error = %v", err)
	}
	if role, _ := db.GetMemberRole(ctx, p.ID, "a@x.com"); role != permission.Admin {
		t.Errorf("role after SetMemberRole = %q, want Admin", role)
	}

	if err := db.RemoveMember(ctx, p.ID, "a@x.com"); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	if _, err := db.GetMemberRole(ctx, p.ID, "a@x.com"); !errors.Is(err, apperror.ErrNotAMember) {
		t.Errorf("GetMemberRole() after remove error = %v, want ErrNotAMember", err)
	}
}

func TestAddMember_Duplicate(t *testing.T) {
	db := newTestDB(t)
	p := createTestProject(t, db, "DUPM", "owner@x.com")

	err := db.AddMember(context.Background(), p.ID, model.Member{Email: "OWNER@x.com", Role: permission.Viewer})
	if !errors.Is(err, apperror.ErrAlreadyMember) {
		t.Errorf("AddMember() error = %v, want ErrAlreadyMember", err)
	}

	// The original row is untouched.
	role, _ := db.GetMemberRole(context.Background(), p.ID, "owner@x.com")
	if role != permission.Admin {
		t.Errorf("role = %q, want Admin", role)
	}
}

func TestSetMemberRole_NotAMember(t *testing.T) {
	db := newTestDB(t)
	p := createTestProject(t, db, "NOPE", "owner@x.com")

	err := db.SetMemberRole(context.Background(), p.ID, "ghost@x.com", permission.Admin)
	if !errors.Is(err, apperror.ErrNotAMember) {
		t.Errorf("SetMemberRole() error = %v, want ErrNotAMember", err)
	}
	err = db.RemoveMember(context.Background(), p.ID, "ghost@x.com")
	if !errors.Is(err, apperror.ErrNotAMember) {
		t.Errorf("RemoveMember() error = %v, want ErrNotAMember", err)
	}
}

// The owner has no special protection at the storage layer.
func TestRemoveMember_Owner(t *testing.T) {
	db := newTestDB(t)
	p := createTestProject(t, db, "OWN", "owner@x.com")

	if err := db.RemoveMember(context.Background(), p.ID, "owner@x.com"); err != nil {
		t.Fatalf("RemoveMember(owner) error = %v", err)
	}
	got, _ := db.GetProject(context.Background(), p.ID)
	if got.Owner != "owner@x.com" || len(got.Members) != 0 {
		t.Errorf("after removing owner row: owner=%q members=%+v", got.Owner, got.Members)
	}
}

// Package board partitions a project's issues into workflow columns and
// gates issue creation and deletion.
//
// The board keeps no state of its own. Create and Delete return the full
// issue list fetched after the write, and that list replaces whatever the
// caller showed before.
package board

import (
	"context"
	"errors"
	"strings"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/permission"
)

// IssueAPI is the remote issue collection.
type IssueAPI interface {
	ListIssues(ctx context.Context, projectID string) ([]model.Issue, error)
	CreateIssue(ctx context.Context, projectID string, issue model.Issue) (*model.Issue, error)
	DeleteIssue(ctx context.Context, projectID, issueID string) error
}

// Identity names the current user.
type Identity interface {
	Subject() (string, error)
}

// Columns maps each workflow status to its issues in input order. All three
// statuses are always present.
type Columns map[model.Status][]model.Issue

// Len is the number of issues across all columns.
func (c Columns) Len() int {
	n := 0
	for _, issues := range c {
		n += len(issues)
	}
	return n
}

// GroupByStatus partitions issues by status, keeping relative order. An
// issue with a status outside the workflow is apperror.ErrInvariant.
func GroupByStatus(issues []model.Issue) (Columns, error) {
	cols := make(Columns, 3)
	for _, s := range model.Statuses() {
		cols[s] = []model.Issue{}
	}
	for _, is := range issues {
		if !is.Status.Valid() {
			return nil, apperror.Invariant("issue %s has unknown status %q", is.ID, is.Status)
		}
		cols[is.Status] = append(cols[is.Status], is)
	}
	return cols, nil
}

type Board struct {
	api IssueAPI
	who Identity
}

func New(api IssueAPI, who Identity) *Board {
	return &Board{api: api, who: who}
}

// Refresh fetches the project's issues.
func (b *Board) Refresh(ctx context.Context, projectID string) ([]model.Issue, error) {
	issues, err := b.api.ListIssues(ctx, projectID)
	if err != nil {
		return nil, remoteErr("listing issues", err)
	}
	return issues, nil
}

// Create adds an issue reported by the current user and returns the
// refetched list. An empty initialStatus means To Do.
func (b *Board) Create(ctx context.Context, projectID, title, description string, initialStatus model.Status, callerRole permission.Role) ([]model.Issue, error) {
	if !permission.CanPerform(callerRole, permission.CreateIssue) {
		return nil, apperror.Forbidden("your role does not allow creating issues")
	}

	status, err := model.ParseStatus(string(initialStatus))
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "issue title is required")
	}

	reporter, err := b.who.Subject()
	if err != nil {
		return nil, err
	}

	_, err = b.api.CreateIssue(ctx, projectID, model.Issue{
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		Status:      status,
		Reporter:    reporter,
	})
	if err != nil {
		return nil, remoteErr("creating issue", err)
	}
	return b.Refresh(ctx, projectID)
}

// Delete removes an issue and returns the refetched list. An id the remote
// does not know is apperror.ErrNotFound.
func (b *Board) Delete(ctx context.Context, projectID, issueID string, callerRole permission.Role) ([]model.Issue, error) {
	if !permission.CanPerform(callerRole, permission.DeleteIssue) {
		return nil, apperror.Forbidden("your role does not allow deleting issues")
	}

	if err := b.api.DeleteIssue(ctx, projectID, issueID); err != nil {
		return nil, remoteErr("deleting issue", err)
	}
	return b.Refresh(ctx, projectID)
}

func remoteErr(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Remote(op, err)
}

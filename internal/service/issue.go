package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/metrics"
	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/permission"
	"github.com/sakif/sprintium/internal/repository"
	"github.com/sakif/sprintium/internal/sanitize"
)

const MaxIssueTitleLength = 200

// IssueService lists, creates and deletes issues. Issues are never edited
// in place; a status change is a delete plus a create.
type IssueService struct {
	access
	issues  repository.IssueRepository
	metrics metrics.Recorder
	logger  *slog.Logger
}

func NewIssueService(
	projects repository.ProjectRepository,
	members repository.MemberRepository,
	issues repository.IssueRepository,
	rec metrics.Recorder,
	logger *slog.Logger,
) *IssueService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &IssueService{
		access:  access{projects: projects, members: members},
		issues:  issues,
		metrics: rec,
		logger:  logger,
	}
}

// IssueInput carries a new issue's fields. An empty Status means To Do.
type IssueInput struct {
	Title       string
	Description string
	Status      string
	Assignee    string
}

// List returns every issue of the project. Any member, Viewer included,
// may read.
func (s *IssueService) List(ctx context.Context, caller, projectID string) ([]model.Issue, error) {
	if _, err := s.roleForRead(ctx, projectID, caller); err != nil {
		return nil, err
	}
	issues, err := s.issues.ListIssues(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	return issues, nil
}

// Create adds an issue reported by caller.
func (s *IssueService) Create(ctx context.Context, caller, projectID string, in IssueInput) (*model.Issue, error) {
	if err := s.authorize(ctx, projectID, caller, permission.CreateIssue); err != nil {
		return nil, err
	}

	title := sanitize.Text(in.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "issue title is required")
	}
	if len(title) > MaxIssueTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("issue title must be %d characters or less", MaxIssueTitleLength))
	}
	description := sanitize.RichText(in.Description)
	if len(description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	status, err := model.ParseStatus(in.Status)
	if err != nil {
		return nil, err
	}

	issue := &model.Issue{
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		Status:      status,
		Reporter:    model.NormalizeEmail(caller),
		Assignee:    model.NormalizeEmail(in.Assignee),
	}
	if err := s.issues.CreateIssue(ctx, issue); err != nil {
		logFailure(s.logger, "failed to create issue", err, slog.String("project", projectID))
		return nil, fmt.Errorf("creating issue: %w", err)
	}

	s.metrics.RecordIssueOp("create")
	s.logger.Info("issue created",
		slog.String("id", issue.ID),
		slog.String("project", projectID),
		slog.String("status", string(issue.Status)),
	)
	return issue, nil
}

// Delete removes an issue. An id that is not in the project is
// apperror.ErrNotFound.
func (s *IssueService) Delete(ctx context.Context, caller, projectID, issueID string) error {
	if err := s.authorize(ctx, projectID, caller, permission.DeleteIssue); err != nil {
		return err
	}
	if err := s.issues.DeleteIssue(ctx, projectID, issueID); err != nil {
		logFailure(s.logger, "failed to delete issue", err, slog.String("id", issueID))
		return err
	}
	s.metrics.RecordIssueOp("delete")
	s.logger.Info("issue deleted", slog.String("id", issueID), slog.String("project", projectID))
	return nil
}

package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/repository"
)

var _ repository.IssueRepository = (*DB)(nil)

// CreateIssue inserts an issue and fills in ID and timestamps.
// xid IDs sort by creation time, which keeps ListIssues stable for issues
// created within the same clock tick.
func (db *DB) CreateIssue(ctx context.Context, issue *model.Issue) error {
	now := time.Now()
	issue.ID = xid.New().String()
	issue.CreatedAt = now
	issue.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO issues (id, project_id, title, description, status, reporter, assignee, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID,
		issue.ProjectID,
		issue.Title,
		issue.Description,
		string(issue.Status),
		issue.Reporter,
		issue.Assignee,
		issue.CreatedAt,
		issue.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating issue in %s: %w", issue.ProjectID, err)
	}
	return nil
}

// ListIssues returns a project's issues in creation order.
func (db *DB) ListIssues(ctx context.Context, projectID string) ([]model.Issue, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, project_id, title, description, status, reporter, assignee, created_at, updated_at
		 FROM issues
		 WHERE project_id = ?
		 ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing issues of %s: %w", projectID, err)
	}
	defer rows.Close()

	issues := make([]model.Issue, 0)
	for rows.Next() {
		var (
			i      model.Issue
			status string
		)
		if err := rows.Scan(
			&i.ID, &i.ProjectID, &i.Title, &i.Description, &status,
			&i.Reporter, &i.Assignee, &i.CreatedAt, &i.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning issue row: %w", err)
		}
		i.Status = model.Status(status)
		issues = append(issues, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating issues: %w", err)
	}
	return issues, nil
}

// DeleteIssue removes an issue only if it belongs to projectID, so an id
// from another project reads as not found.
func (db *DB) DeleteIssue(ctx context.Context, projectID, issueID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM issues WHERE id = ? AND project_id = ?`,
		issueID, projectID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting issue %s: %w", issueID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("issue", issueID)
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/permission"
	"github.com/sakif/sprintium/internal/repository"
)

var _ repository.ProjectRepository = (*DB)(nil)

// CreateProject inserts the project and its initial member rows in one
// transaction, so a project never exists without its creator's Admin row.
//
// TRANSACTIONS:
// BeginTx returns a *sql.Tx bound to one connection. Every statement goes
// through tx, and either Commit makes all of them visible or Rollback
// discards all of them. The deferred Rollback is a no-op after a successful
// Commit.
func (db *DB) CreateProject(ctx context.Context, project *model.Project) error {
	project.ID = xid.New().String()
	project.CreatedAt = time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning create project: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO projects (id, name, key, description, type, owner, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		project.ID,
		project.Name,
		project.Key,
		project.Description,
		string(project.Type),
		project.Owner,
		project.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: fmt.Sprintf("project key %s is already taken", project.Key),
				Field:   "key",
			}
		}
		return fmt.Errorf("sqlite: inserting project %s: %w", project.Key, err)
	}

	for _, m := range project.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO project_members (project_id, email, role) VALUES (?, ?, ?)`,
			project.ID, model.NormalizeEmail(m.Email), string(m.Role),
		); err != nil {
			return fmt.Errorf("sqlite: inserting member %s: %w", m.Email, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing create project: %w", err)
	}
	return nil
}

// GetProject returns the project with its member rows in insertion order.
func (db *DB) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var (
		p        model.Project
		projType string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, key, description, type, owner, created_at
		 FROM projects WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.Name, &p.Key, &p.Description, &projType, &p.Owner, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("project", id)
		}
		return nil, fmt.Errorf("sqlite: getting project %s: %w", id, err)
	}
	p.Type = model.ProjectType(projType)

	members, err := db.listMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Members = members

	return &p, nil
}

// ListProjectsForMember returns every project that has a member row for
// email, oldest first.
func (db *DB) ListProjectsForMember(ctx context.Context, email string) ([]model.Project, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT p.id, p.name, p.key, p.description, p.type, p.owner, p.created_at
		 FROM projects p
		 JOIN project_members m ON m.project_id = p.id
		 WHERE m.email = ?
		 ORDER BY p.created_at, p.id`,
		model.NormalizeEmail(email),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing projects for %s: %w", email, err)
	}
	defer rows.Close()

	projects := make([]model.Project, 0)
	for rows.Next() {
		var (
			p        model.Project
			projType string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Key, &p.Description, &projType, &p.Owner, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning project row: %w", err)
		}
		p.Type = model.ProjectType(projType)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating projects: %w", err)
	}

	// Members are loaded after the cursor is closed: with a single
	// connection (":memory:") a nested query would wait forever.
	rows.Close()
	for i := range projects {
		members, err := db.listMembers(ctx, projects[i].ID)
		if err != nil {
			return nil, err
		}
		projects[i].Members = members
	}

	return projects, nil
}

// UpdateProject rewrites name, description and type. Key, owner and
// members are not touched.
func (db *DB) UpdateProject(ctx context.Context, project *model.Project) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, type = ? WHERE id = ?`,
		project.Name, project.Description, string(project.Type), project.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating project %s: %w", project.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("project", project.ID)
	}
	return nil
}

// DeleteProject removes the project, its members and its issues.
// The children are deleted explicitly so the result does not depend on the
// connection having foreign keys enabled.
func (db *DB) DeleteProject(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning delete project: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting issues of project %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting members of project %s: %w", id, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting project %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("project", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing delete project: %w", err)
	}
	return nil
}

func (db *DB) listMembers(ctx context.Context, projectID string) ([]model.Member, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT email, role FROM project_members WHERE project_id = ? ORDER BY rowid`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing members of %s: %w", projectID, err)
	}
	defer rows.Close()

	members := make([]model.Member, 0)
	for rows.Next() {
		var (
			m    model.Member
			role string
		)
		if err := rows.Scan(&m.Email, &role); err != nil {
			return nil, fmt.Errorf("sqlite: scanning member row: %w", err)
		}
		m.Role = permission.Role(role)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating members: %w", err)
	}
	return members, nil
}

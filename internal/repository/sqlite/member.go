package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/permission"
	"github.com/sakif/sprintium/internal/repository"
)

var _ repository.MemberRepository = (*DB)(nil)

// GetMemberRole returns the explicit role row for (projectID, email), or
// apperror.ErrNotAMember.
func (db *DB) GetMemberRole(ctx context.Context, projectID, email string) (permission.Role, error) {
	email = model.NormalizeEmail(email)

	var role string
	err := db.conn.QueryRowContext(ctx,
		`SELECT role FROM project_members WHERE project_id = ? AND email = ?`,
		projectID, email,
	).Scan(&role)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", apperror.NotAMember(projectID, email)
		}
		return "", fmt.Errorf("sqlite: getting role of %s in %s: %w", email, projectID, err)
	}
	return permission.Role(role), nil
}

// AddMember inserts a row; the (project_id, email) primary key turns a
// duplicate into apperror.ErrAlreadyMember.
func (db *DB) AddMember(ctx context.Context, projectID string, member model.Member) error {
	email := model.NormalizeEmail(member.Email)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO project_members (project_id, email, role) VALUES (?, ?, ?)`,
		projectID, email, string(member.Role),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.AlreadyMember(projectID, email)
		}
		return fmt.Errorf("sqlite: adding member %s to %s: %w", email, projectID, err)
	}
	return nil
}

func (db *DB) SetMemberRole(ctx context.Context, projectID, email string, role permission.Role) error {
	email = model.NormalizeEmail(email)

	result, err := db.conn.ExecContext(ctx,
		`UPDATE project_members SET role = ? WHERE project_id = ? AND email = ?`,
		string(role), projectID, email,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting role of %s in %s: %w", email, projectID, err)
	}
	return notAMemberIfUnchanged(result, projectID, email)
}

func (db *DB) RemoveMember(ctx context.Context, projectID, email string) error {
	email = model.NormalizeEmail(email)

	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = ? AND email = ?`,
		projectID, email,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing %s from %s: %w", email, projectID, err)
	}
	return notAMemberIfUnchanged(result, projectID, email)
}

func notAMemberIfUnchanged(result sql.Result, projectID, email string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotAMember(projectID, email)
	}
	return nil
}

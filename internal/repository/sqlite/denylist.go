package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/sprintium/internal/repository"
)

var _ repository.TokenDenylist = (*DB)(nil)

// Revoke records tokenID as unusable until `until`. Revoking twice keeps the
// later expiry. Expiries are stored as unix seconds so they compare as
// integers in SQL.
func (db *DB) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO revoked_tokens (token_id, expires_at) VALUES (?, ?)
		 ON CONFLICT(token_id) DO UPDATE SET expires_at = MAX(expires_at, excluded.expires_at)`,
		tokenID, until.Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: revoking token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID is on the list and not yet expired.
func (db *DB) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var expiresAt int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT expires_at FROM revoked_tokens WHERE token_id = ?`,
		tokenID,
	).Scan(&expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("sqlite: checking revoked token: %w", err)
	}
	return time.Now().Unix() < expiresAt, nil
}

// PurgeRevoked drops entries whose tokens have expired on their own and
// returns how many rows were removed.
func (db *DB) PurgeRevoked(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at <= ?`, now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: purging revoked tokens: %w", err)
	}
	return result.RowsAffected()
}

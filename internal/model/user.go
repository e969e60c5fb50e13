// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Users are identified across projects by e-mail: membership rows, issue
// reporters and the JWT subject all carry the e-mail, not the internal ID.
// The e-mail is stored lower-cased so "A@x.com" and "a@x.com" are one user.
//
// WHY `json:"-"` ON PasswordHash?
// The hash must never leave the server. The "-" tag makes encoding/json skip
// the field entirely, so even a handler that serialises a whole User by
// mistake cannot leak it.
type User struct {
	ID           string    `json:"id"         db:"id"`
	Username     string    `json:"username"   db:"username"`
	Email        string    `json:"email"      db:"email"`
	PasswordHash string    `json:"-"          db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

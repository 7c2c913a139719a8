package models

import "time"

// Role values stored on users.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account resolved by the authentication gate.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	Phone        *string   `db:"phone" json:"phone"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// IsAdmin reports whether the user may read every booking.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

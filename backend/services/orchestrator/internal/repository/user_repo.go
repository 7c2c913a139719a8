package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"evorchestrator/backend/services/orchestrator/internal/models"
)

const userColumns = `id, email, name, phone, password_hash, role, created_at`

// UserRepository handles CRUD for users table.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository returns repository instance.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	const query = `
		INSERT INTO users (email, name, phone, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return r.db.QueryRowxContext(ctx, query, user.Email, user.Name, user.Phone, user.PasswordHash, user.Role).
		Scan(&user.ID, &user.CreatedAt)
}

// UpsertByEmail creates the user or refreshes the display name of an existing one.
func (r *UserRepository) UpsertByEmail(ctx context.Context, email, name string) (*models.User, error) {
	const query = `
		INSERT INTO users (email, name, password_hash, role)
		VALUES ($1, $2, '', 'user')
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
		RETURNING ` + userColumns
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(strings.TrimSpace(email)), name); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail fetches a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	return r.get(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

// GetByID fetches a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.get(ctx, query, id)
}

func (r *UserRepository) get(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// lockUser serialises vehicle writes of one owner for the rest of tx.
func lockUser(ctx context.Context, tx *sqlx.Tx, userID int64) error {
	var id int64
	if err := tx.GetContext(ctx, &id, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

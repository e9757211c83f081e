package repository

import (
	"context"
	"database/sql"

	"localchat/backend/internal/model"
)

type sqliteUserRepository struct {
	db *sql.DB
}

func NewSQLiteUserRepository(db *sql.DB) UserRepository {
	return &sqliteUserRepository{db: db}
}

const userColumns = "id, username, email, password_hash, google_id, auth_provider, created_at, updated_at, last_login"

func (r *sqliteUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	query := "INSERT INTO users (" + userColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		nullable(user.Email),
		nullable(user.PasswordHash),
		nullable(user.GoogleID),
		user.AuthProvider,
		user.CreatedAt,
		user.UpdatedAt,
		nullable(user.LastLogin),
	)
	return err
}

func (r *sqliteUserRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

func (r *sqliteUserRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
}

func (r *sqliteUserRepository) GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE google_id = ?", googleID)
}

func (r *sqliteUserRepository) UpdateLastLogin(ctx context.Context, id, lastLogin string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET last_login = ? WHERE id = ?", lastLogin, id)
	if err != nil {
		return err
	}
	return requireRowsAffected(res)
}

func (r *sqliteUserRepository) getUser(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	var user model.User
	var email, passwordHash, googleID, lastLogin sql.NullString
	err := row.Scan(&user.ID, &user.Username, &email, &passwordHash, &googleID, &user.AuthProvider, &user.CreatedAt, &user.UpdatedAt, &lastLogin)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user.Email = email.String
	user.PasswordHash = passwordHash.String
	user.GoogleID = googleID.String
	user.LastLogin = lastLogin.String
	return &user, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Package postgres implements the engine's RoleStore on PostgreSQL via
// pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	authcore "github.com/authcore-io/authcore"
)

// Store is a RoleStore backed by a users table keyed by email.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Connect opens a pool against databaseURL with sane defaults.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return pool, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*authcore.User, error) {
	query := `
		SELECT name, email, role, password_hash, verified
		FROM users
		WHERE email = $1
		LIMIT 1;
	`
	row := s.db.QueryRow(ctx, query, email)

	var user authcore.User
	err := row.Scan(&user.Name, &user.Email, &user.Role, &user.PasswordHash, &user.Verified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

func (s *Store) Create(ctx context.Context, user *authcore.User) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO users (name, email, role, password_hash, verified, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, now(), now())
    `, user.Name, user.Email, user.Role, user.PasswordHash, user.Verified)

	return err
}

func (s *Store) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now()
		WHERE email = $1
	`, email, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no user with email %s", email)
	}

	return nil
}

func (s *Store) SetVerified(ctx context.Context, email string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET verified = true, updated_at = now()
		WHERE email = $1
	`, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no user with email %s", email)
	}

	return nil
}

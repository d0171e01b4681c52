package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/tgordeev/weather-balance-service/internal/models"
	"github.com/tgordeev/weather-balance-service/internal/store"
)

// UserStore implements store.UserStore on SQLite.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a SQLite-backed UserStore over an opened database.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a new user and sets its generated id.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, balance) VALUES (?, ?)`,
		user.Username, user.Balance,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return store.ErrDuplicateUsername
		}
		return fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID returns the user with the given id.
func (s *UserStore) GetByID(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, balance FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.Username, &user.Balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, store.ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("query user by id: %w", err)
	}
	return user, nil
}

// List returns all users ordered by id.
func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, balance FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Balance); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// Update overwrites the user's username and balance.
func (s *UserStore) Update(ctx context.Context, user models.User) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = ?, balance = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		user.Username, user.Balance, user.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return store.ErrDuplicateUsername
		}
		return fmt.Errorf("update user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

// Delete removes the user with the given id.
func (s *UserStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

// ApplyBalanceDelta adds delta to the user's balance in a single UPDATE so
// concurrent updates for the same user serialize inside SQLite and no
// read-modify-write interleaving can lose a write. Returns the new balance.
func (s *UserStore) ApplyBalanceDelta(ctx context.Context, id int64, delta float64) (float64, error) {
	var newBalance float64
	err := s.db.QueryRowContext(ctx,
		`UPDATE users SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? RETURNING balance`,
		delta, id,
	).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrUserNotFound
		}
		return 0, fmt.Errorf("apply balance delta: %w", err)
	}
	return newBalance, nil
}

// SeedDefaultUsers inserts n users named User-1..User-n with random balances
// in [5000, 15000] when the table is empty. Used for local development.
func (s *UserStore) SeedDefaultUsers(ctx context.Context, n int) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	for i := 1; i <= n; i++ {
		user := models.User{
			Username: fmt.Sprintf("User-%d", i),
			Balance:  float64(5000 + rand.Intn(10001)),
		}
		if err := s.Create(ctx, &user); err != nil {
			return fmt.Errorf("seed user %d: %w", i, err)
		}
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite unique constraint
// violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}

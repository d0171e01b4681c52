package store

import (
	"context"
	"errors"

	"github.com/tgordeev/weather-balance-service/internal/models"
)

// ErrUserNotFound is returned when no user exists for the given id.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateUsername is returned when creating a user with a username that
// already exists.
var ErrDuplicateUsername = errors.New("username already exists")

// UserStore is key-value style persistence for user records keyed by id.
// ApplyBalanceDelta must be atomic per user: concurrent calls for the same
// id never lose an update.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, user models.User) error
	Delete(ctx context.Context, id int64) error

	// ApplyBalanceDelta adds delta (which may be negative) to the user's
	// balance in a single atomic read-modify-write and returns the new
	// balance. Returns ErrUserNotFound without writing when id is absent.
	ApplyBalanceDelta(ctx context.Context, id int64, delta float64) (float64, error)
}

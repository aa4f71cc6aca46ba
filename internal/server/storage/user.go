package storage

import (
	"context"
	"time"

	"github.com/iudanet/accountd/internal/models"
)

// UserStorage defines interface for user data persistence
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if username or email is taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByIdentifier retrieves user by username or email,
	// whichever matches first; at least one must be non-empty
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByIdentifier(ctx context.Context, username, email string) (*models.User, error)

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// UpdateRefreshToken overwrites the user's current refresh token
	// nil clears the token (logout)
	// Returns ErrUserNotFound if user doesn't exist
	UpdateRefreshToken(ctx context.Context, userID string, token *string) error

	// UpdateLastLogin updates the last login timestamp
	UpdateLastLogin(ctx context.Context, userID string, lastLogin time.Time) error
}

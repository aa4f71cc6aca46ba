package handlers

import (
	"context"

	"github.com/iudanet/accountd/internal/models"
)

// contextKey тип для ключей контекста
type contextKey string

const (
	// CurrentUserKey ключ для хранения аутентифицированного пользователя
	// в контексте запроса; кладется request authenticator'ом, живет
	// ровно один запрос
	CurrentUserKey contextKey = "current_user"
)

// WithCurrentUser кладет пользователя (без секретных полей) в контекст
func WithCurrentUser(ctx context.Context, user *models.PublicUser) context.Context {
	return context.WithValue(ctx, CurrentUserKey, user)
}

// GetCurrentUser извлекает аутентифицированного пользователя из контекста
func GetCurrentUser(ctx context.Context) (*models.PublicUser, bool) {
	user, ok := ctx.Value(CurrentUserKey).(*models.PublicUser)
	return user, ok
}

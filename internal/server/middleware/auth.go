package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/accountd/internal/server/handlers"
	"github.com/iudanet/accountd/internal/server/storage"
	"github.com/iudanet/accountd/internal/server/token"
	"github.com/iudanet/accountd/pkg/api"
)

// Auth создает middleware, которое резолвит действующего пользователя
// по access token из cookie или заголовка Authorization
// Это синхронный gate: до downstream handler'а запрос доходит только
// с полностью загруженной identity в контексте, частичного прохода нет
func Auth(logger *slog.Logger, tokens *token.Service, users storage.UserStorage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractAccessToken(r)
			if tokenString == "" {
				logger.Warn("missing access token",
					"method", r.Method,
					"path", r.URL.Path)
				writeError(logger, w, "unauthorized request: no access token provided", http.StatusUnauthorized)
				return
			}

			// Сначала подпись и срок действия
			claims, err := tokens.VerifyAccessToken(tokenString)
			if err != nil {
				// Для клиента ответ единый, различие видно в логах
				if errors.Is(err, token.ErrExpiredToken) {
					logger.Warn("expired access token", "path", r.URL.Path)
				} else {
					logger.Warn("invalid access token", "path", r.URL.Path, "error", err)
				}
				writeError(logger, w, "invalid or expired access token", http.StatusUnauthorized)
				return
			}

			// Подпись корректна, но аккаунт мог быть удален
			user, err := users.GetUserByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, storage.ErrUserNotFound) {
					logger.Warn("access token for unknown user", "user_id", claims.UserID)
					writeError(logger, w, "invalid or expired access token", http.StatusUnauthorized)
					return
				}
				logger.Error("failed to load user for access token", "error", err)
				writeError(logger, w, "internal server error", http.StatusInternalServerError)
				return
			}

			// Кладем identity без секретных полей в контекст запроса
			ctx := handlers.WithCurrentUser(r.Context(), user.Public())

			logger.Debug("user authenticated", "user_id", user.ID, "username", user.Username)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractAccessToken достает access token из cookie accessToken либо
// из заголовка "Authorization: Bearer <token>"
func extractAccessToken(r *http.Request) string {
	if c, err := r.Cookie(handlers.AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return parts[1]
}

// writeError отправляет ошибку в едином конверте API
func writeError(logger *slog.Logger, w http.ResponseWriter, message string, statusCode int) {
	resp := api.Response{
		StatusCode: statusCode,
		Message:    message,
		Success:    false,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to encode error response", slog.Any("error", err))
	}
}

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/accountd/internal/models"
	"github.com/iudanet/accountd/pkg/api"
)

// Имена cookie для пары токенов
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookieConfig настройки cookie-конверта для токенов
// MaxAge относится к самой cookie и не зависит от exp внутри токена
type CookieConfig struct {
	MaxAge time.Duration
	Secure bool
}

// sendJSON отправляет успешный ответ в едином конверте
func sendJSON(logger *slog.Logger, w http.ResponseWriter, data any, statusCode int, message string) {
	resp := api.Response{
		StatusCode: statusCode,
		Data:       data,
		Message:    message,
		Success:    statusCode < 400,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет ошибку в едином конверте, без sensitive полей
func sendError(logger *slog.Logger, w http.ResponseWriter, message string, statusCode int) {
	resp := api.Response{
		StatusCode: statusCode,
		Message:    message,
		Success:    false,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to encode JSON error response", slog.Any("error", err))
	}
}

// setAuthCookies выставляет пару http-only cookie с токенами
func setAuthCookies(w http.ResponseWriter, tokens models.TokenPair, cfg CookieConfig) {
	maxAge := int(cfg.MaxAge.Seconds())
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    tokens.AccessToken,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    tokens.RefreshToken,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearAuthCookies сбрасывает обе cookie (logout)
func clearAuthCookies(w http.ResponseWriter, cfg CookieConfig) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.Secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

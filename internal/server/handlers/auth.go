package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/iudanet/accountd/internal/server/auth"
	"github.com/iudanet/accountd/internal/server/token"
	"github.com/iudanet/accountd/pkg/api"
)

// maxUploadSize лимит размера multipart тела регистрации (аватар + обложка)
const maxUploadSize = 16 << 20 // 16 MiB

// AuthHandler обрабатывает запросы регистрации и жизненного цикла сессии
type AuthHandler struct {
	logger  *slog.Logger
	auth    *auth.Service
	cookies CookieConfig
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, authService *auth.Service, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		auth:    authService,
		cookies: cookies,
	}
}

// Register обрабатывает POST /api/v1/users/register
// Принимает multipart form: fullname, email, username, password,
// файл avatar (обязателен) и файл coverImage (опционален)
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.logger.WarnContext(ctx, "failed to parse multipart form", slog.Any("error", err))
		sendError(h.logger, w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	in := auth.RegisterInput{
		Fullname: r.FormValue("fullname"),
		Email:    r.FormValue("email"),
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
	}

	// Сохраняем принятые файлы во временные, дальше ими владеет
	// media uploader
	avatarPath, err := h.saveUpload(r, "avatar")
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to save avatar upload", slog.Any("error", err))
		sendError(h.logger, w, "failed to accept uploaded file", http.StatusBadRequest)
		return
	}
	in.AvatarPath = avatarPath

	coverPath, err := h.saveUpload(r, "coverImage")
	if err != nil {
		removeIfExists(avatarPath)
		h.logger.ErrorContext(ctx, "failed to save cover image upload", slog.Any("error", err))
		sendError(h.logger, w, "failed to accept uploaded file", http.StatusBadRequest)
		return
	}
	in.CoverImagePath = coverPath

	user, err := h.auth.Register(ctx, in)
	if err != nil {
		// При ошибке до/вместо загрузки временные файлы еще на диске
		removeIfExists(in.AvatarPath)
		removeIfExists(in.CoverImagePath)

		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, auth.ErrAvatarRequired):
			sendError(h.logger, w, "avatar file is required", http.StatusBadRequest)
		case errors.Is(err, auth.ErrUserExists):
			sendError(h.logger, w, "user with this username or email already exists", http.StatusConflict)
		default:
			h.logger.ErrorContext(ctx, "registration failed", slog.Any("error", err))
			sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	sendJSON(h.logger, w, user, http.StatusCreated, "User registered successfully")
}

// Login обрабатывает POST /api/v1/users/login
// Аутентификация по username или email + паролю
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode login request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.auth.Login(ctx, auth.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingIdentifier):
			sendError(h.logger, w, "username or email is required", http.StatusBadRequest)
		case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidCredentials):
			// Не раскрываем, что именно не совпало: какой именно шаг
			// упал видно только в логах
			h.logger.WarnContext(ctx, "login failed", slog.Any("error", err))
			sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
		default:
			h.logger.ErrorContext(ctx, "login failed", slog.Any("error", err))
			sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	setAuthCookies(w, session.Tokens, h.cookies)
	sendJSON(h.logger, w, sessionData(session), http.StatusOK, "User logged in successfully")
}

// Refresh обрабатывает POST /api/v1/users/refresh
// Принимает refresh token из body или из cookie, body имеет приоритет
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	refreshToken := h.incomingRefreshToken(r)

	session, err := h.auth.Refresh(ctx, refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUnauthorized):
			sendError(h.logger, w, "unauthorized request", http.StatusUnauthorized)
		case errors.Is(err, token.ErrInvalidToken),
			errors.Is(err, token.ErrExpiredToken),
			errors.Is(err, auth.ErrTokenMismatch),
			errors.Is(err, auth.ErrUserNotFound):
			// Единый ответ на любую невалидность, чтобы не давать
			// oracle для подбора токенов
			h.logger.WarnContext(ctx, "refresh rejected", slog.Any("error", err))
			sendError(h.logger, w, "invalid refresh token", http.StatusUnauthorized)
		default:
			h.logger.ErrorContext(ctx, "refresh failed", slog.Any("error", err))
			sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	setAuthCookies(w, session.Tokens, h.cookies)
	sendJSON(h.logger, w, sessionData(session), http.StatusOK, "Tokens refreshed successfully")
}

// Logout обрабатывает POST /api/v1/users/logout
// Требует валидный access token (route за auth middleware)
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetCurrentUser(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized request", http.StatusUnauthorized)
		return
	}

	if err := h.auth.Logout(ctx, user.ID); err != nil {
		h.logger.ErrorContext(ctx, "logout failed", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	clearAuthCookies(w, h.cookies)
	sendJSON(h.logger, w, struct{}{}, http.StatusOK, "User logged out successfully")
}

// Me обрабатывает GET /api/v1/users/me
// Возвращает пользователя, положенного в контекст authenticator'ом
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := GetCurrentUser(r.Context())
	if !ok {
		sendError(h.logger, w, "unauthorized request", http.StatusUnauthorized)
		return
	}

	sendJSON(h.logger, w, user, http.StatusOK, "Current user fetched successfully")
}

// incomingRefreshToken достает refresh token из body либо из cookie
func (h *AuthHandler) incomingRefreshToken(r *http.Request) string {
	var req api.RefreshRequest
	if r.Body != nil {
		// Тело опционально: ошибки декодирования игнорируем и
		// падаем назад на cookie
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.RefreshToken != "" {
		return req.RefreshToken
	}

	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		return c.Value
	}

	return ""
}

// saveUpload копирует принятый multipart файл во временный файл
// Возвращает пустой путь, если поле не передано
func (h *AuthHandler) saveUpload(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read form file %q: %w", field, err)
	}
	defer func() {
		_ = file.Close()
	}()

	return copyToTemp(file, header)
}

// copyToTemp пишет содержимое во временный файл, сохраняя расширение
func copyToTemp(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := filepath.Ext(header.Filename)

	tmp, err := os.CreateTemp("", "accountd-upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	return tmp.Name(), nil
}

// removeIfExists удаляет временный файл, молча пропуская уже удаленные
// (uploader стирает файл сам после успешной загрузки)
func removeIfExists(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}

// sessionData собирает payload ответа login/refresh
func sessionData(s *auth.Session) api.SessionData {
	return api.SessionData{
		User:         s.User,
		AccessToken:  s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
		ExpiresIn:    s.Tokens.ExpiresIn,
	}
}

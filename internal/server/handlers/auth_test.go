package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/accountd/internal/crypto"
	"github.com/iudanet/accountd/internal/models"
	"github.com/iudanet/accountd/internal/server/auth"
	"github.com/iudanet/accountd/internal/server/storage"
	"github.com/iudanet/accountd/internal/server/token"
	"github.com/iudanet/accountd/pkg/api"
)

// mockUserStorage is a mock implementation of UserStorage for testing
type mockUserStorage struct {
	users map[string]*models.User // id -> User
}

func newMockUserStorage() *mockUserStorage {
	return &mockUserStorage{users: make(map[string]*models.User)}
}

func (m *mockUserStorage) CreateUser(ctx context.Context, user *models.User) error {
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return storage.ErrUserAlreadyExists
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserStorage) GetUserByIdentifier(ctx context.Context, username, email string) (*models.User, error) {
	for _, u := range m.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserStorage) UpdateRefreshToken(ctx context.Context, userID string, tok *string) error {
	u, ok := m.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.RefreshToken = tok
	return nil
}

func (m *mockUserStorage) UpdateLastLogin(ctx context.Context, userID string, lastLogin time.Time) error {
	u, ok := m.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.LastLogin = &lastLogin
	return nil
}

// mockUploader is a mock implementation of media.Uploader
// Удаляет локальный файл, как настоящий uploader
type mockUploader struct{}

func (m *mockUploader) Upload(ctx context.Context, localPath string) (string, error) {
	_ = os.Remove(localPath)
	return "https://media.example.com/" + uuid.New().String() + ".png", nil
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func setupAuthHandler(users *mockUserStorage) *AuthHandler {
	logger := setupTestLogger()

	tokens := token.NewService(token.Config{
		AccessSecret:    []byte("access-secret-key"),
		RefreshSecret:   []byte("refresh-secret-key"),
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	})

	svc := auth.NewService(logger, users, tokens, &mockUploader{})

	return NewAuthHandler(logger, svc, CookieConfig{
		MaxAge: 24 * time.Hour,
		Secure: true,
	})
}

func seedUser(t *testing.T, users *mockUserStorage, username, email, password string) *models.User {
	t.Helper()

	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		Fullname:     "Test User",
		PasswordHash: hash,
		AvatarURL:    "https://media.example.com/avatar.png",
		CreatedAt:    time.Now(),
	}
	users.users[user.ID] = user
	return user
}

// decodeResponse разбирает конверт ответа
func decodeResponse(t *testing.T, body io.Reader) api.Response {
	t.Helper()

	var resp api.Response
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

// sessionFromResponse вытаскивает SessionData из поля data конверта
func sessionFromResponse(t *testing.T, resp api.Response) api.SessionData {
	t.Helper()

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)

	var data api.SessionData
	require.NoError(t, json.Unmarshal(raw, &data))
	return data
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func doLogin(t *testing.T, h *AuthHandler, body api.LoginRequest) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	h.Login(w, req)
	return w
}

func TestAuthHandler_Login_Success(t *testing.T) {
	users := newMockUserStorage()
	h := setupAuthHandler(users)
	user := seedUser(t, users, "alice", "a@x.com", "secret-password")

	w := doLogin(t, h, api.LoginRequest{Username: "alice", Password: "secret-password"})

	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w.Body)
	assert.True(t, resp.Success)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := sessionFromResponse(t, resp)
	assert.NotEmpty(t, data.AccessToken)
	assert.NotEmpty(t, data.RefreshToken)
	require.NotNil(t, data.User)
	assert.Equal(t, user.ID, data.User.ID)

	// Refresh token в ответе совпадает с сохраненным
	require.NotNil(t, user.RefreshToken)
	assert.Equal(t, data.RefreshToken, *user.RefreshToken)

	// Обе cookie выставлены с нужными флагами
	cookies := w.Result().Cookies()
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c := cookieByName(cookies, name)
		require.NotNil(t, c, "cookie %s", name)
		assert.NotEmpty(t, c.Value)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
		assert.Equal(t, int((24 * time.Hour).Seconds()), c.MaxAge)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	users := newMockUserStorage()
	h := setupAuthHandler(users)
	seedUser(t, users, "alice", "a@x.com", "secret-password")

	tests := []struct {
		name     string
		body     api.LoginRequest
		wantCode int
	}{
		{
			name:     "wrong password",
			body:     api.LoginRequest{Username: "alice", Password: "wrong-password"},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "unknown user",
			body:     api.LoginRequest{Username: "ghost", Password: "secret-password"},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "missing identifier",
			body:     api.LoginRequest{Password: "secret-password"},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doLogin(t, h, tt.body)
			assert.Equal(t, tt.wantCode, w.Code)

			resp := decodeResponse(t, w.Body)
			assert.False(t, resp.Success)
			// Cookie не выставляются при ошибке
			assert.Empty(t, w.Result().Cookies())
		})
	}
}

func TestAuthHandler_Login_UniformErrorMessage(t *testing.T) {
	users := newMockUserStorage()
	h := setupAuthHandler(users)
	seedUser(t, users, "alice", "a@x.com", "secret-password")

	// Неизвестный пользователь и неверный пароль неразличимы снаружи
	w1 := doLogin(t, h, api.LoginRequest{Username: "ghost", Password: "secret-password"})
	w2 := doLogin(t, h, api.LoginRequest{Username: "alice", Password: "wrong-password"})

	resp1 := decodeResponse(t, w1.Body)
	resp2 := decodeResponse(t, w2.Body)
	assert.Equal(t, resp1.Message, resp2.Message)
	assert.Equal(t, w1.Code, w2.Code)
}

func TestAuthHandler_Login_BadBody(t *testing.T) {
	h := setupAuthHandler(newMockUserStorage())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	h.Login(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Refresh_FromBody(t *testing.T) {
	users := newMockUserStorage()
	h := setupAuthHandler(users)
	seedUser(t, users, "alice", "a@x.com", "secret-password")

	login := doLogin(t, h, api.LoginRequest{Username: "alice", Password: "secret-password"})
	loginData := sessionFromResponse(t, decodeResponse(t, login.Body))

	payload, err := json.Marshal(api.RefreshRequest{RefreshToken: loginData.RefreshToken})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	h.Refresh(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	data := sessionFromResponse(t, decodeResponse(t, w.Body))
	assert.NotEmpty(t, data.RefreshToken)
	assert.NotEqual(t, loginData.RefreshToken, data.RefreshToken)
}

func TestAuthHandler_Refresh_FromCookie(t *testing.T) {
	users := newMockUserStorage()
	h := setupAuthHandler(users)
	seedUser(t, users, "alice", "a@x.com", "secret-password")

	login := doLogin(t, h, api.LoginRequest{Username: "alice", Password: "secret-password"})
	refreshCookie := cookieByName(login.Result().Cookies(), RefreshTokenCookie)
	require.NotNil(t, refreshCookie)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", nil)
	req.AddCookie(refreshCookie)
	w := httptest.NewRecorder()
	h.Refresh(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	data := sessionFromResponse(t, decodeResponse(t, w.Body))
	assert.NotEqual(t, refreshCookie.Value, data.RefreshToken)
}

func TestAuthHandler_Refresh_MissingToken(t *testing.T) {
	h := setupAuthHandler(newMockUserStorage())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", nil)
	w := httptest.NewRecorder()
	h.Refresh(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Refresh_InvalidToken(t *testing.T) {
	h := setupAuthHandler(newMockUserStorage())

	payload, err := json.Marshal(api.RefreshRequest{RefreshToken: "garbage-token"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	h.Refresh(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	resp := decodeResponse(t, w.Body)
	assert.Equal(t, "invalid refresh token", resp.Message)
}

func TestAuthHandler_Logout(t *testing.T) {
	users := newMockUserStorage()
	h := setupAuthHandler(users)
	user := seedUser(t, users, "alice", "a@x.com", "secret-password")

	login := doLogin(t, h, api.LoginRequest{Username: "alice", Password: "secret-password"})
	require.Equal(t, http.StatusOK, login.Code)
	require.NotNil(t, user.RefreshToken)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req = req.WithContext(WithCurrentUser(req.Context(), user.Public()))
	w := httptest.NewRecorder()
	h.Logout(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	// Сохраненный refresh token очищен
	assert.Nil(t, user.RefreshToken)

	// Cookie сброшены
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c := cookieByName(w.Result().Cookies(), name)
		require.NotNil(t, c, "cookie %s", name)
		assert.Empty(t, c.Value)
		assert.Equal(t, -1, c.MaxAge)
	}
}

func TestAuthHandler_Logout_NoContextUser(t *testing.T) {
	h := setupAuthHandler(newMockUserStorage())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	w := httptest.NewRecorder()
	h.Logout(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Me(t *testing.T) {
	users := newMockUserStorage()
	h := setupAuthHandler(users)
	user := seedUser(t, users, "alice", "a@x.com", "secret-password")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req = req.WithContext(WithCurrentUser(req.Context(), user.Public()))
	w := httptest.NewRecorder()
	h.Me(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w.Body)
	assert.True(t, resp.Success)

	// В data нет секретных полей
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")
	assert.NotContains(t, string(raw), "refresh_token")
}

func TestAuthHandler_Me_Unauthorized(t *testing.T) {
	h := setupAuthHandler(newMockUserStorage())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	w := httptest.NewRecorder()
	h.Me(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// multipartBody собирает multipart form регистрации
func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func doRegister(t *testing.T, h *AuthHandler, fields map[string]string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.Register(w, req)
	return w
}

func registerFields() map[string]string {
	return map[string]string{
		"fullname": "Alice Smith",
		"email":    "a@x.com",
		"username": "alice",
		"password": "secret-password",
	}
}

func TestAuthHandler_Register_Success(t *testing.T) {
	users := newMockUserStorage()
	h := setupAuthHandler(users)

	w := doRegister(t, h, registerFields(), map[string][]byte{
		"avatar":     []byte("fake image data"),
		"coverImage": []byte("fake cover data"),
	})

	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeResponse(t, w.Body)
	assert.True(t, resp.Success)

	// Пользователь создан с загруженными URL
	stored, err := users.GetUserByIdentifier(context.Background(), "alice", "")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.AvatarURL)
	assert.NotEmpty(t, stored.CoverImageURL)
}

func TestAuthHandler_Register_MissingAvatar(t *testing.T) {
	h := setupAuthHandler(newMockUserStorage())

	w := doRegister(t, h, registerFields(), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Register_DuplicateUser(t *testing.T) {
	users := newMockUserStorage()
	h := setupAuthHandler(users)
	seedUser(t, users, "alice", "a@x.com", "secret-password")

	w := doRegister(t, h, registerFields(), map[string][]byte{
		"avatar": []byte("fake image data"),
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandler_Register_InvalidFields(t *testing.T) {
	h := setupAuthHandler(newMockUserStorage())

	fields := registerFields()
	fields["password"] = "short"

	w := doRegister(t, h, fields, map[string][]byte{
		"avatar": []byte("fake image data"),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// Полный сценарий: регистрация, вход, ротация, отказ при повторе
func TestAuthHandler_FullScenario(t *testing.T) {
	users := newMockUserStorage()
	h := setupAuthHandler(users)

	// Регистрация alice
	w := doRegister(t, h, registerFields(), map[string][]byte{
		"avatar": []byte("fake image data"),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Login
	login := doLogin(t, h, api.LoginRequest{Username: "alice", Password: "secret-password"})
	require.Equal(t, http.StatusOK, login.Code)

	loginData := sessionFromResponse(t, decodeResponse(t, login.Body))
	require.NotEmpty(t, loginData.AccessToken)
	require.NotEmpty(t, loginData.RefreshToken)

	// Сохраненный токен совпадает с возвращенным
	stored, err := users.GetUserByIdentifier(context.Background(), "alice", "")
	require.NoError(t, err)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, loginData.RefreshToken, *stored.RefreshToken)

	// Refresh выдает другой токен
	payload, err := json.Marshal(api.RefreshRequest{RefreshToken: loginData.RefreshToken})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", bytes.NewReader(payload))
	w = httptest.NewRecorder()
	h.Refresh(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	refreshData := sessionFromResponse(t, decodeResponse(t, w.Body))
	assert.NotEqual(t, loginData.RefreshToken, refreshData.RefreshToken)

	// Повтор исходного токена отклоняется
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", bytes.NewReader(payload))
	w = httptest.NewRecorder()
	h.Refresh(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// Проверяем, что login не оставляет лишних данных в конверте ошибки
func TestAuthHandler_ErrorEnvelopeShape(t *testing.T) {
	h := setupAuthHandler(newMockUserStorage())

	w := doLogin(t, h, api.LoginRequest{Username: "ghost", Password: "secret-password"})

	var raw map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&raw))

	assert.Equal(t, false, raw["success"])
	assert.Equal(t, float64(http.StatusUnauthorized), raw["statusCode"])
	assert.NotEmpty(t, raw["message"])
	_, hasData := raw["data"]
	assert.False(t, hasData)
}

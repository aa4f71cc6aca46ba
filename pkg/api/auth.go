package api

import "github.com/iudanet/accountd/internal/models"

// LoginRequest представляет запрос на аутентификацию
// Достаточно одного из username/email
type LoginRequest struct {
	Username string `json:"username,omitempty"` // username пользователя
	Email    string `json:"email,omitempty"`    // email пользователя
	Password string `json:"password"`           // пароль в открытом виде (поверх TLS)
}

// RefreshRequest представляет запрос на ротацию токенов
// Токен также принимается из cookie refreshToken, body имеет приоритет
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

// SessionData данные успешного login/refresh
type SessionData struct {
	User         *models.PublicUser `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
	ExpiresIn    int64              `json:"expiresIn"` // время жизни access token в секундах
}

// Response единый конверт ответа API
// Success всегда согласован со StatusCode: true для 2xx
type Response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

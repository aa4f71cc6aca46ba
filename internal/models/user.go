package models

import "time"

// User представляет пользователя в системе
type User struct {
	ID            string     `json:"id"`              // UUID пользователя
	Username      string     `json:"username"`        // уникальный username (lowercase)
	Email         string     `json:"email"`           // уникальный email
	Fullname      string     `json:"fullname"`        // полное имя
	PasswordHash  string     `json:"password_hash"`   // bcrypt хеш пароля
	AvatarURL     string     `json:"avatar_url"`      // URL аватара в media хранилище
	CoverImageURL string     `json:"cover_image_url"` // URL обложки (опционально)
	RefreshToken  *string    `json:"refresh_token"`   // текущий refresh token (nil = нет активной сессии)
	CreatedAt     time.Time  `json:"created_at"`      // время создания
	LastLogin     *time.Time `json:"last_login"`      // время последнего входа
}

// PublicUser представляет пользователя без секретных полей
// Используется во всех ответах API и в request context
type PublicUser struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Fullname      string     `json:"fullname"`
	AvatarURL     string     `json:"avatarUrl"`
	CoverImageURL string     `json:"coverImageUrl,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
}

// Public возвращает копию пользователя без password hash и refresh token
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Fullname:      u.Fullname,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		LastLogin:     u.LastLogin,
	}
}

// TokenPair представляет пару access + refresh токенов одной сессии
type TokenPair struct {
	AccessToken  string `json:"accessToken"`  // короткоживущий JWT
	RefreshToken string `json:"refreshToken"` // долгоживущий JWT, хранится на пользователе
	ExpiresIn    int64  `json:"expiresIn"`    // время жизни access token в секундах
}

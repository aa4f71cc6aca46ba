package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Ошибки верификации токенов
var (
	// ErrInvalidToken означает, что подпись или формат токена некорректны
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken означает, что токен корректно подписан, но истек
	ErrExpiredToken = errors.New("token expired")
)

// Claims представляет JWT claims для нашего приложения
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Config содержит конфигурацию для выпуска токенов
// Секреты access и refresh токенов обязаны различаться: компрометация
// одного класса не позволяет подделать другой
type Config struct {
	AccessSecret    []byte
	RefreshSecret   []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
}

// Service выпускает и проверяет подписанные токены
type Service struct {
	cfg Config
}

// NewService создает новый token service
func NewService(cfg Config) *Service {
	if cfg.Issuer == "" {
		cfg.Issuer = "accountd"
	}
	return &Service{cfg: cfg}
}

// IssueAccessToken создает новый короткоживущий JWT access token
// Возвращает токен и время его жизни в секундах
func (s *Service) IssueAccessToken(userID, username string) (string, int64, error) {
	tok, err := s.issue(userID, username, s.cfg.AccessSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", 0, fmt.Errorf("failed to issue access token: %w", err)
	}

	return tok, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// IssueRefreshToken создает новый долгоживущий JWT refresh token
// В отличие от access token несет только user id
func (s *Service) IssueRefreshToken(userID string) (string, error) {
	tok, err := s.issue(userID, "", s.cfg.RefreshSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return "", fmt.Errorf("failed to issue refresh token: %w", err)
	}

	return tok, nil
}

// VerifyAccessToken проверяет подпись и срок действия access token
func (s *Service) VerifyAccessToken(tokenString string) (*Claims, error) {
	return s.verify(tokenString, s.cfg.AccessSecret)
}

// VerifyRefreshToken проверяет подпись и срок действия refresh token
func (s *Service) VerifyRefreshToken(tokenString string) (*Claims, error) {
	return s.verify(tokenString, s.cfg.RefreshSecret)
}

// issue подписывает новый токен с указанным секретом и временем жизни
func (s *Service) issue(userID, username string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			// Уникальный jti: без него два токена, выпущенные в одну
			// секунду, были бы байт-в-байт одинаковы (iat/exp режутся
			// до секунд, подпись HS256 детерминирована) и ротация
			// refresh token становилась бы no-op
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// verify проверяет подпись до того, как доверять любым claims
func (s *Service) verify(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/accountd/internal/crypto"
	"github.com/iudanet/accountd/internal/models"
	"github.com/iudanet/accountd/internal/server/media"
	"github.com/iudanet/accountd/internal/server/storage"
	"github.com/iudanet/accountd/internal/server/token"
	"github.com/iudanet/accountd/internal/validation"
)

// Service реализует жизненный цикл сессии: login, refresh, logout
// и регистрацию пользователя
// Сервис не держит собственных блокировок: гонка двух конкурентных
// refresh с одним и тем же токеном разрешается сравнением с единственным
// сохраненным значением, проигравший получает ErrTokenMismatch
type Service struct {
	logger   *slog.Logger
	users    storage.UserStorage
	tokens   *token.Service
	uploader media.Uploader
}

// NewService создает новый сессионный сервис
func NewService(logger *slog.Logger, users storage.UserStorage, tokens *token.Service, uploader media.Uploader) *Service {
	return &Service{
		logger:   logger,
		users:    users,
		tokens:   tokens,
		uploader: uploader,
	}
}

// Session результат успешного login или refresh
type Session struct {
	User   *models.PublicUser
	Tokens models.TokenPair
}

// RegisterInput входные данные регистрации
// AvatarPath и CoverImagePath локальные пути уже принятых файлов,
// их загрузка во внешнее хранилище происходит внутри Register
type RegisterInput struct {
	Fullname       string
	Email          string
	Username       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// LoginInput входные данные login: идентификатор (username или email,
// достаточно одного) и пароль
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// Register создает нового пользователя
// Порядок: валидация, проверка занятости username/email, загрузка
// аватара (обязателен) и обложки (опциональна), создание записи
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	if err := validateRegisterInput(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	username := strings.ToLower(in.Username)
	email := strings.ToLower(in.Email)

	// Проверяем занятость до загрузки файлов, чтобы не заливать
	// картинки заведомо обреченной регистрации
	_, err := s.users.GetUserByIdentifier(ctx, username, email)
	switch {
	case err == nil:
		return nil, ErrUserExists
	case !errors.Is(err, storage.ErrUserNotFound):
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	if in.AvatarPath == "" {
		return nil, ErrAvatarRequired
	}

	avatarURL, err := s.uploader.Upload(ctx, in.AvatarPath)
	if err != nil {
		s.logger.ErrorContext(ctx, "avatar upload failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: avatar: %w", ErrUploadFailed, err)
	}

	var coverImageURL string
	if in.CoverImagePath != "" {
		coverImageURL, err = s.uploader.Upload(ctx, in.CoverImagePath)
		if err != nil {
			s.logger.ErrorContext(ctx, "cover image upload failed", slog.Any("error", err))
			return nil, fmt.Errorf("%w: cover image: %w", ErrUploadFailed, err)
		}
	}

	passwordHash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:            uuid.New().String(),
		Username:      username,
		Email:         email,
		Fullname:      in.Fullname,
		PasswordHash:  passwordHash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverImageURL,
		CreatedAt:     time.Now(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			// Гонка с параллельной регистрацией
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("username", username),
		slog.String("user_id", user.ID))

	return user.Public(), nil
}

// Login проверяет идентификатор и пароль, выпускает пару токенов
// и сохраняет новый refresh token на пользователе, затирая прежний
// Каждый шаг жесткий gate: ошибка прерывает поток
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if in.Username == "" && in.Email == "" {
		return nil, ErrMissingIdentifier
	}

	user, err := s.users.GetUserByIdentifier(ctx, strings.ToLower(in.Username), strings.ToLower(in.Email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !crypto.VerifyPassword(in.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	session, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	// Обновляем last_login; не критичная ошибка, логируем но не прерываем
	now := time.Now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to update last login", slog.Any("error", err))
	} else {
		session.User.LastLogin = &now
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("username", user.Username),
		slog.String("user_id", user.ID))

	return session, nil
}

// Refresh проверяет входящий refresh token, сравнивает его с текущим
// сохраненным значением и ротирует пару
// Сравнение verbatim это и есть revocation check: токен, подменённый
// более поздней ротацией, корректен по подписи, но уже не совпадает
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrUnauthorized
	}

	// Сначала подпись и срок действия, только потом доверяем claims
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		s.logger.WarnContext(ctx, "refresh token mismatch, possible replay",
			slog.String("user_id", user.ID))
		return nil, ErrTokenMismatch
	}

	// Ротация: каждый refresh token одноразовый
	session, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tokens refreshed", slog.String("user_id", user.ID))

	return session, nil
}

// Logout отзывает текущий refresh token пользователя
// Валидность access token уже проверена request authenticator'ом
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.users.UpdateRefreshToken(ctx, userID, nil); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged out", slog.String("user_id", userID))

	return nil
}

// startSession выпускает новую пару токенов и сохраняет refresh token
// на пользователе безусловной записью
// Если запрос оборвется после записи, но до ответа, ротация уже
// произошла и клиенту придется логиниться заново — принятый edge case
func (s *Service) startSession(ctx context.Context, user *models.User) (*Session, error) {
	accessToken, expiresIn, err := s.tokens.IssueAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenIssuance, err)
	}

	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenIssuance, err)
	}

	if err := s.users.UpdateRefreshToken(ctx, user.ID, &refreshToken); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return &Session{
		User: user.Public(),
		Tokens: models.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresIn:    expiresIn,
		},
	}, nil
}

// validateRegisterInput проверяет все обязательные поля регистрации
func validateRegisterInput(in RegisterInput) error {
	if err := validation.ValidateFullname(in.Fullname); err != nil {
		return err
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return err
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return err
	}
	return validation.ValidatePassword(in.Password)
}

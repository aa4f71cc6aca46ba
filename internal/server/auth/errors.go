package auth

import "errors"

// Ошибки сессионного сервиса
// Каждый fallible шаг из Login/Refresh/Logout возвращает свой вид ошибки,
// чтобы вызывающая сторона могла различать их через errors.Is
// Ошибки верификации токенов (bad signature, expired) живут в пакете token
var (
	// ErrMissingIdentifier не передан ни username, ни email
	ErrMissingIdentifier = errors.New("username or email is required")

	// ErrUserNotFound пользователь не найден
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials пароль не совпал
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenIssuance не удалось выпустить пару токенов после успешной
	// проверки пароля; наружу отдается как generic internal error
	ErrTokenIssuance = errors.New("failed to issue token pair")

	// ErrUnauthorized токен не передан вовсе
	ErrUnauthorized = errors.New("no token provided")

	// ErrTokenMismatch refresh token корректно подписан, но уже заменен
	// более поздней ротацией или отозван через logout
	ErrTokenMismatch = errors.New("refresh token is superseded or revoked")

	// ErrUserExists пользователь с таким username или email уже есть
	ErrUserExists = errors.New("user with this username or email already exists")

	// ErrInvalidInput входные данные регистрации не прошли валидацию
	ErrInvalidInput = errors.New("invalid input")

	// ErrAvatarRequired файл аватара обязателен при регистрации
	ErrAvatarRequired = errors.New("avatar file is required")

	// ErrUploadFailed внешнее media хранилище не приняло файл
	ErrUploadFailed = errors.New("failed to upload media file")
)

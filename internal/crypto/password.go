package crypto

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword хеширует пароль с использованием bcrypt
// bcrypt генерирует случайную соль на каждый вызов, поэтому один и тот же
// пароль дает разные хеши
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword проверяет, соответствует ли пароль сохраненному bcrypt хешу
// Сравнение внутри bcrypt constant-time
// Возвращает false и при несовпадении, и при некорректном формате хеша
func VerifyPassword(candidate, storedHash string) bool {
	if candidate == "" || storedHash == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(candidate)) == nil
}

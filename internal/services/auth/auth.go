// Package auth выдаёт токены операторам административного API.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/channel-paywall/internal/lib/jwt"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/password"
)

// ErrInvalidCredentials неверное имя, пароль или вход по паролю отключён.
var ErrInvalidCredentials = errors.New("invalid credentials")

// TokenMaker выпускает токены.
type TokenMaker interface {
	GenerateToken(username, role string) (string, error)
}

// AuthService проверяет пароль единственного оператора из конфига.
type AuthService struct {
	username     string
	passwordHash string
	jwtMaker     TokenMaker
}

// NewAuthService создает AuthService. Пустой passwordHash запрещает любой вход.
func NewAuthService(username, passwordHash string, jwtMaker TokenMaker) *AuthService {
	return &AuthService{
		username:     username,
		passwordHash: passwordHash,
		jwtMaker:     jwtMaker,
	}
}

// Login проверяет пароль и выпускает токен с ролью администратора.
func (s *AuthService) Login(_ context.Context, username, rawPassword string) (string, error) {
	const op = "auth.Login"
	if s.passwordHash == "" || username != s.username {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err := password.CompareHash(s.passwordHash, rawPassword); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	token, err := s.jwtMaker.GenerateToken(username, jwt.RoleAdmin)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

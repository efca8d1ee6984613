// Package auth реализует регистрацию и вход пользователей
// с выдачей JWT токенов.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/marketplace-payments/internal/lib/jwt"
	"github.com/magabrotheeeer/marketplace-payments/internal/lib/password"
	"github.com/magabrotheeeer/marketplace-payments/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-payments/internal/models"
)

// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Repository определяет методы хранилища, нужные сервису аутентификации.
type Repository interface {
	RegisterUser(ctx context.Context, user models.User) (string, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Service реализует бизнес-логику аутентификации.
type Service struct {
	repo     Repository
	jwtMaker jwt.Maker
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, jwtMaker jwt.Maker, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		jwtMaker: jwtMaker,
		log:      log,
	}
}

// Register создает пользователя с ролью user и возвращает его UID.
func (s *Service) Register(ctx context.Context, email, username, rawPassword string) (string, error) {
	const op = "services.auth.Register"
	log := s.log.With(slog.String("op", op), slog.String("username", username))

	passwordHash, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	uid, err := s.repo.RegisterUser(ctx, models.User{
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         "user",
	})
	if err != nil {
		log.Error("failed to register user", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("registered new user", slog.String("uid", uid))
	return uid, nil
}

// Login проверяет пару логин/пароль и возвращает JWT токен.
func (s *Service) Login(ctx context.Context, username, rawPassword string) (string, error) {
	const op = "services.auth.Login"
	log := s.log.With(slog.String("op", op), slog.String("username", username))

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		log.Warn("login attempt for unknown user", sl.Err(err))
		return "", ErrInvalidCredentials
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		log.Warn("login attempt with wrong password")
		return "", ErrInvalidCredentials
	}

	token, err := s.jwtMaker.GenerateToken(user.Username, user.Role, user.UUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// ValidateToken разбирает токен и возвращает данные пользователя.
func (s *Service) ValidateToken(tokenStr string) (*jwt.CustomClaims, error) {
	const op = "services.auth.ValidateToken"

	claims, err := s.jwtMaker.ParseToken(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}

// Package auth handles user registration, credential verification and JWT
// issuance for the HTTP layer.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cexcore/exchange/internal/apperr"
	"github.com/cexcore/exchange/internal/models"
)

const tokenTTL = 24 * time.Hour

// UserStore is the persistence contract auth depends on
type UserStore interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
}

// Service authenticates users
type Service struct {
	users  UserStore
	secret []byte
}

// NewService creates an auth service signing tokens with the given secret
func NewService(users UserStore, secret []byte) *Service {
	return &Service{users: users, secret: secret}
}

// RegisterCommand carries a registration request with a plaintext password
type RegisterCommand struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
}

// Register creates a new user with a bcrypt-hashed password. Username and
// email must both be unused.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*models.User, error) {
	if cmd.Username == "" {
		return nil, apperr.Validation("username cannot be empty")
	}
	if cmd.Password == "" {
		return nil, apperr.Validation("password cannot be empty")
	}
	if len(cmd.Username) > 50 {
		return nil, apperr.Validation("username too long (max 50 characters)")
	}
	if len(cmd.Password) > 100 {
		return nil, apperr.Validation("password too long (max 100 characters)")
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, cmd.Username, cmd.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}
	if exists {
		return nil, apperr.BadRequest("user with such username or email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, &models.User{
		Username:     cmd.Username,
		PasswordHash: string(hash),
		FirstName:    cmd.FirstName,
		LastName:     cmd.LastName,
		Email:        cmd.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if user.ID == uuid.Nil {
		return nil, apperr.Internal("user was not saved")
	}
	return user, nil
}

// Login verifies credentials and returns a signed JWT
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", apperr.Unauthorized("invalid username/password")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      user.ID.String(),
		"username": user.Username,
		"exp":      time.Now().Add(tokenTTL).Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// UserFromToken validates a JWT and extracts the user id from its subject
func (s *Service) UserFromToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, apperr.Unauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, apperr.Unauthorized("invalid token claims")
	}
	subject, err := claims.GetSubject()
	if err != nil {
		return uuid.Nil, apperr.Unauthorized("invalid token subject")
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, apperr.Unauthorized("invalid token subject")
	}
	return userID, nil
}

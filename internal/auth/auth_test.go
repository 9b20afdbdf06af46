package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cexcore/exchange/internal/apperr"
	"github.com/cexcore/exchange/internal/db"
)

func newService() *Service {
	return NewService(db.NewMemory().Users, []byte("test-secret"))
}

func register(t *testing.T, svc *Service, username, password string) uuid.UUID {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterCommand{
		Username: username,
		Password: password,
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	return user.ID
}

func TestRegister(t *testing.T) {
	svc := newService()

	user, err := svc.Register(context.Background(), RegisterCommand{
		Username:  "trader1",
		Password:  "password",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "trader1@example.com",
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "trader1", user.Username)
	assert.NotEqual(t, "password", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password")))
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		cmd  RegisterCommand
	}{
		{"empty username", RegisterCommand{Password: "password"}},
		{"empty password", RegisterCommand{Username: "trader1"}},
		{"username too long", RegisterCommand{Username: strings.Repeat("a", 51), Password: "password"}},
		{"password too long", RegisterCommand{Username: "trader1", Password: strings.Repeat("a", 101)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newService().Register(context.Background(), tt.cmd)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation), "got %v", err)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc := newService()
	register(t, svc, "trader1", "password")

	_, err := svc.Register(context.Background(), RegisterCommand{
		Username: "trader1",
		Password: "other",
		Email:    "new@example.com",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindBadRequest))

	// Same email is rejected too.
	_, err = svc.Register(context.Background(), RegisterCommand{
		Username: "trader2",
		Password: "other",
		Email:    "trader1@example.com",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindBadRequest))
}

func TestLoginRoundTrip(t *testing.T) {
	svc := newService()
	userID := register(t, svc, "trader1", "password")

	token, err := svc.Login(context.Background(), "trader1", "password")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := svc.UserFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newService()
	register(t, svc, "trader1", "password")

	_, err := svc.Login(context.Background(), "trader1", "wrong")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestLoginUnknownUser(t *testing.T) {
	_, err := newService().Login(context.Background(), "nobody", "password")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestUserFromTokenRejectsGarbage(t *testing.T) {
	svc := newService()

	_, err := svc.UserFromToken("not.a.token")
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestUserFromTokenRejectsWrongSecret(t *testing.T) {
	svc := newService()
	register(t, svc, "trader1", "password")
	token, err := svc.Login(context.Background(), "trader1", "password")
	require.NoError(t, err)

	other := NewService(db.NewMemory().Users, []byte("different-secret"))
	_, err = other.UserFromToken(token)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestUserFromTokenRejectsExpired(t *testing.T) {
	secret := []byte("test-secret")
	svc := NewService(db.NewMemory().Users, secret)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.New().String(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := expired.SignedString(secret)
	require.NoError(t, err)

	_, err = svc.UserFromToken(signed)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestUserFromTokenRejectsUnsignedAlgorithm(t *testing.T) {
	svc := newService()

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": uuid.New().String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.UserFromToken(token)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

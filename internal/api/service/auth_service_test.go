package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"campuscare/internal/api/dto"
	"campuscare/internal/api/models"
)

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthService_RegisterRejectsTakenEmail(t *testing.T) {
	users := &mockUserRepo{byEmail: map[string]*models.User{"taken@school.edu": {ID: "u1"}}}
	svc := NewAuthService(users, "secret", time.Hour)

	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "taken@school.edu", Password: "pw123456", Name: "Someone",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthService_RegisterDefaultsToStudentRole(t *testing.T) {
	users := &mockUserRepo{}
	svc := NewAuthService(users, "secret", time.Hour)

	user, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "new@school.edu", Password: "pw123456", Name: "New Student", Role: "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.NotEqual(t, "pw123456", user.PasswordHash, "password must be stored hashed")
}

func TestAuthService_LoginRoundTripsValidToken(t *testing.T) {
	users := &mockUserRepo{byEmail: map[string]*models.User{
		"amy@school.edu": {
			ID:           "u1",
			Email:        "amy@school.edu",
			Role:         models.RoleGuidance,
			PasswordHash: hashOf(t, "pw123456"),
		},
	}}
	svc := NewAuthService(users, "secret", time.Hour)

	token, user, err := svc.Login(context.Background(), "amy@school.edu", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleGuidance, claims.Role)
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	users := &mockUserRepo{byEmail: map[string]*models.User{
		"amy@school.edu": {ID: "u1", PasswordHash: hashOf(t, "pw123456")},
	}}
	svc := NewAuthService(users, "secret", time.Hour)

	_, _, err := svc.Login(context.Background(), "amy@school.edu", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_LoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, "secret", time.Hour)

	_, _, err := svc.Login(context.Background(), "ghost@school.edu", "pw123456")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_ValidateTokenRejectsWrongSecret(t *testing.T) {
	users := &mockUserRepo{byEmail: map[string]*models.User{
		"amy@school.edu": {ID: "u1", Email: "amy@school.edu", PasswordHash: hashOf(t, "pw123456")},
	}}
	issuer := NewAuthService(users, "secret-a", time.Hour)
	verifier := NewAuthService(users, "secret-b", time.Hour)

	token, _, err := issuer.Login(context.Background(), "amy@school.edu", "pw123456")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_ValidateTokenRejectsExpired(t *testing.T) {
	users := &mockUserRepo{byEmail: map[string]*models.User{
		"amy@school.edu": {ID: "u1", Email: "amy@school.edu", PasswordHash: hashOf(t, "pw123456")},
	}}
	svc := NewAuthService(users, "secret", -time.Minute)

	token, _, err := svc.Login(context.Background(), "amy@school.edu", "pw123456")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_ValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, "secret", time.Hour)
	_, err := svc.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

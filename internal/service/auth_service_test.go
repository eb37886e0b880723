package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/yptunaskarya/perpus-api/internal/models"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
)

type mockAuthRepo struct {
	user *models.User
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.user == nil || m.user.Username != username {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		TokenSecret: "secret",
		TokenExpiry: time.Hour,
		Issuer:      "perpus-api",
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("rahasia123"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{user: &models.User{
		ID:           "user-1",
		Username:     "petugas1",
		Name:         "Budi Santoso",
		Role:         models.RoleOfficer,
		PasswordHash: string(hash),
	}}
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "petugas1", Password: "rahasia123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, "user-1", res.User.ID)
	assert.Equal(t, models.RoleOfficer, res.User.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("rahasia123"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{user: &models.User{ID: "user-1", Username: "petugas1", PasswordHash: string(hash)}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "petugas1", Password: "salah"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownUser(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "whatever"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginRejectsEmptyPayload(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceTokenRoundtrip(t *testing.T) {
	studentID := "student-1"
	repo := &mockAuthRepo{user: &models.User{
		ID:        "user-2",
		Username:  "siswa1",
		Role:      models.RoleStudent,
		StudentID: &studentID,
	}}
	svc := newAuthService(repo)

	token, _, err := svc.generateToken(repo.user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	require.NotNil(t, claims.StudentID)
	assert.Equal(t, "student-1", *claims.StudentID)
	assert.Equal(t, "perpus-api", claims.Issuer)
}

func TestAuthServiceValidateTokenWrongSecret(t *testing.T) {
	repo := &mockAuthRepo{user: &models.User{ID: "user-1", Username: "petugas1"}}
	signer := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{TokenSecret: "other-secret", TokenExpiry: time.Hour})
	token, _, err := signer.generateToken(repo.user)
	require.NoError(t, err)

	svc := newAuthService(repo)
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceProfileMissing(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{})

	_, err := svc.Profile(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

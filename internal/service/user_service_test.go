package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/yptunaskarya/perpus-api/internal/dto"
	"github.com/yptunaskarya/perpus-api/internal/models"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
)

type mockUserRepo struct {
	users   map[string]*models.User
	taken   map[string]string
	created *models.User
	updated *models.User
}

func (m *mockUserRepo) List(ctx context.Context, role models.UserRole, search string, page, pageSize int) ([]models.User, int, error) {
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error) {
	owner, ok := m.taken[username]
	if !ok {
		return false, nil
	}
	return owner != excludeID, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	m.created = user
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	m.updated = user
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func newUserService(repo *mockUserRepo) *UserService {
	return NewUserService(repo, validator.New(), zap.NewNop())
}

func TestUserServiceCreateHashesPassword(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{}, taken: map[string]string{}}
	svc := newUserService(repo)

	user, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Username: "petugas2",
		Password: "rahasia123",
		Name:     "Dewi Lestari",
		Role:     models.RoleOfficer,
	})
	require.NoError(t, err)
	require.NotNil(t, repo.created)

	assert.NotEqual(t, "rahasia123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("rahasia123")))
}

func TestUserServiceCreateDuplicateUsername(t *testing.T) {
	repo := &mockUserRepo{taken: map[string]string{"petugas1": "user-1"}}
	svc := newUserService(repo)

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Username: "petugas1",
		Password: "rahasia123",
		Name:     "Budi Santoso",
		Role:     models.RoleOfficer,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestUserServiceCreateRejectsShortPassword(t *testing.T) {
	repo := &mockUserRepo{taken: map[string]string{}}
	svc := newUserService(repo)

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Username: "petugas2",
		Password: "pendek",
		Name:     "Dewi Lestari",
		Role:     models.RoleOfficer,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateKeepsHashOnEmptyPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("rahasia123"), bcrypt.DefaultCost)
	repo := &mockUserRepo{
		users: map[string]*models.User{"user-1": {ID: "user-1", Username: "petugas1", Name: "Budi Santoso", Role: models.RoleOfficer, PasswordHash: string(hash)}},
		taken: map[string]string{"petugas1": "user-1"},
	}
	svc := newUserService(repo)

	user, err := svc.Update(context.Background(), "user-1", dto.UpdateUserRequest{
		Username: "petugas1",
		Name:     "Budi Santoso",
		Role:     models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, string(hash), user.PasswordHash)
	assert.Equal(t, models.RoleAdmin, user.Role)
}

func TestUserServiceUpdateUsernameTakenByOther(t *testing.T) {
	repo := &mockUserRepo{
		users: map[string]*models.User{"user-2": {ID: "user-2", Username: "petugas2"}},
		taken: map[string]string{"petugas1": "user-1", "petugas2": "user-2"},
	}
	svc := newUserService(repo)

	_, err := svc.Update(context.Background(), "user-2", dto.UpdateUserRequest{
		Username: "petugas1",
		Name:     "Dewi Lestari",
		Role:     models.RoleOfficer,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeleteMissing(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{}}
	svc := newUserService(repo)

	err := svc.Delete(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filevault/internal/domain"
)

type fakeUserStore struct {
	users       map[int64]*domain.User
	roles       map[string]*domain.Role
	deactivated []int64
	assigned    map[int64]int64
	nextRoleID  int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users: map[int64]*domain.User{},
		roles: map[string]*domain.Role{
			"admin":  {ID: 1, Name: "admin"},
			"user":   {ID: 2, Name: "user"},
			"viewer": {ID: 3, Name: "viewer"},
		},
		assigned:   map[int64]int64{},
		nextRoleID: 4,
	}
}

func (f *fakeUserStore) Create(_ context.Context, user *domain.User) error {
	user.ID = int64(len(f.users) + 1)
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id int64) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserStore) List(_ context.Context, _, _ int) ([]domain.User, error) {
	var out []domain.User
	for _, user := range f.users {
		out = append(out, *user)
	}
	return out, nil
}

func (f *fakeUserStore) Update(_ context.Context, user *domain.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return domain.ErrNotFound
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, _ int64, _ string) error {
	return nil
}

func (f *fakeUserStore) AssignRole(_ context.Context, userID, roleID int64) error {
	f.assigned[userID] = roleID
	return nil
}

func (f *fakeUserStore) Deactivate(_ context.Context, userID int64) error {
	f.deactivated = append(f.deactivated, userID)
	return nil
}

func (f *fakeUserStore) GetRoleByName(_ context.Context, name string) (*domain.Role, error) {
	role, ok := f.roles[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return role, nil
}

func (f *fakeUserStore) ListRoles(_ context.Context) ([]domain.Role, error) {
	var out []domain.Role
	for _, role := range f.roles {
		out = append(out, *role)
	}
	return out, nil
}

func (f *fakeUserStore) CreateRole(_ context.Context, role *domain.Role) error {
	if _, ok := f.roles[role.Name]; ok {
		return domain.ErrAlreadyExists
	}
	role.ID = f.nextRoleID
	f.nextRoleID++
	f.roles[role.Name] = role
	return nil
}

func newUserFixture() (*UserService, *fakeUserStore) {
	store := newFakeUserStore()
	return NewUserService(store, NewAuditService(&fakeAuditStore{})), store
}

func TestDeactivateUser(t *testing.T) {
	svc, store := newUserFixture()
	ctx := context.Background()

	store.users[2] = &domain.User{ID: 2, Email: "other@example.com"}

	require.NoError(t, svc.Deactivate(ctx, adminIdentity, 2))
	assert.Equal(t, []int64{2}, store.deactivated)

	// Обычному пользователю недоступно
	err := svc.Deactivate(ctx, otherIdentity, 2)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestDeactivateSelfRejected(t *testing.T) {
	svc, store := newUserFixture()
	ctx := context.Background()

	store.users[adminIdentity.UserID] = &domain.User{ID: adminIdentity.UserID, Email: adminIdentity.Email}

	err := svc.Deactivate(ctx, adminIdentity, adminIdentity.UserID)
	assert.True(t, domain.IsValidationError(err))
	assert.Empty(t, store.deactivated)
}

func TestCreateRole(t *testing.T) {
	svc, store := newUserFixture()
	ctx := context.Background()

	role := &domain.Role{Name: "auditor"}
	require.NoError(t, svc.CreateRole(ctx, adminIdentity, role))
	assert.NotZero(t, role.ID)
	assert.Contains(t, store.roles, "auditor")

	// Повтор имени
	err := svc.CreateRole(ctx, adminIdentity, &domain.Role{Name: "auditor"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	// Пустое имя
	err = svc.CreateRole(ctx, adminIdentity, &domain.Role{})
	assert.True(t, domain.IsValidationError(err))

	// Обычному пользователю недоступно
	err = svc.CreateRole(ctx, otherIdentity, &domain.Role{Name: "another"})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

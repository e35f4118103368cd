package services_test

import (
	"context"
	"testing"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The role rules all reject before any repository call, so a zero service is
// enough to exercise them.
func newUserService() *services.UserService {
	return services.NewUserService(nil, nil)
}

func TestLogin_RequiresNameAndPIN(t *testing.T) {
	svc := newUserService()

	_, err := svc.Login(context.Background(), &models.LoginRequest{Name: "", PIN: "1234"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Login(context.Background(), &models.LoginRequest{Name: "Ana", PIN: ""})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Login(context.Background(), &models.LoginRequest{Name: "   ", PIN: "1234"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateUser_OwnerRules(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	// A second owner can never be created
	_, err := svc.CreateUser(ctx, &models.CreateUserRequest{
		Name: "Eve", PIN: "1234", Role: models.RoleOwner, DealershipID: "d1",
	}, "owner-1", models.RoleOwner, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// Made-up roles are rejected
	_, err = svc.CreateUser(ctx, &models.CreateUserRequest{
		Name: "Eve", PIN: "1234", Role: "superadmin", DealershipID: "d1",
	}, "owner-1", models.RoleOwner, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// The owner must say which dealership the account belongs to
	_, err = svc.CreateUser(ctx, &models.CreateUserRequest{
		Name: "Eve", PIN: "1234", Role: models.RoleSales,
	}, "owner-1", models.RoleOwner, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateUser_DealershipAdminRules(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()
	d1 := "d1"

	// A dealership admin cannot mint another admin
	_, err := svc.CreateUser(ctx, &models.CreateUserRequest{
		Name: "Eve", PIN: "1234", Role: models.RoleDealershipAdmin,
	}, "admin-1", models.RoleDealershipAdmin, &d1)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// Nor an owner
	_, err = svc.CreateUser(ctx, &models.CreateUserRequest{
		Name: "Eve", PIN: "1234", Role: models.RoleOwner,
	}, "admin-1", models.RoleDealershipAdmin, &d1)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// An admin detached from any dealership cannot create anyone
	_, err = svc.CreateUser(ctx, &models.CreateUserRequest{
		Name: "Eve", PIN: "1234", Role: models.RoleSales,
	}, "admin-1", models.RoleDealershipAdmin, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthorization(err))
}

func TestCreateUser_StandardRolesCannotCreate(t *testing.T) {
	svc := newUserService()
	d1 := "d1"

	for _, role := range models.StandardUserRoles {
		_, err := svc.CreateUser(context.Background(), &models.CreateUserRequest{
			Name: "Eve", PIN: "1234", Role: models.RoleSales,
		}, "user-1", role, &d1)
		require.Error(t, err, "actor role %s", role)
		assert.True(t, apperrors.IsAuthorization(err), "actor role %s", role)
	}
}

func TestCreateUser_PINFormat(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	for _, pin := range []string{"", "123", "1234567", "12a4", "abcd"} {
		_, err := svc.CreateUser(ctx, &models.CreateUserRequest{
			Name: "Eve", PIN: pin, Role: models.RoleSales, DealershipID: "d1",
		}, "owner-1", models.RoleOwner, nil)
		require.Error(t, err, "pin %q", pin)
		assert.True(t, apperrors.IsValidation(err), "pin %q", pin)
	}
}

func TestDeactivate_SelfRejected(t *testing.T) {
	svc := newUserService()

	err := svc.Deactivate(context.Background(), "user-1", "user-1", models.RoleOwner, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestIsAdminRole(t *testing.T) {
	assert.True(t, models.IsAdminRole(models.RoleOwner))
	assert.True(t, models.IsAdminRole(models.RoleDealershipAdmin))
	for _, role := range models.StandardUserRoles {
		assert.False(t, models.IsAdminRole(role), role)
	}
}

func TestIsStandardRole(t *testing.T) {
	for _, role := range models.StandardUserRoles {
		assert.True(t, models.IsStandardRole(role), role)
	}
	assert.False(t, models.IsStandardRole(models.RoleOwner))
	assert.False(t, models.IsStandardRole(models.RoleDealershipAdmin))
	assert.False(t, models.IsStandardRole("superadmin"))
}

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

func newInviteService() *services.InviteService {
	return services.NewInviteService(nil, nil)
}

func TestCreateInvite_RoleRules(t *testing.T) {
	svc := newInviteService()
	ctx := context.Background()
	d1 := "d1"

	// The owner cannot invite another owner
	_, err := svc.CreateInvite(ctx, &models.CreateInviteRequest{
		DealershipID: "d1", Role: models.RoleOwner,
	}, "owner-1", models.RoleOwner, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// The owner must target a dealership
	_, err = svc.CreateInvite(ctx, &models.CreateInviteRequest{
		Role: models.RoleSales,
	}, "owner-1", models.RoleOwner, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// A dealership admin cannot invite an admin
	_, err = svc.CreateInvite(ctx, &models.CreateInviteRequest{
		Role: models.RoleDealershipAdmin,
	}, "admin-1", models.RoleDealershipAdmin, &d1)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// Standard users cannot invite at all
	_, err = svc.CreateInvite(ctx, &models.CreateInviteRequest{
		Role: models.RoleSales,
	}, "user-1", models.RoleSales, &d1)
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthorization(err))
}

func TestCreateInvite_ExpiryBounds(t *testing.T) {
	svc := newInviteService()
	ctx := context.Background()

	_, err := svc.CreateInvite(ctx, &models.CreateInviteRequest{
		DealershipID: "d1", Role: models.RoleSales, ExpiresInDays: -1,
	}, "owner-1", models.RoleOwner, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.CreateInvite(ctx, &models.CreateInviteRequest{
		DealershipID: "d1", Role: models.RoleSales, ExpiresInDays: 31,
	}, "owner-1", models.RoleOwner, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestClaim_Validation(t *testing.T) {
	svc := newInviteService()
	ctx := context.Background()

	_, err := svc.Claim(ctx, &models.ClaimInviteRequest{Token: "tok", Name: "  ", PIN: "1234"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Claim(ctx, &models.ClaimInviteRequest{Token: "", Name: "Ana", PIN: "1234"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Claim(ctx, &models.ClaimInviteRequest{Token: "tok", Name: "Ana", PIN: "12"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

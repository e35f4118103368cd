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

// Validation rejects before the repository is touched, so a zero service
// covers these paths.
func newDealershipService() *services.DealershipService {
	return services.NewDealershipService(nil)
}

func TestCreateDealership_Validation(t *testing.T) {
	svc := newDealershipService()
	ctx := context.Background()

	_, err := svc.Create(ctx, &models.CreateDealershipRequest{Name: "  ", DealerType: "AUTO"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Create(ctx, &models.CreateDealershipRequest{Name: "Main St Motors", DealerType: "MARINE"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Create(ctx, &models.CreateDealershipRequest{Name: "Main St Motors", DealerType: "AUTO", ServiceBays: -1})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Create(ctx, &models.CreateDealershipRequest{Name: "Main St Motors", DealerType: "AUTO", ServiceBays: 101})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpdateAlertSettings_ThresholdOrdering(t *testing.T) {
	svc := newDealershipService()
	ctx := context.Background()

	// Yellow must be positive
	_, err := svc.UpdateAlertSettings(ctx, "d1", &models.UpdateAlertSettingsRequest{YellowMinutes: 0, RedMinutes: 60})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// Red must be strictly greater than yellow
	_, err = svc.UpdateAlertSettings(ctx, "d1", &models.UpdateAlertSettingsRequest{YellowMinutes: 30, RedMinutes: 30})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.UpdateAlertSettings(ctx, "d1", &models.UpdateAlertSettingsRequest{YellowMinutes: 60, RedMinutes: 30})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

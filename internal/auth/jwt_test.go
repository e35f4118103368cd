package auth_test

import (
	"testing"

	"keyflow-backend/internal/auth"
	"keyflow-backend/internal/config"
	"keyflow-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTManager() *auth.JWTManager {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpirationHours = 1
	cfg.JWT.Issuer = "keyflow-test"
	return auth.NewJWTManager(cfg)
}

func TestGenerateAndValidateToken(t *testing.T) {
	manager := newTestJWTManager()
	d1 := "dealer-1"

	token, err := manager.GenerateToken(&models.User{
		ID:           "user-1",
		DealershipID: &d1,
		Name:         "Ana",
		Role:         models.RoleSales,
		IsActive:     true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "Ana", claims.Name)
	assert.Equal(t, models.RoleSales, claims.Role)
	assert.Equal(t, "dealer-1", claims.DealershipID)
	assert.True(t, claims.IsActive)
	assert.Equal(t, "keyflow-test", claims.Issuer)
}

func TestGenerateToken_OwnerHasNoDealership(t *testing.T) {
	manager := newTestJWTManager()

	token, err := manager.GenerateToken(&models.User{
		ID:       "owner-1",
		Name:     "Owner",
		Role:     models.RoleOwner,
		IsActive: true,
	})
	require.NoError(t, err)

	claims, err := manager.ValidateToken(token)
	require.NoError(t, err)
	assert.Empty(t, claims.DealershipID)
	assert.Equal(t, models.RoleOwner, claims.Role)
}

func TestValidateToken_RejectsWrongSecret(t *testing.T) {
	manager := newTestJWTManager()
	token, err := manager.GenerateToken(&models.User{ID: "user-1", Name: "Ana", Role: models.RoleSales})
	require.NoError(t, err)

	other := &config.Config{}
	other.JWT.Secret = "different-secret"
	other.JWT.ExpirationHours = 1
	_, err = auth.NewJWTManager(other).ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsGarbage(t *testing.T) {
	manager := newTestJWTManager()
	_, err := manager.ValidateToken("not.a.token")
	assert.Error(t, err)
	_, err = manager.ValidateToken("")
	assert.Error(t, err)
}

func TestTempToken_RoundTrip(t *testing.T) {
	manager := newTestJWTManager()

	temp, err := manager.GenerateTempToken(&models.User{ID: "user-1", Name: "Ana"})
	require.NoError(t, err)

	claims, err := manager.ValidateTempToken(temp)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "2fa_pending", claims.Type)
}

func TestTempToken_NotAcceptedAsFullToken(t *testing.T) {
	manager := newTestJWTManager()

	// A full token must not pass the temp check: its Type claim is absent
	full, err := manager.GenerateToken(&models.User{ID: "user-1", Name: "Ana", Role: models.RoleSales})
	require.NoError(t, err)
	_, err = manager.ValidateTempToken(full)
	assert.Error(t, err)
}

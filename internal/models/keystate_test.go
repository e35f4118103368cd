package models_test

import (
	"testing"

	"keyflow-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{models.KeyStatusActive, models.KeyStatusSold, true},
		{models.KeyStatusActive, models.KeyStatusExtendedTestDrive, true},
		{models.KeyStatusActive, models.KeyStatusServiceLoaner, true},
		{models.KeyStatusActive, models.KeyStatusDeleted, true},

		// Reactivation is the only exit from a parked status
		{models.KeyStatusSold, models.KeyStatusActive, true},
		{models.KeyStatusExtendedTestDrive, models.KeyStatusActive, true},
		{models.KeyStatusServiceLoaner, models.KeyStatusActive, true},

		// No sideways moves between parked statuses
		{models.KeyStatusSold, models.KeyStatusServiceLoaner, false},
		{models.KeyStatusSold, models.KeyStatusExtendedTestDrive, false},
		{models.KeyStatusServiceLoaner, models.KeyStatusSold, false},
		{models.KeyStatusSold, models.KeyStatusDeleted, false},

		// DELETED is terminal
		{models.KeyStatusDeleted, models.KeyStatusActive, false},
		{models.KeyStatusDeleted, models.KeyStatusSold, false},

		// Self-transitions are not listed
		{models.KeyStatusActive, models.KeyStatusActive, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, models.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStatusLegalForDealer(t *testing.T) {
	// AUTO dealerships use the full status set
	for _, status := range []string{
		models.KeyStatusActive,
		models.KeyStatusSold,
		models.KeyStatusExtendedTestDrive,
		models.KeyStatusServiceLoaner,
		models.KeyStatusDeleted,
	} {
		assert.True(t, models.StatusLegalForDealer(models.DealerTypeAuto, status), "AUTO %s", status)
	}

	// RV dealerships have no loaner or extended test drive workflows
	assert.True(t, models.StatusLegalForDealer(models.DealerTypeRV, models.KeyStatusActive))
	assert.True(t, models.StatusLegalForDealer(models.DealerTypeRV, models.KeyStatusSold))
	assert.True(t, models.StatusLegalForDealer(models.DealerTypeRV, models.KeyStatusDeleted))
	assert.False(t, models.StatusLegalForDealer(models.DealerTypeRV, models.KeyStatusExtendedTestDrive))
	assert.False(t, models.StatusLegalForDealer(models.DealerTypeRV, models.KeyStatusServiceLoaner))
}

func TestReasonLegalForDealer(t *testing.T) {
	assert.True(t, models.ReasonLegalForDealer(models.DealerTypeAuto, models.ReasonService))
	assert.False(t, models.ReasonLegalForDealer(models.DealerTypeRV, models.ReasonService))

	for _, dealerType := range []string{models.DealerTypeAuto, models.DealerTypeRV} {
		assert.True(t, models.ReasonLegalForDealer(dealerType, models.ReasonTestDrive))
		assert.True(t, models.ReasonLegalForDealer(dealerType, models.ReasonMove))
		assert.True(t, models.ReasonLegalForDealer(dealerType, models.ReasonMiscellaneous))
	}
}

func TestReasonRequiresLocation(t *testing.T) {
	assert.True(t, models.ReasonRequiresLocation(models.ReasonService))
	assert.False(t, models.ReasonRequiresLocation(models.ReasonTestDrive))
	assert.False(t, models.ReasonRequiresLocation(models.ReasonMove))
	assert.False(t, models.ReasonRequiresLocation(models.ReasonMiscellaneous))
}

func TestValidators(t *testing.T) {
	assert.True(t, models.ValidStatus(models.KeyStatusActive))
	assert.False(t, models.ValidStatus("MISSING"))

	assert.True(t, models.ValidReason(models.ReasonMove))
	assert.False(t, models.ValidReason("JOYRIDE"))

	assert.True(t, models.ValidCategory(models.CategoryNew))
	assert.True(t, models.ValidCategory(models.CategoryUsed))
	assert.False(t, models.ValidCategory("DEMO"))

	assert.True(t, models.ValidDealerType(models.DealerTypeAuto))
	assert.True(t, models.ValidDealerType(models.DealerTypeRV))
	assert.False(t, models.ValidDealerType("MARINE"))

	assert.True(t, models.ValidPDIStatus(models.PDIInProgress))
	assert.False(t, models.ValidPDIStatus("DONE"))
}

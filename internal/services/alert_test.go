package services_test

import (
	"testing"
	"time"

	"keyflow-backend/internal/models"
	"keyflow-backend/internal/repositories"
	"keyflow-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeAlertState_Boundaries(t *testing.T) {
	// yellow=30, red=60: the state flips exactly at the threshold minute
	cases := []struct {
		elapsed int
		want    string
	}{
		{0, models.AlertGreen},
		{1, models.AlertGreen},
		{29, models.AlertGreen},
		{30, models.AlertYellow},
		{31, models.AlertYellow},
		{59, models.AlertYellow},
		{60, models.AlertRed},
		{61, models.AlertRed},
		{600, models.AlertRed},
	}

	for _, tc := range cases {
		got := services.ComputeAlertState(tc.elapsed, 30, 60)
		assert.Equal(t, tc.want, got, "elapsed=%d minutes", tc.elapsed)
	}
}

func TestComputeAlertState_CustomThresholds(t *testing.T) {
	assert.Equal(t, models.AlertGreen, services.ComputeAlertState(14, 15, 45))
	assert.Equal(t, models.AlertYellow, services.ComputeAlertState(15, 15, 45))
	assert.Equal(t, models.AlertYellow, services.ComputeAlertState(44, 15, 45))
	assert.Equal(t, models.AlertRed, services.ComputeAlertState(45, 15, 45))
}

func TestNewCheckoutView_DerivesElapsedAndState(t *testing.T) {
	checkedOut := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	policy := &models.AlertPolicy{YellowMinutes: 30, RedMinutes: 60, DealerType: models.DealerTypeAuto}
	session := &models.CheckoutSession{
		CheckedOutByUserID: "user-1",
		CheckedOutAt:       checkedOut,
		CheckoutReason:     models.ReasonTestDrive,
		IsOpen:             true,
	}

	// 44m59s out: partial minutes floor to 44
	view := services.NewCheckoutView(session, policy, checkedOut.Add(44*time.Minute+59*time.Second))
	assert.Equal(t, 44, view.ElapsedMinutes)
	assert.Equal(t, models.AlertYellow, view.AlertState)
	assert.Equal(t, "user-1", view.CheckedOutByUserID)
	assert.True(t, view.IsOpen)

	// Same session an hour later is RED without anything being stored
	view = services.NewCheckoutView(session, policy, checkedOut.Add(75*time.Minute))
	assert.Equal(t, 75, view.ElapsedMinutes)
	assert.Equal(t, models.AlertRed, view.AlertState)
}

func TestNewCheckoutView_ClockBehindCheckout(t *testing.T) {
	checkedOut := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	policy := &models.AlertPolicy{YellowMinutes: 30, RedMinutes: 60, DealerType: models.DealerTypeAuto}
	session := &models.CheckoutSession{CheckedOutAt: checkedOut, IsOpen: true}

	view := services.NewCheckoutView(session, policy, checkedOut.Add(-5*time.Minute))
	assert.Equal(t, 0, view.ElapsedMinutes)
	assert.Equal(t, models.AlertGreen, view.AlertState)
}

func TestNewKeyView_WithAndWithoutSession(t *testing.T) {
	policy := &models.AlertPolicy{YellowMinutes: 30, RedMinutes: 60, DealerType: models.DealerTypeAuto}
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	in := &repositories.KeyWithSession{
		Key: models.Key{ID: "key-1", StockNumber: "A1001", Status: models.KeyStatusActive},
	}
	view := services.NewKeyView(in, policy, now)
	require.NotNil(t, view)
	assert.Equal(t, "A1001", view.StockNumber)
	assert.Nil(t, view.CheckoutSession)

	in.Session = &models.CheckoutSession{
		CheckedOutAt: now.Add(-31 * time.Minute),
		IsOpen:       true,
	}
	view = services.NewKeyView(in, policy, now)
	require.NotNil(t, view.CheckoutSession)
	assert.Equal(t, 31, view.CheckoutSession.ElapsedMinutes)
	assert.Equal(t, models.AlertYellow, view.CheckoutSession.AlertState)
}

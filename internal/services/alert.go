package services

import (
	"time"

	"keyflow-backend/internal/models"
	"keyflow-backend/internal/repositories"
	"keyflow-backend/internal/timeutil"
)

// ComputeAlertState classifies an open checkout by elapsed whole minutes
// against the dealership thresholds. GREEN below yellow, YELLOW from yellow
// up to but not including red, RED from red onward. At yellow=30/red=60:
// 29 minutes is GREEN, 30 is YELLOW, 59 is YELLOW, 60 is RED.
func ComputeAlertState(elapsedMinutes, yellowMinutes, redMinutes int) string {
	switch {
	case elapsedMinutes >= redMinutes:
		return models.AlertRed
	case elapsedMinutes >= yellowMinutes:
		return models.AlertYellow
	default:
		return models.AlertGreen
	}
}

// NewCheckoutView derives the session read model at now. Elapsed minutes and
// alert state are computed here on every read; nothing is stored, so there is
// no scheduler to fall behind and no stale alert column to reconcile.
func NewCheckoutView(s *models.CheckoutSession, p *models.AlertPolicy, now time.Time) *models.CheckoutView {
	elapsed := timeutil.ElapsedMinutes(s.CheckedOutAt, now)
	return &models.CheckoutView{
		CheckedOutByUserID: s.CheckedOutByUserID,
		CheckedOutAt:       s.CheckedOutAt,
		CheckoutReason:     s.CheckoutReason,
		CurrentLocation:    s.CurrentLocation,
		ElapsedMinutes:     elapsed,
		AlertState:         ComputeAlertState(elapsed, p.YellowMinutes, p.RedMinutes),
		IsOpen:             s.IsOpen,
	}
}

// NewKeyView pairs a key row with its derived session view, if one is open.
func NewKeyView(ks *repositories.KeyWithSession, p *models.AlertPolicy, now time.Time) *models.KeyWithCheckout {
	view := &models.KeyWithCheckout{Key: ks.Key}
	if ks.Session != nil {
		view.CheckoutSession = NewCheckoutView(ks.Session, p, now)
	}
	return view
}

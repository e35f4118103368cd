package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/metrics"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/repositories"
	"keyflow-backend/internal/timeutil"
)

// sessionStore is the subset of repositories.CheckoutSessionRepository that
// CheckoutService requires.
type sessionStore interface {
	Open(ctx context.Context, dealershipID string, s *models.CheckoutSession) error
	Close(ctx context.Context, dealershipID, keyID, actingUserID string, isAuthorized bool, notes string, returnedAt time.Time) (*models.CheckoutSession, error)
	UpdateLocation(ctx context.Context, dealershipID, keyID, newLocation, actorUserID string) (*models.CheckoutSession, error)
	ListOpenByDealership(ctx context.Context, dealershipID string) ([]*models.CheckoutSession, error)
}

// keyViewStore is the subset of repositories.KeyRepository that
// CheckoutService requires to build the refreshed view after a mutation.
type keyViewStore interface {
	Get(ctx context.Context, dealershipID, keyID string) (*repositories.KeyWithSession, error)
}

// dealershipProvider yields the alert policy and dealership record. Policy is
// read fresh per operation so a threshold change shows up on the next call.
type dealershipProvider interface {
	GetPolicy(ctx context.Context, dealershipID string) (*models.AlertPolicy, error)
	Get(ctx context.Context, dealershipID string) (*models.Dealership, error)
}

// boardNotifier pushes a change signal to connected key-board clients.
type boardNotifier interface {
	BoardChanged(dealershipID string)
}

type CheckoutService struct {
	sessions    sessionStore
	keys        keyViewStore
	dealerships dealershipProvider
	clock       timeutil.Clock
	notifier    boardNotifier // optional
}

func NewCheckoutService(sessions sessionStore, keys keyViewStore, dealerships dealershipProvider, clock timeutil.Clock) *CheckoutService {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &CheckoutService{
		sessions:    sessions,
		keys:        keys,
		dealerships: dealerships,
		clock:       clock,
	}
}

// SetNotifier wires the live key-board hub. Safe to leave unset.
func (s *CheckoutService) SetNotifier(n boardNotifier) {
	s.notifier = n
}

// Checkout opens a session on an ACTIVE key. The no-open-session check is
// atomic with session creation in the store; two concurrent calls on the same
// key yield exactly one success and one conflict.
func (s *CheckoutService) Checkout(ctx context.Context, dealershipID, keyID, userID string, req *models.CheckoutRequest) (*models.KeyWithCheckout, error) {
	policy, err := s.dealerships.GetPolicy(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	reason := strings.ToUpper(strings.TrimSpace(req.Reason))
	if !models.ValidReason(reason) {
		return nil, apperrors.Validationf("unknown checkout reason %q", req.Reason)
	}
	if !models.ReasonLegalForDealer(policy.DealerType, reason) {
		return nil, apperrors.Validationf("reason %s is not available for %s dealerships", reason, policy.DealerType)
	}

	var location *string
	if req.Location != nil {
		trimmed := strings.TrimSpace(*req.Location)
		if trimmed != "" {
			location = &trimmed
		}
	}
	if models.ReasonRequiresLocation(reason) && location == nil {
		return nil, apperrors.Validationf("reason %s requires a location", reason)
	}

	session := &models.CheckoutSession{
		KeyID:              keyID,
		CheckedOutByUserID: userID,
		CheckedOutAt:       s.clock.Now(),
		CheckoutReason:     reason,
		CurrentLocation:    location,
		Notes:              strings.TrimSpace(req.Notes),
	}
	if err := s.sessions.Open(ctx, dealershipID, session); err != nil {
		return nil, err
	}

	metrics.CheckoutsTotal.WithLabelValues(reason).Inc()
	s.notifyBoard(dealershipID)

	return s.keyView(ctx, dealershipID, keyID, policy)
}

// Return closes the open session. isAuthorized carries the caller's elevated
// privilege; the holder may always return their own key. Returning a key with
// no open session is a conflict, and no audit entry is written for it.
func (s *CheckoutService) Return(ctx context.Context, dealershipID, keyID, actingUserID string, isAuthorized bool, req *models.ReturnRequest) (*models.KeyWithCheckout, error) {
	policy, err := s.dealerships.GetPolicy(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	notes := ""
	if req != nil {
		notes = strings.TrimSpace(req.Notes)
	}
	if _, err := s.sessions.Close(ctx, dealershipID, keyID, actingUserID, isAuthorized, notes, s.clock.Now()); err != nil {
		return nil, err
	}

	metrics.ReturnsTotal.Inc()
	s.notifyBoard(dealershipID)

	return s.keyView(ctx, dealershipID, keyID, policy)
}

// UpdateLocation overwrites the open session's location. The key-box sentinel
// is an ordinary location value here: the session stays open and the alert
// clock keeps running.
func (s *CheckoutService) UpdateLocation(ctx context.Context, dealershipID, keyID, actorUserID string, req *models.UpdateLocationRequest) (*models.KeyWithCheckout, error) {
	policy, err := s.dealerships.GetPolicy(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	location := strings.TrimSpace(req.Location)
	if location == "" {
		return nil, apperrors.Validation("location is required")
	}

	if _, err := s.sessions.UpdateLocation(ctx, dealershipID, keyID, location, actorUserID); err != nil {
		return nil, err
	}

	s.notifyBoard(dealershipID)

	return s.keyView(ctx, dealershipID, keyID, policy)
}

// MoveToBay relocates an open session to a numbered service bay.
func (s *CheckoutService) MoveToBay(ctx context.Context, dealershipID, keyID, actorUserID string, bay int) (*models.KeyWithCheckout, error) {
	dealership, err := s.dealerships.Get(ctx, dealershipID)
	if err != nil {
		return nil, err
	}
	if dealership.ServiceBays <= 0 {
		return nil, apperrors.Validation("this dealership has no service bays")
	}
	if bay < 1 || bay > dealership.ServiceBays {
		return nil, apperrors.Validationf("bay must be between 1 and %d", dealership.ServiceBays)
	}

	return s.UpdateLocation(ctx, dealershipID, keyID, actorUserID, &models.UpdateLocationRequest{
		Location: fmt.Sprintf("Bay %d", bay),
	})
}

// ListOpen returns every open session as a key view, longest-out first, for
// the keys-out board.
func (s *CheckoutService) ListOpen(ctx context.Context, dealershipID string) ([]*models.KeyWithCheckout, error) {
	policy, err := s.dealerships.GetPolicy(ctx, dealershipID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListOpenByDealership(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	views := make([]*models.KeyWithCheckout, 0, len(sessions))
	for _, session := range sessions {
		ks, err := s.keys.Get(ctx, dealershipID, session.KeyID)
		if err != nil {
			return nil, err
		}
		views = append(views, NewKeyView(ks, policy, now))
	}
	return views, nil
}

// BayBoard assembles the service-bay occupancy view from open sessions whose
// location follows the "Bay N" scheme.
func (s *CheckoutService) BayBoard(ctx context.Context, dealershipID string) ([]models.ServiceBay, error) {
	dealership, err := s.dealerships.Get(ctx, dealershipID)
	if err != nil {
		return nil, err
	}
	if dealership.ServiceBays <= 0 {
		return []models.ServiceBay{}, nil
	}
	policy, err := s.dealerships.GetPolicy(ctx, dealershipID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListOpenByDealership(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	occupied := make(map[int]*models.KeyWithCheckout)
	for _, session := range sessions {
		if session.CurrentLocation == nil {
			continue
		}
		var bay int
		if _, err := fmt.Sscanf(*session.CurrentLocation, "Bay %d", &bay); err != nil {
			continue
		}
		if bay < 1 || bay > dealership.ServiceBays {
			continue
		}
		ks, err := s.keys.Get(ctx, dealershipID, session.KeyID)
		if err != nil {
			return nil, err
		}
		occupied[bay] = NewKeyView(ks, policy, now)
	}

	board := make([]models.ServiceBay, 0, dealership.ServiceBays)
	for n := 1; n <= dealership.ServiceBays; n++ {
		bay := models.ServiceBay{BayNumber: n}
		if view, ok := occupied[n]; ok {
			bay.IsOccupied = true
			bay.Key = view
		}
		board = append(board, bay)
	}
	return board, nil
}

func (s *CheckoutService) keyView(ctx context.Context, dealershipID, keyID string, policy *models.AlertPolicy) (*models.KeyWithCheckout, error) {
	ks, err := s.keys.Get(ctx, dealershipID, keyID)
	if err != nil {
		return nil, err
	}
	return NewKeyView(ks, policy, s.clock.Now()), nil
}

func (s *CheckoutService) notifyBoard(dealershipID string) {
	if s.notifier != nil {
		s.notifier.BoardChanged(dealershipID)
	}
}

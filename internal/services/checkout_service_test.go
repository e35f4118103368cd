package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/repositories"
	"keyflow-backend/internal/services"
	"keyflow-backend/internal/timeutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSessionStore records mutations and replays canned results.
type stubSessionStore struct {
	opened   []*models.CheckoutSession
	openErr  error
	closeErr error
	updated  []string
	sessions []*models.CheckoutSession
}

func (s *stubSessionStore) Open(ctx context.Context, dealershipID string, sess *models.CheckoutSession) error {
	if s.openErr != nil {
		return s.openErr
	}
	sess.IsOpen = true
	s.opened = append(s.opened, sess)
	return nil
}

func (s *stubSessionStore) Close(ctx context.Context, dealershipID, keyID, actingUserID string, isAuthorized bool, notes string, returnedAt time.Time) (*models.CheckoutSession, error) {
	if s.closeErr != nil {
		return nil, s.closeErr
	}
	return &models.CheckoutSession{KeyID: keyID, IsOpen: false, ReturnedAt: &returnedAt}, nil
}

func (s *stubSessionStore) UpdateLocation(ctx context.Context, dealershipID, keyID, newLocation, actorUserID string) (*models.CheckoutSession, error) {
	s.updated = append(s.updated, newLocation)
	return &models.CheckoutSession{KeyID: keyID, CurrentLocation: &newLocation, IsOpen: true}, nil
}

func (s *stubSessionStore) ListOpenByDealership(ctx context.Context, dealershipID string) ([]*models.CheckoutSession, error) {
	return s.sessions, nil
}

// stubKeyViews serves key rows keyed by id.
type stubKeyViews struct {
	byID map[string]*repositories.KeyWithSession
}

func (s *stubKeyViews) Get(ctx context.Context, dealershipID, keyID string) (*repositories.KeyWithSession, error) {
	ks, ok := s.byID[keyID]
	if !ok {
		return nil, apperrors.NotFound("key not found")
	}
	return ks, nil
}

// stubDealerships returns one fixed dealership and policy.
type stubDealerships struct {
	dealership *models.Dealership
}

func (s *stubDealerships) GetPolicy(ctx context.Context, dealershipID string) (*models.AlertPolicy, error) {
	return &models.AlertPolicy{
		YellowMinutes: s.dealership.YellowMinutes,
		RedMinutes:    s.dealership.RedMinutes,
		DealerType:    s.dealership.DealerType,
	}, nil
}

func (s *stubDealerships) Get(ctx context.Context, dealershipID string) (*models.Dealership, error) {
	return s.dealership, nil
}

type recordingNotifier struct {
	changed []string
}

func (n *recordingNotifier) BoardChanged(dealershipID string) {
	n.changed = append(n.changed, dealershipID)
}

func newCheckoutFixture(dealerType string, bays int) (*services.CheckoutService, *stubSessionStore, *stubKeyViews, *recordingNotifier, time.Time) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	sessions := &stubSessionStore{}
	keys := &stubKeyViews{byID: map[string]*repositories.KeyWithSession{
		"key-1": {Key: models.Key{ID: "key-1", StockNumber: "A1001", Status: models.KeyStatusActive}},
	}}
	dealerships := &stubDealerships{dealership: &models.Dealership{
		ID:            "d1",
		DealerType:    dealerType,
		YellowMinutes: 30,
		RedMinutes:    60,
		ServiceBays:   bays,
	}}
	svc := services.NewCheckoutService(sessions, keys, dealerships, timeutil.FixedClock{T: now})
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)
	return svc, sessions, keys, notifier, now
}

func TestCheckout_OpensSessionAndNotifiesBoard(t *testing.T) {
	svc, sessions, _, notifier, now := newCheckoutFixture(models.DealerTypeAuto, 0)

	view, err := svc.Checkout(context.Background(), "d1", "key-1", "user-1", &models.CheckoutRequest{
		Reason: models.ReasonTestDrive,
		Notes:  "  customer waiting  ",
	})
	require.NoError(t, err)
	require.NotNil(t, view)

	require.Len(t, sessions.opened, 1)
	opened := sessions.opened[0]
	assert.Equal(t, "key-1", opened.KeyID)
	assert.Equal(t, "user-1", opened.CheckedOutByUserID)
	assert.Equal(t, models.ReasonTestDrive, opened.CheckoutReason)
	assert.Equal(t, now, opened.CheckedOutAt)
	assert.Nil(t, opened.CurrentLocation)
	assert.Equal(t, "customer waiting", opened.Notes)

	assert.Equal(t, []string{"d1"}, notifier.changed)
}

func TestCheckout_NormalizesReasonCase(t *testing.T) {
	svc, sessions, _, _, _ := newCheckoutFixture(models.DealerTypeAuto, 0)

	_, err := svc.Checkout(context.Background(), "d1", "key-1", "user-1", &models.CheckoutRequest{
		Reason: " test_drive ",
	})
	require.NoError(t, err)
	require.Len(t, sessions.opened, 1)
	assert.Equal(t, models.ReasonTestDrive, sessions.opened[0].CheckoutReason)
}

func TestCheckout_UnknownReason(t *testing.T) {
	svc, sessions, _, notifier, _ := newCheckoutFixture(models.DealerTypeAuto, 0)

	_, err := svc.Checkout(context.Background(), "d1", "key-1", "user-1", &models.CheckoutRequest{
		Reason: "JOYRIDE",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, sessions.opened)
	assert.Empty(t, notifier.changed)
}

func TestCheckout_ServiceRequiresLocation(t *testing.T) {
	svc, _, _, _, _ := newCheckoutFixture(models.DealerTypeAuto, 0)

	_, err := svc.Checkout(context.Background(), "d1", "key-1", "user-1", &models.CheckoutRequest{
		Reason: models.ReasonService,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// A blank location is the same as no location
	blank := "   "
	_, err = svc.Checkout(context.Background(), "d1", "key-1", "user-1", &models.CheckoutRequest{
		Reason:   models.ReasonService,
		Location: &blank,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCheckout_ServiceWithLocation(t *testing.T) {
	svc, sessions, _, _, _ := newCheckoutFixture(models.DealerTypeAuto, 0)

	loc := "Bay 3"
	_, err := svc.Checkout(context.Background(), "d1", "key-1", "user-1", &models.CheckoutRequest{
		Reason:   models.ReasonService,
		Location: &loc,
	})
	require.NoError(t, err)
	require.Len(t, sessions.opened, 1)
	require.NotNil(t, sessions.opened[0].CurrentLocation)
	assert.Equal(t, "Bay 3", *sessions.opened[0].CurrentLocation)
}

func TestCheckout_ServiceRejectedForRV(t *testing.T) {
	svc, sessions, _, _, _ := newCheckoutFixture(models.DealerTypeRV, 0)

	loc := "Bay 1"
	_, err := svc.Checkout(context.Background(), "d1", "key-1", "user-1", &models.CheckoutRequest{
		Reason:   models.ReasonService,
		Location: &loc,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, sessions.opened)
}

func TestCheckout_ConflictFromStore(t *testing.T) {
	svc, sessions, _, notifier, _ := newCheckoutFixture(models.DealerTypeAuto, 0)
	sessions.openErr = apperrors.Conflict("key is already checked out")

	_, err := svc.Checkout(context.Background(), "d1", "key-1", "user-1", &models.CheckoutRequest{
		Reason: models.ReasonMove,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Empty(t, notifier.changed)
}

func TestReturn_ClosedSessionIsConflict(t *testing.T) {
	svc, sessions, _, notifier, _ := newCheckoutFixture(models.DealerTypeAuto, 0)
	sessions.closeErr = apperrors.Conflict("key is not checked out")

	_, err := svc.Return(context.Background(), "d1", "key-1", "user-1", false, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Empty(t, notifier.changed)
}

func TestReturn_NilRequestIsPlainReturn(t *testing.T) {
	svc, _, _, notifier, _ := newCheckoutFixture(models.DealerTypeAuto, 0)

	view, err := svc.Return(context.Background(), "d1", "key-1", "user-1", false, nil)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, []string{"d1"}, notifier.changed)
}

func TestUpdateLocation_RequiresLocation(t *testing.T) {
	svc, sessions, _, _, _ := newCheckoutFixture(models.DealerTypeAuto, 0)

	_, err := svc.UpdateLocation(context.Background(), "d1", "key-1", "user-1", &models.UpdateLocationRequest{Location: "  "})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, sessions.updated)
}

func TestMoveToBay_Validation(t *testing.T) {
	// No service bays configured at all
	svc, _, _, _, _ := newCheckoutFixture(models.DealerTypeAuto, 0)
	_, err := svc.MoveToBay(context.Background(), "d1", "key-1", "user-1", 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// Bay number out of range
	svc, sessions, _, _, _ := newCheckoutFixture(models.DealerTypeAuto, 8)
	_, err = svc.MoveToBay(context.Background(), "d1", "key-1", "user-1", 9)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	_, err = svc.MoveToBay(context.Background(), "d1", "key-1", "user-1", 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, sessions.updated)
}

func TestMoveToBay_FormatsBayLocation(t *testing.T) {
	svc, sessions, _, _, _ := newCheckoutFixture(models.DealerTypeAuto, 8)

	_, err := svc.MoveToBay(context.Background(), "d1", "key-1", "user-1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bay 3"}, sessions.updated)
}

func TestListOpen_DerivesAlertStates(t *testing.T) {
	svc, sessions, keys, _, now := newCheckoutFixture(models.DealerTypeAuto, 0)

	keys.byID["key-2"] = &repositories.KeyWithSession{
		Key: models.Key{ID: "key-2", StockNumber: "A1002", Status: models.KeyStatusActive},
	}
	sessions.sessions = []*models.CheckoutSession{
		{KeyID: "key-1", CheckedOutAt: now.Add(-65 * time.Minute), IsOpen: true},
		{KeyID: "key-2", CheckedOutAt: now.Add(-5 * time.Minute), IsOpen: true},
	}
	keys.byID["key-1"].Session = sessions.sessions[0]
	keys.byID["key-2"].Session = sessions.sessions[1]

	views, err := svc.ListOpen(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, models.AlertRed, views[0].CheckoutSession.AlertState)
	assert.Equal(t, 65, views[0].CheckoutSession.ElapsedMinutes)
	assert.Equal(t, models.AlertGreen, views[1].CheckoutSession.AlertState)
}

func TestBayBoard_AssemblesOccupancy(t *testing.T) {
	svc, sessions, keys, _, now := newCheckoutFixture(models.DealerTypeAuto, 4)

	bay2 := "Bay 2"
	lot := "Front lot"
	bay9 := "Bay 9"
	keys.byID["key-2"] = &repositories.KeyWithSession{Key: models.Key{ID: "key-2", Status: models.KeyStatusActive}}
	keys.byID["key-3"] = &repositories.KeyWithSession{Key: models.Key{ID: "key-3", Status: models.KeyStatusActive}}
	sessions.sessions = []*models.CheckoutSession{
		{KeyID: "key-1", CheckedOutAt: now.Add(-10 * time.Minute), IsOpen: true, CurrentLocation: &bay2},
		{KeyID: "key-2", CheckedOutAt: now.Add(-10 * time.Minute), IsOpen: true, CurrentLocation: &lot},
		{KeyID: "key-3", CheckedOutAt: now.Add(-10 * time.Minute), IsOpen: true, CurrentLocation: &bay9},
	}
	keys.byID["key-1"].Session = sessions.sessions[0]

	board, err := svc.BayBoard(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, board, 4)

	assert.Equal(t, 1, board[0].BayNumber)
	assert.False(t, board[0].IsOccupied)

	assert.Equal(t, 2, board[1].BayNumber)
	assert.True(t, board[1].IsOccupied)
	require.NotNil(t, board[1].Key)
	assert.Equal(t, "key-1", board[1].Key.ID)

	assert.False(t, board[2].IsOccupied)
	assert.False(t, board[3].IsOccupied)
}

func TestBayBoard_NoBaysConfigured(t *testing.T) {
	svc, _, _, _, _ := newCheckoutFixture(models.DealerTypeRV, 0)

	board, err := svc.BayBoard(context.Background(), "d1")
	require.NoError(t, err)
	assert.Empty(t, board)
	assert.NotNil(t, board)
}

// lockingSessionStore guards one-open-session-per-key with a mutex, standing
// in for the partial unique index, so concurrent checkouts race a real check.
type lockingSessionStore struct {
	mu   sync.Mutex
	open map[string]bool
}

func (s *lockingSessionStore) Open(ctx context.Context, dealershipID string, sess *models.CheckoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open[sess.KeyID] {
		return apperrors.Conflict("key is already checked out")
	}
	s.open[sess.KeyID] = true
	sess.IsOpen = true
	return nil
}

func (s *lockingSessionStore) Close(ctx context.Context, dealershipID, keyID, actingUserID string, isAuthorized bool, notes string, returnedAt time.Time) (*models.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open[keyID] {
		return nil, apperrors.Conflict("key is not checked out")
	}
	s.open[keyID] = false
	return &models.CheckoutSession{KeyID: keyID, ReturnedAt: &returnedAt}, nil
}

func (s *lockingSessionStore) UpdateLocation(ctx context.Context, dealershipID, keyID, newLocation, actorUserID string) (*models.CheckoutSession, error) {
	return &models.CheckoutSession{KeyID: keyID, CurrentLocation: &newLocation, IsOpen: true}, nil
}

func (s *lockingSessionStore) ListOpenByDealership(ctx context.Context, dealershipID string) ([]*models.CheckoutSession, error) {
	return nil, nil
}

func TestCheckout_ConcurrentCallsOpenExactlyOneSession(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	sessions := &lockingSessionStore{open: map[string]bool{}}
	keys := &stubKeyViews{byID: map[string]*repositories.KeyWithSession{
		"key-1": {Key: models.Key{ID: "key-1", StockNumber: "A1001", Status: models.KeyStatusActive}},
	}}
	dealerships := &stubDealerships{dealership: &models.Dealership{
		ID:            "d1",
		DealerType:    models.DealerTypeAuto,
		YellowMinutes: 30,
		RedMinutes:    60,
	}}
	svc := services.NewCheckoutService(sessions, keys, dealerships, timeutil.FixedClock{T: now})

	const callers = 8
	errs := make([]error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Checkout(context.Background(), "d1", "key-1", fmt.Sprintf("user-%d", i), &models.CheckoutRequest{
				Reason: models.ReasonTestDrive,
			})
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperrors.IsConflict(err))
		}
	}
	assert.Equal(t, 1, succeeded)

	// The winner's session is the only one open; a return then closes it.
	_, err := svc.Return(context.Background(), "d1", "key-1", "user-0", true, nil)
	require.NoError(t, err)
	_, err = svc.Return(context.Background(), "d1", "key-1", "user-0", true, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

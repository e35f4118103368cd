package services_test

import (
	"context"
	"fmt"
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

// stubKeyStore keeps created keys in memory and replays canned errors.
type stubKeyStore struct {
	created      []*models.Key
	createErr    func(k *models.Key) error
	byID         map[string]*repositories.KeyWithSession
	statusCalls  []string
	updateCalls  int
	pdiCalls     []string
	deleteCalled bool
}

func (s *stubKeyStore) Create(ctx context.Context, k *models.Key, actorUserID string) error {
	if s.createErr != nil {
		if err := s.createErr(k); err != nil {
			return err
		}
	}
	k.ID = fmt.Sprintf("key-%d", len(s.created)+1)
	s.created = append(s.created, k)
	return nil
}

func (s *stubKeyStore) Get(ctx context.Context, dealershipID, keyID string) (*repositories.KeyWithSession, error) {
	if ks, ok := s.byID[keyID]; ok {
		return ks, nil
	}
	return &repositories.KeyWithSession{Key: models.Key{ID: keyID, Status: models.KeyStatusActive}}, nil
}

func (s *stubKeyStore) GetByStockNumber(ctx context.Context, dealershipID, stockNumber string) (*repositories.KeyWithSession, error) {
	for _, ks := range s.byID {
		if ks.Key.StockNumber == stockNumber {
			return ks, nil
		}
	}
	return nil, apperrors.NotFound("key not found")
}

func (s *stubKeyStore) List(ctx context.Context, dealershipID, status, category, search string) ([]*repositories.KeyWithSession, error) {
	out := make([]*repositories.KeyWithSession, 0, len(s.byID))
	for _, ks := range s.byID {
		out = append(out, ks)
	}
	return out, nil
}

func (s *stubKeyStore) Update(ctx context.Context, k *models.Key, actorUserID string, changed map[string]interface{}) error {
	s.updateCalls++
	return nil
}

func (s *stubKeyStore) ChangeStatus(ctx context.Context, dealershipID, keyID, newStatus, actorUserID string) (*models.Key, error) {
	s.statusCalls = append(s.statusCalls, newStatus)
	return &models.Key{ID: keyID, Status: newStatus}, nil
}

func (s *stubKeyStore) Delete(ctx context.Context, dealershipID, keyID, actorUserID string) error {
	s.deleteCalled = true
	return nil
}

func (s *stubKeyStore) UpdatePDIStatus(ctx context.Context, dealershipID, keyID, newStatus, notes, actorUserID string) (string, error) {
	s.pdiCalls = append(s.pdiCalls, newStatus)
	return models.PDINotYet, nil
}

func (s *stubKeyStore) AddPhoto(ctx context.Context, dealershipID, keyID, url, actorUserID string) ([]string, error) {
	return []string{url}, nil
}

func (s *stubKeyStore) RemovePhoto(ctx context.Context, dealershipID, keyID, url, actorUserID string) ([]string, error) {
	return []string{}, nil
}

// stubEvents records audit inserts.
type stubEvents struct {
	inserted []*models.KeyEvent
}

func (s *stubEvents) Insert(ctx context.Context, e *models.KeyEvent) error {
	s.inserted = append(s.inserted, e)
	return nil
}

func newKeyFixture(dealerType string) (*services.KeyService, *stubKeyStore, *stubEvents, *recordingNotifier) {
	keys := &stubKeyStore{byID: map[string]*repositories.KeyWithSession{}}
	events := &stubEvents{}
	dealerships := &stubDealerships{dealership: &models.Dealership{
		ID:            "d1",
		DealerType:    dealerType,
		YellowMinutes: 30,
		RedMinutes:    60,
	}}
	svc := services.NewKeyService(keys, events, dealerships, timeutil.FixedClock{T: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)})
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)
	return svc, keys, events, notifier
}

func TestCreateKey_NormalizesAndDefaults(t *testing.T) {
	svc, keys, _, notifier := newKeyFixture(models.DealerTypeAuto)

	year := 2024
	view, err := svc.CreateKey(context.Background(), "d1", "user-1", &models.CreateKeyRequest{
		StockNumber:  "  a1001 ",
		Category:     "new",
		VehicleYear:  &year,
		VehicleMake:  " Ford ",
		VehicleModel: " F-150 ",
		VehicleVIN:   "1ftew1e50nfa00001",
	})
	require.NoError(t, err)
	require.Len(t, keys.created, 1)

	k := keys.created[0]
	assert.Equal(t, "a1001", k.StockNumber)
	assert.Equal(t, models.CategoryNew, k.Category)
	assert.Equal(t, models.KeyStatusActive, k.Status)
	assert.Equal(t, models.PDINotYet, k.PDIStatus)
	assert.Equal(t, "Ford", k.VehicleMake)
	assert.Equal(t, "F-150", k.VehicleModel)
	assert.Equal(t, "1FTEW1E50NFA00001", k.VehicleVIN)

	assert.Equal(t, k.StockNumber, view.StockNumber)
	assert.Equal(t, []string{"d1"}, notifier.changed)
}

func TestCreateKey_Validation(t *testing.T) {
	svc, keys, _, _ := newKeyFixture(models.DealerTypeAuto)

	cases := []struct {
		name string
		req  models.CreateKeyRequest
	}{
		{"missing stock number", models.CreateKeyRequest{Category: "NEW", VehicleModel: "F-150"}},
		{"bad category", models.CreateKeyRequest{StockNumber: "A1", Category: "DEMO", VehicleModel: "F-150"}},
		{"missing model", models.CreateKeyRequest{StockNumber: "A1", Category: "NEW"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateKey(context.Background(), "d1", "user-1", &tc.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}

	badYear := 1850
	_, err := svc.CreateKey(context.Background(), "d1", "user-1", &models.CreateKeyRequest{
		StockNumber: "A1", Category: "NEW", VehicleModel: "F-150", VehicleYear: &badYear,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	assert.Empty(t, keys.created)
}

func TestChangeStatus_Rules(t *testing.T) {
	svc, keys, _, _ := newKeyFixture(models.DealerTypeAuto)
	ctx := context.Background()

	// Unknown status
	_, err := svc.ChangeStatus(ctx, "d1", "key-1", "user-1", false, "MISSING")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// DELETED is not reachable through status change
	_, err = svc.ChangeStatus(ctx, "d1", "key-1", "user-1", true, models.KeyStatusDeleted)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// Reactivation needs admin privileges
	_, err = svc.ChangeStatus(ctx, "d1", "key-1", "user-1", false, models.KeyStatusActive)
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthorization(err))

	// Lowercase input is normalized before the store sees it
	_, err = svc.ChangeStatus(ctx, "d1", "key-1", "user-1", false, "sold")
	require.NoError(t, err)
	assert.Equal(t, []string{models.KeyStatusSold}, keys.statusCalls)

	// Admin may reactivate
	_, err = svc.ChangeStatus(ctx, "d1", "key-1", "admin-1", true, models.KeyStatusActive)
	require.NoError(t, err)
	assert.Equal(t, []string{models.KeyStatusSold, models.KeyStatusActive}, keys.statusCalls)
}

func TestChangeStatus_RVDealershipStatusSet(t *testing.T) {
	svc, keys, _, _ := newKeyFixture(models.DealerTypeRV)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, "d1", "key-1", "user-1", false, models.KeyStatusServiceLoaner)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.ChangeStatus(ctx, "d1", "key-1", "user-1", false, models.KeyStatusExtendedTestDrive)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.ChangeStatus(ctx, "d1", "key-1", "user-1", false, models.KeyStatusSold)
	require.NoError(t, err)
	assert.Equal(t, []string{models.KeyStatusSold}, keys.statusCalls)
}

func TestListKeys_RejectsUnknownFilters(t *testing.T) {
	svc, _, _, _ := newKeyFixture(models.DealerTypeAuto)

	_, err := svc.ListKeys(context.Background(), "d1", "MISSING", "", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.ListKeys(context.Background(), "d1", "", "DEMO", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpdateKey_Validation(t *testing.T) {
	svc, keys, _, _ := newKeyFixture(models.DealerTypeAuto)
	ctx := context.Background()

	empty := "  "
	_, err := svc.UpdateKey(ctx, "d1", "key-1", "user-1", &models.UpdateKeyRequest{StockNumber: &empty})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.UpdateKey(ctx, "d1", "key-1", "user-1", &models.UpdateKeyRequest{VehicleModel: &empty})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	assert.Zero(t, keys.updateCalls)
}

func TestUpdateKey_NoChangesSkipsWrite(t *testing.T) {
	svc, keys, _, notifier := newKeyFixture(models.DealerTypeAuto)

	view, err := svc.UpdateKey(context.Background(), "d1", "key-1", "user-1", &models.UpdateKeyRequest{})
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Zero(t, keys.updateCalls)
	assert.Empty(t, notifier.changed)
}

func TestUpdatePDIStatus_Validation(t *testing.T) {
	svc, keys, _, _ := newKeyFixture(models.DealerTypeAuto)

	_, err := svc.UpdatePDIStatus(context.Background(), "d1", "key-1", "user-1", &models.UpdatePDIStatusRequest{Status: "DONE"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, keys.pdiCalls)

	_, err = svc.UpdatePDIStatus(context.Background(), "d1", "key-1", "user-1", &models.UpdatePDIStatusRequest{Status: "in_progress"})
	require.NoError(t, err)
	assert.Equal(t, []string{models.PDIInProgress}, keys.pdiCalls)
}

func TestUpdatePDIStatus_AutoOnly(t *testing.T) {
	svc, keys, _, _ := newKeyFixture(models.DealerTypeRV)

	_, err := svc.UpdatePDIStatus(context.Background(), "d1", "key-1", "user-1", &models.UpdatePDIStatusRequest{Status: "FINISHED"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, keys.pdiCalls)
}

func TestBulkImport_RowsFailIndividually(t *testing.T) {
	svc, keys, events, _ := newKeyFixture(models.DealerTypeAuto)
	keys.createErr = func(k *models.Key) error {
		if k.StockNumber == "DUP-1" {
			return apperrors.Conflict("stock number already in use")
		}
		return nil
	}

	result, err := svc.BulkImport(context.Background(), "d1", "user-1", &models.BulkImportRequest{
		Keys: []models.CreateKeyRequest{
			{StockNumber: "A1", Category: "NEW", VehicleModel: "F-150"},
			{StockNumber: "DUP-1", Category: "NEW", VehicleModel: "Silverado"},
			{StockNumber: "A3", Category: "BAD", VehicleModel: "Camry"},
			{StockNumber: "A4", Category: "USED", VehicleModel: "Civic"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Items, 4)

	assert.True(t, result.Items[0].Success)
	assert.NotEmpty(t, result.Items[0].KeyID)
	assert.False(t, result.Items[1].Success)
	assert.Contains(t, result.Items[1].Error, "already in use")
	assert.False(t, result.Items[2].Success)
	assert.True(t, result.Items[3].Success)

	// One summary event for the whole batch
	require.Len(t, events.inserted, 1)
	assert.Equal(t, models.ActionBulkImport, events.inserted[0].Action)
	assert.Equal(t, 2, events.inserted[0].Details["created"])
	assert.Equal(t, 2, events.inserted[0].Details["failed"])
}

func TestBulkImport_SizeLimits(t *testing.T) {
	svc, _, _, _ := newKeyFixture(models.DealerTypeAuto)

	_, err := svc.BulkImport(context.Background(), "d1", "user-1", &models.BulkImportRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	rows := make([]models.CreateKeyRequest, 501)
	for i := range rows {
		rows[i] = models.CreateKeyRequest{StockNumber: fmt.Sprintf("A%d", i), Category: "NEW", VehicleModel: "X"}
	}
	_, err = svc.BulkImport(context.Background(), "d1", "user-1", &models.BulkImportRequest{Keys: rows})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

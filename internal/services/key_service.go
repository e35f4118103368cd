package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/cache"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/repositories"
	"keyflow-backend/internal/timeutil"
)

// maxBulkImportRows caps one import request.
const maxBulkImportRows = 500

// keyStore is the subset of repositories.KeyRepository that KeyService requires.
type keyStore interface {
	Create(ctx context.Context, k *models.Key, actorUserID string) error
	Get(ctx context.Context, dealershipID, keyID string) (*repositories.KeyWithSession, error)
	GetByStockNumber(ctx context.Context, dealershipID, stockNumber string) (*repositories.KeyWithSession, error)
	List(ctx context.Context, dealershipID, status, category, search string) ([]*repositories.KeyWithSession, error)
	Update(ctx context.Context, k *models.Key, actorUserID string, changed map[string]interface{}) error
	ChangeStatus(ctx context.Context, dealershipID, keyID, newStatus, actorUserID string) (*models.Key, error)
	Delete(ctx context.Context, dealershipID, keyID, actorUserID string) error
	UpdatePDIStatus(ctx context.Context, dealershipID, keyID, newStatus, notes, actorUserID string) (string, error)
	AddPhoto(ctx context.Context, dealershipID, keyID, url, actorUserID string) ([]string, error)
	RemovePhoto(ctx context.Context, dealershipID, keyID, url, actorUserID string) ([]string, error)
}

// eventAppender is the subset of repositories.KeyEventRepository that
// KeyService requires for summary events outside a key transaction.
type eventAppender interface {
	Insert(ctx context.Context, e *models.KeyEvent) error
}

type KeyService struct {
	keys        keyStore
	events      eventAppender
	dealerships dealershipProvider
	clock       timeutil.Clock
	notifier    boardNotifier // optional
}

func NewKeyService(keys keyStore, events eventAppender, dealerships dealershipProvider, clock timeutil.Clock) *KeyService {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &KeyService{
		keys:        keys,
		events:      events,
		dealerships: dealerships,
		clock:       clock,
	}
}

// SetNotifier wires the live key-board hub. Safe to leave unset.
func (s *KeyService) SetNotifier(n boardNotifier) {
	s.notifier = n
}

// CreateKey registers a new key tag. Category is fixed for the life of the key.
func (s *KeyService) CreateKey(ctx context.Context, dealershipID, actorUserID string, req *models.CreateKeyRequest) (*models.KeyWithCheckout, error) {
	policy, err := s.dealerships.GetPolicy(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	k, err := buildKey(dealershipID, req)
	if err != nil {
		return nil, err
	}

	if err := s.keys.Create(ctx, k, actorUserID); err != nil {
		return nil, err
	}

	cache.InvalidateKeyCaches(ctx, dealershipID)
	s.notify(dealershipID)

	return NewKeyView(&repositories.KeyWithSession{Key: *k}, policy, s.clock.Now()), nil
}

// GetKey returns one key with its derived session view.
func (s *KeyService) GetKey(ctx context.Context, dealershipID, keyID string) (*models.KeyWithCheckout, error) {
	policy, err := s.dealerships.GetPolicy(ctx, dealershipID)
	if err != nil {
		return nil, err
	}
	ks, err := s.keys.Get(ctx, dealershipID, keyID)
	if err != nil {
		return nil, err
	}
	return NewKeyView(ks, policy, s.clock.Now()), nil
}

// GetKeyByStockNumber looks a key up by stock number, case-insensitive.
func (s *KeyService) GetKeyByStockNumber(ctx context.Context, dealershipID, stockNumber string) (*models.KeyWithCheckout, error) {
	policy, err := s.dealerships.GetPolicy(ctx, dealershipID)
	if err != nil {
		return nil, err
	}
	ks, err := s.keys.GetByStockNumber(ctx, dealershipID, stockNumber)
	if err != nil {
		return nil, err
	}
	return NewKeyView(ks, policy, s.clock.Now()), nil
}

// ListKeys returns the key board. Raw rows for the unfiltered list are cached
// briefly; elapsed minutes and alert states are always derived fresh from the
// clock, never served stale.
func (s *KeyService) ListKeys(ctx context.Context, dealershipID, status, category, search string) ([]*models.KeyWithCheckout, error) {
	policy, err := s.dealerships.GetPolicy(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	if status != "" && !models.ValidStatus(status) {
		return nil, apperrors.Validationf("unknown status %q", status)
	}
	if category != "" && !models.ValidCategory(category) {
		return nil, apperrors.Validationf("unknown category %q", category)
	}

	var rows []*repositories.KeyWithSession
	unfiltered := status == "" && category == "" && search == ""
	cacheKey := fmt.Sprintf(cache.KeyListFmt, dealershipID)

	if unfiltered {
		if data, ok := cache.GetCached(ctx, cacheKey); ok {
			if err := json.Unmarshal(data, &rows); err != nil {
				rows = nil
			}
		}
	}
	if rows == nil {
		rows, err = s.keys.List(ctx, dealershipID, status, category, search)
		if err != nil {
			return nil, err
		}
		if unfiltered {
			if data, err := json.Marshal(rows); err == nil {
				cache.SetCached(ctx, cacheKey, data, cache.KeyListTTL)
			}
		}
	}

	now := s.clock.Now()
	views := make([]*models.KeyWithCheckout, 0, len(rows))
	for _, ks := range rows {
		views = append(views, NewKeyView(ks, policy, now))
	}
	return views, nil
}

// UpdateKey rewrites descriptive fields. Status and category never change here.
func (s *KeyService) UpdateKey(ctx context.Context, dealershipID, keyID, actorUserID string, req *models.UpdateKeyRequest) (*models.KeyWithCheckout, error) {
	policy, err := s.dealerships.GetPolicy(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	ks, err := s.keys.Get(ctx, dealershipID, keyID)
	if err != nil {
		return nil, err
	}
	k := ks.Key

	changed := map[string]interface{}{}
	if req.StockNumber != nil {
		stock := strings.TrimSpace(*req.StockNumber)
		if stock == "" {
			return nil, apperrors.Validation("stock number cannot be empty")
		}
		if !strings.EqualFold(stock, k.StockNumber) {
			changed["stock_number"] = stock
		}
		k.StockNumber = stock
	}
	if req.VehicleYear != nil {
		if err := validateYear(*req.VehicleYear); err != nil {
			return nil, err
		}
		changed["vehicle_year"] = *req.VehicleYear
		k.VehicleYear = req.VehicleYear
	}
	if req.VehicleMake != nil {
		changed["vehicle_make"] = *req.VehicleMake
		k.VehicleMake = strings.TrimSpace(*req.VehicleMake)
	}
	if req.VehicleModel != nil {
		model := strings.TrimSpace(*req.VehicleModel)
		if model == "" {
			return nil, apperrors.Validation("vehicle model cannot be empty")
		}
		changed["vehicle_model"] = model
		k.VehicleModel = model
	}
	if req.VehicleVIN != nil {
		vin := strings.ToUpper(strings.TrimSpace(*req.VehicleVIN))
		changed["vehicle_vin"] = vin
		k.VehicleVIN = vin
	}
	if req.Color != nil {
		changed["color"] = *req.Color
		k.Color = strings.TrimSpace(*req.Color)
	}

	if len(changed) == 0 {
		return NewKeyView(ks, policy, s.clock.Now()), nil
	}

	if err := s.keys.Update(ctx, &k, actorUserID, changed); err != nil {
		return nil, err
	}

	cache.InvalidateKeyCaches(ctx, dealershipID)
	s.notify(dealershipID)

	return s.view(ctx, dealershipID, keyID, policy)
}

// ChangeStatus moves a key through the status graph. Reactivating (any move
// back to ACTIVE) needs elevated privilege; the store serializes the
// transition against checkouts and blocks it while a session is open.
func (s *KeyService) ChangeStatus(ctx context.Context, dealershipID, keyID, actorUserID string, isAdmin bool, newStatus string) (*models.KeyWithCheckout, error) {
	policy, err := s.dealerships.GetPolicy(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	newStatus = strings.ToUpper(strings.TrimSpace(newStatus))
	if !models.ValidStatus(newStatus) {
		return nil, apperrors.Validationf("unknown status %q", newStatus)
	}
	if !models.StatusLegalForDealer(policy.DealerType, newStatus) {
		return nil, apperrors.Validationf("status %s is not available for %s dealerships", newStatus, policy.DealerType)
	}
	if newStatus == models.KeyStatusDeleted {
		return nil, apperrors.Validation("use delete to retire a key")
	}
	if newStatus == models.KeyStatusActive && !isAdmin {
		return nil, apperrors.Authorization("reactivating a key requires admin privileges")
	}

	if _, err := s.keys.ChangeStatus(ctx, dealershipID, keyID, newStatus, actorUserID); err != nil {
		return nil, err
	}

	cache.InvalidateKeyCaches(ctx, dealershipID)
	s.notify(dealershipID)

	return s.view(ctx, dealershipID, keyID, policy)
}

// DeleteKey retires a key permanently. Only ACTIVE keys with no open session
// can be deleted; the row stays behind the scenes for history.
func (s *KeyService) DeleteKey(ctx context.Context, dealershipID, keyID, actorUserID string) error {
	if err := s.keys.Delete(ctx, dealershipID, keyID, actorUserID); err != nil {
		return err
	}
	cache.InvalidateKeyCaches(ctx, dealershipID)
	s.notify(dealershipID)
	return nil
}

// BulkImport creates keys row by row. The batch never aborts as a whole;
// each row succeeds or fails on its own and the result reports both sides.
func (s *KeyService) BulkImport(ctx context.Context, dealershipID, actorUserID string, req *models.BulkImportRequest) (*models.BulkImportResult, error) {
	if len(req.Keys) == 0 {
		return nil, apperrors.Validation("no rows to import")
	}
	if len(req.Keys) > maxBulkImportRows {
		return nil, apperrors.Validationf("at most %d rows per import", maxBulkImportRows)
	}

	result := &models.BulkImportResult{Items: make([]models.BulkImportItemResult, 0, len(req.Keys))}
	for i := range req.Keys {
		row := req.Keys[i]
		item := models.BulkImportItemResult{Index: i, StockNumber: strings.TrimSpace(row.StockNumber)}

		k, err := buildKey(dealershipID, &row)
		if err == nil {
			err = s.keys.Create(ctx, k, actorUserID)
		}
		if err != nil {
			item.Error = err.Error()
			result.Failed++
		} else {
			item.Success = true
			item.KeyID = k.ID
			result.Created++
		}
		result.Items = append(result.Items, item)
	}

	if err := s.events.Insert(ctx, &models.KeyEvent{
		DealershipID: dealershipID,
		ActorUserID:  &actorUserID,
		Action:       models.ActionBulkImport,
		Details:      map[string]interface{}{"created": result.Created, "failed": result.Failed},
	}); err != nil {
		return nil, err
	}

	cache.InvalidateKeyCaches(ctx, dealershipID)
	s.notify(dealershipID)

	return result, nil
}

// UpdatePDIStatus records a pre-delivery inspection step. PDI tracking exists
// for AUTO dealerships only.
func (s *KeyService) UpdatePDIStatus(ctx context.Context, dealershipID, keyID, actorUserID string, req *models.UpdatePDIStatusRequest) (*models.KeyWithCheckout, error) {
	policy, err := s.dealerships.GetPolicy(ctx, dealershipID)
	if err != nil {
		return nil, err
	}
	if policy.DealerType != models.DealerTypeAuto {
		return nil, apperrors.Validation("PDI tracking is not available for this dealership type")
	}

	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if !models.ValidPDIStatus(status) {
		return nil, apperrors.Validationf("unknown PDI status %q", req.Status)
	}

	if _, err := s.keys.UpdatePDIStatus(ctx, dealershipID, keyID, status, strings.TrimSpace(req.Notes), actorUserID); err != nil {
		return nil, err
	}

	cache.InvalidateKeyCaches(ctx, dealershipID)
	s.notify(dealershipID)

	return s.view(ctx, dealershipID, keyID, policy)
}

// AddPhoto attaches an uploaded photo URL to the key, up to three.
func (s *KeyService) AddPhoto(ctx context.Context, dealershipID, keyID, actorUserID, url string) ([]string, error) {
	photos, err := s.keys.AddPhoto(ctx, dealershipID, keyID, url, actorUserID)
	if err != nil {
		return nil, err
	}
	cache.InvalidateKeyCaches(ctx, dealershipID)
	return photos, nil
}

// RemovePhoto detaches a photo URL from the key.
func (s *KeyService) RemovePhoto(ctx context.Context, dealershipID, keyID, actorUserID, url string) ([]string, error) {
	photos, err := s.keys.RemovePhoto(ctx, dealershipID, keyID, url, actorUserID)
	if err != nil {
		return nil, err
	}
	cache.InvalidateKeyCaches(ctx, dealershipID)
	return photos, nil
}

func (s *KeyService) view(ctx context.Context, dealershipID, keyID string, policy *models.AlertPolicy) (*models.KeyWithCheckout, error) {
	ks, err := s.keys.Get(ctx, dealershipID, keyID)
	if err != nil {
		return nil, err
	}
	return NewKeyView(ks, policy, s.clock.Now()), nil
}

func (s *KeyService) notify(dealershipID string) {
	if s.notifier != nil {
		s.notifier.BoardChanged(dealershipID)
	}
}

// buildKey validates a create request and assembles the key row.
func buildKey(dealershipID string, req *models.CreateKeyRequest) (*models.Key, error) {
	stock := strings.TrimSpace(req.StockNumber)
	if stock == "" {
		return nil, apperrors.Validation("stock number is required")
	}
	category := strings.ToUpper(strings.TrimSpace(req.Category))
	if !models.ValidCategory(category) {
		return nil, apperrors.Validationf("category must be %s or %s", models.CategoryNew, models.CategoryUsed)
	}
	model := strings.TrimSpace(req.VehicleModel)
	if model == "" {
		return nil, apperrors.Validation("vehicle model is required")
	}
	if req.VehicleYear != nil {
		if err := validateYear(*req.VehicleYear); err != nil {
			return nil, err
		}
	}

	return &models.Key{
		DealershipID: dealershipID,
		StockNumber:  stock,
		Category:     category,
		Status:       models.KeyStatusActive,
		VehicleYear:  req.VehicleYear,
		VehicleMake:  strings.TrimSpace(req.VehicleMake),
		VehicleModel: model,
		VehicleVIN:   strings.ToUpper(strings.TrimSpace(req.VehicleVIN)),
		Color:        strings.TrimSpace(req.Color),
		PDIStatus:    models.PDINotYet,
	}, nil
}

func validateYear(year int) error {
	if year < 1900 || year > 2100 {
		return apperrors.Validationf("vehicle year %d is out of range", year)
	}
	return nil
}

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
)

// maxServiceBays keeps the bay board renderable.
const maxServiceBays = 100

type DealershipService struct {
	Repo *repositories.DealershipRepository
}

func NewDealershipService(repo *repositories.DealershipRepository) *DealershipService {
	return &DealershipService{Repo: repo}
}

func (s *DealershipService) Create(ctx context.Context, req *models.CreateDealershipRequest) (*models.Dealership, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("dealership name is required")
	}
	dealerType := strings.ToUpper(strings.TrimSpace(req.DealerType))
	if !models.ValidDealerType(dealerType) {
		return nil, apperrors.Validationf("dealer type must be %s or %s", models.DealerTypeAuto, models.DealerTypeRV)
	}
	if req.ServiceBays < 0 || req.ServiceBays > maxServiceBays {
		return nil, apperrors.Validationf("service bays must be between 0 and %d", maxServiceBays)
	}

	d := &models.Dealership{
		Name:        name,
		DealerType:  dealerType,
		LogoURL:     strings.TrimSpace(req.LogoURL),
		ServiceBays: req.ServiceBays,
	}
	if err := s.Repo.Create(ctx, d); err != nil {
		return nil, err
	}
	cache.InvalidateFleetCaches(ctx)
	return d, nil
}

// Get implements the dealership lookup side of the checkout core's provider.
func (s *DealershipService) Get(ctx context.Context, dealershipID string) (*models.Dealership, error) {
	return s.Repo.Get(ctx, dealershipID)
}

func (s *DealershipService) List(ctx context.Context) ([]*models.Dealership, error) {
	if data, ok := cache.GetCached(ctx, cache.DealershipListKey); ok {
		var list []*models.Dealership
		if err := json.Unmarshal(data, &list); err == nil {
			return list, nil
		}
	}

	list, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(list); err == nil {
		cache.SetCached(ctx, cache.DealershipListKey, data, cache.DealershipListTTL)
	}
	return list, nil
}

func (s *DealershipService) Update(ctx context.Context, dealershipID string, req *models.UpdateDealershipRequest) (*models.Dealership, error) {
	d, err := s.Repo.Get(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.Validation("dealership name cannot be empty")
		}
		d.Name = name
	}
	if req.LogoURL != nil {
		d.LogoURL = strings.TrimSpace(*req.LogoURL)
	}
	if req.ServiceBays != nil {
		if *req.ServiceBays < 0 || *req.ServiceBays > maxServiceBays {
			return nil, apperrors.Validationf("service bays must be between 0 and %d", maxServiceBays)
		}
		d.ServiceBays = *req.ServiceBays
	}

	if err := s.Repo.Update(ctx, d); err != nil {
		return nil, err
	}
	cache.InvalidateDealershipCaches(ctx, dealershipID)
	cache.InvalidateFleetCaches(ctx)
	return d, nil
}

// UpdateAlertSettings changes the yellow/red thresholds. yellow < red is
// enforced here on the write side; readers never re-validate.
func (s *DealershipService) UpdateAlertSettings(ctx context.Context, dealershipID string, req *models.UpdateAlertSettingsRequest) (*models.Dealership, error) {
	if req.YellowMinutes < 1 {
		return nil, apperrors.Validation("yellow threshold must be at least 1 minute")
	}
	if req.RedMinutes <= req.YellowMinutes {
		return nil, apperrors.Validation("red threshold must be greater than the yellow threshold")
	}

	d, err := s.Repo.UpdateAlertSettings(ctx, dealershipID, req.YellowMinutes, req.RedMinutes)
	if err != nil {
		return nil, err
	}
	cache.InvalidatePolicyCaches(ctx, dealershipID)
	cache.InvalidateFleetCaches(ctx)

	// Re-warm in the background so the next checkout sees the new thresholds
	// without a database round trip.
	policy := &models.AlertPolicy{
		YellowMinutes: d.YellowMinutes,
		RedMinutes:    d.RedMinutes,
		DealerType:    d.DealerType,
	}
	cache.PreWarmKey(fmt.Sprintf(cache.PolicyKeyFmt, dealershipID), func(ctx context.Context) ([]byte, error) {
		return json.Marshal(policy)
	}, cache.PolicyTTL)

	return d, nil
}

func (s *DealershipService) SetActive(ctx context.Context, dealershipID string, active bool) error {
	if err := s.Repo.SetActive(ctx, dealershipID, active); err != nil {
		return err
	}
	cache.InvalidateDealershipCaches(ctx, dealershipID)
	cache.InvalidateFleetCaches(ctx)
	return nil
}

// GetPolicy returns the alert thresholds and dealer type. The cache TTL is
// short and every threshold write invalidates, so a changed policy shows up
// on the next operation.
func (s *DealershipService) GetPolicy(ctx context.Context, dealershipID string) (*models.AlertPolicy, error) {
	cacheKey := fmt.Sprintf(cache.PolicyKeyFmt, dealershipID)
	if data, ok := cache.GetCached(ctx, cacheKey); ok {
		var p models.AlertPolicy
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
	}

	p, err := s.Repo.GetPolicy(ctx, dealershipID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(p); err == nil {
		cache.SetCached(ctx, cacheKey, data, cache.PolicyTTL)
	}
	return p, nil
}

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

// RepairService tracks physical problems with keys and tags: broken fobs,
// dead batteries, unreadable tags. A pending request is a work queue item
// for whoever handles key hardware.
type RepairService struct {
	Repo  *repositories.RepairRequestRepository
	Keys  *repositories.KeyRepository
	Clock timeutil.Clock
}

func NewRepairService(repo *repositories.RepairRequestRepository, keys *repositories.KeyRepository, clock timeutil.Clock) *RepairService {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &RepairService{Repo: repo, Keys: keys, Clock: clock}
}

// Report files a repair request against a key. The key must exist and be
// visible; reporting against a deleted key fails the same way any lookup does.
func (s *RepairService) Report(ctx context.Context, dealershipID, actorUserID string, req *models.CreateRepairRequest) (*models.RepairRequest, error) {
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		return nil, apperrors.Validation("notes are required; describe what is wrong")
	}

	ks, err := s.Keys.Get(ctx, dealershipID, req.KeyID)
	if err != nil {
		return nil, err
	}

	rr := &models.RepairRequest{
		KeyID:            ks.Key.ID,
		DealershipID:     dealershipID,
		StockNumber:      ks.Key.StockNumber,
		ReportedByUserID: actorUserID,
		Notes:            notes,
	}
	if err := s.Repo.Create(ctx, rr); err != nil {
		return nil, err
	}

	cache.InvalidateRepairCaches(ctx, dealershipID)
	return rr, nil
}

// List returns repair requests, pending first. The unfiltered list is cached
// briefly because the dashboard polls it.
func (s *RepairService) List(ctx context.Context, dealershipID, status string) ([]*models.RepairRequest, error) {
	if status != "" && status != models.RepairPending && status != models.RepairFixed {
		return nil, apperrors.Validationf("invalid status filter: %s", status)
	}

	cacheKey := ""
	if status == "" {
		cacheKey = fmt.Sprintf(cache.RepairListFmt, dealershipID)
		if data, ok := cache.GetCached(ctx, cacheKey); ok {
			var cached []*models.RepairRequest
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	requests, err := s.Repo.List(ctx, dealershipID, status)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		if data, err := json.Marshal(requests); err == nil {
			cache.SetCached(ctx, cacheKey, data, cache.RepairListTTL)
		}
	}
	return requests, nil
}

// MarkFixed resolves a pending request. Resolving twice is a conflict.
func (s *RepairService) MarkFixed(ctx context.Context, dealershipID, requestID, actorUserID string, req *models.MarkFixedRequest) (*models.RepairRequest, error) {
	rr, err := s.Repo.MarkFixed(ctx, dealershipID, requestID, actorUserID, strings.TrimSpace(req.Notes), s.Clock.Now())
	if err != nil {
		return nil, err
	}

	cache.InvalidateRepairCaches(ctx, dealershipID)
	return rr, nil
}

// CountPending returns the badge count for the repair queue.
func (s *RepairService) CountPending(ctx context.Context, dealershipID string) (int, error) {
	return s.Repo.CountPending(ctx, dealershipID)
}

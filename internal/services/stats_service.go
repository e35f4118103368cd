package services

import (
	"context"
	"encoding/json"
	"fmt"

	"keyflow-backend/internal/cache"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/repositories"
	"keyflow-backend/internal/timeutil"
)

// recentEventLimit bounds the activity feed on the dashboard.
const recentEventLimit = 20

// StatsService assembles the dashboard aggregate for one dealership.
type StatsService struct {
	Keys        *repositories.KeyRepository
	Sessions    *repositories.CheckoutSessionRepository
	Repairs     *repositories.RepairRequestRepository
	Events      *repositories.KeyEventRepository
	Dealerships *DealershipService
	Clock       timeutil.Clock
}

func NewStatsService(
	keys *repositories.KeyRepository,
	sessions *repositories.CheckoutSessionRepository,
	repairs *repositories.RepairRequestRepository,
	events *repositories.KeyEventRepository,
	dealerships *DealershipService,
	clock timeutil.Clock,
) *StatsService {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &StatsService{
		Keys:        keys,
		Sessions:    sessions,
		Repairs:     repairs,
		Events:      events,
		Dealerships: dealerships,
		Clock:       clock,
	}
}

// GetStats returns the dashboard aggregate. The whole blob is cached for a
// minute; key and repair writes invalidate it, so a stale read lasts at most
// one polling cycle.
func (s *StatsService) GetStats(ctx context.Context, dealershipID string) (*models.DealershipStats, error) {
	cacheKey := fmt.Sprintf(cache.StatsKeyFmt, dealershipID)
	if data, ok := cache.GetCached(ctx, cacheKey); ok {
		var cached models.DealershipStats
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	stats, err := s.buildStats(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(stats); err == nil {
		cache.SetCached(ctx, cacheKey, data, cache.StatsTTL)
	}
	return stats, nil
}

func (s *StatsService) buildStats(ctx context.Context, dealershipID string) (*models.DealershipStats, error) {
	byStatus, err := s.Keys.CountByStatus(ctx, dealershipID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range byStatus {
		total += n
	}

	policy, err := s.Dealerships.GetPolicy(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	open, err := s.Sessions.ListOpenByDealership(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	byAlert := map[string]int{
		models.AlertGreen:  0,
		models.AlertYellow: 0,
		models.AlertRed:    0,
	}
	byReason := map[string]int{}
	for _, sess := range open {
		elapsed := timeutil.ElapsedMinutes(sess.CheckedOutAt, now)
		byAlert[ComputeAlertState(elapsed, policy.YellowMinutes, policy.RedMinutes)]++
		byReason[sess.CheckoutReason]++
	}

	pending, err := s.Repairs.CountPending(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	recent, err := s.Events.ListByDealership(ctx, dealershipID, "", recentEventLimit)
	if err != nil {
		return nil, err
	}
	events := make([]models.KeyEvent, 0, len(recent))
	for _, e := range recent {
		events = append(events, *e)
	}

	return &models.DealershipStats{
		TotalKeys:      total,
		KeysByStatus:   byStatus,
		OpenCheckouts:  len(open),
		ByAlertState:   byAlert,
		ByReason:       byReason,
		PendingRepairs: pending,
		RecentEvents:   events,
	}, nil
}

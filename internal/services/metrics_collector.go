package services

import (
	"context"
	"log"
	"sync"
	"time"

	"keyflow-backend/internal/metrics"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/repositories"
	"keyflow-backend/internal/timeutil"
)

// MetricsCollector refreshes the per-dealership Prometheus gauges on a fixed
// interval. Alert-state gauges have to be recomputed from the clock even when
// no requests arrive, which is why this runs in the background instead of on
// the request path.
type MetricsCollector struct {
	dealershipRepo *repositories.DealershipRepository
	sessionRepo    *repositories.CheckoutSessionRepository
	repairRepo     *repositories.RepairRequestRepository
	clock          timeutil.Clock

	collectInterval time.Duration
	stopChan        chan struct{}
	wg              sync.WaitGroup
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(
	dealershipRepo *repositories.DealershipRepository,
	sessionRepo *repositories.CheckoutSessionRepository,
	repairRepo *repositories.RepairRequestRepository,
	clock timeutil.Clock,
) *MetricsCollector {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &MetricsCollector{
		dealershipRepo:  dealershipRepo,
		sessionRepo:     sessionRepo,
		repairRepo:      repairRepo,
		clock:           clock,
		collectInterval: 30 * time.Second,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the collection loop
func (c *MetricsCollector) Start() {
	log.Println("[MetricsCollector] Starting metrics collector...")

	// Collect immediately on start
	c.collectAll()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.collectInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.collectAll()
			case <-c.stopChan:
				log.Println("[MetricsCollector] Stopping metrics collector...")
				return
			}
		}
	}()
}

// Stop stops the collection loop
func (c *MetricsCollector) Stop() {
	close(c.stopChan)
	c.wg.Wait()
}

// collectAll refreshes gauges for every active dealership in parallel.
func (c *MetricsCollector) collectAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	dealerships, err := c.dealershipRepo.List(ctx)
	if err != nil {
		log.Printf("[MetricsCollector] Error listing dealerships: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, d := range dealerships {
		if !d.IsActive {
			continue
		}
		wg.Add(1)
		go func(d *models.Dealership) {
			defer wg.Done()
			c.collectDealership(ctx, d)
		}(d)
	}
	wg.Wait()
}

// collectDealership updates the gauges for a single dealership.
func (c *MetricsCollector) collectDealership(ctx context.Context, d *models.Dealership) {
	open, err := c.sessionRepo.ListOpenByDealership(ctx, d.ID)
	if err != nil {
		log.Printf("[MetricsCollector] Error listing open sessions for %s: %v", d.Name, err)
		return
	}

	now := c.clock.Now()
	byState := map[string]int{
		models.AlertGreen:  0,
		models.AlertYellow: 0,
		models.AlertRed:    0,
	}
	for _, sess := range open {
		elapsed := timeutil.ElapsedMinutes(sess.CheckedOutAt, now)
		byState[ComputeAlertState(elapsed, d.YellowMinutes, d.RedMinutes)]++
	}

	metrics.OpenCheckouts.WithLabelValues(d.Name).Set(float64(len(open)))
	for state, count := range byState {
		metrics.KeysByAlertState.WithLabelValues(d.Name, state).Set(float64(count))
	}

	pending, err := c.repairRepo.CountPending(ctx, d.ID)
	if err != nil {
		log.Printf("[MetricsCollector] Error counting pending repairs for %s: %v", d.Name, err)
		return
	}
	metrics.PendingRepairs.WithLabelValues(d.Name).Set(float64(pending))
}

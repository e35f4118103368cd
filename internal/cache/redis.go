package cache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache key formats. Everything is scoped by dealership id.
const (
	PolicyKeyFmt  = "policy:%s"
	KeyListFmt    = "keys:%s"
	StatsKeyFmt   = "stats:%s"
	RepairListFmt = "repairs:%s"
)

// DealershipListKey holds the owner fleet list. It is the one key not scoped
// to a dealership.
const DealershipListKey = "dealerships:all"

// PolicyTTL is deliberately short: policy must be read fresh per operation,
// never cached indefinitely. Writes invalidate it immediately as well.
const PolicyTTL = 60 * time.Second

// KeyListTTL bounds staleness of cached raw key rows. Alert states are never
// cached; they are derived from the clock on every read.
const KeyListTTL = 30 * time.Second

// StatsTTL covers the dashboard aggregates.
const StatsTTL = time.Minute

// RepairListTTL covers the pending-repairs list.
const RepairListTTL = 30 * time.Second

// DealershipListTTL covers the owner fleet list. Dealerships change rarely
// and every write invalidates, so this can run longer than the rest.
const DealershipListTTL = 5 * time.Minute

var client *redis.Client

// Init initializes the Redis connection
func Init() error {
	// K8s sets REDIS_SERVICE_HOST and REDIS_SERVICE_PORT for services
	host := os.Getenv("REDIS_SERVICE_HOST")
	if host == "" {
		host = "redis" // fallback to service name
	}
	port := os.Getenv("REDIS_SERVICE_PORT")
	if port == "" {
		port = "6379"
	}

	client = redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// Close the failed client and set to nil for graceful degradation
		client.Close()
		client = nil
		return err
	}
	return nil
}

// GetClient returns the Redis client
func GetClient() *redis.Client {
	return client
}

// ============================================
// Generic Cache Functions
// ============================================

// GetCached returns cached data for a key
func GetCached(ctx context.Context, key string) ([]byte, bool) {
	if client == nil {
		return nil, false
	}
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetCached stores data with a TTL
func SetCached(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if client == nil {
		return
	}
	client.Set(ctx, key, data, ttl)
}

// ============================================
// Cache Invalidation Functions
// ============================================

// InvalidatePattern removes all keys matching a glob pattern
func InvalidatePattern(ctx context.Context, pattern string) {
	if client == nil {
		return
	}
	keys, err := client.Keys(ctx, pattern).Result()
	if err == nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateKeys removes specific cache keys
func InvalidateKeys(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}

// ============================================
// Entity-Based Cache Invalidators
// ============================================

// InvalidateKeyCaches clears key-list and stats caches for a dealership.
// Called when: CreateKey, UpdateKey, DeleteKey, ChangeStatus, Checkout,
// Return, UpdateLocation, BulkImport
func InvalidateKeyCaches(ctx context.Context, dealershipID string) {
	InvalidateKeys(ctx,
		fmt.Sprintf(KeyListFmt, dealershipID),
		fmt.Sprintf(StatsKeyFmt, dealershipID),
	)
}

// InvalidatePolicyCaches clears the cached alert policy for a dealership.
// Called when: UpdateAlertSettings, UpdateDealership
func InvalidatePolicyCaches(ctx context.Context, dealershipID string) {
	InvalidateKeys(ctx, fmt.Sprintf(PolicyKeyFmt, dealershipID))
}

// InvalidateRepairCaches clears repair-request caches for a dealership.
// Called when: CreateRepairRequest, MarkFixed
func InvalidateRepairCaches(ctx context.Context, dealershipID string) {
	InvalidateKeys(ctx,
		fmt.Sprintf(RepairListFmt, dealershipID),
		fmt.Sprintf(StatsKeyFmt, dealershipID),
	)
}

// InvalidateUserCaches clears all user-related caches
// Called when: CreateUser, UpdateUser, DeactivateUser
func InvalidateUserCaches(ctx context.Context) {
	InvalidatePattern(ctx, "users:*")
}

// InvalidateFleetCaches clears the owner fleet list.
// Called when: CreateDealership, UpdateDealership, UpdateAlertSettings, SetActive
func InvalidateFleetCaches(ctx context.Context) {
	InvalidateKeys(ctx, DealershipListKey)
}

// InvalidateDealershipCaches clears everything scoped to one dealership.
// Called when: DeleteDealership and other full resets
func InvalidateDealershipCaches(ctx context.Context, dealershipID string) {
	InvalidateKeys(ctx,
		fmt.Sprintf(PolicyKeyFmt, dealershipID),
		fmt.Sprintf(KeyListFmt, dealershipID),
		fmt.Sprintf(StatsKeyFmt, dealershipID),
		fmt.Sprintf(RepairListFmt, dealershipID),
	)
}

// ============================================
// Pre-warm Cache Functions
// ============================================

// PreWarmCallback is a function that populates a cache key
type PreWarmCallback func(ctx context.Context) ([]byte, error)

// preWarmCallbacks stores functions to pre-warm cache on startup
var preWarmCallbacks = make(map[string]PreWarmCallback)

// RegisterPreWarm registers a callback to pre-warm a cache key
// This should be called during handler initialization
func RegisterPreWarm(key string, callback PreWarmCallback) {
	preWarmCallbacks[key] = callback
}

// PreWarmCache pre-warms registered cache keys on startup
// Runs in background, non-blocking
func PreWarmCache() {
	if client == nil {
		return
	}

	ctx := context.Background()

	for key, callback := range preWarmCallbacks {
		// Check if already cached (another pod may have done it)
		if _, ok := GetCached(ctx, key); ok {
			continue
		}

		// Call the pre-warm function
		data, err := callback(ctx)
		if err != nil {
			continue
		}

		// Cache with appropriate TTL based on key prefix
		ttl := 5 * time.Minute // default
		if len(key) > 7 && key[:7] == "policy:" {
			ttl = PolicyTTL
		} else if len(key) > 6 && key[:6] == "stats:" {
			ttl = time.Minute
		}

		SetCached(ctx, key, data, ttl)
	}
}

// PreWarmKey pre-warms a specific cache key in the background
// Called after cache invalidation to ensure next request is fast
// fetcher should return the data to cache, ttl specifies how long to cache
// This is non-blocking - runs in a goroutine
func PreWarmKey(key string, fetcher func(ctx context.Context) ([]byte, error), ttl time.Duration) {
	if client == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		data, err := fetcher(ctx)
		if err != nil {
			// Next request will just fetch from the database
			return
		}

		SetCached(ctx, key, data, ttl)
	}()
}

// IsHealthy returns true if Redis connection is working
func IsHealthy() bool {
	if client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err() == nil
}

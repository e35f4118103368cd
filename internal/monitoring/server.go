package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// MonitoringServer serves an operations dashboard API on a separate port.
// It is not reachable through the main router and carries no auth, so it
// must only ever be bound on an internal interface.
type MonitoringServer struct {
	db         *pgxpool.Pool
	port       int
	alerts     []Alert
	alertsMux  sync.RWMutex
	clients    map[*websocket.Conn]bool
	clientsMux sync.Mutex
	broadcast  chan Alert
}

// Alert is a dashboard notification pushed to connected websocket clients.
type Alert struct {
	ID        string    `json:"id"`
	Severity  string    `json:"severity"` // critical, warning, info
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// DashboardStats is the payload for the stats endpoint.
type DashboardStats struct {
	Database DatabaseStats `json:"database"`
	System   SystemStats   `json:"system"`
	Fleet    FleetStats    `json:"fleet"`
}

// DatabaseStats describes the health of the PostgreSQL instance.
type DatabaseStats struct {
	Status          string `json:"status"`
	ResponseTimeMs  int64  `json:"response_time_ms"`
	ActiveConns     int    `json:"active_connections"`
	DatabaseSize    string `json:"database_size"`
	Uptime          string `json:"uptime"`
	TotalPoolConns  int32  `json:"total_pool_connections"`
	IdlePoolConns   int32  `json:"idle_pool_connections"`
	MaxPoolConns    int32  `json:"max_pool_connections"`
}

// SystemStats describes the host the server runs on.
type SystemStats struct {
	CPUUsagePercent    float64 `json:"cpu_usage_percent"`
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
	MemoryUsed         string  `json:"memory_used"`
	MemoryTotal        string  `json:"memory_total"`
	DiskUsagePercent   float64 `json:"disk_usage_percent"`
	DiskUsed           string  `json:"disk_used"`
	DiskTotal          string  `json:"disk_total"`
}

// FleetStats summarizes key activity across every active dealership.
type FleetStats struct {
	ActiveDealerships int `json:"active_dealerships"`
	KeysOut           int `json:"keys_out"`
	OverdueKeys       int `json:"overdue_keys"`
	PendingRepairs    int `json:"pending_repairs"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // internal-only port
	},
}

func NewMonitoringServer(db *pgxpool.Pool, port int) *MonitoringServer {
	return &MonitoringServer{
		db:        db,
		port:      port,
		alerts:    make([]Alert, 0),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Alert, 16),
	}
}

// Start runs the monitoring HTTP server. It blocks, so call it in a goroutine.
func (m *MonitoringServer) Start() error {
	router := mux.NewRouter()

	router.HandleFunc("/api/stats", m.handleStats).Methods("GET")
	router.HandleFunc("/api/alerts", m.handleAlerts).Methods("GET")
	router.HandleFunc("/api/test-alert", m.handleTestAlert).Methods("POST")
	router.HandleFunc("/ws", m.handleWebSocket)

	go m.handleBroadcast()
	go m.monitorHealth()

	addr := fmt.Sprintf(":%d", m.port)
	log.Printf("Monitoring server listening on %s", addr)
	return http.ListenAndServe(addr, router)
}

func (m *MonitoringServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := m.collectStats(r.Context())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (m *MonitoringServer) handleAlerts(w http.ResponseWriter, r *http.Request) {
	m.alertsMux.RLock()
	alerts := make([]Alert, len(m.alerts))
	copy(alerts, m.alerts)
	m.alertsMux.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alerts)
}

func (m *MonitoringServer) handleTestAlert(w http.ResponseWriter, r *http.Request) {
	alert := Alert{
		ID:        fmt.Sprintf("test-%d", time.Now().UnixNano()),
		Severity:  "info",
		Title:     "Test Alert",
		Message:   "This is a test alert from the monitoring dashboard",
		Timestamp: time.Now(),
	}
	m.addAlert(alert)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "sent"})
}

func (m *MonitoringServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Monitoring websocket upgrade failed: %v", err)
		return
	}

	m.clientsMux.Lock()
	m.clients[conn] = true
	m.clientsMux.Unlock()

	// Read loop only exists to notice the client going away.
	go func() {
		defer func() {
			m.clientsMux.Lock()
			delete(m.clients, conn)
			m.clientsMux.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (m *MonitoringServer) handleBroadcast() {
	for alert := range m.broadcast {
		m.clientsMux.Lock()
		for conn := range m.clients {
			if err := conn.WriteJSON(alert); err != nil {
				conn.Close()
				delete(m.clients, conn)
			}
		}
		m.clientsMux.Unlock()
	}
}

func (m *MonitoringServer) addAlert(alert Alert) {
	m.alertsMux.Lock()
	m.alerts = append(m.alerts, alert)
	// Keep the alert history bounded.
	if len(m.alerts) > 100 {
		m.alerts = m.alerts[len(m.alerts)-100:]
	}
	m.alertsMux.Unlock()

	select {
	case m.broadcast <- alert:
	default:
		log.Printf("Monitoring broadcast channel full, dropping alert %s", alert.ID)
	}
}

func (m *MonitoringServer) collectStats(ctx context.Context) DashboardStats {
	stats := DashboardStats{}
	stats.Database = m.collectDatabaseStats(ctx)
	stats.System = m.collectSystemStats()
	stats.Fleet = m.collectFleetStats(ctx)
	return stats
}

func (m *MonitoringServer) collectDatabaseStats(ctx context.Context) DatabaseStats {
	dbStats := DatabaseStats{Status: "healthy"}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := m.db.Ping(ctx); err != nil {
		dbStats.Status = "down"
		return dbStats
	}
	dbStats.ResponseTimeMs = time.Since(start).Milliseconds()

	if err := m.db.QueryRow(ctx,
		"SELECT count(*) FROM pg_stat_activity WHERE state = 'active'").
		Scan(&dbStats.ActiveConns); err != nil {
		log.Printf("Failed to query active connections: %v", err)
	}

	var sizeBytes int64
	if err := m.db.QueryRow(ctx,
		"SELECT pg_database_size(current_database())").
		Scan(&sizeBytes); err != nil {
		log.Printf("Failed to query database size: %v", err)
	} else {
		dbStats.DatabaseSize = formatBytes(uint64(sizeBytes))
	}

	var startTime time.Time
	if err := m.db.QueryRow(ctx,
		"SELECT pg_postmaster_start_time()").
		Scan(&startTime); err != nil {
		log.Printf("Failed to query postmaster start time: %v", err)
	} else {
		dbStats.Uptime = formatUptime(time.Since(startTime))
	}

	pool := m.db.Stat()
	dbStats.TotalPoolConns = pool.TotalConns()
	dbStats.IdlePoolConns = pool.IdleConns()
	dbStats.MaxPoolConns = pool.MaxConns()

	return dbStats
}

func (m *MonitoringServer) collectSystemStats() SystemStats {
	sys := SystemStats{}

	if percents, err := cpu.Percent(time.Second, false); err == nil && len(percents) > 0 {
		sys.CPUUsagePercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		sys.MemoryUsagePercent = vm.UsedPercent
		sys.MemoryUsed = formatBytes(vm.Used)
		sys.MemoryTotal = formatBytes(vm.Total)
	}

	if du, err := disk.Usage("/"); err == nil {
		sys.DiskUsagePercent = du.UsedPercent
		sys.DiskUsed = formatBytes(du.Used)
		sys.DiskTotal = formatBytes(du.Total)
	}

	return sys
}

func (m *MonitoringServer) collectFleetStats(ctx context.Context) FleetStats {
	fleet := FleetStats{}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := m.db.QueryRow(ctx,
		"SELECT count(*) FROM dealerships WHERE is_active = true").
		Scan(&fleet.ActiveDealerships); err != nil {
		log.Printf("Failed to count active dealerships: %v", err)
	}

	if err := m.db.QueryRow(ctx,
		"SELECT count(*) FROM checkout_sessions WHERE is_open = true").
		Scan(&fleet.KeysOut); err != nil {
		log.Printf("Failed to count open checkouts: %v", err)
	}

	if err := m.db.QueryRow(ctx, `
		SELECT count(*)
		FROM checkout_sessions cs
		JOIN keys k ON k.id = cs.key_id
		JOIN dealerships d ON d.id = k.dealership_id
		WHERE cs.is_open = true
		  AND d.is_active = true
		  AND cs.checked_out_at <= NOW() - (d.red_minutes * interval '1 minute')`).
		Scan(&fleet.OverdueKeys); err != nil {
		log.Printf("Failed to count overdue keys: %v", err)
	}

	if err := m.db.QueryRow(ctx,
		"SELECT count(*) FROM repair_requests WHERE status = 'PENDING'").
		Scan(&fleet.PendingRepairs); err != nil {
		log.Printf("Failed to count pending repairs: %v", err)
	}

	return fleet
}

// monitorHealth checks the database and the key fleet every 30 seconds and
// raises alerts when something needs an operator's attention.
func (m *MonitoringServer) monitorHealth() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var lastDBDown, lastSlow, lastOverdue bool

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

		start := time.Now()
		err := m.db.Ping(ctx)
		elapsed := time.Since(start)

		if err != nil {
			if !lastDBDown {
				m.addAlert(Alert{
					ID:        fmt.Sprintf("db-down-%d", time.Now().UnixNano()),
					Severity:  "critical",
					Title:     "Database Down",
					Message:   fmt.Sprintf("Database ping failed: %v", err),
					Timestamp: time.Now(),
				})
			}
			lastDBDown = true
			cancel()
			continue
		}
		lastDBDown = false

		if elapsed > time.Second {
			if !lastSlow {
				m.addAlert(Alert{
					ID:        fmt.Sprintf("db-slow-%d", time.Now().UnixNano()),
					Severity:  "warning",
					Title:     "High Database Latency",
					Message:   fmt.Sprintf("Database ping took %dms", elapsed.Milliseconds()),
					Timestamp: time.Now(),
				})
			}
			lastSlow = true
		} else {
			lastSlow = false
		}

		var overdue int
		if qErr := m.db.QueryRow(ctx, `
			SELECT count(*)
			FROM checkout_sessions cs
			JOIN keys k ON k.id = cs.key_id
			JOIN dealerships d ON d.id = k.dealership_id
			WHERE cs.is_open = true
			  AND d.is_active = true
			  AND cs.checked_out_at <= NOW() - (d.red_minutes * interval '1 minute')`).
			Scan(&overdue); qErr == nil {
			if overdue > 0 && !lastOverdue {
				m.addAlert(Alert{
					ID:        fmt.Sprintf("overdue-%d", time.Now().UnixNano()),
					Severity:  "warning",
					Title:     "Keys Past Red Threshold",
					Message:   fmt.Sprintf("%d key(s) have been out past the red alert threshold", overdue),
					Timestamp: time.Now(),
				})
			}
			lastOverdue = overdue > 0
		}

		cancel()
	}
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

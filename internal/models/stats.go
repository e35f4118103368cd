package models

// DealershipStats is the dashboard aggregate for one dealership. Alert
// counts are derived at query time from open sessions and current policy.
type DealershipStats struct {
	TotalKeys      int            `json:"total_keys"`
	KeysByStatus   map[string]int `json:"keys_by_status"`
	OpenCheckouts  int            `json:"open_checkouts"`
	ByAlertState   map[string]int `json:"by_alert_state"`
	ByReason       map[string]int `json:"by_reason"`
	PendingRepairs int            `json:"pending_repairs"`
	RecentEvents   []KeyEvent     `json:"recent_events"`
}

package model

// TrackingStats is a point-in-time report over everything tracked.
// ChangeRate is TotalChanges/TotalChecks, 0 when nothing has been checked.
type TrackingStats struct {
	TotalProducts  int64   `json:"total_products"`
	ActiveProducts int64   `json:"active_products"`
	TotalChecks    int64   `json:"total_checks"`
	TotalChanges   int64   `json:"total_changes"`
	ChecksLast24h  int64   `json:"checks_last_24h"`
	ChangeRate     float64 `json:"change_rate"`
}

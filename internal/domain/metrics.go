package domain

// MetricsSummary is the 24-hour rollup shown on the dashboard
// overview, with per-hour rates taken from the most recent hour.
type MetricsSummary struct {
	TotalSessions     int64
	ActiveSessions    int64
	TotalTurns        int64
	TotalErrors       int64
	TotalCost         float64
	AvgContextPercent float64
	AvgDurationMs     float64
	TurnsPerHour      int64
	ErrorsPerHour     int64
	CostPerHour       float64
}

// HourlyMetrics is one hour bucket of per-gateway activity.
type HourlyMetrics struct {
	Hour              string
	GatewayID         string
	Turns             int64
	Errors            int64
	TotalCost         float64
	AvgContextPct     float64
	AvgDurationMs     float64
	UniqueSessions    int64
	TotalInputTokens  int64
	TotalOutputTokens int64
}

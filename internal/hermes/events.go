package hermes

import "time"

// PropertyScoredEvent is published whenever a stored ideality score changes.
type PropertyScoredEvent struct {
	PropertyID     string         `json:"property_id"`
	Score          int            `json:"score"`
	Breakdown      map[string]int `json:"breakdown"`
	EvaluationYear int            `json:"evaluation_year"`
	Source         string         `json:"source"`
}

type FavoriteEvent struct {
	UserID     string    `json:"user_id"`
	PropertyID string    `json:"property_id"`
	Action     string    `json:"action"`
	Timestamp  time.Time `json:"timestamp"`
}

type ReportGeneratedEvent struct {
	PropertyID     string    `json:"property_id"`
	Score          int       `json:"score"`
	Neighbors      int       `json:"neighbors"`
	EvaluationYear int       `json:"evaluation_year"`
	Timestamp      time.Time `json:"timestamp"`
}

type RescoreStatsEvent struct {
	Scanned        int       `json:"scanned"`
	Updated        int       `json:"updated"`
	Failed         int       `json:"failed"`
	EvaluationYear int       `json:"evaluation_year"`
	DurationMs     int64     `json:"duration_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

package models

import "time"

// StopReason explains why a crawl session ended.
type StopReason string

const (
	StopTargetReached      StopReason = "target_reached"
	StopExhausted          StopReason = "pagination_exhausted"
	StopPageCeiling        StopReason = "page_ceiling"
	StopFailures           StopReason = "failure_threshold"
	StopResultsUnavailable StopReason = "results_unavailable"
	StopCancelled          StopReason = "cancelled"
	StopFatal              StopReason = "fatal"
)

// Checkpoint describes one snapshot file written during a session.
type Checkpoint struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionReport is written next to every session's output so that
// under-delivery (achieved < target) is visible to the operator.
type SessionReport struct {
	SessionID   string     `json:"session_id"`
	Name        string     `json:"name"`
	SearchURL   string     `json:"search_url"`
	Target      int        `json:"target"`
	Achieved    int        `json:"achieved"`
	Pages       int        `json:"pages"`
	Failures    int        `json:"failures"`
	Recoveries  int        `json:"recoveries"`
	Checkpoints int        `json:"checkpoints"`
	StopReason  StopReason `json:"stop_reason"`
	OutputPath  string     `json:"output_path,omitempty"`
	Fatal       string     `json:"fatal,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  time.Time  `json:"finished_at"`
}

// SuccessRate returns achieved/target as a percentage.
func (r *SessionReport) SuccessRate() float64 {
	if r.Target <= 0 {
		return 0
	}
	return float64(r.Achieved) / float64(r.Target) * 100
}

// QueueSummary totals every session of one queue run.
type QueueSummary struct {
	Sessions      []QueueEntry `json:"sessions"`
	TotalTarget   int          `json:"total_target"`
	TotalAchieved int          `json:"total_achieved"`
	SuccessRate   float64      `json:"success_rate"`
	FinishedAt    time.Time    `json:"finished_at"`
}

// QueueEntry is one session's line in a QueueSummary.
type QueueEntry struct {
	Name       string     `json:"name"`
	SearchURL  string     `json:"search_url"`
	Target     int        `json:"target"`
	Achieved   int        `json:"achieved"`
	StopReason StopReason `json:"stop_reason"`
	Fatal      string     `json:"fatal,omitempty"`
}

// NewQueueSummary builds the totals over reports.
func NewQueueSummary(reports []*SessionReport, finishedAt time.Time) *QueueSummary {
	q := &QueueSummary{Sessions: []QueueEntry{}, FinishedAt: finishedAt}
	for _, r := range reports {
		q.Sessions = append(q.Sessions, QueueEntry{
			Name:       r.Name,
			SearchURL:  r.SearchURL,
			Target:     r.Target,
			Achieved:   r.Achieved,
			StopReason: r.StopReason,
			Fatal:      r.Fatal,
		})
		q.TotalTarget += r.Target
		q.TotalAchieved += r.Achieved
	}
	if q.TotalTarget > 0 {
		q.SuccessRate = float64(q.TotalAchieved) / float64(q.TotalTarget) * 100
	}
	return q
}

// InsightReport holds the computed analytics over one or more sessions.
type InsightReport struct {
	Sessions       []*SessionReport
	TotalTarget    int
	TotalRecords   int
	AveragePrice   float64
	MinPrice       float64
	MaxPrice       float64
	MostExpensive  *ListingRecord
	AverageArea    float64
	ByPropertyType map[string]int
	ByRegion       map[string]int
	AverageFields  float64
}

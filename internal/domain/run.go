package domain

const (
	RunTypeScheduled = "scheduled"
	RunTypeManual    = "manual"
)

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunSummary is the tally a worker reports when its run ends.
type RunSummary struct {
	Analyzed   int `json:"analyzed"`
	Added      int `json:"added"`
	Rejected   int `json:"rejected"`
	Duplicates int `json:"duplicates"`
	QuotaUsed  int `json:"quota_used"`
}

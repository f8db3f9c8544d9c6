package domain

import "time"

// FailureCause classifies why a single feed item was not stored.
type FailureCause string

const (
	CauseInvalid FailureCause = "invalid"
	CauseStore   FailureCause = "store"
)

// ItemOutcome is the per-item result of a reconciliation pass.
type ItemOutcome struct {
	ExternalID string
	Created    bool
	Cause      FailureCause
	Err        error
}

func (o ItemOutcome) OK() bool {
	return o.Err == nil
}

// IngestStats holds statistics about an ingestion run.
// New and Updated are diagnostics, not exact counts.
type IngestStats struct {
	Source        string
	Fetched       int
	New           int
	Updated       int
	Failed        int
	Published     int
	PublishErrors int
	Outcomes      []ItemOutcome
	Duration      time.Duration
}

// Failures returns the outcomes of items that could not be stored.
func (s *IngestStats) Failures() []ItemOutcome {
	var failed []ItemOutcome
	for _, o := range s.Outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

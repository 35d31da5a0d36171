package runstate

import (
	"time"

	"github.com/bartekus/vcgen/internal/scheduler"
)

// Status is the outcome of a generate run.
type Status string

const (
	StatusPass    Status = "pass"
	StatusPartial Status = "partial"
	StatusFail    Status = "failed"
)

// LastRun summarizes the last generate run.
// Stored as <state dir>/last-run.json.
type LastRun struct {
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Language   string    `json:"language"`
	Policy     string    `json:"policy"`
	Division   string    `json:"division"`
	Analyzers  []string  `json:"analyzers"`
	Entries    int       `json:"entries"`
	Collected  int       `json:"collected"`
	Dataset    string    `json:"dataset,omitempty"`
	Uploaded   string    `json:"uploaded,omitempty"`
	// Shortfall lists workers that missed their quota.
	Shortfall []int                    `json:"shortfall"`
	Workers   []scheduler.WorkerReport `json:"workers"`
	Note      string                   `json:"note,omitempty"`
}

// StatusFor derives the run status from a scheduler result.
func StatusFor(res scheduler.Result, runErr error) Status {
	switch {
	case runErr != nil:
		return StatusFail
	case !res.QuotaMet():
		return StatusPartial
	default:
		return StatusPass
	}
}

// ShortWorkers lists the indices of workers that missed their quota.
func ShortWorkers(workers []scheduler.WorkerReport) []int {
	out := []int{}
	for _, w := range workers {
		if !w.QuotaMet() {
			out = append(out, w.Index)
		}
	}
	return out
}

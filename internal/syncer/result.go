package syncer

import (
	"errors"
	"time"

	"github.com/roach88/maplesync/internal/nexon"
)

// Step identifies one phase of the per-character protocol.
type Step string

const (
	StepResolve   Step = "resolve"
	StepProfile   Step = "profile"
	StepStat      Step = "stat"
	StepEquipment Step = "equipment"
)

// Status is the outcome class of one step.
type Status int

const (
	StatusOK Status = iota + 1
	StatusSkipped
	StatusFailed
)

// StepOutcome is the explicit per-step result the worker returns instead of
// swallowing errors: each step either succeeded, was skipped for a stated
// reason, or failed for a stated reason.
type StepOutcome struct {
	Step   Step
	Status Status
	Reason string
	Err    error
}

// itemResult collects what happened to one character.
type itemResult struct {
	Name           string
	Unresolved     bool
	ProfileUpdated bool
	SkippedFresh   bool
	StatWrites     int
	EquipWrites    int
	Outcomes       []StepOutcome
}

func (r *itemResult) add(step Step, status Status, reason string, err error) {
	r.Outcomes = append(r.Outcomes, StepOutcome{Step: step, Status: status, Reason: reason, Err: err})
}

func (r *itemResult) failed() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return true
		}
	}
	return false
}

// failureReason maps an error to a stable reason label for counters and the
// pending list.
func failureReason(step Step, err error) string {
	var apiErr *nexon.APIError
	if errors.As(err, &apiErr) {
		return string(step) + ":" + apiErr.Kind.String()
	}
	if errors.Is(err, errStore) {
		return string(step) + ":store"
	}
	return string(step) + ":error"
}

var errStore = errors.New("store read failed")

// Summary is the per-run report: counts by outcome and reason plus a bounded
// list of failing names. The full failure detail lives in the sync_failures
// table.
type Summary struct {
	RunID     string
	World     string
	Total     int
	Processed int

	Unresolved     int
	SkippedFresh   int
	ProfileUpdates int
	StatWrites     int
	EquipWrites    int

	IntentsApplied int64
	IntentsSkipped int64

	ByReason map[string]int
	Failed   []string // bounded by Config.FailListLimit

	Started  time.Time
	Finished time.Time
}

// Package status holds the process-wide pipeline status register. The
// register is written only by the active pipeline run and read concurrently
// by any number of pollers; every write replaces the whole snapshot through
// an atomic pointer swap so readers never observe a torn update.
package status

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Stage identifies where the pipeline currently is.
type Stage string

const (
	StageIdle         Stage = "Idle"
	StageExtracting   Stage = "Extracting"
	StageTransforming Stage = "Transforming"
	StageLoading      Stage = "Loading"
	StageComplete     Stage = "Complete"
	StageFailed       Stage = "Failed"
)

// Progress carries per-stage completion. Extract and Transform are single
// percentages; Load is tracked per table.
type Progress struct {
	Extract   float64            `json:"extract"`
	Transform float64            `json:"transform"`
	Load      map[string]float64 `json:"load"`
}

// Snapshot is one immutable view of the pipeline state.
type Snapshot struct {
	Stage                  Stage     `json:"stage"`
	Message                string    `json:"message"`
	Progress               Progress  `json:"progress"`
	AvgCustomersPerCountry string    `json:"avg_customers_per_country,omitempty"`
	FailedStage            string    `json:"failed_stage,omitempty"`
	Reason                 string    `json:"reason,omitempty"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Register is the shared status record. The zero value is not usable; use
// NewRegister.
type Register struct {
	current atomic.Pointer[Snapshot]
}

// NewRegister returns a register in the Idle state.
func NewRegister() *Register {
	r := &Register{}
	r.current.Store(&Snapshot{
		Stage:     StageIdle,
		Message:   "Idle",
		Progress:  Progress{Load: map[string]float64{}},
		UpdatedAt: time.Now(),
	})
	return r
}

// Snapshot returns the current state. The returned value is a deep copy;
// callers may retain or mutate it freely.
func (r *Register) Snapshot() Snapshot {
	s := *r.current.Load()
	load := make(map[string]float64, len(s.Progress.Load))
	for k, v := range s.Progress.Load {
		load[k] = v
	}
	s.Progress.Load = load
	return s
}

// update builds the next snapshot from a copy of the current one and swaps
// it in. The mutate func receives a private copy, so writers never mutate a
// snapshot a reader may hold.
func (r *Register) update(mutate func(*Snapshot)) {
	next := r.Snapshot()
	mutate(&next)
	next.UpdatedAt = time.Now()
	r.current.Store(&next)
}

// Reset puts the register back to a fresh state at the start of a run,
// discarding any terminal state left by the previous run.
func (r *Register) Reset() {
	r.update(func(s *Snapshot) {
		*s = Snapshot{
			Stage:    StageIdle,
			Message:  "Starting",
			Progress: Progress{Load: map[string]float64{}},
		}
	})
}

// SetStage records a stage change with a human-readable message.
func (r *Register) SetStage(stage Stage, message string) {
	r.update(func(s *Snapshot) {
		s.Stage = stage
		s.Message = message
	})
}

// SetExtractProgress records extraction completion as a percentage.
func (r *Register) SetExtractProgress(pct float64) {
	r.update(func(s *Snapshot) {
		s.Progress.Extract = pct
	})
}

// SetTransformProgress records transform completion as a percentage.
func (r *Register) SetTransformProgress(pct float64) {
	r.update(func(s *Snapshot) {
		s.Progress.Transform = pct
	})
}

// SetLoadProgress records load completion for one table as a percentage.
func (r *Register) SetLoadProgress(table string, pct float64) {
	r.update(func(s *Snapshot) {
		s.Progress.Load[table] = pct
	})
}

// SetAvgCustomersPerCountry attaches the transform aggregate, rendered with
// two decimals.
func (r *Register) SetAvgCustomersPerCountry(avg float64) {
	r.update(func(s *Snapshot) {
		s.AvgCustomersPerCountry = fmt.Sprintf("%.2f", avg)
	})
}

// Fail moves the register to the terminal Failed stage, recording which
// stage failed and why. Pollers use this to distinguish a failed run from
// one still in flight.
func (r *Register) Fail(stage string, reason string) {
	r.update(func(s *Snapshot) {
		s.Stage = StageFailed
		s.Message = fmt.Sprintf("%s failed", stage)
		s.FailedStage = stage
		s.Reason = reason
	})
}

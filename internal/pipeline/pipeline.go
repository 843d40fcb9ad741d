// Package pipeline implements the three-stage customer import: streaming
// extraction of the source CSV, in-memory transformation, and transactional
// batched loading into the normalized schema. At most one run is active at a
// time; the shared status register stays readable throughout.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/uptrace/bun"

	"github.com/vkoshel/crmdata/importer/internal/config"
	"github.com/vkoshel/crmdata/importer/internal/models"
	"github.com/vkoshel/crmdata/importer/internal/notify"
	"github.com/vkoshel/crmdata/importer/internal/status"
)

// ErrRunInProgress is returned when Run is called while another run is
// still active. Concurrent runs are rejected, not queued.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Result is the end-to-end outcome of one pipeline run.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Runner wires the three stages together around one database and one status
// register.
type Runner struct {
	db       *bun.DB
	cfg      config.Config
	reg      *status.Register
	notifier notify.Notifier
	running  atomic.Bool
}

// NewRunner creates a runner. A nil notifier falls back to the log notifier.
func NewRunner(db *bun.DB, cfg config.Config, reg *status.Register, notifier notify.Notifier) *Runner {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Runner{db: db, cfg: cfg, reg: reg, notifier: notifier}
}

// Run executes extract, transform and load once, sequentially. The only
// returned error is ErrRunInProgress; stage failures surface through the
// Result and the status register's Failed stage. There are no retries and a
// started run cannot be cancelled.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Result{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	// A new run overwrites whatever terminal state the previous run left.
	r.reg.Reset()

	records, err := NewExtractor(r.reg, r.notifier).Extract(ctx, r.cfg.SourcePath)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("extraction failed: %v", err)}, nil
	}

	transformed, err := NewTransformer(r.reg, r.notifier, r.cfg.ChunkSize).Transform(ctx, records)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("transformation failed: %v", err)}, nil
	}

	loaded := NewLoader(r.db, r.reg, r.notifier, r.cfg.LoadBatchSize).Load(ctx, transformed)
	return Result{Success: loaded.Success, Message: loaded.Message}, nil
}

// RunAsync starts Run on its own goroutine so callers can keep polling
// Status while the pipeline executes. The channel delivers exactly one
// result. A rejected concurrent run is delivered as a failed result.
func (r *Runner) RunAsync(ctx context.Context) <-chan Result {
	done := make(chan Result, 1)
	go func() {
		result, err := r.Run(ctx)
		if err != nil {
			result = Result{Success: false, Message: err.Error()}
		}
		done <- result
	}()
	return done
}

// Status returns the current status snapshot without blocking on the
// pipeline's I/O.
func (r *Runner) Status() status.Snapshot {
	return r.reg.Snapshot()
}

// ClearAll truncates all six tables children-first, with foreign key
// enforcement switched off around the operation and back on afterwards.
func (r *Runner) ClearAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("clear: disable foreign keys: %w", err)
	}
	defer func() {
		_, _ = r.db.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	}()

	tables := []any{
		(*models.CustomerCompany)(nil),
		(*models.Website)(nil),
		(*models.Subscription)(nil),
		(*models.Contact)(nil),
		(*models.Company)(nil),
		(*models.Customer)(nil),
	}
	for _, table := range tables {
		if _, err := r.db.NewTruncateTable().Model(table).Exec(ctx); err != nil {
			return fmt.Errorf("clear: truncate: %w", err)
		}
	}

	return nil
}

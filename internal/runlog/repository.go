package runlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Ledger is the run-ledger surface the scheduler's discharge path
// calls into when runlog is enabled.
type Ledger struct {
	db *gorm.DB
}

// NewLedger wraps an already-migrated *gorm.DB.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// StartRun inserts the Run row for a new invocation.
func (l *Ledger) StartRun(ctx context.Context, runID, workspace string) error {
	run := &Run{RunID: runID, Workspace: workspace, StartedAt: time.Now()}
	if err := l.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("runlog: start run: %w", err)
	}
	return nil
}

// FinishRun stamps a run's final epoch, exit code, and completion
// time.
func (l *Ledger) FinishRun(ctx context.Context, runID string, fixpointEpoch uint64, exitCode int) error {
	now := time.Now()
	res := l.db.WithContext(ctx).Model(&Run{}).Where("run_id = ?", runID).Updates(map[string]any{
		"fixpoint_epoch": fixpointEpoch,
		"exit_code":      exitCode,
		"finished_at":    now,
	})
	if res.Error != nil {
		return fmt.Errorf("runlog: finish run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("runlog: finish run: run %s not found", runID)
	}
	return nil
}

// GetRun returns a previously started run by id.
func (l *Ledger) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	err := l.db.WithContext(ctx).First(&run, "run_id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("runlog: run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("runlog: get run: %w", err)
	}
	return &run, nil
}

// RecordTransition appends one fragment-state-transition row.
func (l *Ledger) RecordTransition(ctx context.Context, runID string, gid int64, from, to string, epoch uint64) error {
	row := &FragmentTransition{
		RunID:     runID,
		GID:       gid,
		FromState: from,
		ToState:   to,
		Epoch:     epoch,
		Timestamp: time.Now(),
	}
	if err := l.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("runlog: record transition: %w", err)
	}
	return nil
}

// TransitionsForRun returns every recorded transition for a run,
// ordered by id (insertion order), for audit/debugging tooling.
func (l *Ledger) TransitionsForRun(ctx context.Context, runID string) ([]FragmentTransition, error) {
	var rows []FragmentTransition
	if err := l.db.WithContext(ctx).Where("run_id = ?", runID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("runlog: list transitions: %w", err)
	}
	return rows, nil
}

// TransitionCountForGID counts how many times gid transitioned during
// runID, useful for spotting a fragment re-entering the pipeline an
// unexpectedly large number of times.
func (l *Ledger) TransitionCountForGID(ctx context.Context, runID string, gid int64) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&FragmentTransition{}).
		Where("run_id = ? AND gid = ?", runID, gid).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("runlog: count transitions: %w", err)
	}
	return count, nil
}

// Package runlog is the engine's optional run ledger: a gorm-backed
// audit trail of fragment-state transitions and completed runs. It is
// grounded on the teacher's GormTaskRepository shape (internal/
// repository/gorm.go in the source tree this was adapted from): a
// thin struct wrapping *gorm.DB, one method per query/write, "not
// found" surfaced as a plain error rather than gorm.ErrRecordNotFound
// leaking through. The core engine never requires a database; runlog
// is wired in only when engconfig.RunLogConfig.Enabled is true.
package runlog

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// FragmentTransition records one fragment's move through the lifecycle
// state machine during a run.
type FragmentTransition struct {
	ID        uint      `gorm:"primaryKey"`
	RunID     string    `gorm:"index;size:36"`
	GID       int64     `gorm:"index"`
	FromState string    `gorm:"size:16"`
	ToState   string    `gorm:"size:16"`
	Epoch     uint64
	Timestamp time.Time
}

// Run records one completed (or aborted) engine invocation.
type Run struct {
	RunID         string `gorm:"primaryKey;size:36"`
	Workspace     string
	FixpointEpoch uint64
	ExitCode      int
	StartedAt     time.Time
	FinishedAt    *time.Time
}

// Open dials the configured SQL driver and returns a *gorm.DB ready
// for AutoMigrate, matching the teacher's per-driver dial switch.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("runlog: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", driver, err)
	}
	if err := db.AutoMigrate(&FragmentTransition{}, &Run{}); err != nil {
		return nil, fmt.Errorf("runlog: migrate: %w", err)
	}
	return db, nil
}

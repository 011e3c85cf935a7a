package scheduler

import (
	"context"
	"fmt"

	"github.com/renewalpoint/scheduler/internal/database"
	"github.com/renewalpoint/scheduler/internal/model"
)

// RunScheduler is the single invocation surface of the core: open the
// organization database, make sure the schema exists, and execute one run.
func RunScheduler(ctx context.Context, dbPath string, opts Options) (*model.RunSummary, error) {
	db, err := database.Connect(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open organization database %s: %w", dbPath, err)
	}
	defer db.Close()

	if err := database.InitSchema(db); err != nil {
		return nil, err
	}

	return NewCoordinator(db, opts).Run(ctx)
}

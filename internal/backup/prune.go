package backup

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/logging"
)

// Pruner removes expired backups on a cron schedule.
type Pruner struct {
	store     Store
	retention time.Duration
	logger    logging.Logger
	cron      *cron.Cron
	now       func() time.Time
}

// NewPruner schedules pruning of entries older than retention. schedule is a
// standard five-field cron expression or a descriptor such as "@hourly".
func NewPruner(store Store, schedule string, retention time.Duration, logger logging.Logger) (*Pruner, error) {
	if retention <= 0 {
		return nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "backup retention must be positive")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	p := &Pruner{
		store:     store,
		retention: retention,
		logger:    logger.WithComponent("backup"),
		cron:      cron.New(),
		now:       time.Now,
	}
	if _, err := p.cron.AddFunc(schedule, func() {
		_, _ = p.RunOnce(context.Background())
	}); err != nil {
		return nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "invalid prune schedule: "+schedule).
			WithContext("cause", err.Error())
	}

	return p, nil
}

// RunOnce prunes now.
func (p *Pruner) RunOnce(ctx context.Context) (int, error) {
	n, err := p.store.Prune(ctx, p.now().Add(-p.retention))
	if err != nil {
		p.logger.Warn(ctx, err, "Backup pruning failed")
		return n, err
	}
	if n > 0 {
		p.logger.Info(ctx, "Pruned backups", "count", n, "retention", p.retention.String())
	}

	return n, nil
}

// Start begins the schedule.
func (p *Pruner) Start() {
	p.cron.Start()
}

// Stop halts the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

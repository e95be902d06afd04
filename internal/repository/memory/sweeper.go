package memory

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweepable is implemented by stores that accumulate expired state.
type Sweepable interface {
	Sweep(now time.Time) int
}

// Sweeper periodically evicts expired state from in-memory stores.
type Sweeper struct {
	cron   *cron.Cron
	logger *zap.Logger
	stores map[string]Sweepable
}

// NewSweeper registers the stores on a cron schedule such as "@every 1m".
func NewSweeper(schedule string, logger *zap.Logger, stores map[string]Sweepable) (*Sweeper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sweeper{cron: cron.New(), logger: logger, stores: stores}

	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("schedule memory sweep %q: %w", schedule, err)
	}
	return s, nil
}

// RunOnce sweeps every store immediately.
func (s *Sweeper) RunOnce() {
	now := time.Now()
	for name, store := range s.stores {
		if removed := store.Sweep(now); removed > 0 {
			s.logger.Debug("memory store swept", zap.String("store", name), zap.Int("removed", removed))
		}
	}
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

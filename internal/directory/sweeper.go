package directory

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// Sweeper periodically flips doctors offline whose LastSeen is older than the
// configured TTL. Browsers that crash without a clean logout would otherwise
// stay "online" forever.
type Sweeper struct {
	service    *Service
	staleAfter time.Duration
	spec       string
	logger     *logging.Logger
	cron       *cron.Cron
}

// NewSweeper builds a presence sweeper. spec is a cron expression, e.g.
// "@every 1m".
func NewSweeper(service *Service, staleAfter time.Duration, spec string, logger *logging.Logger) *Sweeper {
	if service == nil {
		panic("directory: service cannot be nil")
	}
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	if spec == "" {
		spec = "@every 1m"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		service:    service,
		staleAfter: staleAfter,
		spec:       spec,
		logger:     logger,
	}
}

// Start schedules the sweep. Returns an error only for an invalid cron spec.
func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.spec, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.logger.Info("presence sweeper started", "spec", s.spec, "stale_after", s.staleAfter.String())
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep runs one pass immediately.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.staleAfter)
	flipped, err := s.service.store.MarkStale(ctx, cutoff)
	if err != nil {
		s.logger.Error("presence sweep failed", "error", err)
		return
	}
	if len(flipped) == 0 {
		return
	}

	for _, doctorID := range flipped {
		if err := s.service.profiles.SetDoctorPresence(ctx, doctorID, false, cutoff); err != nil {
			s.logger.Warn("failed to mirror stale presence to profile", "error", err, "doctor_id", doctorID)
		}
	}
	s.service.broadcast(ctx)
	s.logger.Info("stale doctors marked offline", "count", len(flipped))
}

// Package trigger runs the clock-driven jobs: automatic schedule rebuilds on
// a cron spec and retention sweeps over consumed carryover ledger entries.
// One cron instance carries both; Apply restarts it when the config changes.
package trigger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"arksched/pkg/logx"
)

// DefaultRetentionSpec sweeps Sunday mornings before the shop opens.
const DefaultRetentionSpec = "0 6 * * 0"

// DefaultRetentionAge keeps consumed ledger entries for one quarter.
const DefaultRetentionAge = 90 * 24 * time.Hour

type Config struct {
	Enabled  bool
	Timezone string

	// RebuildSpec is the cron line for automatic rebuilds. Empty disables
	// the job.
	RebuildSpec string

	Retention Retention
}

// Retention opts in to deleting consumed ledger entries older than MaxAge.
type Retention struct {
	Enabled bool
	Spec    string        // default: DefaultRetentionSpec
	MaxAge  time.Duration // default: DefaultRetentionAge
}

// Hooks are the actions the cron fires. Both must be safe for concurrent use
// with the rest of the process.
type Hooks struct {
	// Rebuild recomputes and publishes a run.
	Rebuild func(ctx context.Context) error

	// Retain deletes consumed ledger entries reported before cutoff and
	// returns how many went away.
	Retain func(ctx context.Context, cutoff time.Time) (int64, error)
}

type Service struct {
	log    logx.Logger
	hooks  Hooks
	parser cron.Parser

	mu      sync.Mutex
	cfg     Config
	c       *cron.Cron
	loc     *time.Location
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc

	rebuildBusy atomic.Bool
	retainBusy  atomic.Bool
}

func New(cfg Config, hooks Hooks, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		hooks:  hooks,
		log:    log,
		parser: newParser(),
	}
}

// newParser allows both 5-field and 6-field (with seconds) cron specs.
func newParser() cron.Parser {
	return cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// ValidateSpec checks a cron line against the service's grammar without
// scheduling anything. Config validation uses it to reject bad hot reloads.
func ValidateSpec(spec string) error {
	_, err := newParser().Parse(spec)
	return err
}

// Start registers the configured jobs and starts the cron. Idempotent; a
// second Start while running is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.runCtx, s.cancel = context.WithCancel(ctx)
	return s.restartLocked()
}

// Apply swaps the config. While running, any change restarts the cron so new
// specs and timezone take effect.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg == s.cfg {
		return nil
	}
	s.cfg = cfg
	if !s.running {
		return nil
	}
	return s.restartLocked()
}

// Stop halts the cron and waits for in-flight jobs until ctx expires.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	s.runCtx = nil
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
		s.log.Info("triggers stopped")
	case <-ctx.Done():
		s.log.Warn("trigger stop timed out; jobs finish in background")
	}
}

// restartLocked tears down the current cron and builds one from s.cfg.
// Call with s.mu held and s.runCtx set.
func (s *Service) restartLocked() error {
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	if !s.cfg.Enabled {
		s.log.Debug("triggers disabled")
		return nil
	}

	loc := time.Local
	if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Any("err", err))
		} else {
			loc = l
		}
	}
	s.loc = loc

	ctx := s.runCtx
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	jobs := 0

	if spec := strings.TrimSpace(s.cfg.RebuildSpec); spec != "" {
		if _, err := c.AddFunc(spec, func() { s.fireRebuild(ctx) }); err != nil {
			return fmt.Errorf("trigger: rebuild spec %q: %w", spec, err)
		}
		jobs++
	}
	if s.cfg.Retention.Enabled {
		spec := strings.TrimSpace(s.cfg.Retention.Spec)
		if spec == "" {
			spec = DefaultRetentionSpec
		}
		if _, err := c.AddFunc(spec, func() { s.fireRetention(ctx) }); err != nil {
			return fmt.Errorf("trigger: retention spec %q: %w", spec, err)
		}
		jobs++
	}

	s.c = c
	c.Start()
	s.log.Info("triggers started", logx.String("tz", loc.String()), logx.Int("jobs", jobs))
	return nil
}

// fireRebuild runs one scheduled rebuild, skipping if the previous one is
// still going.
func (s *Service) fireRebuild(ctx context.Context) {
	if !s.rebuildBusy.CompareAndSwap(false, true) {
		s.log.Debug("scheduled rebuild skipped; previous one still running")
		return
	}
	defer s.rebuildBusy.Store(false)

	start := time.Now()
	if err := s.hooks.Rebuild(ctx); err != nil {
		s.log.Warn("scheduled rebuild failed", logx.Any("err", err))
		return
	}
	s.log.Info("scheduled rebuild finished", logx.Duration("took", time.Since(start)))
}

func (s *Service) fireRetention(ctx context.Context) {
	if !s.retainBusy.CompareAndSwap(false, true) {
		return
	}
	defer s.retainBusy.Store(false)

	maxAge := s.maxAge()
	cutoff := time.Now().Add(-maxAge)
	n, err := s.hooks.Retain(ctx, cutoff)
	if err != nil {
		s.log.Warn("ledger retention failed", logx.Any("err", err))
		return
	}
	if n > 0 {
		s.log.Info("ledger retention swept", logx.Int64("deleted", n), logx.Time("cutoff", cutoff))
	}
}

func (s *Service) maxAge() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Retention.MaxAge > 0 {
		return s.cfg.Retention.MaxAge
	}
	return DefaultRetentionAge
}

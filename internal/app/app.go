// Package app is the composition root. It builds config, logging, the store,
// planner, triggers, and the HTTP API from one config file, runs the
// background loops under a supervisor, and shuts everything down in order
// with a time bound per step.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"arksched/internal/catalog"
	"arksched/internal/config"
	"arksched/internal/eventbus"
	"arksched/internal/metrics"
	"arksched/internal/planner"
	"arksched/internal/runtime/supervisor"
	"arksched/internal/server"
	"arksched/internal/store"
	"arksched/internal/trigger"
	"arksched/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	bus eventbus.Bus
	reg *prometheus.Registry
	met *metrics.Metrics

	st   *store.Store
	cat  *catalog.Catalog
	pl   *planner.Planner
	trig *trigger.Service
	srv  *server.Server // nil when http.enabled=false

	sup *supervisor.Supervisor
}

// New loads the config file and wires every component. Nothing runs yet;
// callers either Start the daemon or use the planner/store directly for
// one-shot commands and then Close.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	return build(cfgm, cfg)
}

// NewDefault wires the components from built-in defaults with no config file
// behind them. Start is unavailable (nothing to watch); it serves the
// one-shot CLI paths when no config file exists.
func NewDefault() (*App, error) {
	return build(nil, &config.Config{})
}

func build(cfgm *config.Manager, cfg *config.Config) (*App, error) {
	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()
	reg, met := metrics.NewRegistry()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(sc, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, err
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	opts, err := mapPlannerOptions(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	pl := planner.New(st, cat, opts, log.With(logx.String("comp", "planner")), bus, met)

	tcfg, err := mapTriggerConfig(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	trig := trigger.New(tcfg, trigger.Hooks{
		Rebuild: func(ctx context.Context) error {
			_, err := pl.Rebuild(ctx, true)
			return err
		},
		Retain: func(ctx context.Context, cutoff time.Time) (int64, error) {
			entries, err := st.DeleteConsumedBefore(ctx, cutoff)
			if err != nil {
				return entries, err
			}
			runs, err := st.DeleteRunsBefore(ctx, cutoff)
			return entries + runs, err
		},
	}, log.With(logx.String("comp", "triggers")))

	var srv *server.Server
	if cfg.HTTP.Enabled {
		hc, err := mapHTTPConfig(cfg)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		srv = server.New(hc, st, pl, log.With(logx.String("comp", "http")), met, reg)
	}

	return &App{
		cfgm: cfgm,
		logs: logSvc,
		log:  log,
		bus:  bus,
		reg:  reg,
		met:  met,
		st:   st,
		cat:  cat,
		pl:   pl,
		trig: trig,
		srv:  srv,
	}, nil
}

// Store exposes the SQLite store for one-shot commands.
func (a *App) Store() *store.Store { return a.st }

// Planner exposes the run pipeline for one-shot commands.
func (a *App) Planner() *planner.Planner { return a.pl }

func (a *App) Logger() logx.Logger { return a.log }

// Close releases resources for an App that was never started. After Start,
// use Stop instead.
func (a *App) Close() error {
	err := a.st.Close()
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	if a.cfgm == nil {
		return fmt.Errorf("app: cannot start without a config file")
	}
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// Transactional config reload: a config that fails validation is never
	// published to subscribers.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := mapPlannerOptions(cfg); err != nil {
			return err
		}
		if _, err := mapHTTPConfig(cfg); err != nil {
			return err
		}
		if _, err := mapTriggerConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	if err := a.trig.Start(a.sup.Context()); err != nil {
		return err
	}

	if a.srv != nil {
		a.sup.Go("http.serve", func(context.Context) error {
			return a.srv.Start()
		})
	}

	// Debug visibility into run lifecycle events.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the newest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.applyConfig(newCfg, lastApplied)
			lastApplied = newCfg
		}
	}
}

// applyConfig pushes a validated reload into the running components. Logging,
// planner options, and triggers apply live; storage, http, and catalog need a
// restart and only warn.
func (a *App) applyConfig(newCfg, oldCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		switch s {
		case "storage", "http", "catalog":
			a.log.Warn("config section needs a restart to take effect", logx.String("section", s))
		}
	}

	a.logs.Apply(mapLoggingConfig(newCfg))

	if opts, err := mapPlannerOptions(newCfg); err != nil {
		a.log.Warn("invalid planner config; keeping previous", logx.Any("err", err))
	} else {
		a.pl.SetOptions(opts)
	}

	if tcfg, err := mapTriggerConfig(newCfg); err != nil {
		a.log.Warn("invalid triggers config; keeping previous", logx.Any("err", err))
	} else if err := a.trig.Apply(tcfg); err != nil {
		a.log.Warn("trigger apply failed", logx.Any("err", err))
	}

	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// step runs one shutdown action with an upper bound so a stuck component
	// cannot stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// Respect the caller's deadline; never extend it.
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Any("err", err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)))
			// Observe when (or if) the step eventually finishes.
			go func() {
				err := <-done
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Any("err", err), logx.Duration("took", time.Since(start)))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", time.Since(start)))
				}
			}()
		}
	}

	step("triggers", 2*time.Second, func(c context.Context) error { a.trig.Stop(c); return nil })
	if a.srv != nil {
		step("http", 3*time.Second, func(c context.Context) error { return a.srv.Shutdown(c) })
	}
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("store", time.Second, func(c context.Context) error { return a.st.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

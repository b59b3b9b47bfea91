package app

import (
	"fmt"
	"strings"
	"time"

	"arksched/internal/catalog"
	"arksched/internal/config"
	"arksched/internal/planner"
	"arksched/internal/refine"
	"arksched/internal/server"
	"arksched/internal/store"
	"arksched/internal/trigger"
	"arksched/pkg/logx"
)

const (
	defaultDBPath   = "./arksched.db"
	defaultHTTPAddr = "127.0.0.1:8321"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (store.Config, error) {
	path := strings.TrimSpace(cfg.Storage.Path)
	if path == "" {
		path = defaultDBPath
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return store.Config{}, err
	}
	return store.Config{Path: path, BusyTimeout: busy}, nil
}

// loadCatalog picks the configured dictionary file over the embedded one.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if p := strings.TrimSpace(cfg.Catalog.Dictionary); p != "" {
		return catalog.LoadFile(p)
	}
	return catalog.Default()
}

func mapRefineMode(raw string) (refine.MissingTemplateMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "synthetic":
		return refine.MissingTemplateSynthetic, nil
	case "skip":
		return refine.MissingTemplateSkip, nil
	default:
		return "", fmt.Errorf("refine.missing_template: unknown mode %q (want synthetic or skip)", raw)
	}
}

func mapPlannerOptions(cfg *config.Config) (planner.Options, error) {
	ttl, err := config.ParseDurationField("planner.cache_ttl", cfg.Planner.CacheTTL)
	if err != nil {
		return planner.Options{}, err
	}
	mode, err := mapRefineMode(cfg.Refine.MissingTemplate)
	if err != nil {
		return planner.Options{}, err
	}
	return planner.Options{
		CacheTTL:        ttl,
		SnapshotPath:    strings.TrimSpace(cfg.Planner.SnapshotPath),
		MissingTemplate: mode,
	}, nil
}

func mapHTTPConfig(cfg *config.Config) (server.Config, error) {
	addr := strings.TrimSpace(cfg.HTTP.Addr)
	if addr == "" {
		addr = defaultHTTPAddr
	}
	read, err := config.ParseDurationOrDefault("http.read_timeout", cfg.HTTP.ReadTimeout, 5*time.Second)
	if err != nil {
		return server.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("http.write_timeout", cfg.HTTP.WriteTimeout, 10*time.Second)
	if err != nil {
		return server.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("http.idle_timeout", cfg.HTTP.IdleTimeout, time.Minute)
	if err != nil {
		return server.Config{}, err
	}
	if cfg.HTTP.RebuildsPerMinute < 0 {
		return server.Config{}, fmt.Errorf("http.rebuilds_per_minute must be >= 0")
	}
	return server.Config{
		Addr:              addr,
		ReadTimeout:       read,
		WriteTimeout:      write,
		IdleTimeout:       idle,
		RebuildsPerMinute: cfg.HTTP.RebuildsPerMinute,
		Pprof:             cfg.HTTP.Pprof,
	}, nil
}

func mapTriggerConfig(cfg *config.Config) (trigger.Config, error) {
	t := cfg.Triggers
	maxAge, err := config.ParseDurationField("triggers.retention.max_age", t.Retention.MaxAge)
	if err != nil {
		return trigger.Config{}, err
	}
	if tz := strings.TrimSpace(t.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return trigger.Config{}, fmt.Errorf("triggers.timezone: invalid %q: %w", tz, err)
		}
	}
	if spec := strings.TrimSpace(t.Rebuild); spec != "" {
		if err := trigger.ValidateSpec(spec); err != nil {
			return trigger.Config{}, fmt.Errorf("triggers.rebuild: invalid spec %q: %w", spec, err)
		}
	}
	if t.Retention.Enabled {
		if spec := strings.TrimSpace(t.Retention.Spec); spec != "" {
			if err := trigger.ValidateSpec(spec); err != nil {
				return trigger.Config{}, fmt.Errorf("triggers.retention.spec: invalid spec %q: %w", spec, err)
			}
		}
	}
	return trigger.Config{
		Enabled:     t.Enabled,
		Timezone:    t.Timezone,
		RebuildSpec: t.Rebuild,
		Retention: trigger.Retention{
			Enabled: t.Retention.Enabled,
			Spec:    t.Retention.Spec,
			MaxAge:  maxAge,
		},
	}, nil
}

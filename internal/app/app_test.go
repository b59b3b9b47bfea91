package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"arksched/internal/config"
	"arksched/internal/refine"
)

func TestMapHTTPConfigDefaults(t *testing.T) {
	cfg := &config.Config{}
	hc, err := mapHTTPConfig(cfg)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if hc.Addr != defaultHTTPAddr {
		t.Fatalf("addr = %q", hc.Addr)
	}
	if hc.ReadTimeout != 5*time.Second || hc.WriteTimeout != 10*time.Second || hc.IdleTimeout != time.Minute {
		t.Fatalf("timeouts = %+v", hc)
	}

	cfg.HTTP.ReadTimeout = "soon"
	if _, err := mapHTTPConfig(cfg); err == nil {
		t.Fatalf("bad duration accepted")
	}
	cfg.HTTP.ReadTimeout = ""
	cfg.HTTP.RebuildsPerMinute = -1
	if _, err := mapHTTPConfig(cfg); err == nil {
		t.Fatalf("negative rate accepted")
	}
}

func TestMapStorageConfigDefaults(t *testing.T) {
	cfg := &config.Config{}
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if sc.Path != defaultDBPath || sc.BusyTimeout != 0 {
		t.Fatalf("config = %+v", sc)
	}

	cfg.Storage.Path = "  /var/lib/arksched/db.sqlite  "
	cfg.Storage.BusyTimeout = "2s"
	sc, err = mapStorageConfig(cfg)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if sc.Path != "/var/lib/arksched/db.sqlite" || sc.BusyTimeout != 2*time.Second {
		t.Fatalf("config = %+v", sc)
	}

	cfg.Storage.BusyTimeout = "fast"
	if _, err := mapStorageConfig(cfg); err == nil {
		t.Fatalf("bad duration accepted")
	}
}

func TestMapRefineMode(t *testing.T) {
	cases := []struct {
		raw  string
		want refine.MissingTemplateMode
		ok   bool
	}{
		{"", refine.MissingTemplateSynthetic, true},
		{"synthetic", refine.MissingTemplateSynthetic, true},
		{" SKIP ", refine.MissingTemplateSkip, true},
		{"guess", "", false},
	}
	for _, c := range cases {
		got, err := mapRefineMode(c.raw)
		if c.ok != (err == nil) || got != c.want {
			t.Fatalf("mapRefineMode(%q) = %v, %v", c.raw, got, err)
		}
	}
}

func TestMapPlannerOptions(t *testing.T) {
	cfg := &config.Config{}
	cfg.Planner.CacheTTL = "45s"
	cfg.Planner.SnapshotPath = " /tmp/run.json "
	cfg.Refine.MissingTemplate = "skip"

	opts, err := mapPlannerOptions(cfg)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if opts.CacheTTL != 45*time.Second || opts.SnapshotPath != "/tmp/run.json" || opts.MissingTemplate != refine.MissingTemplateSkip {
		t.Fatalf("options = %+v", opts)
	}

	cfg.Refine.MissingTemplate = "mystery"
	if _, err := mapPlannerOptions(cfg); err == nil {
		t.Fatalf("bad mode accepted")
	}
}

func TestMapTriggerConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Triggers.Enabled = true
	cfg.Triggers.Timezone = "America/Chicago"
	cfg.Triggers.Rebuild = "30 5 * * 1-5"
	cfg.Triggers.Retention.Enabled = true
	cfg.Triggers.Retention.MaxAge = "720h"

	tc, err := mapTriggerConfig(cfg)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if !tc.Enabled || tc.RebuildSpec != "30 5 * * 1-5" || tc.Retention.MaxAge != 720*time.Hour {
		t.Fatalf("config = %+v", tc)
	}

	cfg.Triggers.Timezone = "Mars/Olympus"
	if _, err := mapTriggerConfig(cfg); err == nil || !strings.Contains(err.Error(), "timezone") {
		t.Fatalf("bad tz: %v", err)
	}
	cfg.Triggers.Timezone = ""

	cfg.Triggers.Rebuild = "every morning"
	if _, err := mapTriggerConfig(cfg); err == nil || !strings.Contains(err.Error(), "rebuild") {
		t.Fatalf("bad spec: %v", err)
	}
	cfg.Triggers.Rebuild = ""

	// A bad retention spec only matters when retention is on.
	cfg.Triggers.Retention.Spec = "nope"
	if _, err := mapTriggerConfig(cfg); err == nil {
		t.Fatalf("bad retention spec accepted")
	}
	cfg.Triggers.Retention.Enabled = false
	if _, err := mapTriggerConfig(cfg); err != nil {
		t.Fatalf("disabled retention validated: %v", err)
	}
}

func TestAppLifecycle(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "arksched.yaml")
	body := "logging:\n  level: ERROR\n  console: false\nstorage:\n  path: " +
		filepath.Join(dir, "arksched.db") + "\nhttp:\n  enabled: false\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	a, err := New(cfgPath)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-a.Done():
		t.Fatalf("app stopped early: %v", a.Err())
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(ctx, StopRequested); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestNewDefault(t *testing.T) {
	t.Chdir(t.TempDir())
	a, err := NewDefault()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Start(context.Background()); err == nil {
		t.Fatalf("start without a config file succeeded")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat("arksched.db"); err != nil {
		t.Fatalf("default db: %v", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "arksched.yaml")
	if err := os.WriteFile(cfgPath, []byte("loging:\n  level: INFO\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := New(cfgPath); err == nil {
		t.Fatalf("unknown key accepted")
	}

	if _, err := New(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("missing file accepted")
	}
}

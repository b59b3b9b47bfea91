package config

import (
	"sort"
	"strings"

	logx "arksched/pkg/logx"
)

// SummarizeChange returns a compact sorted list of changed sections plus safe
// structured attrs for logging the reload. Attrs describe the NEW values.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Storage (restart required; summarized so the warn log can say what moved)
	if strings.TrimSpace(oldCfg.Storage.Path) != strings.TrimSpace(newCfg.Storage.Path) ||
		strings.TrimSpace(oldCfg.Storage.BusyTimeout) != strings.TrimSpace(newCfg.Storage.BusyTimeout) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
			logx.String("storage.busy_timeout", strings.TrimSpace(newCfg.Storage.BusyTimeout)),
		)
	}

	// Catalog
	if strings.TrimSpace(oldCfg.Catalog.Dictionary) != strings.TrimSpace(newCfg.Catalog.Dictionary) {
		changed = append(changed, "catalog")
		attrs = append(attrs,
			logx.Bool("catalog.dictionary_set", strings.TrimSpace(newCfg.Catalog.Dictionary) != ""),
		)
	}

	// Refine
	if strings.TrimSpace(oldCfg.Refine.MissingTemplate) != strings.TrimSpace(newCfg.Refine.MissingTemplate) {
		changed = append(changed, "refine")
		attrs = append(attrs,
			logx.String("refine.missing_template", strings.TrimSpace(newCfg.Refine.MissingTemplate)),
		)
	}

	// Planner
	if strings.TrimSpace(oldCfg.Planner.CacheTTL) != strings.TrimSpace(newCfg.Planner.CacheTTL) ||
		strings.TrimSpace(oldCfg.Planner.SnapshotPath) != strings.TrimSpace(newCfg.Planner.SnapshotPath) {
		changed = append(changed, "planner")
		attrs = append(attrs,
			logx.String("planner.cache_ttl", strings.TrimSpace(newCfg.Planner.CacheTTL)),
			logx.Bool("planner.snapshot_set", strings.TrimSpace(newCfg.Planner.SnapshotPath) != ""),
		)
	}

	// HTTP (restart required)
	if oldCfg.HTTP.Enabled != newCfg.HTTP.Enabled ||
		strings.TrimSpace(oldCfg.HTTP.Addr) != strings.TrimSpace(newCfg.HTTP.Addr) ||
		strings.TrimSpace(oldCfg.HTTP.ReadTimeout) != strings.TrimSpace(newCfg.HTTP.ReadTimeout) ||
		strings.TrimSpace(oldCfg.HTTP.WriteTimeout) != strings.TrimSpace(newCfg.HTTP.WriteTimeout) ||
		strings.TrimSpace(oldCfg.HTTP.IdleTimeout) != strings.TrimSpace(newCfg.HTTP.IdleTimeout) ||
		oldCfg.HTTP.RebuildsPerMinute != newCfg.HTTP.RebuildsPerMinute ||
		oldCfg.HTTP.Pprof != newCfg.HTTP.Pprof {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", strings.TrimSpace(newCfg.HTTP.Addr)),
			logx.Int("http.rebuilds_per_minute", newCfg.HTTP.RebuildsPerMinute),
		)
	}

	// Triggers
	if oldCfg.Triggers.Enabled != newCfg.Triggers.Enabled ||
		strings.TrimSpace(oldCfg.Triggers.Timezone) != strings.TrimSpace(newCfg.Triggers.Timezone) ||
		strings.TrimSpace(oldCfg.Triggers.Rebuild) != strings.TrimSpace(newCfg.Triggers.Rebuild) ||
		oldCfg.Triggers.Retention != newCfg.Triggers.Retention {
		changed = append(changed, "triggers")
		attrs = append(attrs,
			logx.Bool("triggers.enabled", newCfg.Triggers.Enabled),
			logx.String("triggers.timezone", strings.TrimSpace(newCfg.Triggers.Timezone)),
			logx.Bool("triggers.rebuild_set", strings.TrimSpace(newCfg.Triggers.Rebuild) != ""),
			logx.Bool("triggers.retention_enabled", newCfg.Triggers.Retention.Enabled),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

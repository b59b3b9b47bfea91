package config

// Config is the full arksched configuration tree.
//
// The file may be JSON or YAML; YAML is coerced to JSON and both are decoded
// strictly (unknown keys are rejected) so typos surface at load time instead
// of silently doing nothing. All durations are Go duration strings
// (e.g. "500ms", "10s", "2m").
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`
	Catalog CatalogConfig `json:"catalog,omitempty"`
	Refine  RefineConfig  `json:"refine,omitempty"`
	Planner PlannerConfig `json:"planner,omitempty"`
	HTTP    HTTPConfig    `json:"http"`

	// Triggers controls scheduled automatic rebuilds and ledger retention.
	Triggers TriggersConfig `json:"triggers,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig locates the SQLite database. Changing it requires a restart;
// hot reload only warns.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// CatalogConfig optionally overrides the embedded production-hour dictionary
// with a CSV file (service,piece,stage,hours).
type CatalogConfig struct {
	Dictionary string `json:"dictionary,omitempty"`
}

// RefineConfig tunes the refinement pipeline.
//
// MissingTemplate picks what the consolidator does for a day without shift
// template rows: "synthetic" (default) derives one segment spanning the day's
// observed task bounds, "skip" leaves the day unrefined.
type RefineConfig struct {
	MissingTemplate string `json:"missing_template,omitempty"`
}

// PlannerConfig tunes run orchestration.
//
// CacheTTL bounds how long a finished run is served from memory before a
// rebuild recomputes; "0s" disables caching. SnapshotPath, when set, mirrors
// the latest run to an atomically written JSON file.
type PlannerConfig struct {
	CacheTTL     string `json:"cache_ttl,omitempty"`
	SnapshotPath string `json:"snapshot_path,omitempty"`
}

// HTTPConfig controls the admin API server.
//
// Security note: prefer binding to localhost; the API carries no
// authentication of its own.
type HTTPConfig struct {
	Enabled      bool   `json:"enabled"`
	Addr         string `json:"addr,omitempty"` // default: "127.0.0.1:8321"
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// RebuildsPerMinute rate-limits POST /api/v1/runs. 0 keeps the default.
	RebuildsPerMinute int `json:"rebuilds_per_minute,omitempty"`

	// Pprof mounts net/http/pprof under /debug on the admin server. Keep the
	// server loopback-bound when enabling this.
	Pprof bool `json:"pprof,omitempty"`
}

// TriggersConfig controls cron-driven background jobs.
type TriggersConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"` // IANA TZ, e.g. "America/Chicago"

	// Rebuild is a cron spec for automatic schedule rebuilds
	// (e.g. "30 5 * * 1-5"). Empty disables the job.
	Rebuild string `json:"rebuild,omitempty"`

	Retention RetentionConfig `json:"retention,omitempty"`
}

// RetentionConfig opts in to deleting consumed carryover ledger entries older
// than MaxAge. The ledger is append-only history by default; retention is
// off unless explicitly enabled.
type RetentionConfig struct {
	Enabled bool   `json:"enabled"`
	Spec    string `json:"spec,omitempty"`    // cron spec; default "0 6 * * 0"
	MaxAge  string `json:"max_age,omitempty"` // Go duration; default 90 days
}

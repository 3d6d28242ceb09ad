package config

import "time"

// Config is the top-level configuration structure for offersync.
type Config struct {
	Remote    RemoteConfig    `yaml:"remote"`
	Store     StoreConfig     `yaml:"store"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Audit     AuditConfig     `yaml:"audit"`
	Report    ReportConfig    `yaml:"report"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// RemoteConfig describes the remote membership API.
type RemoteConfig struct {
	BaseURL           string        `yaml:"baseURL"`                     // e.g. https://app.example.com/api/v1/external/preorders
	AccessKey         string        `yaml:"accessKey,omitempty"`         // sent in AuthHeader; prefer the environment
	AuthHeader        string        `yaml:"authHeader,omitempty"`        // default X-Auth-Token
	MembersQuery      string        `yaml:"membersQuery,omitempty"`      // gojq expression yielding member ids from a list page
	MemberField       string        `yaml:"memberField,omitempty"`       // payload key for add/remove calls
	PageSize          int           `yaml:"pageSize,omitempty"`          // per_page for list calls
	MaxPages          int           `yaml:"maxPages,omitempty"`          // hard stop for list pagination
	RequestTimeout    time.Duration `yaml:"requestTimeout,omitempty"`    // per call
	MaxCountPerMember int           `yaml:"maxCountPerMember,omitempty"` // optional preorder_max_count on add, 0 omits it
}

// StoreConfig selects the desired-state store.
type StoreConfig struct {
	Driver         string `yaml:"driver"`                   // sqlite or file
	DSN            string `yaml:"dsn"`                      // sqlite database path or YAML file path
	ResourceStatus string `yaml:"resourceStatus,omitempty"` // only resources in this status are reconciled; empty means all
	MarkDoneStatus string `yaml:"markDoneStatus,omitempty"` // status written after a fully successful reconcile; empty disables
}

// ReconcileConfig holds batching, pacing and retry settings for the engine.
type ReconcileConfig struct {
	BatchSize            int           `yaml:"batchSize"`
	RemoveBatchSize      int           `yaml:"removeBatchSize"`
	MaxRetries           int           `yaml:"maxRetries"`
	BackoffBase          time.Duration `yaml:"backoffBase"`
	LockWaitBudget       time.Duration `yaml:"lockWaitBudget"`
	LockBackoffStart     time.Duration `yaml:"lockBackoffStart"`
	LockBackoffFactor    float64       `yaml:"lockBackoffFactor"`
	LockBackoffCap       time.Duration `yaml:"lockBackoffCap"`
	RateLimitDelay       time.Duration `yaml:"rateLimitDelay"`
	RemoveRateLimitDelay time.Duration `yaml:"removeRateLimitDelay"`
	Concurrency          int           `yaml:"concurrency"`
	Operations           []string      `yaml:"operations"` // subset of [remove, add], applied remove first
}

// AuditConfig controls persisted skipped/failed artifacts.
type AuditConfig struct {
	Dir          string `yaml:"dir"`
	FileTemplate string `yaml:"fileTemplate,omitempty"`
	SQLite       bool   `yaml:"sqlite,omitempty"` // also record audit rows in the sqlite store
}

// ReportConfig controls the end-of-run summary.
type ReportConfig struct {
	SampleSize int    `yaml:"sampleSize"`
	Format     string `yaml:"format"` // table, json or yaml
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"` // Prometheus textfile collector output
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	StoreDriverSQLite = "sqlite"
	StoreDriverFile   = "file"

	OperationAdd    = "add"
	OperationRemove = "remove"

	ReportFormatTable = "table"
	ReportFormatJSON  = "json"
	ReportFormatYAML  = "yaml"
)

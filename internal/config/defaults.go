package config

import "time"

const (
	// DefaultAuthHeader carries the API access key.
	DefaultAuthHeader = "X-Auth-Token"

	// DefaultMembersQuery extracts member ids from a list response page.
	DefaultMembersQuery = ".product_variants[]?.shopify_variant_id"

	// DefaultMemberField is the payload key for add/remove calls.
	DefaultMemberField = "shopify_variant_ids"

	// DefaultAuditFileTemplate names skipped-member artifacts.
	DefaultAuditFileTemplate = `{{ .Operation }}_skipped_{{ .ResourceID }}_{{ .GeneratedAt | date "20060102-150405" }}.json`
)

// GetDefaultConfig returns the configuration used before any file, environment
// or flag overrides are applied.
func GetDefaultConfig() Config {
	return Config{
		Remote: RemoteConfig{
			AuthHeader:     DefaultAuthHeader,
			MembersQuery:   DefaultMembersQuery,
			MemberField:    DefaultMemberField,
			PageSize:       250,
			MaxPages:       1000,
			RequestTimeout: 90 * time.Second,
		},
		Store: StoreConfig{
			Driver:         StoreDriverSQLite,
			DSN:            "offersync.db",
			ResourceStatus: "update",
		},
		Reconcile: ReconcileConfig{
			BatchSize:            75,
			RemoveBatchSize:      10,
			MaxRetries:           3,
			BackoffBase:          time.Second,
			LockWaitBudget:       180 * time.Second,
			LockBackoffStart:     time.Second,
			LockBackoffFactor:    1.8,
			LockBackoffCap:       12 * time.Second,
			RateLimitDelay:       150 * time.Millisecond,
			RemoveRateLimitDelay: 500 * time.Millisecond,
			Concurrency:          1,
			Operations:           []string{OperationRemove, OperationAdd},
		},
		Audit: AuditConfig{
			Dir:          "audit",
			FileTemplate: DefaultAuditFileTemplate,
		},
		Report: ReportConfig{
			SampleSize: 10,
			Format:     ReportFormatTable,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

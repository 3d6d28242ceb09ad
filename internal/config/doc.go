// Package config provides configuration management for offersync.
//
// Configuration is resolved in layers: built-in defaults, then a YAML file,
// then environment variables, then command-line flags (applied by cmd).
//
// # Configuration File
//
// The default location is ~/.config/offersync/config.yaml. LoadConfig accepts
// either a directory containing config.yaml or the path of a YAML file. A
// missing file is not an error; the defaults are used.
//
//	remote:
//	  baseURL: https://app.example.com/api/v1/external/preorders
//	  membersQuery: ".product_variants[]?.shopify_variant_id"
//	  requestTimeout: 90s
//	store:
//	  driver: sqlite
//	  dsn: ./offersync.db
//	  resourceStatus: update
//	reconcile:
//	  batchSize: 75
//	  removeBatchSize: 10
//	  maxRetries: 3
//	  backoffBase: 1s
//	  lockWaitBudget: 180s
//	  lockBackoffStart: 1s
//	  lockBackoffFactor: 1.8
//	  lockBackoffCap: 12s
//	  rateLimitDelay: 150ms
//	  removeRateLimitDelay: 500ms
//
// # Environment
//
//   - OFFERSYNC_API_BASE (or STOQ_API_BASE): remote.baseURL
//   - OFFERSYNC_API_ACCESS_KEY (or STOQ_API_ACCESS_KEY): remote.accessKey
//   - OFFERSYNC_STORE_DRIVER, OFFERSYNC_STORE_DSN: store settings
//   - OFFERSYNC_AUDIT_DIR: audit.dir
//   - OFFERSYNC_LOG_LEVEL: log.level
//   - OFFERSYNC_REQUEST_TIMEOUT (or HTTP_TIMEOUT): seconds or a Go duration
//
// Validate reports every problem at once as ValidationErrors.
package config

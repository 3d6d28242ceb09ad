// Package logging provides the process-wide structured logger for offersync.
//
// It is a thin layer over log/slog that keeps a subsystem-oriented call style:
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stderr)
//
//	logging.Info("Reconciler", "Reconciling offer %s", remoteID)
//	logging.Debug("Mutator", "Batch of %d accepted", n)
//	logging.Warn("Resolver", "Bisecting %d members", n)
//	logging.Error("Store", err, "Failed to read desired members")
//
// Every entry carries a "subsystem" attribute and, for Error, an "error"
// attribute. Level filtering happens before message formatting.
//
// Subsystems used across the module:
//
//   - ConfigLoader: configuration discovery and parsing
//   - RemoteClient: HTTP calls to the remote membership API
//   - Store: desired-state reads and audit rows
//   - Reconciler: per-resource flow and run loop
//   - Mutator: batch submission, retries and lock waits
//   - Resolver: validation failure isolation
//   - Audit: persisted artifacts
package logging

// Package preflight runs the environment checks behind `docdex doctor`.
//
// The checks cover:
//   - The indexed root exists and can be listed
//   - The data directory is writable
//   - Free disk space for snapshots
//   - The file descriptor limit available to the watcher
//   - Configuration validity
//
// Callers append their own checks with Run:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Target{Root: root, DataDir: dataDir, Config: cfg})
//	results = append(results, checker.Run("index_consistency", true, svc.Verify))
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight

// Package preflight runs the environment checks behind `qabrain doctor`.
//
// Required checks (a failure means ingest cannot succeed):
//   - Free disk space in the data directory (minimum 100MB)
//   - Write permission in the data directory
//   - Embedder reachable
//
// Advisory checks:
//   - pdftotext on PATH (fallback for PDFs the built-in reader rejects)
//   - File descriptor limit
//
//	checker := preflight.New(preflight.WithEmbedder(e))
//	results := checker.RunAll(ctx, cfg.Paths.DataDir)
//	if checker.HasCriticalFailures(results) {
//	    // report and exit non-zero
//	}
package preflight

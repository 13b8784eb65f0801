// Package logging configures structured slog output for docdex.
//
// Logs are JSON lines written to a size-rotated file under ~/.docdex/logs/
// and, optionally, mirrored to stderr. The --debug flag lowers the level
// to debug so every skipped file and snapshot decision is recorded.
package logging

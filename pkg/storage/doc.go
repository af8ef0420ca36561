// Package storage writes run records to an append-only flat file.
//
// Records are encoded as JSON lines (default) or CSV. Every append is
// written in one call and synced before returning; on failure the file is
// truncated back to its previous length. Reopening a file after a crash
// drops any partial trailing line, so the file only ever holds complete
// records.
package storage

// Package runlog provides persistent storage for flow run records.
package runlog

import (
	"errors"
	"time"
)

// Store persists run records for later inspection.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores the record for a run.
	// Overwrites if a record for runID already exists.
	Save(runID string, data []byte) error

	// Load retrieves a run record.
	// Returns ErrNotFound if the record doesn't exist.
	Load(runID string) ([]byte, error)

	// List returns metadata for all stored records, newest first.
	// Returns empty slice (not error) if the store is empty.
	List() ([]Info, error)

	// Delete removes a run record.
	// Returns nil if the record doesn't exist.
	Delete(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides record metadata without loading the full record.
type Info struct {
	RunID     string
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for run log operations.
var (
	// ErrNotFound indicates a run record doesn't exist.
	ErrNotFound = errors.New("run record not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("run log store closed")
)

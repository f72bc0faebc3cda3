package draftstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Export writes the latest snapshot of draftID to path as indented JSON.
// The file is replaced atomically.
func (s *SQLiteStore) Export(ctx context.Context, draftID int64, path string) error {
	entry, err := s.Get(ctx, draftID)
	if err != nil {
		return err
	}
	return WriteSnapshotFile(path, entry)
}

// WriteSnapshotFile writes entry's snapshot to path atomically.
func WriteSnapshotFile(path string, entry *Entry) error {
	data, err := json.MarshalIndent(entry.Snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	if err := atomicWriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

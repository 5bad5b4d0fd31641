package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	scratchPrefix = "run-"
	ownerPrefix   = "owner-"
)

// StaleScratchAge is how long a scratch directory must sit untouched before
// SweepScratch treats it as abandoned.
const StaleScratchAge = 24 * time.Hour

// ClaimScratchRoot creates a private subdirectory of parent for one
// long-lived process. Runs started with it as their scratch root never share
// a directory with runs of other processes, and the owner removes it
// wholesale once its runs are finished.
func ClaimScratchRoot(parent string) (string, error) {
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("create scratch root: %w", err)
	}
	dir, err := os.MkdirTemp(parent, ownerPrefix)
	if err != nil {
		return "", fmt.Errorf("claim scratch root: %w", err)
	}
	return dir, nil
}

// SweepScratch removes run-* and owner-* directories under root that have not
// been touched for olderThan, for example after a crash. Directories in use
// by live runs are younger than that and stay.
func SweepScratch(root string, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read scratch root: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !(strings.HasPrefix(name, scratchPrefix) || strings.HasPrefix(name, ownerPrefix)) {
			continue
		}
		dir := filepath.Join(root, name)
		touched, err := lastActivity(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if touched.After(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// lastActivity is the newest modification time of dir and its direct
// children. An owner directory counts as active while any of its runs is.
func lastActivity(dir string) (time.Time, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return time.Time{}, err
	}
	latest := info.ModTime()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, err
	}
	for _, entry := range entries {
		child, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return time.Time{}, err
		}
		if child.ModTime().After(latest) {
			latest = child.ModTime()
		}
	}
	return latest, nil
}

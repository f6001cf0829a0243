package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ProbeOptions configures a working-tree walk.
type ProbeOptions struct {
	// ExcludeDirs is a list of directory names to skip entirely. Hidden
	// directories (starting with ".") are always skipped, which keeps the
	// supervisor's own state directory and .git churn out of the probe.
	ExcludeDirs []string

	// MaxDepth limits recursion depth (0 = unlimited, 1 = top level only)
	MaxDepth int
}

// DefaultExcludes lists directories whose churn says nothing about agent
// progress.
func DefaultExcludes() []string {
	return []string{"node_modules", "vendor", "dist", "build", "target", "__pycache__"}
}

// LatestModTime returns the most recent modification time across all files
// and directories under dir, honoring the exclusion rules in opts. A tree
// with nothing visible returns the zero time and no error.
//
// Directory mtimes are included because creating or deleting a file bumps
// the parent directory, so the probe sees deletions too. Entries that
// vanish mid-walk are skipped; callers sample the probe repeatedly and a
// missed entry surfaces on the next pass.
func LatestModTime(dir string, opts ProbeOptions) (time.Time, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return time.Time{}, fmt.Errorf("path is not a directory: %s", dir)
	}

	excludeMap := make(map[string]bool)
	for _, name := range opts.ExcludeDirs {
		excludeMap[name] = true
	}

	var latest time.Time

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// Entry disappeared or became unreadable; keep walking.
			return nil
		}

		if d.IsDir() && path != dir {
			if excludeMap[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 {
				relPath, relErr := filepath.Rel(dir, path)
				if relErr == nil {
					depth := strings.Count(relPath, string(filepath.Separator)) + 1
					if depth >= opts.MaxDepth {
						return filepath.SkipDir
					}
				}
			}
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if fi.ModTime().After(latest) {
			latest = fi.ModTime()
		}
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to walk directory: %w", err)
	}

	return latest, nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetMaestroHomeWithRoot resolves the maestro state directory.
// Priority order:
//  1. MAESTRO_HOME environment variable (if set)
//  2. <root>/.maestro, where root is normally the working tree
//
// The directory is created if it doesn't exist.
func GetMaestroHomeWithRoot(root string) (string, error) {
	if home := os.Getenv("MAESTRO_HOME"); home != "" {
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create maestro home directory: %w", err)
		}
		return home, nil
	}

	if root == "" {
		return "", fmt.Errorf("maestro home not configured (set MAESTRO_HOME or provide a working tree root)")
	}

	home := filepath.Join(root, ".maestro")
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create maestro home directory: %w", err)
	}
	return home, nil
}

// GetMaestroHome resolves the maestro state directory rooted at the current
// working directory.
func GetMaestroHome() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return GetMaestroHomeWithRoot(cwd)
}

// GetRunsDirWithRoot returns the run-state directory under the maestro home,
// creating it if needed.
func GetRunsDirWithRoot(root string) (string, error) {
	home, err := GetMaestroHomeWithRoot(root)
	if err != nil {
		return "", err
	}

	runsDir := filepath.Join(home, "runs")
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return "", fmt.Errorf("create runs directory: %w", err)
	}
	return runsDir, nil
}

// GetRunsDir returns the run-state directory rooted at the current working
// directory.
func GetRunsDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return GetRunsDirWithRoot(cwd)
}

// GetHistoryDBPathWithRoot returns the absolute path to the run history
// database: <maestro home>/history.db
func GetHistoryDBPathWithRoot(root string) (string, error) {
	home, err := GetMaestroHomeWithRoot(root)
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "history.db"), nil
}

// GetHistoryDBPath returns the history database path rooted at the current
// working directory.
func GetHistoryDBPath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return GetHistoryDBPathWithRoot(cwd)
}

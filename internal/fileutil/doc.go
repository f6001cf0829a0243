// Package fileutil probes working trees for file activity.
//
// The process monitor decides whether an agent subprocess is still making
// progress by sampling the most recent modification time across the tree
// the agent works in. This package owns that walk.
//
// # Key Behaviors
//
//   - Hidden directories (starting with ".") are always skipped, so the
//     supervisor's own state directory and .git churn never count as
//     agent activity
//   - Additional directories can be excluded by name (node_modules,
//     vendor, build output)
//   - Directory mtimes are included, so file creation and deletion count
//     as activity even when no surviving file is newer
//   - The walk is error-tolerant: entries that vanish or become
//     unreadable mid-walk are skipped, because the probe runs every few
//     seconds and the next sample corrects any miss
//
// # Usage
//
//	latest, err := fileutil.LatestModTime(workDir, fileutil.ProbeOptions{
//	    ExcludeDirs: fileutil.DefaultExcludes(),
//	})
//	if err != nil {
//	    return err
//	}
//	idle := time.Since(latest)
package fileutil

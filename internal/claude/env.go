package claude

import (
	"os"
	"os/exec"
	"path/filepath"
)

// maestroTmpDir is the clean temp directory for Claude CLI invocations.
// A dedicated directory keeps editor socket files out of the CLI's temp
// scanning and keeps CLI scratch files from piling up in the shared
// system temp dir across long supervised runs.
var maestroTmpDir string

func init() {
	maestroTmpDir = filepath.Join(os.TempDir(), "maestro-claude")
	os.MkdirAll(maestroTmpDir, 0755)
}

// SetCleanEnv configures a command to use the dedicated TMPDIR.
func SetCleanEnv(cmd *exec.Cmd) {
	cmd.Env = os.Environ()

	found := false
	for i, env := range cmd.Env {
		if len(env) > 7 && env[:7] == "TMPDIR=" {
			cmd.Env[i] = "TMPDIR=" + maestroTmpDir
			found = true
			break
		}
	}
	if !found {
		cmd.Env = append(cmd.Env, "TMPDIR="+maestroTmpDir)
	}
}

// GetCleanTmpDir returns the dedicated temp directory path.
func GetCleanTmpDir() string {
	return maestroTmpDir
}

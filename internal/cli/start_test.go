package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartCommand(t *testing.T) {
	t.Run("command exists", func(t *testing.T) {
		cmd := GetRootCmd()

		found := false
		for _, c := range cmd.Commands() {
			if c.Name() == "start" {
				found = true
				break
			}
		}
		assert.True(t, found, "start command should exist")
	})

	t.Run("help text", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"start", "--help"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		assert.Contains(t, output.String(), "Start the Spywatcher daemon")
	})
}

func TestPIDFilePath(t *testing.T) {
	path := pidFilePath()
	assert.NotEmpty(t, path)
	assert.Contains(t, path, "spywatcher.pid")
}

func TestIsRunning(t *testing.T) {
	t.Run("no pid file", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "nonexistent.pid")
		assert.False(t, isRunning(pidFile))
	})

	t.Run("invalid pid file", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "invalid.pid")
		require.NoError(t, os.WriteFile(pidFile, []byte("invalid"), 0o644))

		assert.False(t, isRunning(pidFile))
	})

	t.Run("current process counts as running", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "self.pid")
		require.NoError(t, writePIDFile(pidFile))

		assert.True(t, isRunning(pidFile))
	})

	t.Run("stale pid", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "stale.pid")
		// PIDs wrap well below this on Linux.
		require.NoError(t, os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", 1<<22+1)), 0o644))

		assert.False(t, isRunning(pidFile))
	})
}

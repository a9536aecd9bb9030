package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minisource/jobscheduler/config"
)

func TestLoadStructuredMissingFileReturnsEmpty(t *testing.T) {
	s, err := config.LoadStructured(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, s.Executors)
	assert.Empty(t, s.Jobstores)
}

func TestLoadStructuredParsesComponents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scheduler.yaml")
	yaml := `
timezone: UTC
executors:
  default:
    class: httpexec
    opts:
      workers: 8
      request_timeout: 15s
jobstores:
  default:
    class: memstore
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	s, err := config.LoadStructured(path)
	require.NoError(t, err)
	require.Contains(t, s.Executors, "default")

	exec := s.Executors["default"]
	assert.Equal(t, "httpexec", exec.Class)
	assert.Equal(t, 8, exec.OptInt("workers", 1))
	assert.Equal(t, 15*time.Second, exec.OptDuration("request_timeout", time.Second))
	assert.Equal(t, "UTC", s.Timezone)

	require.Contains(t, s.Jobstores, "default")
	assert.Equal(t, "memstore", s.Jobstores["default"].Class)
}

package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(t.Context()), out.String())
	return out.String()
}

func TestCLI_ImportPredictAlerts(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
storage:
  path: %s
logging:
  level: error
`, filepath.Join(dir, "fuelguard.db"))), 0o644))

	// 5 gal/h at 2.5 h/day with 150 gal left puts exhaustion about 11 days out.
	day := 24 * time.Hour
	now := time.Now().UTC()
	at := func(d time.Duration) string { return now.Add(d).Format(time.RFC3339) }
	rosterPath := filepath.Join(dir, "roster.yaml")
	require.NoError(t, os.WriteFile(rosterPath, []byte(fmt.Sprintf(`
sites:
  - code: GT-0042
    name: Cerro Alto
    supplies:
      - {timestamp: %s, fuel_before: 50, fuel_added: 100, runtime_hours: 1000}
      - {timestamp: %s, fuel_before: 100, fuel_added: 50, runtime_hours: 1010}
      - {timestamp: %s, fuel_before: 100, fuel_added: 50, runtime_hours: 1020}
`, at(-9*day), at(-5*day), at(-day))), 0o644))

	out := execute(t, "--config", cfgPath, "import", rosterPath)
	assert.Contains(t, out, "Supplies added:   3")

	out = execute(t, "--config", cfgPath, "predict", "--site", "GT-0042")
	assert.Contains(t, out, "Rate:             5.0000 gal/h")
	assert.Contains(t, out, "Severity:         warning")

	out = execute(t, "--config", cfgPath, "alerts", "run")
	assert.Contains(t, out, "1 created")

	out = execute(t, "--config", cfgPath, "alerts", "run")
	assert.Contains(t, out, "0 created, 0 updated, 0 replaced, 0 closed, 1 unchanged")

	out = execute(t, "--config", cfgPath, "alerts", "list")
	assert.Contains(t, out, "GT-0042")
	assert.Contains(t, out, "WARNING level")
}

func TestCLI_Version(t *testing.T) {
	out := execute(t, "version")
	assert.Equal(t, "fuelguard version dev\n", out)
}

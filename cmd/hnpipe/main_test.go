package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/elonfeng/hnpipe/internal/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cfgFile, deployment = "", ""
	cmd := rootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestMaterializeStubEndToEnd(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "wh.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
deployment: test
log:
  level: error
source:
  kind: stub
deployments:
  test:
    warehouse:
      driver: sqlite
      dsn: %s
`, dbPath)), 0o600))

	require.NoError(t, execute(t, "--config", cfgPath, "materialize", "--count", "1"))

	wh, err := warehouse.Open(context.Background(), warehouse.Options{Driver: "sqlite", DSN: dbPath})
	require.NoError(t, err)
	defer wh.Close()

	infos, err := wh.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []warehouse.TableInfo{
		{Name: "comments", Rows: 0},
		{Name: "items", Rows: 1},
		{Name: "stories", Rows: 1},
	}, infos)

	assert.NoError(t, execute(t, "--config", cfgPath, "show", "stories"))
	assert.ErrorIs(t, execute(t, "--config", cfgPath, "show", "polls"), warehouse.ErrTableNotFound)
}

func TestMaterializeRejectsUnknownAsset(t *testing.T) {
	err := execute(t, "materialize", "--stub", "--select", "polls")
	assert.ErrorContains(t, err, "unknown asset")
}

func TestUnknownDeploymentFlag(t *testing.T) {
	err := execute(t, "--deployment", "moon", "assets")
	assert.NoError(t, err, "assets needs no config")

	err = execute(t, "--deployment", "moon", "show", "items")
	assert.ErrorContains(t, err, "unknown deployment")
}

func TestDeploymentFlagReceivesDSNOverride(t *testing.T) {
	t.Setenv("HNPIPE_WAREHOUSE_DSN", "postgres://etl@override:5432/wh")
	cfgFile, deployment = "", "production"
	t.Cleanup(func() { deployment = "" })

	cfg, err := loadConfig()
	require.NoError(t, err)

	d, err := cfg.Selected()
	require.NoError(t, err)
	assert.Equal(t, "postgres://etl@override:5432/wh", d.Warehouse.DSN)
	assert.Equal(t, "./hnpipe.db", cfg.Deployments["local"].Warehouse.DSN)
}

func TestDeploymentFlagWritesToOverriddenDSN(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "override.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
log:
  level: error
deployments:
  local:
    warehouse:
      driver: sqlite
      dsn: %s
  staging:
    warehouse:
      driver: sqlite
      dsn: %s
`, filepath.Join(dir, "local.db"), filepath.Join(dir, "staging.db"))), 0o600))
	t.Setenv("HNPIPE_WAREHOUSE_DSN", dbPath)

	require.NoError(t, execute(t, "--config", cfgPath, "--deployment", "staging", "materialize", "--stub"))

	wh, err := warehouse.Open(context.Background(), warehouse.Options{Driver: "sqlite", DSN: dbPath})
	require.NoError(t, err)
	defer wh.Close()

	infos, err := wh.ListTables(context.Background())
	require.NoError(t, err)
	assert.Len(t, infos, 3)

	assert.NoFileExists(t, filepath.Join(dir, "local.db"))
	assert.NoFileExists(t, filepath.Join(dir, "staging.db"))
}

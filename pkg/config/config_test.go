package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/arcflow/pkg/config"
)

const sampleYAML = `
apiVersion: arcflow/v1
kind: Pipeline
metadata:
  name: demo
spec:
  window:
    lengthMs: 3000
    slideMs: 1000
    latenessMs: 500
  manager:
    nodeParallelism: 2
    maxNodeParallelism: 8
    heartbeatTimeoutMs: 10000
  stateStore:
    kind: bolt
    dbPath: ./data/arcflow.db
    snapshotDir: ./data/snapshots
  logging:
    level: debug
    jsonOutput: true
`

func TestLoadParsesPipelineSpec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0644))

	p, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "demo", p.Metadata.Name)
	require.Equal(t, uint64(3000), p.Spec.Window.LengthMS)
	wc := p.Spec.Window.ToWindowConfig()
	require.Equal(t, uint64(3000), wc.Length)
	require.Equal(t, 2, p.Spec.Manager.NodeParallelism)
	require.Equal(t, "bolt", p.Spec.StateStore.Kind)
}

func TestLoadDefaultsNodeParallelismAndStateStoreKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("spec:\n  window:\n    lengthMs: 1000\n    slideMs: 1000\n"), 0644))

	p, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, p.Spec.Manager.NodeParallelism)
	require.Equal(t, "memory", p.Spec.StateStore.Kind)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := config.Load("/nonexistent/pipeline.yaml")
	require.Error(t, err)
}

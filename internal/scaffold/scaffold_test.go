package scaffold

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/stratagen/internal/config"
	"github.com/dusk-indust/stratagen/internal/hooks"
	"github.com/dusk-indust/stratagen/internal/provider"
)

func TestInstall(t *testing.T) {
	dir := t.TempDir()
	got := map[Action]int{}
	report := func(a Action, _ string) { got[a]++ }

	require.NoError(t, Install(dir, false, report))
	assert.Zero(t, got[ActionSkipped])
	assert.Equal(t, 8, got[ActionCreated])

	for _, name := range []string{"stratagen.yml", "hooks-policy.yaml", "fixtures/synthesis.yaml", "fixtures/late/keyword-research.yaml"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	got = map[Action]int{}
	require.NoError(t, Install(dir, false, report))
	assert.Equal(t, 8, got[ActionSkipped])

	got = map[Action]int{}
	require.NoError(t, Install(dir, true, report))
	assert.Equal(t, 8, got[ActionOverwritten])
}

func TestInstall_KeepsEditedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stratagen.yml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  grace: 1s\n"), 0o644))

	require.NoError(t, Install(dir, false, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pipeline:\n  grace: 1s\n", string(data))
}

// The starter files must load with the real config, policy and replay code.
func TestInstall_FilesLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Install(dir, false, nil))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	p, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, hooks.DefaultPolicy(), p)

	replay, err := provider.NewReplay(filepath.Join(dir, "fixtures"))
	require.NoError(t, err)
	res, err := replay.OfferAnalysis(context.Background(), provider.AnalysisInput{})
	require.NoError(t, err)
	assert.InDelta(t, 8.5, res.Data.OverallScore, 1e-9)

	late, err := replay.Late()
	require.NoError(t, err)
	assert.Contains(t, late, "keyword-research")
}

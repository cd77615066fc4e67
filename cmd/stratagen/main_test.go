package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/stratagen/internal/hooks"
)

const replayDir = "../../testdata/replay"

// execute runs the CLI with an empty config directory so a stratagen.yml in
// the working tree never leaks into a test.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	args = append([]string{"--config-dir", t.TempDir()}, args...)
	err = run(context.Background(), args, &out, &errOut)
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "dev")
}

func TestRun_Markdown(t *testing.T) {
	out, stderr, err := execute(t, "run", "--context", "AP automation for agencies",
		"--fixtures", replayDir, "--grace", "100ms", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "# Agency AP Automation Launch Strategy")
	assert.Contains(t, stderr, "complete:")
	assert.Contains(t, stderr, "standard tier")
}

func TestRun_JSONAndDiagram(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "strategy.json")
	diagram := filepath.Join(dir, "run.mmd")

	out, _, err := execute(t, "run", "--context", "AP automation for agencies",
		"--fixtures", replayDir, "--grace", "100ms", "-q",
		"--json", "--out", doc, "--diagram", diagram)
	require.NoError(t, err)
	assert.Empty(t, out, "the document goes to --out")

	data, err := os.ReadFile(doc)
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "Agency AP Automation Launch Strategy", parsed["title"])

	mmd, err := os.ReadFile(diagram)
	require.NoError(t, err)
	assert.NotEmpty(t, mmd)
}

func TestRun_Progress(t *testing.T) {
	_, stderr, err := execute(t, "run", "--context", "AP automation for agencies",
		"--fixtures", replayDir, "--grace", "100ms")
	require.NoError(t, err)
	assert.Contains(t, stderr, "industry-research")
	assert.Contains(t, stderr, "synthesis")
}

func TestRun_ContextFlagsRequired(t *testing.T) {
	_, _, err := execute(t, "run", "--fixtures", replayDir)
	require.Error(t, err)

	_, _, err = execute(t, "run", "--context", "x", "--context-file", "brief.txt", "--fixtures", replayDir)
	require.Error(t, err)
}

func TestRun_MissingFixtures(t *testing.T) {
	_, _, err := execute(t, "run", "--context", "x", "--fixtures", filepath.Join(t.TempDir(), "nope"), "-q")
	require.Error(t, err)
}

func TestHooksValidate(t *testing.T) {
	path := "../../testdata/hooks/concentrated.yaml"

	out, _, err := execute(t, "hooks", "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook violations")
	assert.Contains(t, out, string(hooks.ViolationConcentration))
	assert.Contains(t, out, "Acme Payables")

	out, _, err = execute(t, "hooks", "validate", path, "--fix")
	require.NoError(t, err)
	assert.Contains(t, out, "# remediated:")

	_, body, found := bytes.Cut([]byte(out), []byte("# remediated:"))
	require.True(t, found)
	var fixed hookFile
	require.NoError(t, yaml.Unmarshal(body[bytes.IndexByte(body, '\n')+1:], &fixed))
	assert.Empty(t, hooks.DefaultPolicy().Check(fixed.Hooks))
}

func TestHooksTier(t *testing.T) {
	out, _, err := execute(t, "hooks", "tier", "../../testdata/hooks/sources.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "tier: sparse")
	assert.Contains(t, out, "quotas:")
}

func TestStatus(t *testing.T) {
	out, _, err := execute(t, "status", "--fixtures", replayDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Phase 1: research")
	assert.Contains(t, out, "ad-library")
	assert.Contains(t, out, "Ready to run.")

	_, _, err = execute(t, "status", "--fixtures", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required sections not ready")
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".mcp.json"),
		[]byte(`{"mcpServers":{"other":{"command":"other"}}}`), 0o644))

	out, _, err := execute(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "created ./stratagen.yml")
	assert.Contains(t, out, "updated .mcp.json")

	data, err := os.ReadFile(filepath.Join(dir, ".mcp.json"))
	require.NoError(t, err)
	var cfg mcpConfig
	require.NoError(t, json.Unmarshal(data, &cfg))
	assert.Contains(t, cfg.MCPServers, "other")
	assert.Contains(t, cfg.MCPServers, "stratagen")

	out, _, err = execute(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "skipped ./stratagen.yml")
	assert.Contains(t, out, "skipped .mcp.json")

	// The installed fixtures are a complete replay set.
	out, _, err = execute(t, "status", "--fixtures", filepath.Join(dir, "fixtures"))
	require.NoError(t, err)
	assert.Contains(t, out, "Ready to run.")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b c", truncate("a\n b   c", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/stratagen/internal/scaffold"
)

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// stratagenMCPEntry is the MCP server configuration for the stratagen binary.
var stratagenMCPEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "stratagen",
  "args": ["serve-mcp", "--fixtures", "fixtures"]
}`)

func newInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Install a starter config, hook policy, replay fixtures and MCP entry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(a.stdout, dir, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}

// runInit installs the starter files and MCP configuration into the target
// project directory.
func runInit(w io.Writer, projectRoot string, force bool) error {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return err
	}

	err = scaffold.Install(abs, force, func(action scaffold.Action, path string) {
		if action == scaffold.ActionSkipped {
			fmt.Fprintf(w, "  skipped %s (exists, use --force to overwrite)\n", dotRelative(abs, path))
			return
		}
		fmt.Fprintf(w, "  %s %s\n", action, dotRelative(abs, path))
	})
	if err != nil {
		return fmt.Errorf("installing starter files: %w", err)
	}

	if err := mergeMCPConfig(w, filepath.Join(abs, ".mcp.json"), force); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nSetup complete. Try: stratagen run --context \"your business\" --fixtures fixtures")
	return nil
}

// mergeMCPConfig creates or merges the stratagen entry into .mcp.json.
func mergeMCPConfig(w io.Writer, mcpPath string, force bool) error {
	var cfg mcpConfig

	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}

	if _, exists := cfg.MCPServers["stratagen"]; exists && !force {
		fmt.Fprintf(w, "  skipped .mcp.json stratagen entry (exists, use --force to overwrite)\n")
		return nil
	}

	cfg.MCPServers["stratagen"] = stratagenMCPEntry

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}

	if err := os.WriteFile(mcpPath, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Fprintf(w, "  %s .mcp.json with stratagen MCP server\n", action)
	return nil
}

// dotRelative returns a display path relative to the project root, prefixed
// with "./".
func dotRelative(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return "./" + rel
}

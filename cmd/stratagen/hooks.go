package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/stratagen/internal/hooks"
)

// hookFile is the on-disk form read by `hooks validate`.
type hookFile struct {
	Hooks []hooks.Candidate `yaml:"hooks"`
	Pool  []hooks.Candidate `yaml:"pool,omitempty"`
}

// sourceFile is the on-disk form read by `hooks tier`.
type sourceFile struct {
	Sources []hooks.CreativeSource `yaml:"sources"`
}

func newHooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Check hook sets and creative sources against the hook policy",
	}
	cmd.AddCommand(newHooksValidateCmd(a), newHooksTierCmd(a))
	return cmd
}

func newHooksValidateCmd(a *app) *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Report diversity violations in a hook set",
		Long: `Reads a YAML or JSON file with a "hooks" list and an optional "pool" of
fallback candidates. Violations are printed one per line. With --fix the set is
repaired from the pool and the result written to stdout as YAML.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var hf hookFile
			if err := readYAML(args[0], &hf); err != nil {
				return err
			}
			policy, err := a.cfg.Policy()
			if err != nil {
				return err
			}
			return validateHooks(a.stdout, policy, hf, fix)
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "repair the set from the pool and print it")
	return cmd
}

func validateHooks(w io.Writer, policy hooks.Policy, hf hookFile, fix bool) error {
	violations := policy.Check(hf.Hooks)
	for _, v := range violations {
		fmt.Fprintf(w, "%-20s #%-3d %-20s %s\n", v.Kind, v.Index, v.Source, v.Detail)
	}
	fmt.Fprintln(w, formatMix(hooks.Summarize(hf.Hooks)))

	if len(violations) == 0 {
		fmt.Fprintln(w, "no violations")
		return nil
	}
	if !fix {
		return fmt.Errorf("%d hook violations", len(violations))
	}

	fixed := policy.Remediate(hf.Hooks, violations, hf.Pool)
	remaining := policy.Check(fixed)

	fmt.Fprintf(w, "# remediated: %s\n", formatMix(hooks.Summarize(fixed)))
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(hookFile{Hooks: fixed}); err != nil {
		return fmt.Errorf("encoding hooks: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if len(remaining) > 0 {
		return fmt.Errorf("%d hook violations remain after remediation", len(remaining))
	}
	return nil
}

func newHooksTierCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tier <file>",
		Short: "Classify creative sources and print the hook quotas for their tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sf sourceFile
			if err := readYAML(args[0], &sf); err != nil {
				return err
			}
			policy, err := a.cfg.Policy()
			if err != nil {
				return err
			}
			tier := hooks.ClassifySourceTier(sf.Sources)
			q := policy.QuotasFor(tier)
			fmt.Fprintf(a.stdout, "tier: %s\n", tier)
			fmt.Fprintf(a.stdout, "quotas: %d extracted, %d inspired, %d generated (max %d per source)\n",
				q.Extracted, q.Inspired, q.Generated, q.MaxPerSource)
			return nil
		},
	}
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func formatMix(m hooks.Mix) string {
	s := fmt.Sprintf("%d hooks: %d extracted, %d inspired, %d generated",
		m.Total, m.BySourceType[hooks.SourceExtracted], m.BySourceType[hooks.SourceInspired], m.BySourceType[hooks.SourceGenerated])
	if len(m.Sources) == 0 {
		return s
	}
	s += "; by source:"
	for _, name := range m.Sources {
		s += fmt.Sprintf(" %s=%d", name, m.BySource[name])
	}
	return s
}

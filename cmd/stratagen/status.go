package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/stratagen/internal/orchestrator"
	"github.com/dusk-indust/stratagen/internal/status"
)

func newStatusCmd(a *app) *cobra.Command {
	var fixtures string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which pipeline sections a fixture directory can serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := status.Scan(fixtures)
			if err != nil {
				return err
			}
			printStatus(a.stdout, st)
			if !st.Ready() {
				return fmt.Errorf("required sections not ready: %s", strings.Join(st.Missing, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fixtures, "fixtures", "fixtures", "replay fixture directory to check")
	return cmd
}

func printStatus(w io.Writer, st status.FixtureStatus) {
	fmt.Fprintf(w, "Fixtures: %s\n", st.Dir)

	phase := orchestrator.Phase(0)
	for _, si := range st.Sections {
		if si.Phase != phase {
			phase = si.Phase
			fmt.Fprintf(w, "\nPhase %d: %s\n", int(phase), phase)
		}
		printSection(w, si)
	}

	if len(st.Late) > 0 {
		fmt.Fprintln(w, "\nLate enrichment:")
		for _, si := range st.Late {
			printSection(w, si)
		}
	}

	fmt.Fprintln(w)
	if st.Ready() {
		fmt.Fprintln(w, "Ready to run.")
	}
}

func printSection(w io.Writer, si status.SectionInfo) {
	marker := "  "
	if si.Required && !si.Usable() {
		marker = "!!"
	}
	fmt.Fprintf(w, "  %s %-22s [%s]\n", marker, si.Section, si.Label())
}

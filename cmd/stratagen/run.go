package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/stratagen/internal/export"
	"github.com/dusk-indust/stratagen/internal/orchestrator"
)

type runFlags struct {
	context     string
	contextFile string
	fixtures    string
	grace       time.Duration
	out         string
	json        bool
	diagram     string
	waitLate    time.Duration
	quiet       bool
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the strategy pipeline once and write the document",
		Example: `  stratagen run --context "B2B invoicing for agencies" --fixtures fixtures
  stratagen run --context-file brief.txt --fixtures fixtures --grace 2s --out strategy.md
  stratagen run --context-file brief.txt --fixtures fixtures --json --diagram run.mmd`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("grace") {
				f.grace = a.cfg.Pipeline.Grace
			}
			return runStrategy(cmd.Context(), a, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.context, "context", "", "business context to build the strategy for")
	fl.StringVar(&f.contextFile, "context-file", "", "file holding the business context")
	fl.StringVar(&f.fixtures, "fixtures", "fixtures", "replay fixture directory serving provider results")
	fl.DurationVar(&f.grace, "grace", 0, "time optional enrichment may take after analysis (default from config)")
	fl.StringVar(&f.out, "out", "", "write the document to this file instead of stdout")
	fl.BoolVar(&f.json, "json", false, "write the JSON export instead of markdown")
	fl.StringVar(&f.diagram, "diagram", "", "also write a mermaid diagram of the run to this file")
	fl.DurationVar(&f.waitLate, "wait-late", 0, "after the run, wait this long for pending enrichment and merge it")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "suppress progress output")
	cmd.MarkFlagsMutuallyExclusive("context", "context-file")
	cmd.MarkFlagsOneRequired("context", "context-file")
	return cmd
}

func runStrategy(ctx context.Context, a *app, f runFlags) error {
	brief := f.context
	if f.contextFile != "" {
		data, err := os.ReadFile(f.contextFile)
		if err != nil {
			return fmt.Errorf("reading context: %w", err)
		}
		brief = strings.TrimSpace(string(data))
	}
	if brief == "" {
		return fmt.Errorf("context is empty")
	}

	st, err := a.buildStack(f.fixtures)
	if err != nil {
		return err
	}
	stopMetrics, err := a.serveMetrics(st.metrics)
	if err != nil {
		return err
	}
	defer stopMetrics()

	in := orchestrator.Input{Context: brief, Late: st.late, Grace: f.grace}
	var progressDone <-chan struct{}
	pr := orchestrator.NewProgressReporter()
	if !f.quiet {
		in.Observer = pr.Emit
		progressDone = printProgress(a.stderr, pr.Subscribe())
	}

	res, runErr := st.pipeline.Run(ctx, in)

	if runErr == nil && f.waitLate > 0 && len(res.Pending) > 0 {
		mergePending(ctx, a.log, res, f.waitLate)
	}

	pr.Close()
	if progressDone != nil {
		<-progressDone
	}
	if runErr != nil {
		return fmt.Errorf("run %s: %w", res.RunID, runErr)
	}

	if err := writeDocument(a.stdout, res, f); err != nil {
		return err
	}
	if f.diagram != "" {
		diagram, err := export.GenerateMermaid(res)
		if err != nil {
			return err
		}
		if err := os.WriteFile(f.diagram, []byte(diagram), 0o644); err != nil {
			return fmt.Errorf("writing diagram: %w", err)
		}
	}

	art := res.Artifact
	pending := "none"
	if names := res.PendingNames(); len(names) > 0 {
		pending = strings.Join(names, ", ")
	}
	fmt.Fprintf(a.stderr, "run %s complete: %d hooks (%s tier), $%.4f, pending: %s\n",
		res.RunID, len(art.Hooks), art.Tier, art.TotalCost, pending)
	return nil
}

// mergePending waits up to wait for each pending source and merges what
// arrives. Sources still pending afterwards stay listed in the result.
func mergePending(ctx context.Context, log *zap.Logger, res *orchestrator.Result, wait time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	for _, name := range res.PendingNames() {
		if err := res.MergeLate(ctx, name); err != nil {
			log.Warn("run: late enrichment not merged", zap.String("source", name), zap.Error(err))
			continue
		}
		log.Info("run: late enrichment merged", zap.String("source", name))
	}
}

func writeDocument(stdout io.Writer, res *orchestrator.Result, f runFlags) error {
	var body []byte
	if f.json {
		data, err := export.MarshalStrategy(res)
		if err != nil {
			return err
		}
		body = append(data, '\n')
	} else {
		md, err := export.Markdown(res.Artifact)
		if err != nil {
			return err
		}
		body = []byte(md)
	}

	if f.out == "" {
		_, err := stdout.Write(body)
		return err
	}
	if err := os.WriteFile(f.out, body, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", f.out, err)
	}
	return nil
}

// printProgress writes a phase header whenever the phase changes, then one
// status line per event. The returned channel closes once events is drained.
func printProgress(w io.Writer, events <-chan orchestrator.ProgressEvent) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		last := orchestrator.Phase(0)
		for ev := range events {
			if ev.Phase != last {
				fmt.Fprintln(w, orchestrator.FormatPhaseHeader("stratagen", ev.Phase))
				last = ev.Phase
			}
			fmt.Fprintln(w, orchestrator.FormatProgress(ev))
		}
	}()
	return done
}

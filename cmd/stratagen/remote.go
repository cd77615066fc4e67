package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/stratagen/internal/orchestrator"
	"github.com/dusk-indust/stratagen/internal/runapi"
)

func newRemoteCmd(a *app) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Submit and inspect runs on a stratagen serve instance",
	}
	cmd.PersistentFlags().StringVar(&server, "server", "http://127.0.0.1:8080", "base URL of the run server")

	client := func() *runapi.Client { return runapi.NewClient(server) }
	cmd.AddCommand(
		newRemoteSubmitCmd(a, client),
		newRemoteGetCmd(a, client),
		newRemoteListCmd(a, client),
		newRemoteCancelCmd(a, client),
	)
	return cmd
}

func newRemoteSubmitCmd(a *app, client func() *runapi.Client) *cobra.Command {
	var (
		contextText string
		contextFile string
		grace       time.Duration
		follow      bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Start a run; with --follow, stream progress and print the document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			brief := contextText
			if contextFile != "" {
				data, err := os.ReadFile(contextFile)
				if err != nil {
					return fmt.Errorf("reading context: %w", err)
				}
				brief = strings.TrimSpace(string(data))
			}

			req := runapi.SubmitRequest{Context: brief}
			if cmd.Flags().Changed("grace") {
				ms := int(grace.Milliseconds())
				req.GraceMs = &ms
			}

			c := client()
			run, err := c.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			if !follow {
				fmt.Fprintln(a.stdout, run.ID)
				return nil
			}
			return followRun(cmd.Context(), c, run.ID, a.stdout, a.stderr)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&contextText, "context", "", "business context to build the strategy for")
	fl.StringVar(&contextFile, "context-file", "", "file holding the business context")
	fl.DurationVar(&grace, "grace", 0, "override the server's enrichment grace")
	fl.BoolVarP(&follow, "follow", "f", false, "stream progress until the run finishes")
	cmd.MarkFlagsMutuallyExclusive("context", "context-file")
	cmd.MarkFlagsOneRequired("context", "context-file")
	return cmd
}

// followRun prints progress to progressOut and, once the run completes, its
// document to docOut. A run that ends in any other state is an error.
func followRun(ctx context.Context, c *runapi.Client, id string, docOut, progressOut io.Writer) error {
	events, err := c.Subscribe(ctx, id)
	if err != nil {
		return err
	}

	var (
		final *runapi.Run
		last  orchestrator.Phase
	)
	for ev := range events {
		if ev.Err != nil {
			return ev.Err
		}
		if p := ev.Progress; p != nil {
			pe := p.Event()
			if pe.Phase != last {
				fmt.Fprintln(progressOut, orchestrator.FormatPhaseHeader(id, pe.Phase))
				last = pe.Phase
			}
			fmt.Fprintln(progressOut, orchestrator.FormatProgress(pe))
		}
		if ev.Run != nil {
			final = ev.Run
		}
	}
	if final == nil {
		return fmt.Errorf("stream for run %s ended without a result", id)
	}
	return printFinal(docOut, final)
}

func printFinal(w io.Writer, run *runapi.Run) error {
	switch run.Status.State {
	case runapi.RunStateCompleted:
		_, err := io.WriteString(w, run.Document)
		return err
	case runapi.RunStateFailed:
		if run.Status.Section != "" {
			return fmt.Errorf("run %s failed in %s: %s", run.ID, run.Status.Section, run.Status.Message)
		}
		return fmt.Errorf("run %s failed: %s", run.ID, run.Status.Message)
	default:
		return fmt.Errorf("run %s is %s", run.ID, run.Status.State)
	}
}

func newRemoteGetCmd(a *app, client func() *runapi.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a finished run's document, or its state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printFinal(a.stdout, run)
		},
	}
}

func newRemoteListCmd(a *app, client func() *runapi.Client) *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := client().List(cmd.Context(), runapi.ListRunsRequest{State: runapi.RunState(state)})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATE\tSUBMITTED\tCONTEXT")
			for _, r := range resp.Runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Status.State, r.SubmittedAt.Format(time.RFC3339), truncate(r.Context, 48))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%d runs\n", resp.TotalSize)
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "only list runs in this state")
	return cmd
}

func newRemoteCancelCmd(a *app, client func() *runapi.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a run at its next phase boundary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := client().Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "cancel requested for %s (state %s)\n", run.ID, run.Status.State)
			return nil
		},
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/stratagen/internal/mcptools"
)

func newServeMCPCmd(a *app) *cobra.Command {
	var (
		fixtures string
		httpAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the strategy tools over MCP (stdio by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.buildStack(fixtures)
			if err != nil {
				return err
			}
			stopMetrics, err := a.serveMetrics(st.metrics)
			if err != nil {
				return err
			}
			defer stopMetrics()

			svc := mcptools.NewStrategyService(st.pipeline, mcptools.ServiceConfig{
				Grace:  a.cfg.Pipeline.Grace,
				Policy: st.policy,
				Late:   st.late,
				Logger: a.log,
			})
			server := mcptools.NewServer(svc)

			if httpAddr != "" {
				a.log.Info("mcp: serving over HTTP", zap.String("addr", httpAddr))
				return mcptools.RunHTTP(cmd.Context(), server, httpAddr)
			}
			return mcptools.RunStdio(cmd.Context(), server)
		},
	}
	cmd.Flags().StringVar(&fixtures, "fixtures", "fixtures", "replay fixture directory serving provider results")
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}

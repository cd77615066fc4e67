package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/stratagen/internal/runapi"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		fixtures string
		addr     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve strategy runs over HTTP with JSON-RPC and SSE progress streams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.buildStack(fixtures)
			if err != nil {
				return err
			}

			svc := runapi.NewService(st.pipeline, runapi.ServiceConfig{
				Grace:  a.cfg.Pipeline.Grace,
				Late:   st.late,
				Logger: a.log,
			})
			srv := runapi.NewServer(svc.Card(version), svc)
			srv.Handle("GET /metrics", st.metrics.Handler())
			if err := srv.Start(cmd.Context(), addr); err != nil {
				return err
			}
			a.log.Info("runapi: serving", zap.String("addr", srv.Addr()), zap.String("fixtures", fixtures))

			<-cmd.Context().Done()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Stop(ctx); err != nil {
				a.log.Warn("runapi: shutdown", zap.Error(err))
			}
			return svc.Close(ctx)
		},
	}
	cmd.Flags().StringVar(&fixtures, "fixtures", "fixtures", "replay fixture directory serving provider results")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	return cmd
}

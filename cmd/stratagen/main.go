// Command stratagen runs the marketing-strategy pipeline against a provider
// set, checks hook sets against the diversity policy and serves both over
// MCP or HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dusk-indust/stratagen/internal/config"
	"github.com/dusk-indust/stratagen/internal/logging"
)

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	stdout io.Writer
	stderr zapcore.WriteSyncer // shared by the logger and progress output

	configDir string
	logLevel  string

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		stdout: stdout,
		stderr: zapcore.Lock(zapcore.AddSync(stderr)),
	}

	root := &cobra.Command{
		Use:           "stratagen",
		Short:         "Generate marketing strategies from research and analysis providers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", ".", "directory holding stratagen.yml")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(a),
		newHooksCmd(a),
		newStatusCmd(a),
		newServeMCPCmd(a),
		newServeCmd(a),
		newRemoteCmd(a),
		newInitCmd(a),
	)
	return root
}

// setup loads configuration and builds the process logger.
func (a *app) setup() error {
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	log, err := logging.NewWithWriter(cfg.Log, a.stderr)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	if cfg.Path != "" {
		log.Debug("config: loaded", zap.String("path", cfg.Path))
	}
	return nil
}

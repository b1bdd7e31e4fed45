package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"PaperScanner/internal/app"
	"PaperScanner/internal/config"
	"PaperScanner/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "paperscanner",
		Short:         "Research paper monitor: discover, assess and distribute new papers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to YAML config (default $PAPER_SCANNER_CONFIG)")

	root.AddCommand(
		c.runCmd(),
		c.cycleCmd(),
		c.healthCmd(),
		c.processCmd(),
		c.distributeCmd(),
		c.queryCmd(),
		c.exportCmd(),
		c.importCmd(),
		c.dbCmd(),
	)
	return root
}

func (c *cli) loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.NewWithWriter(c.stderr, cfg.Logging.Level, cfg.Logging.Format), nil
}

// withApp opens the application for the duration of fn.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.Application) error) error {
	cfg, logger, err := c.loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	application, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			logger.Warn("close storage", "error", cerr)
		}
	}()

	err = fn(ctx, application)
	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted")
		return nil
	}
	return err
}

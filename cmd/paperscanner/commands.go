package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"PaperScanner/internal/app"
	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run cycles on the configured schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				return a.Run(ctx)
			})
		},
	}
}

func (c *cli) cycleCmd() *cobra.Command {
	var feed string
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run one discover, process and distribute cycle now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				report, err := a.RunCycle(ctx, feed)
				if err != nil {
					return err
				}
				printReport(c.stdout, report)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&feed, "feed", "", "only this feed (url or name)")
	return cmd
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the health of every configured feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				records, err := a.Health(ctx)
				if err != nil {
					return err
				}
				printHealth(c.stdout, records)
				return nil
			})
		},
	}
}

func (c *cli) processCmd() *cobra.Command {
	var req app.ProcessRequest
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process one paper by URL or arXiv ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (req.URL == "") == (req.ID == "") {
				return errors.New("exactly one of --url or --id is required")
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				result, err := a.ProcessPaper(ctx, req)
				if errors.Is(err, domain.ErrAlreadyProcessed) {
					fmt.Fprintf(c.stdout, "already processed (use --force to reprocess)\n\n")
					printPaper(c.stdout, result.Paper)
					return nil
				}
				if result.Paper.ID != "" {
					printPaper(c.stdout, result.Paper)
					printAttempts(c.stdout, result.Attempts)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&req.URL, "url", "", "paper URL")
	cmd.Flags().StringVar(&req.ID, "id", "", "arXiv identifier")
	cmd.Flags().BoolVar(&req.Force, "force", false, "reprocess even if already processed")
	cmd.Flags().BoolVar(&req.SaveOnly, "save-only", false, "store the paper without distributing it")
	return cmd
}

func (c *cli) distributeCmd() *cobra.Command {
	var (
		req     app.DistributeRequest
		channel string
	)
	cmd := &cobra.Command{
		Use:   "distribute",
		Short: "Send one paper, or recent papers, to the configured channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Channel = domain.ChannelType(channel)
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				attempts, err := a.Distribute(ctx, req)
				if req.DryRun {
					fmt.Fprintln(c.stdout, "dry run: nothing was sent")
				}
				printAttempts(c.stdout, attempts)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&req.PaperID, "id", "", "paper ID to distribute")
	cmd.Flags().IntVar(&req.Days, "days", 1, "distribute papers processed in the last N days")
	cmd.Flags().IntVar(&req.MinRelevance, "min-relevance", 0, "only papers with at least this score")
	cmd.Flags().StringVar(&channel, "channel", "", "only this channel type (telegram, slack, email)")
	cmd.Flags().StringVar(&req.Target, "target", "", "send to this target instead of the configured ones")
	cmd.Flags().BoolVar(&req.DryRun, "dry-run", false, "show what would be sent")
	return cmd
}

func (c *cli) queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query processed papers, distribution attempts and statistics",
	}

	var (
		pf      paperFlags
		asJSON  bool
		monthly bool
		sf      paperFlags
		paperID string
		failed  bool
		limit   int
	)

	papers := &cobra.Command{
		Use:   "papers",
		Short: "List processed papers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := pf.filter(time.Now())
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				list, err := a.Papers(ctx, filter)
				if err != nil {
					return err
				}
				if asJSON {
					return writePapersJSON(c.stdout, list)
				}
				printPapers(c.stdout, list)
				return nil
			})
		},
	}
	pf.register(papers)
	papers.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	attempts := &cobra.Command{
		Use:   "attempts",
		Short: "List distribution attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := ports.AttemptFilter{PaperID: domain.NormalizeArxivID(paperID), Limit: limit}
			if failed {
				ok := false
				filter.Success = &ok
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				list, err := a.Attempts(ctx, filter)
				if err != nil {
					return err
				}
				printAttempts(c.stdout, list)
				return nil
			})
		},
	}
	attempts.Flags().StringVar(&paperID, "id", "", "only attempts for this paper")
	attempts.Flags().BoolVar(&failed, "failed", false, "only failed attempts")
	attempts.Flags().IntVar(&limit, "limit", 100, "maximum rows")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show processing statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := sf.filter(time.Now())
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				s, err := a.Stats(ctx, filter, monthly)
				if err != nil {
					return err
				}
				printStats(c.stdout, s)
				return nil
			})
		},
	}
	sf.register(stats)
	stats.Flags().BoolVar(&monthly, "monthly", false, "include a per-month breakdown")

	cmd.AddCommand(papers, attempts, stats)
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	var (
		pf     paperFlags
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export processed papers as CSV or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := pf.filter(time.Now())
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				w := c.stdout
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("create %s: %w", output, err)
					}
					defer f.Close()
					w = f
				}
				n, err := a.Export(ctx, w, format, filter)
				if err != nil {
					return err
				}
				if output != "" && output != "-" {
					fmt.Fprintf(c.stdout, "exported %d papers to %s\n", n, output)
				}
				return nil
			})
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&format, "format", app.ExportCSV, "csv or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import papers from a CSV export; existing papers are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				result, err := a.Import(ctx, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "imported=%d skipped=%d invalid=%d\n", result.Imported, result.Skipped, result.Invalid)
				return nil
			})
		},
	}
}

func (c *cli) dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Move the SQLite database to a timestamped backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := c.loadConfig()
			if err != nil {
				return err
			}
			backup, err := app.ResetDatabase(cfg, time.Now())
			if err != nil {
				return err
			}
			if backup == "" {
				fmt.Fprintln(c.stdout, "no database to reset")
				return nil
			}
			fmt.Fprintf(c.stdout, "database moved to %s\n", backup)
			return nil
		},
	})
	return cmd
}

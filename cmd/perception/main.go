package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/analysis"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/config"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/database"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/domain"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/logging"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/metrics"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/pipeline"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/report"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     zerolog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "perception",
	Short:   "Public perception analytics over tweets and reddit posts",
	Long:    "perception loads a tweets export and a reddit export, scores sentiment per day and writes a comparison report.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := config.LoadDotEnv(); err != nil {
			return fmt.Errorf("loading .env: %w", err)
		}
		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger = logging.New(logging.Config{Level: level, Format: cfg.Logging.Format})
		logger.Debug().Str("config", path).Msg("config loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(wordsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("perception", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/perception/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to point at your tweets and reddit exports.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store contents and the last ingest run",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Store: %s (%s)\n\n", db.Path(), db.Driver())
		for _, s := range stats {
			fmt.Printf("%s (%s):\n", s.Source.Label(), s.Table)
			fmt.Printf("  Rows: %s\n", humanize.Comma(int64(s.Rows)))
			fmt.Printf("  Undated: %s\n", humanize.Comma(int64(s.Undated)))
			if s.FirstDate != nil && s.LastDate != nil {
				fmt.Printf("  Days: %s to %s\n", *s.FirstDate, *s.LastDate)
			}
		}

		run, err := db.LastIngestRun(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting last ingest run: %w", err)
		}
		if run == nil {
			fmt.Println("\nNo ingest run yet. Run 'perception ingest' to load the exports.")
			return nil
		}
		fmt.Printf("\nLast ingest %s: %s, %s\n", run.ID, run.Status, humanize.Time(run.StartedAt))
		for _, src := range run.Sources {
			fmt.Printf("  %s: %s rows, %s skipped, %s undated\n", src.Source,
				humanize.Comma(int64(src.RowsLoaded)), humanize.Comma(int64(src.RowsSkipped)), humanize.Comma(int64(src.BadTimestamps)))
		}
		if run.Error != nil {
			fmt.Printf("  Error: %s\n", *run.Error)
		}
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Normalize the configured exports and replace the store tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(p *pipeline.Pipeline) error {
			return printSteps(p.Ingest(cmd.Context()))
		})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score stored posts and print the daily sentiment summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(p *pipeline.Pipeline) error {
			res, step := p.Analyze(cmd.Context())
			if err := printSteps(step); err != nil {
				return err
			}
			printAnalysis(res)
			return nil
		})
	},
}

var queryCmd = &cobra.Command{
	Use:   "query [name]",
	Short: "Run the report queries, or a single one by name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(p *pipeline.Pipeline) error {
			if len(args) == 1 {
				res, err := p.RunQuery(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Print(report.Table(res.Table))
				return nil
			}

			results, step := p.Query(cmd.Context())
			for _, r := range results {
				fmt.Printf("\n%s\n", r.Name)
				if r.Err != nil {
					fmt.Printf("  Error: %v\n", r.Err)
					continue
				}
				fmt.Print(report.Table(r.Table))
			}
			fmt.Println()
			return printSteps(step)
		})
	},
}

var wordsLimit int

var wordsCmd = &cobra.Command{
	Use:   "words",
	Short: "Print the most frequent terms per source",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		for _, src := range domain.Sources {
			posts, err := db.GetPosts(cmd.Context(), src)
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s posts):\n", src.Label(), humanize.Comma(int64(len(posts))))
			for _, t := range analysis.Terms(posts, wordsLimit) {
				fmt.Printf("  %-20s %s\n", t.Term, humanize.Comma(int64(t.Count)))
			}
		}
		return nil
	},
}

func init() {
	wordsCmd.Flags().IntVarP(&wordsLimit, "limit", "n", 20, "Number of terms per source")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: ingest -> analyze -> query -> report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(p *pipeline.Pipeline) error {
			result := p.Run(cmd.Context())
			if err := printSteps(result.Steps...); err != nil {
				return err
			}
			fmt.Println("\nPipeline complete! Run 'perception serve' to view the report.")
			return nil
		})
	},
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		srv, err := server.New(db, cfg.GetDataDir(), metrics.New(), logger)
		if err != nil {
			return err
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(cmd.Context(), srv, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func openDB(ctx context.Context) (*database.DB, error) {
	return database.Open(ctx, cfg.Store.Driver, cfg.StorePath(), logger)
}

func withPipeline(ctx context.Context, fn func(p *pipeline.Pipeline) error) error {
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	env := pipeline.Env{DB: db, Log: logger, Metrics: metrics.New()}
	return fn(pipeline.New(cfg, env))
}

// printSteps prints each step and returns the first step error.
func printSteps(steps ...pipeline.StepResult) error {
	for i, step := range steps {
		if len(steps) > 1 {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(steps), step.Name)
		} else {
			fmt.Printf("%s\n", step.Name)
		}
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
			return step.Err
		}
		fmt.Printf("  %s\n", step.Summary)
	}
	return nil
}

func printAnalysis(res *analysis.Result) {
	for _, s := range res.Sources {
		fmt.Printf("\n%s: %s posts, %s samples, %s undated\n", s.Source.Label(),
			humanize.Comma(int64(s.Posts)), humanize.Comma(int64(s.Samples)), humanize.Comma(int64(s.Undated)))
		d := s.Summary
		fmt.Printf("  Daily mean sentiment: mean %+.3f, std %.3f, min %+.3f, median %+.3f, max %+.3f over %d days\n",
			d.Mean, d.Std, d.Min, d.P50, d.Max, d.Count)
		if len(s.Terms) > 0 {
			terms := make([]string, len(s.Terms))
			for i, t := range s.Terms {
				terms[i] = t.Term
			}
			fmt.Printf("  Top terms: %s\n", strings.Join(terms, ", "))
		}
	}
	if a := res.Aligned; a.Start != nil && a.End != nil {
		fmt.Printf("\nCommon range: %s\n", domain.FormatRange(*a.Start, *a.End))
	} else {
		fmt.Println("\nThe two sources share no common date range.")
	}
}

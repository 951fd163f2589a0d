package main

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/AntonStoeckl/query-counter-go/example/blog"
	"github.com/AntonStoeckl/query-counter-go/querycounter"
	"github.com/AntonStoeckl/query-counter-go/querycounter/config"
	"github.com/AntonStoeckl/query-counter-go/querycounter/pgxhook"
	"github.com/AntonStoeckl/query-counter-go/querycounter/sqlhook"
)

const (
	adapterSQLite   = "sqlite"
	adapterPostgres = "postgres"
	adapterPGX      = "pgx"

	defaultSQLiteDSN = ":memory:"
)

var ErrUnknownAdapter = errors.New("unknown adapter")
var ErrDSNRequired = errors.New("a dsn is required for this adapter")

var (
	runAdapter    string
	runDSN        string
	runConfigPath string
	runUsers      int
	runPosts      int
	runThreshold  int
	runBatched    bool
	runJSON       bool
	runVerbose    bool
)

type runOptions struct {
	adapter      string
	dsn          string
	users        int
	postsPerUser int
	batched      bool
}

type scenario struct {
	source querycounter.EventSource
	repo   *blog.Repository
	close  func()
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load the blog feed and report repeated statements",
	Long: `Seed users and posts, load the feed once inside a tracking interval and print
every statement group whose count exceeds the alert threshold.

Analysis settings come from --config (YAML) and QUERYCOUNTER_* environment variables;
--threshold overrides both. The command exits with status 1 if any group was reported.`,
	Run: func(cmd *cobra.Command, args []string) {
		analysisConfig, err := config.Load(runConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if cmd.Flags().Changed("threshold") {
			analysisConfig.AlertThreshold = runThreshold
		}

		level := slog.LevelWarn
		if runVerbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		opts := runOptions{
			adapter:      runAdapter,
			dsn:          runDSN,
			users:        runUsers,
			postsPerUser: runPosts,
			batched:      runBatched,
		}

		report, err := runScenario(cmd.Context(), opts, analysisConfig, logger)
		if err != nil && !errors.Is(err, querycounter.ErrQueryThresholdExceeded) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if runJSON {
			if printErr := printJSON(os.Stdout, report); printErr != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", printErr)
				os.Exit(1)
			}
		} else {
			printReport(os.Stdout, report, analysisConfig.MaxReportFrames)
		}

		if !report.Empty() {
			os.Exit(1)
		}
	},
}

func init() {
	runCmd.Flags().StringVarP(&runAdapter, "adapter", "a", adapterSQLite, "Database adapter: sqlite, postgres (lib/pq via sqlx) or pgx (pgxpool)")
	runCmd.Flags().StringVar(&runDSN, "dsn", "", "Database DSN (defaults to an in-memory database for sqlite)")
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "YAML file with analysis settings")
	runCmd.Flags().IntVarP(&runUsers, "users", "u", 10, "Number of users to seed")
	runCmd.Flags().IntVarP(&runPosts, "posts", "p", 3, "Number of posts per user")
	runCmd.Flags().IntVarP(&runThreshold, "threshold", "t", querycounter.DefaultAlertThreshold, "Alert threshold (overrides config)")
	runCmd.Flags().BoolVar(&runBatched, "batched", false, "Use the batched feed loader instead of the N+1 one")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the report as JSON")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Log debug messages to stderr")

	rootCmd.AddCommand(runCmd)
}

// runScenario seeds the database and loads the feed inside a tracking interval.
// The returned error wraps querycounter.ErrQueryThresholdExceeded if RaiseIfExceeds is set and groups were reported.
func runScenario(
	ctx context.Context,
	opts runOptions,
	analysisConfig querycounter.AnalysisConfig,
	logger *slog.Logger,
) (querycounter.Report, error) {
	s, err := openScenario(ctx, opts)
	if err != nil {
		return querycounter.Report{}, err
	}
	defer s.close()

	if err = s.repo.ResetSchema(ctx); err != nil {
		return querycounter.Report{}, err
	}

	if err = s.repo.Seed(ctx, opts.users, opts.postsPerUser); err != nil {
		return querycounter.Report{}, err
	}

	qc, err := querycounter.NewQueryCounter(
		s.source,
		querycounter.WithAnalysisConfig(analysisConfig),
		querycounter.WithLogger(logger),
	)
	if err != nil {
		return querycounter.Report{}, err
	}

	loadFeed := blog.LoadFeedNPlusOne
	if opts.batched {
		loadFeed = blog.LoadFeedBatched
	}

	return qc.TrackAndAnalyze(ctx, func(ctx context.Context) error {
		_, loadErr := loadFeed(ctx, s.repo)

		return loadErr
	})
}

func openScenario(ctx context.Context, opts runOptions) (scenario, error) {
	switch opts.adapter {
	case adapterSQLite:
		dsn := opts.dsn
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}

		drv, err := sqlhook.LookupDriver("sqlite")
		if err != nil {
			return scenario{}, err
		}

		return openSQLXScenario(drv, "sqlite3", dsn, blog.DialectSQLite, 1)

	case adapterPostgres:
		if opts.dsn == "" {
			return scenario{}, ErrDSNRequired
		}

		return openSQLXScenario(sqlhook.PostgresDriver(), "postgres", opts.dsn, blog.DialectPostgres, 0)

	case adapterPGX:
		if opts.dsn == "" {
			return scenario{}, ErrDSNRequired
		}

		return openPGXScenario(ctx, opts.dsn)

	default:
		return scenario{}, errors.Join(ErrUnknownAdapter, errors.New(opts.adapter))
	}
}

func openSQLXScenario(drv driver.Driver, bindDriverName, dsn, dialect string, maxOpen int) (scenario, error) {
	source := sqlhook.NewSource()

	db, err := source.OpenSQLX(drv, bindDriverName, dsn)
	if err != nil {
		return scenario{}, err
	}
	blog.TuneSQLX(db, maxOpen)

	repo, err := blog.NewSQLXRepository(db, dialect)
	if err != nil {
		_ = db.Close()
		return scenario{}, err
	}

	return scenario{source: source, repo: repo, close: func() { _ = db.Close() }}, nil
}

func openPGXScenario(ctx context.Context, dsn string) (scenario, error) {
	tracer := pgxhook.NewTracer()

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return scenario{}, errors.Join(pgxhook.ErrParsingConfigFailed, err)
	}

	tracer.Attach(poolConfig.ConnConfig)
	blog.TunePGXPool(poolConfig)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return scenario{}, errors.Join(pgxhook.ErrConnectingFailed, err)
	}

	return scenario{source: tracer, repo: blog.NewPGXRepository(pool), close: pool.Close}, nil
}

func printReport(w io.Writer, report querycounter.Report, maxFrames int) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintf(w, "Statements: %d total, %d distinct, threshold %d\n",
		report.TotalStatements, report.DistinctStatements, report.Threshold)

	if report.Empty() {
		fmt.Fprintf(w, "%s\n", green("No statement group exceeds the threshold"))
		return
	}

	fmt.Fprintf(w, "%s\n\n", red(fmt.Sprintf("%d statement group(s) exceed the threshold", len(report.Entries))))

	for _, entry := range report.Entries {
		fmt.Fprintf(w, "%s %s\n", yellow(fmt.Sprintf("Count: %d", entry.Count)), entry.SampleText)
		fmt.Fprintf(w, "  %s %s\n", cyan("key:"), entry.Key)

		if len(entry.Stacks) > 0 {
			for i, frame := range entry.Stacks[0] {
				if i >= maxFrames {
					break
				}
				fmt.Fprintf(w, "    at %s\n", frame)
			}
		}
		fmt.Fprintln(w)
	}
}

func printJSON(w io.Writer, report querycounter.Report) error {
	data, err := report.JSON()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s\n", data)

	return err
}

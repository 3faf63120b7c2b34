package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Skufu/medscore/internal/analysis"
	"github.com/Skufu/medscore/internal/config"
	"github.com/Skufu/medscore/internal/metrics"
	"github.com/Skufu/medscore/internal/refdata"
	"github.com/Skufu/medscore/internal/scoring"
	"github.com/Skufu/medscore/internal/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "medscore",
		Short:        "Medical condition risk scoring API",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	root.AddCommand(serveCmd())
	root.AddCommand(scoreCmd())
	root.AddCommand(inspectCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scoring API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func scoreCmd() *cobra.Command {
	var (
		tablePath  string
		strategy   string
		age        int
		conditions []string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score an age and condition list against the reference table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strategy == "" {
				strategy = getEnv("MATCH_STRATEGY", string(scoring.StrategyFuzzy))
			}
			s, err := scoring.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			table := refdata.Load(tablePathOrEnv(tablePath))
			if table.Empty() {
				return unavailableError(table)
			}
			scorer, err := scoring.New(table, s)
			if err != nil {
				return err
			}
			a := scorer.Assess(conditions, age)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(a)
			}
			printAssessment(cmd.OutOrStdout(), a)
			return nil
		},
	}

	cmd.Flags().StringVar(&tablePath, "table", "", "path to the reference table (default $REFERENCE_TABLE_PATH)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "match strategy: fuzzy or substring (default $MATCH_STRATEGY or fuzzy)")
	cmd.Flags().IntVar(&age, "age", 0, "patient age in years")
	cmd.Flags().StringArrayVarP(&conditions, "condition", "c", nil, "condition name (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the assessment as JSON")
	_ = cmd.MarkFlagRequired("age")
	return cmd
}

func inspectCmd() *cobra.Command {
	var tablePath string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Load the reference table and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := refdata.Load(tablePathOrEnv(tablePath))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source:  %s\n", table.Source())
			fmt.Fprintf(out, "entries: %d\n", table.Len())
			if table.Empty() {
				return unavailableError(table)
			}

			counts := map[float64]int{}
			for _, e := range table.Entries() {
				counts[e.Weight]++
			}
			weights := make([]float64, 0, len(counts))
			for w := range counts {
				weights = append(weights, w)
			}
			sort.Sort(sort.Reverse(sort.Float64Slice(weights)))

			fmt.Fprintln(out, "weights:")
			for _, w := range weights {
				fmt.Fprintf(out, "  %.2f  %d\n", w, counts[w])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tablePath, "table", "", "path to the reference table (default $REFERENCE_TABLE_PATH)")
	return cmd
}

// tablePathOrEnv resolves an unset --table flag after .env has been loaded.
func tablePathOrEnv(flag string) string {
	if flag != "" {
		return flag
	}
	return getEnv("REFERENCE_TABLE_PATH", config.DefaultReferencePath)
}

func unavailableError(table *refdata.Table) error {
	if err := table.LoadErr(); err != nil {
		return fmt.Errorf("reference table unavailable: %w", err)
	}
	return errors.New("reference table unavailable: no usable rows")
}

func printAssessment(w io.Writer, a scoring.Assessment) {
	fmt.Fprintf(w, "score:           %.1f\n", a.Score)
	fmt.Fprintf(w, "age score:       %.0f (age %d)\n", a.AgeScore, a.Age)
	fmt.Fprintf(w, "condition score: %.1f (highest weight %.2f)\n", a.ConditionScore, a.HighestWeight)
	if len(a.Matches) == 0 {
		fmt.Fprintln(w, "matches:         none")
		return
	}
	fmt.Fprintln(w, "matches:")
	for _, m := range a.Matches {
		fmt.Fprintf(w, "  %-20s %-8s %.2f  sim=%.3f  %s\n", m.Condition, m.Code, m.Weight, m.Similarity, m.Description)
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		l := newLogger("production", "info")
		l.Error().Err(err).Msg("config error")
		return err
	}
	logger := newLogger(cfg.Env, cfg.LogLevel)

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	table := refdata.Load(cfg.ReferencePath)
	metrics.SetReferenceEntries(table.Len())
	if table.Empty() {
		logger.Warn().
			Err(table.LoadErr()).
			Str("path", cfg.ReferencePath).
			Msg("reference table is empty; scoring is unavailable")
	} else {
		logger.Info().
			Str("path", table.Source()).
			Int("entries", table.Len()).
			Msg("reference table loaded")
	}

	scorer, err := scoring.New(table, cfg.Strategy())
	if err != nil {
		return err
	}

	ctx := context.Background()
	var db server.HealthChecker
	if cfg.EnableDB {
		pool, err := connectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error().Err(err).Msg("database connection failed")
			return err
		}
		defer pool.Close()
		db = pool
	}

	var analyzer analysis.Analyzer
	if cfg.LLMEnabled() {
		analyzer = analysis.NewGeminiClient(analysis.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
			Timeout: cfg.LLMTimeout,
		}, logger)
	} else {
		analyzer = analysis.RuleAnalyzer{}
		logger.Info().Msg("GEMINI_API_KEY not set; analysis falls back to rule-based screening")
	}

	router := server.NewRouter(server.Options{
		Scorer:          scorer,
		Analyzer:        analyzer,
		DB:              db,
		Logger:          logger,
		CORSOrigins:     cfg.CORSOrigins,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
		AnalysisTimeout: cfg.LLMTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.LLMTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info().
		Str("port", cfg.Port).
		Str("strategy", string(cfg.Strategy())).
		Msg("server listening")
	return waitForShutdown(srv, errCh, logger)
}

func newLogger(env, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	var out io.Writer = os.Stdout
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func connectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

func waitForShutdown(srv *http.Server, errCh <-chan error, logger zerolog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	case <-stop:
	}

	logger.Info().Msg("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

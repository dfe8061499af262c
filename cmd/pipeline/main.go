package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/open-build/ogc-pipeline/cmd/pipeline/config"
	"github.com/open-build/ogc-pipeline/migrator"
	"github.com/open-build/ogc-pipeline/pipeline"
	"github.com/open-build/ogc-pipeline/pipeline/store/pgxstore"
	"github.com/open-build/ogc-pipeline/pkg/logger"
	"github.com/open-build/ogc-pipeline/pkg/pgxdb"
	"github.com/open-build/ogc-pipeline/pkg/retry"
	"github.com/open-build/ogc-pipeline/pkg/stellar"
)

func main() {
	// Load configuration
	cfg := config.New()

	// Initialize logger and set as default
	log := logger.NewFromConfig(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
	})
	slog.SetDefault(log)

	// Prepare context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database connection
	db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		log.ErrorContext(ctx, "Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Apply migrations
	log.InfoContext(ctx, "Applying database migrations")
	if err := migrator.ApplyMigrations(db, cfg.MigrationsDir); err != nil {
		log.ErrorContext(ctx, "Failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize store
	store, storeCloser := pgxstore.New(db)
	defer storeCloser()

	// HTTP client & Stellar network client
	httpClient := &http.Client{Timeout: cfg.HttpClientTimeout}
	network, err := stellar.NewClient(httpClient, stellar.Config{
		HorizonURL:       cfg.HorizonURL,
		Network:          cfg.Network,
		AssetCode:        cfg.AssetCode,
		AssetIssuer:      cfg.AssetIssuer,
		DistributionSeed: cfg.DistributionSeed,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to create network client", slog.Any("error", err))
		os.Exit(1)
	}

	// Payout and fund policies
	policy, allocator, err := buildPolicies(cfg)
	if err != nil {
		log.ErrorContext(ctx, "Invalid distribution configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Input source
	source, err := openInput(ctx, httpClient, cfg.Submissions)
	if err != nil {
		log.ErrorContext(ctx, "Failed to open input", slog.Any("error", err))
		os.Exit(1)
	}
	defer source.Close()

	// Create pipeline service
	service := pipeline.NewService(
		source,
		network,
		store,
		policy,
		allocator,
		pipeline.WithRetry(retry.NewPolicy(cfg.RetryAttempts, cfg.RetryBackoff)),
		pipeline.WithDistributorOptions(
			pipeline.WithBatchSize(cfg.BatchSize),
			pipeline.WithBatchDelay(cfg.BatchDelay),
			pipeline.WithPaymentDelay(cfg.PaymentDelay),
		),
	)

	// Start service
	log.InfoContext(ctx, "Starting submission pipeline",
		slog.String("submissions", cfg.Submissions),
		slog.Int("batchSize", cfg.BatchSize),
		slog.String("assetCode", cfg.AssetCode),
	)
	events, done := service.Start(ctx)

	// Subscribe to events for logging and artifact output
	var exitCode int
	subCloser := setupEventHandling(ctx, events, log, cfg.OutputDir, &exitCode)

	// Wait for shutdown, then for all events to be handled
	<-done
	subCloser()

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	log.InfoContext(ctx, "Pipeline finished")
}

// buildPolicies parses the amount bounds and fund split from configuration
func buildPolicies(cfg config.Config) (pipeline.AmountPolicy, *pipeline.FundAllocator, error) {
	minAmount, err := decimal.NewFromString(cfg.MinAmount)
	if err != nil {
		return nil, nil, fmt.Errorf("min amount: %w", err)
	}
	maxAmount, err := decimal.NewFromString(cfg.MaxAmount)
	if err != nil {
		return nil, nil, fmt.Errorf("max amount: %w", err)
	}
	policy, err := pipeline.NewPayoutPolicy(minAmount, maxAmount, nil)
	if err != nil {
		return nil, nil, err
	}

	rate, err := decimal.NewFromString(cfg.ContributionRate)
	if err != nil {
		return nil, nil, fmt.Errorf("contribution rate: %w", err)
	}
	categories, err := pipeline.ParseCategorySplit(cfg.FundSplit)
	if err != nil {
		return nil, nil, err
	}
	allocator, err := pipeline.NewFundAllocator(rate, categories)
	if err != nil {
		return nil, nil, err
	}

	return policy, allocator, nil
}

// openInput opens the form export, either a local file or an http(s) URL
func openInput(ctx context.Context, client *http.Client, input string) (io.ReadCloser, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, input, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch input: unexpected status %s", resp.Status)
		}
		return resp.Body, nil
	}
	return os.Open(input)
}

// setupEventHandling configures event handlers using slog directly and
// writes the run artifacts when the run completes
func setupEventHandling(ctx context.Context, events <-chan pipeline.Event, log *slog.Logger, outputDir string, exitCode *int) func() {
	return pipeline.NewSubscriber(events,
		pipeline.OnRunStarted(func(event pipeline.RunStarted) {
			log.InfoContext(ctx, "Run started",
				slog.String("runID", event.RunID),
				slog.String("startedAt", event.StartedAt.Format(logger.TimeFormat)),
			)
		}),
		pipeline.OnRowSkipped(func(event pipeline.RowSkipped) {
			log.WarnContext(ctx, "Input row skipped",
				slog.Int("row", event.Row),
				slog.String("reason", event.Reason),
			)
		}),
		pipeline.OnInputNormalized(func(event pipeline.InputNormalized) {
			log.InfoContext(ctx, "Input normalized",
				slog.Int("submissions", event.Submissions),
				slog.Int("dropped", event.Dropped),
			)
		}),
		pipeline.OnSubmissionValidated(func(event pipeline.SubmissionValidated) {
			log.InfoContext(ctx, "Submission validated",
				slog.String("address", event.Result.Submission.Address),
				slog.String("status", string(event.Result.Status)),
				slog.String("reason", event.Result.Reason),
			)
		}),
		pipeline.OnValidationCompleted(func(event pipeline.ValidationCompleted) {
			log.InfoContext(ctx, "Validation completed",
				slog.Int("approved", event.Approved),
				slog.Int("pending", event.Pending),
				slog.Int("rejected", event.Rejected),
			)
		}),
		pipeline.OnBatchStarted(func(event pipeline.BatchStarted) {
			log.InfoContext(ctx, "Payment batch started",
				slog.Int("batch", event.Number),
				slog.Int("size", event.Size),
			)
		}),
		pipeline.OnPaymentProcessed(func(event pipeline.PaymentProcessed) {
			out := event.Outcome
			if out.Status == pipeline.OutcomeFailed {
				log.ErrorContext(ctx, "Payment failed",
					slog.String("address", out.RecipientAddress),
					slog.String("error", out.Error),
				)
				return
			}
			log.InfoContext(ctx, "Payment processed",
				slog.String("address", out.RecipientAddress),
				slog.String("status", string(out.Status)),
				slog.String("amount", out.Amount.String()),
				slog.String("reference", out.NetworkReference),
			)
		}),
		pipeline.OnRunHalted(func(event pipeline.RunHalted) {
			log.ErrorContext(ctx, "Run halted",
				slog.Any("error", event.Err),
				slog.Int("unprocessed", event.Unprocessed),
			)
			*exitCode = 1
		}),
		pipeline.OnRunCompleted(func(event pipeline.RunCompleted) {
			log.InfoContext(ctx, "Run completed",
				slog.String("runID", event.Report.RunID),
				slog.Int("sent", event.Report.Counts.Sent),
				slog.Int("failed", event.Report.Counts.Failed),
				slog.String("totalDistributed", event.Report.TotalDistributed.String()),
				slog.Duration("duration", event.Duration),
			)
			if err := writeArtifacts(outputDir, event.Report); err != nil {
				log.ErrorContext(ctx, "Failed to write artifacts", slog.Any("error", err))
				*exitCode = 1
			}
		}),
		pipeline.OnRunError(func(event pipeline.RunError) {
			log.ErrorContext(ctx, "Run aborted", slog.Any("error", event.Err))
			*exitCode = 1
		}),
	)
}

// writeArtifacts writes the recipients list, outcome log and report for the run
func writeArtifacts(outputDir string, report pipeline.Report) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	artifacts := []struct {
		name  string
		write func(io.Writer, pipeline.Report) error
	}{
		{fmt.Sprintf("recipients-%s.txt", report.RunID), pipeline.WriteRecipientsList},
		{fmt.Sprintf("outcomes-%s.jsonl", report.RunID), pipeline.WriteOutcomeLog},
		{fmt.Sprintf("report-%s.json", report.RunID), pipeline.WriteReport},
	}

	for _, a := range artifacts {
		f, err := os.Create(filepath.Join(outputDir, a.name))
		if err != nil {
			return err
		}
		if err := a.write(f, report); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	openaiclient "github.com/BasedMusa/whatsapp-sales-intelligence/internal/clients/openai"
	redisclient "github.com/BasedMusa/whatsapp-sales-intelligence/internal/clients/redis"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/config"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/db"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/logger"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/repos"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/services"
)

func main() {
	root := &cobra.Command{
		Use:          "whatsapp-sales-intelligence",
		Short:        "Incremental AI sales analysis over WhatsApp conversations",
		SilenceUsage: true,
	}
	root.AddCommand(runCmd(), reportCmd())
	if err := root.Execute(); err != nil {
		os.Exit(services.ExitTotalFailure)
	}
}

func newLogger() *logger.Logger {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(services.ExitConfigError)
	}
	return log
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one analysis run over the unanalyzed backlog",
		Run: func(cmd *cobra.Command, args []string) {
			log := newLogger()
			defer log.Sync()

			cfg, err := config.Load(log)
			if err != nil {
				log.Error("Configuration error", "error", err)
				os.Exit(services.ExitConfigError)
			}

			poolSize := cfg.IOConcurrency
			if cfg.AIConcurrency > poolSize {
				poolSize = cfg.AIConcurrency
			}
			postgresService, err := db.NewPostgresService(log, poolSize)
			if err != nil {
				log.Error("Postgres init failed", "error", err)
				os.Exit(services.ExitConfigError)
			}
			if err := postgresService.AutoMigrateAll(); err != nil {
				log.Error("Postgres auto migration failed", "error", err)
				os.Exit(services.ExitConfigError)
			}
			thePG := postgresService.DB()

			cache, err := redisclient.NewTranscriptCache(log, cfg.CacheTTL)
			if err != nil {
				log.Error("Redis init failed", "error", err)
				os.Exit(services.ExitConfigError)
			}
			defer cache.Close()

			aiClient, err := openaiclient.NewClient(log, cfg.Model, cfg.CallTimeout)
			if err != nil {
				log.Error("OpenAI client init failed", "error", err)
				os.Exit(services.ExitConfigError)
			}

			chatRepo := repos.NewChatRepo(thePG, log)
			analysisRepo := repos.NewAnalysisRepo(thePG, log, cfg.MaxConsecutiveErrs)
			transcriptService := services.NewTranscriptService(log, cfg.TranscriptWindow)
			analyzerService := services.NewAnalyzerService(log, aiClient)
			pipeline := services.NewPipelineService(log, cfg, chatRepo, analysisRepo, cache, transcriptService, analyzerService)

			// First signal: finish the in-flight chunk, flush, exit.
			// Second signal: cancel outright.
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sigs := make(chan os.Signal, 2)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigs
				log.Warn("Signal received, stopping after current chunk")
				pipeline.RequestStop()
				<-sigs
				log.Warn("Second signal received, cancelling run")
				cancel()
			}()

			report, err := pipeline.Run(ctx)
			if err != nil {
				log.Error("Run failed", "error", err)
				fmt.Print(report.Summary())
				os.Exit(services.ExitTotalFailure)
			}
			fmt.Print(report.Summary())
			os.Exit(report.ExitCode())
		},
	}
}

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print an aggregate sales report from persisted analyses",
		Run: func(cmd *cobra.Command, args []string) {
			log := newLogger()
			defer log.Sync()

			postgresService, err := db.NewPostgresService(log, 4)
			if err != nil {
				log.Error("Postgres init failed", "error", err)
				os.Exit(services.ExitConfigError)
			}
			analysisRepo := repos.NewAnalysisRepo(postgresService.DB(), log, 5)

			agg, err := analysisRepo.Aggregate(cmd.Context(), nil)
			if err != nil {
				log.Error("Aggregate query failed", "error", err)
				os.Exit(services.ExitTotalFailure)
			}
			printAggregate(agg)
		},
	}
}

func printAggregate(agg *repos.AggregateReport) {
	fmt.Printf("analyzed conversations: %d\n", agg.Total)
	if agg.Total == 0 {
		return
	}
	fmt.Printf("qualified leads:        %d\n", agg.QualifiedLeads)
	fmt.Printf("needing follow-up:      %d\n", agg.NeedsFollowup)
	fmt.Printf("average confidence:     %.2f\n", agg.AvgConfidence)
	printBuckets("lead stage", agg.ByLeadStage)
	printBuckets("sentiment", agg.BySentiment)
	printBuckets("urgency", agg.ByUrgency)
}

func printBuckets(label string, rows []repos.ReportRow) {
	fmt.Printf("by %s:\n", label)
	for _, row := range rows {
		fmt.Printf("  %-14s %d\n", row.Value, row.Count)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/veridata-io/recon-engine/pkg/adapters/datasource"
	_ "github.com/veridata-io/recon-engine/pkg/adapters/datasource/mssql"    // Register mssql adapter
	_ "github.com/veridata-io/recon-engine/pkg/adapters/datasource/postgres" // Register postgres adapter
	"github.com/veridata-io/recon-engine/pkg/config"
	"github.com/veridata-io/recon-engine/pkg/logging"
	"github.com/veridata-io/recon-engine/pkg/models"
	"github.com/veridata-io/recon-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the run configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath, Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Starting reconciliation run",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Env),
		zap.String("target", cfg.Reconcile.Target),
		zap.Strings("sources", cfg.Reconcile.Sources),
		zap.String("scope", cfg.Reconcile.Scope))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory := datasource.NewAdapterFactory(logger.Named("datasource"))
	orchestrator := services.NewOrchestrator(cfg, factory, logger.Named("recon"))

	report, err := orchestrator.Run(ctx)
	if err != nil {
		logger.Fatal("Reconciliation failed", zap.Error(err))
	}

	builder := services.NewReportBuilder(logger.Named("report"))
	for _, line := range builder.FormatLogLines(report) {
		fmt.Println(line)
	}

	if err := services.SaveReportYAML(report, cfg.Output.ReportPath); err != nil {
		logger.Error("Failed to save report", zap.Error(err))
	} else {
		logger.Info("Report saved", zap.String("path", cfg.Output.ReportPath))
	}
	if err := services.SaveOverlapCSV(report, cfg.Output.OverlapCSVPath); err != nil {
		logger.Error("Failed to save overlap grid", zap.Error(err))
	}

	if report.Status == models.StatusError {
		os.Exit(1)
	}
}

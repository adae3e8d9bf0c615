package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/startnerve/coursefactory/internal/config"
	"github.com/startnerve/coursefactory/internal/credits"
	"github.com/startnerve/coursefactory/internal/images"
	"github.com/startnerve/coursefactory/internal/llm"
	"github.com/startnerve/coursefactory/internal/payments"
	"github.com/startnerve/coursefactory/internal/pipeline"
	"github.com/startnerve/coursefactory/internal/pricing"
	"github.com/startnerve/coursefactory/internal/render"
	"github.com/startnerve/coursefactory/internal/server"
	"github.com/startnerve/coursefactory/internal/store"
	"github.com/startnerve/coursefactory/internal/viral"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server exposing the course generation, viral content and billing endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	textClient, err := llm.NewGeminiClient(ctx, llm.DefaultConfig(), cfg.GeminiAPIKey)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer textClient.Close()

	ledger, err := credits.Connect(ctx, cfg.DatabaseURL, credits.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to credit ledger: %w", err)
	}
	defer ledger.Close()

	files, err := store.New(cfg.EbookDir, cfg.CoverDir)
	if err != nil {
		return fmt.Errorf("failed to prepare storage directories: %w", err)
	}

	srv := server.New(server.Config{
		Port:          cfg.Port,
		AllowedOrigin: cfg.AllowedOrigin,
	}, server.Deps{
		Pipeline: pipeline.NewService(
			textClient,
			images.NewPexelsClient(cfg.PexelsAPIKey),
			render.NewChromeRenderer(),
			files,
			cfg.Workers,
		),
		Campaigns: viral.NewGenerator(textClient),
		Ledger:    ledger,
		Files:     files,
		Pricing:   pricing.NewCatalog(),
		Webhook:   payments.NewVerifier(cfg.WebhookSecret),
		Plans:     server.DefaultPlans(),
	})

	return srv.Start()
}

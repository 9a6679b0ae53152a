// Package main provides the entry point for the docledger CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"soberana/docledger/internal/config"
	"soberana/docledger/internal/docparser"
	"soberana/docledger/internal/llm"
	"soberana/docledger/internal/logging"
	"soberana/docledger/internal/models"
	"soberana/docledger/internal/pdfextractor"
	"soberana/docledger/internal/pipeline"
	"soberana/docledger/internal/reconcile"
	"soberana/docledger/internal/report"
	"soberana/docledger/internal/store"
	"soberana/docledger/internal/tax"
)

var (
	log = logrus.New()
	cfg *config.Config

	tenantFlag      string
	fileFlag        string
	typeFlag        string
	passwordFlag    string
	monthFlag       int
	yearFlag        int
	outputFlag      string
	transactionFlag string
	receiptFlag     string
)

var rootCmd = &cobra.Command{
	Use:   "docledger",
	Short: "Ingest financial documents and reconcile them against bank statements.",
	Long: `docledger ingests receipts, invoices and bank statements (PDF, CSV,
NF-e XML), extracts their transactions and links statement movements to the
receipts that prove them.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadEnv()
		loaded, err := config.Load()
		if err != nil {
			log.Fatalf("Configuration error: %v", err)
		}
		cfg = loaded
		logging.SetDefault(logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format))
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Use --help to see available commands")
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Run:   migrateFunc,
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Ingest one document for a tenant",
	Long:  `Process a receipt, invoice or bank statement file and persist its transactions.`,
	Run:   processFunc,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Link statement transactions to receipts",
	Run:   reconcileFunc,
}

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manually link one transaction to a receipt",
	Run:   linkFunc,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run batch tax classification for a tenant",
	Run:   analyzeFunc,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export a tenant's transactions as CSV",
	Run:   reportFunc,
}

func openStore(ctx context.Context) (*store.Postgres, *pgxpool.Pool) {
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not configured")
	}
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	return store.NewPostgres(pool), pool
}

func parseTenant() uuid.UUID {
	tenant, err := uuid.Parse(tenantFlag)
	if err != nil {
		log.Fatalf("Invalid tenant id %q: %v", tenantFlag, err)
	}
	return tenant
}

func migrateFunc(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	st, pool := openStore(ctx)
	defer pool.Close()

	if err := st.Migrate(ctx); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Info("Schema applied")
}

func processFunc(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	st, pool := openStore(ctx)
	defer pool.Close()

	expected := models.DocTypeUnknown
	switch typeFlag {
	case "receipt":
		expected = models.DocTypeReceipt
	case "statement":
		expected = models.DocTypeBankStatement
	case "", "auto":
	default:
		log.Fatalf("Unknown document type %q (receipt, statement or auto)", typeFlag)
	}

	var ai llm.Extractor
	if cfg.AI.Enabled {
		ai = llm.NewGeminiExtractor(cfg.AI.APIKey, cfg.AI.Model,
			time.Duration(cfg.AI.TimeoutSeconds)*time.Second, nil)
	}

	processor := pipeline.New(st,
		pdfextractor.NewPdftotextExtractor(cfg.Extraction.PdftotextPath),
		docparser.NewChain(nil), ai, nil)

	out, err := processor.Process(ctx, pipeline.Request{
		TenantID:        parseTenant(),
		FilePath:        fileFlag,
		ExpectedType:    expected,
		Password:        passwordFlag,
		CompetenceMonth: monthFlag,
		CompetenceYear:  yearFlag,
	})
	if err != nil {
		log.Fatalf("Processing failed: %v", err)
	}
	doc := out.Document
	log.Infof("Document %s finished with status %s (%s), %d transactions extracted",
		doc.ID, doc.Status, doc.IngestionMethod, out.TransactionsExtracted)
}

func reconcileFunc(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	st, pool := openStore(ctx)
	defer pool.Close()

	r, err := reconcile.New(st, cfg, nil)
	if err != nil {
		log.Fatalf("Reconciler setup failed: %v", err)
	}
	result, err := r.Run(ctx, parseTenant())
	if err != nil {
		log.Fatalf("Reconciliation failed: %v", err)
	}
	log.Infof("Processed %d transactions, matched %d, skipped %d ambiguous",
		result.TransactionsProcessed, result.MatchesFound, result.AmbiguousSkipped)
}

func linkFunc(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	st, pool := openStore(ctx)
	defer pool.Close()

	transactionID, err := uuid.Parse(transactionFlag)
	if err != nil {
		log.Fatalf("Invalid transaction id: %v", err)
	}
	receiptID, err := uuid.Parse(receiptFlag)
	if err != nil {
		log.Fatalf("Invalid receipt id: %v", err)
	}

	r, err := reconcile.New(st, cfg, nil)
	if err != nil {
		log.Fatalf("Reconciler setup failed: %v", err)
	}
	if err := r.ManualLink(ctx, parseTenant(), transactionID, receiptID); err != nil {
		log.Fatalf("Manual link failed: %v", err)
	}
	log.Info("Transaction linked")
}

func analyzeFunc(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	st, pool := openStore(ctx)
	defer pool.Close()

	if cfg.AI.APIKey == "" {
		log.Fatal("GEMINI_API_KEY is required for tax analysis")
	}
	classifier := tax.NewGeminiClassifier(cfg.AI.APIKey, cfg.AI.Model)
	analyzer := tax.NewAnalyzer(st, classifier,
		time.Duration(cfg.Tax.ThrottleSeconds)*time.Second, nil)

	result, err := analyzer.RunBatch(ctx, parseTenant())
	if err != nil {
		log.Fatalf("Tax analysis failed: %v", err)
	}
	log.Infof("Analyzed %d transactions, skipped %d, failed %d",
		result.Analyzed, result.Skipped, result.Failed)
}

func reportFunc(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	st, pool := openStore(ctx)
	defer pool.Close()

	out := os.Stdout
	if outputFlag != "" {
		file, err := os.Create(outputFlag)
		if err != nil {
			log.Fatalf("Cannot create output file: %v", err)
		}
		defer func() {
			if err := file.Close(); err != nil {
				log.Warnf("Failed to close output file: %v", err)
			}
		}()
		out = file
	}

	exporter := report.NewExporter(st, nil)
	if err := exporter.WriteCSV(ctx, parseTenant(), out); err != nil {
		log.Fatalf("Report export failed: %v", err)
	}
}

func init() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(reportCmd)

	rootCmd.PersistentFlags().StringVarP(&tenantFlag, "tenant", "t", "", "Tenant UUID (required)")

	processCmd.Flags().StringVarP(&fileFlag, "file", "i", "", "Input file: PDF, CSV or NF-e XML (required)")
	processCmd.Flags().StringVar(&typeFlag, "type", "auto", "Document type: receipt, statement or auto")
	processCmd.Flags().StringVar(&passwordFlag, "password", "", "Password for encrypted PDFs")
	processCmd.Flags().IntVar(&monthFlag, "month", 0, "Competence month override (1-12)")
	processCmd.Flags().IntVar(&yearFlag, "year", 0, "Competence year override")
	_ = processCmd.MarkFlagRequired("file")

	linkCmd.Flags().StringVar(&transactionFlag, "transaction", "", "Transaction UUID (required)")
	linkCmd.Flags().StringVar(&receiptFlag, "receipt", "", "Receipt document UUID (required)")
	_ = linkCmd.MarkFlagRequired("transaction")
	_ = linkCmd.MarkFlagRequired("receipt")

	reportCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output CSV file (default stdout)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

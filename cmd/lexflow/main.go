package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lexflow/internal/audit"
	"lexflow/internal/catalog"
	"lexflow/internal/classify"
	"lexflow/internal/config"
	"lexflow/internal/pipeline"
)

var (
	rootCmd = &cobra.Command{
		Use:   "lexflow",
		Short: "Detection core for the legal drafting pipeline",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zcfg := zap.NewProductionConfig()
			if verbose {
				zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = zcfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	logger     *zap.Logger
	verbose    bool
	configPath string
	rulesPath  string
	dbPath     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration YAML")
	rootCmd.PersistentFlags().StringVarP(&rulesPath, "rules", "r", "rules.json", "Path to the module rules JSON")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the audit database (optional)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(auditCmd)
}

// loadSnapshot loads config plus rules and builds the validated snapshot.
func loadSnapshot() (*catalog.Snapshot, *config.File, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	modules, err := config.LoadRules(rulesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}
	snap, stages, err := config.Build(cfg, modules)
	if err != nil {
		for _, s := range stages {
			if s.Err != nil {
				fmt.Fprintf(os.Stderr, "validation stage %s: %v\n", s.Validator, s.Err)
			}
		}
		return nil, nil, err
	}
	return snap, cfg, nil
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and module rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, _, err := loadSnapshot()
		if err != nil {
			return err
		}
		fmt.Printf("configuration valid: %d categories, %d variables, %d modules\n",
			len(snap.Categories), len(snap.Variables), len(snap.Modules))
		return nil
	},
}

var (
	docsDir    string
	outputType string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full detection flow over a directory of documents",
	Long: `Classifies every .txt document under --docs, selects source documents
for the target output type, reads extracted values from <id>.values.json
sidecar files and evaluates module activation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, cfg, err := loadSnapshot()
		if err != nil {
			return err
		}

		docs, err := loadDocuments(docsDir)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return fmt.Errorf("no documents found under %s", docsDir)
		}

		capability, err := classify.NewGeminiCapability(cmd.Context(), cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			return err
		}

		p := pipeline.New(snap, capability, &pipeline.FileExtractor{Root: docsDir}, logger)
		report, err := p.Run(cmd.Context(), docs, outputType)
		if err != nil {
			return err
		}

		printReport(report)

		if dbPath != "" {
			if err := saveReport(cmd.Context(), report); err != nil {
				return fmt.Errorf("failed to save audit trail: %w", err)
			}
		}
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent runs from the audit database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dbPath == "" {
			return fmt.Errorf("--db is required for audit")
		}
		store, err := audit.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.RecentRuns(cmd.Context(), 20)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  output=%s  fallbacks=%d  active=%d\n",
				r.StartedAt, r.RunID, r.OutputType, r.Fallbacks, r.ActiveModules)
			fallbacks, err := store.FallbackDecisions(cmd.Context(), r.RunID)
			if err != nil {
				return err
			}
			for _, line := range fallbacks {
				fmt.Printf("    fallback: %s\n", line)
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&docsDir, "docs", "documents", "Directory with input documents")
	runCmd.Flags().StringVar(&outputType, "output-type", "", "Target output type (must exist in priorities)")
	_ = runCmd.MarkFlagRequired("output-type")
}

// loadDocuments reads every .txt file as one document; the file stem is the
// document id and submission order follows the sorted file names.
func loadDocuments(dir string) ([]classify.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]classify.Document, 0, len(names))
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		docs = append(docs, classify.Document{
			ID:      strings.TrimSuffix(name, ".txt"),
			Content: string(content),
		})
	}
	return docs, nil
}

func printReport(report *pipeline.Report) {
	fmt.Printf("run %s (%s)\n", report.RunID, report.OutputType)
	fmt.Printf("  documents classified: %d (fallbacks: %d)\n", len(report.Decisions), report.FallbacksApplied)
	for _, a := range report.Assignments {
		fmt.Printf("  %-10s rank=%d  %s\n", a.Role, a.Rank, a.DocumentID)
	}
	for docID, msg := range report.DocumentErrors {
		fmt.Printf("  error %s: %s\n", docID, msg)
	}
	for _, w := range report.ValueWarnings {
		fmt.Printf("  warning %s: %v\n", w.Slug, w.Err)
	}
	fmt.Printf("  modules active: %d/%d\n", report.ActiveModules, len(report.Activations))
	for _, act := range report.Activations {
		line, _ := json.Marshal(act)
		fmt.Printf("    %s\n", line)
	}
}

func saveReport(ctx context.Context, report *pipeline.Report) error {
	store, err := audit.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(ctx, report)
}

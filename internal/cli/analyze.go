package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/document-task-extractor/internal/analyzer"
	"github.com/BerylCAtieno/document-task-extractor/internal/config"
	"github.com/BerylCAtieno/document-task-extractor/internal/extractor"
	"github.com/BerylCAtieno/document-task-extractor/internal/llm"
	"github.com/BerylCAtieno/document-task-extractor/internal/models"
	"github.com/BerylCAtieno/document-task-extractor/internal/utils"
)

var (
	analyzePretty   bool
	analyzeLogLevel string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a document and print the task list as JSON",
	Long: `Extract the text of a local PDF, DOCX or TXT file, run the full analysis
pipeline against the configured model and print the result as JSON.

Configuration is read from the same environment variables as the server.
OPENROUTER_API_KEY is required.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzePretty, "pretty", false, "Indent the JSON output")
	analyzeCmd.Flags().StringVar(&analyzeLogLevel, "log-level", "warn", "Log level for progress written to stderr")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	text, fileName, err := readDocument(args[0])
	if err != nil {
		return err
	}

	logger := utils.NewWriterLogger(cmd.ErrOrStderr(), analyzeLogLevel)
	pipelineCfg := cfg.Pipeline()
	client := llm.NewOpenRouterClient(llm.NewClientConfig(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, pipelineCfg), logger, nil)

	result := analyzer.NewPipeline(pipelineCfg, client, logger, nil).AnalyzeDocument(cmd.Context(), text, fileName)
	if err := writeResult(cmd.OutOrStdout(), result, analyzePretty); err != nil {
		return err
	}

	if result.AnalysisOutcome == models.OutcomeFailure {
		return fmt.Errorf("analysis failed: %s", result.OutcomeMessage)
	}
	return nil
}

func readDocument(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	text, _, err := extractor.Extract(data, path)
	if err != nil {
		return "", "", fmt.Errorf("failed to extract text from %s: %w", path, err)
	}
	return text, filepath.Base(path), nil
}

func writeResult(w io.Writer, result models.AnalysisResult, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

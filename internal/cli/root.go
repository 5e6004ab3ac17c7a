package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "taskextract",
	Short:         "Extract actionable tasks from documents",
	Long:          `taskextract turns PDF, DOCX and plain text documents into grouped, prioritized task lists using an OpenAI-compatible model endpoint.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(previewCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

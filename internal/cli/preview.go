package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/document-task-extractor/internal/chunker"
	"github.com/BerylCAtieno/document-task-extractor/internal/config"
	"github.com/BerylCAtieno/document-task-extractor/internal/preprocess"
)

const previewSnippetLength = 60

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Show the detected document type and chunk layout",
	Long:  `Extract and clean a document, then print how it would be classified and chunked. No model is called.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func runPreview(cmd *cobra.Command, args []string) error {
	text, fileName, err := readDocument(args[0])
	if err != nil {
		return err
	}
	return writePreview(cmd.OutOrStdout(), fileName, text, config.FromEnv().Pipeline())
}

func writePreview(w io.Writer, fileName, text string, cfg config.PipelineConfig) error {
	pre := preprocess.Process(text)
	content := pre.Content
	truncated := false
	if cfg.MaxInputLength > 0 && len(content) > cfg.MaxInputLength {
		cut := cfg.MaxInputLength
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
		truncated = true
	}

	split := chunker.Split(content, chunker.Options{
		MaxChunkSize: cfg.ChunkSize,
		Overlap:      cfg.ChunkOverlap,
		MaxChunks:    cfg.MaxChunks,
	})

	fmt.Fprintf(w, "File:          %s\n", fileName)
	fmt.Fprintf(w, "Document type: %s\n", pre.DocumentType)
	fmt.Fprintf(w, "Characters:    %d (raw %d)\n", len(content), len(text))
	fmt.Fprintf(w, "Chunks:        %d\n", len(split.Chunks))
	if truncated || split.Truncated {
		fmt.Fprintln(w, "Truncated:     yes")
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHUNK\tSIZE\tSTARTS WITH")
	for _, c := range split.Chunks {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", c.Index+1, len(c.Content), snippet(c.Content))
	}
	return tw.Flush()
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= previewSnippetLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:previewSnippetLength]) + "..."
}

package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/tyler-sommer/stick"

	"github.com/BerylCAtieno/document-task-extractor/internal/config"
	"github.com/BerylCAtieno/document-task-extractor/internal/llm"
	"github.com/BerylCAtieno/document-task-extractor/internal/models"
	"github.com/BerylCAtieno/document-task-extractor/internal/parser"
	"github.com/BerylCAtieno/document-task-extractor/internal/utils"
)

type summarizer struct {
	client  llm.ModelClient
	prompts *Prompts
	budget  config.StageBudget
	logger  *utils.Logger
}

func (s *summarizer) summarize(ctx context.Context, groups []models.TaskGroup, docType models.DocumentType, fileName string) (models.AnalysisSummary, int) {
	var list strings.Builder
	for _, g := range groups {
		fmt.Fprintf(&list, "%s:\n", g.Name)
		for _, t := range g.Tasks {
			fmt.Fprintf(&list, "- %s (priority: %s)\n", utils.Truncate(t.Content, taskPreviewLength), t.Priority)
		}
	}

	prompt, err := s.prompts.stage(StageSummary, map[string]stick.Value{
		"documentLabel": documentLabel(docType),
		"fileName":      fileName,
		"groupList":     list.String(),
	})
	if err != nil {
		s.logger.Error("Failed to render summary prompt", "error", err)
		return DefaultSummary(), 0
	}

	completion, err := s.client.Complete(ctx, prompt, llm.CallOptions{
		Stage:       StageSummary,
		Temperature: s.budget.Temperature,
		MaxTokens:   s.budget.MaxTokens,
		Timeout:     s.budget.Timeout,
	})
	if err != nil {
		s.logger.Warn("Summary failed, using default summary", "error", err)
		return DefaultSummary(), 0
	}
	tokens := completion.TotalTokens()

	res := parser.Parse[summaryResponse](completion.Content)
	if !res.Ok() {
		s.logger.Warn("Discarding unusable summary output",
			"error", res.Err,
			"output", utils.Truncate(completion.Content, 200))
		return DefaultSummary(), tokens
	}

	return res.Value.toSummary(), tokens
}

// DefaultSummary stands in whenever the model could not produce one.
func DefaultSummary() models.AnalysisSummary {
	return models.AnalysisSummary{
		ProjectDescription: "Tasks were extracted from the document, but a summary could not be generated.",
		Milestones:         []string{},
		Resources:          []string{},
		Risks:              []string{},
		Recommendations:    []string{"Review the extracted tasks and adjust priorities and deadlines as needed."},
	}
}

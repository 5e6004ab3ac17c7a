package analyzer

import (
	"context"
	"fmt"

	"github.com/tyler-sommer/stick"

	"github.com/BerylCAtieno/document-task-extractor/internal/config"
	"github.com/BerylCAtieno/document-task-extractor/internal/llm"
	"github.com/BerylCAtieno/document-task-extractor/internal/models"
	"github.com/BerylCAtieno/document-task-extractor/internal/parser"
	"github.com/BerylCAtieno/document-task-extractor/internal/utils"
)

const (
	StageExtraction     = "extraction"
	StageCategorization = "categorization"
	StageSummary        = "summary"
)

// chunkOutcome is what one chunk contributed. CallErr is set when the model
// was never heard from; ParseErr when it answered with nothing usable.
type chunkOutcome struct {
	Tasks    []models.RawTaskRecord
	Tokens   int
	CallErr  error
	ParseErr error
}

type extractor struct {
	client  llm.ModelClient
	prompts *Prompts
	budget  config.StageBudget
	logger  *utils.Logger
}

func (e *extractor) extract(ctx context.Context, chunk models.TextChunk, chunkCount int, docType models.DocumentType, fileName string) chunkOutcome {
	prompt, err := e.prompts.stage(StageExtraction, map[string]stick.Value{
		"documentLabel": documentLabel(docType),
		"focus":         documentFocus[docType],
		"fileName":      fileName,
		"chunkNumber":   chunk.Index + 1,
		"chunkCount":    chunkCount,
		"isFirst":       chunk.IsFirst,
		"content":       chunk.Content,
	})
	if err != nil {
		return chunkOutcome{CallErr: fmt.Errorf("render extraction prompt: %w", err)}
	}

	completion, err := e.client.Complete(ctx, prompt, llm.CallOptions{
		Stage:       StageExtraction,
		Temperature: e.budget.Temperature,
		MaxTokens:   e.budget.MaxTokens,
		Timeout:     e.budget.Timeout,
	})
	if err != nil {
		return chunkOutcome{CallErr: err}
	}

	out := chunkOutcome{Tokens: completion.TotalTokens()}
	res := parser.Parse[extractionResponse](completion.Content)
	if !res.Ok() {
		e.logger.Warn("Discarding unusable extraction output",
			"chunk", chunk.Index,
			"error", res.Err,
			"output", utils.Truncate(completion.Content, 200))
		out.ParseErr = res.Err
		return out
	}

	out.Tasks = res.Value.Tasks
	return out
}

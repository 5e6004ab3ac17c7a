package analyzer

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BerylCAtieno/document-task-extractor/internal/chunker"
	"github.com/BerylCAtieno/document-task-extractor/internal/config"
	"github.com/BerylCAtieno/document-task-extractor/internal/llm"
	"github.com/BerylCAtieno/document-task-extractor/internal/merger"
	"github.com/BerylCAtieno/document-task-extractor/internal/metrics"
	"github.com/BerylCAtieno/document-task-extractor/internal/models"
	"github.com/BerylCAtieno/document-task-extractor/internal/preprocess"
	"github.com/BerylCAtieno/document-task-extractor/internal/utils"
)

type pipelineState string

const (
	statePreprocessing pipelineState = "preprocessing"
	stateLengthCheck   pipelineState = "length_check"
	stateChunking      pipelineState = "chunking"
	stateExtracting    pipelineState = "extracting"
	stateMerging       pipelineState = "merging"
	stateMinimumTasks  pipelineState = "minimum_task_guarantee"
	stateCategorizing  pipelineState = "categorizing"
	stateSummarizing   pipelineState = "summarizing"
	stateAssembling    pipelineState = "assembling"
	stateDone          pipelineState = "done"
	stateFallbackDone  pipelineState = "fallback_done"
)

const maxOutcomeMessageLen = 300

// Analyzer turns document text into an AnalysisResult. Implementations never
// fail; degraded runs are reported through AnalysisOutcome.
type Analyzer interface {
	AnalyzeDocument(ctx context.Context, content, fileName string) models.AnalysisResult
}

type Pipeline struct {
	cfg     config.PipelineConfig
	logger  *utils.Logger
	metrics *metrics.Metrics

	extractor   *extractor
	categorizer *categorizer
	summarizer  *summarizer

	now func() time.Time
}

func NewPipeline(cfg config.PipelineConfig, client llm.ModelClient, logger *utils.Logger, m *metrics.Metrics) *Pipeline {
	prompts := DefaultPrompts()

	return &Pipeline{
		cfg:         cfg,
		logger:      logger,
		metrics:     m,
		extractor:   &extractor{client: client, prompts: prompts, budget: cfg.Extraction, logger: logger},
		categorizer: &categorizer{client: client, prompts: prompts, budget: cfg.Categorization, logger: logger},
		summarizer:  &summarizer{client: client, prompts: prompts, budget: cfg.Summary, logger: logger},
		now:         time.Now,
	}
}

// AnalyzeDocument runs the full pipeline. Chunks are extracted one at a time;
// a failed chunk contributes nothing and the run continues. If no extraction
// call succeeds at all, or anything panics, the result is tagged failure.
func (p *Pipeline) AnalyzeDocument(ctx context.Context, content, fileName string) (result models.AnalysisResult) {
	start := p.now()
	docType := models.DocumentTypeGeneralDocument
	var stats models.ProcessingStats

	state := statePreprocessing
	enter := func(s pipelineState) {
		state = s
		p.logger.Debug("Pipeline state", "state", string(s), "file", fileName)
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Analysis pipeline panicked",
				"state", string(state),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
			result = p.failureResult(fileName, docType, stats, start,
				fmt.Sprintf("Unexpected error during %s: %v", state, r))
		}
		p.metrics.ObserveRun(string(result.AnalysisOutcome))
		p.logger.Info("Document analysis finished",
			"file", fileName,
			"outcome", string(result.AnalysisOutcome),
			"total_tasks", result.TotalTasks,
			"tokens", result.ProcessingStats.TokensUsed,
			"duration_ms", result.ProcessingStats.ProcessingTimeMs)
	}()

	enter(statePreprocessing)
	pre := preprocess.Process(content)
	docType = pre.DocumentType
	text := pre.Content
	if p.cfg.MaxInputLength > 0 && len(text) > p.cfg.MaxInputLength {
		text = cutAtRune(text, p.cfg.MaxInputLength)
		stats.Truncated = true
		p.logger.Warn("Input exceeds maximum length, truncating",
			"file", fileName,
			"max_length", p.cfg.MaxInputLength)
	}

	enter(stateLengthCheck)
	if len(strings.TrimSpace(text)) < p.cfg.MinContentLength {
		enter(stateFallbackDone)
		return p.fallbackResult(fileName, docType, stats, start,
			"The document does not contain enough text to analyze.")
	}

	enter(stateChunking)
	split := chunker.Split(text, chunker.Options{
		MaxChunkSize: p.cfg.ChunkSize,
		Overlap:      p.cfg.ChunkOverlap,
		MaxChunks:    p.cfg.MaxChunks,
	})
	stats.ChunksTotal = len(split.Chunks)
	stats.Truncated = stats.Truncated || split.Truncated
	if split.Truncated {
		p.logger.Warn("Document exceeds maximum chunk count, remaining text skipped",
			"file", fileName,
			"max_chunks", p.cfg.MaxChunks)
	}
	if len(split.Chunks) == 0 {
		enter(stateFallbackDone)
		return p.fallbackResult(fileName, docType, stats, start,
			"The document does not contain enough text to analyze.")
	}

	enter(stateExtracting)
	var records []models.RawTaskRecord
	var lastCallErr error
	answered := 0
	for _, chunk := range split.Chunks {
		out := p.extractor.extract(ctx, chunk, len(split.Chunks), docType, fileName)
		stats.TokensUsed += out.Tokens

		if out.CallErr != nil || out.ParseErr != nil {
			stats.ChunksFailed++
			p.metrics.ObserveChunk(false)
		} else {
			p.metrics.ObserveChunk(true)
		}
		if out.CallErr != nil {
			lastCallErr = out.CallErr
			p.logger.Warn("Chunk extraction failed, continuing",
				"chunk", chunk.Index,
				"error", out.CallErr)
			continue
		}
		answered++

		p.logger.Debug("Chunk extracted", "chunk", chunk.Index, "tasks", len(out.Tasks))
		records = append(records, out.Tasks...)
	}

	if answered == 0 {
		enter(stateFallbackDone)
		return p.failureResult(fileName, docType, stats, start,
			fmt.Sprintf("All %d extraction calls failed: %v", len(split.Chunks), lastCallErr))
	}

	enter(stateMerging)
	merged := merger.Merge(records)

	enter(stateMinimumTasks)
	merged, injected := merger.EnsureMinimum(merged)
	tasks := buildTasks(merged, p.now())

	enter(stateCategorizing)
	groups, tokens := p.categorizer.categorize(ctx, tasks, docType)
	stats.TokensUsed += tokens

	enter(stateSummarizing)
	summary, tokens := p.summarizer.summarize(ctx, groups, docType, fileName)
	stats.TokensUsed += tokens

	enter(stateAssembling)
	outcome := models.OutcomeSuccess
	message := fmt.Sprintf("Extracted %d tasks from %d chunk(s).", len(tasks), stats.ChunksTotal)
	if injected {
		outcome = models.OutcomeNoTasksFound
		message = "No actionable tasks were found in the document."
	}
	if stats.ChunksFailed > 0 {
		message += fmt.Sprintf(" %d of %d chunk(s) could not be processed.", stats.ChunksFailed, stats.ChunksTotal)
	}
	if stats.Truncated {
		message += " The document was truncated before analysis."
	}

	result = p.assemble(groups, summary, fileName, docType, stats, start, outcome, message)
	enter(stateDone)
	return result
}

func (p *Pipeline) assemble(groups []models.TaskGroup, summary models.AnalysisSummary, fileName string, docType models.DocumentType, stats models.ProcessingStats, start time.Time, outcome models.AnalysisOutcome, message string) models.AnalysisResult {
	now := p.now()
	stats.ProcessingTimeMs = now.Sub(start).Milliseconds()

	return models.AnalysisResult{
		TotalTasks:      models.CountTasks(groups),
		Groups:          groups,
		Summary:         summary,
		FileName:        fileName,
		DocumentType:    docType,
		ProcessedAt:     now,
		ProcessingStats: stats,
		AnalysisOutcome: outcome,
		OutcomeMessage:  message,
	}
}

// fallbackResult is the no_tasks_found result produced without calling the model.
func (p *Pipeline) fallbackResult(fileName string, docType models.DocumentType, stats models.ProcessingStats, start time.Time, message string) models.AnalysisResult {
	tasks := buildTasks([]models.RawTaskRecord{merger.FallbackTask()}, p.now())
	summary := DefaultSummary()
	summary.ProjectDescription = "The document did not contain enough content to extract tasks from."

	return p.assemble(defaultGroups(tasks), summary, fileName, docType, stats, start, models.OutcomeNoTasksFound, message)
}

func (p *Pipeline) failureResult(fileName string, docType models.DocumentType, stats models.ProcessingStats, start time.Time, message string) models.AnalysisResult {
	message = utils.Truncate(message, maxOutcomeMessageLen)
	tasks := buildTasks([]models.RawTaskRecord{merger.FallbackTask()}, p.now())
	summary := DefaultSummary()
	summary.ProjectDescription = "The document could not be analyzed."
	summary.Recommendations = []string{message}

	return p.assemble(defaultGroups(tasks), summary, fileName, docType, stats, start, models.OutcomeFailure, message)
}

// buildTasks assigns ids task-1..task-N in order, with subtasks one level deep
// as task-N-sub-M.
func buildTasks(records []models.RawTaskRecord, createdAt time.Time) []models.Task {
	tasks := make([]models.Task, 0, len(records))
	for i, rec := range records {
		id := fmt.Sprintf("task-%d", i+1)
		task := newTask(rec, id, createdAt)

		for _, sub := range rec.Subtasks {
			if strings.TrimSpace(sub.Content) == "" {
				continue
			}
			subID := fmt.Sprintf("%s-sub-%d", id, len(task.Subtasks)+1)
			task.Subtasks = append(task.Subtasks, newTask(sub, subID, createdAt))
		}
		tasks = append(tasks, task)
	}
	return tasks
}

func newTask(rec models.RawTaskRecord, id string, createdAt time.Time) models.Task {
	status := rec.Status.Normalize()
	return models.Task{
		ID:            id,
		Content:       strings.TrimSpace(rec.Content),
		Priority:      rec.Priority.Normalize(),
		Status:        status,
		EstimatedTime: max(rec.EstimatedTime, 0),
		Deadline:      strings.TrimSpace(rec.Deadline),
		Assignee:      strings.TrimSpace(rec.Assignee),
		Tags:          nonNil(rec.Tags),
		Dependencies:  nonNil(rec.Dependencies),
		Completed:     status == models.TaskStatusDone,
		CreatedAt:     createdAt,
	}
}

// cutAtRune shortens s to at most n bytes without splitting a UTF-8 sequence.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

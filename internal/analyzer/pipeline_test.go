package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/document-task-extractor/internal/config"
	"github.com/BerylCAtieno/document-task-extractor/internal/llm"
	"github.com/BerylCAtieno/document-task-extractor/internal/merger"
	"github.com/BerylCAtieno/document-task-extractor/internal/models"
	"github.com/BerylCAtieno/document-task-extractor/internal/utils"
)

// scriptedClient answers each stage with a canned reply. Stages without a
// script fail as if the endpoint had timed out.
type scriptedClient struct {
	mu      sync.Mutex
	calls   []llm.CallOptions
	prompts []llm.Prompt
	scripts map[string]func(call int, prompt llm.Prompt) (string, error)
}

func (c *scriptedClient) Complete(ctx context.Context, prompt llm.Prompt, opts llm.CallOptions) (*llm.Completion, error) {
	c.mu.Lock()
	c.calls = append(c.calls, opts)
	c.prompts = append(c.prompts, prompt)
	n := 0
	for _, call := range c.calls {
		if call.Stage == opts.Stage {
			n++
		}
	}
	c.mu.Unlock()

	script, ok := c.scripts[opts.Stage]
	if !ok {
		return nil, &llm.ModelCallFailed{Stage: opts.Stage, Attempts: 3, Err: context.DeadlineExceeded}
	}
	content, err := script(n, prompt)
	if err != nil {
		return nil, err
	}
	return &llm.Completion{Content: content, Usage: &llm.Usage{TotalTokens: 10}}, nil
}

func (c *scriptedClient) stageCalls(stage string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.Stage == stage {
			n++
		}
	}
	return n
}

func reply(s string) func(int, llm.Prompt) (string, error) {
	return func(int, llm.Prompt) (string, error) { return s, nil }
}

func testPipelineConfig() config.PipelineConfig {
	cfg := config.DefaultPipelineConfig()
	cfg.ThrottleDelay = 0
	return cfg
}

func newTestPipeline(cfg config.PipelineConfig, client llm.ModelClient) *Pipeline {
	return NewPipeline(cfg, client, utils.NewTestLogger(io.Discard), nil)
}

func assertWellFormed(t *testing.T, result models.AnalysisResult) {
	t.Helper()
	require.NotEmpty(t, result.Groups)
	assert.GreaterOrEqual(t, result.TotalTasks, 1)
	assert.Equal(t, models.CountTasks(result.Groups), result.TotalTasks)
	assert.NotEmpty(t, result.Summary.ProjectDescription)
	assert.NotEmpty(t, result.AnalysisOutcome)

	seen := map[string]bool{}
	for _, g := range result.Groups {
		assert.NotEmpty(t, g.Tasks, "group %s is empty", g.ID)
		for _, task := range g.Tasks {
			assert.False(t, seen[task.ID], "task %s appears in more than one group", task.ID)
			seen[task.ID] = true
		}
	}
}

const meetingNotes = `Weekly sync notes.

Alice will send the revised budget to finance by Friday. Bob needs to book the venue for the offsite.
Everyone should review the onboarding checklist before next week.`

func TestAnalyzeDocument_Success(t *testing.T) {
	client := &scriptedClient{scripts: map[string]func(int, llm.Prompt) (string, error){
		StageExtraction: reply("Here is the JSON:\n```json\n" + `{"tasks":[
			{"content":"Send revised budget to finance","priority":"high","status":"todo","estimatedTime":"1h","assignee":"Alice","tags":["finance"],"subtasks":["Collect receipts"]},
			{"content":"Book the offsite venue","priority":"medium","tags":["events"]},
			{"content":"send revised budget to finance!","priority":"critical","tags":["deadline"]}
		]}` + "\n```"),
		StageCategorization: reply(`{"categories":[
			{"name":"Finance","description":"Money matters","taskIds":["task-1"]},
			{"name":"Events","taskIds":["task-2"]}
		]}`),
		StageSummary: reply(`{"projectDescription":"Preparing for the offsite.","milestones":["Budget sent"],"risks":[]}`),
	}}

	result := newTestPipeline(testPipelineConfig(), client).AnalyzeDocument(context.Background(), meetingNotes, "notes.txt")

	assertWellFormed(t, result)
	assert.Equal(t, models.OutcomeSuccess, result.AnalysisOutcome)
	assert.Equal(t, "notes.txt", result.FileName)
	assert.Equal(t, 2, result.TotalTasks)
	require.Len(t, result.Groups, 2)

	budget := result.Groups[0].Tasks[0]
	assert.Equal(t, "task-1", budget.ID)
	assert.Equal(t, models.PriorityCritical, budget.Priority)
	assert.Equal(t, models.EstimatedTime(60), budget.EstimatedTime)
	assert.ElementsMatch(t, []string{"finance", "deadline"}, budget.Tags)
	require.Len(t, budget.Subtasks, 1)
	assert.Equal(t, "task-1-sub-1", budget.Subtasks[0].ID)
	assert.False(t, budget.Completed)
	assert.False(t, budget.CreatedAt.IsZero())

	assert.Equal(t, "Preparing for the offsite.", result.Summary.ProjectDescription)
	assert.Equal(t, []string{"Budget sent"}, result.Summary.Milestones)
	assert.NotNil(t, result.Summary.Resources)

	assert.Equal(t, 30, result.ProcessingStats.TokensUsed)
	assert.Equal(t, 1, result.ProcessingStats.ChunksTotal)
	assert.Zero(t, result.ProcessingStats.ChunksFailed)
	assert.False(t, result.ProcessedAt.IsZero())

	assert.Equal(t, 1, client.stageCalls(StageExtraction))
	assert.Equal(t, 1, client.stageCalls(StageCategorization))
	assert.Equal(t, 1, client.stageCalls(StageSummary))
}

func TestAnalyzeDocument_EmptyInputMakesNoCalls(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t\n", "short"} {
		client := &scriptedClient{}
		result := newTestPipeline(testPipelineConfig(), client).AnalyzeDocument(context.Background(), input, "")

		assertWellFormed(t, result)
		assert.Equal(t, models.OutcomeNoTasksFound, result.AnalysisOutcome)
		assert.Equal(t, 1, result.TotalTasks)
		assert.Equal(t, merger.FallbackContent, result.Groups[0].Tasks[0].Content)
		assert.NotEmpty(t, result.OutcomeMessage)
		assert.Empty(t, client.calls, "input %q should not reach the model", input)
	}
}

func TestAnalyzeDocument_CategorizerDanglingReference(t *testing.T) {
	client := &scriptedClient{scripts: map[string]func(int, llm.Prompt) (string, error){
		StageExtraction: reply(`{"tasks":[
			{"content":"One"},{"content":"Two"},{"content":"Three"},{"content":"Four"},{"content":"Five"}
		]}`),
		StageCategorization: reply(`{"categories":[
			{"name":"First","taskIds":["task-1","task-99","task-2"]},
			{"name":"Second","taskIds":["task-3","task-1"]},
			{"name":"Ghosts","taskIds":["task-99"]},
			{"name":"","taskIds":["task-4"]},
			"not an object"
		]}`),
		StageSummary: reply(`{"projectDescription":"Five things."}`),
	}}

	result := newTestPipeline(testPipelineConfig(), client).AnalyzeDocument(context.Background(), meetingNotes, "")

	assertWellFormed(t, result)
	assert.Equal(t, models.OutcomeSuccess, result.AnalysisOutcome)
	assert.Equal(t, 5, result.TotalTasks)

	ids := map[string]string{}
	for _, g := range result.Groups {
		for _, task := range g.Tasks {
			ids[task.ID] = g.Name
		}
	}
	assert.Equal(t, map[string]string{
		"task-1": "First",
		"task-2": "First",
		"task-3": "Second",
		"task-4": "Uncategorized",
		"task-5": "Uncategorized",
	}, ids)
	assert.Equal(t, "Uncategorized", result.Groups[len(result.Groups)-1].Name)
}

func TestAnalyzeDocument_MalformedLaterStagesDegrade(t *testing.T) {
	client := &scriptedClient{scripts: map[string]func(int, llm.Prompt) (string, error){
		StageExtraction:     reply(`{"tasks":[{"content":"Review contract"},{"content":"Sign contract"}]}`),
		StageCategorization: reply("I grouped them nicely for you."),
		StageSummary:        reply(`{"milestones":["no description"]}`),
	}}

	result := newTestPipeline(testPipelineConfig(), client).AnalyzeDocument(context.Background(), meetingNotes, "")

	assertWellFormed(t, result)
	assert.Equal(t, models.OutcomeSuccess, result.AnalysisOutcome)
	require.Len(t, result.Groups, 1)
	assert.Len(t, result.Groups[0].Tasks, 2)
	assert.Equal(t, DefaultSummary(), result.Summary)
}

func TestAnalyzeDocument_LaterStageCallFailuresDegrade(t *testing.T) {
	client := &scriptedClient{scripts: map[string]func(int, llm.Prompt) (string, error){
		StageExtraction: reply(`{"tasks":[{"content":"Review contract"}]}`),
	}}

	result := newTestPipeline(testPipelineConfig(), client).AnalyzeDocument(context.Background(), meetingNotes, "")

	assertWellFormed(t, result)
	assert.Equal(t, models.OutcomeSuccess, result.AnalysisOutcome)
	assert.Equal(t, DefaultSummary(), result.Summary)
	assert.Equal(t, 10, result.ProcessingStats.TokensUsed)
}

func TestAnalyzeDocument_NoTasksFound(t *testing.T) {
	client := &scriptedClient{scripts: map[string]func(int, llm.Prompt) (string, error){
		StageExtraction:     reply(`{"tasks":[]}`),
		StageCategorization: reply(`{"categories":[{"name":"Follow-up","taskIds":["task-1"]}]}`),
		StageSummary:        reply(`{"projectDescription":"Nothing to do."}`),
	}}

	result := newTestPipeline(testPipelineConfig(), client).AnalyzeDocument(context.Background(), meetingNotes, "")

	assertWellFormed(t, result)
	assert.Equal(t, models.OutcomeNoTasksFound, result.AnalysisOutcome)
	assert.Equal(t, 1, result.TotalTasks)
	task := result.Groups[0].Tasks[0]
	assert.Equal(t, merger.FallbackContent, task.Content)
	assert.Equal(t, models.PriorityMedium, task.Priority)
	assert.Equal(t, models.TaskStatusTodo, task.Status)
}

func multiChunkText(paragraphs int) string {
	parts := make([]string, paragraphs)
	for i := range parts {
		parts[i] = fmt.Sprintf("Paragraph %d asks the team to follow up on item number %d before the deadline.", i+1, i+1)
	}
	return strings.Join(parts, "\n\n")
}

func TestAnalyzeDocument_FailedChunkDoesNotAbort(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.ChunkSize = 100

	client := &scriptedClient{scripts: map[string]func(int, llm.Prompt) (string, error){
		StageExtraction: func(call int, prompt llm.Prompt) (string, error) {
			switch call {
			case 2:
				return "", &llm.ModelCallFailed{Stage: StageExtraction, Attempts: 3, Err: errors.New("boom")}
			case 3:
				return "not json at all", nil
			}
			return fmt.Sprintf(`{"tasks":[{"content":"Follow up %d"}]}`, call), nil
		},
		StageCategorization: reply(`{"categories":[]}`),
		StageSummary:        reply(`{"projectDescription":"Follow-ups."}`),
	}}

	result := newTestPipeline(cfg, client).AnalyzeDocument(context.Background(), multiChunkText(4), "")

	assertWellFormed(t, result)
	assert.Equal(t, models.OutcomeSuccess, result.AnalysisOutcome)
	assert.Equal(t, 4, result.ProcessingStats.ChunksTotal)
	assert.Equal(t, 2, result.ProcessingStats.ChunksFailed)
	assert.Equal(t, 2, result.TotalTasks)
	assert.Contains(t, result.OutcomeMessage, "2 of 4")
	assert.Equal(t, 4, client.stageCalls(StageExtraction))
}

func TestAnalyzeDocument_MaxChunksTruncates(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.ChunkSize = 100
	cfg.MaxChunks = 2

	client := &scriptedClient{scripts: map[string]func(int, llm.Prompt) (string, error){
		StageExtraction:     reply(`{"tasks":[{"content":"Follow up"}]}`),
		StageCategorization: reply(`{"categories":[]}`),
		StageSummary:        reply(`{"projectDescription":"Follow-ups."}`),
	}}

	result := newTestPipeline(cfg, client).AnalyzeDocument(context.Background(), multiChunkText(6), "")

	assertWellFormed(t, result)
	assert.True(t, result.ProcessingStats.Truncated)
	assert.Equal(t, 2, result.ProcessingStats.ChunksTotal)
	assert.Equal(t, 2, client.stageCalls(StageExtraction))
	assert.Contains(t, result.OutcomeMessage, "truncated")
}

func TestAnalyzeDocument_FullOutage(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.ChunkSize = 100

	client := &scriptedClient{}
	result := newTestPipeline(cfg, client).AnalyzeDocument(context.Background(), multiChunkText(3), "outage.pdf")

	assertWellFormed(t, result)
	assert.Equal(t, models.OutcomeFailure, result.AnalysisOutcome)
	assert.NotEmpty(t, result.OutcomeMessage)
	assert.LessOrEqual(t, len(result.OutcomeMessage), maxOutcomeMessageLen)
	assert.Equal(t, []string{result.OutcomeMessage}, result.Summary.Recommendations)
	assert.Equal(t, 3, result.ProcessingStats.ChunksFailed)
	assert.Zero(t, client.stageCalls(StageCategorization))
	assert.Zero(t, client.stageCalls(StageSummary))
}

func TestAnalyzeDocument_FullOutageOverHTTP(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := testPipelineConfig()
	cfg.MaxRetries = 2
	cfg.BaseRetryDelay = time.Millisecond
	cfg.MaxRetryDelay = 5 * time.Millisecond
	cfg.Extraction.Timeout = 20 * time.Millisecond

	logger := utils.NewTestLogger(io.Discard)
	client := llm.NewOpenRouterClient(llm.NewClientConfig(srv.URL, "key", cfg), logger, nil)

	var result models.AnalysisResult
	require.NotPanics(t, func() {
		result = NewPipeline(cfg, client, logger, nil).AnalyzeDocument(context.Background(), meetingNotes, "")
	})

	assertWellFormed(t, result)
	assert.Equal(t, models.OutcomeFailure, result.AnalysisOutcome)
	assert.Contains(t, result.OutcomeMessage, "extraction")
	assert.Equal(t, int32(2), requests.Load())
}

type panickingClient struct{}

func (panickingClient) Complete(context.Context, llm.Prompt, llm.CallOptions) (*llm.Completion, error) {
	panic("nil map write")
}

func TestAnalyzeDocument_RecoversFromPanic(t *testing.T) {
	var result models.AnalysisResult
	require.NotPanics(t, func() {
		result = newTestPipeline(testPipelineConfig(), panickingClient{}).AnalyzeDocument(context.Background(), meetingNotes, "x.txt")
	})

	assertWellFormed(t, result)
	assert.Equal(t, models.OutcomeFailure, result.AnalysisOutcome)
	assert.Contains(t, result.OutcomeMessage, "nil map write")
	assert.Contains(t, result.OutcomeMessage, string(stateExtracting))
	assert.Equal(t, "x.txt", result.FileName)
}

func TestAnalyzeDocument_PromptCarriesDocumentContext(t *testing.T) {
	client := &scriptedClient{scripts: map[string]func(int, llm.Prompt) (string, error){
		StageExtraction: reply(`{"tasks":[{"content":"Pay invoice"}]}`),
	}}

	invoice := "INVOICE #4411\nBill To: Acme Corp\nAmount Due: $1,200\nPayment terms: net 30\nPlease remit payment by the due date."
	newTestPipeline(testPipelineConfig(), client).AnalyzeDocument(context.Background(), invoice, "acme.pdf")

	require.NotEmpty(t, client.prompts)
	extraction := client.prompts[0]
	assert.Contains(t, extraction.System, "invoice")
	assert.Contains(t, extraction.System, documentFocus[models.DocumentTypeInvoice])
	assert.Contains(t, extraction.User, "File: acme.pdf")
	assert.Contains(t, extraction.User, "Excerpt 1 of 1")
	assert.Contains(t, extraction.User, "remit payment")

	opts := client.calls[0]
	assert.Equal(t, StageExtraction, opts.Stage)
	assert.InDelta(t, 0.2, opts.Temperature, 1e-9)
}

func TestCutAtRune(t *testing.T) {
	assert.Equal(t, "ab", cutAtRune("abc", 2))
	assert.Equal(t, "a", cutAtRune("aé", 2))
	assert.Equal(t, "abc", cutAtRune("abc", 10))
}

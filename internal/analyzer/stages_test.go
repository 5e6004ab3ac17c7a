package analyzer

import (
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-sommer/stick"

	"github.com/BerylCAtieno/document-task-extractor/internal/models"
	"github.com/BerylCAtieno/document-task-extractor/internal/utils"
)

var testTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestLoadPrompts(t *testing.T) {
	fsys := fstest.MapFS{
		"tpl/greet_system.twig": {Data: []byte("Hello {{ name }}{% if loud %}!{% endif %}")},
		"tpl/greet_user.twig":   {Data: []byte("  {{ name }} asks.  ")},
		"tpl/readme.md":         {Data: []byte("ignored")},
	}

	p, err := LoadPrompts(fsys, "tpl")
	require.NoError(t, err)
	assert.Len(t, p.templates, 2)

	prompt, err := p.stage("greet", map[string]stick.Value{"name": "Ada", "loud": true})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada!", prompt.System)
	assert.Equal(t, "Ada asks.", prompt.User)

	_, err = p.stage("missing", nil)
	assert.Error(t, err)
}

func TestDefaultPromptsRenderEveryStage(t *testing.T) {
	p := DefaultPrompts()
	vars := map[string]stick.Value{
		"documentLabel": "email",
		"focus":         "",
		"fileName":      "",
		"chunkNumber":   1,
		"chunkCount":    1,
		"isFirst":       true,
		"content":       "body",
		"maxGroups":     maxGroups,
		"taskList":      "- [task-1] x",
		"groupList":     "Tasks:\n- x",
	}

	for _, stage := range []string{StageExtraction, StageCategorization, StageSummary} {
		prompt, err := p.stage(stage, vars)
		require.NoError(t, err, stage)
		assert.Contains(t, prompt.System, "JSON", stage)
		assert.NotEmpty(t, prompt.User, stage)
		assert.NotContains(t, prompt.User, "File:", stage)
	}
}

func categories(t *testing.T, entries ...any) categorizationResponse {
	t.Helper()
	resp := categorizationResponse{Categories: []json.RawMessage{}}
	for _, e := range entries {
		raw, err := json.Marshal(e)
		require.NoError(t, err)
		resp.Categories = append(resp.Categories, raw)
	}
	return resp
}

func tasksWithIDs(n int) []models.Task {
	tasks := make([]models.Task, n)
	for i := range tasks {
		tasks[i] = models.Task{ID: fmt.Sprintf("task-%d", i+1), Content: fmt.Sprintf("Task %d", i+1)}
	}
	return tasks
}

func TestAssignGroups_CapsGroupCount(t *testing.T) {
	tasks := tasksWithIDs(8)
	var entries []any
	for i := 1; i <= 8; i++ {
		entries = append(entries, categoryEntry{Name: fmt.Sprintf("G%d", i), TaskIDs: []string{fmt.Sprintf("task-%d", i)}})
	}

	groups := assignGroups(categories(t, entries...), tasks, utils.NewTestLogger(io.Discard))

	require.Len(t, groups, maxGroups+1)
	last := groups[len(groups)-1]
	assert.Equal(t, uncategorizedName, last.Name)
	assert.Equal(t, []string{"task-7", "task-8"}, []string{last.Tasks[0].ID, last.Tasks[1].ID})
	assert.Equal(t, "group-1", groups[0].ID)
	assert.Equal(t, "group-6", groups[5].ID)
	assert.Equal(t, 8, models.CountTasks(groups))
}

func TestAssignGroups_NoValidCategoryFallsBack(t *testing.T) {
	tasks := tasksWithIDs(3)
	groups := assignGroups(categories(t,
		categoryEntry{Name: "Ghosts", TaskIDs: []string{"task-42"}},
		map[string]any{"name": "No ids"},
	), tasks, utils.NewTestLogger(io.Discard))

	require.Len(t, groups, 1)
	assert.Equal(t, defaultGroupName, groups[0].Name)
	assert.Len(t, groups[0].Tasks, 3)
}

func TestBuildTasks(t *testing.T) {
	tasks := buildTasks([]models.RawTaskRecord{
		{
			Content:       "  Ship release ",
			Priority:      "URGENT",
			Status:        "completed",
			EstimatedTime: -5,
			Subtasks: []models.RawTaskRecord{
				{Content: "Tag build"},
				{Content: "  "},
				{Content: "Write notes", Subtasks: []models.RawTaskRecord{{Content: "too deep"}}},
			},
		},
		{Content: "Announce", Priority: "whenever"},
	}, testTime)

	require.Len(t, tasks, 2)
	first := tasks[0]
	assert.Equal(t, "task-1", first.ID)
	assert.Equal(t, "Ship release", first.Content)
	assert.Equal(t, models.PriorityCritical, first.Priority)
	assert.Equal(t, models.TaskStatusDone, first.Status)
	assert.True(t, first.Completed)
	assert.Zero(t, first.EstimatedTime)
	assert.NotNil(t, first.Tags)
	assert.NotNil(t, first.Dependencies)
	assert.Equal(t, testTime, first.CreatedAt)

	require.Len(t, first.Subtasks, 2)
	assert.Equal(t, "task-1-sub-1", first.Subtasks[0].ID)
	assert.Equal(t, "task-1-sub-2", first.Subtasks[1].ID)
	assert.Empty(t, first.Subtasks[1].Subtasks)

	assert.Equal(t, "task-2", tasks[1].ID)
	assert.Equal(t, models.PriorityNone, tasks[1].Priority)
	assert.Equal(t, models.TaskStatusTodo, tasks[1].Status)
}

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

const (
	maxGroups            = 6
	taskPreviewLength    = 120
	uncategorizedGroupID = "group-uncategorized"
	uncategorizedName    = "Uncategorized"
	defaultGroupID       = "group-1"
	defaultGroupName     = "Tasks"
)

type categorizer struct {
	client  llm.ModelClient
	prompts *Prompts
	budget  config.StageBudget
	logger  *utils.Logger
}

// categorize never fails: an unusable reply puts every task in one default group,
// and tasks no category claimed end up in a trailing Uncategorized group.
func (c *categorizer) categorize(ctx context.Context, tasks []models.Task, docType models.DocumentType) ([]models.TaskGroup, int) {
	var list strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&list, "- [%s] %s\n", t.ID, utils.Truncate(t.Content, taskPreviewLength))
	}

	prompt, err := c.prompts.stage(StageCategorization, map[string]stick.Value{
		"documentLabel": documentLabel(docType),
		"maxGroups":     maxGroups,
		"taskList":      list.String(),
	})
	if err != nil {
		c.logger.Error("Failed to render categorization prompt", "error", err)
		return defaultGroups(tasks), 0
	}

	completion, err := c.client.Complete(ctx, prompt, llm.CallOptions{
		Stage:       StageCategorization,
		Temperature: c.budget.Temperature,
		MaxTokens:   c.budget.MaxTokens,
		Timeout:     c.budget.Timeout,
	})
	if err != nil {
		c.logger.Warn("Categorization failed, using a single group", "error", err)
		return defaultGroups(tasks), 0
	}
	tokens := completion.TotalTokens()

	res := parser.Parse[categorizationResponse](completion.Content)
	if !res.Ok() {
		c.logger.Warn("Discarding unusable categorization output",
			"error", res.Err,
			"output", utils.Truncate(completion.Content, 200))
		return defaultGroups(tasks), tokens
	}

	return assignGroups(res.Value, tasks, c.logger), tokens
}

// assignGroups places each task in the first valid category that claims it.
// Unknown ids are dropped and empty categories are omitted.
func assignGroups(resp categorizationResponse, tasks []models.Task, logger *utils.Logger) []models.TaskGroup {
	byID := make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	claimed := make(map[string]bool, len(tasks))

	var groups []models.TaskGroup
	for _, raw := range resp.Categories {
		if len(groups) == maxGroups {
			break
		}
		entry, ok := decodeCategory(raw)
		if !ok {
			logger.Debug("Skipping malformed category", "category", utils.Truncate(string(raw), 200))
			continue
		}

		group := models.TaskGroup{
			ID:          fmt.Sprintf("group-%d", len(groups)+1),
			Name:        entry.Name,
			Description: strings.TrimSpace(entry.Description),
			Tasks:       []models.Task{},
		}
		for _, id := range entry.TaskIDs {
			id = strings.TrimSpace(id)
			task, known := byID[id]
			if !known {
				logger.Debug("Dropping unknown task reference", "category", entry.Name, "task_id", id)
				continue
			}
			if claimed[id] {
				continue
			}
			claimed[id] = true
			group.Tasks = append(group.Tasks, task)
		}
		if len(group.Tasks) > 0 {
			groups = append(groups, group)
		}
	}

	if len(groups) == 0 {
		return defaultGroups(tasks)
	}

	var rest []models.Task
	for _, t := range tasks {
		if !claimed[t.ID] {
			rest = append(rest, t)
		}
	}
	if len(rest) > 0 {
		groups = append(groups, models.TaskGroup{
			ID:          uncategorizedGroupID,
			Name:        uncategorizedName,
			Description: "Tasks that did not fit any other group",
			Tasks:       rest,
		})
	}

	return groups
}

func defaultGroups(tasks []models.Task) []models.TaskGroup {
	return []models.TaskGroup{{
		ID:          defaultGroupID,
		Name:        defaultGroupName,
		Description: "All tasks extracted from the document",
		Tasks:       append([]models.Task{}, tasks...),
	}}
}

package analyzer

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/BerylCAtieno/document-task-extractor/internal/models"
)

type extractionResponse struct {
	Tasks []models.RawTaskRecord `json:"tasks"`
}

func (r *extractionResponse) Validate() error {
	if r.Tasks == nil {
		return errors.New("tasks must be a list")
	}
	return nil
}

// Categories are kept raw so one malformed entry does not sink the rest.
type categorizationResponse struct {
	Categories []json.RawMessage `json:"categories"`
}

func (r *categorizationResponse) Validate() error {
	if r.Categories == nil {
		return errors.New("categories must be a list")
	}
	return nil
}

type categoryEntry struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	TaskIDs     []string `json:"taskIds"`
}

// decodeCategory accepts an entry only when it has a name and a list of ids.
func decodeCategory(raw json.RawMessage) (categoryEntry, bool) {
	var c categoryEntry
	if err := json.Unmarshal(raw, &c); err != nil {
		return categoryEntry{}, false
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" || c.TaskIDs == nil {
		return categoryEntry{}, false
	}
	return c, true
}

type summaryResponse struct {
	ProjectDescription string   `json:"projectDescription"`
	Milestones         []string `json:"milestones"`
	Resources          []string `json:"resources"`
	Risks              []string `json:"risks"`
	Recommendations    []string `json:"recommendations"`
}

func (r *summaryResponse) Validate() error {
	if strings.TrimSpace(r.ProjectDescription) == "" {
		return errors.New("projectDescription is required")
	}
	return nil
}

func (r summaryResponse) toSummary() models.AnalysisSummary {
	return models.AnalysisSummary{
		ProjectDescription: strings.TrimSpace(r.ProjectDescription),
		Milestones:         nonNil(r.Milestones),
		Resources:          nonNil(r.Resources),
		Risks:              nonNil(r.Risks),
		Recommendations:    nonNil(r.Recommendations),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package models

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type DocumentType string

const (
	DocumentTypeMeetingMinutes  DocumentType = "meeting_minutes"
	DocumentTypeProjectPlan     DocumentType = "project_plan"
	DocumentTypeContract        DocumentType = "contract"
	DocumentTypeEmail           DocumentType = "email"
	DocumentTypeInvoice         DocumentType = "invoice"
	DocumentTypeResume          DocumentType = "resume"
	DocumentTypeResearchPaper   DocumentType = "research_paper"
	DocumentTypeManual          DocumentType = "manual"
	DocumentTypeGeneralDocument DocumentType = "general_document"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityNone     Priority = "none"
)

// Rank orders priorities critical > high > medium > low > none.
// Unrecognised values rank with none.
func (p Priority) Rank() int {
	switch Priority(strings.ToLower(strings.TrimSpace(string(p)))) {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Normalize lower-cases known priorities and maps anything else to none.
func (p Priority) Normalize() Priority {
	switch v := Priority(strings.ToLower(strings.TrimSpace(string(p)))); v {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return v
	case "urgent":
		return PriorityCritical
	default:
		return PriorityNone
	}
}

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

func (s TaskStatus) Normalize() TaskStatus {
	v := strings.ToLower(strings.TrimSpace(string(s)))
	v = strings.NewReplacer("-", "_", " ", "_").Replace(v)
	switch TaskStatus(v) {
	case TaskStatusInProgress:
		return TaskStatusInProgress
	case TaskStatusDone, "completed", "complete":
		return TaskStatusDone
	default:
		return TaskStatusTodo
	}
}

// EstimatedTime is an effort estimate in minutes. Models answer with either a
// number or free text such as "2 hours", "30m" or "1.5h", so decoding accepts both.
type EstimatedTime int

var durationPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(minutes?|mins?|m|hours?|hrs?|h|days?|d|weeks?|w)\b`)

func (e *EstimatedTime) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*e = EstimatedTime(math.Round(n))
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		if string(data) == "null" {
			*e = 0
			return nil
		}
		return fmt.Errorf("estimated time: %w", err)
	}
	*e = ParseEstimatedTime(s)
	return nil
}

// ParseEstimatedTime converts free-text effort into minutes, returning 0 when
// nothing recognisable is present.
func ParseEstimatedTime(s string) EstimatedTime {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return EstimatedTime(math.Round(n))
	}

	var total float64
	for _, m := range durationPattern.FindAllStringSubmatch(s, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		switch unit := strings.ToLower(m[2]); {
		case strings.HasPrefix(unit, "w"):
			total += v * 5 * 8 * 60
		case strings.HasPrefix(unit, "d"):
			total += v * 8 * 60
		case strings.HasPrefix(unit, "h"):
			total += v * 60
		default:
			total += v
		}
	}
	return EstimatedTime(math.Round(total))
}

type TextChunk struct {
	Content string `json:"content"`
	Index   int    `json:"index"`
	IsFirst bool   `json:"isFirst"`
}

// RawTaskRecord is a candidate task as produced by the model, before ids are assigned.
type RawTaskRecord struct {
	Content       string          `json:"content"`
	Priority      Priority        `json:"priority"`
	Status        TaskStatus      `json:"status"`
	EstimatedTime EstimatedTime   `json:"estimatedTime"`
	Deadline      string          `json:"deadline,omitempty"`
	Assignee      string          `json:"assignee,omitempty"`
	Tags          []string        `json:"tags"`
	Dependencies  []string        `json:"dependencies"`
	Subtasks      []RawTaskRecord `json:"subtasks"`
}

// UnmarshalJSON also accepts a bare string, which models use for simple subtasks.
func (r *RawTaskRecord) UnmarshalJSON(data []byte) error {
	var content string
	if err := json.Unmarshal(data, &content); err == nil {
		*r = RawTaskRecord{Content: content}
		return nil
	}

	type plain RawTaskRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = RawTaskRecord(p)
	return nil
}

type Task struct {
	ID            string        `json:"id"`
	Content       string        `json:"content"`
	Priority      Priority      `json:"priority"`
	Status        TaskStatus    `json:"status"`
	EstimatedTime EstimatedTime `json:"estimatedTime"`
	Deadline      string        `json:"deadline,omitempty"`
	Assignee      string        `json:"assignee,omitempty"`
	Tags          []string      `json:"tags"`
	Dependencies  []string      `json:"dependencies"`
	Subtasks      []Task        `json:"subtasks,omitempty"`
	Completed     bool          `json:"completed"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type TaskGroup struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Tasks       []Task `json:"tasks"`
}

type AnalysisSummary struct {
	ProjectDescription string   `json:"projectDescription"`
	Milestones         []string `json:"milestones"`
	Resources          []string `json:"resources"`
	Risks              []string `json:"risks"`
	Recommendations    []string `json:"recommendations"`
}

type ProcessingStats struct {
	TokensUsed       int   `json:"tokensUsed"`
	ProcessingTimeMs int64 `json:"processingTime"`
	ChunksTotal      int   `json:"chunksTotal"`
	ChunksFailed     int   `json:"chunksFailed"`
	Truncated        bool  `json:"truncated"`
}

type AnalysisOutcome string

const (
	OutcomeSuccess      AnalysisOutcome = "success"
	OutcomeNoTasksFound AnalysisOutcome = "no_tasks_found"
	OutcomeFailure      AnalysisOutcome = "failure"
)

type AnalysisResult struct {
	TotalTasks      int             `json:"totalTasks"`
	Groups          []TaskGroup     `json:"groups"`
	Summary         AnalysisSummary `json:"summary"`
	FileName        string          `json:"fileName"`
	DocumentType    DocumentType    `json:"documentType"`
	ProcessedAt     time.Time       `json:"processedAt"`
	ProcessingStats ProcessingStats `json:"processingStats"`
	AnalysisOutcome AnalysisOutcome `json:"analysisOutcome"`
	OutcomeMessage  string          `json:"outcomeMessage"`
}

// CountTasks sums the top-level tasks across groups.
func CountTasks(groups []TaskGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Tasks)
	}
	return n
}

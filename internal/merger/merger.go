package merger

import (
	"strings"
	"unicode"

	"github.com/BerylCAtieno/document-task-extractor/internal/models"
)

const FallbackContent = "Review the document and identify actionable next steps"

// NormalizeKey is the dedup key for task content: lower-cased, punctuation and
// symbols removed, whitespace collapsed.
func NormalizeKey(content string) string {
	var b strings.Builder
	b.Grow(len(content))

	space := false
	for _, r := range strings.ToLower(content) {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			// dropped without producing a word break
		default:
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Merge collapses records whose content normalizes to the same key. Output order
// follows the first occurrence of each key. Records with no usable content are dropped.
func Merge(records []models.RawTaskRecord) []models.RawTaskRecord {
	merged := make([]models.RawTaskRecord, 0, len(records))
	index := make(map[string]int, len(records))

	for _, rec := range records {
		rec.Content = strings.TrimSpace(rec.Content)
		key := NormalizeKey(rec.Content)
		if key == "" {
			continue
		}

		i, seen := index[key]
		if !seen {
			rec.Tags = union(nil, rec.Tags)
			rec.Dependencies = union(nil, rec.Dependencies)
			index[key] = len(merged)
			merged = append(merged, rec)
			continue
		}

		merged[i] = combine(merged[i], rec)
	}

	return merged
}

func combine(into, other models.RawTaskRecord) models.RawTaskRecord {
	into.Tags = union(into.Tags, other.Tags)
	into.Dependencies = union(into.Dependencies, other.Dependencies)

	if other.Priority.Rank() > into.Priority.Rank() {
		into.Priority = other.Priority
	}
	if other.EstimatedTime > into.EstimatedTime {
		into.EstimatedTime = other.EstimatedTime
	}
	if into.Deadline == "" {
		into.Deadline = other.Deadline
	}
	if into.Assignee == "" {
		into.Assignee = other.Assignee
	}
	if into.Status == "" {
		into.Status = other.Status
	}

	if len(other.Subtasks) > 0 {
		subtasks := make([]models.RawTaskRecord, 0, len(into.Subtasks)+len(other.Subtasks))
		subtasks = append(subtasks, into.Subtasks...)
		into.Subtasks = append(subtasks, other.Subtasks...)
	}

	return into
}

// union appends values from b not already present in a, comparing case-insensitively.
// Blank entries are skipped. The result is never nil.
func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))

	for _, list := range [][]string{a, b} {
		for _, v := range list {
			v = strings.TrimSpace(v)
			k := strings.ToLower(v)
			if k == "" {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// FallbackTask is the placeholder injected when nothing actionable was found.
func FallbackTask() models.RawTaskRecord {
	return models.RawTaskRecord{
		Content:       FallbackContent,
		Priority:      models.PriorityMedium,
		Status:        models.TaskStatusTodo,
		EstimatedTime: 30,
		Tags:          []string{"review"},
		Dependencies:  []string{},
	}
}

// EnsureMinimum returns records unchanged when non-empty, otherwise the single
// fallback task. The bool reports whether the fallback was injected.
func EnsureMinimum(records []models.RawTaskRecord) ([]models.RawTaskRecord, bool) {
	if len(records) > 0 {
		return records, false
	}
	return []models.RawTaskRecord{FallbackTask()}, true
}

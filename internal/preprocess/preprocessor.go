package preprocess

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/BerylCAtieno/document-task-extractor/internal/models"
)

// Result is the cleaned text plus the document type detected from it.
type Result struct {
	Content      string
	DocumentType models.DocumentType
}

// Process cleans raw extracted text, classifies it, and strips the
// boilerplate that goes with the detected type.
func Process(raw string) Result {
	cleaned := Clean(raw)
	docType := Classify(cleaned)
	content := Clean(StripBoilerplate(cleaned, docType))

	return Result{
		Content:      content,
		DocumentType: docType,
	}
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	excessNewlines  = regexp.MustCompile(`\n{3,}`)
)

// Clean removes control characters (keeping newlines and tabs), normalizes
// line endings, and collapses redundant whitespace while keeping paragraph breaks.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == unicode.ReplacementChar || unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")

	text = excessNewlines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

type classificationRule struct {
	docType    models.DocumentType
	patterns   []*regexp.Regexp
	minMatches int
}

func rule(docType models.DocumentType, minMatches int, patterns ...string) classificationRule {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(`(?i)` + p)
	}
	return classificationRule{docType: docType, patterns: compiled, minMatches: minMatches}
}

// Evaluated in order; the first rule that reaches its match count wins.
var classificationRules = []classificationRule{
	rule(models.DocumentTypeMeetingMinutes, 2,
		`\bmeeting minutes\b`, `\bminutes of\b`, `\battendees\b`, `\bagenda\b`, `\baction items?\b`, `\bnext meeting\b`),
	rule(models.DocumentTypeProjectPlan, 2,
		`\bproject plan\b`, `\bmilestones?\b`, `\bdeliverables?\b`, `\btimeline\b`, `\bsprint\b`, `\bstakeholders?\b`, `\bgantt\b`),
	rule(models.DocumentTypeContract, 2,
		`\bagreement\b`, `\bhereby\b`, `\bparty\b|\bparties\b`, `\bterms and conditions\b`, `\bwhereas\b`, `\bgoverning law\b`, `\bindemnif`),
	rule(models.DocumentTypeEmail, 2,
		`(?m)^from:`, `(?m)^to:`, `(?m)^subject:`, `(?m)^(cc|sent|date):`, `\bregards,`),
	rule(models.DocumentTypeInvoice, 2,
		`\binvoice\b`, `\bbill to\b`, `\bamount due\b`, `\bsubtotal\b`, `\bpayment terms\b`, `\bdue date\b`),
	rule(models.DocumentTypeResume, 2,
		`\bcurriculum vitae\b|\bresume\b|résumé`, `\bwork experience\b|\bprofessional experience\b`, `\beducation\b`, `\bskills\b`, `\breferences available\b`),
	rule(models.DocumentTypeResearchPaper, 2,
		`(?m)^abstract\b`, `\bmethodology\b`, `\bliterature review\b`, `(?m)^references\b|\bbibliography\b`, `\bdoi:`, `\bhypothesis\b`),
	rule(models.DocumentTypeManual, 2,
		`\buser (manual|guide)\b`, `\binstructions\b`, `\bstep \d+\b`, `\btroubleshooting\b`, `\binstallation\b`, `\bwarning:`),
}

// Classify assigns a document type by keyword heuristics. Text that matches
// no rule is a general document.
func Classify(text string) models.DocumentType {
	for _, r := range classificationRules {
		matches := 0
		for _, p := range r.patterns {
			if p.MatchString(text) {
				matches++
			}
		}
		if matches >= r.minMatches {
			return r.docType
		}
	}
	return models.DocumentTypeGeneralDocument
}

var commonBoilerplate = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^page \d+( of \d+)?$`),
	regexp.MustCompile(`(?im)^(confidential|internal use only)$`),
}

var boilerplateRules = map[models.DocumentType][]*regexp.Regexp{
	models.DocumentTypeEmail: {
		regexp.MustCompile(`(?im)^(from|to|cc|bcc|sent|date|subject|reply-to):.*$`),
		regexp.MustCompile(`(?im)^sent from my .*$`),
		regexp.MustCompile(`(?im)^-{2,}\s*original message\s*-{2,}$`),
	},
	models.DocumentTypeInvoice: {
		regexp.MustCompile(`(?im)^(sub ?total|total|tax|vat|amount due|balance due|grand total)\b.*$`),
		regexp.MustCompile(`(?im)^(invoice (no|number|#)|invoice date)\b.*$`),
	},
	models.DocumentTypeMeetingMinutes: {
		regexp.MustCompile(`(?im)^(attendees|present|absent|apologies|in attendance)\s*:.*$`),
	},
	models.DocumentTypeContract: {
		regexp.MustCompile(`(?im)^(signature|signed|witness|date)\s*:\s*_*\s*$`),
		regexp.MustCompile(`(?m)^_{5,}$`),
	},
	models.DocumentTypeResume: {
		regexp.MustCompile(`(?im)^references available (up)?on request\.?$`),
	},
	models.DocumentTypeResearchPaper: {
		regexp.MustCompile(`(?is)\n(references|bibliography)\n.*$`),
	},
}

// StripBoilerplate removes lines that carry no actionable content for the
// given document type.
func StripBoilerplate(text string, docType models.DocumentType) string {
	for _, re := range commonBoilerplate {
		text = re.ReplaceAllString(text, "")
	}
	for _, re := range boilerplateRules[docType] {
		text = re.ReplaceAllString(text, "")
	}
	return text
}

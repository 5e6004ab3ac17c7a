package analyzer

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/tyler-sommer/stick"

	"github.com/BerylCAtieno/document-task-extractor/internal/llm"
	"github.com/BerylCAtieno/document-task-extractor/internal/models"
)

//go:embed prompts/*.twig
var promptFS embed.FS

// Prompts renders the Twig templates for each pipeline stage.
type Prompts struct {
	env       *stick.Env
	templates map[string]string
}

func LoadPrompts(fsys fs.FS, dir string) (*Prompts, error) {
	p := &Prompts{
		env:       stick.New(nil),
		templates: make(map[string]string),
	}

	err := fs.WalkDir(fsys, dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(name, ".twig") {
			return nil
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		p.templates[strings.TrimSuffix(path.Base(name), ".twig")] = string(content)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultPrompts loads the templates compiled into the binary.
func DefaultPrompts() *Prompts {
	p, err := LoadPrompts(promptFS, "prompts")
	if err != nil {
		panic(fmt.Sprintf("analyzer: embedded prompts: %v", err))
	}
	return p
}

func (p *Prompts) render(tag string, vars map[string]stick.Value) (string, error) {
	tpl, ok := p.templates[tag]
	if !ok {
		return "", fmt.Errorf("template %q not found", tag)
	}

	var out strings.Builder
	if err := p.env.Execute(tpl, &out, vars); err != nil {
		return "", fmt.Errorf("execute %q: %w", tag, err)
	}
	return strings.TrimSpace(out.String()), nil
}

// stage renders the <stage>_system and <stage>_user pair with the same variables.
func (p *Prompts) stage(name string, vars map[string]stick.Value) (llm.Prompt, error) {
	system, err := p.render(name+"_system", vars)
	if err != nil {
		return llm.Prompt{}, err
	}
	user, err := p.render(name+"_user", vars)
	if err != nil {
		return llm.Prompt{}, err
	}
	return llm.Prompt{System: system, User: user}, nil
}

var documentLabels = map[models.DocumentType]string{
	models.DocumentTypeMeetingMinutes:  "set of meeting minutes",
	models.DocumentTypeProjectPlan:     "project plan",
	models.DocumentTypeContract:        "contract",
	models.DocumentTypeEmail:           "email",
	models.DocumentTypeInvoice:         "invoice",
	models.DocumentTypeResume:          "resume",
	models.DocumentTypeResearchPaper:   "research paper",
	models.DocumentTypeManual:          "manual",
	models.DocumentTypeGeneralDocument: "general document",
}

// Per-type hints appended to the extraction prompt.
var documentFocus = map[models.DocumentType]string{
	models.DocumentTypeMeetingMinutes: "Focus on action items, owners named next to them, and follow-ups agreed in the meeting.",
	models.DocumentTypeProjectPlan:    "Focus on deliverables, milestones, phases and the dependencies between them.",
	models.DocumentTypeContract:       "Focus on obligations, renewal or termination dates, and payments each party must make.",
	models.DocumentTypeEmail:          "Focus on requests made of the reader and any replies or deadlines they imply.",
	models.DocumentTypeInvoice:        "Focus on payment, approval and reconciliation steps and their due dates.",
	models.DocumentTypeResume:         "Focus on follow-up steps a recruiter or hiring manager would take.",
	models.DocumentTypeResearchPaper:  "Focus on proposed future work, replication steps and open questions.",
	models.DocumentTypeManual:         "Focus on procedures the reader must carry out, in order.",
}

func documentLabel(t models.DocumentType) string {
	if label, ok := documentLabels[t]; ok {
		return label
	}
	return documentLabels[models.DocumentTypeGeneralDocument]
}

package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/clicktoassignment/backend/internal/models"
)

// ReportPlaceholder is the content of the plagiarism and AI report stages.
const ReportPlaceholder = "AI/Plag Report not available."

// GenerationRequest is the input for one section.
type GenerationRequest struct {
	JobID       uint
	SectionType models.SectionType
	Context     string
}

// Generator produces section content. Implementations may be slow and may
// fail; the pipeline turns failures into content.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// sectionSource looks up the current content of another section of the job.
type sectionSource func(models.SectionType) string

type sectionStep struct {
	section models.SectionType
	report  bool
	prompt  string
	label   string
	// missing is sent when the upstream content is empty.
	missing string
	// fallback replaces an empty model answer.
	fallback string
	// input assembles the context for the step. override is caller-supplied
	// text and is only honoured where allowOverride is set.
	input         func(job *models.Job, src sectionSource) string
	allowOverride bool
}

// sectionSteps is indexed by the position of the section in
// models.SectionSequence.
var sectionSteps = [models.SectionCount]sectionStep{
	{
		section:  models.SectionSummary,
		prompt:   summaryPrompt,
		label:    "USER INPUT",
		missing:  "No instruction provided.",
		fallback: "Generation failed.",
		input: func(job *models.Job, _ sectionSource) string {
			return job.Instruction
		},
	},
	{
		section:  models.SectionStructure,
		prompt:   structurePrompt,
		label:    "JOB SUMMARY",
		missing:  "Summary missing.",
		fallback: "Structure generation failed.",
		input: func(_ *models.Job, src sectionSource) string {
			return src(models.SectionSummary)
		},
		allowOverride: true,
	},
	{
		section:  models.SectionContent,
		prompt:   contentPrompt,
		label:    "STRUCTURE",
		missing:  "Structure missing.",
		fallback: "Content generation failed.",
		input: func(_ *models.Job, src sectionSource) string {
			return src(models.SectionStructure)
		},
		allowOverride: true,
	},
	{
		section:  models.SectionReferencing,
		prompt:   referencesPrompt,
		label:    "CONTENT",
		missing:  "Content missing.",
		fallback: "Generation failed.",
		input: func(_ *models.Job, src sectionSource) string {
			return src(models.SectionContent)
		},
	},
	{section: models.SectionPlagReport, report: true},
	{section: models.SectionAIReport, report: true},
	{
		section:  models.SectionFullContent,
		prompt:   finalizePrompt,
		label:    "CONTENT AND REFERENCES",
		missing:  "Content missing.",
		fallback: "Generation failed.",
		input: func(_ *models.Job, src sectionSource) string {
			content := orDefault(src(models.SectionContent), "Content missing.")
			refs := orDefault(src(models.SectionReferencing), "References missing.")
			return "=== CONTENT (NO CITATIONS) ===\n" + content + "\n\n=== REFERENCES ===\n" + refs
		},
	},
}

func init() {
	for i, st := range models.SectionSequence {
		step := sectionSteps[i]
		if step.section != st {
			panic(fmt.Sprintf("section step %d is %q, want %q", i, step.section, st))
		}
		if !step.report && (step.prompt == "" || step.input == nil) {
			panic(fmt.Sprintf("section step %q has no prompt", st))
		}
	}
}

func stepFor(st models.SectionType) (sectionStep, bool) {
	i := st.Index()
	if i < 0 {
		return sectionStep{}, false
	}
	return sectionSteps[i], true
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// BuildContext returns the generator context for a section of job.
// Caller-supplied override text replaces the upstream section for the
// structure and content stages.
func BuildContext(job *models.Job, st models.SectionType, src sectionSource, override string) string {
	step, ok := stepFor(st)
	if !ok || step.report {
		return ""
	}
	if step.allowOverride && strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override)
	}
	return orDefault(step.input(job, src), step.missing)
}

// LLMGenerator renders section prompts and sends them to the LLM.
type LLMGenerator struct {
	llm *LLMService
}

func NewLLMGenerator(llm *LLMService) *LLMGenerator {
	return &LLMGenerator{llm: llm}
}

func (g *LLMGenerator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	step, ok := stepFor(req.SectionType)
	if !ok {
		return "", fmt.Errorf("%w: unknown section type %q", ErrValidation, req.SectionType)
	}
	if step.report {
		return ReportPlaceholder, nil
	}

	prompt := step.prompt + "\n\n" + step.label + ":\n" + req.Context
	jobID := req.JobID
	text, err := g.llm.Generate(ctx, strings.TrimSpace(prompt), &jobID, string(req.SectionType))
	if err != nil {
		return "", err
	}
	return orDefault(text, step.fallback), nil
}

// generationFailedContent is stored in place of content when generation
// fails or times out.
func generationFailedContent(err error) string {
	return "Generation failed: " + err.Error()
}

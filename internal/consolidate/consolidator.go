// Package consolidate turns a period's memories into stored consolidation
// records: deterministic infrastructure plus an LLM synthesis narrative.
package consolidate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vthunder/recall/internal/infra"
	"github.com/vthunder/recall/internal/llm"
	"github.com/vthunder/recall/internal/logging"
	"github.com/vthunder/recall/internal/model"
	"github.com/vthunder/recall/internal/prompts"
	"github.com/vthunder/recall/internal/store"
)

// maxPromptMemories bounds how many memory summaries go into one
// synthesis prompt
const maxPromptMemories = 50

// maxPromptItems bounds decision/question lists in the prompt
const maxPromptItems = 10

// Options control one consolidation run. A custom prompt forces
// re-synthesis even when a stored record exists.
type Options struct {
	CustomPrompt  string
	SkipSynthesis bool
	Profile       string // prompt profile, "" = persisted active profile
}

// Consolidator orchestrates infrastructure extraction, context detection,
// prompt resolution, and synthesis for daily and weekly periods
type Consolidator struct {
	store   *store.Store
	llm     llm.Client
	prompts *prompts.Manager
}

// New creates a consolidator
func New(s *store.Store, client llm.Client, pm *prompts.Manager) *Consolidator {
	return &Consolidator{store: s, llm: client, prompts: pm}
}

// Synthesize produces the narrative for a period. Failures never
// propagate: any LLM error becomes a user-visible placeholder string so
// infrastructure extraction and persistence always proceed.
func (c *Consolidator) Synthesize(bag infra.Bag, memories []*model.Memory, promptType string, opts Options) string {
	instruction := opts.CustomPrompt
	if instruction == "" {
		ctx := prompts.AnalyzeContext(memories)
		if ctx.ShouldUseContextual() {
			instruction = c.prompts.GetPrompt("contextual", opts.Profile, &ctx)
		} else {
			instruction = c.prompts.GetPrompt(promptType, opts.Profile, nil)
		}
	}

	prompt := c.buildPrompt(bag, memories, instruction)

	response, err := c.llm.Generate(prompt)
	if err != nil {
		logging.Warn("consolidate", "synthesis failed: %v", err)
		return "Failed to generate synthesis: " + err.Error()
	}

	return normalizeSynthesis(response)
}

// buildPrompt assembles the composite synthesis request: capped memory
// summaries, a compact numeric view of the infrastructure, and the
// resolved instruction text
func (c *Consolidator) buildPrompt(bag infra.Bag, memories []*model.Memory, instruction string) string {
	var b strings.Builder

	b.WriteString("You are reviewing someone's captured thoughts.\n\n")
	b.WriteString("THOUGHTS:\n")
	capped := memories
	if len(capped) > maxPromptMemories {
		capped = capped[:maxPromptMemories]
	}
	for _, m := range capped {
		line := m.Summary
		if line == "" {
			line = logging.Truncate(m.RawText, 120)
		}
		fmt.Fprintf(&b, "- [%s] %s\n", m.Timestamp.Format("15:04"), line)
	}

	fmt.Fprintf(&b, "\nSTATISTICS: %d thoughts, %d people, %d topics, %d decisions, %d open questions, %d tasks\n",
		bag.MemoryCount, len(bag.People), len(bag.Topics), len(bag.Decisions), len(bag.Questions), len(bag.Tasks))

	if len(bag.Decisions) > 0 {
		decisions := bag.Decisions
		if len(decisions) > maxPromptItems {
			decisions = decisions[:maxPromptItems]
		}
		if data, err := json.Marshal(decisions); err == nil {
			fmt.Fprintf(&b, "\nDECISIONS: %s\n", data)
		}
	}
	if len(bag.Questions) > 0 {
		questions := bag.Questions
		if len(questions) > maxPromptItems {
			questions = questions[:maxPromptItems]
		}
		if data, err := json.Marshal(questions); err == nil {
			fmt.Fprintf(&b, "\nOPEN QUESTIONS: %s\n", data)
		}
	}

	b.WriteString("\nINSTRUCTIONS:\n")
	b.WriteString(instruction)
	return b.String()
}

// normalizeSynthesis extracts narrative text from structured output when
// the model returned JSON, otherwise passes the raw text through
func normalizeSynthesis(response string) string {
	raw, err := llm.ExtractJSON(response)
	if err != nil {
		return strings.TrimSpace(response)
	}

	var structured struct {
		Synthesis string `json:"synthesis"`
		Summary   string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(raw), &structured); err == nil {
		if structured.Synthesis != "" {
			return structured.Synthesis
		}
		if structured.Summary != "" {
			return structured.Summary
		}
	}
	return strings.TrimSpace(response)
}

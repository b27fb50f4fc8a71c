// Package extract turns raw captured text into structured ExtractedData
// via the LLM, with a keyword/NER fallback when the LLM is unavailable
// or its output cannot be parsed.
package extract

import (
	"encoding/json"
	"fmt"

	"github.com/vthunder/recall/internal/llm"
	"github.com/vthunder/recall/internal/logging"
	"github.com/vthunder/recall/internal/model"
)

// maxParseAttempts bounds retries on malformed LLM output. The second
// attempt uses a simplified prompt before giving up to the heuristic path.
const maxParseAttempts = 2

const extractionPrompt = `Analyze this thought and extract structured information.

Thought: "%s"

Return a JSON object with this structure:
{
    "thought_type": "action|idea|observation|question|feeling|decision|memory|mixed",
    "summary": "one line summary of the thought",
    "actions": [{"text": "action to take", "priority": "high|medium|low", "deadline": "optional deadline"}],
    "people": ["names of people mentioned"],
    "projects": ["project names mentioned"],
    "topics": ["topics discussed"],
    "questions": [{"question": "question asked", "context": "optional context"}],
    "ideas": [{"idea": "the creative thought", "trigger": "what sparked it"}],
    "decisions": [{"decision": "what was decided", "reason": "why"}],
    "observations": [{"observation": "what was noticed", "context": "optional"}],
    "mood": {"feeling": "emotional state if expressed", "energy": "high|normal|low|anxious|excited"},
    "temporal": {"dates": ["specific dates mentioned"], "relative": ["tomorrow", "next week"]}
}

Only include fields that are actually present in the thought.
Arrays can be empty if nothing relevant is found.
Be concise and accurate. Return ONLY the JSON object.`

const simplifiedPrompt = `Extract from this thought as JSON with keys
"thought_type" (one of action|idea|observation|question|feeling|decision|memory|mixed),
"summary" (one line), "people" (array of names), "topics" (array of strings).
Return ONLY the JSON object, nothing else.

Thought: "%s"`

// Extractor enriches raw memory text
type Extractor struct {
	llm       llm.Client
	heuristic *Heuristic
}

// New creates an extractor backed by the given LLM client
func New(client llm.Client) *Extractor {
	return &Extractor{
		llm:       client,
		heuristic: NewHeuristic(),
	}
}

// Extract returns structured data for the text. It never fails: LLM or
// parse errors degrade to the heuristic extraction.
func (e *Extractor) Extract(text string) model.ExtractedData {
	prompts := []string{
		fmt.Sprintf(extractionPrompt, text),
		fmt.Sprintf(simplifiedPrompt, text),
	}

	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		data, err := e.tryLLM(prompts[attempt])
		if err == nil {
			return data
		}
		logging.Debug("extract", "attempt %d failed: %v", attempt+1, err)
	}

	logging.Warn("extract", "LLM extraction failed, using heuristic fallback for: %s",
		logging.Truncate(text, 60))
	return e.heuristic.Extract(text)
}

func (e *Extractor) tryLLM(prompt string) (model.ExtractedData, error) {
	var data model.ExtractedData

	response, err := e.llm.Generate(prompt)
	if err != nil {
		return data, fmt.Errorf("llm call: %w", err)
	}

	raw, err := llm.ExtractJSON(response)
	if err != nil {
		return data, fmt.Errorf("locate JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return data, fmt.Errorf("parse JSON: %w", err)
	}

	data.Normalize()
	return data, nil
}

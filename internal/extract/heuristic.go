package extract

import (
	"strings"

	"github.com/tsawler/prose/v3"

	"github.com/vthunder/recall/internal/model"
)

var actionPhrases = []string{"need to", "should", "must", "have to", "going to", "will "}
var decisionPhrases = []string{"decided", "going with", "chose", "settled on"}
var feelingPhrases = []string{"feel", "feeling", "felt", "stressed", "anxious", "excited", "happy", "frustrated"}
var ideaPhrases = []string{"idea", "what if", "maybe we could", "realized"}

// Heuristic is the keyword/NER fallback extractor used when the LLM
// path is unavailable
type Heuristic struct{}

// NewHeuristic creates the fallback extractor
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Extract produces a minimal ExtractedData from keyword and NER scans
func (h *Heuristic) Extract(text string) model.ExtractedData {
	lower := strings.ToLower(text)

	data := model.ExtractedData{
		ThoughtType: model.ThoughtMemory,
		Summary:     summarize(text),
		People:      extractPeople(text),
	}

	if containsAny(lower, actionPhrases) {
		data.ThoughtType = model.ThoughtAction
		data.Actions = append(data.Actions, model.Action{Text: summarize(text), Priority: "medium"})
	}
	if strings.Contains(text, "?") {
		segments := strings.Split(text, "?")
		for _, sentence := range segments[:len(segments)-1] {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			// Take the last clause before the question mark
			if idx := strings.LastIndexAny(sentence, ".!"); idx >= 0 {
				sentence = strings.TrimSpace(sentence[idx+1:])
			}
			data.Questions = append(data.Questions, model.Question{Question: sentence + "?"})
		}
		if data.ThoughtType == model.ThoughtMemory {
			data.ThoughtType = model.ThoughtQuestion
		}
	}
	if containsAny(lower, decisionPhrases) {
		data.ThoughtType = model.ThoughtDecision
		data.Decisions = append(data.Decisions, model.Decision{Decision: summarize(text)})
	}
	if containsAny(lower, ideaPhrases) && data.ThoughtType == model.ThoughtMemory {
		data.ThoughtType = model.ThoughtIdea
		data.Ideas = append(data.Ideas, model.Idea{Idea: summarize(text)})
	}
	if containsAny(lower, feelingPhrases) && data.ThoughtType == model.ThoughtMemory {
		data.ThoughtType = model.ThoughtFeeling
	}

	data.Normalize()
	return data
}

// extractPeople runs NER and keeps PERSON entities
func extractPeople(text string) []string {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var people []string
	for _, ent := range doc.Entities() {
		if strings.ToUpper(ent.Label) != "PERSON" {
			continue
		}
		if seen[ent.Text] {
			continue
		}
		seen[ent.Text] = true
		people = append(people, ent.Text)
	}
	return people
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func summarize(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if len(text) <= 100 {
		return text
	}
	return text[:100]
}

package model

import "time"

// MemoryStatus tracks a memory through the processing pipeline
type MemoryStatus string

const (
	StatusPending    MemoryStatus = "pending"
	StatusProcessing MemoryStatus = "processing"
	StatusCompleted  MemoryStatus = "completed"
	StatusFailed     MemoryStatus = "failed"
)

// ThoughtType classifies what kind of thought a memory captures
type ThoughtType string

const (
	ThoughtAction      ThoughtType = "action"
	ThoughtIdea        ThoughtType = "idea"
	ThoughtObservation ThoughtType = "observation"
	ThoughtQuestion    ThoughtType = "question"
	ThoughtFeeling     ThoughtType = "feeling"
	ThoughtDecision    ThoughtType = "decision"
	ThoughtMemory      ThoughtType = "memory"
	ThoughtMixed       ThoughtType = "mixed"
)

// ValidThoughtType reports whether t is one of the known types
func ValidThoughtType(t ThoughtType) bool {
	switch t {
	case ThoughtAction, ThoughtIdea, ThoughtObservation, ThoughtQuestion,
		ThoughtFeeling, ThoughtDecision, ThoughtMemory, ThoughtMixed:
		return true
	}
	return false
}

// Memory is one captured thought. Created pending on capture, enriched
// once by extraction, then immutable input to all consolidation layers.
type Memory struct {
	ID          int64         `json:"id"`
	UUID        string        `json:"uuid"`
	Timestamp   time.Time     `json:"timestamp"`
	RawText     string        `json:"raw_text"`
	Source      string        `json:"source"` // text, voice, discord
	ThoughtType ThoughtType   `json:"thought_type"`
	Summary     string        `json:"summary"`
	Status      MemoryStatus  `json:"status"`
	Extracted   ExtractedData `json:"extracted_data"`
	Error       string        `json:"error_message,omitempty"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Action is a task detected in a thought
type Action struct {
	Text     string `json:"text"`
	Priority string `json:"priority,omitempty"` // high, medium, low
	Deadline string `json:"deadline,omitempty"`
}

// Question is an open question raised in a thought
type Question struct {
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
}

// Idea is a creative thought and what sparked it
type Idea struct {
	Idea    string `json:"idea"`
	Trigger string `json:"trigger,omitempty"`
}

// Decision records what was decided and why
type Decision struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

// Observation is something noticed
type Observation struct {
	Observation string `json:"observation"`
	Context     string `json:"context,omitempty"`
}

// Mood captures emotional state at capture time
type Mood struct {
	Feeling string `json:"feeling,omitempty"`
	Energy  string `json:"energy,omitempty"` // high, normal, low, anxious, excited
}

// Temporal holds time references mentioned in a thought
type Temporal struct {
	Dates    []string `json:"dates"`
	Relative []string `json:"relative"`
}

// ExtractedData is the structured enrichment produced by extraction.
// Every field is optional; Normalize fills defaults once at the
// extraction boundary so downstream aggregation never checks presence.
type ExtractedData struct {
	ThoughtType  ThoughtType   `json:"thought_type,omitempty"`
	Summary      string        `json:"summary,omitempty"`
	Actions      []Action      `json:"actions"`
	People       []string      `json:"people"`
	Projects     []string      `json:"projects"`
	Topics       []string      `json:"topics"`
	Questions    []Question    `json:"questions"`
	Ideas        []Idea        `json:"ideas"`
	Decisions    []Decision    `json:"decisions"`
	Observations []Observation `json:"observations"`
	Mood         Mood          `json:"mood"`
	Temporal     Temporal      `json:"temporal"`
	Actionable   bool          `json:"actionable"`
	Urgency      string        `json:"urgency,omitempty"` // high, normal, low
	Completed    bool          `json:"completed"`
}

// Normalize fills defaults so absent fields never surprise aggregation.
func (d *ExtractedData) Normalize() {
	if !ValidThoughtType(d.ThoughtType) {
		d.ThoughtType = ThoughtMemory
	}
	if d.Actions == nil {
		d.Actions = []Action{}
	}
	if d.People == nil {
		d.People = []string{}
	}
	if d.Projects == nil {
		d.Projects = []string{}
	}
	if d.Topics == nil {
		d.Topics = []string{}
	}
	if d.Questions == nil {
		d.Questions = []Question{}
	}
	if d.Ideas == nil {
		d.Ideas = []Idea{}
	}
	if d.Decisions == nil {
		d.Decisions = []Decision{}
	}
	if d.Observations == nil {
		d.Observations = []Observation{}
	}
	if d.Temporal.Dates == nil {
		d.Temporal.Dates = []string{}
	}
	if d.Temporal.Relative == nil {
		d.Temporal.Relative = []string{}
	}
	if len(d.Actions) > 0 {
		d.Actionable = true
	}
	if d.Actionable && d.Urgency == "" {
		d.Urgency = "normal"
	}
	if d.Summary == "" {
		switch {
		case len(d.Actions) > 0:
			d.Summary = clip(d.Actions[0].Text, 100)
		case len(d.Ideas) > 0:
			d.Summary = clip(d.Ideas[0].Idea, 100)
		case len(d.Questions) > 0:
			d.Summary = clip(d.Questions[0].Question, 100)
		}
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package model

import "time"

// ThoughtThread is a temporally contiguous run of memories
type ThoughtThread struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	MemoryCount   int       `json:"memory_count"`
	DominantTopic string    `json:"dominant_topic"`
	Summary       string    `json:"summary,omitempty"`
	MemoryIDs     []string  `json:"memory_ids"`
}

// MoodPoint is one mood observation on a day's emotional arc
type MoodPoint struct {
	Time    time.Time `json:"time"`
	Feeling string    `json:"feeling"`
}

// EmotionalArc summarizes the day's emotional trajectory
type EmotionalArc struct {
	Pattern      string      `json:"pattern"` // stable, varied, volatile
	DominantMood string      `json:"dominant_mood,omitempty"`
	Journey      []MoodPoint `json:"journey"`
	Shifts       int         `json:"shifts"`
}

// TopicSummary ranks one topic within a period
type TopicSummary struct {
	Topic     string   `json:"topic"`
	Count     int      `json:"count"`
	MemoryIDs []string `json:"memory_ids"`
}

// Interaction aggregates mentions of one person
type Interaction struct {
	Person    string   `json:"person"`
	Count     int      `json:"count"`
	Contexts  []string `json:"contexts"`
	MemoryIDs []string `json:"memory_ids"`
}

// HourActivity counts activity within one hour bucket
type HourActivity struct {
	Total      int `json:"total"`
	Actionable int `json:"actionable"`
	Completed  int `json:"completed"`
}

// EnergyPattern describes when during the day activity happened
type EnergyPattern struct {
	Hours              map[int]HourActivity `json:"hours"`
	PeakHours          []int                `json:"peak_hours"`
	MostProductiveHour int                  `json:"most_productive_hour"`
}

// CompletedAction is a finished task found in the period
type CompletedAction struct {
	Task      string    `json:"task"`
	Timestamp time.Time `json:"timestamp"`
	MemoryID  string    `json:"memory_id"`
}

// DailyConsolidation is one stored record per calendar date
type DailyConsolidation struct {
	ID               int64             `json:"id"`
	Date             string            `json:"date"` // YYYY-MM-DD
	Narrative        string            `json:"narrative"`
	KeyDecisions     []Decision        `json:"key_decisions"`
	MainTopics       []TopicSummary    `json:"main_topics"`
	EmotionalArc     EmotionalArc      `json:"emotional_arc"`
	Interactions     []Interaction     `json:"interactions"`
	Insights         []string          `json:"insights"`
	CompletedActions []CompletedAction `json:"completed_actions"`
	OpenQuestions    []string          `json:"open_questions"`
	EnergyPattern    EnergyPattern     `json:"energy_pattern"`
	ThoughtThreads   []ThoughtThread   `json:"thought_threads"`
	SourceMemoryIDs  []string          `json:"source_memory_ids"`
	ImportanceScore  float64           `json:"importance_score"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Theme is a recurring topic across a week with trend and sentiment
type Theme struct {
	Theme           string   `json:"theme"`
	Occurrences     int      `json:"occurrences"`
	Trend           string   `json:"trend"`     // increasing, decreasing, stable
	Sentiment       string   `json:"sentiment"` // positive, negative, mixed
	DaysPresent     int      `json:"days_present"`
	ExampleContexts []string `json:"example_contexts"`
}

// ProductivityPattern aggregates task activity by day and hour
type ProductivityPattern struct {
	ByDay             map[string]HourActivity `json:"by_day"`
	ByHour            map[int]HourActivity    `json:"by_hour"`
	PeakHours         []int                   `json:"peak_hours"`
	MostProductiveDay string                  `json:"most_productive_day"`
	CompletionRate    float64                 `json:"task_completion_rate"`
}

// Collaborator summarizes interactions with one person over a week
type Collaborator struct {
	Person       string         `json:"person"`
	Interactions int            `json:"interactions"`
	Days         int            `json:"days"`
	ThoughtTypes map[string]int `json:"thought_types"`
}

// CollaborationPattern ranks the week's collaborators
type CollaborationPattern struct {
	FrequentCollaborators []Collaborator `json:"frequent_collaborators"`
	TotalInteractions     int            `json:"total_interactions"`
}

// DecisionPattern describes when and about what decisions were made
type DecisionPattern struct {
	Total       int            `json:"total"`
	PerDay      map[string]int `json:"per_day"`
	PeakHour    int            `json:"peak_hour"`
	TopContexts []string       `json:"top_contexts"`
	Samples     []string       `json:"samples"`
}

// Blocker is a stuck point detected by keyword match
type Blocker struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Resolved  bool      `json:"resolved"`
}

// BlockerPattern aggregates the week's blockers
type BlockerPattern struct {
	Count    int      `json:"count"`
	Resolved int      `json:"resolved"`
	Themes   []string `json:"themes"`
	Blockers []Blocker `json:"blockers"`
}

// CreativePattern describes when creative insights happened
type CreativePattern struct {
	Total    int    `json:"total_creative_insights"`
	PeakHour int    `json:"peak_creative_hour"`
	PeakDay  string `json:"peak_creative_day"`
}

// StressPattern aggregates stress indicators by trigger word
type StressPattern struct {
	Count    int            `json:"count"`
	Triggers map[string]int `json:"stress_triggers"`
	PeakHour int            `json:"peak_stress_time"`
}

// SuccessPattern aggregates success indicators
type SuccessPattern struct {
	Count    int      `json:"count"`
	Samples  []string `json:"samples"`
	PeakDay  string   `json:"peak_day"`
}

// WeeklyPattern is one stored record per (week number, year)
type WeeklyPattern struct {
	ID                     int64                `json:"id"`
	WeekNumber             int                  `json:"week_number"`
	Year                   int                  `json:"year"`
	Insights               string               `json:"insights"`
	Recommendations        []string             `json:"recommendations"`
	RecurringThemes        []Theme              `json:"recurring_themes"`
	Productivity           ProductivityPattern  `json:"productivity_patterns"`
	Collaboration          CollaborationPattern `json:"collaboration_patterns"`
	Decisions              DecisionPattern      `json:"decision_patterns"`
	Blockers               BlockerPattern       `json:"blocker_patterns"`
	Creative               CreativePattern      `json:"creative_patterns"`
	Stress                 StressPattern        `json:"stress_triggers"`
	Success                SuccessPattern       `json:"success_patterns"`
	SourceConsolidationIDs []int64              `json:"source_consolidation_ids"`
	CreatedAt              time.Time            `json:"created_at"`
}

// NodeConnections cross-references a knowledge node to entities and peers
type NodeConnections struct {
	People       []string `json:"people"`
	Projects     []string `json:"projects"`
	Topics       []string `json:"topics"`
	RelatedNodes []int64  `json:"related_nodes"`
}

// KnowledgeNode is a distilled concept from a coherent memory cluster
type KnowledgeNode struct {
	ID              int64           `json:"id"`
	Topic           string          `json:"topic"`
	Summary         string          `json:"summary"`
	Insights        []string        `json:"insights"`
	Decisions       []string        `json:"decisions"`
	Questions       []string        `json:"questions"`
	Applications    []string        `json:"applications"`
	Connections     NodeConnections `json:"connections"`
	SourceMemoryIDs []string        `json:"source_memory_ids"`
	Confidence      float64         `json:"confidence"`
	TimesReferenced int             `json:"times_referenced"`
	LastReferenced  *time.Time      `json:"last_referenced,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// EdgeType classifies the relationship between two knowledge nodes
type EdgeType string

const (
	EdgeAnswers      EdgeType = "answers"
	EdgeSamePeople   EdgeType = "same_people"
	EdgeSameTopic    EdgeType = "same_topic"
	EdgeRelatedTopic EdgeType = "related_topic"
	EdgeAssociated   EdgeType = "associated"
)

// KnowledgeEdge is a typed weighted relationship between two nodes
type KnowledgeEdge struct {
	ID         int64    `json:"id"`
	FromNodeID int64    `json:"from_node_id"`
	ToNodeID   int64    `json:"to_node_id"`
	Type       EdgeType `json:"relationship_type"`
	Strength   float64  `json:"strength"`
}

// WisdomType distinguishes principles from heuristics
type WisdomType string

const (
	WisdomPrinciple WisdomType = "principle"
	WisdomHeuristic WisdomType = "heuristic"
)

// Wisdom is a principle or heuristic distilled from long-window patterns
type Wisdom struct {
	ID            int64      `json:"id"`
	Type          WisdomType `json:"type"`
	Content       string     `json:"content"`
	Context       string     `json:"context,omitempty"`
	Exceptions    string     `json:"exceptions,omitempty"`
	Confidence    float64    `json:"confidence"`
	EvidenceCount int        `json:"evidence_count"`
	TimesApplied  int        `json:"times_applied"`
	SuccessRate   float64    `json:"success_rate"`
	LearnedDate   time.Time  `json:"learned_date"`
}

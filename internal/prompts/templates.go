package prompts

// Built-in templates written to default.yaml when it is missing. Users
// edit the YAML files; these are only the regenerable starting point.

const DailyDefault = `Review today's thoughts and write a short reflective narrative.

Cover:
- The main threads of the day and how they connect
- Decisions made and what drove them
- Questions still open
- Energy and mood over the day

Write 2-3 paragraphs in second person ("You spent the morning...").
Be specific, reference actual topics and people from the data.`

const WeeklyDefault = `Review this week's patterns and write an insight summary.

Cover:
- Recurring themes and whether they are growing or fading
- When you were most productive and most blocked
- Who you collaborated with and how that went
- One concrete suggestion for next week

Write one paragraph of connected insights, not a list.`

const MonthlyDefault = `Review this month's knowledge and distill what matters.

Cover:
- Concepts that matured from scattered thoughts into understanding
- Decisions that shaped the month
- Open questions that keep recurring

Write 2 paragraphs focused on what to carry forward.`

// defaultContextualRules are evaluated in order; the first matching rule
// wins. Conditions support >, <, == and bare boolean flags on context
// fields; prompts interpolate {{var}} from the context projection.
var defaultContextualRules = []ContextualRule{
	{
		When: "stress_count > 5",
		Prompt: `Today had {{stress_level}} stressful moments across {{memory_count}} thoughts.
Write a calming reflection: name the stress triggers, note what was still
accomplished despite them, and suggest one thing to let go of tomorrow.`,
	},
	{
		When: "decision_count > 10",
		Prompt: `You made {{decision_count}} decisions today. Review them as a group:
what themes connect them, which were reversible vs permanent, and is
decision fatigue showing? Keep it to two paragraphs.`,
	},
	{
		When: "task_completion_rate < 0.5",
		Prompt: `Only {{completion_rate}} of today's {{task_count}} tasks got done.
Without judgment, look at what blocked progress and whether the open tasks
are too large. Suggest how to break down the biggest one.`,
	},
	{
		When: "collaboration_heavy",
		Prompt: `Today involved {{people_count}} different people ({{people_list}}).
Reflect on the collaboration: which conversations moved things forward,
where was time lost, and who needs a follow-up?`,
	},
	{
		When: "creative_burst",
		Prompt: `A creative day: {{creative_count}} new ideas and insights.
Capture the thread connecting them, flag the one most worth pursuing,
and note what conditions sparked the burst.`,
	},
}

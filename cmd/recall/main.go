// recall is the command-line surface: capture thoughts, run
// consolidations on demand, and query the layered memory.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vthunder/recall/internal/config"
	"github.com/vthunder/recall/internal/consolidate"
	"github.com/vthunder/recall/internal/knowledge"
	"github.com/vthunder/recall/internal/llm"
	"github.com/vthunder/recall/internal/process"
	"github.com/vthunder/recall/internal/prompts"
	"github.com/vthunder/recall/internal/query"
	"github.com/vthunder/recall/internal/store"
)

const usage = `usage: recall <command> [args]

capture
  add <text>              capture a thought
  process                 drain the pending queue now

consolidation
  consolidate [flags]     consolidate a day (default: yesterday)
  patterns [flags]        analyze a week
  knowledge [flags]       build knowledge nodes over a window
  wisdom [flags]          extract wisdom over a window

query
  ask <question>          natural-language query
  search <terms>          keyword/semantic memory search
  explain <memory-uuid>   trace a memory through the layers
  tasks                   list open tasks
  done <memory-uuid>      mark a task completed

management
  profile <list|show|create|delete|use> [name]
  stats                   database counters
`

type app struct {
	cfg          config.Config
	store        *store.Store
	llm          llm.Client
	prompts      *prompts.Manager
	consolidator *consolidate.Consolidator
}

func main() {
	godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]

	cfg := config.Load()
	if err := os.MkdirAll(cfg.Home, 0755); err != nil {
		fatalf("failed to create %s: %v", cfg.Home, err)
	}
	s, err := store.Open(cfg.DBPath())
	if err != nil {
		fatalf("failed to open database: %v", err)
	}
	defer s.Close()

	pm, err := prompts.NewManager(cfg.PromptsDir())
	if err != nil {
		fatalf("failed to load prompt profiles: %v", err)
	}

	client := llm.NewOllama(cfg.OllamaURL, cfg.Model, cfg.EmbedModel)
	a := &app{
		cfg:          cfg,
		store:        s,
		llm:          client,
		prompts:      pm,
		consolidator: consolidate.New(s, client, pm),
	}

	switch command {
	case "add":
		err = a.add(args)
	case "process":
		err = a.process()
	case "consolidate":
		err = a.consolidate(args)
	case "patterns":
		err = a.patterns(args)
	case "knowledge":
		err = a.knowledge(args)
	case "wisdom":
		err = a.wisdom(args)
	case "ask":
		err = a.ask(args)
	case "search":
		err = a.search(args)
	case "explain":
		err = a.explain(args)
	case "tasks":
		err = a.tasks()
	case "done":
		err = a.done(args)
	case "profile":
		err = a.profile(args)
	case "stats":
		err = a.stats()
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "recall: "+format+"\n", args...)
	os.Exit(1)
}

func (a *app) add(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("nothing to capture")
	}
	m, err := a.store.InsertMemory(strings.Join(args, " "), "cli", time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("captured %s\n", m.UUID)
	return nil
}

func (a *app) process() error {
	stats, err := process.New(a.store, a.llm).ProcessPending(0)
	if err != nil {
		return err
	}
	fmt.Printf("processed %d, failed %d, %d tasks detected\n",
		stats.Processed, stats.Failed, stats.TasksDetected)
	return nil
}

func (a *app) consolidate(args []string) error {
	fs := flag.NewFlagSet("consolidate", flag.ExitOnError)
	date := fs.String("date", "", "date to consolidate (YYYY-MM-DD, default yesterday)")
	prompt := fs.String("prompt", "", "custom synthesis prompt (forces re-synthesis)")
	skip := fs.Bool("skip-synthesis", false, "store infrastructure only, no narrative")
	profile := fs.String("profile", "", "prompt profile to use")
	days := fs.Int("days", 0, "consolidate the last N days instead of one date")
	fs.Parse(args)

	opts := consolidate.Options{CustomPrompt: *prompt, SkipSynthesis: *skip, Profile: *profile}

	if *days > 0 {
		processed, failed := a.consolidator.ConsolidateRecentDays(*days, opts)
		fmt.Printf("consolidated %d days, %d failed\n", processed, failed)
		return nil
	}

	day := time.Now().AddDate(0, 0, -1)
	if *date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", *date, time.Local)
		if err != nil {
			return fmt.Errorf("bad date %q: %w", *date, err)
		}
		day = parsed
	}

	record, err := a.consolidator.ConsolidateDay(day, opts)
	if err != nil {
		return err
	}
	if record == nil {
		fmt.Printf("no memories on %s\n", day.Format("2006-01-02"))
		return nil
	}
	fmt.Printf("%s (importance %.1f, %d memories)\n%s\n",
		record.Date, record.ImportanceScore, len(record.SourceMemoryIDs), record.Narrative)
	return nil
}

func (a *app) patterns(args []string) error {
	fs := flag.NewFlagSet("patterns", flag.ExitOnError)
	now := time.Now().AddDate(0, 0, -7)
	defYear, defWeek := now.ISOWeek()
	week := fs.Int("week", defWeek, "ISO week number")
	year := fs.Int("year", defYear, "year")
	prompt := fs.String("prompt", "", "custom synthesis prompt")
	skip := fs.Bool("skip-synthesis", false, "store infrastructure only")
	fs.Parse(args)

	record, err := a.consolidator.IdentifyPatterns(*week, *year,
		consolidate.Options{CustomPrompt: *prompt, SkipSynthesis: *skip})
	if err != nil {
		return err
	}
	if record == nil {
		fmt.Printf("no memories in week %d/%d\n", *week, *year)
		return nil
	}

	fmt.Printf("week %d/%d\n", record.WeekNumber, record.Year)
	for _, theme := range record.RecurringThemes {
		fmt.Printf("  theme %-20s %dx (%s, %s)\n", theme.Theme, theme.Occurrences, theme.Trend, theme.Sentiment)
	}
	if record.Insights != "" {
		fmt.Printf("\n%s\n", record.Insights)
	}
	for _, rec := range record.Recommendations {
		fmt.Printf("  -> %s\n", rec)
	}
	return nil
}

func (a *app) knowledge(args []string) error {
	fs := flag.NewFlagSet("knowledge", flag.ExitOnError)
	days := fs.Int("days", 30, "memory window in days")
	fs.Parse(args)

	nodes, err := knowledge.New(a.store, a.llm).BuildKnowledgeNodes(*days)
	if err != nil {
		return err
	}
	fmt.Printf("created %d knowledge nodes\n", len(nodes))
	for _, n := range nodes {
		fmt.Printf("  %q (confidence %.2f, %d memories)\n", n.Topic, n.Confidence, len(n.SourceMemoryIDs))
	}
	return nil
}

func (a *app) wisdom(args []string) error {
	fs := flag.NewFlagSet("wisdom", flag.ExitOnError)
	months := fs.Int("months", 3, "pattern window in months")
	fs.Parse(args)

	items, err := knowledge.New(a.store, a.llm).ExtractWisdom(*months)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no new wisdom this window")
		return nil
	}
	for _, w := range items {
		fmt.Printf("[%s] %s (confidence %.1f, evidence %d)\n",
			w.Type, w.Content, w.Confidence, w.EvidenceCount)
	}
	return nil
}

func (a *app) ask(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("ask what?")
	}
	q := strings.Join(args, " ")

	result, err := query.NewEngine(a.store, a.llm).Query(q, 10)
	if err != nil {
		return err
	}
	fmt.Printf("[%s]\n", result.Type)

	for _, t := range result.Tasks {
		fmt.Printf("task (%s): %s\n", t.Extracted.Urgency, t.RawText)
	}
	for _, p := range result.Patterns {
		fmt.Printf("week %d/%d: %s\n", p.WeekNumber, p.Year, p.Insights)
	}
	for _, n := range result.Nodes {
		fmt.Printf("knowledge %q: %s\n", n.Topic, n.Summary)
	}
	for _, w := range result.Wisdom {
		fmt.Printf("%s: %s\n", w.Type, w.Content)
	}
	for _, r := range result.Memories {
		fmt.Printf("%s  %s\n", r.Memory.Timestamp.Format("2006-01-02 15:04"), r.Memory.RawText)
	}
	if result.Empty() {
		fmt.Println("nothing found")
	}
	return nil
}

func (a *app) search(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("search for what?")
	}
	results, err := a.store.SearchKeyword(strings.Join(args, " "), 10)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%s  %s\n", r.Memory.Timestamp.Format("2006-01-02 15:04"), r.Memory.RawText)
	}
	if len(results) == 0 {
		fmt.Println("no matches")
	}
	return nil
}

func (a *app) explain(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: recall explain <memory-uuid>")
	}
	exp, err := query.NewEngine(a.store, a.llm).ExplainReasoning(args[0])
	if err != nil {
		return err
	}
	fmt.Print(exp.Render())
	return nil
}

func (a *app) tasks() error {
	tasks, err := a.store.OpenTasks(20)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("no open tasks")
		return nil
	}
	for _, t := range tasks {
		fmt.Printf("[%s] %s  (%s)\n", t.Extracted.Urgency, t.RawText, t.UUID)
	}
	return nil
}

func (a *app) done(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: recall done <memory-uuid>")
	}
	if err := a.store.MarkTaskCompleted(args[0]); err != nil {
		return err
	}
	fmt.Println("done")
	return nil
}

func (a *app) profile(args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		active := a.prompts.ActiveProfile()
		for _, name := range a.prompts.ListProfiles() {
			marker := "  "
			if name == active {
				marker = "* "
			}
			fmt.Println(marker + name)
		}
		return nil
	case "show":
		name := ""
		if len(args) > 1 {
			name = args[1]
		}
		p := a.prompts.GetProfile(name)
		fmt.Printf("daily:\n%s\n\nweekly:\n%s\n\nmonthly:\n%s\n", p.Daily, p.Weekly, p.Monthly)
		return nil
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("usage: recall profile create <name>")
		}
		return a.prompts.CreateProfile(args[1], "")
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: recall profile delete <name>")
		}
		return a.prompts.DeleteProfile(args[1])
	case "use":
		if len(args) < 2 {
			return fmt.Errorf("usage: recall profile use <name>")
		}
		return a.prompts.SetActiveProfile(args[1])
	default:
		return fmt.Errorf("unknown profile command %q", args[0])
	}
}

func (a *app) stats() error {
	stats, err := a.store.Stats()
	if err != nil {
		return err
	}
	for _, key := range []string{"memories", "daily_consolidations", "weekly_patterns",
		"knowledge_nodes", "knowledge_edges", "wisdom"} {
		fmt.Printf("%-22s %d\n", key, stats[key])
	}
	return nil
}

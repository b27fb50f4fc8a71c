// recall-mcp exposes the memory system over MCP stdio so assistants can
// capture thoughts, search, and trace provenance.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vthunder/recall/internal/config"
	"github.com/vthunder/recall/internal/consolidate"
	"github.com/vthunder/recall/internal/llm"
	"github.com/vthunder/recall/internal/model"
	"github.com/vthunder/recall/internal/prompts"
	"github.com/vthunder/recall/internal/query"
	"github.com/vthunder/recall/internal/store"
)

type tools struct {
	store        *store.Store
	engine       *query.Engine
	consolidator *consolidate.Consolidator
}

func main() {
	godotenv.Load()

	cfg := config.Load()
	if err := os.MkdirAll(cfg.Home, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", cfg.Home, err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	pm, err := prompts.NewManager(cfg.PromptsDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load prompt profiles: %v\n", err)
		os.Exit(1)
	}

	client := llm.NewOllama(cfg.OllamaURL, cfg.Model, cfg.EmbedModel)
	t := &tools{
		store:        st,
		engine:       query.NewEngine(st, client),
		consolidator: consolidate.New(st, client, pm),
	}

	s := server.NewMCPServer(
		"recall",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(captureTool(), t.handleCapture)
	s.AddTool(searchTool(), t.handleSearch)
	s.AddTool(explainTool(), t.handleExplain)
	s.AddTool(wisdomTool(), t.handleWisdom)
	s.AddTool(consolidateTool(), t.handleConsolidate)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func captureTool() mcp.Tool {
	return mcp.NewTool("capture_thought",
		mcp.WithDescription("Capture a thought into the memory queue. It will be enriched and consolidated on the normal cadence."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The thought to capture"),
		),
	)
}

func (t *tools) handleCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	text, _ := args["text"].(string)
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	m, err := t.store.InsertMemory(text, "mcp", time.Now())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to capture: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Captured memory %s", m.UUID)), nil
}

func searchTool() mcp.Tool {
	return mcp.NewTool("search_memory",
		mcp.WithDescription("Query the layered memory with natural language. Routes to tasks, patterns, the knowledge graph, wisdom, or raw memories as appropriate."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language question"),
		),
	)
}

func (t *tools) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	q, _ := args["query"].(string)
	if q == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	result, err := t.engine.Query(q, 10)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query type: %s\n", result.Type)
	for _, task := range result.Tasks {
		fmt.Fprintf(&b, "- task (%s): %s\n", task.Extracted.Urgency, task.RawText)
	}
	for _, p := range result.Patterns {
		fmt.Fprintf(&b, "- week %d/%d: %s\n", p.WeekNumber, p.Year, p.Insights)
	}
	for _, n := range result.Nodes {
		fmt.Fprintf(&b, "- knowledge %q: %s\n", n.Topic, n.Summary)
	}
	for _, w := range result.Wisdom {
		fmt.Fprintf(&b, "- %s: %s\n", w.Type, w.Content)
	}
	for _, r := range result.Memories {
		fmt.Fprintf(&b, "- [%s] %s\n", r.Memory.Timestamp.Format("2006-01-02"), r.Memory.RawText)
	}
	if result.Empty() {
		b.WriteString("No results.\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func explainTool() mcp.Tool {
	return mcp.NewTool("explain_memory",
		mcp.WithDescription("Trace a memory forward through its consolidation layers: daily summary, knowledge node, and derived wisdom."),
		mcp.WithString("memory_id",
			mcp.Required(),
			mcp.Description("UUID of the memory to trace"),
		),
	)
}

func (t *tools) handleExplain(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	id, _ := args["memory_id"].(string)
	if id == "" {
		return mcp.NewToolResultError("memory_id is required"), nil
	}

	exp, err := t.engine.ExplainReasoning(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("trace failed: %v", err)), nil
	}
	return mcp.NewToolResultText(exp.Render()), nil
}

func wisdomTool() mcp.Tool {
	return mcp.NewTool("get_wisdom",
		mcp.WithDescription("List learned principles and heuristics, optionally filtered by a topic term."),
		mcp.WithString("topic",
			mcp.Description("Filter term; omit for everything"),
		),
	)
}

func (t *tools) handleWisdom(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	topic, _ := args["topic"].(string)

	var all []*model.Wisdom
	var err error
	if topic != "" {
		all, err = t.store.RelevantWisdom(topic, 10)
	} else {
		all, err = t.store.AllWisdom()
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}
	if len(all) == 0 {
		return mcp.NewToolResultText("No wisdom recorded yet."), nil
	}

	var b strings.Builder
	for _, w := range all {
		fmt.Fprintf(&b, "[%s] %s (confidence %.1f, evidence %d)\n", w.Type, w.Content, w.Confidence, w.EvidenceCount)
		if w.Context != "" {
			fmt.Fprintf(&b, "  applies when: %s\n", w.Context)
		}
		if w.Exceptions != "" {
			fmt.Fprintf(&b, "  except: %s\n", w.Exceptions)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func consolidateTool() mcp.Tool {
	return mcp.NewTool("consolidate_day",
		mcp.WithDescription("Run daily consolidation for a date, optionally with a custom synthesis prompt."),
		mcp.WithString("date",
			mcp.Description("Date to consolidate (YYYY-MM-DD). Default: yesterday"),
		),
		mcp.WithString("custom_prompt",
			mcp.Description("Custom synthesis prompt; forces re-synthesis of an existing record"),
		),
		mcp.WithBoolean("skip_synthesis",
			mcp.Description("Store infrastructure only, without a narrative. Default: false"),
		),
	)
}

func (t *tools) handleConsolidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	dateStr, _ := args["date"].(string)
	customPrompt, _ := args["custom_prompt"].(string)
	skip, _ := args["skip_synthesis"].(bool)

	day := time.Now().AddDate(0, 0, -1)
	if dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("bad date %q: %v", dateStr, err)), nil
		}
		day = parsed
	}

	record, err := t.consolidator.ConsolidateDay(day, consolidate.Options{
		CustomPrompt:  customPrompt,
		SkipSynthesis: skip,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("consolidation failed: %v", err)), nil
	}
	if record == nil {
		return mcp.NewToolResultText(fmt.Sprintf("No memories on %s.", day.Format("2006-01-02"))), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Consolidated %s: importance %.1f, %d memories.\n%s",
		record.Date, record.ImportanceScore, len(record.SourceMemoryIDs), record.Narrative)), nil
}

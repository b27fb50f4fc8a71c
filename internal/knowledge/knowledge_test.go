package knowledge

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vthunder/recall/internal/model"
	"github.com/vthunder/recall/internal/store"
)

type mockLLM struct {
	responses []string
	err       error
	calls     int
	vectors   map[string][]float64
}

func (m *mockLLM) Generate(prompt string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "{}", nil
	}
	r := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return r, nil
}

func (m *mockLLM) Embed(text string) ([]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float64{1, 0, 0}, nil
}

func setupSynthesizer(t *testing.T) (*Synthesizer, *store.Store, *mockLLM, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "recall-knowledge-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	s, err := store.Open(filepath.Join(tmpDir, "memory.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open store: %v", err)
	}
	llm := &mockLLM{vectors: make(map[string][]float64)}
	return New(s, llm), s, llm, func() {
		s.Close()
		os.RemoveAll(tmpDir)
	}
}

func TestClusterEmbeddings(t *testing.T) {
	embeddings := [][]float64{
		{1, 0, 0},
		{0.98, 0.199, 0}, // close to the first
		{0, 1, 0},        // isolated, should be noise
	}

	clusters := ClusterEmbeddings(embeddings)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if len(clusters[0]) != 2 || clusters[0][0] != 0 || clusters[0][1] != 1 {
		t.Errorf("expected cluster {0,1}, got %v", clusters[0])
	}
}

func TestClusterEmbeddingsAllNoise(t *testing.T) {
	embeddings := [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	if clusters := ClusterEmbeddings(embeddings); len(clusters) != 0 {
		t.Errorf("orthogonal vectors should all be noise, got %v", clusters)
	}
}

func TestCoherence(t *testing.T) {
	embeddings := [][]float64{{1, 0}, {1, 0}}
	if got := Coherence([]int{0, 1}, embeddings); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("identical members should be fully coherent, got %f", got)
	}
	if got := Coherence([]int{0}, embeddings); got != 0.8 {
		t.Errorf("singleton coherence should default, got %f", got)
	}
}

func TestRelateZeroOverlapNoEdge(t *testing.T) {
	a := &model.KnowledgeNode{ID: 1}
	a.Connections.Topics = []string{"search"}
	a.Connections.People = []string{"Alice"}
	b := &model.KnowledgeNode{ID: 2}
	b.Connections.Topics = []string{"billing"}
	b.Connections.People = []string{"Bob"}

	edge := Relate(a, b)
	if edge.Strength != 0 {
		t.Errorf("disjoint nodes should score 0, got %f", edge.Strength)
	}
	if edge.Strength > EdgeStrengthThreshold {
		t.Error("zero-overlap edge must not clear the persistence threshold")
	}
}

func TestRelateTypePriority(t *testing.T) {
	node := func(id int64, topics, people, questions, insights []string) *model.KnowledgeNode {
		n := &model.KnowledgeNode{ID: id, Questions: questions, Insights: insights}
		n.Connections.Topics = topics
		n.Connections.People = people
		return n
	}

	cases := []struct {
		name string
		a, b *model.KnowledgeNode
		want model.EdgeType
	}{
		{
			"answers beats everything",
			node(1, []string{"caching"}, []string{"Alice"},
				[]string{"How should we handle cache invalidation?"}, nil),
			node(2, []string{"caching"}, []string{"Alice"},
				nil, []string{"Handle cache invalidation with versioned keys"}),
			model.EdgeAnswers,
		},
		{
			"shared people",
			node(3, []string{"search"}, []string{"Alice"}, nil, nil),
			node(4, []string{"billing"}, []string{"Alice"}, nil, nil),
			model.EdgeSamePeople,
		},
		{
			"same topic",
			node(5, []string{"search"}, nil, nil, nil),
			node(6, []string{"search"}, nil, nil, nil),
			model.EdgeSameTopic,
		},
		{
			"related topic",
			node(7, []string{"search", "ranking"}, nil, nil, nil),
			node(8, []string{"search", "indexing"}, nil, nil, nil),
			model.EdgeRelatedTopic,
		},
		{
			"associated",
			node(9, []string{"search", "ranking", "latency", "caching"}, nil, nil, nil),
			node(10, []string{"search", "billing", "invoices", "planning"}, nil, nil, nil),
			model.EdgeAssociated,
		},
	}
	for _, tc := range cases {
		if got := Relate(tc.a, tc.b); got.Type != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got.Type, tc.want)
		}
	}
}

func TestRankByCentroid(t *testing.T) {
	members := []*model.Memory{
		{UUID: "a"}, {UUID: "b"}, {UUID: "outlier"},
	}
	vecs := [][]float64{
		{1, 0, 0},
		{1, 0, 0},
		{0, 1, 0},
	}

	ranked := rankByCentroid(members, vecs)
	if ranked[2].UUID != "outlier" {
		t.Errorf("least central member should rank last, got %s", ranked[2].UUID)
	}
	if ranked[0].UUID != "a" || ranked[1].UUID != "b" {
		t.Errorf("ties should keep input order, got %s, %s", ranked[0].UUID, ranked[1].UUID)
	}
}

func TestQuestionAnswered(t *testing.T) {
	questions := []string{"How should we handle cache invalidation?"}
	if !questionAnswered(questions, []string{"Handle cache invalidation with versioned keys"}) {
		t.Error("two shared significant words should count as answered")
	}
	if questionAnswered(questions, []string{"Shipped the billing invoice cleanup"}) {
		t.Error("disjoint insight should not count as answered")
	}
	if questionAnswered(questions, []string{"The cache is warm"}) {
		t.Error("a single shared word is not enough")
	}
}

func TestBuildKnowledgeNodes(t *testing.T) {
	k, s, llm, cleanup := setupSynthesizer(t)
	defer cleanup()

	llm.vectors["Tuned the search ranker this morning"] = []float64{1, 0, 0}
	llm.vectors["More search ranking experiments after lunch"] = []float64{0.98, 0.199, 0}
	llm.vectors["Booked the venue for the offsite"] = []float64{0, 1, 0}
	llm.responses = []string{`{
		"core_concept": "Search ranking iteration",
		"key_insights": ["Small ranker tweaks move engagement"],
		"decisions": ["Keep the experiment framework"],
		"open_questions": ["What metric should gate launches?"],
		"practical_applications": ["Apply the same loop to recommendations"],
		"relationships": []
	}`}

	now := time.Now()
	var uuids []string
	for i, text := range []string{
		"Tuned the search ranker this morning",
		"More search ranking experiments after lunch",
		"Booked the venue for the offsite",
	} {
		m, err := s.InsertMemory(text, "text", now.Add(-time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if err := s.CompleteMemory(m.UUID, model.ExtractedData{Topics: []string{"search"}}, ""); err != nil {
			t.Fatalf("complete failed: %v", err)
		}
		uuids = append(uuids, m.UUID)
	}

	nodes, err := k.BuildKnowledgeNodes(30)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}

	node := nodes[0]
	if node.Topic != "Search ranking iteration" {
		t.Errorf("topic not taken from distillation: %q", node.Topic)
	}
	if len(node.SourceMemoryIDs) != 2 {
		t.Errorf("expected 2 source memories, got %v", node.SourceMemoryIDs)
	}
	if node.Confidence <= CoherenceThreshold {
		t.Errorf("stored confidence should be the cluster coherence, got %f", node.Confidence)
	}

	// Provenance lookup finds the node by member uuid
	found, err := s.KnowledgeNodeForMemory(uuids[0])
	if err != nil || found == nil {
		t.Fatalf("provenance lookup failed: %v", err)
	}
	if found.ID != node.ID {
		t.Errorf("wrong node for memory: %d vs %d", found.ID, node.ID)
	}
}

func TestBuildKnowledgeNodesSkipsBadDistillation(t *testing.T) {
	k, s, llm, cleanup := setupSynthesizer(t)
	defer cleanup()

	llm.responses = []string{"I could not produce structured output, sorry."}

	now := time.Now()
	for _, text := range []string{"thinking about budgets", "more budget thinking"} {
		m, err := s.InsertMemory(text, "text", now)
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if err := s.CompleteMemory(m.UUID, model.ExtractedData{}, ""); err != nil {
			t.Fatalf("complete failed: %v", err)
		}
	}

	nodes, err := k.BuildKnowledgeNodes(30)
	if err != nil {
		t.Fatalf("bad distillation should not fail the batch: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("unparseable cluster should be skipped, got %d nodes", len(nodes))
	}
}

func TestDecisionHeuristics(t *testing.T) {
	confident := func(conf float64, decision string) *model.KnowledgeNode {
		return &model.KnowledgeNode{Confidence: conf, Decisions: []string{decision}}
	}

	nodes := []*model.KnowledgeNode{
		confident(0.85, "Use feature flags for rollouts"),
		confident(0.90, "Use feature flags when shipping risky changes"),
		confident(0.72, "Rewrite the importer later"),
		confident(0.73, "Rewrite the importer in stages"),
	}

	heuristics := decisionHeuristics(nodes)
	if len(heuristics) != 1 {
		t.Fatalf("expected 1 heuristic, got %d", len(heuristics))
	}
	h := heuristics[0]
	if h.Content != "When facing use feature flags, follow similar approach as before" {
		t.Errorf("unexpected content: %q", h.Content)
	}
	if h.SuccessRate != 1.0 || h.EvidenceCount != 2 {
		t.Errorf("evidence wrong: rate %f, count %d", h.SuccessRate, h.EvidenceCount)
	}
	if h.Type != model.WisdomHeuristic {
		t.Errorf("expected heuristic type, got %s", h.Type)
	}
}

func TestThemePrinciples(t *testing.T) {
	llm := &mockLLM{responses: []string{`{
		"statement": "Pairing on hard problems pays off",
		"applies_when": "work feels stuck",
		"exceptions": "trivial tasks"
	}`}}
	k := New(nil, llm)

	week := func(theme string, occurrences int) *model.WeeklyPattern {
		return &model.WeeklyPattern{RecurringThemes: []model.Theme{
			{Theme: theme, Sentiment: "positive", Occurrences: occurrences},
		}}
	}
	weeks := []*model.WeeklyPattern{
		week("pairing", 3), week("pairing", 2), week("pairing", 3),
	}

	principles := k.themePrinciples(weeks)
	if len(principles) != 1 {
		t.Fatalf("expected 1 principle, got %d", len(principles))
	}
	p := principles[0]
	if p.Content != "Pairing on hard problems pays off" {
		t.Errorf("unexpected content: %q", p.Content)
	}
	if p.EvidenceCount != 8 {
		t.Errorf("expected 8 occurrences of evidence, got %d", p.EvidenceCount)
	}
	if p.Confidence != 0.8 { // min(8/10, 0.9)
		t.Errorf("expected confidence 0.8, got %f", p.Confidence)
	}

	// Two weeks is not enough
	few := k.themePrinciples(weeks[:2])
	if len(few) != 0 {
		t.Errorf("2 weeks should not yield a principle, got %d", len(few))
	}
}

func TestProductivityPrinciple(t *testing.T) {
	week := func(hours ...int) *model.WeeklyPattern {
		w := &model.WeeklyPattern{}
		w.Productivity.PeakHours = hours
		return w
	}

	p := productivityPrinciple([]*model.WeeklyPattern{
		week(9, 14), week(9, 10), week(9, 15),
	})
	if p == nil {
		t.Fatal("consistent peak hour across 3 weeks should yield a principle")
	}
	if p.Confidence != 0.8 || p.EvidenceCount != 3 {
		t.Errorf("unexpected principle: %+v", p)
	}

	if productivityPrinciple([]*model.WeeklyPattern{week(9), week(9)}) != nil {
		t.Error("2 weeks should not be enough evidence")
	}
}

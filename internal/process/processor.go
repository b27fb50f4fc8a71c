// Package process drains the pending-memory queue: extraction, embedding,
// and status transitions for each captured thought.
package process

import (
	"fmt"

	"github.com/vthunder/recall/internal/extract"
	"github.com/vthunder/recall/internal/llm"
	"github.com/vthunder/recall/internal/logging"
	"github.com/vthunder/recall/internal/store"
)

const defaultBatchSize = 20

// Stats summarizes one queue-processing run
type Stats struct {
	Processed     int
	Failed        int
	TasksDetected int
}

// Processor runs pending memories through extraction and embedding
type Processor struct {
	store     *store.Store
	llm       llm.Client
	extractor *extract.Extractor
}

// New creates a processor
func New(s *store.Store, client llm.Client) *Processor {
	return &Processor{
		store:     s,
		llm:       client,
		extractor: extract.New(client),
	}
}

// ProcessPending drains up to batchSize pending memories. Per-memory
// failures mark that memory failed and continue; only store-level errors
// abort the batch.
func (p *Processor) ProcessPending(batchSize int) (Stats, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var stats Stats
	pending, err := p.store.PendingMemories(batchSize)
	if err != nil {
		return stats, fmt.Errorf("failed to fetch pending memories: %w", err)
	}
	if len(pending) == 0 {
		return stats, nil
	}
	logging.Info("process", "processing %d pending memories", len(pending))

	for _, m := range pending {
		if err := p.store.MarkProcessing(m.UUID); err != nil {
			logging.Warn("process", "failed to claim %s: %v", m.UUID, err)
			stats.Failed++
			continue
		}

		extracted := p.extractor.Extract(m.RawText)
		if err := p.store.CompleteMemory(m.UUID, extracted, ""); err != nil {
			logging.Warn("process", "failed to store extraction for %s: %v", m.UUID, err)
			if failErr := p.store.FailMemory(m.UUID, err.Error()); failErr != nil {
				logging.Warn("process", "failed to mark %s failed: %v", m.UUID, failErr)
			}
			stats.Failed++
			continue
		}
		stats.Processed++
		if extracted.Actionable {
			stats.TasksDetected++
		}

		// Embedding is best-effort; a missing vector only degrades
		// semantic search until knowledge synthesis fills it in
		p.embed(m.UUID, m.RawText)
	}

	logging.Info("process", "processed %d, failed %d, %d tasks detected",
		stats.Processed, stats.Failed, stats.TasksDetected)
	return stats, nil
}

func (p *Processor) embed(memUUID, text string) {
	vec, err := p.llm.Embed(text)
	if err != nil {
		logging.Debug("process", "embedding for %s unavailable: %v", memUUID, err)
		return
	}
	if err := p.store.StoreEmbedding(memUUID, vec); err != nil {
		logging.Warn("process", "failed to store embedding for %s: %v", memUUID, err)
	}
}

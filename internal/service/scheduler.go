// Package service runs the background cadence: queue draining plus the
// daily, weekly, knowledge, and wisdom consolidation jobs.
package service

import (
	"os"
	"sync"
	"time"

	psutil "github.com/shirou/gopsutil/v3/process"

	"github.com/vthunder/recall/internal/consolidate"
	"github.com/vthunder/recall/internal/knowledge"
	"github.com/vthunder/recall/internal/logging"
	"github.com/vthunder/recall/internal/process"
)

// Cadence constants. Hours are local time; the tick interval bounds how
// late a job can fire.
const (
	tickInterval      = time.Minute
	queueInterval     = 5 * time.Minute
	heartbeatInterval = 10 * time.Minute

	dailyHour     = 2
	weeklyHour    = 3
	knowledgeHour = 4
	wisdomHour    = 5

	knowledgeWindowDays = 30
	wisdomWindowMonths  = 3
	catchUpDays         = 7
)

// Scheduler drives the periodic jobs from a single ticker loop. Each job
// runs on its own goroutine so a long LLM call never blocks the cadence
// check, but a job never overlaps itself.
type Scheduler struct {
	processor    *process.Processor
	consolidator *consolidate.Consolidator
	synthesizer  *knowledge.Synthesizer

	mu      sync.Mutex
	running map[string]bool

	lastQueue     time.Time
	lastHeartbeat time.Time
	lastDaily     string // date key of the last daily run
	lastWeekly    string
	lastKnowledge string
	lastWisdom    string

	stop chan struct{}
	done chan struct{}
}

// NewScheduler wires the background jobs
func NewScheduler(p *process.Processor, c *consolidate.Consolidator, k *knowledge.Synthesizer) *Scheduler {
	return &Scheduler{
		processor:    p,
		consolidator: c,
		synthesizer:  k,
		running:      make(map[string]bool),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start begins the cadence loop. Returns immediately; Stop shuts it down.
func (s *Scheduler) Start() {
	logging.Info("scheduler", "started: queue every %s, daily %02d:00, weekly Sun %02d:00, knowledge monthly %02d:00, wisdom quarterly %02d:00",
		queueInterval, dailyHour, weeklyHour, knowledgeHour, wisdomHour)
	go s.loop()
}

// Stop halts the cadence loop and waits for it to exit. In-flight jobs
// finish on their own goroutines.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
	logging.Info("scheduler", "stopped")
}

func (s *Scheduler) loop() {
	defer close(s.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	// Drain anything queued while the service was down
	s.check(time.Now())

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.check(now)
		}
	}
}

func (s *Scheduler) check(now time.Time) {
	if now.Sub(s.lastQueue) >= queueInterval {
		s.lastQueue = now
		s.spawn("queue", func() {
			if _, err := s.processor.ProcessPending(0); err != nil {
				logging.Warn("scheduler", "queue processing: %v", err)
			}
		})
	}

	if now.Hour() >= dailyHour {
		if key := now.Format("2006-01-02"); s.lastDaily != key {
			s.lastDaily = key
			s.spawn("daily", func() {
				processed, failed := s.consolidator.ConsolidateRecentDays(catchUpDays, consolidate.Options{})
				logging.Info("scheduler", "daily consolidation: %d processed, %d failed", processed, failed)
			})
		}
	}

	if now.Weekday() == time.Sunday && now.Hour() >= weeklyHour {
		if key := now.Format("2006-01-02"); s.lastWeekly != key {
			s.lastWeekly = key
			s.spawn("weekly", func() {
				year, week := now.AddDate(0, 0, -7).ISOWeek()
				if _, err := s.consolidator.IdentifyPatterns(week, year, consolidate.Options{}); err != nil {
					logging.Warn("scheduler", "weekly analysis: %v", err)
				}
			})
		}
	}

	if now.Day() == 1 && now.Hour() >= knowledgeHour {
		if key := now.Format("2006-01"); s.lastKnowledge != key {
			s.lastKnowledge = key
			s.spawn("knowledge", func() {
				if _, err := s.synthesizer.BuildKnowledgeNodes(knowledgeWindowDays); err != nil {
					logging.Warn("scheduler", "knowledge synthesis: %v", err)
				}
			})
		}
	}

	if now.Day() == 1 && isQuarterStart(now.Month()) && now.Hour() >= wisdomHour {
		if key := now.Format("2006-01"); s.lastWisdom != key {
			s.lastWisdom = key
			s.spawn("wisdom", func() {
				if _, err := s.synthesizer.ExtractWisdom(wisdomWindowMonths); err != nil {
					logging.Warn("scheduler", "wisdom extraction: %v", err)
				}
			})
		}
	}

	if now.Sub(s.lastHeartbeat) >= heartbeatInterval {
		s.lastHeartbeat = now
		s.heartbeat()
	}
}

// spawn runs a named job on its own goroutine, skipping the trigger when
// the previous run of the same job is still going
func (s *Scheduler) spawn(name string, job func()) {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		logging.Debug("scheduler", "%s still running, skipping trigger", name)
		return
	}
	s.running[name] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Warn("scheduler", "%s panicked: %v", name, r)
			}
			s.mu.Lock()
			s.running[name] = false
			s.mu.Unlock()
		}()
		job()
	}()
}

// heartbeat logs the service's own resource footprint
func (s *Scheduler) heartbeat() {
	p, err := psutil.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}
	var rssMB float64
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		rssMB = float64(mem.RSS) / (1024 * 1024)
	}
	cpu, _ := p.CPUPercent()
	logging.Debug("scheduler", "heartbeat: rss=%.1fMB cpu=%.1f%%", rssMB, cpu)
}

func isQuarterStart(m time.Month) bool {
	switch m {
	case time.January, time.April, time.July, time.October:
		return true
	}
	return false
}

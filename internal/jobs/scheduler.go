package jobs

import (
	"context"
	"fmt"
	"log/slog"
)

// Lane names. The fan-out lane runs one document orchestrator at a time
// since rendering is memory-intensive; the extraction lane bounds
// concurrent vision-model calls across all in-flight documents.
const (
	LaneFanout     = "fanout"
	LaneExtraction = "extraction"
)

// Scheduler owns the lanes and routes tasks onto them.
type Scheduler struct {
	lanes  map[string]*Lane
	order  []string
	logger *slog.Logger
}

// SchedulerConfig configures a new scheduler.
type SchedulerConfig struct {
	Logger            *slog.Logger
	FanoutWorkers     int // default 1
	ExtractionWorkers int // default 3
	QueueSize         int // per-lane queue buffer (default 1000)
}

// NewScheduler creates a scheduler with the two standard lanes.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fanoutWorkers := cfg.FanoutWorkers
	if fanoutWorkers <= 0 {
		fanoutWorkers = 1
	}
	extractionWorkers := cfg.ExtractionWorkers
	if extractionWorkers <= 0 {
		extractionWorkers = 3
	}

	s := &Scheduler{
		lanes:  make(map[string]*Lane),
		logger: logger,
	}
	s.addLane(NewLane(LaneConfig{
		Name:        LaneFanout,
		Logger:      logger,
		WorkerCount: fanoutWorkers,
		QueueSize:   cfg.QueueSize,
	}))
	s.addLane(NewLane(LaneConfig{
		Name:        LaneExtraction,
		Logger:      logger,
		WorkerCount: extractionWorkers,
		QueueSize:   cfg.QueueSize,
	}))

	return s
}

func (s *Scheduler) addLane(l *Lane) {
	s.lanes[l.Name()] = l
	s.order = append(s.order, l.Name())
}

// Start launches all lanes. Blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler starting", "lanes", s.order)
	for _, name := range s.order {
		go s.lanes[name].Start(ctx)
	}
	<-ctx.Done()
	s.logger.Info("scheduler stopping")
}

// Submit enqueues a task onto the named lane.
func (s *Scheduler) Submit(lane string, task Task) error {
	l, ok := s.lanes[lane]
	if !ok {
		return fmt.Errorf("unknown lane: %s", lane)
	}
	return l.Submit(task)
}

// Status reports all lane states in registration order.
func (s *Scheduler) Status() []LaneStatus {
	statuses := make([]LaneStatus, 0, len(s.order))
	for _, name := range s.order {
		statuses = append(statuses, s.lanes[name].Status())
	}
	return statuses
}

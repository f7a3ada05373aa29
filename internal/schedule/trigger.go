package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Trigger periodically kicks the engine's catch-up run, replacing the
// browser original's global interval timer and visibility listener with
// an explicit component owning its own lifecycle. It is only a caller:
// all correctness lives in Engine.RunDue.
type Trigger struct {
	engine   *Engine
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	runner *cron.Cron
}

// NewTrigger creates a trigger firing every interval.
func NewTrigger(engine *Engine, interval time.Duration, logger *zap.Logger) *Trigger {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Trigger{engine: engine, interval: interval, logger: logger}
}

// Start begins the periodic schedule. Calling Start on a running
// trigger is a no-op.
func (t *Trigger) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", t.interval), func() {
		t.kick("timer")
	}); err != nil {
		return fmt.Errorf("register run-due schedule: %w", err)
	}
	c.Start()
	t.runner = c

	t.logger.Info("recurring trigger started", zap.Duration("interval", t.interval))
	return nil
}

// Stop halts the periodic schedule and waits for an in-flight firing to
// finish.
func (t *Trigger) Stop() {
	t.mu.Lock()
	runner := t.runner
	t.runner = nil
	t.mu.Unlock()

	if runner == nil {
		return
	}
	<-runner.Stop().Done()
	t.logger.Info("recurring trigger stopped")
}

// Resume kicks an immediate run, the server-side analogue of the app
// regaining visibility after days of inactivity. Also called once at
// startup so missed occurrences are caught up before the first tick.
func (t *Trigger) Resume() {
	go t.kick("resume")
}

func (t *Trigger) kick(source string) {
	// No deadline: a slow store slows the batch but never aborts it
	// mid-rule. The engine bounds per-rule work with its catch-up guard.
	executed, err := t.engine.RunDue(context.Background())
	if err != nil {
		t.logger.Error("recurring run failed", zap.String("source", source), zap.Error(err))
		return
	}
	if executed > 0 {
		t.logger.Info("recurring run complete",
			zap.String("source", source),
			zap.Int("occurrences", executed),
		)
	}
}

package pulse

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alanyang/shard-coordinator/internal/service/coordination"
)

// LogProcessor reports instruction changes and keeps the latest one. It
// stands in for a real event processor.
type LogProcessor struct {
	logger *slog.Logger

	mu   sync.Mutex
	last *coordination.Instruction
}

func NewLogProcessor(logger *slog.Logger) *LogProcessor {
	return &LogProcessor{logger: logger}
}

func (p *LogProcessor) Apply(ctx context.Context, inst coordination.Instruction) {
	p.mu.Lock()
	prev := p.last
	p.last = &inst
	p.mu.Unlock()

	if prev != nil && prev.State == inst.State && sameAssignment(prev, &inst) {
		return
	}
	attrs := []any{"state", inst.State, "cluster", inst.Cluster}
	if inst.Assignment != nil {
		attrs = append(attrs, "shard", inst.Assignment.String())
	}
	p.logger.InfoContext(ctx, "processor instructed", attrs...)
}

// Current returns the last instruction applied.
func (p *LogProcessor) Current() (coordination.Instruction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return coordination.Instruction{}, false
	}
	return *p.last, true
}

func sameAssignment(a, b *coordination.Instruction) bool {
	if a.Assignment == nil || b.Assignment == nil {
		return a.Assignment == b.Assignment
	}
	return *a.Assignment == *b.Assignment
}

package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates predictable report IDs: "<prefix>-0001", "<prefix>-0002", ...
//
// The same scenario with a fresh SequenceIDs produces the same IDs every run,
// which keeps golden traces byte-identical.
//
// Thread-safety: Generate is safe for concurrent use.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a generator. An empty prefix means "report".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "report"
	}
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *SequenceIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

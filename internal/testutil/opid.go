package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator yields operation ids "<prefix>-0001", "<prefix>-0002", ...
// It satisfies claims.OperationIDGenerator.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator. An empty prefix means "op".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "op"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// FixedGenerator returns the same id every time.
type FixedGenerator string

// Generate returns the fixed id.
func (g FixedGenerator) Generate() string {
	return string(g)
}

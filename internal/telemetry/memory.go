package telemetry

import (
	"context"
	"sync"
)

// Record is one captured signal.
type Record struct {
	Name   string
	Fields map[string]any
}

// MemorySink records signals in arrival order. It backs assertions in
// tests and the diagnostic endpoint of the in-memory configuration.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Track(_ context.Context, name string, fields map[string]any) {
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	s.mu.Lock()
	s.records = append(s.records, Record{Name: name, Fields: cp})
	s.mu.Unlock()
}

// Records returns a snapshot in arrival order.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// CountOf returns how many signals with the given name were captured.
func (s *MemorySink) CountOf(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.Name == name {
			n++
		}
	}
	return n
}

// Last returns the most recent signal with the given name.
func (s *MemorySink) Last(name string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Name == name {
			return s.records[i], true
		}
	}
	return Record{}, false
}

// Reset drops everything captured so far.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()
}

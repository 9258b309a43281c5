// Package memory provides an event publisher that keeps events in process.
package memory

import (
	"context"
	"sync"

	interfaces "github.com/sheikh-saqib/dao-treasury-ledger/internal/interfaces"
)

// Record is one published event.
type Record struct {
	Topic string
	Event any
}

// Recorder keeps every published event in order and never drops any, so
// it suits tests rather than long-running processes.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(ctx context.Context, topic string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Topic: topic, Event: event})
	return nil
}

// Records returns a copy of everything published so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make([]Record, len(r.records))
	copy(copied, r.records)
	return copied
}

// Topics returns the topic of every record, in publish order.
func (r *Recorder) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	topics := make([]string, len(r.records))
	for i, rec := range r.records {
		topics[i] = rec.Topic
	}
	return topics
}

var _ interfaces.EventPublisher = (*Recorder)(nil)

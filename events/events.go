// Package events delivers the notifications emitted by successful ledger
// operations to observers.
package events

import (
	"encoding/json"
	"sync"

	"github.com/vocdoni/mixvote/log"
	"github.com/vocdoni/mixvote/types"
)

// Sink receives every event after the operation that produced it has been
// committed.
type Sink interface {
	Emit(types.Event)
}

// Record is an event together with its position in the stream and the block
// height at which it was emitted.
type Record struct {
	Seq   uint64            `json:"seq"`
	Block types.BlockNumber `json:"block"`
	Name  string            `json:"name"`
	Data  types.Event       `json:"data"`
}

// BlockSource returns the height used to stamp the recorded events.
type BlockSource func() types.BlockNumber

// Recorder keeps the emitted events in memory, numbered from zero. Old
// records are dropped once the capacity is exceeded.
type Recorder struct {
	mu       sync.RWMutex
	records  []Record
	next     uint64
	capacity int
	height   BlockSource
}

// DefaultRecorderCapacity is the number of records kept by NewRecorder when
// capacity is not positive.
const DefaultRecorderCapacity = 10000

// NewRecorder creates a Recorder. height may be nil.
func NewRecorder(capacity int, height BlockSource) *Recorder {
	if capacity <= 0 {
		capacity = DefaultRecorderCapacity
	}
	return &Recorder{capacity: capacity, height: height}
}

// Emit implements Sink.
func (r *Recorder) Emit(ev types.Event) {
	var block types.BlockNumber
	if r.height != nil {
		block = r.height()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{
		Seq:   r.next,
		Block: block,
		Name:  ev.EventName(),
		Data:  ev,
	})
	r.next++
	if len(r.records) > r.capacity {
		r.records = r.records[len(r.records)-r.capacity:]
	}
}

// Since returns the records whose sequence number is greater or equal than
// from, oldest first.
func (r *Recorder) Since(from uint64) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Record
	for _, rec := range r.records {
		if rec.Seq >= from {
			out = append(out, rec)
		}
	}
	return out
}

// Events returns the payloads of all the retained records.
func (r *Recorder) Events() []types.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	evs := make([]types.Event, 0, len(r.records))
	for _, rec := range r.records {
		evs = append(evs, rec.Data)
	}
	return evs
}

// Last returns the most recent event, or nil.
func (r *Recorder) Last() types.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.records) == 0 {
		return nil
	}
	return r.records[len(r.records)-1].Data
}

// Len returns the total number of events emitted so far.
func (r *Recorder) Len() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.next
}

// LogSink writes every event to the debug log.
type LogSink struct{}

// Emit implements Sink.
func (LogSink) Emit(ev types.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Warnw("cannot encode event", "name", ev.EventName(), "error", err.Error())
		return
	}
	log.Debugw("event", "name", ev.EventName(), "data", string(data))
}

// Multi forwards events to several sinks, in order.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(ev types.Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(types.Event)

// Emit implements Sink.
func (f SinkFunc) Emit(ev types.Event) {
	f(ev)
}

package querycounter

import (
	"sync"
	"time"
)

// LedgerRecord aggregates all executions of one statement shape.
type LedgerRecord struct {
	Key        NormalizedKey
	Count      int
	SampleText string
	Stacks     []Stack
	FirstSeen  time.Time
	LastSeen   time.Time
}

// Ledger maps normalized keys to their records for one tracking interval.
// Insertion order is preserved, so snapshots and reports are deterministic.
// All methods are safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	records map[NormalizedKey]*LedgerRecord
	order   []NormalizedKey
	now     func() time.Time
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		records: make(map[NormalizedKey]*LedgerRecord),
		order:   make([]NormalizedKey, 0),
		now:     time.Now,
	}
}

// Record counts one execution of key.
// The first occurrence of a key stores rawText as the sample; empty stacks are counted but not stored.
func (l *Ledger) Record(key NormalizedKey, rawText string, stack Stack) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	record, exists := l.records[key]
	if !exists {
		record = &LedgerRecord{
			Key:        key,
			SampleText: rawText,
			Stacks:     make([]Stack, 0),
			FirstSeen:  now,
		}
		l.records[key] = record
		l.order = append(l.order, key)
	}

	record.Count++
	record.LastSeen = now

	if len(stack) > 0 {
		record.Stacks = append(record.Stacks, stack)
	}
}

// Snapshot returns a deep copy of all records in insertion order.
func (l *Ledger) Snapshot() []LedgerRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := make([]LedgerRecord, 0, len(l.order))
	for _, key := range l.order {
		snapshot = append(snapshot, l.records[key].copy())
	}

	return snapshot
}

// Get returns a copy of the record for key.
func (l *Ledger) Get(key NormalizedKey) (LedgerRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, exists := l.records[key]
	if !exists {
		return LedgerRecord{}, false
	}

	return record.copy(), true
}

// Len returns the number of distinct keys.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.order)
}

// Total returns the number of recorded executions over all keys.
func (l *Ledger) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, record := range l.records {
		total += record.Count
	}

	return total
}

// Reset removes all records.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = make(map[NormalizedKey]*LedgerRecord)
	l.order = l.order[:0]
}

func (r *LedgerRecord) copy() LedgerRecord {
	c := *r
	c.Stacks = make([]Stack, len(r.Stacks))

	for i, stack := range r.Stacks {
		c.Stacks[i] = append(Stack(nil), stack...)
	}

	return c
}

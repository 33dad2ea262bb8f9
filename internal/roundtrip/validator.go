package roundtrip

import "sync"

// Stats summarizes one scenario run.
type Stats struct {
	Expected         int
	Total            int
	Unique           int
	Duplicates       int
	OutOfOrder       int
	Missing          int
	ProducerErrors   int
	ConsumerErrors   int
	ValidationErrors int
}

// Failed reports whether the run lost, repeated or reordered messages or hit
// any error.
func (s Stats) Failed() bool {
	return s.Missing > 0 ||
		s.Duplicates > 0 ||
		s.OutOfOrder > 0 ||
		s.ProducerErrors > 0 ||
		s.ConsumerErrors > 0 ||
		s.ValidationErrors > 0
}

// validator tracks the sequence numbers seen per producer. It is shared by
// all consumers of a scenario. Duplicates are counted across consumers while
// ordering is only checked within what a single consumer received, since
// shared subscriptions spread one producer's messages over several consumers.
type validator struct {
	mu         sync.Mutex
	seen       map[string]map[int]struct{}
	lastSeq    map[stream]int
	total      int
	unique     int
	duplicates int
	outOfOrder int
}

// stream is the sequence one consumer sees from one producer.
type stream struct {
	consumer int
	producer string
}

func newValidator() *validator {
	return &validator{
		seen:    make(map[string]map[int]struct{}),
		lastSeq: make(map[stream]int),
	}
}

// record registers one message received by consumer and returns the number
// of unique messages seen so far.
func (v *validator) record(consumer int, producer string, seq int) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.total++
	seen := v.seen[producer]
	if seen == nil {
		seen = make(map[int]struct{})
		v.seen[producer] = seen
	}
	if _, dup := seen[seq]; dup {
		v.duplicates++
		return v.unique
	}
	seen[seq] = struct{}{}
	v.unique++

	key := stream{consumer: consumer, producer: producer}
	if last, ok := v.lastSeq[key]; ok && seq < last {
		v.outOfOrder++
	}
	v.lastSeq[key] = max(v.lastSeq[key], seq)
	return v.unique
}

func (v *validator) stats(expected int) Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Stats{
		Expected:   expected,
		Total:      v.total,
		Unique:     v.unique,
		Duplicates: v.duplicates,
		OutOfOrder: v.outOfOrder,
		Missing:    max(expected-v.unique, 0),
	}
}

// errorSample keeps the first error message of a kind.
type errorSample struct {
	mu    sync.Mutex
	count int
	first string
}

func (s *errorSample) add(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	if s.first == "" {
		s.first = msg
	}
}

func (s *errorSample) get() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, s.first
}

package feed

import (
	"log"
	"sync"
)

const subscriberQueueSize = 256

// MemoryFeed is an in-process Feed. Each subscriber owns a buffered queue
// drained by its own goroutine, so publishers never block; a change is
// dropped for a subscriber whose queue is full.
type MemoryFeed struct {
	log    *log.Logger
	mu     sync.Mutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
}

type memorySub struct {
	feed    *MemoryFeed
	table   string
	ops     []Op
	match   func(Change) bool
	handler Handler
	queue   chan Change
	once    sync.Once
}

func NewMemoryFeed(logger *log.Logger) *MemoryFeed {
	return &MemoryFeed{
		log:  logger,
		subs: make(map[string]map[*memorySub]struct{}),
	}
}

func (f *MemoryFeed) Publish(c Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	for sub := range f.subs[c.Table] {
		if !opMatches(sub.ops, c.Op) {
			continue
		}
		if sub.match != nil && !sub.match(c) {
			continue
		}

		select {
		case sub.queue <- c:
		default:
			f.log.Printf("dropping %s change on %q, subscriber queue full", c.Op, c.Table)
		}
	}

	return nil
}

func (f *MemoryFeed) Subscribe(table string, ops []Op, match func(Change) bool, h Handler) (Subscription, error) {
	sub := &memorySub{
		feed:    f,
		table:   table,
		ops:     ops,
		match:   match,
		handler: h,
		queue:   make(chan Change, subscriberQueueSize),
	}

	f.mu.Lock()
	if f.subs[table] == nil {
		f.subs[table] = make(map[*memorySub]struct{})
	}
	f.subs[table][sub] = struct{}{}
	f.mu.Unlock()

	go sub.run()

	return sub, nil
}

func (f *MemoryFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	for table, subs := range f.subs {
		for sub := range subs {
			close(sub.queue)
		}
		delete(f.subs, table)
	}

	return nil
}

func (s *memorySub) run() {
	for c := range s.queue {
		s.handler(c)
	}
}

func (s *memorySub) Unsubscribe() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		defer s.feed.mu.Unlock()

		if s.feed.closed {
			return
		}

		if subs, ok := s.feed.subs[s.table]; ok {
			if _, ok := subs[s]; ok {
				delete(subs, s)
				close(s.queue)
			}
		}
	})
}

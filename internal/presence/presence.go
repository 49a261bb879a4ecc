package presence

import (
	"context"
	"sort"
	"sync"
)

// Occupancy tracks which users currently hold an open connection to a
// channel. It is ephemeral and non-authoritative; entries are added and
// removed as sockets join and leave.
type Occupancy interface {
	Join(ctx context.Context, channel, userId string) error
	Leave(ctx context.Context, channel, userId string) error
	Users(ctx context.Context, channel string) ([]string, error)
}

// MemoryOccupancy is a single-node Occupancy.
type MemoryOccupancy struct {
	mu       sync.Mutex
	channels map[string]map[string]struct{}
}

func NewMemoryOccupancy() *MemoryOccupancy {
	return &MemoryOccupancy{
		channels: make(map[string]map[string]struct{}),
	}
}

func (o *MemoryOccupancy) Join(_ context.Context, channel, userId string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.channels[channel] == nil {
		o.channels[channel] = make(map[string]struct{})
	}
	o.channels[channel][userId] = struct{}{}

	return nil
}

func (o *MemoryOccupancy) Leave(_ context.Context, channel, userId string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if users, ok := o.channels[channel]; ok {
		delete(users, userId)
		if len(users) == 0 {
			delete(o.channels, channel)
		}
	}

	return nil
}

func (o *MemoryOccupancy) Users(_ context.Context, channel string) ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	users := make([]string, 0, len(o.channels[channel]))
	for u := range o.channels[channel] {
		users = append(users, u)
	}
	sort.Strings(users)

	return users, nil
}

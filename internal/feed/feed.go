package feed

import (
	"encoding/json"
	"fmt"
)

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Change is a row-level notification. Row holds the full row for inserts
// and updates, and the prior row for deletes.
type Change struct {
	Table string          `json:"table"`
	Op    Op              `json:"op"`
	Row   json.RawMessage `json:"row"`
}

// NewChange marshals row into a Change for table and op.
func NewChange(table string, op Op, row any) (Change, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return Change{}, fmt.Errorf("marshal row: %w", err)
	}

	return Change{Table: table, Op: op, Row: data}, nil
}

// Handler receives changes on a feed-owned goroutine. Handlers must not
// block; slow handlers cause changes to be dropped.
type Handler func(Change)

// Subscription is the live handle returned by Subscribe. Unsubscribe is
// idempotent and safe for concurrent use, and must be called on teardown.
type Subscription interface {
	Unsubscribe()
}

// Feed delivers row-level changes to subscribers. Delivery is ordered per
// subscription; no ordering is guaranteed across subscriptions.
type Feed interface {
	// Publish delivers c to all matching subscribers.
	Publish(c Change) error
	// Subscribe registers h for changes on table matching any op in ops.
	// An empty ops slice matches every op. A nil match accepts all changes;
	// otherwise only changes for which match returns true are delivered.
	Subscribe(table string, ops []Op, match func(Change) bool, h Handler) (Subscription, error)
	Close() error
}

func opMatches(ops []Op, op Op) bool {
	if len(ops) == 0 {
		return true
	}
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

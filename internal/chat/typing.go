package chat

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/hackhub-io/hackchat/internal/database"
	"github.com/hackhub-io/hackchat/internal/feed"
	"github.com/hackhub-io/hackchat/internal/stats"
	"github.com/hackhub-io/hackchat/internal/types"
)

// typingExpiry is how long a user stays in the displayed typing set after
// their last typing event.
const typingExpiry = 3 * time.Second

// ExpiryStrategy schedules removal of a user from the displayed typing set.
// Schedule is called once per observed typing event.
type ExpiryStrategy interface {
	Schedule(userId string, remove func())
}

// PerEventExpiry arms an independent timer for every typing event. Each
// timer always fires, so a continuously typing user flickers out of the set
// whenever an earlier timer expires. This matches the observed behavior of
// the display layer; DebounceExpiry is the corrected alternative.
type PerEventExpiry struct {
	TTL time.Duration
}

func (e PerEventExpiry) Schedule(_ string, remove func()) {
	time.AfterFunc(e.ttl(), remove)
}

func (e PerEventExpiry) ttl() time.Duration {
	if e.TTL > 0 {
		return e.TTL
	}
	return typingExpiry
}

// DebounceExpiry keeps one timer per user and extends it on every event, so
// an actively typing user never flickers out.
type DebounceExpiry struct {
	TTL    time.Duration
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewDebounceExpiry(ttl time.Duration) *DebounceExpiry {
	if ttl <= 0 {
		ttl = typingExpiry
	}
	return &DebounceExpiry{
		TTL:    ttl,
		timers: make(map[string]*time.Timer),
	}
}

func (e *DebounceExpiry) Schedule(userId string, remove func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.timers[userId]; ok {
		t.Reset(e.TTL)
		return
	}

	e.timers[userId] = time.AfterFunc(e.TTL, func() {
		e.mu.Lock()
		delete(e.timers, userId)
		e.mu.Unlock()

		remove()
	})
}

// TypingTracker surfaces who is currently typing in an event chat. Upserts
// are best-effort: failures are counted and logged, never surfaced, and the
// persisted indicator is never cleared server-side; display expiry is
// purely local.
type TypingTracker struct {
	log      *log.Logger
	db       database.HackChatRepository
	fd       feed.Feed
	stats    stats.StatsProvider
	strategy ExpiryStrategy

	mu       sync.Mutex
	eventId  int
	typing   map[string]types.TypingUser
	sub      feed.Subscription
	onUpdate func()
}

func NewTypingTracker(logger *log.Logger, db database.HackChatRepository, fd feed.Feed, st stats.StatsProvider, strategy ExpiryStrategy) *TypingTracker {
	if strategy == nil {
		strategy = PerEventExpiry{}
	}

	return &TypingTracker{
		log:      logger,
		db:       db,
		fd:       fd,
		stats:    st,
		strategy: strategy,
		typing:   make(map[string]types.TypingUser),
	}
}

// MarkTyping records that userId is typing in eventId and notifies
// subscribers through the feed. Unauthenticated callers are ignored.
func (t *TypingTracker) MarkTyping(eventId int, userId string) {
	if userId == "" {
		return
	}

	ind, err := t.db.UpsertTypingIndicator(eventId, userId, time.Now().UTC())
	if err != nil {
		t.log.Println("upsert typing indicator:", err)
		t.stats.Incr("TypingUpsertFailures")
		return
	}

	change, err := feed.NewChange(typingIndicatorsTable, feed.OpUpdate, ind)
	if err != nil {
		t.log.Println("build typing change:", err)
		return
	}
	if err := t.fd.Publish(change); err != nil {
		t.log.Println("publish typing change:", err)
	}
}

// Observe subscribes to typing events for eventId. onUpdate runs on the
// feed goroutine after every change to the displayed set.
func (t *TypingTracker) Observe(eventId int, onUpdate func()) error {
	t.Close()

	t.mu.Lock()
	t.eventId = eventId
	t.typing = make(map[string]types.TypingUser)
	t.onUpdate = onUpdate
	t.mu.Unlock()

	match := func(c feed.Change) bool {
		var row struct {
			EventId int `json:"event_id"`
		}
		if err := json.Unmarshal(c.Row, &row); err != nil {
			return false
		}
		return row.EventId == eventId
	}

	sub, err := t.fd.Subscribe(typingIndicatorsTable, []feed.Op{feed.OpInsert, feed.OpUpdate}, match, t.handleChange)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", typingIndicatorsTable, err)
	}

	t.mu.Lock()
	t.sub = sub
	t.mu.Unlock()

	return nil
}

// Close releases the typing subscription. Safe to call when not observing.
func (t *TypingTracker) Close() {
	t.mu.Lock()
	sub := t.sub
	t.sub = nil
	t.onUpdate = nil
	t.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Typing returns the displayed typing set, ordered by user id.
func (t *TypingTracker) Typing() []types.TypingUser {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := make([]types.TypingUser, 0, len(t.typing))
	for _, u := range t.typing {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserId < users[j].UserId })

	return users
}

func (t *TypingTracker) handleChange(c feed.Change) {
	var row database.TypingIndicator
	if err := json.Unmarshal(c.Row, &row); err != nil || row.UserId == "" {
		return
	}

	name := ""
	profiles, err := t.db.GetProfilesByIds([]string{row.UserId})
	if err != nil {
		t.log.Println("resolve typing profile:", err)
	} else if len(profiles) > 0 {
		name = profiles[0].FullName
	}

	t.mu.Lock()
	t.typing[row.UserId] = types.TypingUser{UserId: row.UserId, FullName: name}
	onUpdate := t.onUpdate
	t.mu.Unlock()

	t.strategy.Schedule(row.UserId, func() { t.remove(row.UserId) })

	if onUpdate != nil {
		onUpdate()
	}
}

func (t *TypingTracker) remove(userId string) {
	t.mu.Lock()
	_, ok := t.typing[userId]
	delete(t.typing, userId)
	onUpdate := t.onUpdate
	t.mu.Unlock()

	if ok && onUpdate != nil {
		onUpdate()
	}
}

package chat

import (
	"fmt"
	"log"
	"sync"

	"github.com/hackhub-io/hackchat/internal/database"
	"github.com/hackhub-io/hackchat/internal/errs"
	"github.com/hackhub-io/hackchat/internal/feed"
	"github.com/hackhub-io/hackchat/internal/stats"
	"github.com/hackhub-io/hackchat/internal/types"
)

func errNotOpen() error {
	return fmt.Errorf("%w: no open conversation", errs.ErrValidation)
}

// Controller binds a MessageStore and a TypingTracker to a single visible
// conversation surface. It guarantees at most one live subscription per
// surface: Open releases the previous scope's handles before acquiring new
// ones, and Close must be called on teardown.
type Controller struct {
	log    *log.Logger
	store  *MessageStore
	typing *TypingTracker

	mu    sync.Mutex
	scope Scope
	open  bool
}

func NewController(logger *log.Logger, db database.HackChatRepository, fd feed.Feed, st stats.StatsProvider, strategy ExpiryStrategy) *Controller {
	return &Controller{
		log:    logger,
		store:  NewMessageStore(logger, db, fd),
		typing: NewTypingTracker(logger, db, fd, st, strategy),
	}
}

// Open switches the controller to scope and returns its message history.
// Typing observation is attached only for event scopes. onUpdate fires on
// feed goroutines whenever messages or the typing set change.
func (c *Controller) Open(scope Scope, onUpdate func()) ([]types.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		c.typing.Close()
		c.store.Close()
		c.open = false
	}

	history, err := c.store.Open(scope, onUpdate)
	if err != nil {
		return nil, err
	}

	if scope.Kind == ScopeEvent {
		if err := c.typing.Observe(c.store.EventId(), onUpdate); err != nil {
			c.store.Close()
			return nil, err
		}
	}

	c.scope = scope
	c.open = true

	return history, nil
}

// Close releases all live handles. Safe to call repeatedly.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return
	}

	c.typing.Close()
	c.store.Close()
	c.open = false
}

// Scope returns the open scope and whether the controller is open.
func (c *Controller) Scope() (Scope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope, c.open
}

// Send publishes content to the open scope on behalf of userId, extracting
// @-mentions from the text.
func (c *Controller) Send(userId, content string) error {
	scope, ok := c.Scope()
	if !ok {
		return errNotOpen()
	}

	return c.store.Send(scope, userId, content, ExtractMentions(content))
}

// Delete removes one of userId's own messages from the open scope.
func (c *Controller) Delete(userId, messageId string) error {
	scope, ok := c.Scope()
	if !ok {
		return errNotOpen()
	}

	return c.store.Delete(scope, userId, messageId)
}

// MarkTyping records typing activity for the open event scope. A no-op for
// the community scope, which has no typing surface.
func (c *Controller) MarkTyping(userId string) {
	c.mu.Lock()
	open := c.open
	kind := c.scope.Kind
	eventId := c.store.EventId()
	c.mu.Unlock()

	if !open || kind != ScopeEvent {
		return
	}

	c.typing.MarkTyping(eventId, userId)
}

// Messages returns the open scope's current message view.
func (c *Controller) Messages() []types.Message {
	return c.store.Messages()
}

// TypingUsers returns the displayed typing set for the open event scope.
func (c *Controller) TypingUsers() []types.TypingUser {
	return c.typing.Typing()
}

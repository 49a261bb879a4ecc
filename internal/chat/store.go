package chat

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hackhub-io/hackchat/internal/database"
	"github.com/hackhub-io/hackchat/internal/errs"
	"github.com/hackhub-io/hackchat/internal/feed"
	"github.com/hackhub-io/hackchat/internal/types"
)

// sendRetryDelay is the pause before the single automatic retry of a send
// that failed with a transient network error. Shortened in tests.
var sendRetryDelay = 2 * time.Second

// MessageStore maintains the time-ordered view of messages for one open
// scope and performs sends and deletes for any scope. There is no
// optimistic local append on send; the open view is updated by the feed
// echo, so a sent message may briefly be absent from Messages.
type MessageStore struct {
	log      *log.Logger
	db       database.HackChatRepository
	fd       feed.Feed
	sanitize *bluemonday.Policy

	mu       sync.Mutex
	scope    Scope
	eventId  int
	messages []types.Message
	pending  []feed.Change
	live     bool
	sub      feed.Subscription
	onUpdate func()
}

func NewMessageStore(logger *log.Logger, db database.HackChatRepository, fd feed.Feed) *MessageStore {
	return &MessageStore{
		log:      logger,
		db:       db,
		fd:       fd,
		sanitize: bluemonday.StrictPolicy(),
	}
}

// Open subscribes to scope's live feed and loads its history. Changes that
// arrive while history is loading are buffered and applied afterwards, so a
// live insert is never dropped by a late history fetch. Opening while
// already open releases the previous subscription first. onUpdate is called
// on the feed goroutine after every change to the open view.
func (s *MessageStore) Open(scope Scope, onUpdate func()) ([]types.Message, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	eventId, err := s.resolveEvent(scope)
	if err != nil {
		return nil, err
	}

	s.Close()

	s.mu.Lock()
	s.scope = scope
	s.eventId = eventId
	s.messages = nil
	s.pending = nil
	s.live = false
	s.onUpdate = onUpdate
	s.mu.Unlock()

	sub, err := s.fd.Subscribe(scope.table(), []feed.Op{feed.OpInsert, feed.OpDelete}, s.matchScope(scope, eventId), s.handleChange)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", scope.table(), err)
	}

	history, err := s.loadHistory(scope, eventId)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}

	s.mu.Lock()
	s.sub = sub
	s.messages = history
	pending := s.pending
	s.pending = nil
	s.live = true
	s.mu.Unlock()

	for _, c := range pending {
		s.apply(c)
	}

	return s.Messages(), nil
}

// History loads scope's message history without opening a live view.
func (s *MessageStore) History(scope Scope) ([]types.Message, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	eventId, err := s.resolveEvent(scope)
	if err != nil {
		return nil, err
	}

	return s.loadHistory(scope, eventId)
}

// Close releases the live subscription. Safe to call when not open.
func (s *MessageStore) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.live = false
	s.onUpdate = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Messages returns a snapshot of the open view, sorted by creation time.
func (s *MessageStore) Messages() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// EventId returns the internal id of the open event scope, zero otherwise.
func (s *MessageStore) EventId() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventId
}

// Send persists a message to scope. The message is not appended locally;
// the live subscription echoes it back. A send that fails with a transient
// network error is retried exactly once after sendRetryDelay.
func (s *MessageStore) Send(scope Scope, userId, content string, mentions []string) error {
	if userId == "" {
		return errs.ErrNotAuthenticated
	}
	if err := scope.Validate(); err != nil {
		return err
	}

	content = strings.TrimSpace(s.sanitize.Sanitize(content))
	if content == "" {
		return fmt.Errorf("%w: empty message", errs.ErrValidation)
	}

	eventId, err := s.resolveEvent(scope)
	if err != nil {
		return err
	}

	change, err := s.persistMessage(scope, eventId, userId, content, mentions)
	if errs.IsTransient(err) {
		s.log.Printf("transient send failure, retrying once: %v", err)
		time.Sleep(sendRetryDelay)
		change, err = s.persistMessage(scope, eventId, userId, content, mentions)
	}
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	if err := s.fd.Publish(change); err != nil {
		s.log.Println("publish message change:", err)
	}

	return nil
}

// Delete removes a message owned by userId. The persisted delete is echoed
// to every subscriber through the feed.
func (s *MessageStore) Delete(scope Scope, userId, messageId string) error {
	if userId == "" {
		return errs.ErrNotAuthenticated
	}
	if err := scope.Validate(); err != nil {
		return err
	}
	if messageId == "" {
		return fmt.Errorf("%w: missing message id", errs.ErrValidation)
	}

	eventId, err := s.resolveEvent(scope)
	if err != nil {
		return err
	}

	var deleted int64
	if scope.Kind == ScopeEvent {
		deleted, err = s.db.DeleteEventMessage(messageId, userId)
	} else {
		deleted, err = s.db.DeleteCommunityMessage(messageId, userId)
	}
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	if deleted == 0 {
		// the row either never existed or belongs to someone else
		if s.messageExists(scope, messageId) {
			return errs.ErrPermissionDenied
		}
		return errs.ErrNotFound
	}

	change, err := s.deleteChange(scope, eventId, messageId)
	if err != nil {
		s.log.Println("build delete change:", err)
		return nil
	}
	if err := s.fd.Publish(change); err != nil {
		s.log.Println("publish delete change:", err)
	}

	return nil
}

func (s *MessageStore) resolveEvent(scope Scope) (int, error) {
	if scope.Kind != ScopeEvent {
		return 0, nil
	}

	event, err := s.db.GetEventByExternalId(scope.EventId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: event %q", errs.ErrNotFound, scope.EventId)
		}
		return 0, fmt.Errorf("resolve event %q: %w", scope.EventId, err)
	}

	return event.Id, nil
}

func (s *MessageStore) persistMessage(scope Scope, eventId int, userId, content string, mentions []string) (feed.Change, error) {
	if scope.Kind == ScopeEvent {
		msg, err := s.db.CreateEventMessage(database.CreateEventMessageParams{
			EventId:  eventId,
			UserId:   userId,
			Content:  content,
			Mentions: mentions,
		})
		if err != nil {
			return feed.Change{}, err
		}
		return feed.NewChange(eventMessagesTable, feed.OpInsert, msg)
	}

	msg, err := s.db.CreateCommunityMessage(database.CreateCommunityMessageParams{
		UserId:  userId,
		Content: content,
	})
	if err != nil {
		return feed.Change{}, err
	}
	return feed.NewChange(communityMessagesTable, feed.OpInsert, msg)
}

func (s *MessageStore) messageExists(scope Scope, messageId string) bool {
	var err error
	if scope.Kind == ScopeEvent {
		_, err = s.db.GetEventMessage(messageId)
	} else {
		_, err = s.db.GetCommunityMessage(messageId)
	}
	return err == nil
}

func (s *MessageStore) deleteChange(scope Scope, eventId int, messageId string) (feed.Change, error) {
	if scope.Kind == ScopeEvent {
		return feed.NewChange(eventMessagesTable, feed.OpDelete, database.EventMessage{Id: messageId, EventId: eventId})
	}
	return feed.NewChange(communityMessagesTable, feed.OpDelete, database.CommunityMessage{Id: messageId})
}

func (s *MessageStore) matchScope(scope Scope, eventId int) func(feed.Change) bool {
	if scope.Kind != ScopeEvent {
		return nil
	}

	return func(c feed.Change) bool {
		var row struct {
			EventId int `json:"event_id"`
		}
		if err := json.Unmarshal(c.Row, &row); err != nil {
			return false
		}
		return row.EventId == eventId
	}
}

func (s *MessageStore) loadHistory(scope Scope, eventId int) ([]types.Message, error) {
	var messages []types.Message

	if scope.Kind == ScopeEvent {
		rows, err := s.db.ListEventMessages(eventId)
		if err != nil {
			return nil, fmt.Errorf("load event messages: %w", err)
		}
		for _, row := range rows {
			messages = append(messages, types.Message{
				Id:        row.Id,
				EventId:   scope.EventId,
				UserId:    row.UserId,
				Content:   row.Content,
				Mentions:  row.Mentions,
				CreatedAt: row.CreatedAt,
			})
		}
	} else {
		rows, err := s.db.ListCommunityMessages(communityHistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("load community messages: %w", err)
		}
		for _, row := range rows {
			messages = append(messages, types.Message{
				Id:        row.Id,
				UserId:    row.UserId,
				Content:   row.Content,
				CreatedAt: row.CreatedAt,
			})
		}
	}

	s.decorateSenders(messages)
	sortMessages(messages)

	return messages, nil
}

const communityHistoryLimit = 100

// decorateSenders fills SenderName from profiles in one batch lookup. A
// missing profile leaves the name empty rather than exposing a raw id.
func (s *MessageStore) decorateSenders(messages []types.Message) {
	if len(messages) == 0 {
		return
	}

	idSet := make(map[string]struct{})
	for _, m := range messages {
		idSet[m.UserId] = struct{}{}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	profiles, err := s.db.GetProfilesByIds(ids)
	if err != nil {
		s.log.Println("resolve sender profiles:", err)
		return
	}

	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.Id] = p.FullName
	}

	for i := range messages {
		messages[i].SenderName = names[messages[i].UserId]
	}
}

func (s *MessageStore) handleChange(c feed.Change) {
	s.mu.Lock()
	if !s.live {
		s.pending = append(s.pending, c)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.apply(c)
}

func (s *MessageStore) apply(c feed.Change) {
	switch c.Op {
	case feed.OpInsert:
		s.applyInsert(c)
	case feed.OpDelete:
		s.applyDelete(c)
	}

	s.mu.Lock()
	onUpdate := s.onUpdate
	s.mu.Unlock()
	if onUpdate != nil {
		onUpdate()
	}
}

func (s *MessageStore) applyInsert(c feed.Change) {
	msg, err := s.decodeMessage(c)
	if err != nil {
		s.log.Println("decode message change:", err)
		return
	}

	// secondary lookup per live message, accepted latency trade-off
	profiles, err := s.db.GetProfilesByIds([]string{msg.UserId})
	if err != nil {
		s.log.Println("resolve sender profile:", err)
	} else if len(profiles) > 0 {
		msg.SenderName = profiles[0].FullName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.messages {
		if existing.Id == msg.Id {
			return
		}
	}

	// re-sort defensively; feed delivery order is not guaranteed to match
	// creation order
	s.messages = append(s.messages, msg)
	sortMessages(s.messages)
}

func (s *MessageStore) applyDelete(c feed.Change) {
	var row struct {
		Id string `json:"id"`
	}
	if err := json.Unmarshal(c.Row, &row); err != nil || row.Id == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.messages {
		if m.Id == row.Id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

func (s *MessageStore) decodeMessage(c feed.Change) (types.Message, error) {
	if c.Table == eventMessagesTable {
		var row database.EventMessage
		if err := json.Unmarshal(c.Row, &row); err != nil {
			return types.Message{}, err
		}

		s.mu.Lock()
		externalId := s.scope.EventId
		s.mu.Unlock()

		return types.Message{
			Id:        row.Id,
			EventId:   externalId,
			UserId:    row.UserId,
			Content:   row.Content,
			Mentions:  row.Mentions,
			CreatedAt: row.CreatedAt,
		}, nil
	}

	var row database.CommunityMessage
	if err := json.Unmarshal(c.Row, &row); err != nil {
		return types.Message{}, err
	}

	return types.Message{
		Id:        row.Id,
		UserId:    row.UserId,
		Content:   row.Content,
		CreatedAt: row.CreatedAt,
	}, nil
}

func sortMessages(messages []types.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}

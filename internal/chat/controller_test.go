package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hackhub-io/hackchat/internal/database"
	"github.com/hackhub-io/hackchat/internal/errs"
	"github.com/hackhub-io/hackchat/internal/feed"
	"github.com/hackhub-io/hackchat/internal/stats"
	"github.com/hackhub-io/hackchat/internal/testutil"
)

func newTestController(t *testing.T, mockRepo *database.MockHackChatRepository, fd feed.Feed) *Controller {
	t.Helper()
	mockStats := &stats.MockStatsUpdater{}
	mockStats.On("Incr", mock.Anything).Return().Maybe()
	return NewController(testutil.TestLogger(t), mockRepo, fd, mockStats, PerEventExpiry{TTL: time.Minute})
}

func TestControllerSendRequiresOpenScope(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	c := newTestController(t, mockRepo, fd)

	err := c.Send("u1", "hello")
	assert.ErrorIs(t, err, errs.ErrValidation)

	err = c.Delete("u1", "m1")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestControllerOpenEventScope(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("GetEventByExternalId", "ev-abc").Return(database.Event{Id: 7, ExternalId: "ev-abc"}, nil)
	mockRepo.On("ListEventMessages", 7).Return([]database.EventMessage{}, nil)

	c := newTestController(t, mockRepo, fd)
	defer c.Close()

	history, err := c.Open(EventScope("ev-abc"), nil)
	require.NoError(t, err)
	assert.Empty(t, history)

	scope, open := c.Scope()
	assert.True(t, open)
	assert.Equal(t, ScopeEvent, scope.Kind)
	assert.Equal(t, "ev-abc", scope.EventId)
}

func TestControllerSendExtractsMentions(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("GetEventByExternalId", "ev-abc").Return(database.Event{Id: 7, ExternalId: "ev-abc"}, nil)
	mockRepo.On("ListEventMessages", 7).Return([]database.EventMessage{}, nil)
	mockRepo.On("CreateEventMessage", database.CreateEventMessageParams{
		EventId:  7,
		UserId:   "u1",
		Content:  "hey @alice",
		Mentions: []string{"alice"},
	}).Return(database.EventMessage{Id: "m1", EventId: 7, UserId: "u1", Content: "hey @alice"}, nil)

	c := newTestController(t, mockRepo, fd)
	defer c.Close()

	_, err := c.Open(EventScope("ev-abc"), nil)
	require.NoError(t, err)

	require.NoError(t, c.Send("u1", "hey @alice"))
	mockRepo.AssertExpectations(t)
}

func TestControllerReopenSwitchesScope(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("GetEventByExternalId", "ev-abc").Return(database.Event{Id: 7, ExternalId: "ev-abc"}, nil)
	mockRepo.On("ListEventMessages", 7).Return([]database.EventMessage{}, nil)
	mockRepo.On("ListCommunityMessages", communityHistoryLimit).Return([]database.CommunityMessage{}, nil)

	c := newTestController(t, mockRepo, fd)
	defer c.Close()

	_, err := c.Open(EventScope("ev-abc"), nil)
	require.NoError(t, err)

	_, err = c.Open(CommunityScope(), nil)
	require.NoError(t, err)

	scope, open := c.Scope()
	assert.True(t, open)
	assert.Equal(t, ScopeCommunity, scope.Kind)

	// event-scope changes are no longer applied after the switch
	change, err := feed.NewChange(eventMessagesTable, feed.OpInsert, database.EventMessage{
		Id: "m1", EventId: 7, UserId: "u1", Content: "stale", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, fd.Publish(change))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, c.Messages())
}

func TestControllerMarkTypingCommunityNoop(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("ListCommunityMessages", communityHistoryLimit).Return([]database.CommunityMessage{}, nil)

	c := newTestController(t, mockRepo, fd)
	defer c.Close()

	_, err := c.Open(CommunityScope(), nil)
	require.NoError(t, err)

	c.MarkTyping("u1")
	mockRepo.AssertNotCalled(t, "UpsertTypingIndicator", mock.Anything, mock.Anything, mock.Anything)
}

func TestControllerCloseIdempotent(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("ListCommunityMessages", communityHistoryLimit).Return([]database.CommunityMessage{}, nil)

	c := newTestController(t, mockRepo, fd)

	_, err := c.Open(CommunityScope(), nil)
	require.NoError(t, err)

	c.Close()
	c.Close()

	_, open := c.Scope()
	assert.False(t, open)
}

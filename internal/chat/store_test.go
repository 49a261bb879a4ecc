package chat

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hackhub-io/hackchat/internal/database"
	"github.com/hackhub-io/hackchat/internal/errs"
	"github.com/hackhub-io/hackchat/internal/feed"
	"github.com/hackhub-io/hackchat/internal/testutil"
)

func TestMessageStoreOpenCommunityHistory(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	now := time.Now().UTC()
	mockRepo.On("ListCommunityMessages", communityHistoryLimit).Return([]database.CommunityMessage{
		{Id: "m2", UserId: "u2", Content: "second", CreatedAt: now.Add(time.Second)},
		{Id: "m1", UserId: "u1", Content: "first", CreatedAt: now},
	}, nil)
	mockRepo.On("GetProfilesByIds", []string{"u1", "u2"}).Return([]database.Profile{
		{Id: "u1", FullName: "Alice Smith"},
	}, nil)

	store := NewMessageStore(testutil.TestLogger(t), mockRepo, fd)
	defer store.Close()

	history, err := store.Open(CommunityScope(), nil)
	require.NoError(t, err)

	require.Len(t, history, 2)
	assert.Equal(t, "m1", history[0].Id)
	assert.Equal(t, "Alice Smith", history[0].SenderName)
	assert.Equal(t, "m2", history[1].Id)
	assert.Equal(t, "", history[1].SenderName)
	mockRepo.AssertExpectations(t)
}

func TestMessageStoreOpenUnknownEvent(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("GetEventByExternalId", "nope").Return(database.Event{}, sql.ErrNoRows)

	store := NewMessageStore(testutil.TestLogger(t), mockRepo, fd)

	_, err := store.Open(EventScope("nope"), nil)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMessageStoreSendUnauthenticated(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	store := NewMessageStore(testutil.TestLogger(t), mockRepo, fd)

	err := store.Send(CommunityScope(), "", "hello", nil)
	assert.ErrorIs(t, err, errs.ErrNotAuthenticated)
	mockRepo.AssertNotCalled(t, "CreateCommunityMessage", mock.Anything)
}

func TestMessageStoreSendEmptyContent(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	store := NewMessageStore(testutil.TestLogger(t), mockRepo, fd)

	for _, content := range []string{"", "   ", "<b></b>"} {
		err := store.Send(CommunityScope(), "u1", content, nil)
		assert.ErrorIs(t, err, errs.ErrValidation)
	}
	mockRepo.AssertNotCalled(t, "CreateCommunityMessage", mock.Anything)
}

func TestMessageStoreSendStripsMarkup(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("CreateCommunityMessage", database.CreateCommunityMessageParams{
		UserId:  "u1",
		Content: "hello",
	}).Return(database.CommunityMessage{Id: "m1", UserId: "u1", Content: "hello"}, nil)

	store := NewMessageStore(testutil.TestLogger(t), mockRepo, fd)

	err := store.Send(CommunityScope(), "u1", "<b>hello</b>", nil)
	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestMessageStoreSendRetriesTransientFailure(t *testing.T) {
	prev := sendRetryDelay
	sendRetryDelay = 10 * time.Millisecond
	defer func() { sendRetryDelay = prev }()

	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	params := database.CreateCommunityMessageParams{UserId: "u1", Content: "hello"}
	mockRepo.On("CreateCommunityMessage", params).
		Return(database.CommunityMessage{}, errors.New("network unreachable")).Once()
	mockRepo.On("CreateCommunityMessage", params).
		Return(database.CommunityMessage{Id: "m1", UserId: "u1", Content: "hello"}, nil).Once()

	store := NewMessageStore(testutil.TestLogger(t), mockRepo, fd)

	err := store.Send(CommunityScope(), "u1", "hello", nil)
	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestMessageStoreSendDoesNotRetryPersistentFailure(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	params := database.CreateCommunityMessageParams{UserId: "u1", Content: "hello"}
	mockRepo.On("CreateCommunityMessage", params).
		Return(database.CommunityMessage{}, errors.New("value too long")).Once()

	store := NewMessageStore(testutil.TestLogger(t), mockRepo, fd)

	err := store.Send(CommunityScope(), "u1", "hello", nil)
	assert.Error(t, err)
	mockRepo.AssertNumberOfCalls(t, "CreateCommunityMessage", 1)
}

func TestMessageStoreSendEchoesThroughFeed(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	now := time.Now().UTC()
	mockRepo.On("ListCommunityMessages", communityHistoryLimit).Return([]database.CommunityMessage{}, nil)
	mockRepo.On("CreateCommunityMessage", mock.Anything).
		Return(database.CommunityMessage{Id: "m1", UserId: "u1", Content: "hello", CreatedAt: now}, nil)
	mockRepo.On("GetProfilesByIds", []string{"u1"}).Return([]database.Profile{
		{Id: "u1", FullName: "Alice Smith"},
	}, nil)

	store := NewMessageStore(testutil.TestLogger(t), mockRepo, fd)
	defer store.Close()

	history, err := store.Open(CommunityScope(), nil)
	require.NoError(t, err)
	require.Empty(t, history)

	require.NoError(t, store.Send(CommunityScope(), "u1", "hello", nil))

	require.Eventually(t, func() bool {
		return len(store.Messages()) == 1
	}, time.Second, 10*time.Millisecond)

	messages := store.Messages()
	assert.Equal(t, "m1", messages[0].Id)
	assert.Equal(t, "Alice Smith", messages[0].SenderName)
}

func TestMessageStoreLiveInsertReorderedAndDeduped(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	now := time.Now().UTC()
	mockRepo.On("ListCommunityMessages", communityHistoryLimit).Return([]database.CommunityMessage{
		{Id: "m2", UserId: "u1", Content: "later", CreatedAt: now.Add(time.Minute)},
	}, nil)
	mockRepo.On("GetProfilesByIds", mock.Anything).Return([]database.Profile{}, nil)

	store := NewMessageStore(testutil.TestLogger(t), mockRepo, fd)
	defer store.Close()

	_, err := store.Open(CommunityScope(), nil)
	require.NoError(t, err)

	earlier := database.CommunityMessage{Id: "m1", UserId: "u1", Content: "earlier", CreatedAt: now}
	change, err := feed.NewChange(communityMessagesTable, feed.OpInsert, earlier)
	require.NoError(t, err)

	require.NoError(t, fd.Publish(change))
	require.NoError(t, fd.Publish(change))

	require.Eventually(t, func() bool {
		return len(store.Messages()) == 2
	}, time.Second, 10*time.Millisecond)

	// the duplicate publish must not produce a third entry
	time.Sleep(50 * time.Millisecond)
	messages := store.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "m1", messages[0].Id)
	assert.Equal(t, "m2", messages[1].Id)
}

func TestMessageStoreLiveDelete(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	now := time.Now().UTC()
	mockRepo.On("ListCommunityMessages", communityHistoryLimit).Return([]database.CommunityMessage{
		{Id: "m1", UserId: "u1", Content: "hello", CreatedAt: now},
	}, nil)
	mockRepo.On("GetProfilesByIds", mock.Anything).Return([]database.Profile{}, nil)

	store := NewMessageStore(testutil.TestLogger(t), mockRepo, fd)
	defer store.Close()

	history, err := store.Open(CommunityScope(), nil)
	require.NoError(t, err)
	require.Len(t, history, 1)

	change, err := feed.NewChange(communityMessagesTable, feed.OpDelete, database.CommunityMessage{Id: "m1"})
	require.NoError(t, err)
	require.NoError(t, fd.Publish(change))

	require.Eventually(t, func() bool {
		return len(store.Messages()) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMessageStoreDeleteNotOwned(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("DeleteCommunityMessage", "m1", "u2").Return(int64(0), nil)
	mockRepo.On("GetCommunityMessage", "m1").Return(database.CommunityMessage{Id: "m1", UserId: "u1"}, nil)

	store := NewMessageStore(testutil.TestLogger(t), mockRepo, fd)

	err := store.Delete(CommunityScope(), "u2", "m1")
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)
}

func TestMessageStoreDeleteMissing(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("DeleteCommunityMessage", "m1", "u1").Return(int64(0), nil)
	mockRepo.On("GetCommunityMessage", "m1").Return(database.CommunityMessage{}, sql.ErrNoRows)

	store := NewMessageStore(testutil.TestLogger(t), mockRepo, fd)

	err := store.Delete(CommunityScope(), "u1", "m1")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMessageStoreDeleteOwned(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("DeleteCommunityMessage", "m1", "u1").Return(int64(1), nil)

	store := NewMessageStore(testutil.TestLogger(t), mockRepo, fd)

	require.NoError(t, store.Delete(CommunityScope(), "u1", "m1"))
	mockRepo.AssertExpectations(t)
}

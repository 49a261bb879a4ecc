package social

import (
	"database/sql"
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

func TestGraphListPartitionsByStatus(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("ListConnections", "u1").Return([]database.Connection{
		{Id: "c1", RequesterId: "u1", ReceiverId: "u2", Status: database.ConnectionStatusAccepted},
		{Id: "c2", RequesterId: "u3", ReceiverId: "u1", Status: database.ConnectionStatusPending},
	}, nil)
	mockRepo.On("GetProfilesByIds", []string{"u1", "u2", "u3"}).Return([]database.Profile{
		{Id: "u1", FullName: "Alice Smith", College: "State"},
		{Id: "u2", FullName: "Bob Jones", College: "Tech"},
		{Id: "u3", FullName: "Carol White", College: "City"},
	}, nil)

	g := NewGraph(testutil.TestLogger(t), mockRepo, fd)

	accepted, pending, err := g.List("u1")
	require.NoError(t, err)

	require.Len(t, accepted, 1)
	assert.Equal(t, "c1", accepted[0].Id)
	assert.Equal(t, "Alice Smith", accepted[0].Requester.FullName)
	assert.Equal(t, "Bob Jones", accepted[0].Receiver.FullName)

	require.Len(t, pending, 1)
	assert.Equal(t, "c2", pending[0].Id)
	assert.Equal(t, "Carol White", pending[0].Requester.FullName)
}

func TestGraphListUnauthenticated(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	g := NewGraph(testutil.TestLogger(t), mockRepo, fd)

	_, _, err := g.List("")
	assert.ErrorIs(t, err, errs.ErrNotAuthenticated)
}

func TestGraphRequestValidation(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	g := NewGraph(testutil.TestLogger(t), mockRepo, fd)

	_, err := g.Request("", "u2")
	assert.ErrorIs(t, err, errs.ErrNotAuthenticated)

	_, err = g.Request("u1", "")
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = g.Request("u1", "u1")
	assert.ErrorIs(t, err, errs.ErrValidation)

	mockRepo.AssertNotCalled(t, "CreateConnection", mock.Anything, mock.Anything)
}

func TestGraphRequestDuplicatePair(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("ConnectionExistsBetween", "u1", "u2").Return(true)

	g := NewGraph(testutil.TestLogger(t), mockRepo, fd)

	_, err := g.Request("u1", "u2")
	assert.ErrorIs(t, err, errs.ErrValidation)
	mockRepo.AssertNotCalled(t, "CreateConnection", mock.Anything, mock.Anything)
}

func TestGraphRequestPublishesInsert(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	now := time.Now().UTC()
	mockRepo.On("ConnectionExistsBetween", "u1", "u2").Return(false)
	mockRepo.On("CreateConnection", "u1", "u2").Return(database.Connection{
		Id: "c1", RequesterId: "u1", ReceiverId: "u2",
		Status: database.ConnectionStatusPending, CreatedAt: now,
	}, nil)

	got := make(chan feed.Change, 1)
	_, err := fd.Subscribe("connections", nil, nil, func(c feed.Change) {
		got <- c
	})
	require.NoError(t, err)

	g := NewGraph(testutil.TestLogger(t), mockRepo, fd)

	conn, err := g.Request("u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "c1", conn.Id)
	assert.Equal(t, database.ConnectionStatusPending, conn.Status)

	select {
	case c := <-got:
		assert.Equal(t, feed.OpInsert, c.Op)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for connection change")
	}
}

func TestGraphAcceptRequiresReceiver(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("GetConnection", "c1").Return(database.Connection{
		Id: "c1", RequesterId: "u1", ReceiverId: "u2", Status: database.ConnectionStatusPending,
	}, nil)

	g := NewGraph(testutil.TestLogger(t), mockRepo, fd)

	err := g.Accept("u1", "c1")
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)
	mockRepo.AssertNotCalled(t, "AcceptConnection", mock.Anything)
}

func TestGraphAcceptUnknownEdge(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("GetConnection", "c1").Return(database.Connection{}, sql.ErrNoRows)

	g := NewGraph(testutil.TestLogger(t), mockRepo, fd)

	err := g.Accept("u2", "c1")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestGraphAcceptNotPending(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("GetConnection", "c1").Return(database.Connection{
		Id: "c1", RequesterId: "u1", ReceiverId: "u2", Status: database.ConnectionStatusAccepted,
	}, nil)
	mockRepo.On("AcceptConnection", "c1").Return(int64(0), nil)

	g := NewGraph(testutil.TestLogger(t), mockRepo, fd)

	err := g.Accept("u2", "c1")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestGraphAcceptPublishesUpdate(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("GetConnection", "c1").Return(database.Connection{
		Id: "c1", RequesterId: "u1", ReceiverId: "u2", Status: database.ConnectionStatusPending,
	}, nil)
	mockRepo.On("AcceptConnection", "c1").Return(int64(1), nil)

	got := make(chan feed.Change, 1)
	_, err := fd.Subscribe("connections", []feed.Op{feed.OpUpdate}, nil, func(c feed.Change) {
		got <- c
	})
	require.NoError(t, err)

	g := NewGraph(testutil.TestLogger(t), mockRepo, fd)

	require.NoError(t, g.Accept("u2", "c1"))

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for connection update")
	}
}

func TestGraphRejectRequiresEndpoint(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("GetConnection", "c1").Return(database.Connection{
		Id: "c1", RequesterId: "u1", ReceiverId: "u2", Status: database.ConnectionStatusPending,
	}, nil)

	g := NewGraph(testutil.TestLogger(t), mockRepo, fd)

	err := g.Reject("u3", "c1")
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)
	mockRepo.AssertNotCalled(t, "DeleteConnection", mock.Anything)
}

func TestGraphRejectDeletesEdge(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	mockRepo.On("GetConnection", "c1").Return(database.Connection{
		Id: "c1", RequesterId: "u1", ReceiverId: "u2", Status: database.ConnectionStatusPending,
	}, nil)
	mockRepo.On("DeleteConnection", "c1").Return(int64(1), nil)

	g := NewGraph(testutil.TestLogger(t), mockRepo, fd)

	require.NoError(t, g.Reject("u1", "c1"))
	mockRepo.AssertExpectations(t)
}

func TestGraphWatchFiresOnAnyChange(t *testing.T) {
	mockRepo := &database.MockHackChatRepository{}
	fd := feed.NewMemoryFeed(testutil.TestLogger(t))
	defer fd.Close()

	g := NewGraph(testutil.TestLogger(t), mockRepo, fd)

	fired := make(chan struct{}, 1)
	sub, err := g.Watch(func() {
		fired <- struct{}{}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	change, err := feed.NewChange("connections", feed.OpDelete, database.Connection{Id: "c1"})
	require.NoError(t, err)
	require.NoError(t, fd.Publish(change))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch callback")
	}
}

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hackhub-io/hackchat/internal/config"
	"github.com/hackhub-io/hackchat/internal/database"
	"github.com/hackhub-io/hackchat/internal/feed"
	"github.com/hackhub-io/hackchat/internal/presence"
	"github.com/hackhub-io/hackchat/internal/stats"
	"github.com/hackhub-io/hackchat/internal/testutil"
)

func newTestApp(t *testing.T, mockRepo *database.MockHackChatRepository) *HackChatApp {
	t.Helper()

	mockStats := &stats.MockStatsUpdater{}
	mockStats.On("RegisterMetric", mock.Anything).Return()
	mockStats.On("Incr", mock.Anything).Return().Maybe()
	mockStats.On("Decr", mock.Anything).Return().Maybe()

	cfg, err := config.NewConfig("localhost:8000", "dsn", "c29tZV9zZWNyZXQ=", []string{"http://localhost:3000"}, "", "")
	require.NoError(t, err)

	logger := testutil.TestLogger(t)
	fd := feed.NewMemoryFeed(logger)
	t.Cleanup(func() { fd.Close() })

	app, err := NewHackChatApp(http.NewServeMux(), logger, mockRepo, fd, presence.NewMemoryOccupancy(), mockStats, cfg)
	require.NoError(t, err)
	t.Cleanup(app.limiter.Stop)

	return app
}

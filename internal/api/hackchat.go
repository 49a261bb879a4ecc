package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"

	"github.com/hackhub-io/hackchat/internal/chat"
	"github.com/hackhub-io/hackchat/internal/config"
	"github.com/hackhub-io/hackchat/internal/database"
	"github.com/hackhub-io/hackchat/internal/feed"
	"github.com/hackhub-io/hackchat/internal/presence"
	"github.com/hackhub-io/hackchat/internal/ratelimit"
	"github.com/hackhub-io/hackchat/internal/social"
	"github.com/hackhub-io/hackchat/internal/stats"
)

const (
	authRateLimitRequests = 10
	authRateLimitWindow   = time.Minute
)

type HackChatApp struct {
	log            *log.Logger
	db             database.HackChatRepository
	fd             feed.Feed
	occupancy      presence.Occupancy
	stats          stats.StatsProvider
	limiter        *ratelimit.IPRateLimiter
	store          *chat.MessageStore
	typing         *chat.TypingTracker
	graph          *social.Graph
	sid            *shortid.Shortid
	signingKey     []byte
	allowedOrigins []string
	mux            *http.Server
}

func NewHackChatApp(mux *http.ServeMux, logger *log.Logger, db database.HackChatRepository, fd feed.Feed, occ presence.Occupancy, st stats.StatsProvider, cfg *config.Config) (*HackChatApp, error) {
	sid, err := shortid.New(1, shortid.DefaultABC, uint64(time.Now().UnixNano()))
	if err != nil {
		return nil, fmt.Errorf("shortid: %w", err)
	}

	s := &HackChatApp{
		log:            logger,
		db:             db,
		fd:             fd,
		occupancy:      occ,
		stats:          st,
		limiter:        ratelimit.NewIPRateLimiter(logger, authRateLimitRequests, authRateLimitWindow),
		store:          chat.NewMessageStore(logger, db, fd),
		typing:         chat.NewTypingTracker(logger, db, fd, st, nil),
		graph:          social.NewGraph(logger, db, fd),
		sid:            sid,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	st.RegisterMetric("NumActiveClients")
	st.RegisterMetric("MessagesSent")
	st.RegisterMetric("TypingUpsertFailures")

	mux.HandleFunc("POST /api/auth/register", s.limiter.Middleware(s.createAccount))
	mux.HandleFunc("POST /api/auth/login", s.limiter.Middleware(s.login))
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("GET /api/account", s.authMiddleware(s.account))
	mux.HandleFunc("POST /api/events", s.authMiddleware(s.createEvent))
	mux.HandleFunc("GET /api/events", s.authMiddleware(s.listEvents))
	mux.HandleFunc("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("POST /api/messages", s.authMiddleware(s.sendMessage))
	mux.HandleFunc("DELETE /api/messages", s.authMiddleware(s.deleteMessage))
	mux.HandleFunc("POST /api/typing", s.authMiddleware(s.markTyping))
	mux.HandleFunc("GET /api/connections", s.authMiddleware(s.listConnections))
	mux.HandleFunc("POST /api/connections", s.authMiddleware(s.createConnection))
	mux.HandleFunc("POST /api/connections/accept", s.authMiddleware(s.acceptConnection))
	mux.HandleFunc("DELETE /api/connections", s.authMiddleware(s.deleteConnection))
	mux.HandleFunc("GET /api/channels/users", s.authMiddleware(s.channelUsers))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s, nil
}

func (s *HackChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *HackChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	s.limiter.Stop()
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

func (s *HackChatApp) generateShortId() (string, error) {
	return s.sid.Generate()
}

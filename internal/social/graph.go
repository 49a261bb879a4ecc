package social

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/hackhub-io/hackchat/internal/database"
	"github.com/hackhub-io/hackchat/internal/errs"
	"github.com/hackhub-io/hackchat/internal/feed"
	"github.com/hackhub-io/hackchat/internal/types"
)

const connectionsTable = "connections"

// Graph manages the social graph between users: pending requests created by
// a requester and accepted connections visible to both parties. An edge is
// either pending or accepted; Reject deletes it outright.
type Graph struct {
	log *log.Logger
	db  database.HackChatRepository
	fd  feed.Feed
}

func NewGraph(logger *log.Logger, db database.HackChatRepository, fd feed.Feed) *Graph {
	return &Graph{log: logger, db: db, fd: fd}
}

// List returns the user's edges partitioned into accepted connections and
// pending requests, with both endpoint profiles resolved in one batch.
func (g *Graph) List(userId string) (accepted, pending []types.Connection, err error) {
	if userId == "" {
		return nil, nil, errs.ErrNotAuthenticated
	}

	edges, err := g.db.ListConnections(userId)
	if err != nil {
		return nil, nil, fmt.Errorf("list connections: %w", err)
	}

	profiles := g.resolveEndpoints(edges)

	accepted = make([]types.Connection, 0)
	pending = make([]types.Connection, 0)
	for _, edge := range edges {
		conn := types.Connection{
			Id:          edge.Id,
			RequesterId: edge.RequesterId,
			ReceiverId:  edge.ReceiverId,
			Status:      edge.Status,
			Requester:   profiles[edge.RequesterId],
			Receiver:    profiles[edge.ReceiverId],
			CreatedAt:   edge.CreatedAt,
		}

		switch edge.Status {
		case database.ConnectionStatusAccepted:
			accepted = append(accepted, conn)
		case database.ConnectionStatusPending:
			pending = append(pending, conn)
		}
	}

	return accepted, pending, nil
}

// Request creates a pending edge from userId to receiverId. Self-edges and
// duplicate unordered pairs are rejected.
func (g *Graph) Request(userId, receiverId string) (types.Connection, error) {
	if userId == "" {
		return types.Connection{}, errs.ErrNotAuthenticated
	}
	if receiverId == "" {
		return types.Connection{}, fmt.Errorf("%w: missing receiver", errs.ErrValidation)
	}
	if receiverId == userId {
		return types.Connection{}, fmt.Errorf("%w: cannot connect to yourself", errs.ErrValidation)
	}
	if g.db.ConnectionExistsBetween(userId, receiverId) {
		return types.Connection{}, fmt.Errorf("%w: connection already exists", errs.ErrValidation)
	}

	edge, err := g.db.CreateConnection(userId, receiverId)
	if err != nil {
		return types.Connection{}, fmt.Errorf("create connection: %w", err)
	}

	g.publish(feed.OpInsert, edge)

	return types.Connection{
		Id:          edge.Id,
		RequesterId: edge.RequesterId,
		ReceiverId:  edge.ReceiverId,
		Status:      edge.Status,
		CreatedAt:   edge.CreatedAt,
	}, nil
}

// Accept transitions a pending edge to accepted. Only the edge's receiver
// may accept it.
func (g *Graph) Accept(callerId, edgeId string) error {
	if callerId == "" {
		return errs.ErrNotAuthenticated
	}

	edge, err := g.getEdge(edgeId)
	if err != nil {
		return err
	}

	if edge.ReceiverId != callerId {
		return errs.ErrPermissionDenied
	}

	updated, err := g.db.AcceptConnection(edgeId)
	if err != nil {
		return fmt.Errorf("accept connection: %w", err)
	}
	if updated == 0 {
		return fmt.Errorf("%w: connection is not pending", errs.ErrValidation)
	}

	edge.Status = database.ConnectionStatusAccepted
	g.publish(feed.OpUpdate, edge)

	return nil
}

// Reject deletes a pending or accepted edge outright; no rejected state is
// retained. Either endpoint may remove the edge.
func (g *Graph) Reject(callerId, edgeId string) error {
	if callerId == "" {
		return errs.ErrNotAuthenticated
	}

	edge, err := g.getEdge(edgeId)
	if err != nil {
		return err
	}

	if edge.RequesterId != callerId && edge.ReceiverId != callerId {
		return errs.ErrPermissionDenied
	}

	deleted, err := g.db.DeleteConnection(edgeId)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: connection %q", errs.ErrNotFound, edgeId)
	}

	g.publish(feed.OpDelete, edge)

	return nil
}

// Watch invokes onChange after any connections change. Consumers refresh
// their view wholesale rather than patching it incrementally.
func (g *Graph) Watch(onChange func()) (feed.Subscription, error) {
	sub, err := g.fd.Subscribe(connectionsTable, nil, nil, func(feed.Change) {
		onChange()
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", connectionsTable, err)
	}

	return sub, nil
}

func (g *Graph) getEdge(edgeId string) (database.Connection, error) {
	if edgeId == "" {
		return database.Connection{}, fmt.Errorf("%w: missing connection id", errs.ErrValidation)
	}

	edge, err := g.db.GetConnection(edgeId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Connection{}, fmt.Errorf("%w: connection %q", errs.ErrNotFound, edgeId)
		}
		return database.Connection{}, fmt.Errorf("get connection: %w", err)
	}

	return edge, nil
}

func (g *Graph) resolveEndpoints(edges []database.Connection) map[string]types.User {
	out := make(map[string]types.User)
	if len(edges) == 0 {
		return out
	}

	idSet := make(map[string]struct{})
	for _, edge := range edges {
		idSet[edge.RequesterId] = struct{}{}
		idSet[edge.ReceiverId] = struct{}{}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	profiles, err := g.db.GetProfilesByIds(ids)
	if err != nil {
		g.log.Println("resolve connection profiles:", err)
		return out
	}

	for _, p := range profiles {
		out[p.Id] = types.User{
			Id:       p.Id,
			FullName: p.FullName,
			College:  p.College,
		}
	}

	return out
}

func (g *Graph) publish(op feed.Op, edge database.Connection) {
	change, err := feed.NewChange(connectionsTable, op, edge)
	if err != nil {
		g.log.Println("build connection change:", err)
		return
	}
	if err := g.fd.Publish(change); err != nil {
		g.log.Println("publish connection change:", err)
	}
}

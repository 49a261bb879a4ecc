package feed

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
)

// NatsFeed is a Feed backed by core NATS subjects of the form
// feed.<table>.<op>, for deployments running more than one instance.
type NatsFeed struct {
	log  *log.Logger
	conn *nats.Conn
}

type natsSub struct {
	log  *log.Logger
	sub  *nats.Subscription
	once sync.Once
}

func NewNatsFeed(logger *log.Logger, url string) (*NatsFeed, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Println("nats disconnected:", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Println("nats reconnected to", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &NatsFeed{log: logger, conn: conn}, nil
}

func changeSubject(table string, op Op) string {
	return fmt.Sprintf("feed.%s.%s", table, op)
}

func (f *NatsFeed) Publish(c Change) error {
	if err := f.conn.Publish(changeSubject(c.Table, c.Op), c.Row); err != nil {
		return fmt.Errorf("publish %s change on %q: %w", c.Op, c.Table, err)
	}

	return nil
}

func (f *NatsFeed) Subscribe(table string, ops []Op, match func(Change) bool, h Handler) (Subscription, error) {
	// Subscribe to all ops for the table and filter locally, which keeps a
	// single ordered delivery stream per subscription.
	prefix := fmt.Sprintf("feed.%s.", table)
	sub, err := f.conn.Subscribe(prefix+"*", func(msg *nats.Msg) {
		c := Change{Table: table, Op: Op(strings.TrimPrefix(msg.Subject, prefix)), Row: msg.Data}
		if !opMatches(ops, c.Op) {
			return
		}
		if match != nil && !match(c) {
			return
		}

		h(c)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe on %q: %w", table, err)
	}

	return &natsSub{log: f.log, sub: sub}, nil
}

func (f *NatsFeed) Close() error {
	f.conn.Close()
	return nil
}

func (s *natsSub) Unsubscribe() {
	s.once.Do(func() {
		if err := s.sub.Unsubscribe(); err != nil {
			s.log.Println("nats unsubscribe:", err)
		}
	})
}

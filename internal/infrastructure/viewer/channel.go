package viewer

import (
	"context"
	"errors"
	"sync"
	"time"

	"camfleet/internal/core/domain"
	"camfleet/pkg/retry"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrChannelClosed = errors.New("viewer channel closed")

// Channel wraps one viewer WebSocket connection behind a bounded outgoing
// queue. Producers never block: when the queue is full the oldest message
// is discarded to make room, so viewers always see recent data. A write
// failure is retried once; after maxWriteFailures consecutive failed
// messages the channel shuts itself down.
type Channel struct {
	id   domain.ViewerID
	conn *websocket.Conn

	queue chan any

	writeTimeout     time.Duration
	maxWriteFailures int

	closeOnce sync.Once
	closed    chan struct{}
	onClose   func(domain.ViewerID)

	logger *zap.SugaredLogger
}

type ChannelOptions struct {
	QueueSize        int
	WriteTimeout     time.Duration
	MaxWriteFailures int
}

func NewChannel(
	id domain.ViewerID,
	conn *websocket.Conn,
	opts ChannelOptions,
	onClose func(domain.ViewerID),
	logger *zap.SugaredLogger,
) *Channel {
	ch := &Channel{
		id:               id,
		conn:             conn,
		queue:            make(chan any, opts.QueueSize),
		writeTimeout:     opts.WriteTimeout,
		maxWriteFailures: opts.MaxWriteFailures,
		closed:           make(chan struct{}),
		onClose:          onClose,
		logger:           logger,
	}
	go ch.writePump()
	return ch
}

func (c *Channel) ID() domain.ViewerID {
	return c.id
}

// Send queues a message for delivery. Under congestion the oldest queued
// message is dropped in favor of the new one.
func (c *Channel) Send(message any) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}

	select {
	case c.queue <- message:
		return nil
	default:
	}

	select {
	case <-c.queue:
	default:
	}

	select {
	case c.queue <- message:
		return nil
	case <-c.closed:
		return ErrChannelClosed
	default:
		return nil
	}
}

func (c *Channel) writePump() {
	failures := 0
	for {
		select {
		case <-c.closed:
			return
		case message := <-c.queue:
			err := retry.Retry(context.Background(), retry.Once(), func() error {
				c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
				return c.conn.WriteJSON(message)
			})
			if err != nil {
				failures++
				c.logger.Warnw("viewer write failed",
					"viewer_id", c.id, "consecutive_failures", failures, "error", err)
				if failures >= c.maxWriteFailures {
					c.Close()
					return
				}
				continue
			}
			failures = 0
		}
	}
}

// Close shuts the channel down and fires the onClose callback exactly once.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
		if c.onClose != nil {
			c.onClose(c.id)
		}
	})
	return nil
}

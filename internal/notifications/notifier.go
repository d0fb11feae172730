// Package notifications delivers user-visible toasts for command outcomes.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"feedsync/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Toast levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
)

// ErrNoRedis is returned by Subscribe when no channel is configured.
var ErrNoRedis = errors.New("toast channel not configured")

// Toast is one user-visible notification.
type Toast struct {
	Level         string    `json:"level"`
	Message       string    `json:"message"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	At            time.Time `json:"at"`
}

// Notifier logs every toast, hands it to an optional sink and, when a Redis
// client and channel are configured, publishes it for other processes.
type Notifier struct {
	rdb     *redis.Client
	channel string
	sink    func(Toast)
	logger  *observability.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithRedis publishes toasts to channel on rdb.
func WithRedis(rdb *redis.Client, channel string) Option {
	return func(n *Notifier) {
		n.rdb = rdb
		n.channel = channel
	}
}

// WithSink calls fn synchronously for every toast.
func WithSink(fn func(Toast)) Option {
	return func(n *Notifier) {
		n.sink = fn
	}
}

// NewNotifier creates a Notifier. Without options it only logs.
func NewNotifier(opts ...Option) *Notifier {
	n := &Notifier{logger: observability.GlobalLogger}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Success reports a completed command.
func (n *Notifier) Success(ctx context.Context, message string) {
	n.deliver(ctx, LevelSuccess, message)
}

// Error reports a failed command.
func (n *Notifier) Error(ctx context.Context, message string) {
	n.deliver(ctx, LevelError, message)
}

func (n *Notifier) deliver(ctx context.Context, level, message string) {
	toast := Toast{
		Level:         level,
		Message:       message,
		CorrelationID: observability.ExtractCorrelationID(ctx),
		At:            time.Now().UTC(),
	}

	n.logger.InfoContext(ctx, "toast",
		"level", toast.Level,
		"message", toast.Message,
		"correlation_id", toast.CorrelationID,
	)

	if n.sink != nil {
		n.sink(toast)
	}

	if err := n.publish(ctx, toast); err != nil {
		n.logger.WarnContext(ctx, "failed to publish toast", "channel", n.channel, "error", err)
	}
}

func (n *Notifier) publish(ctx context.Context, toast Toast) error {
	if n.rdb == nil || n.channel == "" {
		return nil
	}
	payload, err := json.Marshal(toast)
	if err != nil {
		return fmt.Errorf("marshal toast: %w", err)
	}
	return n.rdb.Publish(ctx, n.channel, string(payload)).Err()
}

// Subscribe listens on the toast channel and calls onToast for each message
// until ctx is done. It returns once the subscription is confirmed.
func (n *Notifier) Subscribe(ctx context.Context, onToast func(Toast)) error {
	if n.rdb == nil || n.channel == "" {
		return ErrNoRedis
	}
	sub := n.rdb.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", n.channel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var toast Toast
				if err := json.Unmarshal([]byte(msg.Payload), &toast); err != nil {
					n.logger.Warn("dropping malformed toast", "channel", msg.Channel, "error", err)
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							n.logger.Error("panic in toast subscriber", "panic", r, "stack", string(debug.Stack()))
						}
					}()
					onToast(toast)
				}()
			}
		}
	}()

	return nil
}

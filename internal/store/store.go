// Package store holds the client-side state for the session, the current
// user's social graph, the following feed and comment commands.
//
// Every command does its network round trip without holding a store lock,
// then applies its whole transition inside one critical section. Calls into
// another store happen after the caller's lock is released.
package store

import (
	"context"
	"sync"

	"feedsync/internal/models"
	"feedsync/internal/observability"
)

// Notifier shows toasts to the user.
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

// SessionGate is the forced-logout path every store uses when the server
// rejects the session.
type SessionGate interface {
	ForceLogout(ctx context.Context)
}

// LikeReceiver is notified by the post store after a like toggle.
type LikeReceiver interface {
	SetPostLiked(postID string, liked bool)
	TogglePostLiked(postID string)
}

// CommentReceiver is notified by the comment store after a comment change.
type CommentReceiver interface {
	ReceiveCommentAdded(comment models.Comment)
	ReceiveCommentRemoved(postID, commentID string)
}

// commander carries the shared command plumbing for one store: tracing,
// metrics, logging, in-flight flags and the failure policy.
type commander struct {
	name     string
	log      *observability.StoreLogger
	notifier Notifier
	session  SessionGate

	mu       sync.Mutex
	inflight map[string]int
}

func newCommander(name string, notifier Notifier, session SessionGate) *commander {
	return &commander{
		name:     name,
		log:      observability.NewStoreLogger(name),
		notifier: notifier,
		session:  session,
		inflight: make(map[string]int),
	}
}

// begin starts a command. The returned func must be called when it ends.
func (c *commander) begin(ctx context.Context, cmd string) (context.Context, func()) {
	ctx = observability.EnsureCorrelationID(ctx)
	span, ctx := observability.TraceCommand(ctx, c.name, cmd)

	c.mu.Lock()
	c.inflight[cmd]++
	c.mu.Unlock()

	return ctx, func() {
		c.mu.Lock()
		c.inflight[cmd]--
		c.mu.Unlock()
		span.End()
	}
}

func (c *commander) loading(cmd string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight[cmd] > 0
}

// fail applies the failure policy and returns err. An authorization error
// forces logout once before the single error toast.
func (c *commander) fail(ctx context.Context, cmd string, err error) error {
	outcome := observability.OutcomeError
	if models.IsUnauthorized(err) && c.session != nil {
		outcome = observability.OutcomeUnauthorized
		c.log.LogForcedLogout(ctx, cmd)
		c.session.ForceLogout(ctx)
	}
	c.log.LogError(ctx, cmd, err)
	observability.RecordCommand(c.name, cmd, outcome)
	c.notifier.Error(ctx, models.MessageOf(err))
	return err
}

// succeed records a successful command and toasts message if it is set.
func (c *commander) succeed(ctx context.Context, cmd, message string, fields map[string]interface{}) {
	c.log.LogApplied(ctx, cmd, fields)
	observability.RecordCommand(c.name, cmd, observability.OutcomeSuccess)
	if message != "" {
		c.notifier.Success(ctx, message)
	}
}

// discarded records a response dropped because a newer request was issued.
func (c *commander) discarded(ctx context.Context, cmd, entity string, seq uint64) {
	c.log.LogDiscarded(ctx, cmd, seq)
	observability.StaleResponsesDiscarded.WithLabelValues(entity).Inc()
	observability.RecordCommand(c.name, cmd, observability.OutcomeSuccess)
}

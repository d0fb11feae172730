// Package client wires the transport, session persistence, notifications and
// stores into one handle for the CLI and for tests.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"feedsync/internal/api"
	"feedsync/internal/cache"
	"feedsync/internal/config"
	"feedsync/internal/models"
	"feedsync/internal/notifications"
	"feedsync/internal/session"
	"feedsync/internal/store"
	"feedsync/internal/transport"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Client exposes every view command through its stores.
type Client struct {
	Transport *transport.Client
	API       *api.Client
	Notifier  *notifications.Notifier

	Session   *store.SessionStore
	Users     *store.UserStore
	Posts     *store.PostStore
	Comments  *store.CommentStore
	Directory *store.Directory

	persister session.Persister
	rdb       *redis.Client
}

type options struct {
	persister  session.Persister
	httpClient *http.Client
	sink       func(notifications.Toast)
}

// Option configures New.
type Option func(*options)

// WithPersister overrides the configured session backend.
func WithPersister(p session.Persister) Option {
	return func(o *options) { o.persister = p }
}

// WithHTTPClient overrides the transport's HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithToastSink receives every toast synchronously.
func WithToastSink(fn func(notifications.Toast)) Option {
	return func(o *options) { o.sink = fn }
}

// New builds a client from cfg. The session is not hydrated until
// Bootstrap.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	tOpts := []transport.Option{
		transport.WithTimeout(cfg.HTTPTimeout),
		transport.WithCookieName(cfg.SessionCookie),
	}
	if o.httpClient != nil {
		tOpts = append(tOpts, transport.WithHTTPClient(o.httpClient))
	}
	tc, err := transport.New(cfg.APIBaseURL, tOpts...)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	c := &Client{Transport: tc, API: api.New(tc)}

	nOpts := []notifications.Option{}
	if o.sink != nil {
		nOpts = append(nOpts, notifications.WithSink(o.sink))
	}
	if cfg.NotifyChannel != "" {
		rdb, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("notify redis: %w", err)
		}
		c.rdb = rdb
		nOpts = append(nOpts, notifications.WithRedis(rdb, cfg.NotifyChannel))
	}
	c.Notifier = notifications.NewNotifier(nOpts...)

	c.persister = o.persister
	if c.persister == nil {
		p, err := session.Open(ctx, cfg)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.persister = p
	}

	c.wire()
	return c, nil
}

func (c *Client) wire() {
	c.Session = store.NewSessionStore(c.API, c.Transport, c.persister, c.Notifier)
	c.Users = store.NewUserStore(c.API, c.Session, c.Notifier)
	c.Posts = store.NewPostStore(c.API, c.Users, c.Session, c.Notifier)
	c.Comments = store.NewCommentStore(c.API, c.Posts, c.Session, c.Notifier)
	c.Directory = store.NewDirectory(c.API, c.Posts, c.Users, c.Session, c.Notifier)

	c.Session.OnLogout(func(context.Context) {
		c.Posts.ResetFeed()
		c.Users.Reset()
	})
}

// Bootstrap restores a persisted session and, when logged in, loads the
// current user and the feed concurrently.
func (c *Client) Bootstrap(ctx context.Context) error {
	if err := c.Session.Hydrate(ctx); err != nil {
		return err
	}
	if !c.Session.IsLoggedIn() {
		return nil
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := c.Users.FetchCurrentUser(ctx)
		return err
	})
	g.Go(func() error {
		_, err := c.Posts.FetchFollowingFeed(ctx)
		return err
	})
	return g.Wait()
}

// Me returns the logged-in user id, or "" when logged out.
func (c *Client) Me() string {
	if u := c.Session.Current(); u != nil {
		return u.ID
	}
	return ""
}

// RequireLogin fails with an authorization error when no session is set.
func (c *Client) RequireLogin() error {
	if !c.Session.IsLoggedIn() {
		return models.NewUnauthorizedError("You are not logged in")
	}
	return nil
}

// Close releases the Redis and database handles held by the client.
func (c *Client) Close() error {
	var errs []error
	if closer, ok := c.persister.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if c.rdb != nil {
		errs = append(errs, c.rdb.Close())
	}
	return errors.Join(errs...)
}

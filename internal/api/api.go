// Package api binds every server route to a typed method.
package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"feedsync/internal/models"
	"feedsync/internal/transport"
)

// Doer executes one envelope request. *transport.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req transport.Request, out any) (string, error)
}

// Response pairs decoded data with the server's message.
type Response[T any] struct {
	Message string
	Data    T
}

// Client is the typed API surface used by the stores.
type Client struct {
	doer Doer
}

// New wraps a transport.
func New(doer Doer) *Client {
	return &Client{doer: doer}
}

func call[T any](ctx context.Context, d Doer, req transport.Request) (Response[T], error) {
	var resp Response[T]
	msg, err := d.Do(ctx, req, &resp.Data)
	if err != nil {
		return Response[T]{}, err
	}
	resp.Message = msg
	return resp, nil
}

func id(s string) string {
	return url.PathEscape(s)
}

// Login submits credentials. The server sets the session cookie and answers
// with the user summary.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (Response[models.UserSummary], error) {
	return call[models.UserSummary](ctx, c.doer, transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		JSON:   creds,
	})
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, reg models.Registration) (string, error) {
	return c.doer.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		JSON:   reg,
	}, nil)
}

// Logout ends the server-side session.
func (c *Client) Logout(ctx context.Context) (string, error) {
	return c.doer.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/auth/logout"}, nil)
}

// CurrentUser returns the authenticated user with graph edges.
func (c *Client) CurrentUser(ctx context.Context) (Response[models.User], error) {
	return call[models.User](ctx, c.doer, transport.Request{Method: http.MethodGet, Path: "/user/profile"})
}

// Follow follows targetID, or sends a request if the target is private.
func (c *Client) Follow(ctx context.Context, targetID string) (Response[models.FollowResult], error) {
	return call[models.FollowResult](ctx, c.doer, transport.Request{
		Method: http.MethodPost,
		Path:   "/user/follow/" + id(targetID),
		Route:  "/user/follow/:id",
	})
}

// Unfollow stops following targetID.
func (c *Client) Unfollow(ctx context.Context, targetID string) (string, error) {
	return c.doer.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/user/unfollow/" + id(targetID),
		Route:  "/user/unfollow/:id",
	}, nil)
}

// CancelFollowRequest withdraws a sent request and returns the new sentRequests.
func (c *Client) CancelFollowRequest(ctx context.Context, targetID string) (Response[[]string], error) {
	return call[[]string](ctx, c.doer, transport.Request{
		Method: http.MethodPost,
		Path:   "/user/cancel/" + id(targetID),
		Route:  "/user/cancel/:id",
	})
}

// AcceptFollowRequest accepts requesterID and returns the new followerRequests
// and followers.
func (c *Client) AcceptFollowRequest(ctx context.Context, requesterID string) (Response[models.AcceptResult], error) {
	return call[models.AcceptResult](ctx, c.doer, transport.Request{
		Method: http.MethodPost,
		Path:   "/user/accept/" + id(requesterID),
		Route:  "/user/accept/:id",
	})
}

// DismissFollowRequest rejects requesterID and returns the new followerRequests.
func (c *Client) DismissFollowRequest(ctx context.Context, requesterID string) (Response[[]string], error) {
	return call[[]string](ctx, c.doer, transport.Request{
		Method: http.MethodPost,
		Path:   "/user/dismiss/" + id(requesterID),
		Route:  "/user/dismiss/:id",
	})
}

// EditProfile uploads the patched profile fields.
func (c *Client) EditProfile(ctx context.Context, patch models.ProfilePatch) (Response[models.ProfileFields], error) {
	form := &transport.Multipart{}
	if patch.Name != nil {
		form.AddField("name", *patch.Name)
	}
	if patch.Private != nil {
		form.AddField("private", strconv.FormatBool(*patch.Private))
	}
	if patch.ProfilePicture != nil {
		form.AddFile("profilePicture", patch.ProfilePicture.Filename, patch.ProfilePicture.Data)
	}
	return call[models.ProfileFields](ctx, c.doer, transport.Request{
		Method: http.MethodPost,
		Path:   "/user/edit",
		Form:   form,
	})
}

// SearchUsers finds users by name.
func (c *Client) SearchUsers(ctx context.Context, query string) (Response[[]models.UserSummary], error) {
	return call[[]models.UserSummary](ctx, c.doer, transport.Request{
		Method: http.MethodGet,
		Path:   "/user/get/" + id(query),
		Route:  "/user/get/:q",
	})
}

// Followers lists the followers of userID.
func (c *Client) Followers(ctx context.Context, userID string) (Response[[]models.UserSummary], error) {
	return call[[]models.UserSummary](ctx, c.doer, transport.Request{
		Method: http.MethodGet,
		Path:   "/user/followers/" + id(userID),
		Route:  "/user/followers/:id",
	})
}

// Followings lists the users userID follows.
func (c *Client) Followings(ctx context.Context, userID string) (Response[[]models.UserSummary], error) {
	return call[[]models.UserSummary](ctx, c.doer, transport.Request{
		Method: http.MethodGet,
		Path:   "/user/followings/" + id(userID),
		Route:  "/user/followings/:id",
	})
}

// SentRequests lists the users the current user has requested to follow.
func (c *Client) SentRequests(ctx context.Context) (Response[[]models.UserSummary], error) {
	return call[[]models.UserSummary](ctx, c.doer, transport.Request{Method: http.MethodGet, Path: "/user/sentRequests"})
}

// FollowerRequests lists the users waiting for the current user's approval.
func (c *Client) FollowerRequests(ctx context.Context) (Response[[]models.UserSummary], error) {
	return call[[]models.UserSummary](ctx, c.doer, transport.Request{Method: http.MethodGet, Path: "/user/followerRequests"})
}

// FollowingFeed returns the posts of followed users, newest first.
func (c *Client) FollowingFeed(ctx context.Context) (Response[[]models.Post], error) {
	return call[[]models.Post](ctx, c.doer, transport.Request{Method: http.MethodGet, Path: "/post/followings"})
}

func postForm(p models.PostPayload) *transport.Multipart {
	form := &transport.Multipart{}
	form.AddField("content", p.Content)
	for _, img := range p.Images {
		form.AddFile("images", img.Filename, img.Data)
	}
	return form
}

// CreatePost publishes a new post.
func (c *Client) CreatePost(ctx context.Context, p models.PostPayload) (Response[models.Post], error) {
	return call[models.Post](ctx, c.doer, transport.Request{
		Method: http.MethodPost,
		Path:   "/post/create",
		Form:   postForm(p),
	})
}

// UpdatePost replaces the content and images of postID.
func (c *Client) UpdatePost(ctx context.Context, postID string, p models.PostPayload) (Response[models.Post], error) {
	return call[models.Post](ctx, c.doer, transport.Request{
		Method: http.MethodPut,
		Path:   "/post/update/" + id(postID),
		Route:  "/post/update/:id",
		Form:   postForm(p),
	})
}

// DeletePost removes postID.
func (c *Client) DeletePost(ctx context.Context, postID string) (string, error) {
	return c.doer.Do(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   "/post/delete/" + id(postID),
		Route:  "/post/delete/:id",
	}, nil)
}

// LikePost toggles the current user's like on postID.
func (c *Client) LikePost(ctx context.Context, postID string) (string, error) {
	return c.doer.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/post/like/" + id(postID),
		Route:  "/post/like/:id",
	}, nil)
}

// UserPosts returns a user's profile and posts.
func (c *Client) UserPosts(ctx context.Context, userID string) (Response[models.UserPosts], error) {
	return call[models.UserPosts](ctx, c.doer, transport.Request{
		Method: http.MethodGet,
		Path:   "/post/get/" + id(userID),
		Route:  "/post/get/:id",
	})
}

// LikedPosts returns the posts the current user has liked.
func (c *Client) LikedPosts(ctx context.Context) (Response[[]models.Post], error) {
	return call[[]models.Post](ctx, c.doer, transport.Request{Method: http.MethodGet, Path: "/post/likedPosts"})
}

// AddComment comments on postID.
func (c *Client) AddComment(ctx context.Context, postID, content string) (Response[models.Comment], error) {
	return call[models.Comment](ctx, c.doer, transport.Request{
		Method: http.MethodPost,
		Path:   "/comment/" + id(postID),
		Route:  "/comment/:postId",
		JSON:   map[string]string{"content": content},
	})
}

// DeleteComment removes commentID.
func (c *Client) DeleteComment(ctx context.Context, commentID string) (string, error) {
	return c.doer.Do(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   "/comment/" + id(commentID),
		Route:  "/comment/:commentId",
	}, nil)
}

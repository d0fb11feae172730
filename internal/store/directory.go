package store

import (
	"context"
	"strings"

	"feedsync/internal/api"
	"feedsync/internal/models"
)

// Directory queries.
const (
	CmdProfilePosts     = "profilePosts"
	CmdLikedPosts       = "likedPosts"
	CmdSearchUsers      = "searchUsers"
	CmdFollowers        = "followers"
	CmdFollowings       = "followings"
	CmdSentRequests     = "sentRequests"
	CmdFollowerRequests = "followerRequests"
)

// Profile sources.
const (
	SourceFeed   = "feed"
	SourceServer = "server"
)

// DirectoryAPI is the read-only part of the server API.
type DirectoryAPI interface {
	UserPosts(ctx context.Context, userID string) (api.Response[models.UserPosts], error)
	LikedPosts(ctx context.Context) (api.Response[[]models.Post], error)
	SearchUsers(ctx context.Context, query string) (api.Response[[]models.UserSummary], error)
	Followers(ctx context.Context, userID string) (api.Response[[]models.UserSummary], error)
	Followings(ctx context.Context, userID string) (api.Response[[]models.UserSummary], error)
	SentRequests(ctx context.Context) (api.Response[[]models.UserSummary], error)
	FollowerRequests(ctx context.Context) (api.Response[[]models.UserSummary], error)
}

// FeedReader is the projection surface of the post store.
type FeedReader interface {
	PostsByAuthor(authorID string) []models.Post
}

// UserReader is the read surface of the user store.
type UserReader interface {
	Snapshot() *models.User
}

// ProfilePage is a profile with its posts. Source tells whether the posts
// were projected from the feed or fetched.
type ProfilePage struct {
	Profile models.Profile
	Posts   []models.Post
	Source  string
}

// Directory answers read-only queries. Nothing it returns is stored.
type Directory struct {
	api   DirectoryAPI
	feed  FeedReader
	users UserReader
	cmd   *commander
}

// NewDirectory creates the query surface.
func NewDirectory(dirAPI DirectoryAPI, feed FeedReader, users UserReader, session SessionGate, notifier Notifier) *Directory {
	return &Directory{
		api:   dirAPI,
		feed:  feed,
		users: users,
		cmd:   newCommander("directory", notifier, session),
	}
}

// ProfilePosts shows userID's profile. The current user and authors already
// in the feed are projected from the feed; anyone else is fetched.
func (d *Directory) ProfilePosts(ctx context.Context, userID string) (ProfilePage, error) {
	ctx, done := d.cmd.begin(ctx, CmdProfilePosts)
	defer done()

	me := d.users.Snapshot()
	posts := d.feed.PostsByAuthor(userID)
	isSelf := me != nil && me.ID == userID

	if isSelf || len(posts) > 0 {
		page := ProfilePage{Posts: posts, Source: SourceFeed}
		if page.Posts == nil {
			page.Posts = []models.Post{}
		}
		switch {
		case isSelf:
			page.Profile = profileFromUser(me, len(posts))
		default:
			page.Profile = profileFromSummary(posts[0].Author, len(posts))
			if me != nil {
				for _, f := range me.Followings {
					if f.ID == userID {
						page.Profile = profileFromSummary(f, len(posts))
						break
					}
				}
			}
		}
		d.cmd.succeed(ctx, CmdProfilePosts, "", map[string]interface{}{"user_id": userID, "source": SourceFeed})
		return page, nil
	}

	resp, err := d.api.UserPosts(ctx, userID)
	if err != nil {
		return ProfilePage{}, d.cmd.fail(ctx, CmdProfilePosts, err)
	}
	page := ProfilePage{Profile: resp.Data.User, Posts: resp.Data.Posts, Source: SourceServer}
	if page.Posts == nil {
		page.Posts = []models.Post{}
	}
	d.cmd.succeed(ctx, CmdProfilePosts, "", map[string]interface{}{"user_id": userID, "source": SourceServer})
	return page, nil
}

func profileFromUser(u *models.User, posts int) models.Profile {
	return models.Profile{
		ID:              u.ID,
		Name:            u.Name,
		ProfilePicture:  u.ProfilePicture,
		Private:         u.Private,
		Followers:       u.Followers,
		Followings:      u.Followings,
		FollowersCount:  len(u.Followers),
		FollowingsCount: len(u.Followings),
		PostsCount:      posts,
	}
}

func profileFromSummary(u models.UserSummary, posts int) models.Profile {
	return models.Profile{
		ID:             u.ID,
		Name:           u.Name,
		ProfilePicture: u.ProfilePicture,
		Private:        u.Private,
		PostsCount:     posts,
	}
}

// LikedPosts returns the posts the current user has liked.
func (d *Directory) LikedPosts(ctx context.Context) ([]models.Post, error) {
	ctx, done := d.cmd.begin(ctx, CmdLikedPosts)
	defer done()

	resp, err := d.api.LikedPosts(ctx)
	if err != nil {
		return nil, d.cmd.fail(ctx, CmdLikedPosts, err)
	}
	d.cmd.succeed(ctx, CmdLikedPosts, "", map[string]interface{}{"count": len(resp.Data)})
	return resp.Data, nil
}

// SearchUsers finds users by name.
func (d *Directory) SearchUsers(ctx context.Context, query string) ([]models.UserSummary, error) {
	ctx, done := d.cmd.begin(ctx, CmdSearchUsers)
	defer done()

	query = strings.TrimSpace(query)
	if query == "" {
		return []models.UserSummary{}, nil
	}
	return d.listUsers(ctx, CmdSearchUsers, func() (api.Response[[]models.UserSummary], error) {
		return d.api.SearchUsers(ctx, query)
	})
}

// Followers lists userID's followers.
func (d *Directory) Followers(ctx context.Context, userID string) ([]models.UserSummary, error) {
	ctx, done := d.cmd.begin(ctx, CmdFollowers)
	defer done()
	return d.listUsers(ctx, CmdFollowers, func() (api.Response[[]models.UserSummary], error) {
		return d.api.Followers(ctx, userID)
	})
}

// Followings lists the users userID follows.
func (d *Directory) Followings(ctx context.Context, userID string) ([]models.UserSummary, error) {
	ctx, done := d.cmd.begin(ctx, CmdFollowings)
	defer done()
	return d.listUsers(ctx, CmdFollowings, func() (api.Response[[]models.UserSummary], error) {
		return d.api.Followings(ctx, userID)
	})
}

// SentRequests lists pending requests the current user sent.
func (d *Directory) SentRequests(ctx context.Context) ([]models.UserSummary, error) {
	ctx, done := d.cmd.begin(ctx, CmdSentRequests)
	defer done()
	return d.listUsers(ctx, CmdSentRequests, func() (api.Response[[]models.UserSummary], error) {
		return d.api.SentRequests(ctx)
	})
}

// FollowerRequests lists pending requests to the current user.
func (d *Directory) FollowerRequests(ctx context.Context) ([]models.UserSummary, error) {
	ctx, done := d.cmd.begin(ctx, CmdFollowerRequests)
	defer done()
	return d.listUsers(ctx, CmdFollowerRequests, func() (api.Response[[]models.UserSummary], error) {
		return d.api.FollowerRequests(ctx)
	})
}

func (d *Directory) listUsers(ctx context.Context, cmd string, fetch func() (api.Response[[]models.UserSummary], error)) ([]models.UserSummary, error) {
	resp, err := fetch()
	if err != nil {
		return nil, d.cmd.fail(ctx, cmd, err)
	}
	users := resp.Data
	if users == nil {
		users = []models.UserSummary{}
	}
	d.cmd.succeed(ctx, cmd, "", map[string]interface{}{"count": len(users)})
	return users, nil
}

package store

import (
	"context"
	"sync"

	"feedsync/internal/api"
	"feedsync/internal/media"
	"feedsync/internal/models"
)

// Post store commands.
const (
	CmdFetchFollowingFeed = "fetchFollowingFeed"
	CmdCreatePost         = "createPost"
	CmdUpdatePost         = "updatePost"
	CmdDeletePost         = "deletePost"
	CmdLikePost           = "likePost"
)

// PostAPI is the post part of the server API.
type PostAPI interface {
	FollowingFeed(ctx context.Context) (api.Response[[]models.Post], error)
	CreatePost(ctx context.Context, p models.PostPayload) (api.Response[models.Post], error)
	UpdatePost(ctx context.Context, postID string, p models.PostPayload) (api.Response[models.Post], error)
	DeletePost(ctx context.Context, postID string) (string, error)
	LikePost(ctx context.Context, postID string) (string, error)
}

// PostStore owns the following feed in server order, newest first.
type PostStore struct {
	api   PostAPI
	likes LikeReceiver
	cmd   *commander

	mu    sync.RWMutex
	posts []models.Post
	seq   uint64
}

// NewPostStore creates an empty feed. likes may be nil.
func NewPostStore(postAPI PostAPI, likes LikeReceiver, session SessionGate, notifier Notifier) *PostStore {
	return &PostStore{
		api:   postAPI,
		likes: likes,
		cmd:   newCommander("post", notifier, session),
	}
}

func (s *PostStore) indexOf(postID string) int {
	for i := range s.posts {
		if s.posts[i].ID == postID {
			return i
		}
	}
	return -1
}

// FetchFollowingFeed replaces the feed with the server's list. A response is
// dropped if a newer fetch or a reset was issued meanwhile.
func (s *PostStore) FetchFollowingFeed(ctx context.Context) ([]models.Post, error) {
	ctx, done := s.cmd.begin(ctx, CmdFetchFollowingFeed)
	defer done()

	s.mu.Lock()
	s.seq++
	ticket := s.seq
	s.mu.Unlock()

	resp, err := s.api.FollowingFeed(ctx)
	if err != nil {
		return nil, s.cmd.fail(ctx, CmdFetchFollowingFeed, err)
	}

	s.mu.Lock()
	if ticket != s.seq {
		s.mu.Unlock()
		s.cmd.discarded(ctx, CmdFetchFollowingFeed, "feed", ticket)
		return s.Snapshot(), nil
	}
	s.posts = models.ClonePosts(resp.Data)
	if s.posts == nil {
		s.posts = []models.Post{}
	}
	out := models.ClonePosts(s.posts)
	s.mu.Unlock()

	s.cmd.succeed(ctx, CmdFetchFollowingFeed, "", map[string]interface{}{"count": len(out)})
	return out, nil
}

// CreatePost publishes a post and prepends it to the feed.
func (s *PostStore) CreatePost(ctx context.Context, payload models.PostPayload) (models.Post, error) {
	ctx, done := s.cmd.begin(ctx, CmdCreatePost)
	defer done()

	if err := media.ValidatePostPayload(payload); err != nil {
		return models.Post{}, s.cmd.fail(ctx, CmdCreatePost, err)
	}

	resp, err := s.api.CreatePost(ctx, payload)
	if err != nil {
		return models.Post{}, s.cmd.fail(ctx, CmdCreatePost, err)
	}
	post := resp.Data

	s.mu.Lock()
	s.posts = append([]models.Post{post.Clone()}, s.posts...)
	s.mu.Unlock()

	s.cmd.succeed(ctx, CmdCreatePost, resp.Message, map[string]interface{}{"post_id": post.ID})
	return post, nil
}

// UpdatePost replaces the post by id. A post missing from the feed is left
// missing.
func (s *PostStore) UpdatePost(ctx context.Context, postID string, payload models.PostPayload) (models.Post, error) {
	ctx, done := s.cmd.begin(ctx, CmdUpdatePost)
	defer done()

	if err := media.ValidatePostPayload(payload); err != nil {
		return models.Post{}, s.cmd.fail(ctx, CmdUpdatePost, err)
	}

	resp, err := s.api.UpdatePost(ctx, postID, payload)
	if err != nil {
		return models.Post{}, s.cmd.fail(ctx, CmdUpdatePost, err)
	}
	post := resp.Data
	if post.ID == "" {
		post.ID = postID
	}

	s.mu.Lock()
	if i := s.indexOf(post.ID); i >= 0 {
		s.posts[i] = post.Clone()
	}
	s.mu.Unlock()

	s.cmd.succeed(ctx, CmdUpdatePost, resp.Message, map[string]interface{}{"post_id": post.ID})
	return post, nil
}

// DeletePost removes the post by id. A missing post is not an error.
func (s *PostStore) DeletePost(ctx context.Context, postID string) error {
	ctx, done := s.cmd.begin(ctx, CmdDeletePost)
	defer done()

	msg, err := s.api.DeletePost(ctx, postID)
	if err != nil {
		return s.cmd.fail(ctx, CmdDeletePost, err)
	}

	s.mu.Lock()
	if i := s.indexOf(postID); i >= 0 {
		s.posts = append(s.posts[:i:i], s.posts[i+1:]...)
	}
	s.mu.Unlock()

	s.cmd.succeed(ctx, CmdDeletePost, msg, map[string]interface{}{"post_id": postID})
	return nil
}

// LikePost toggles userID's like on postID once the server confirms. The
// user store receives the resulting membership so both sides agree. For a
// post outside the feed the user store toggles on its own.
func (s *PostStore) LikePost(ctx context.Context, postID, userID string) error {
	ctx, done := s.cmd.begin(ctx, CmdLikePost)
	defer done()

	if _, err := s.api.LikePost(ctx, postID); err != nil {
		return s.cmd.fail(ctx, CmdLikePost, err)
	}

	// The user store is updated under s.mu so concurrent likes apply to both
	// stores in the same order. Lock order is post then user; the user store
	// never calls back into the post store.
	found, liked := false, false
	s.mu.Lock()
	if i := s.indexOf(postID); i >= 0 {
		found = true
		s.posts[i].Likes, liked = models.ToggleID(models.CloneIDs(s.posts[i].Likes), userID)
	}
	if s.likes != nil {
		if found {
			s.likes.SetPostLiked(postID, liked)
		} else {
			s.likes.TogglePostLiked(postID)
		}
	}
	s.mu.Unlock()

	s.cmd.succeed(ctx, CmdLikePost, "", map[string]interface{}{"post_id": postID, "in_feed": found, "liked": liked})
	return nil
}

// ResetFeed clears the feed. Fetches issued before the reset are discarded.
func (s *PostStore) ResetFeed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = nil
	s.seq++
}

// ReceiveCommentAdded prepends comment to its post. No-op if the post is
// not in the feed.
func (s *PostStore) ReceiveCommentAdded(comment models.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(comment.PostID)
	if i < 0 {
		return
	}
	s.posts[i].Comments = append([]models.Comment{comment}, s.posts[i].Comments...)
}

// ReceiveCommentRemoved drops commentID from postID. No-op if the post is
// not in the feed.
func (s *PostStore) ReceiveCommentRemoved(postID, commentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(postID)
	if i < 0 {
		return
	}
	kept := s.posts[i].Comments[:0:0]
	for _, c := range s.posts[i].Comments {
		if c.ID != commentID {
			kept = append(kept, c)
		}
	}
	s.posts[i].Comments = kept
}

// Snapshot returns a deep copy of the feed.
func (s *PostStore) Snapshot() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.ClonePosts(s.posts)
}

// Find returns a copy of the post with id.
func (s *PostStore) Find(postID string) (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(postID); i >= 0 {
		return s.posts[i].Clone(), true
	}
	return models.Post{}, false
}

// PostsByAuthor returns the feed's posts by authorID in feed order.
func (s *PostStore) PostsByAuthor(authorID string) []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Post
	for _, p := range s.posts {
		if p.Author.ID == authorID {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Loading reports whether a command of the given kind is in flight.
func (s *PostStore) Loading(cmd string) bool {
	return s.cmd.loading(cmd)
}

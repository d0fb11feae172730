package store

import (
	"context"
	"strings"
	"sync"

	"feedsync/internal/api"
	"feedsync/internal/media"
	"feedsync/internal/models"
)

// User store commands.
const (
	CmdFetchCurrentUser     = "fetchCurrentUser"
	CmdFollow               = "follow"
	CmdUnfollow             = "unfollow"
	CmdCancelFollowRequest  = "cancelFollowRequest"
	CmdAcceptFollowRequest  = "acceptFollowRequest"
	CmdDismissFollowRequest = "dismissFollowRequest"
	CmdEditProfile          = "editProfile"
)

// Relationship of another user to the current user, as the profile page
// shows it.
type Relationship string

const (
	RelationSelf        Relationship = "self"
	RelationFollowing   Relationship = "following"
	RelationRequested   Relationship = "requested"
	RelationRequestedBy Relationship = "requested_by"
	RelationFollower    Relationship = "follower"
	RelationNone        Relationship = "none"
)

// UserAPI is the social-graph part of the server API.
type UserAPI interface {
	CurrentUser(ctx context.Context) (api.Response[models.User], error)
	Follow(ctx context.Context, targetID string) (api.Response[models.FollowResult], error)
	Unfollow(ctx context.Context, targetID string) (string, error)
	CancelFollowRequest(ctx context.Context, targetID string) (api.Response[[]string], error)
	AcceptFollowRequest(ctx context.Context, requesterID string) (api.Response[models.AcceptResult], error)
	DismissFollowRequest(ctx context.Context, requesterID string) (api.Response[[]string], error)
	EditProfile(ctx context.Context, patch models.ProfilePatch) (api.Response[models.ProfileFields], error)
}

// UserStore owns the current user's profile, graph edges and liked posts.
//
// Follow and unfollow edit the sets locally from the confirmed result. The
// request-management commands take the server's sets wholesale because
// accept moves two sets together.
type UserStore struct {
	api UserAPI
	cmd *commander

	mu   sync.RWMutex
	user *models.User
	seq  uint64
}

// NewUserStore creates an empty user store.
func NewUserStore(userAPI UserAPI, session SessionGate, notifier Notifier) *UserStore {
	return &UserStore{
		api: userAPI,
		cmd: newCommander("user", notifier, session),
	}
}

// FetchCurrentUser replaces the whole user with the server's copy. A
// response is dropped if a newer fetch or a reset was issued meanwhile.
func (s *UserStore) FetchCurrentUser(ctx context.Context) (*models.User, error) {
	ctx, done := s.cmd.begin(ctx, CmdFetchCurrentUser)
	defer done()

	s.mu.Lock()
	s.seq++
	ticket := s.seq
	s.mu.Unlock()

	resp, err := s.api.CurrentUser(ctx)
	if err != nil {
		return nil, s.cmd.fail(ctx, CmdFetchCurrentUser, err)
	}

	user := resp.Data
	s.mu.Lock()
	if ticket != s.seq {
		s.mu.Unlock()
		s.cmd.discarded(ctx, CmdFetchCurrentUser, "user", ticket)
		return s.Snapshot(), nil
	}
	s.user = &user
	out := s.user.Clone()
	s.mu.Unlock()

	s.cmd.succeed(ctx, CmdFetchCurrentUser, "", map[string]interface{}{"user_id": user.ID})
	return out, nil
}

// Follow follows a public target or requests a private one. Following a
// user who has a pending request to the current user is rejected locally.
func (s *UserStore) Follow(ctx context.Context, targetID string) error {
	ctx, done := s.cmd.begin(ctx, CmdFollow)
	defer done()

	s.mu.RLock()
	var guard error
	switch {
	case s.user != nil && s.user.ID == targetID:
		guard = models.NewValidationError("You cannot follow yourself")
	case s.user != nil && models.ContainsID(s.user.FollowerRequests, targetID):
		guard = models.NewValidationError("This user has requested to follow you; accept or dismiss the request first")
	}
	s.mu.RUnlock()
	if guard != nil {
		return s.cmd.fail(ctx, CmdFollow, guard)
	}

	resp, err := s.api.Follow(ctx, targetID)
	if err != nil {
		return s.cmd.fail(ctx, CmdFollow, err)
	}
	target := resp.Data.User
	if target.ID == "" {
		target.ID = targetID
	}

	s.mu.Lock()
	if s.user != nil {
		if target.Private {
			s.user.SentRequests = models.AddID(s.user.SentRequests, target.ID)
			s.user.Followings = removeSummary(s.user.Followings, target.ID)
		} else {
			if !s.user.IsFollowing(target.ID) {
				s.user.Followings = append(s.user.Followings, target)
			}
			s.user.SentRequests = models.RemoveID(s.user.SentRequests, target.ID)
		}
	}
	s.mu.Unlock()

	s.cmd.succeed(ctx, CmdFollow, "", map[string]interface{}{"target_id": target.ID, "private": target.Private})
	return nil
}

// Unfollow removes the target from followings.
func (s *UserStore) Unfollow(ctx context.Context, targetID string) error {
	ctx, done := s.cmd.begin(ctx, CmdUnfollow)
	defer done()

	if _, err := s.api.Unfollow(ctx, targetID); err != nil {
		return s.cmd.fail(ctx, CmdUnfollow, err)
	}

	s.mu.Lock()
	if s.user != nil {
		s.user.Followings = removeSummary(s.user.Followings, targetID)
	}
	s.mu.Unlock()

	s.cmd.succeed(ctx, CmdUnfollow, "", map[string]interface{}{"target_id": targetID})
	return nil
}

// CancelFollowRequest withdraws a sent request and takes the server's
// sentRequests.
func (s *UserStore) CancelFollowRequest(ctx context.Context, targetID string) error {
	ctx, done := s.cmd.begin(ctx, CmdCancelFollowRequest)
	defer done()

	resp, err := s.api.CancelFollowRequest(ctx, targetID)
	if err != nil {
		return s.cmd.fail(ctx, CmdCancelFollowRequest, err)
	}

	s.mu.Lock()
	if s.user != nil {
		s.user.SentRequests = models.CloneIDs(resp.Data)
	}
	s.mu.Unlock()

	s.cmd.succeed(ctx, CmdCancelFollowRequest, "", map[string]interface{}{"target_id": targetID})
	return nil
}

// AcceptFollowRequest takes the server's followerRequests and followers in
// one transition.
func (s *UserStore) AcceptFollowRequest(ctx context.Context, requesterID string) error {
	ctx, done := s.cmd.begin(ctx, CmdAcceptFollowRequest)
	defer done()

	resp, err := s.api.AcceptFollowRequest(ctx, requesterID)
	if err != nil {
		return s.cmd.fail(ctx, CmdAcceptFollowRequest, err)
	}

	s.mu.Lock()
	if s.user != nil {
		s.user.FollowerRequests = models.CloneIDs(resp.Data.FollowerRequests)
		s.user.Followers = models.CloneIDs(resp.Data.Followers)
	}
	s.mu.Unlock()

	s.cmd.succeed(ctx, CmdAcceptFollowRequest, "", map[string]interface{}{"requester_id": requesterID})
	return nil
}

// DismissFollowRequest rejects a request and takes the server's
// followerRequests.
func (s *UserStore) DismissFollowRequest(ctx context.Context, requesterID string) error {
	ctx, done := s.cmd.begin(ctx, CmdDismissFollowRequest)
	defer done()

	resp, err := s.api.DismissFollowRequest(ctx, requesterID)
	if err != nil {
		return s.cmd.fail(ctx, CmdDismissFollowRequest, err)
	}

	s.mu.Lock()
	if s.user != nil {
		s.user.FollowerRequests = models.CloneIDs(resp.Data)
	}
	s.mu.Unlock()

	s.cmd.succeed(ctx, CmdDismissFollowRequest, "", map[string]interface{}{"requester_id": requesterID})
	return nil
}

// EditProfile patches name, privacy and profile picture. Graph edges are
// left alone.
func (s *UserStore) EditProfile(ctx context.Context, patch models.ProfilePatch) error {
	ctx, done := s.cmd.begin(ctx, CmdEditProfile)
	defer done()

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return s.cmd.fail(ctx, CmdEditProfile, models.NewValidationError("Name cannot be empty"))
		}
		patch.Name = &name
	}
	if patch.ProfilePicture != nil {
		if err := media.ValidateImage(*patch.ProfilePicture); err != nil {
			return s.cmd.fail(ctx, CmdEditProfile, err)
		}
	}

	resp, err := s.api.EditProfile(ctx, patch)
	if err != nil {
		return s.cmd.fail(ctx, CmdEditProfile, err)
	}

	s.mu.Lock()
	if s.user != nil {
		s.user.Name = resp.Data.Name
		s.user.Private = resp.Data.Private
		s.user.ProfilePicture = resp.Data.ProfilePicture
	}
	s.mu.Unlock()

	s.cmd.succeed(ctx, CmdEditProfile, resp.Message, nil)
	return nil
}

// SetPostLiked sets postID's membership in likedPosts.
func (s *UserStore) SetPostLiked(postID string, liked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return
	}
	if liked {
		s.user.LikedPosts = models.AddID(s.user.LikedPosts, postID)
	} else {
		s.user.LikedPosts = models.RemoveID(s.user.LikedPosts, postID)
	}
}

// TogglePostLiked flips postID's membership in likedPosts.
func (s *UserStore) TogglePostLiked(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return
	}
	s.user.LikedPosts, _ = models.ToggleID(s.user.LikedPosts, postID)
}

// Reset drops the user. Fetches issued before the reset are discarded.
func (s *UserStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.seq++
}

// Snapshot returns a deep copy of the current user, or nil.
func (s *UserStore) Snapshot() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// Relationship classifies id relative to the current user.
func (s *UserStore) Relationship(id string) Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u := s.user
	switch {
	case u == nil:
		return RelationNone
	case u.ID == id:
		return RelationSelf
	case u.IsFollowing(id):
		return RelationFollowing
	case models.ContainsID(u.SentRequests, id):
		return RelationRequested
	case models.ContainsID(u.FollowerRequests, id):
		return RelationRequestedBy
	case models.ContainsID(u.Followers, id):
		return RelationFollower
	default:
		return RelationNone
	}
}

// Loading reports whether a command of the given kind is in flight.
func (s *UserStore) Loading(cmd string) bool {
	return s.cmd.loading(cmd)
}

func removeSummary(list []models.UserSummary, id string) []models.UserSummary {
	out := list[:0:0]
	for _, u := range list {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}

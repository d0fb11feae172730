package store

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"feedsync/internal/api"
	"feedsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func loadedUserStore(t *testing.T, u models.User, stub *userAPIStub) (*UserStore, *gateCounter, *toastRecorder) {
	t.Helper()
	current := stub.currentUserFn
	stub.currentUserFn = func(context.Context) (api.Response[models.User], error) {
		return api.Response[models.User]{Data: *u.Clone()}, nil
	}
	gate := &gateCounter{}
	toasts := &toastRecorder{}
	s := NewUserStore(stub, gate, toasts)
	_, err := s.FetchCurrentUser(context.Background())
	require.NoError(t, err)
	stub.currentUserFn = current
	stub.calls.Store(0)
	return s, gate, toasts
}

func followReturning(target models.UserSummary) *userAPIStub {
	stub := failingUserAPI(fmt.Errorf("unexpected call"))
	stub.followFn = func(context.Context, string) (api.Response[models.FollowResult], error) {
		return api.Response[models.FollowResult]{Data: models.FollowResult{User: target}}, nil
	}
	return stub
}

func TestUserStore_FollowPrivateThenCancel(t *testing.T) {
	stub := followReturning(models.UserSummary{ID: "t1", Name: "Priv", Private: true})
	stub.cancelFn = func(context.Context, string) (api.Response[[]string], error) {
		return api.Response[[]string]{Data: []string{}}, nil
	}
	s, _, _ := loadedUserStore(t, models.User{ID: "me", SentRequests: []string{}}, stub)
	ctx := context.Background()

	require.NoError(t, s.Follow(ctx, "t1"))
	assert.Equal(t, []string{"t1"}, s.Snapshot().SentRequests)
	assert.Empty(t, s.Snapshot().Followings)

	require.NoError(t, s.Follow(ctx, "t1"))
	assert.Equal(t, []string{"t1"}, s.Snapshot().SentRequests, "private follow insert is idempotent")

	require.NoError(t, s.CancelFollowRequest(ctx, "t1"))
	assert.Equal(t, []string{}, s.Snapshot().SentRequests)
}

func TestUserStore_FollowPublicIsIdempotent(t *testing.T) {
	target := models.UserSummary{ID: "t2", Name: "Pub"}
	s, _, _ := loadedUserStore(t, models.User{ID: "me"}, followReturning(target))
	ctx := context.Background()

	require.NoError(t, s.Follow(ctx, "t2"))
	require.NoError(t, s.Follow(ctx, "t2"))

	snap := s.Snapshot()
	assert.Equal(t, []models.UserSummary{target}, snap.Followings)
	assert.Empty(t, snap.SentRequests)
	assert.Equal(t, RelationFollowing, s.Relationship("t2"))
}

func TestUserStore_FollowPublicClearsStaleRequest(t *testing.T) {
	target := models.UserSummary{ID: "t2", Name: "Now public"}
	s, _, _ := loadedUserStore(t, models.User{ID: "me", SentRequests: []string{"t2"}}, followReturning(target))

	require.NoError(t, s.Follow(context.Background(), "t2"))
	snap := s.Snapshot()
	assert.Empty(t, snap.SentRequests)
	assert.True(t, snap.IsFollowing("t2"))
}

func TestUserStore_FollowGuards(t *testing.T) {
	stub := followReturning(models.UserSummary{ID: "r1"})
	s, gate, toasts := loadedUserStore(t, models.User{ID: "me", FollowerRequests: []string{"r1"}}, stub)
	ctx := context.Background()

	err := s.Follow(ctx, "r1")
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))

	err = s.Follow(ctx, "me")
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))

	assert.Zero(t, stub.calls.Load())
	assert.Zero(t, gate.count())
	assert.Equal(t, 2, toasts.errorCount())
	assert.Equal(t, []string{"r1"}, s.Snapshot().FollowerRequests)
}

func TestUserStore_Unfollow(t *testing.T) {
	stub := failingUserAPI(fmt.Errorf("unexpected call"))
	stub.unfollowFn = func(context.Context, string) (string, error) { return "Unfollowed", nil }
	s, _, _ := loadedUserStore(t, models.User{
		ID:         "me",
		Followings: []models.UserSummary{{ID: "a"}, {ID: "b"}},
	}, stub)

	require.NoError(t, s.Unfollow(context.Background(), "a"))
	assert.Equal(t, []models.UserSummary{{ID: "b"}}, s.Snapshot().Followings)
}

func TestUserStore_AcceptReplacesBothSets(t *testing.T) {
	stub := failingUserAPI(fmt.Errorf("unexpected call"))
	stub.acceptFn = func(context.Context, string) (api.Response[models.AcceptResult], error) {
		return api.Response[models.AcceptResult]{Data: models.AcceptResult{
			FollowerRequests: []string{},
			Followers:        []string{"R"},
		}}, nil
	}
	s, _, _ := loadedUserStore(t, models.User{ID: "me", FollowerRequests: []string{"R"}, Followers: []string{}}, stub)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var torn int
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := s.Snapshot()
			before := len(snap.FollowerRequests) == 1 && len(snap.Followers) == 0
			after := len(snap.FollowerRequests) == 0 && len(snap.Followers) == 1
			if !before && !after {
				torn++
			}
		}
	}()

	require.NoError(t, s.AcceptFollowRequest(context.Background(), "R"))
	close(stop)
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, []string{}, snap.FollowerRequests)
	assert.Equal(t, []string{"R"}, snap.Followers)
	assert.Zero(t, torn, "accept must never be observable half-applied")
	assert.Equal(t, RelationFollower, s.Relationship("R"))
}

func TestUserStore_Dismiss(t *testing.T) {
	stub := failingUserAPI(fmt.Errorf("unexpected call"))
	stub.dismissFn = func(context.Context, string) (api.Response[[]string], error) {
		return api.Response[[]string]{Data: []string{"other"}}, nil
	}
	s, _, _ := loadedUserStore(t, models.User{ID: "me", FollowerRequests: []string{"R", "other"}}, stub)

	require.NoError(t, s.DismissFollowRequest(context.Background(), "R"))
	assert.Equal(t, []string{"other"}, s.Snapshot().FollowerRequests)
	assert.Equal(t, RelationRequestedBy, s.Relationship("other"))
	assert.Equal(t, RelationNone, s.Relationship("R"))
}

func TestUserStore_EditProfilePatchesThreeFields(t *testing.T) {
	stub := failingUserAPI(fmt.Errorf("unexpected call"))
	var sent models.ProfilePatch
	stub.editFn = func(_ context.Context, p models.ProfilePatch) (api.Response[models.ProfileFields], error) {
		sent = p
		return api.Response[models.ProfileFields]{
			Message: "Profile updated",
			Data:    models.ProfileFields{Name: "New", Private: true, ProfilePicture: "pic.png"},
		}, nil
	}
	before := models.User{
		ID:         "me",
		Name:       "Old",
		LikedPosts: []string{"p1"},
		Followers:  []string{"f1"},
		Followings: []models.UserSummary{{ID: "g1"}},
	}
	s, _, toasts := loadedUserStore(t, before, stub)

	name := "  New  "
	private := true
	require.NoError(t, s.EditProfile(context.Background(), models.ProfilePatch{Name: &name, Private: &private}))

	require.NotNil(t, sent.Name)
	assert.Equal(t, "New", *sent.Name)
	snap := s.Snapshot()
	assert.Equal(t, "New", snap.Name)
	assert.True(t, snap.Private)
	assert.Equal(t, "pic.png", snap.ProfilePicture)
	assert.Equal(t, before.LikedPosts, snap.LikedPosts)
	assert.Equal(t, before.Followers, snap.Followers)
	assert.Equal(t, before.Followings, snap.Followings)
	assert.Equal(t, []string{"Profile updated"}, toasts.successes)
}

func TestUserStore_EditProfileRejectsBadPicture(t *testing.T) {
	stub := failingUserAPI(fmt.Errorf("unexpected call"))
	s, _, _ := loadedUserStore(t, models.User{ID: "me"}, stub)

	err := s.EditProfile(context.Background(), models.ProfilePatch{
		ProfilePicture: &models.Upload{Filename: "x.txt", Data: []byte("text")},
	})
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))
	assert.Zero(t, stub.calls.Load())
}

func TestUserStore_LikedPostsReceivers(t *testing.T) {
	s, _, _ := loadedUserStore(t, models.User{ID: "me"}, failingUserAPI(nil))

	s.SetPostLiked("p1", true)
	s.SetPostLiked("p1", true)
	assert.Equal(t, []string{"p1"}, s.Snapshot().LikedPosts)

	s.TogglePostLiked("p1")
	assert.Empty(t, s.Snapshot().LikedPosts)
	s.TogglePostLiked("p2")
	assert.Equal(t, []string{"p2"}, s.Snapshot().LikedPosts)

	s.SetPostLiked("p2", false)
	assert.Empty(t, s.Snapshot().LikedPosts)
}

func TestUserStore_StaleFetchDiscarded(t *testing.T) {
	first := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	stub := failingUserAPI(nil)
	stub.currentUserFn = func(context.Context) (api.Response[models.User], error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(first)
			<-release
			return api.Response[models.User]{Data: models.User{ID: "me", Name: "stale"}}, nil
		}
		return api.Response[models.User]{Data: models.User{ID: "me", Name: "fresh"}}, nil
	}
	s := NewUserStore(stub, &gateCounter{}, &toastRecorder{})
	ctx := context.Background()

	done := make(chan *models.User)
	go func() {
		u, _ := s.FetchCurrentUser(ctx)
		done <- u
	}()
	<-first

	fresh, err := s.FetchCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh", fresh.Name)

	close(release)
	staleResult := <-done
	assert.Equal(t, "fresh", staleResult.Name)
	assert.Equal(t, "fresh", s.Snapshot().Name)
}

func TestUserStore_ResetDiscardsInflightFetch(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	stub := failingUserAPI(nil)
	stub.currentUserFn = func(context.Context) (api.Response[models.User], error) {
		close(entered)
		<-release
		return api.Response[models.User]{Data: models.User{ID: "me"}}, nil
	}
	s := NewUserStore(stub, &gateCounter{}, &toastRecorder{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.FetchCurrentUser(context.Background())
	}()
	<-entered
	s.Reset()
	close(release)
	<-done

	assert.Nil(t, s.Snapshot())
	assert.Equal(t, RelationNone, s.Relationship("me"))
}

func TestUserStore_UnauthorizedForcesLogoutOnce(t *testing.T) {
	ctx := context.Background()
	commands := map[string]func(s *UserStore) error{
		CmdFetchCurrentUser: func(s *UserStore) error { _, err := s.FetchCurrentUser(ctx); return err },
		CmdFollow:           func(s *UserStore) error { return s.Follow(ctx, "x") },
		CmdUnfollow:         func(s *UserStore) error { return s.Unfollow(ctx, "x") },
		CmdCancelFollowRequest: func(s *UserStore) error {
			return s.CancelFollowRequest(ctx, "x")
		},
		CmdAcceptFollowRequest: func(s *UserStore) error {
			return s.AcceptFollowRequest(ctx, "x")
		},
		CmdDismissFollowRequest: func(s *UserStore) error {
			return s.DismissFollowRequest(ctx, "x")
		},
		CmdEditProfile: func(s *UserStore) error {
			name := "n"
			return s.EditProfile(ctx, models.ProfilePatch{Name: &name})
		},
	}

	for name, run := range commands {
		t.Run(name, func(t *testing.T) {
			notifier := &notifierMock{}
			notifier.On("Error", mock.Anything, models.UnauthorizedMessage).Return().Once()
			gate := &gateCounter{}
			s := NewUserStore(failingUserAPI(errUnauthorized), gate, notifier)

			err := run(s)
			assert.True(t, models.IsUnauthorized(err))
			assert.Equal(t, 1, gate.count())
			notifier.AssertExpectations(t)
			notifier.AssertNumberOfCalls(t, "Error", 1)
			notifier.AssertNotCalled(t, "Success", mock.Anything, mock.Anything)
		})
	}
}

func TestUserStore_BusinessErrorLeavesState(t *testing.T) {
	stub := failingUserAPI(models.NewValidationError("Already following"))
	before := models.User{ID: "me", Followings: []models.UserSummary{{ID: "a"}}, SentRequests: []string{"b"}}
	s, gate, toasts := loadedUserStore(t, before, stub)

	require.Error(t, s.Follow(context.Background(), "a"))
	require.Error(t, s.CancelFollowRequest(context.Background(), "b"))

	snap := s.Snapshot()
	assert.Equal(t, before.Followings, snap.Followings)
	assert.Equal(t, before.SentRequests, snap.SentRequests)
	assert.Zero(t, gate.count())
	assert.Equal(t, []string{"Already following", "Already following"}, toasts.errors)
}

func TestUserStore_SnapshotIsDeepCopy(t *testing.T) {
	s, _, _ := loadedUserStore(t, models.User{ID: "me", SentRequests: []string{"a"}}, failingUserAPI(nil))

	snap := s.Snapshot()
	snap.SentRequests[0] = "mutated"
	assert.Equal(t, []string{"a"}, s.Snapshot().SentRequests)
}

// graphServer is a small consistent model of the server's view of one user.
type graphServer struct {
	me      models.User
	private map[string]bool
}

func (g *graphServer) api() *userAPIStub {
	reject := func(msg string) error { return models.NewValidationError(msg) }
	return &userAPIStub{
		currentUserFn: func(context.Context) (api.Response[models.User], error) {
			return api.Response[models.User]{Data: *g.me.Clone()}, nil
		},
		followFn: func(_ context.Context, id string) (api.Response[models.FollowResult], error) {
			if models.ContainsID(g.me.FollowerRequests, id) {
				return api.Response[models.FollowResult]{}, reject("Respond to the request first")
			}
			target := models.UserSummary{ID: id, Private: g.private[id]}
			switch {
			case g.me.IsFollowing(id) || models.ContainsID(g.me.SentRequests, id):
			case target.Private:
				g.me.SentRequests = append(g.me.SentRequests, id)
			default:
				g.me.Followings = append(g.me.Followings, target)
			}
			return api.Response[models.FollowResult]{Data: models.FollowResult{User: target}}, nil
		},
		unfollowFn: func(_ context.Context, id string) (string, error) {
			g.me.Followings = removeSummary(g.me.Followings, id)
			return "", nil
		},
		cancelFn: func(_ context.Context, id string) (api.Response[[]string], error) {
			g.me.SentRequests = models.RemoveID(g.me.SentRequests, id)
			return api.Response[[]string]{Data: models.CloneIDs(g.me.SentRequests)}, nil
		},
		acceptFn: func(_ context.Context, id string) (api.Response[models.AcceptResult], error) {
			if models.ContainsID(g.me.FollowerRequests, id) {
				g.me.FollowerRequests = models.RemoveID(g.me.FollowerRequests, id)
				g.me.Followers = models.AddID(g.me.Followers, id)
			}
			return api.Response[models.AcceptResult]{Data: models.AcceptResult{
				FollowerRequests: models.CloneIDs(g.me.FollowerRequests),
				Followers:        models.CloneIDs(g.me.Followers),
			}}, nil
		},
		dismissFn: func(_ context.Context, id string) (api.Response[[]string], error) {
			g.me.FollowerRequests = models.RemoveID(g.me.FollowerRequests, id)
			return api.Response[[]string]{Data: models.CloneIDs(g.me.FollowerRequests)}, nil
		},
	}
}

// incoming records a follow request from id if no edge exists yet.
func (g *graphServer) incoming(id string) {
	if g.me.IsFollowing(id) || models.ContainsID(g.me.SentRequests, id) {
		return
	}
	g.me.FollowerRequests = models.AddID(g.me.FollowerRequests, id)
}

func TestUserStore_EdgeSetsStayExclusive(t *testing.T) {
	counterparts := []string{"a", "b", "c", "d", "e"}
	srv := &graphServer{
		me:      models.User{ID: "me"},
		private: map[string]bool{"a": true, "c": true, "e": true},
	}
	s := NewUserStore(srv.api(), &gateCounter{}, &toastRecorder{})
	ctx := context.Background()
	_, err := s.FetchCurrentUser(ctx)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(42, 7))
	for step := 0; step < 2000; step++ {
		id := counterparts[rng.IntN(len(counterparts))]
		switch rng.IntN(7) {
		case 0:
			_ = s.Follow(ctx, id)
		case 1:
			_ = s.Unfollow(ctx, id)
		case 2:
			_ = s.CancelFollowRequest(ctx, id)
		case 3:
			_ = s.AcceptFollowRequest(ctx, id)
		case 4:
			_ = s.DismissFollowRequest(ctx, id)
		case 5:
			srv.incoming(id)
			_, _ = s.FetchCurrentUser(ctx)
		case 6:
			_, _ = s.FetchCurrentUser(ctx)
		}

		snap := s.Snapshot()
		for _, x := range counterparts {
			n := 0
			if models.ContainsID(snap.SentRequests, x) {
				n++
			}
			if models.ContainsID(snap.FollowerRequests, x) {
				n++
			}
			if snap.IsFollowing(x) {
				n++
			}
			require.LessOrEqual(t, n, 1, "step %d: %s in more than one edge set: %+v", step, x, snap)
		}
	}
}

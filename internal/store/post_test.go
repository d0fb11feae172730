package store

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"feedsync/internal/api"
	"feedsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func loadedPostStore(t *testing.T, stub *postAPIStub, likes LikeReceiver) (*PostStore, *gateCounter, *toastRecorder) {
	t.Helper()
	gate := &gateCounter{}
	toasts := &toastRecorder{}
	s := NewPostStore(stub, likes, gate, toasts)
	_, err := s.FetchFollowingFeed(context.Background())
	require.NoError(t, err)
	stub.calls.Store(0)
	return s, gate, toasts
}

func pngUpload(t *testing.T) models.Upload {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return models.Upload{Filename: "pic.png", Data: buf.Bytes()}
}

func TestPostStore_LikeScenario(t *testing.T) {
	users := &likeRecorder{}
	s, _, _ := loadedPostStore(t, feedAPI(post("P1", "author")), users)
	ctx := context.Background()

	require.NoError(t, s.LikePost(ctx, "P1", "U1"))
	p, ok := s.Find("P1")
	require.True(t, ok)
	assert.Equal(t, []string{"U1"}, p.Likes)
	assert.True(t, users.set["P1"])

	require.NoError(t, s.LikePost(ctx, "P1", "U1"))
	p, _ = s.Find("P1")
	assert.Empty(t, p.Likes)
	assert.False(t, users.set["P1"])
	assert.Empty(t, users.toggled)
}

func TestPostStore_LikeAgreesWithUserStore(t *testing.T) {
	userStub := failingUserAPI(nil)
	users, _, _ := loadedUserStore(t, models.User{ID: "U1", LikedPosts: []string{}}, userStub)
	s, _, _ := loadedPostStore(t, feedAPI(post("P1", "a"), post("P2", "b", "U1")), users)
	ctx := context.Background()

	// P2 is liked on the post but missing from likedPosts; a like must
	// leave both sides in agreement.
	require.NoError(t, s.LikePost(ctx, "P2", "U1"))
	p2, _ := s.Find("P2")
	assert.False(t, p2.IsLikedBy("U1"))
	assert.NotContains(t, users.Snapshot().LikedPosts, "P2")

	require.NoError(t, s.LikePost(ctx, "P1", "U1"))
	p1, _ := s.Find("P1")
	assert.True(t, p1.IsLikedBy("U1"))
	assert.Equal(t, []string{"P1"}, users.Snapshot().LikedPosts)
}

func TestPostStore_LikeOutsideFeedTogglesUserStore(t *testing.T) {
	users := &likeRecorder{}
	s, _, _ := loadedPostStore(t, feedAPI(post("P1", "a")), users)

	require.NoError(t, s.LikePost(context.Background(), "elsewhere", "U1"))
	assert.Equal(t, []string{"elsewhere"}, users.toggled)
	assert.Empty(t, users.set)
}

func TestPostStore_ConcurrentLikesStayDuplicateFree(t *testing.T) {
	s, _, _ := loadedPostStore(t, feedAPI(post("P1", "a")), &likeRecorder{})
	ctx := context.Background()

	// likeRecorder is not safe for concurrent use.
	s.likes = nil

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.LikePost(ctx, "P1", "U1")
		}()
	}
	wg.Wait()

	p, _ := s.Find("P1")
	assert.Empty(t, p.Likes, "an even number of toggles restores the original membership")

	require.NoError(t, s.LikePost(ctx, "P1", "U1"))
	p, _ = s.Find("P1")
	assert.Equal(t, []string{"U1"}, p.Likes)
}

// heldLikeReceiver stalls the first like notification until hold fires or a
// short timeout passes, widening the window between the two stores' updates.
type heldLikeReceiver struct {
	*UserStore
	once    sync.Once
	entered chan struct{}
	hold    chan struct{}
}

func (r *heldLikeReceiver) SetPostLiked(postID string, liked bool) {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.entered)
		select {
		case <-r.hold:
		case <-time.After(50 * time.Millisecond):
		}
	}
	r.UserStore.SetPostLiked(postID, liked)
}

func TestPostStore_InterleavedLikesKeepStoresInAgreement(t *testing.T) {
	users, _, _ := loadedUserStore(t, models.User{ID: "U1", LikedPosts: []string{}}, failingUserAPI(nil))
	recv := &heldLikeReceiver{UserStore: users, entered: make(chan struct{}), hold: make(chan struct{})}
	s, _, _ := loadedPostStore(t, feedAPI(post("P1", "a")), recv)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.LikePost(ctx, "P1", "U1") }()
	<-recv.entered

	// The second like must not overtake the first one's user-store update.
	secondDone := make(chan error, 1)
	go func() {
		err := s.LikePost(ctx, "P1", "U1")
		close(recv.hold)
		secondDone <- err
	}()

	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)

	p, _ := s.Find("P1")
	assert.Empty(t, p.Likes)
	assert.Empty(t, users.Snapshot().LikedPosts)
}

func TestPostStore_ConcurrentLikesAgreeWithUserStore(t *testing.T) {
	users, _, _ := loadedUserStore(t, models.User{ID: "U1", LikedPosts: []string{}}, failingUserAPI(nil))
	s, _, _ := loadedPostStore(t, feedAPI(post("P1", "a"), post("P2", "b")), users)
	ctx := context.Background()

	const n = 101
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "P1"
			if i%3 == 0 {
				id = "P2"
			}
			_ = s.LikePost(ctx, id, "U1")
		}(i)
	}
	wg.Wait()

	liked := users.Snapshot().LikedPosts
	for _, id := range []string{"P1", "P2"} {
		p, ok := s.Find(id)
		require.True(t, ok)
		assert.Equal(t, p.IsLikedBy("U1"), models.ContainsID(liked, id), id)
	}
}

func TestPostStore_LikeFailureChangesNothing(t *testing.T) {
	stub := feedAPI(post("P1", "a"))
	users := &likeRecorder{}
	s, gate, toasts := loadedPostStore(t, stub, users)
	stub.likeFn = func(context.Context, string) (string, error) {
		return "", models.NewTransportError("could not reach server", nil)
	}

	require.Error(t, s.LikePost(context.Background(), "P1", "U1"))
	p, _ := s.Find("P1")
	assert.Empty(t, p.Likes)
	assert.Empty(t, users.set)
	assert.Empty(t, users.toggled)
	assert.Zero(t, gate.count())
	assert.Equal(t, []string{"could not reach server"}, toasts.errors)
}

func TestPostStore_CreatePrependsThenFetchAgrees(t *testing.T) {
	server := []models.Post{post("old", "a")}
	stub := okPostAPI()
	stub.feedFn = func(context.Context) (api.Response[[]models.Post], error) {
		return api.Response[[]models.Post]{Data: models.ClonePosts(server)}, nil
	}
	stub.createFn = func(_ context.Context, p models.PostPayload) (api.Response[models.Post], error) {
		created := models.Post{ID: "new", Content: p.Content}
		server = append([]models.Post{created}, server...)
		return api.Response[models.Post]{Message: "Post created", Data: created}, nil
	}
	s, _, toasts := loadedPostStore(t, stub, nil)
	ctx := context.Background()

	_, err := s.CreatePost(ctx, models.PostPayload{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "new", s.Snapshot()[0].ID)
	assert.Equal(t, []string{"Post created"}, toasts.successes)

	feed, err := s.FetchFollowingFeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", feed[0].ID)
	assert.Len(t, feed, 2)
}

func TestPostStore_CreateValidatesPayload(t *testing.T) {
	stub := okPostAPI()
	s, _, toasts := loadedPostStore(t, stub, nil)
	ctx := context.Background()

	_, err := s.CreatePost(ctx, models.PostPayload{})
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))
	_, err = s.CreatePost(ctx, models.PostPayload{Images: []models.Upload{{Filename: "a.txt", Data: []byte("no")}}})
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))
	assert.Zero(t, stub.calls.Load())
	assert.Equal(t, 2, toasts.errorCount())

	_, err = s.CreatePost(ctx, models.PostPayload{Images: []models.Upload{pngUpload(t)}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, stub.calls.Load())
}

func TestPostStore_UpdateReplacesOrIgnores(t *testing.T) {
	s, _, _ := loadedPostStore(t, feedAPI(post("P1", "a"), post("P2", "b")), nil)
	ctx := context.Background()

	_, err := s.UpdatePost(ctx, "P2", models.PostPayload{Content: "edited"})
	require.NoError(t, err)
	feed := s.Snapshot()
	assert.Equal(t, []string{"P1", "P2"}, []string{feed[0].ID, feed[1].ID})
	assert.Equal(t, "edited", feed[1].Content)

	_, err = s.UpdatePost(ctx, "missing", models.PostPayload{Content: "x"})
	require.NoError(t, err)
	assert.Len(t, s.Snapshot(), 2)
}

func TestPostStore_DeleteRemovesOrIgnores(t *testing.T) {
	s, _, _ := loadedPostStore(t, feedAPI(post("P1", "a"), post("P2", "b"), post("P3", "c")), nil)
	ctx := context.Background()

	require.NoError(t, s.DeletePost(ctx, "P2"))
	feed := s.Snapshot()
	require.Len(t, feed, 2)
	assert.Equal(t, "P1", feed[0].ID)
	assert.Equal(t, "P3", feed[1].ID)

	require.NoError(t, s.DeletePost(ctx, "P2"))
	assert.Len(t, s.Snapshot(), 2)
}

func TestPostStore_StaleFeedDiscarded(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	stub := okPostAPI()
	stub.feedFn = func(context.Context) (api.Response[[]models.Post], error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(entered)
			<-release
			return api.Response[[]models.Post]{Data: []models.Post{post("stale", "a")}}, nil
		}
		return api.Response[[]models.Post]{Data: []models.Post{post("fresh", "a")}}, nil
	}
	s := NewPostStore(stub, nil, &gateCounter{}, &toastRecorder{})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.FetchFollowingFeed(ctx)
	}()
	<-entered

	_, err := s.FetchFollowingFeed(ctx)
	require.NoError(t, err)
	close(release)
	<-done

	feed := s.Snapshot()
	require.Len(t, feed, 1)
	assert.Equal(t, "fresh", feed[0].ID)
}

func TestPostStore_ResetFeed(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	stub := okPostAPI()
	s, _, _ := loadedPostStore(t, feedAPI(post("P1", "a")), nil)
	s.api = stub
	stub.feedFn = func(context.Context) (api.Response[[]models.Post], error) {
		close(entered)
		<-release
		return api.Response[[]models.Post]{Data: []models.Post{post("late", "a")}}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.FetchFollowingFeed(context.Background())
	}()
	<-entered
	s.ResetFeed()
	close(release)
	<-done

	assert.Empty(t, s.Snapshot())
}

func TestPostStore_CommentReceivers(t *testing.T) {
	p1 := post("P1", "a")
	p1.Comments = []models.Comment{{ID: "c1", PostID: "P1"}, {ID: "c2", PostID: "P1"}}
	p2 := post("P2", "b")
	p2.Comments = []models.Comment{{ID: "c1", PostID: "P2"}}
	s, _, _ := loadedPostStore(t, feedAPI(p1, p2), nil)

	s.ReceiveCommentAdded(models.Comment{ID: "c3", PostID: "P1"})
	got, _ := s.Find("P1")
	assert.Equal(t, []string{"c3", "c1", "c2"}, commentIDs(got))

	s.ReceiveCommentRemoved("P1", "c1")
	got, _ = s.Find("P1")
	assert.Equal(t, []string{"c3", "c2"}, commentIDs(got))
	other, _ := s.Find("P2")
	assert.Equal(t, []string{"c1"}, commentIDs(other))

	before := s.Snapshot()
	s.ReceiveCommentAdded(models.Comment{ID: "x", PostID: "absent"})
	s.ReceiveCommentRemoved("absent", "c1")
	assert.Equal(t, before, s.Snapshot())
}

func commentIDs(p models.Post) []string {
	ids := make([]string, 0, len(p.Comments))
	for _, c := range p.Comments {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestPostStore_ProjectionsAreCopies(t *testing.T) {
	s, _, _ := loadedPostStore(t, feedAPI(post("P1", "a", "U1"), post("P2", "b"), post("P3", "a")), nil)

	byA := s.PostsByAuthor("a")
	require.Len(t, byA, 2)
	assert.Equal(t, "P1", byA[0].ID)
	assert.Equal(t, "P3", byA[1].ID)

	byA[0].Likes[0] = "mutated"
	snap := s.Snapshot()
	snap[0].Content = "mutated"
	p, _ := s.Find("P1")
	assert.Equal(t, []string{"U1"}, p.Likes)
	assert.Empty(t, p.Content)

	_, ok := s.Find("nope")
	assert.False(t, ok)
}

func TestPostStore_UnauthorizedForcesLogoutOnce(t *testing.T) {
	ctx := context.Background()
	commands := map[string]func(s *PostStore) error{
		CmdFetchFollowingFeed: func(s *PostStore) error { _, err := s.FetchFollowingFeed(ctx); return err },
		CmdCreatePost: func(s *PostStore) error {
			_, err := s.CreatePost(ctx, models.PostPayload{Content: "x"})
			return err
		},
		CmdUpdatePost: func(s *PostStore) error {
			_, err := s.UpdatePost(ctx, "p", models.PostPayload{Content: "x"})
			return err
		},
		CmdDeletePost: func(s *PostStore) error { return s.DeletePost(ctx, "p") },
		CmdLikePost:   func(s *PostStore) error { return s.LikePost(ctx, "p", "u") },
	}

	for name, run := range commands {
		t.Run(name, func(t *testing.T) {
			notifier := &notifierMock{}
			notifier.On("Error", mock.Anything, models.UnauthorizedMessage).Return().Once()
			gate := &gateCounter{}
			s := NewPostStore(failingPostAPI(errUnauthorized), &likeRecorder{}, gate, notifier)

			assert.True(t, models.IsUnauthorized(run(s)))
			assert.Equal(t, 1, gate.count())
			notifier.AssertExpectations(t)
			notifier.AssertNumberOfCalls(t, "Error", 1)
		})
	}
}

package store

import (
	"context"
	"sync"
	"sync/atomic"

	"feedsync/internal/api"
	"feedsync/internal/models"

	"github.com/stretchr/testify/mock"
)

var errUnauthorized = models.NewUnauthorizedError("")

// notifierMock is a testify mock for Notifier.
type notifierMock struct {
	mock.Mock
}

func (m *notifierMock) Success(ctx context.Context, message string) {
	m.Called(ctx, message)
}

func (m *notifierMock) Error(ctx context.Context, message string) {
	m.Called(ctx, message)
}

// toastRecorder is a Notifier that keeps every toast.
type toastRecorder struct {
	mu        sync.Mutex
	errors    []string
	successes []string
}

func (r *toastRecorder) Success(_ context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, message)
}

func (r *toastRecorder) Error(_ context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

func (r *toastRecorder) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

// gateCounter counts forced logouts.
type gateCounter struct {
	n atomic.Int32
}

func (g *gateCounter) ForceLogout(context.Context) {
	g.n.Add(1)
}

func (g *gateCounter) count() int {
	return int(g.n.Load())
}

// tokenStub stands in for the transport's cookie jar.
type tokenStub struct {
	mu    sync.Mutex
	token string
}

func (t *tokenStub) Token() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

func (t *tokenStub) SetToken(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
}

func (t *tokenStub) ClearToken() {
	t.SetToken("")
}

// sessionAPIStub is a stub for SessionAPI.
type sessionAPIStub struct {
	loginFn    func(context.Context, models.Credentials) (api.Response[models.UserSummary], error)
	registerFn func(context.Context, models.Registration) (string, error)
	logoutFn   func(context.Context) (string, error)
}

func (s *sessionAPIStub) Login(ctx context.Context, creds models.Credentials) (api.Response[models.UserSummary], error) {
	return s.loginFn(ctx, creds)
}
func (s *sessionAPIStub) Register(ctx context.Context, reg models.Registration) (string, error) {
	return s.registerFn(ctx, reg)
}
func (s *sessionAPIStub) Logout(ctx context.Context) (string, error) {
	return s.logoutFn(ctx)
}

func noopSessionAPI() *sessionAPIStub {
	return &sessionAPIStub{
		loginFn: func(_ context.Context, c models.Credentials) (api.Response[models.UserSummary], error) {
			return api.Response[models.UserSummary]{Data: models.UserSummary{ID: "u1", Name: "Ada"}}, nil
		},
		registerFn: func(_ context.Context, _ models.Registration) (string, error) { return "Registered", nil },
		logoutFn:   func(_ context.Context) (string, error) { return "Logged out", nil },
	}
}

// userAPIStub is a stub for UserAPI.
type userAPIStub struct {
	currentUserFn func(context.Context) (api.Response[models.User], error)
	followFn      func(context.Context, string) (api.Response[models.FollowResult], error)
	unfollowFn    func(context.Context, string) (string, error)
	cancelFn      func(context.Context, string) (api.Response[[]string], error)
	acceptFn      func(context.Context, string) (api.Response[models.AcceptResult], error)
	dismissFn     func(context.Context, string) (api.Response[[]string], error)
	editFn        func(context.Context, models.ProfilePatch) (api.Response[models.ProfileFields], error)
	calls         atomic.Int32
}

func (s *userAPIStub) CurrentUser(ctx context.Context) (api.Response[models.User], error) {
	s.calls.Add(1)
	return s.currentUserFn(ctx)
}
func (s *userAPIStub) Follow(ctx context.Context, id string) (api.Response[models.FollowResult], error) {
	s.calls.Add(1)
	return s.followFn(ctx, id)
}
func (s *userAPIStub) Unfollow(ctx context.Context, id string) (string, error) {
	s.calls.Add(1)
	return s.unfollowFn(ctx, id)
}
func (s *userAPIStub) CancelFollowRequest(ctx context.Context, id string) (api.Response[[]string], error) {
	s.calls.Add(1)
	return s.cancelFn(ctx, id)
}
func (s *userAPIStub) AcceptFollowRequest(ctx context.Context, id string) (api.Response[models.AcceptResult], error) {
	s.calls.Add(1)
	return s.acceptFn(ctx, id)
}
func (s *userAPIStub) DismissFollowRequest(ctx context.Context, id string) (api.Response[[]string], error) {
	s.calls.Add(1)
	return s.dismissFn(ctx, id)
}
func (s *userAPIStub) EditProfile(ctx context.Context, p models.ProfilePatch) (api.Response[models.ProfileFields], error) {
	s.calls.Add(1)
	return s.editFn(ctx, p)
}

func failingUserAPI(err error) *userAPIStub {
	return &userAPIStub{
		currentUserFn: func(context.Context) (api.Response[models.User], error) { return api.Response[models.User]{}, err },
		followFn: func(context.Context, string) (api.Response[models.FollowResult], error) {
			return api.Response[models.FollowResult]{}, err
		},
		unfollowFn: func(context.Context, string) (string, error) { return "", err },
		cancelFn:   func(context.Context, string) (api.Response[[]string], error) { return api.Response[[]string]{}, err },
		acceptFn: func(context.Context, string) (api.Response[models.AcceptResult], error) {
			return api.Response[models.AcceptResult]{}, err
		},
		dismissFn: func(context.Context, string) (api.Response[[]string], error) { return api.Response[[]string]{}, err },
		editFn: func(context.Context, models.ProfilePatch) (api.Response[models.ProfileFields], error) {
			return api.Response[models.ProfileFields]{}, err
		},
	}
}

// postAPIStub is a stub for PostAPI.
type postAPIStub struct {
	feedFn   func(context.Context) (api.Response[[]models.Post], error)
	createFn func(context.Context, models.PostPayload) (api.Response[models.Post], error)
	updateFn func(context.Context, string, models.PostPayload) (api.Response[models.Post], error)
	deleteFn func(context.Context, string) (string, error)
	likeFn   func(context.Context, string) (string, error)
	calls    atomic.Int32
}

func (s *postAPIStub) FollowingFeed(ctx context.Context) (api.Response[[]models.Post], error) {
	s.calls.Add(1)
	return s.feedFn(ctx)
}
func (s *postAPIStub) CreatePost(ctx context.Context, p models.PostPayload) (api.Response[models.Post], error) {
	s.calls.Add(1)
	return s.createFn(ctx, p)
}
func (s *postAPIStub) UpdatePost(ctx context.Context, id string, p models.PostPayload) (api.Response[models.Post], error) {
	s.calls.Add(1)
	return s.updateFn(ctx, id, p)
}
func (s *postAPIStub) DeletePost(ctx context.Context, id string) (string, error) {
	s.calls.Add(1)
	return s.deleteFn(ctx, id)
}
func (s *postAPIStub) LikePost(ctx context.Context, id string) (string, error) {
	s.calls.Add(1)
	return s.likeFn(ctx, id)
}

func okPostAPI() *postAPIStub {
	return &postAPIStub{
		feedFn: func(context.Context) (api.Response[[]models.Post], error) { return api.Response[[]models.Post]{}, nil },
		createFn: func(_ context.Context, p models.PostPayload) (api.Response[models.Post], error) {
			return api.Response[models.Post]{Message: "Post created", Data: models.Post{ID: "new", Content: p.Content}}, nil
		},
		updateFn: func(_ context.Context, id string, p models.PostPayload) (api.Response[models.Post], error) {
			return api.Response[models.Post]{Message: "Post updated", Data: models.Post{ID: id, Content: p.Content}}, nil
		},
		deleteFn: func(context.Context, string) (string, error) { return "Post deleted", nil },
		likeFn:   func(context.Context, string) (string, error) { return "", nil },
	}
}

func failingPostAPI(err error) *postAPIStub {
	return &postAPIStub{
		feedFn: func(context.Context) (api.Response[[]models.Post], error) { return api.Response[[]models.Post]{}, err },
		createFn: func(context.Context, models.PostPayload) (api.Response[models.Post], error) {
			return api.Response[models.Post]{}, err
		},
		updateFn: func(context.Context, string, models.PostPayload) (api.Response[models.Post], error) {
			return api.Response[models.Post]{}, err
		},
		deleteFn: func(context.Context, string) (string, error) { return "", err },
		likeFn:   func(context.Context, string) (string, error) { return "", err },
	}
}

// commentAPIStub is a stub for CommentAPI.
type commentAPIStub struct {
	addFn    func(context.Context, string, string) (api.Response[models.Comment], error)
	deleteFn func(context.Context, string) (string, error)
}

func (s *commentAPIStub) AddComment(ctx context.Context, postID, content string) (api.Response[models.Comment], error) {
	return s.addFn(ctx, postID, content)
}
func (s *commentAPIStub) DeleteComment(ctx context.Context, commentID string) (string, error) {
	return s.deleteFn(ctx, commentID)
}

// likeRecorder records like notifications.
type likeRecorder struct {
	set     map[string]bool
	toggled []string
}

func (r *likeRecorder) SetPostLiked(postID string, liked bool) {
	if r.set == nil {
		r.set = map[string]bool{}
	}
	r.set[postID] = liked
}

func (r *likeRecorder) TogglePostLiked(postID string) {
	r.toggled = append(r.toggled, postID)
}

func post(id, author string, likes ...string) models.Post {
	return models.Post{
		ID:     id,
		Author: models.UserSummary{ID: author, Name: author},
		Likes:  likes,
	}
}

func feedAPI(posts ...models.Post) *postAPIStub {
	s := okPostAPI()
	s.feedFn = func(context.Context) (api.Response[[]models.Post], error) {
		return api.Response[[]models.Post]{Data: models.ClonePosts(posts)}, nil
	}
	return s
}

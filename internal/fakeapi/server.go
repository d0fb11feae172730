// Package fakeapi is an in-memory implementation of the social API. It backs
// the integration tests and the devapi command.
package fakeapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"feedsync/internal/models"
	"feedsync/internal/observability"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

// Config holds server settings.
type Config struct {
	JWTSecret  string
	CookieName string
	TokenTTL   time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost. Tests use bcrypt.MinCost.
	BcryptCost int
}

func (c Config) withDefaults() Config {
	if c.JWTSecret == "" {
		c.JWTSecret = "devapi-secret"
	}
	if c.CookieName == "" {
		c.CookieName = "token"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 7 * 24 * time.Hour
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	return c
}

type account struct {
	ID               string
	Name             string
	Email            string
	ProfilePicture   string
	Private          bool
	PasswordHash     []byte
	Followers        []string
	Followings       []string
	FollowerRequests []string
	SentRequests     []string
	LikedPosts       []string
}

type postRecord struct {
	ID        string
	AuthorID  string
	Content   string
	Images    []string
	Likes     []string
	Comments  []commentRecord
	CreatedAt time.Time
}

type commentRecord struct {
	ID        string
	PostID    string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}

type storedImage struct {
	contentType string
	data        []byte
}

// Server is the in-memory API.
type Server struct {
	cfg  Config
	app  *fiber.App
	prom *fiberprometheus.FiberPrometheus

	mu       sync.RWMutex
	accounts map[string]*account
	byEmail  map[string]string
	posts    []*postRecord // newest first
	images   map[string]storedImage
	revoked  map[string]time.Time
}

// New builds a server with its routes registered.
func New(cfg Config) *Server {
	s := &Server{
		cfg:      cfg.withDefaults(),
		accounts: make(map[string]*account),
		byEmail:  make(map[string]string),
		images:   make(map[string]storedImage),
		revoked:  make(map[string]time.Time),
	}

	s.app = fiber.New(fiber.Config{
		AppName:   "feedsync devapi",
		Immutable: true,
		BodyLimit: 64 << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return respondError(c, fe.Code, fe.Message)
			}
			observability.GlobalLogger.Error("devapi handler error", "path", c.Path(), "error", err)
			return respondError(c, fiber.StatusInternalServerError, "Internal server error")
		},
	})
	s.prom = fiberprometheus.NewWithRegistry(prometheus.NewRegistry(), "feedsync-devapi", "http", "", nil)
	s.setupRoutes()
	return s
}

// App exposes the fiber app for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Handler adapts the app to net/http, for httptest.
func (s *Server) Handler() http.HandlerFunc {
	return adaptor.FiberApp(s.app)
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) setupRoutes() {
	s.prom.RegisterAt(s.app, "/metrics")
	s.app.Use(s.prom.Middleware)
	s.app.Use(requestLogger)

	s.app.Get("/images/:name", s.serveImage)

	api := s.app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", s.register)
	auth.Post("/login", s.login)
	auth.Get("/logout", s.authRequired, s.logout)

	user := api.Group("/user", s.authRequired)
	user.Get("/profile", s.profile)
	user.Post("/follow/:id", s.follow)
	user.Post("/unfollow/:id", s.unfollow)
	user.Post("/cancel/:id", s.cancelRequest)
	user.Post("/accept/:id", s.acceptRequest)
	user.Post("/dismiss/:id", s.dismissRequest)
	user.Post("/edit", s.editProfile)
	user.Get("/get/:q", s.searchUsers)
	user.Get("/followers/:id", s.followers)
	user.Get("/followings/:id", s.followings)
	user.Get("/sentRequests", s.sentRequests)
	user.Get("/followerRequests", s.followerRequests)

	post := api.Group("/post", s.authRequired)
	post.Get("/followings", s.feed)
	post.Post("/create", s.createPost)
	post.Put("/update/:id", s.updatePost)
	post.Delete("/delete/:id", s.deletePost)
	post.Post("/like/:id", s.likePost)
	post.Get("/get/:id", s.userPosts)
	post.Get("/likedPosts", s.likedPosts)

	comment := api.Group("/comment", s.authRequired)
	comment.Post("/:postId", s.addComment)
	comment.Delete("/:commentId", s.deleteComment)
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	observability.GlobalLogger.Debug("devapi request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
		"request_id", c.Get("X-Request-ID"),
	)
	return err
}

func respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func respondError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

func (s *Server) serveImage(c *fiber.Ctx) error {
	s.mu.RLock()
	img, ok := s.images[c.Params("name")]
	s.mu.RUnlock()
	if !ok {
		return respondError(c, fiber.StatusNotFound, "Image not found")
	}
	c.Set(fiber.HeaderContentType, img.contentType)
	return c.Send(img.data)
}

// summary must be called with s.mu held.
func (s *Server) summary(id string) models.UserSummary {
	a, ok := s.accounts[id]
	if !ok {
		return models.UserSummary{ID: id}
	}
	return models.UserSummary{ID: a.ID, Name: a.Name, ProfilePicture: a.ProfilePicture, Private: a.Private}
}

func (s *Server) summaries(ids []string) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.summary(id))
	}
	return out
}

func (s *Server) userView(a *account) models.User {
	return models.User{
		ID:               a.ID,
		Name:             a.Name,
		Email:            a.Email,
		ProfilePicture:   a.ProfilePicture,
		Private:          a.Private,
		LikedPosts:       nonNil(a.LikedPosts),
		Followers:        nonNil(a.Followers),
		Followings:       s.summaries(a.Followings),
		FollowerRequests: nonNil(a.FollowerRequests),
		SentRequests:     nonNil(a.SentRequests),
	}
}

func (s *Server) postView(p *postRecord) models.Post {
	comments := make([]models.Comment, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, s.commentView(c))
	}
	return models.Post{
		ID:        p.ID,
		Author:    s.summary(p.AuthorID),
		Content:   p.Content,
		Images:    nonNil(p.Images),
		Likes:     nonNil(p.Likes),
		Comments:  comments,
		CreatedAt: p.CreatedAt,
	}
}

func (s *Server) commentView(c commentRecord) models.Comment {
	return models.Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		Author:    s.summary(c.AuthorID),
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

// canSee reports whether viewer may see owner's posts and graph.
func (s *Server) canSee(viewer, owner *account) bool {
	return viewer.ID == owner.ID || !owner.Private || models.ContainsID(owner.Followers, viewer.ID)
}

func (s *Server) findPost(id string) (int, *postRecord) {
	for i, p := range s.posts {
		if p.ID == id {
			return i, p
		}
	}
	return -1, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return models.CloneIDs(ids)
}

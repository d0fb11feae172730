package fakeapi

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"feedsync/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/oklog/ulid/v2"
)

// SeedOptions controls the demo data built by Seed.
type SeedOptions struct {
	Users        int
	PostsPerUser int
	Password     string
	// RandomSeed makes the data reproducible. Zero picks a time-based seed.
	RandomSeed int64
}

// SeededUser is a login created by Seed.
type SeededUser struct {
	models.UserSummary
	Email string `json:"email"`
}

// Seed creates demo users, posts and follow edges. Every user shares
// opts.Password.
func (s *Server) Seed(opts SeedOptions) ([]SeededUser, error) {
	if opts.Users <= 0 {
		return nil, nil
	}
	if opts.Password == "" {
		opts.Password = "password123"
	}
	if opts.PostsPerUser <= 0 {
		opts.PostsPerUser = 3
	}
	if opts.RandomSeed == 0 {
		opts.RandomSeed = time.Now().UnixNano()
	}
	faker := gofakeit.New(opts.RandomSeed)

	users := make([]SeededUser, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		name := faker.Name()
		email := fmt.Sprintf("%s.%d@example.com", strings.ToLower(faker.Username()), i)
		a, err := s.createAccount(models.Registration{Name: name, Email: email, Password: opts.Password}, faker.Number(0, 3) == 0)
		if err != nil {
			return users, fmt.Errorf("seed user %d: %w", i, err)
		}
		users = append(users, SeededUser{UserSummary: models.UserSummary{ID: a.ID, Name: a.Name, Private: a.Private}, Email: a.Email})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var posts []*postRecord
	for _, u := range users {
		for j := 0; j < opts.PostsPerUser; j++ {
			posts = append(posts, &postRecord{
				ID:        ulid.Make().String(),
				AuthorID:  u.ID,
				Content:   faker.Paragraph(1, 2, 12, " "),
				CreatedAt: now.Add(-time.Duration(faker.Number(1, 90*24)) * time.Hour),
			})
		}
	}

	for _, u := range users {
		me := s.accounts[u.ID]
		for _, other := range users {
			if other.ID == u.ID || faker.Number(0, 2) != 0 {
				continue
			}
			target := s.accounts[other.ID]
			if models.ContainsID(me.FollowerRequests, target.ID) || models.ContainsID(me.Followings, target.ID) {
				continue
			}
			if target.Private && models.ContainsID(target.Followings, me.ID) {
				continue
			}
			if target.Private && faker.Bool() {
				me.SentRequests = models.AddID(me.SentRequests, target.ID)
				target.FollowerRequests = models.AddID(target.FollowerRequests, me.ID)
				continue
			}
			me.Followings = models.AddID(me.Followings, target.ID)
			target.Followers = models.AddID(target.Followers, me.ID)
		}
	}

	for _, p := range posts {
		for _, u := range users {
			if faker.Number(0, 4) != 0 || !s.canSee(s.accounts[u.ID], s.accounts[p.AuthorID]) {
				continue
			}
			p.Likes = models.AddID(p.Likes, u.ID)
			s.accounts[u.ID].LikedPosts = models.AddID(s.accounts[u.ID].LikedPosts, p.ID)
		}
	}

	s.posts = append(s.posts, posts...)
	s.sortPosts()
	return users, nil
}

func (s *Server) sortPosts() {
	slices.SortStableFunc(s.posts, func(a, b *postRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

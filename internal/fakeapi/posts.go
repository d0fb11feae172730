package fakeapi

import (
	"time"

	"feedsync/internal/media"
	"feedsync/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
)

func (s *Server) feed(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	me := s.accounts[currentUserID(c)]
	out := []models.Post{}
	for _, p := range s.posts {
		if p.AuthorID == me.ID || models.ContainsID(me.Followings, p.AuthorID) {
			out = append(out, s.postView(p))
		}
	}
	return respond(c, fiber.StatusOK, "", out)
}

func (s *Server) parsePostPayload(c *fiber.Ctx) (models.PostPayload, error) {
	payload := models.PostPayload{Content: c.FormValue("content")}
	form, err := c.MultipartForm()
	if err != nil {
		// A request without files may be urlencoded.
		return payload, nil
	}
	for _, fh := range form.File["images"] {
		up, err := readUpload(fh.Filename, fh.Open)
		if err != nil {
			return payload, err
		}
		payload.Images = append(payload.Images, up)
	}
	return payload, nil
}

func (s *Server) createPost(c *fiber.Ctx) error {
	payload, err := s.parsePostPayload(c)
	if err != nil {
		return err
	}
	if err := media.ValidatePostPayload(payload); err != nil {
		return respondError(c, fiber.StatusBadRequest, models.MessageOf(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := &postRecord{
		ID:        ulid.Make().String(),
		AuthorID:  currentUserID(c),
		Content:   payload.Content,
		CreatedAt: time.Now().UTC(),
	}
	for _, img := range payload.Images {
		p.Images = append(p.Images, s.storeImage(img))
	}
	s.posts = append([]*postRecord{p}, s.posts...)
	return respond(c, fiber.StatusCreated, "Post created successfully", s.postView(p))
}

func (s *Server) updatePost(c *fiber.Ctx) error {
	payload, err := s.parsePostPayload(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, p := s.findPost(c.Params("id"))
	if p == nil {
		return respondError(c, fiber.StatusNotFound, "Post not found")
	}
	if p.AuthorID != currentUserID(c) {
		return respondError(c, fiber.StatusForbidden, "You can only update your own posts")
	}
	// Existing images are kept when the update uploads none.
	if len(payload.Images) > 0 {
		if err := media.ValidatePostPayload(payload); err != nil {
			return respondError(c, fiber.StatusBadRequest, models.MessageOf(err))
		}
	} else if payload.Content == "" && len(p.Images) == 0 {
		return respondError(c, fiber.StatusBadRequest, "Post must have content or at least one image")
	}

	p.Content = payload.Content
	if len(payload.Images) > 0 {
		p.Images = p.Images[:0:0]
		for _, img := range payload.Images {
			p.Images = append(p.Images, s.storeImage(img))
		}
	}
	return respond(c, fiber.StatusOK, "Post updated successfully", s.postView(p))
}

func (s *Server) deletePost(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, p := s.findPost(c.Params("id"))
	if p == nil {
		return respondError(c, fiber.StatusNotFound, "Post not found")
	}
	if p.AuthorID != currentUserID(c) {
		return respondError(c, fiber.StatusForbidden, "You can only delete your own posts")
	}
	s.posts = append(s.posts[:i:i], s.posts[i+1:]...)
	for _, a := range s.accounts {
		a.LikedPosts = models.RemoveID(a.LikedPosts, p.ID)
	}
	return respond(c, fiber.StatusOK, "Post deleted successfully", nil)
}

func (s *Server) likePost(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.accounts[currentUserID(c)]
	_, p := s.findPost(c.Params("id"))
	if p == nil {
		return respondError(c, fiber.StatusNotFound, "Post not found")
	}
	if !s.canSee(me, s.accounts[p.AuthorID]) {
		return respondError(c, fiber.StatusForbidden, "This account is private")
	}

	var liked bool
	p.Likes, liked = models.ToggleID(p.Likes, me.ID)
	if liked {
		me.LikedPosts = models.AddID(me.LikedPosts, p.ID)
		return respond(c, fiber.StatusOK, "Post liked", nil)
	}
	me.LikedPosts = models.RemoveID(me.LikedPosts, p.ID)
	return respond(c, fiber.StatusOK, "Post unliked", nil)
}

func (s *Server) userPosts(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	me := s.accounts[currentUserID(c)]
	owner, ok := s.accounts[c.Params("id")]
	if !ok {
		return respondError(c, fiber.StatusNotFound, "User not found")
	}

	var posts []models.Post
	count := 0
	for _, p := range s.posts {
		if p.AuthorID == owner.ID {
			count++
			posts = append(posts, s.postView(p))
		}
	}

	profile := models.Profile{
		ID:              owner.ID,
		Name:            owner.Name,
		ProfilePicture:  owner.ProfilePicture,
		Private:         owner.Private,
		FollowersCount:  len(owner.Followers),
		FollowingsCount: len(owner.Followings),
		PostsCount:      count,
	}
	if !s.canSee(me, owner) {
		return respond(c, fiber.StatusOK, "", models.UserPosts{User: profile, Posts: []models.Post{}})
	}
	profile.Followers = nonNil(owner.Followers)
	profile.Followings = s.summaries(owner.Followings)
	if posts == nil {
		posts = []models.Post{}
	}
	return respond(c, fiber.StatusOK, "", models.UserPosts{User: profile, Posts: posts})
}

func (s *Server) likedPosts(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	me := s.accounts[currentUserID(c)]
	out := []models.Post{}
	for _, p := range s.posts {
		if models.ContainsID(p.Likes, me.ID) && s.canSee(me, s.accounts[p.AuthorID]) {
			out = append(out, s.postView(p))
		}
	}
	return respond(c, fiber.StatusOK, "", out)
}

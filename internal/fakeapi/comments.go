package fakeapi

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
)

const maxCommentLength = 10000

type commentRequest struct {
	Content string `json:"content"`
}

func (s *Server) addComment(c *fiber.Ctx) error {
	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return respondError(c, fiber.StatusBadRequest, "Content is required")
	}
	if len(content) > maxCommentLength {
		return respondError(c, fiber.StatusBadRequest, "Comment too long (max 10000 characters)")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.accounts[currentUserID(c)]
	_, p := s.findPost(c.Params("postId"))
	if p == nil {
		return respondError(c, fiber.StatusNotFound, "Post not found")
	}
	if !s.canSee(me, s.accounts[p.AuthorID]) {
		return respondError(c, fiber.StatusForbidden, "This account is private")
	}

	rec := commentRecord{
		ID:        ulid.Make().String(),
		PostID:    p.ID,
		AuthorID:  me.ID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	p.Comments = append([]commentRecord{rec}, p.Comments...)
	return respond(c, fiber.StatusCreated, "Comment added", s.commentView(rec))
}

func (s *Server) deleteComment(c *fiber.Ctx) error {
	commentID := c.Params("commentId")
	userID := currentUserID(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts {
		for i, rec := range p.Comments {
			if rec.ID != commentID {
				continue
			}
			if rec.AuthorID != userID && p.AuthorID != userID {
				return respondError(c, fiber.StatusForbidden, "You can only delete your own comments")
			}
			p.Comments = append(p.Comments[:i:i], p.Comments[i+1:]...)
			return respond(c, fiber.StatusOK, "Comment deleted", nil)
		}
	}
	return respondError(c, fiber.StatusNotFound, "Comment not found")
}

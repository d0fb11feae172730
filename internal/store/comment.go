package store

import (
	"context"
	"strings"

	"feedsync/internal/api"
	"feedsync/internal/models"
)

// Comment store commands.
const (
	CmdAddComment    = "addComment"
	CmdDeleteComment = "deleteComment"
)

const maxCommentLen = 10000

// CommentAPI is the comment part of the server API.
type CommentAPI interface {
	AddComment(ctx context.Context, postID, content string) (api.Response[models.Comment], error)
	DeleteComment(ctx context.Context, commentID string) (string, error)
}

// CommentStore relays comment commands to the server and hands the result to
// the post store. It keeps no comment data.
type CommentStore struct {
	api   CommentAPI
	posts CommentReceiver
	cmd   *commander
}

// NewCommentStore creates a comment relay feeding posts.
func NewCommentStore(commentAPI CommentAPI, posts CommentReceiver, session SessionGate, notifier Notifier) *CommentStore {
	return &CommentStore{
		api:   commentAPI,
		posts: posts,
		cmd:   newCommander("comment", notifier, session),
	}
}

// AddComment comments on postID.
func (s *CommentStore) AddComment(ctx context.Context, postID, content string) (models.Comment, error) {
	ctx, done := s.cmd.begin(ctx, CmdAddComment)
	defer done()

	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return models.Comment{}, s.cmd.fail(ctx, CmdAddComment, models.NewValidationError("Content is required"))
	case len(content) > maxCommentLen:
		return models.Comment{}, s.cmd.fail(ctx, CmdAddComment, models.NewValidationError("Comment too long (max 10000 characters)"))
	}

	resp, err := s.api.AddComment(ctx, postID, content)
	if err != nil {
		return models.Comment{}, s.cmd.fail(ctx, CmdAddComment, err)
	}
	comment := resp.Data
	if comment.PostID == "" {
		comment.PostID = postID
	}

	s.posts.ReceiveCommentAdded(comment)
	s.cmd.succeed(ctx, CmdAddComment, "", map[string]interface{}{"post_id": postID, "comment_id": comment.ID})
	return comment, nil
}

// DeleteComment removes commentID from postID.
func (s *CommentStore) DeleteComment(ctx context.Context, postID, commentID string) error {
	ctx, done := s.cmd.begin(ctx, CmdDeleteComment)
	defer done()

	if _, err := s.api.DeleteComment(ctx, commentID); err != nil {
		return s.cmd.fail(ctx, CmdDeleteComment, err)
	}

	s.posts.ReceiveCommentRemoved(postID, commentID)
	s.cmd.succeed(ctx, CmdDeleteComment, "", map[string]interface{}{"post_id": postID, "comment_id": commentID})
	return nil
}

// Loading reports whether a command of the given kind is in flight.
func (s *CommentStore) Loading(cmd string) bool {
	return s.cmd.loading(cmd)
}

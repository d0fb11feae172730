package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"feedsync/internal/client"
	"feedsync/internal/models"
	"feedsync/internal/notifications"

	"github.com/docopt/docopt-go"
	"gopkg.in/yaml.v3"
)

// stdout receives command output.
var stdout io.Writer = os.Stdout

func printYAML(v any) error {
	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

func readUploads(paths []string) ([]models.Upload, error) {
	uploads := make([]models.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, models.Upload{Filename: filepath.Base(p), Data: data})
	}
	return uploads, nil
}

func stringList(opts docopt.Opts, key string) []string {
	v, _ := opts[key].([]string)
	return v
}

func register(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	name, _ := opts.String("<name>")
	email, _ := opts.String("<email>")
	password, _ := opts.String("<password>")
	_, err := c.Session.Register(ctx, models.Registration{Name: name, Email: email, Password: password})
	return err
}

func login(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	email, _ := opts.String("<email>")
	password, _ := opts.String("<password>")
	user, err := c.Session.Login(ctx, models.Credentials{Email: email, Password: password})
	if err != nil {
		return err
	}
	return printYAML(user)
}

func logout(ctx context.Context, c *client.Client, _ docopt.Opts) error {
	return c.Session.Logout(ctx)
}

func whoami(_ context.Context, c *client.Client, _ docopt.Opts) error {
	return printYAML(c.Users.Snapshot())
}

func feed(_ context.Context, c *client.Client, _ docopt.Opts) error {
	return printYAML(c.Posts.Snapshot())
}

func postPayload(opts docopt.Opts) (models.PostPayload, error) {
	content, _ := opts.String("<content>")
	images, err := readUploads(stringList(opts, "--image"))
	if err != nil {
		return models.PostPayload{}, err
	}
	return models.PostPayload{Content: content, Images: images}, nil
}

func createPost(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	payload, err := postPayload(opts)
	if err != nil {
		return err
	}
	post, err := c.Posts.CreatePost(ctx, payload)
	if err != nil {
		return err
	}
	return printYAML(post)
}

func editPost(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	postID, _ := opts.String("<post_id>")
	payload, err := postPayload(opts)
	if err != nil {
		return err
	}
	post, err := c.Posts.UpdatePost(ctx, postID, payload)
	if err != nil {
		return err
	}
	return printYAML(post)
}

func deletePost(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	postID, _ := opts.String("<post_id>")
	return c.Posts.DeletePost(ctx, postID)
}

func like(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	postID, _ := opts.String("<post_id>")
	if err := c.Posts.LikePost(ctx, postID, c.Me()); err != nil {
		return err
	}
	if post, ok := c.Posts.Find(postID); ok {
		return printYAML(map[string]any{"post": post.ID, "liked": post.IsLikedBy(c.Me()), "likes": len(post.Likes)})
	}
	return nil
}

func comment(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	postID, _ := opts.String("<post_id>")
	content, _ := opts.String("<content>")
	added, err := c.Comments.AddComment(ctx, postID, content)
	if err != nil {
		return err
	}
	return printYAML(added)
}

func deleteComment(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	postID, _ := opts.String("<post_id>")
	commentID, _ := opts.String("<comment_id>")
	return c.Comments.DeleteComment(ctx, postID, commentID)
}

func graphCommand(apply func(context.Context, string) error) command {
	return func(ctx context.Context, c *client.Client, opts docopt.Opts) error {
		userID, _ := opts.String("<user_id>")
		if err := apply(ctx, userID); err != nil {
			return err
		}
		return printYAML(map[string]any{"user": userID, "relationship": c.Users.Relationship(userID)})
	}
}

func follow(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	return graphCommand(c.Users.Follow)(ctx, c, opts)
}

func unfollow(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	return graphCommand(c.Users.Unfollow)(ctx, c, opts)
}

func cancelRequest(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	return graphCommand(c.Users.CancelFollowRequest)(ctx, c, opts)
}

func acceptRequest(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	return graphCommand(c.Users.AcceptFollowRequest)(ctx, c, opts)
}

func dismissRequest(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	return graphCommand(c.Users.DismissFollowRequest)(ctx, c, opts)
}

func editProfile(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	var patch models.ProfilePatch
	if name, err := opts.String("--name"); err == nil && name != "" {
		patch.Name = &name
	}
	if raw, err := opts.String("--private"); err == nil && raw != "" {
		private, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		patch.Private = &private
	}
	if path, err := opts.String("--picture"); err == nil && path != "" {
		uploads, err := readUploads([]string{path})
		if err != nil {
			return err
		}
		patch.ProfilePicture = &uploads[0]
	}
	if err := c.Users.EditProfile(ctx, patch); err != nil {
		return err
	}
	return printYAML(c.Users.Snapshot())
}

func search(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	query, _ := opts.String("<query>")
	users, err := c.Directory.SearchUsers(ctx, query)
	if err != nil {
		return err
	}
	return printYAML(users)
}

func followers(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	userID, _ := opts.String("<user_id>")
	users, err := c.Directory.Followers(ctx, userID)
	if err != nil {
		return err
	}
	return printYAML(users)
}

func followings(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	userID, _ := opts.String("<user_id>")
	users, err := c.Directory.Followings(ctx, userID)
	if err != nil {
		return err
	}
	return printYAML(users)
}

func requests(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	list := c.Directory.FollowerRequests
	if sent, _ := opts.Bool("--sent"); sent {
		list = c.Directory.SentRequests
	}
	users, err := list(ctx)
	if err != nil {
		return err
	}
	return printYAML(users)
}

func profile(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	userID, _ := opts.String("<user_id>")
	page, err := c.Directory.ProfilePosts(ctx, userID)
	if err != nil {
		return err
	}
	return printYAML(page)
}

func liked(ctx context.Context, c *client.Client, _ docopt.Opts) error {
	posts, err := c.Directory.LikedPosts(ctx)
	if err != nil {
		return err
	}
	return printYAML(posts)
}

// watch prints toasts published by other feedctl processes until interrupted.
func watch(ctx context.Context, c *client.Client, _ docopt.Opts) error {
	err := c.Notifier.Subscribe(ctx, func(t notifications.Toast) {
		Out.Printf("%s [%s] %s", t.At.Format("15:04:05"), t.Level, t.Message)
	})
	if err != nil {
		if errors.Is(err, notifications.ErrNoRedis) {
			Err.Printf("watch needs NOTIFY_CHANNEL and REDIS_URL")
		}
		return err
	}
	<-ctx.Done()
	return nil
}

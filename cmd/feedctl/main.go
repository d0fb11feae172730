// Command feedctl drives the feedsync stores from the terminal.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"feedsync/internal/client"
	"feedsync/internal/config"
	"feedsync/internal/models"
	"feedsync/internal/notifications"
	"feedsync/internal/observability"

	"github.com/docopt/docopt-go"
)

const FeedCtlVersion = "0.1.0"

var (
	Out *log.Logger
	Err *log.Logger
)

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", 0)
}

const usage = `Feed control.

Settings come from config.yml and the environment (API_BASE_URL,
SESSION_BACKEND, REDIS_URL, NOTIFY_CHANNEL, LOG_LEVEL).

Usage:
    feedctl register <name> <email> <password>
    feedctl login <email> <password>
    feedctl logout
    feedctl whoami
    feedctl feed
    feedctl post [<content>] [--image=<path>...]
    feedctl edit-post <post_id> [<content>] [--image=<path>...]
    feedctl delete-post <post_id>
    feedctl like <post_id>
    feedctl comment <post_id> <content>
    feedctl delete-comment <post_id> <comment_id>
    feedctl follow <user_id>
    feedctl unfollow <user_id>
    feedctl cancel <user_id>
    feedctl accept <user_id>
    feedctl dismiss <user_id>
    feedctl edit-profile [--name=<name>] [--private=<bool>] [--picture=<path>]
    feedctl search <query>
    feedctl followers <user_id>
    feedctl followings <user_id>
    feedctl requests [--sent]
    feedctl profile <user_id>
    feedctl liked
    feedctl watch
    feedctl -h | --help
    feedctl --version

Options:
    -h --help          Show this screen.
    --version          Show version.
    --image=<path>     Attach an image file. Repeat for more.
    --name=<name>      New display name.
    --private=<bool>   true or false.
    --picture=<path>   New profile picture.
    --sent             List requests you sent instead of received.`

type command func(ctx context.Context, c *client.Client, opts docopt.Opts) error

var commands = []struct {
	name string
	run  command
	// anonymous commands run without restoring the session
	anonymous bool
}{
	{"register", register, true},
	{"login", login, true},
	{"logout", logout, false},
	{"whoami", whoami, false},
	{"feed", feed, false},
	{"post", createPost, false},
	{"edit-post", editPost, false},
	{"delete-post", deletePost, false},
	{"like", like, false},
	{"comment", comment, false},
	{"delete-comment", deleteComment, false},
	{"follow", follow, false},
	{"unfollow", unfollow, false},
	{"cancel", cancelRequest, false},
	{"accept", acceptRequest, false},
	{"dismiss", dismissRequest, false},
	{"edit-profile", editProfile, false},
	{"search", search, false},
	{"followers", followers, false},
	{"followings", followings, false},
	{"requests", requests, false},
	{"profile", profile, false},
	{"liked", liked, false},
	{"watch", watch, true},
}

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], FeedCtlVersion)
	if err != nil {
		panic(err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		Err.Fatalf("Failed to load configuration: %v", err)
	}
	observability.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(cfg.TracingConfig("feedctl", FeedCtlVersion))
	if err != nil {
		Err.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	c, err := client.New(ctx, cfg, client.WithToastSink(printToast))
	if err != nil {
		Err.Fatalf("Failed to start client: %v", err)
	}
	defer c.Close()

	if err := run(ctx, c, opts); err != nil {
		// The failure was already shown as a toast.
		c.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, opts docopt.Opts) error {
	for _, cmd := range commands {
		if selected, _ := opts.Bool(cmd.name); !selected {
			continue
		}
		if !cmd.anonymous {
			if err := c.Bootstrap(ctx); err != nil {
				return err
			}
			if err := c.RequireLogin(); err != nil {
				c.Notifier.Error(ctx, models.MessageOf(err))
				return err
			}
		}
		return cmd.run(ctx, c, opts)
	}
	return fmt.Errorf("no command selected")
}

func printToast(t notifications.Toast) {
	if t.Level == notifications.LevelError {
		Err.Printf("error: %s", t.Message)
		return
	}
	Err.Printf("%s", t.Message)
}

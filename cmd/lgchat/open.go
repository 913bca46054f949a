package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/aymanboujjar/lionsgeek-chat/pkg/attach"
	"github.com/aymanboujjar/lionsgeek-chat/pkg/chat"
	"github.com/aymanboujjar/lionsgeek-chat/pkg/config"
)

var openCommand = &cli.Command{
	Name:      "open",
	Usage:     "Open a conversation: poll for messages and send from stdin",
	ArgsUsage: "<conversation-id>",
	Before:    prepareApp,
	Flags: []cli.Flag{
		&cli.Int64Flag{
			Name:  "self",
			Usage: "Your user ID (stamped onto optimistic messages)",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Your display name",
			Value: "me",
		},
	},
	Action: runOpen,
}

func runOpen(ctx *cli.Context) error {
	conversationID, err := parseConversationID(ctx)
	if err != nil {
		return err
	}
	cfg := getConfig(ctx)
	logger := getLogger(ctx).With().Str("run_id", uuid.NewString()[:8]).Logger()

	cache, err := openCache(cfg, logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	session := chat.OpenSession(getClient(ctx), conversationID, chat.SessionOptions{
		Self:         chat.Sender{ID: ctx.Int64("self"), Name: ctx.String("name")},
		PollInterval: cfg.Chat.PollInterval(),
		Cache:        cache,
		Foreground:   true,
	}, logger)
	defer session.Close()

	unsubscribe := session.Subscribe(func(u chat.Update) {
		renderTimeline(u.Entries)
	})
	defer unsubscribe()

	sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchConfig(sigCtx, ctx.String("config"), logger, func(newCfg *config.Config) {
		applyLogLevel(newCfg.LogLevel)
		session.SetPollInterval(newCfg.Chat.PollInterval())
	})

	fmt.Println("Type a message and press enter to send. /file <path> attaches, /quit exits.")
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-sigCtx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := handleInput(sigCtx, session, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				// Send failures are user-facing and dismissible: print and
				// keep the conversation open.
				fmt.Fprintf(os.Stderr, "! %v\n", err)
			}
		}
	}
}

var errQuit = errors.New("quit")

func handleInput(ctx context.Context, session *chat.Session, line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case line == "/quit":
		return errQuit
	case strings.HasPrefix(line, "/file "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/file "))
		desc := attach.Resolve(attach.Source{Path: path})
		_, err := session.Send(ctx, chat.SendInput{Attachment: &desc})
		return err
	default:
		_, err := session.Send(ctx, chat.SendInput{Body: line})
		return err
	}
}

func renderTimeline(entries []chat.Entry) {
	fmt.Println("────────────────────────────────")
	for _, entry := range entries {
		switch e := entry.(type) {
		case *chat.Message:
			read := ""
			if e.IsRead {
				read = " ✓✓"
			}
			line := fmt.Sprintf("[%s] #%d u%d: %s%s",
				e.CreatedAt.Local().Format("15:04"), e.ID, e.SenderID, e.Body, read)
			if e.Attachment != nil {
				line += fmt.Sprintf(" <%s:%s>", e.Attachment.Type, e.Attachment.Name)
			}
			fmt.Println(line)
		case *chat.PendingMessage:
			line := fmt.Sprintf("[…] %s: %s (sending)", e.Sender.Name, e.Body)
			if e.Attachment != nil {
				line += fmt.Sprintf(" <%s:%s>", e.Attachment.Type, e.Attachment.Name)
			}
			fmt.Println(line)
		}
	}
}

func parseConversationID(ctx *cli.Context) (int64, error) {
	if ctx.NArg() != 1 {
		return 0, fmt.Errorf("expected exactly one conversation ID argument")
	}
	var id int64
	if _, err := fmt.Sscanf(ctx.Args().First(), "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid conversation ID %q", ctx.Args().First())
	}
	return id, nil
}

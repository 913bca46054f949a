package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/aymanboujjar/lionsgeek-chat/pkg/attach"
	"github.com/aymanboujjar/lionsgeek-chat/pkg/chat"
)

var sendCommand = &cli.Command{
	Name:      "send",
	Usage:     "Send a single message without staying connected",
	ArgsUsage: "<conversation-id>",
	Before:    prepareApp,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "message",
			Aliases: []string{"m"},
			Usage:   "Message text",
		},
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Path of a file to attach",
		},
		&cli.Int64Flag{
			Name:  "self",
			Usage: "Your user ID",
		},
	},
	Action: runSend,
}

func runSend(ctx *cli.Context) error {
	conversationID, err := parseConversationID(ctx)
	if err != nil {
		return err
	}
	cfg := getConfig(ctx)
	logger := getLogger(ctx)

	session := chat.OpenSession(getClient(ctx), conversationID, chat.SessionOptions{
		Self:         chat.Sender{ID: ctx.Int64("self"), Name: "me"},
		PollInterval: cfg.Chat.PollInterval(),
	}, logger)
	defer session.Close()

	in := chat.SendInput{Body: ctx.String("message")}
	if path := ctx.String("file"); path != "" {
		desc := attach.Resolve(attach.Source{Path: path})
		in.Attachment = &desc
	}
	msg, err := session.Send(ctx.Context, in)
	if err != nil {
		return err
	}
	fmt.Printf("Sent message #%d\n", msg.ID)
	return nil
}

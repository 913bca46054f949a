package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/aymanboujjar/lionsgeek-chat/pkg/chat"
	"github.com/aymanboujjar/lionsgeek-chat/pkg/config"
)

var unreadCommand = &cli.Command{
	Name:   "unread",
	Usage:  "Show the unread message count",
	Before: prepareApp,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "watch",
			Usage: "Keep polling and print the count when it changes",
		},
	},
	Action: runUnread,
}

func runUnread(ctx *cli.Context) error {
	client := getClient(ctx)
	if !ctx.Bool("watch") {
		count, err := client.UnreadCount(ctx.Context)
		if err != nil {
			return err
		}
		fmt.Println(count)
		return nil
	}

	cfg := getConfig(ctx)
	poller := chat.NewUnreadPoller(client, cfg.Chat.UnreadPollInterval(), func(count int) {
		fmt.Printf("unread: %d\n", count)
	}, getLogger(ctx))
	poller.Start()
	defer poller.Stop()

	sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchConfig(sigCtx, ctx.String("config"), getLogger(ctx), func(newCfg *config.Config) {
		applyLogLevel(newCfg.LogLevel)
		poller.SetInterval(newCfg.Chat.UnreadPollInterval())
	})

	<-sigCtx.Done()
	return nil
}

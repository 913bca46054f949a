package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var pruneCommand = &cli.Command{
	Name:      "prune",
	Usage:     "Drop a conversation's locally cached history",
	ArgsUsage: "<conversation-id>",
	Before:    prepareApp,
	Action:    runPrune,
}

// runPrune clears the local cache only. The server copy is untouched;
// the next open re-fetches and re-caches the conversation.
func runPrune(ctx *cli.Context) error {
	conversationID, err := parseConversationID(ctx)
	if err != nil {
		return err
	}
	cache, err := openCache(getConfig(ctx), getLogger(ctx))
	if err != nil {
		return err
	}
	defer cache.Close()

	if err := cache.PruneConversation(ctx.Context, conversationID); err != nil {
		return err
	}
	fmt.Println("Pruned cached conversation", conversationID)
	return nil
}

package controllers

import (
	"context"
	"log"

	"gitfeed/pkg/worker"
)

// Action handlers only run for deliveries carrying a normalized record,
// so evt.Record is always set here.

func HandlePush(ctx context.Context, evt *worker.Event) error {
	log.Printf("push by %s to %s", evt.Record.Author, evt.Record.ToBranch)
	return nil
}

func HandlePullRequest(ctx context.Context, evt *worker.Event) error {
	log.Printf("pull request by %s from %s to %s",
		evt.Record.Author, evt.Record.FromBranch, evt.Record.ToBranch)
	return nil
}

func HandleMerge(ctx context.Context, evt *worker.Event) error {
	if gh, ok := worker.GitHubClient(evt); ok {
		// The provider API client is set when a token is configured.
		_ = gh
	}
	log.Printf("merge by %s into %s", evt.Record.Author, evt.Record.ToBranch)
	return nil
}

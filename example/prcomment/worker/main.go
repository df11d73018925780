package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"gitfeed/internal"
	"gitfeed/pkg/feed"
	"gitfeed/pkg/worker"

	gh "github.com/google/go-github/v57/github"
	bb "github.com/ktrysmt/go-bitbucket"
	gl "github.com/xanzy/go-gitlab"
)

// The prcomment worker answers pull-request and merge records with a
// comment on the pull request itself, carrying the line the activity
// feed will show. Commenting needs a provider token in config; events
// from providers without one are skipped.
func main() {
	configPath := flag.String("config", "config.yaml", "Path to app config")
	topic := flag.String("topic", "feed.events", "Topic carrying feed notifications")
	flag.Parse()

	log.SetPrefix("gitfeed/prcomment-worker ")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	appCfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	subCfg, err := worker.LoadSubscriberConfig(*configPath)
	if err != nil {
		log.Fatalf("load subscriber config: %v", err)
	}

	sub, err := worker.BuildSubscriber(subCfg)
	if err != nil {
		log.Fatalf("subscriber: %v", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			log.Printf("subscriber close: %v", err)
		}
	}()

	formatter := feed.NewFormatter(log.Default())

	wk := worker.New(
		worker.WithSubscriber(sub),
		worker.WithTopics(*topic),
		worker.WithConcurrency(2),
		worker.WithClientProvider(worker.NewSCMClientProvider(appCfg.Providers)),
		worker.WithListener(worker.Listener{
			OnStart: func(ctx context.Context) { log.Println("worker started") },
			OnExit:  func(ctx context.Context) { log.Println("worker stopped") },
			OnError: func(ctx context.Context, evt *worker.Event, err error) {
				log.Printf("worker error: %v", err)
			},
		}),
	)

	comment := func(ctx context.Context, evt *worker.Event) error {
		if evt.Record == nil {
			return nil
		}
		body := "Recorded in the activity feed: " + formatter.Format(*evt.Record)
		return postComment(ctx, evt, body)
	}
	wk.HandleAction(feed.ActionPullRequest, comment)
	wk.HandleAction(feed.ActionMerge, comment)

	if err := wk.Run(ctx); err != nil {
		log.Fatal(err)
	}
}

// postComment locates the pull request the delivery belongs to in the raw
// payload, then comments through the matching provider API.
func postComment(ctx context.Context, evt *worker.Event, body string) error {
	switch evt.Provider {
	case "github":
		client, ok := worker.GitHubClient(evt)
		if !ok {
			log.Printf("skipping comment: no github client")
			return nil
		}
		owner, repo := splitRepo(lookupString(evt.Normalized, "repository", "full_name"))
		number := lookupInt(evt.Normalized, "pull_request", "number")
		if owner == "" || number == 0 {
			log.Printf("skipping comment: no github pull request ref")
			return nil
		}
		_, _, err := client.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{Body: &body})
		return err
	case "gitlab":
		client, ok := worker.GitLabClient(evt)
		if !ok {
			log.Printf("skipping comment: no gitlab client")
			return nil
		}
		project := lookupString(evt.Normalized, "project", "path_with_namespace")
		iid := lookupInt(evt.Normalized, "object_attributes", "iid")
		if project == "" || iid == 0 {
			log.Printf("skipping comment: no gitlab merge request ref")
			return nil
		}
		_, _, err := client.Notes.CreateMergeRequestNote(project, iid, &gl.CreateMergeRequestNoteOptions{Body: &body})
		return err
	case "bitbucket":
		client, ok := worker.BitbucketClient(evt)
		if !ok {
			log.Printf("skipping comment: no bitbucket client")
			return nil
		}
		owner, repo := splitRepo(lookupString(evt.Normalized, "repository", "full_name"))
		id := lookupID(evt.Normalized, "pullrequest", "id")
		if owner == "" || id == "" {
			log.Printf("skipping comment: no bitbucket pull request ref")
			return nil
		}
		opts := (&bb.PullRequestCommentOptions{
			Owner:         owner,
			RepoSlug:      repo,
			PullRequestID: id,
			Content:       body,
		}).WithContext(ctx)
		_, err := client.Repositories.PullRequests.AddComment(opts)
		return err
	default:
		log.Printf("skipping comment: provider %s has no API client", evt.Provider)
		return nil
	}
}

func lookupValue(root map[string]interface{}, path ...string) interface{} {
	var current interface{} = root
	for _, key := range path {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = node[key]
	}
	return current
}

func lookupString(root map[string]interface{}, path ...string) string {
	s, _ := lookupValue(root, path...).(string)
	return s
}

func lookupInt(root map[string]interface{}, path ...string) int {
	switch v := lookupValue(root, path...).(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// lookupID reads an identifier that providers send either as a JSON
// number or a string.
func lookupID(root map[string]interface{}, path ...string) string {
	switch v := lookupValue(root, path...).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

func splitRepo(full string) (owner, repo string) {
	parts := strings.Split(full, "/")
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

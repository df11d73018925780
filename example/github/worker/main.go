package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gitfeed/internal"
	"gitfeed/pkg/worker"

	_ "github.com/lib/pq"
)

// retryOnce retries a failed message a single time before dropping it.
// The attempt count travels in the context passed to Run.
type retryOnce struct{}

type attemptKey struct{}

type attempts struct {
	count int
}

func (retryOnce) OnError(ctx context.Context, evt *worker.Event, err error) worker.RetryDecision {
	if evt == nil {
		return worker.RetryDecision{Retry: false, Nack: true}
	}
	if value := ctx.Value(attemptKey{}); value != nil {
		if state, ok := value.(*attempts); ok && state.count > 0 {
			return worker.RetryDecision{Retry: false, Nack: false}
		}
		if state, ok := value.(*attempts); ok {
			state.count++
		}
	}
	return worker.RetryDecision{Retry: true, Nack: true}
}

// The github worker audits merge records: for every merge the feed
// stores it fetches the pull request through the GitHub API and logs
// the change size alongside the canonical record.
func main() {
	configPath := flag.String("config", "config.yaml", "Path to app config")
	driver := flag.String("driver", "", "Override subscriber driver (amqp|nats|kafka|sql|gochannel)")
	flag.Parse()

	log.SetPrefix("gitfeed/github-worker ")
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
	if *driver != "" {
		subCfg.Driver = *driver
		subCfg.Drivers = nil
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

	wk := worker.New(
		worker.WithSubscriber(sub),
		worker.WithTopics("feed.merges"),
		worker.WithConcurrency(5),
		worker.WithRetry(retryOnce{}),
		worker.WithClientProvider(worker.NewSCMClientProvider(appCfg.Providers)),
		worker.WithListener(worker.Listener{
			OnStart: func(ctx context.Context) { log.Println("worker started") },
			OnExit:  func(ctx context.Context) { log.Println("worker stopped") },
			OnError: func(ctx context.Context, evt *worker.Event, err error) {
				log.Printf("worker error: %v", err)
			},
			OnMessageFinish: func(ctx context.Context, evt *worker.Event, err error) {
				log.Printf("finished provider=%s type=%s err=%v", evt.Provider, evt.Type, err)
			},
		}),
	)

	wk.HandleTopic("feed.merges", func(ctx context.Context, evt *worker.Event) error {
		if evt.Provider != "github" || evt.Record == nil {
			return nil
		}
		if driver := evt.Metadata["driver"]; driver != "" {
			log.Printf("driver=%s topic=%s provider=%s", driver, evt.Topic, evt.Provider)
		}

		record := evt.Record
		client, ok := worker.GitHubClient(evt)
		if !ok {
			log.Printf("merge recorded: %s by %s into %s", record.RequestID, record.Author, record.ToBranch)
			return nil
		}

		repoMap, _ := evt.Normalized["repository"].(map[string]interface{})
		full, _ := repoMap["full_name"].(string)
		prMap, _ := evt.Normalized["pull_request"].(map[string]interface{})
		number, _ := prMap["number"].(float64)
		parts := strings.Split(full, "/")
		if len(parts) != 2 || number == 0 {
			log.Printf("merge recorded without api detail: %s by %s", record.RequestID, record.Author)
			return nil
		}

		pr, _, err := client.PullRequests.Get(ctx, parts[0], parts[1], int(number))
		if err != nil {
			return err
		}
		log.Printf("merged #%d into %s by %s: +%d -%d across %d files",
			int(number), record.ToBranch, record.Author,
			pr.GetAdditions(), pr.GetDeletions(), pr.GetChangedFiles())
		return nil
	})

	runCtx := context.WithValue(ctx, attemptKey{}, &attempts{})
	if err := wk.Run(runCtx); err != nil {
		log.Fatal(err)
	}
}

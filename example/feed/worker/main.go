package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gitfeed/pkg/feed"
	"gitfeed/pkg/worker"

	_ "github.com/lib/pq"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to app config")
	driver := flag.String("driver", "", "Override subscriber driver (amqp|nats|kafka|sql|gochannel)")
	flag.Parse()

	log.SetPrefix("gitfeed/digest-worker ")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	subCfg, err := worker.LoadSubscriberConfig(*configPath)
	if err != nil {
		log.Fatalf("load subscriber config: %v", err)
	}
	if *driver != "" {
		subCfg.Driver = *driver
		subCfg.Drivers = nil
	}

	topics, err := worker.LoadTopicsFromConfig(*configPath)
	if err != nil {
		log.Fatalf("load topics: %v", err)
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
		worker.WithTopics(topics...),
		worker.WithConcurrency(5),
		worker.WithListener(worker.Listener{
			OnStart: func(ctx context.Context) { log.Println("digest worker started") },
			OnExit:  func(ctx context.Context) { log.Println("digest worker stopped") },
			OnError: func(ctx context.Context, evt *worker.Event, err error) {
				log.Printf("worker error: %v", err)
			},
		}),
	)

	digest := func(ctx context.Context, evt *worker.Event) error {
		if evt.Record == nil {
			return nil
		}
		if driver := evt.Metadata["driver"]; driver != "" {
			log.Printf("driver=%s topic=%s provider=%s", driver, evt.Topic, evt.Provider)
		}
		log.Printf("%s", formatter.Format(*evt.Record))
		return nil
	}
	wk.HandleAction(feed.ActionPush, digest)
	wk.HandleAction(feed.ActionPullRequest, digest)
	wk.HandleAction(feed.ActionMerge, digest)

	if err := wk.Run(ctx); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gitfeed/boilerplate/worker/controllers"
	"gitfeed/internal"
	"gitfeed/pkg/feed"
	"gitfeed/pkg/worker"
)

// Starting point for a feed consumer: copy this directory, keep the
// wiring and fill in the controllers.
func main() {
	configPath := flag.String("config", "config.yaml", "Path to app config")
	flag.Parse()

	log.SetPrefix("gitfeed/worker-boilerplate ")
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

	topics, err := worker.LoadTopicsFromConfig(*configPath)
	if err != nil {
		log.Fatalf("load topics: %v", err)
	}
	if len(topics) == 0 {
		topics = []string{"feed.events"}
	}

	wk := worker.New(
		worker.WithSubscriber(sub),
		worker.WithTopics(topics...),
		worker.WithConcurrency(5),
		worker.WithClientProvider(worker.NewSCMClientProvider(appCfg.Providers)),
	)

	wk.HandleAction(feed.ActionPush, controllers.HandlePush)
	wk.HandleAction(feed.ActionPullRequest, controllers.HandlePullRequest)
	wk.HandleAction(feed.ActionMerge, controllers.HandleMerge)

	if err := wk.Run(ctx); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"expvar"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"gitfeed/internal"
	"gitfeed/pkg/api"
	"gitfeed/pkg/feed"
	"gitfeed/pkg/scm"
	"gitfeed/pkg/storage"
	"gitfeed/pkg/webhook"
)

func main() {
	logger := internal.NewLogger("server")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	store, err := storage.Open(storage.Config{
		Driver:      config.Storage.Driver,
		DSN:         config.Storage.DSN,
		Dialect:     config.Storage.Dialect,
		Table:       config.Storage.Table,
		AutoMigrate: config.Storage.AutoMigrate,
	})
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Printf("store close: %v", err)
		}
	}()

	recorder, err := feed.NewRecorder(store, logger)
	if err != nil {
		logger.Fatalf("recorder: %v", err)
	}

	ruleEngine, err := internal.NewRuleEngine(internal.RulesConfig{
		Rules:  config.Rules,
		Strict: config.RulesStrict,
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("compile rules: %v", err)
	}

	publisher, err := internal.NewPublisher(config.Watermill)
	if err != nil {
		logger.Fatalf("publisher: %v", err)
	}
	defer publisher.Close()

	opts := webhook.Options{
		Rules:        ruleEngine,
		Publisher:    publisher,
		Recorder:     recorder,
		Logger:       logger,
		MaxBody:      config.Server.MaxBodyBytes,
		DebugEvents:  config.Server.DebugEvents,
		DefaultTopic: config.Watermill.DefaultTopic,
	}

	mux := http.NewServeMux()

	if config.Providers.GitHub.Enabled {
		ghHandler, err := webhook.NewGitHubHandler(config.Providers.GitHub.Secret, opts)
		if err != nil {
			logger.Fatalf("github handler: %v", err)
		}
		mux.Handle(config.Providers.GitHub.Path, ghHandler)
		logger.Printf("github webhook enabled on %s", config.Providers.GitHub.Path)
	}

	if config.Providers.GitLab.Enabled {
		glHandler, err := webhook.NewGitLabHandler(config.Providers.GitLab.Secret, opts)
		if err != nil {
			logger.Fatalf("gitlab handler: %v", err)
		}
		mux.Handle(config.Providers.GitLab.Path, glHandler)
		logger.Printf("gitlab webhook enabled on %s", config.Providers.GitLab.Path)
	}

	if config.Providers.Bitbucket.Enabled {
		bbHandler, err := webhook.NewBitbucketHandler(config.Providers.Bitbucket.UUID, opts)
		if err != nil {
			logger.Fatalf("bitbucket handler: %v", err)
		}
		mux.Handle(config.Providers.Bitbucket.Path, bbHandler)
		logger.Printf("bitbucket webhook enabled on %s", config.Providers.Bitbucket.Path)
	}

	mux.Handle(config.Feed.EventsPath, &api.EventsHandler{
		Store:     store,
		Formatter: feed.NewFormatter(logger),
		Limit:     config.Feed.RecentLimit,
		Logger:    logger,
	})
	mux.Handle("/healthz", &api.HealthHandler{Store: store, Logger: logger})
	mux.Handle("/hooks", &api.HooksHandler{
		Manager: scm.NewHookManager(config.Providers),
		Logger:  logger,
	})

	if config.Server.MetricsEnabled {
		mux.Handle(config.Server.MetricsPath, expvar.Handler())
		logger.Printf("metrics enabled on %s", config.Server.MetricsPath)
	}

	handler := internal.NewRateLimitHandler(mux, config.Server.RateLimitRPS, config.Server.RateLimitBurst, 10*time.Minute)

	addr := ":" + strconv.Itoa(config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(config.Server.ReadTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(config.Server.ReadHeaderMS) * time.Millisecond,
		WriteTimeout:      time.Duration(config.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(config.Server.IdleTimeoutMS) * time.Millisecond,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatalf("listen: %v", err)
	}
	if config.Server.MaxConns > 0 {
		listener = netutil.LimitListener(listener, config.Server.MaxConns)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Printf("listening on %s", addr)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("serve: %v", err)
		}
	}()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}

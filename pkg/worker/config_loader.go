package worker

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"gitfeed/internal"
)

// AppConfig is the subset of the application configuration the worker
// reads. It shares the config file with the hook server; consumer-only
// keys (consumer groups, durable names, retry) live under the same
// watermill section and are ignored by the server.
type AppConfig struct {
	Watermill SubscriberConfig `yaml:"watermill"`
}

// LoadSubscriberConfig reads the watermill section from a YAML config file.
func LoadSubscriberConfig(path string) (SubscriberConfig, error) {
	var cfg AppConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg.Watermill, err
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg.Watermill, err
	}
	applySubscriberDefaults(&cfg.Watermill)
	return cfg.Watermill, nil
}

// LoadTopicsFromConfig returns every topic the server can publish to:
// the default topic plus each topic named by a routing rule.
func LoadTopicsFromConfig(path string) ([]string, error) {
	cfg, err := internal.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	topics := make([]string, 0, len(cfg.Rules)+1)
	seen := make(map[string]struct{}, len(cfg.Rules)+1)
	add := func(topic string) {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			return
		}
		if _, ok := seen[topic]; ok {
			return
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}

	add(cfg.Watermill.DefaultTopic)
	for _, rule := range cfg.Rules {
		for _, topic := range rule.Emit {
			add(topic)
		}
	}
	return topics, nil
}

func applySubscriberDefaults(cfg *SubscriberConfig) {
	if cfg.Driver == "" && len(cfg.Drivers) == 0 {
		cfg.Driver = "gochannel"
	}
	if cfg.GoChannel.OutputChannelBuffer == 0 {
		cfg.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.NATS.ClientIDSuffix == "" {
		cfg.NATS.ClientIDSuffix = "-worker"
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = 10
	}
	if cfg.Retry.DelayMS == 0 {
		cfg.Retry.DelayMS = 2000
	}
}

package config

import (
	"fmt"
	"os"

	"edubrief/pkg/news"

	"gopkg.in/yaml.v3"
)

const defaultFetchLimit = 50

// Config is the crawler source inventory, loaded from a yaml file so
// new portals can be added without a rebuild.
type Config struct {
	FetchLimit int                   `yaml:"fetch_limit"`
	ListPages  []news.ListPageConfig `yaml:"list_pages"`
	JSONFeeds  []news.JSONFeedConfig `yaml:"json_feeds"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SOURCES_CONFIG")
	}
	if path == "" {
		path = "sources.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = defaultFetchLimit
	}

	if len(cfg.ListPages) == 0 && len(cfg.JSONFeeds) == 0 {
		return nil, fmt.Errorf("config %s: no sources defined", path)
	}

	return &cfg, nil
}

// Clients builds one news client per configured source.
func (c *Config) Clients() []news.NewsClient {
	var clients []news.NewsClient
	for _, lp := range c.ListPages {
		clients = append(clients, news.NewListPageClient(lp))
	}
	for _, jf := range c.JSONFeeds {
		clients = append(clients, news.NewJSONFeedClient(jf))
	}
	return clients
}

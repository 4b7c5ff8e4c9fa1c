package news

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// JSONFeedConfig describes a news aggregation endpoint that returns
// article lists as JSON, the common shape among portal search APIs.
type JSONFeedConfig struct {
	Name       string `yaml:"name"`
	URL        string `yaml:"url"`
	TimeLayout string `yaml:"time_layout"`
}

type JSONFeedClient struct {
	config     JSONFeedConfig
	httpClient *http.Client
}

func NewJSONFeedClient(config JSONFeedConfig) *JSONFeedClient {
	if config.TimeLayout == "" {
		config.TimeLayout = "2006-01-02 15:04:05"
	}
	return &JSONFeedClient{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *JSONFeedClient) Name() string {
	return c.config.Name
}

func (c *JSONFeedClient) Fetch(limit int) ([]Article, error) {
	url := c.config.URL
	if limit > 0 {
		url = fmt.Sprintf("%s?limit=%d", c.config.URL, limit)
	}

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("%s fetch: %w", c.config.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s fetch: unexpected status %d", c.config.Name, resp.StatusCode)
	}

	var raw feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%s decode: %w", c.config.Name, err)
	}

	articles := make([]Article, 0, len(raw.Articles))
	for _, item := range raw.Articles {
		if item.Title == "" || item.URL == "" {
			continue
		}

		publishedAt, err := time.Parse(c.config.TimeLayout, item.PublishTime)
		if err != nil {
			publishedAt = time.Time{}
		}

		source := item.Source
		if source == "" {
			source = c.config.Name
		}

		articles = append(articles, Article{
			ExternalID:  generateExternalID(item.URL),
			Title:       item.Title,
			Summary:     item.Summary,
			Content:     item.Content,
			URL:         item.URL,
			Source:      source,
			PublishedAt: publishedAt,
		})
	}

	return articles, nil
}

type feedResponse struct {
	Articles []feedItem `json:"articles"`
}

type feedItem struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishTime string `json:"publish_time"`
}

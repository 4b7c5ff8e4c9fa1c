package news

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ListPageConfig describes one HTML list page: where the items live and
// which selectors pull the fields out of each item.
type ListPageConfig struct {
	Name            string `yaml:"name"`
	URL             string `yaml:"url"`
	ItemSelector    string `yaml:"item_selector"`
	TitleSelector   string `yaml:"title_selector"`
	LinkSelector    string `yaml:"link_selector"`
	DateSelector    string `yaml:"date_selector"`
	SummarySelector string `yaml:"summary_selector"`
	DateLayout      string `yaml:"date_layout"`
}

// ListPageClient scrapes article listings from government and school
// portal pages that publish plain HTML lists.
type ListPageClient struct {
	config     ListPageConfig
	httpClient *http.Client
}

func NewListPageClient(config ListPageConfig) *ListPageClient {
	if config.DateLayout == "" {
		config.DateLayout = "2006-01-02"
	}
	return &ListPageClient{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *ListPageClient) Name() string {
	return c.config.Name
}

func (c *ListPageClient) Fetch(limit int) ([]Article, error) {
	resp, err := c.httpClient.Get(c.config.URL)
	if err != nil {
		return nil, fmt.Errorf("%s fetch: %w", c.config.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s fetch: unexpected status %d", c.config.Name, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s parse: %w", c.config.Name, err)
	}

	base, err := url.Parse(c.config.URL)
	if err != nil {
		return nil, fmt.Errorf("%s base url: %w", c.config.Name, err)
	}

	var articles []Article
	doc.Find(c.config.ItemSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if limit > 0 && len(articles) >= limit {
			return false
		}

		title := strings.TrimSpace(s.Find(c.config.TitleSelector).First().Text())
		if title == "" {
			return true
		}

		linkSel := s.Find(c.config.LinkSelector).First()
		href, _ := linkSel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		link := base.ResolveReference(ref).String()

		publishedAt := time.Time{}
		if c.config.DateSelector != "" {
			raw := strings.TrimSpace(s.Find(c.config.DateSelector).First().Text())
			if t, err := time.Parse(c.config.DateLayout, raw); err == nil {
				publishedAt = t
			}
		}

		summary := ""
		if c.config.SummarySelector != "" {
			summary = strings.TrimSpace(s.Find(c.config.SummarySelector).First().Text())
		}

		articles = append(articles, Article{
			ExternalID:  generateExternalID(link),
			Title:       title,
			Summary:     summary,
			URL:         link,
			Source:      c.config.Name,
			PublishedAt: publishedAt,
		})
		return true
	})

	return articles, nil
}

func generateExternalID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", sum)[:16]
}

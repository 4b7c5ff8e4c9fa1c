package news

import "time"

type Article struct {
	ExternalID  string
	Title       string
	Content     string
	Summary     string
	URL         string
	Source      string
	PublishedAt time.Time
}

type NewsClient interface {
	Fetch(limit int) ([]Article, error)
	Name() string
}

package model

import "time"

const (
	StatusPending = "pending"
	StatusScored  = "scored"
	StatusFailed  = "failed"
)

const (
	TrackZongbao = "zongbao"
	TrackWanbao  = "wanbao"
)

const (
	DecisionPending   = "pending"
	DecisionSelected  = "selected"
	DecisionBackup    = "backup"
	DecisionDiscarded = "discarded"
)

type Article struct {
	ID               int64
	Title            string
	URL              string
	Source           string
	Content          string
	Summary          string
	LLMSourceRaw     string
	LLMSourceDisplay string
	BeijingRelated   bool
	SentimentLabel   string
	ExternalScore    *float64
	Score            *float64
	BonusKeywords    []string
	ClusterID        *int64
	PublishedAt      time.Time
	FetchedAt        time.Time
	Status           string
}

// CandidateArticle is an Article joined with its manual decision for one
// report track. ManualStatus is a function of (article, track), never a
// property of the article row itself.
type CandidateArticle struct {
	Article
	ReportTrack  string
	ManualStatus string
	DecidedBy    string
	DecidedAt    *time.Time
}

// ArticleCluster groups near-duplicate candidates. Members[0] is the
// representative; Status is the common decision of all members, empty when
// members disagree.
type ArticleCluster struct {
	ID      int64
	Members []CandidateArticle
	Status  string
}

type ReviewStats struct {
	Pending  int
	Selected int
	Backup   int
	Exported int
}

type ExportRecord struct {
	ID          int64
	ReportTrack string
	Period      int
	TotalPeriod int
	Count       int
	ExportedBy  string
	ExportedAt  time.Time
}

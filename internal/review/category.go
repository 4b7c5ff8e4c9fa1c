package review

import (
	"strings"

	"edubrief/internal/model"
)

// Bucket is one of the four region × sentiment groups used both for the
// review screens and for digest section assignment. The two callers must
// never disagree, so this is the only place bucketing happens.
type Bucket string

const (
	BucketInternalPositive Bucket = "internal_positive"
	BucketInternalNegative Bucket = "internal_negative"
	BucketExternalPositive Bucket = "external_positive"
	BucketExternalNegative Bucket = "external_negative"
)

// ReviewRailOrder is the fixed bucket order of the selected/backup review
// rail. IntakeRailOrder is the fixed order of the candidate intake rail.
// The two screens intentionally use different orders.
var (
	ReviewRailOrder = []Bucket{
		BucketInternalNegative,
		BucketInternalPositive,
		BucketExternalPositive,
		BucketExternalNegative,
	}
	IntakeRailOrder = []Bucket{
		BucketInternalPositive,
		BucketInternalNegative,
		BucketExternalPositive,
		BucketExternalNegative,
	}
)

// IsNegative reports whether a sentiment label counts as negative.
// Matching is case-insensitive; any label other than "negative", including
// an absent one, counts as positive.
func IsNegative(sentiment string) bool {
	return strings.EqualFold(strings.TrimSpace(sentiment), "negative")
}

// Categorize buckets an article by (region, sentiment). Pure and
// deterministic: the result depends on nothing but the two fields.
func Categorize(a model.Article) Bucket {
	negative := IsNegative(a.SentimentLabel)
	switch {
	case a.BeijingRelated && negative:
		return BucketInternalNegative
	case a.BeijingRelated:
		return BucketInternalPositive
	case negative:
		return BucketExternalNegative
	default:
		return BucketExternalPositive
	}
}

// GroupByBucket splits items into the four buckets, preserving the input
// order within each bucket.
func GroupByBucket(items []model.CandidateArticle) map[Bucket][]model.CandidateArticle {
	groups := make(map[Bucket][]model.CandidateArticle, 4)
	for _, item := range items {
		b := Categorize(item.Article)
		groups[b] = append(groups[b], item)
	}
	return groups
}

// Topic labels for the auto-arrange convenience. They never influence the
// primary region/sentiment bucketing.
const (
	TopicMunicipalAuthority = "municipal_education_authority"
	TopicSchools            = "primary_secondary_schools"
	TopicHigherEducation    = "higher_education"
	TopicOther              = "other"
)

// topicKeywords is ordered: the first category whose keyword list matches
// wins, so authority news about a school still files under the authority.
var topicKeywords = []struct {
	topic    string
	keywords []string
}{
	{TopicMunicipalAuthority, []string{"市教委", "教委", "教育局", "教育厅", "教育部", "督导", "招生考试"}},
	{TopicSchools, []string{"中小学", "小学", "中学", "初中", "高中", "幼儿园", "义务教育", "校外培训"}},
	{TopicHigherEducation, []string{"大学", "高校", "学院", "研究生", "本科", "双一流", "职业教育"}},
}

// ClassifyTopic buckets free text (title+summary+source) into a topical
// category by ordered case-insensitive substring matching.
func ClassifyTopic(a model.Article) string {
	text := strings.ToLower(a.Title + a.Summary + a.Source)
	for _, cat := range topicKeywords {
		for _, kw := range cat.keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				return cat.topic
			}
		}
	}
	return TopicOther
}

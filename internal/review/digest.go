package review

import (
	"strconv"
	"strings"

	"edubrief/internal/model"
)

const (
	markerFocus    = "★ "
	markerOverview = "■ "
	markerExternal = "▲ "

	headerFocus     = "【重点关注舆情】"
	headerOverview  = "【新闻信息纵览】"
	headerHotspot   = "【国内教育热点】"
	headerQuickScan = "【舆情速览】"
	headerReference = "【舆情参考】"
)

// DisplaySource resolves the attribution shown after an item's summary:
// editor override first, then the machine-suggested source, then the crawl
// source. Empty means no attribution is printed.
func DisplaySource(a model.Article) string {
	for _, s := range []string{a.LLMSourceDisplay, a.LLMSourceRaw, a.Source} {
		if v := strings.TrimSpace(s); v != "" {
			return v
		}
	}
	return ""
}

// Compose renders the digest text for one report track from an
// already-ordered item list. Pure: it neither fetches nor mutates state,
// and identical input produces byte-identical output.
func Compose(track string, items []model.CandidateArticle) string {
	groups := GroupByBucket(items)

	var sections []string
	switch track {
	case model.TrackWanbao:
		sections = []string{
			numberedSection(headerQuickScan, concat(groups[BucketInternalPositive], groups[BucketInternalNegative])),
			numberedSection(headerReference, concat(groups[BucketExternalPositive], groups[BucketExternalNegative])),
		}
	default:
		sections = []string{
			markedSection(headerFocus, markerFocus, groups[BucketInternalNegative]),
			markedSection(headerOverview, markerOverview, concat(groups[BucketInternalPositive], groups[BucketExternalPositive])),
			markedSection(headerHotspot, markerExternal, groups[BucketExternalNegative]),
		}
	}

	var nonEmpty []string
	for _, s := range sections {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	return strings.TrimRight(strings.Join(nonEmpty, "\n\n"), " \t\n")
}

func concat(a, b []model.CandidateArticle) []model.CandidateArticle {
	out := make([]model.CandidateArticle, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func markedSection(header, marker string, items []model.CandidateArticle) string {
	if len(items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, renderItem(marker+item.Title, item.Article))
	}
	return header + "\n" + strings.Join(lines, "\n\n")
}

func numberedSection(header string, items []model.CandidateArticle) string {
	if len(items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(items))
	for i, item := range items {
		lines = append(lines, renderItem(ChineseOrdinal(i+1)+"、"+item.Title, item.Article))
	}
	return header + "\n" + strings.Join(lines, "\n\n")
}

func renderItem(titleLine string, a model.Article) string {
	var sb strings.Builder
	sb.WriteString(titleLine)

	summary := strings.TrimSpace(a.Summary)
	source := DisplaySource(a)
	if summary != "" || source != "" {
		sb.WriteString("\n")
		sb.WriteString(summary)
		if source != "" {
			sb.WriteString("（" + source + "）")
		}
	}
	return sb.String()
}

var cnDigits = []string{"零", "一", "二", "三", "四", "五", "六", "七", "八", "九"}

// ChineseOrdinal converts n to the Chinese numeral used for digest
// numbering. Values of 100 or more fall back to the digit string.
func ChineseOrdinal(n int) string {
	switch {
	case n < 0 || n >= 100:
		return strconv.Itoa(n)
	case n < 10:
		return cnDigits[n]
	case n < 20:
		if n == 10 {
			return "十"
		}
		return "十" + cnDigits[n%10]
	default:
		s := cnDigits[n/10] + "十"
		if n%10 != 0 {
			s += cnDigits[n%10]
		}
		return s
	}
}

package review

import (
	"strings"
	"testing"

	"edubrief/internal/model"
)

func candidate(id int64, title, summary, source string, beijing bool, sentiment string) model.CandidateArticle {
	return model.CandidateArticle{
		Article: model.Article{
			ID:             id,
			Title:          title,
			Summary:        summary,
			Source:         source,
			BeijingRelated: beijing,
			SentimentLabel: sentiment,
		},
	}
}

func TestComposeZongbao(t *testing.T) {
	items := []model.CandidateArticle{
		candidate(1, "甲校事件", "发生纠纷", "北京日报", true, "negative"),
		candidate(2, "乙省新政", "推出新规", "新华社", false, "positive"),
	}

	want := "【重点关注舆情】\n" +
		"★ 甲校事件\n" +
		"发生纠纷（北京日报）\n" +
		"\n" +
		"【新闻信息纵览】\n" +
		"■ 乙省新政\n" +
		"推出新规（新华社）"

	got := Compose(model.TrackZongbao, items)
	if got != want {
		t.Errorf("Compose() mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
	if strings.Contains(got, "【国内教育热点】") {
		t.Errorf("empty external_negative section must be omitted")
	}
}

func TestComposeZongbaoExternalNegative(t *testing.T) {
	items := []model.CandidateArticle{
		candidate(1, "丙市通报", "处理完毕", "央视", false, "negative"),
	}

	got := Compose(model.TrackZongbao, items)
	want := "【国内教育热点】\n▲ 丙市通报\n处理完毕（央视）"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestComposeWanbao(t *testing.T) {
	items := []model.CandidateArticle{
		candidate(1, "本市动态", "概要一", "来源甲", true, "positive"),
		candidate(2, "本市事件", "概要二", "来源乙", true, "negative"),
		candidate(3, "外省动态", "概要三", "来源丙", false, "positive"),
	}

	got := Compose(model.TrackWanbao, items)

	want := "【舆情速览】\n" +
		"一、本市动态\n" +
		"概要一（来源甲）\n" +
		"\n" +
		"二、本市事件\n" +
		"概要二（来源乙）\n" +
		"\n" +
		"【舆情参考】\n" +
		"一、外省动态\n" +
		"概要三（来源丙）"

	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestComposeNumberingRestartsPerSection(t *testing.T) {
	items := []model.CandidateArticle{
		candidate(1, "甲", "s1", "a", true, "positive"),
		candidate(2, "乙", "s2", "b", false, "positive"),
		candidate(3, "丙", "s3", "c", false, "negative"),
	}
	got := Compose(model.TrackWanbao, items)
	if !strings.Contains(got, "一、乙") {
		t.Errorf("second section must restart numbering at 一:\n%s", got)
	}
	if !strings.Contains(got, "二、丙") {
		t.Errorf("second section must continue 二 for its second item:\n%s", got)
	}
}

func TestComposeIdempotent(t *testing.T) {
	items := []model.CandidateArticle{
		candidate(1, "甲校事件", "发生纠纷", "北京日报", true, "negative"),
		candidate(2, "乙省新政", "推出新规", "新华社", false, "positive"),
	}
	first := Compose(model.TrackZongbao, items)
	second := Compose(model.TrackZongbao, items)
	if first != second {
		t.Errorf("Compose is not idempotent")
	}
}

func TestComposeEmpty(t *testing.T) {
	if got := Compose(model.TrackZongbao, nil); got != "" {
		t.Errorf("empty input must compose to empty string, got %q", got)
	}
}

func TestDisplaySource(t *testing.T) {
	tests := []struct {
		name    string
		display string
		raw     string
		source  string
		want    string
	}{
		{"editor override wins", "编辑来源", "机器来源", "抓取来源", "编辑来源"},
		{"falls back to raw", "", "机器来源", "抓取来源", "机器来源"},
		{"falls back to source", "", "", "抓取来源", "抓取来源"},
		{"whitespace is empty", "  ", "", "抓取来源", "抓取来源"},
		{"all empty", "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := model.Article{LLMSourceDisplay: tt.display, LLMSourceRaw: tt.raw, Source: tt.source}
			if got := DisplaySource(a); got != tt.want {
				t.Errorf("DisplaySource() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComposeNoSource(t *testing.T) {
	items := []model.CandidateArticle{
		candidate(1, "标题", "概要", "", true, "negative"),
	}
	got := Compose(model.TrackZongbao, items)
	want := "【重点关注舆情】\n★ 标题\n概要"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestChineseOrdinal(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "零"},
		{1, "一"},
		{9, "九"},
		{10, "十"},
		{11, "十一"},
		{19, "十九"},
		{20, "二十"},
		{21, "二十一"},
		{99, "九十九"},
		{100, "100"},
		{135, "135"},
	}
	for _, tt := range tests {
		if got := ChineseOrdinal(tt.n); got != tt.want {
			t.Errorf("ChineseOrdinal(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

package llm

type ScoreInput struct {
	Title   string
	Content string
	Source  string
}

type ScoreResult struct {
	Summary        string
	SourceName     string
	Sentiment      string
	BeijingRelated bool
	Importance     float64
	Keywords       []string
	PromptVersion  string
	ModelUsed      string
}

type Scorer interface {
	Score(input ScoreInput) (*ScoreResult, error)
}

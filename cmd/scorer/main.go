package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"edubrief/db"
	"edubrief/internal/model"
	"edubrief/internal/repository"
	"edubrief/pkg/llm"

	"github.com/joho/godotenv"
)

func main() {

	godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	const maxRetries = 3
	const popTimeout = 30 * time.Second

	err := db.ConnectRedis()
	if err != nil {
		log.Fatalf("error connecting to Redis: %v", err)
	}
	defer db.CloseRedis()

	err = db.Connect()
	if err != nil {
		log.Fatalf("error connecting to DB: %v", err)
	}
	defer db.Close()

	articleRepository := repository.NewArticleRepository(db.DB)

	var scorer llm.Scorer
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		scorer = llm.NewAnthropicClient(key)
	} else {
		scorer = llm.NewOpenAIClient(os.Getenv("OPENAI_API_KEY"))
	}

	for {
		id, err := db.PopFromQueue(db.ScoreQueueKey, popTimeout)
		if err != nil {
			slog.Error("error popping from Redis queue", "error", err)
			break
		}

		articleId, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			slog.Error("invalid article id in queue", "id", id, "error", err)
			continue
		}

		errorCount, err := articleRepository.GetErrorCount(articleId)
		if err != nil {
			slog.Error("error getting error count", "error", err, "article_id", articleId)
			continue
		}

		if errorCount >= maxRetries {
			slog.Warn("article exceeded max retries, marking as failed", "article_id", articleId, "error_count", errorCount)
			articleRepository.UpdateStatus(articleId, model.StatusFailed)
			db.PushToQueue(db.DeadLetterKey, id)
			continue
		}

		article, err := articleRepository.GetByID(articleId)
		if err != nil {
			slog.Error("error getting article from DB", "error", err, "article_id", articleId)
			continue
		}

		if article == nil {
			slog.Warn("article not found in DB", "article_id", articleId)
			continue
		}

		input := llm.ScoreInput{
			Title:   article.Title,
			Content: article.Content,
			Source:  article.Source,
		}

		result, err := scorer.Score(input)
		if err != nil {
			slog.Error("error scoring article", "error", err, "article_id", articleId)

			articleRepository.SaveError(articleId, err.Error(), "llm_error")

			db.PushToQueue(db.ScoreQueueKey, strconv.FormatInt(articleId, 10))

			time.Sleep(5 * time.Second)
			continue
		}

		summary := result.Summary
		if summary == "" {
			summary = article.Summary
		}

		err = articleRepository.SaveScore(articleId, summary, result.SourceName,
			result.Sentiment, result.BeijingRelated, result.Importance, result.Keywords)
		if err != nil {
			slog.Error("error saving score", "error", err, "article_id", articleId)
			continue
		}

		slog.Info("article scored", "article_id", articleId,
			"sentiment", result.Sentiment, "beijing_related", result.BeijingRelated,
			"importance", result.Importance, "model", result.ModelUsed)
	}
}

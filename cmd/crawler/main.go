package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"edubrief/db"
	"edubrief/internal/config"
	"edubrief/internal/model"
	"edubrief/internal/repository"

	"github.com/joho/godotenv"
)

func main() {

	godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("error loading source config: %v", err)
	}

	err = db.Connect()
	if err != nil {
		log.Fatalf("error connecting to DB: %v", err)
	}
	defer db.Close()

	err = db.ConnectRedis()
	if err != nil {
		log.Fatalf("error connecting to Redis: %v", err)
	}
	defer db.CloseRedis()

	repo := repository.NewArticleRepository(db.DB)

	for _, client := range cfg.Clients() {
		source := client.Name()

		fetched, err := client.Fetch(cfg.FetchLimit)
		if err != nil {
			slog.Error("error fetching articles", "source", source, "error", err)
			continue
		}

		var saved, duplicated, errors int

		for _, a := range fetched {
			article := model.Article{
				Title:       a.Title,
				URL:         a.URL,
				Source:      a.Source,
				Content:     a.Content,
				Summary:     a.Summary,
				PublishedAt: a.PublishedAt,
			}

			success, err := repo.SaveCandidate(&article)
			if err != nil {
				slog.Error("error saving article", "source", source, "error", err)
				errors++
				continue
			}

			if !success {
				slog.Info("duplicate article skipped", "source", source, "url", a.URL)
				duplicated++
				continue
			}

			saved++

			err = db.PushToQueue(db.ScoreQueueKey, strconv.FormatInt(article.ID, 10))
			if err != nil {
				slog.Error("error pushing to Redis queue", "source", source, "error", err, "article_id", article.ID)
				errors++
			}
		}

		slog.Info("crawl complete", "source", source, "saved", saved, "duplicated", duplicated, "errors", errors)
	}
}

package main

import (
	"log"
	"log/slog"
	"os"

	"edubrief/db"
	"edubrief/internal/cluster"
	"edubrief/internal/handler"
	"edubrief/internal/repository"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {

	godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	err := db.Connect()
	if err != nil {
		log.Fatalf("error connecting to DB: %v", err)
	}
	defer db.Close()

	candidateRepo := repository.NewCandidateRepository(db.DB)
	clusterEngine := cluster.NewEngine()
	reviewHandler := handler.NewReviewHandler(candidateRepo, clusterEngine)

	searchRepo := repository.NewSearchRepository(db.DB)
	searchHandler := handler.NewSearchHandler(searchRepo)

	exportRepo := repository.NewExportLogRepository(db.DB)
	exportHandler := handler.NewExportHandler(exportRepo)

	r := gin.Default()

	allowedOrigins := []string{"http://localhost:3000"}

	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	slog.Info("AllowOrigins URL:", "urls", allowedOrigins)

	r.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))

	r.GET("/api/candidates", reviewHandler.GetCandidates)
	r.GET("/api/review/items", reviewHandler.GetReviewItems)
	r.GET("/api/review/discarded", reviewHandler.GetDiscarded)
	r.POST("/api/review/edits", reviewHandler.PostEdits)
	r.POST("/api/review/decide", reviewHandler.PostDecide)
	r.POST("/api/review/order", reviewHandler.PostOrder)
	r.POST("/api/review/restore", reviewHandler.PostRestore)
	r.POST("/api/review/export", reviewHandler.PostExport)
	r.POST("/api/review/archive", reviewHandler.PostArchive)
	r.GET("/api/review/stats", reviewHandler.GetStats)
	r.GET("/api/review/exports", exportHandler.GetExportHistory)
	r.GET("/api/review/exports/latest", exportHandler.GetLatestExport)
	r.GET("/api/search", searchHandler.Search)
	r.GET("/health", reviewHandler.GetHealth)

	err = r.Run(":8080")
	if err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}

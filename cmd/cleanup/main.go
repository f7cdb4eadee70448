package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/clintrovert/bugminer/internal/config"
	"github.com/clintrovert/bugminer/internal/mining"
)

func main() {
	projectsPath := flag.String("projects", "delete.txt", "tab-separated list of projects to delete")
	cacheDir := flag.String("cache", "cache", "cache directory for mirrors and issues")
	outputDir := flag.String("output", "output", "output directory for the bug dataset")
	flag.Parse()

	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	projects, errs := config.LoadProjects(*projectsPath)
	for _, err := range errs {
		logger.Warn("project list entry rejected", zap.Error(err))
	}

	layout := mining.Layout{CacheDir: *cacheDir, OutputDir: *outputDir}
	if err := mining.Cleanup(layout, projects, logger); err != nil {
		logger.Fatal("cleanup failed", zap.Error(err))
	}
	logger.Info("cleanup complete", zap.Int("projects", len(projects)))
}

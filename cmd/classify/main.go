package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/clintrovert/bugminer/internal/classify"
	"github.com/clintrovert/bugminer/internal/config"
	"github.com/clintrovert/bugminer/internal/errlog"
	"github.com/clintrovert/bugminer/internal/mining"
	"github.com/clintrovert/bugminer/internal/report"
)

func main() {
	outputDir := flag.String("output", "output", "mining output directory to classify")
	cacheDir := flag.String("cache", "cache", "cache directory (embedding exemplar cache lives here)")
	mode := flag.String("mode", "llm", "classification strategy: llm or embedding")
	model := flag.String("model", "", "override the strategy's default model")
	parsedPath := flag.String("parsed", "", "parsed bugs JSONL path (default <output>/parsed-bugs.jsonl)")
	classifiedPath := flag.String("classified", "", "classified bugs JSONL path (default <output>/classified-bugs.jsonl)")
	errLogPath := flag.String("error-log", "error.log", "append-only error log file")
	flag.Parse()

	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	creds := config.CredentialsFromEnv()
	if creds.OpenAIKey == "" {
		logger.Fatal("classification requires OPENAI_API_KEY")
	}
	client := openai.NewClient(creds.OpenAIKey)

	errLog, err := errlog.Open(*errLogPath)
	if err != nil {
		logger.Fatal("failed to open error log", zap.Error(err))
	}
	defer errLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	layout := mining.Layout{CacheDir: *cacheDir, OutputDir: *outputDir}
	bugs, err := collectParsedBugs(layout, logger)
	if err != nil {
		logger.Fatal("failed to collect bug reports", zap.Error(err))
	}
	if len(bugs) == 0 {
		logger.Warn("nothing to classify", zap.String("output", *outputDir))
		return
	}

	if *parsedPath == "" {
		*parsedPath = filepath.Join(*outputDir, "parsed-bugs.jsonl")
	}
	if err := report.WriteJSONL(*parsedPath, bugs); err != nil {
		logger.Fatal("failed to write parsed bugs", zap.Error(err))
	}

	var strategy classify.Strategy
	switch *mode {
	case "llm":
		strategy = classify.NewChatClassifier(client, *model, logger)
	case "embedding":
		embedder := classify.NewOpenAIEmbedder(client, *model)
		c := classify.NewEmbeddingClassifier(embedder,
			filepath.Join(*cacheDir, "label-embeddings.json"), logger)
		if err := c.Prepare(ctx); err != nil {
			logger.Fatal("failed to prepare label embeddings", zap.Error(err))
		}
		strategy = c
	default:
		logger.Fatal("unknown classification mode", zap.String("mode", *mode))
	}

	results := classify.NewRunner(strategy, errLog, logger).ClassifyAll(ctx, bugs)

	if *classifiedPath == "" {
		*classifiedPath = filepath.Join(*outputDir, "classified-bugs.jsonl")
	}
	if err := classify.WriteClassifications(*classifiedPath, results); err != nil {
		logger.Fatal("failed to write classifications", zap.Error(err))
	}
	logger.Info("classification written",
		zap.String("path", *classifiedPath),
		zap.Int("bugs", len(results)),
	)
}

// collectParsedBugs normalizes every mined bug report under the output
// directory, ordered by project then bug id. Bugs whose report is missing or
// unreadable are skipped with a warning.
func collectParsedBugs(layout mining.Layout, logger *zap.Logger) ([]report.ParsedBug, error) {
	entries, err := os.ReadDir(layout.OutputDir)
	if err != nil {
		return nil, err
	}

	var projectIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			projectIDs = append(projectIDs, entry.Name())
		}
	}
	sort.Strings(projectIDs)

	var bugs []report.ParsedBug
	for _, projectID := range projectIDs {
		records, err := mining.ReadBugRecords(layout.CSVPath(projectID))
		if err != nil {
			// Not every directory under output is a finished project.
			continue
		}
		for _, rec := range records {
			if rec.ReportPath == "" {
				logger.Warn("bug has no report, skipping",
					zap.String("project_id", projectID),
					zap.Int("bug_id", rec.BugID),
				)
				continue
			}
			issue, err := report.Load(filepath.Join(layout.ProjectOutputDir(projectID), rec.ReportPath))
			if err != nil {
				logger.Warn("unreadable report, skipping",
					zap.String("project_id", projectID),
					zap.Int("bug_id", rec.BugID),
					zap.Error(err),
				)
				continue
			}
			bugs = append(bugs, report.Normalize(projectID, rec.BugID, issue))
		}
	}
	return bugs, nil
}

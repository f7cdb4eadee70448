package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/clintrovert/bugminer/internal/config"
	"github.com/clintrovert/bugminer/internal/errlog"
	"github.com/clintrovert/bugminer/internal/mining"
	"github.com/clintrovert/bugminer/internal/tracker"
	"github.com/clintrovert/bugminer/internal/xref"
)

func main() {
	projectsPath := flag.String("projects", "projects.txt", "tab-separated project list file")
	cacheDir := flag.String("cache", "cache", "cache directory for mirrors and issues")
	outputDir := flag.String("output", "output", "output directory for the bug dataset")
	errLogPath := flag.String("error-log", "error.log", "append-only error log file")
	summaryPath := flag.String("summary", "", "optional Markdown summary file written after mining")
	useLLM := flag.Bool("llm", false, "verify fix commits with an LLM judge")
	llmModel := flag.String("llm-model", "", "judge model (default "+xref.DefaultJudgeModel+")")
	flag.Parse()

	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	creds := config.CredentialsFromEnv()

	projects, errs := config.LoadProjects(*projectsPath)
	for _, err := range errs {
		logger.Warn("project list entry rejected", zap.Error(err))
	}
	if len(projects) == 0 {
		logger.Fatal("no usable projects", zap.String("path", *projectsPath))
	}

	errLog, err := errlog.Open(*errLogPath)
	if err != nil {
		logger.Fatal("failed to open error log", zap.Error(err))
	}
	defer errLog.Close()

	var judge xref.Judge
	if *useLLM {
		if creds.OpenAIKey == "" {
			logger.Fatal("llm judging requested but OPENAI_API_KEY is not set")
		}
		judge = xref.NewLLMJudge(openai.NewClient(creds.OpenAIKey), *llmModel, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	layout := mining.Layout{CacheDir: *cacheDir, OutputDir: *outputDir}
	pipeline := mining.NewPipeline(layout, tracker.New, judge, creds.GitHubToken, errLog, logger)

	failed := pipeline.Run(ctx, projects)
	logger.Info("mining finished",
		zap.Int("projects", len(projects)),
		zap.Int("failed", failed),
	)

	if *summaryPath != "" {
		if err := mining.WriteSummary(layout, *summaryPath); err != nil {
			logger.Error("failed to write summary", zap.Error(err))
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"herald/internal/approval"
	heraldconfig "herald/internal/config"
	"herald/internal/pipeline"
	"herald/internal/publish"
	"herald/internal/source"
	"herald/internal/stage"
	"herald/internal/store"
	"herald/pkg/cache"
	"herald/pkg/config"
	"herald/pkg/database"
	"herald/pkg/llm"
	"herald/pkg/logging"
	"herald/pkg/monitoring"
	"herald/pkg/server"
	"herald/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("herald")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Herald (news pipeline)")

	cfg := heraldconfig.LoadConfig()

	// Connect to database
	db := database.MustConnect(cfg.DatabaseURL, logger)
	defer func() { _ = db.Close() }()

	articles := store.New(db)

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("herald", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("herald", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":       cfg.DatabaseURL,
		"TELEGRAM_BOT_TOKEN": cfg.TelegramBotToken,
		"ADMIN_CHANNEL_ID":   cfg.AdminChannel,
		"OPENROUTER_API_KEY": cfg.OpenRouterAPIKey,
	}))

	cycles, articleCounts, stageDuration := metricsCollector.CreatePipelineMetrics()
	decisions, publishFailures := metricsCollector.CreateDecisionMetrics()
	llmRequests := metricsCollector.NewCounter("llm_requests_total", "Completion calls by model and status", []string{"model", "status"})

	// Completions client shared by every pipeline stage
	gen := llm.NewClient(llm.Config{
		APIKey: cfg.OpenRouterAPIKey,
		APIURL: cfg.OpenRouterAPIURL,
		Title:  "Herald",
		OnResult: func(model, status string) {
			llmRequests.WithLabelValues(model, status).Inc()
		},
	})

	// Telegram bot shared by publisher, notifier and callback listener
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Telegram bot")
	}
	logger.WithField("bot", bot.Self.UserName).Info("Telegram bot authorized")

	publisher := publish.NewPublisher(bot, cfg.AdminChannel, cfg.PrimaryChannel, cfg.SecondaryChannel, logger)
	notifier := publish.NewNotifier(bot, cfg.AdminChannel, logger)

	// Pending posts awaiting a reviewer decision; the store stays
	// authoritative, the cache just skips a round-trip.
	pendingPosts := cache.New(cache.Options{TTL: 72 * time.Hour}, cache.MetricsHooks{})
	recentPosts := cache.New(cache.Options{TTL: cfg.RecentCacheTTL}, cache.MetricsHooks{})

	stages := []stage.Stage{
		stage.NewSummarize(gen, cfg.SummarizeModel, logger),
		stage.NewRelevance(gen, cfg.RelevanceModel, logger),
		stage.NewDuplicateFilter(articles, gen, cfg.DedupModel, cfg.DedupWindowDays, recentPosts, logger),
		stage.NewCompose(gen, cfg.ComposeModel, logger),
		stage.NewSanitize(cfg.PrimarySignature),
		stage.NewSelectCreative(stage.NewImageFinder(cfg.ImageFinderURL, nil), logger),
	}

	var sources []source.Source
	for _, feed := range cfg.Feeds {
		sources = append(sources, source.NewRSSSource(feed.Name, feed.URL, articles, nil, cfg.MaxItemsPerSource, logger))
	}
	for _, site := range cfg.Sites {
		sources = append(sources, source.NewWebSource(site.Name, site.URL, site.LinkSelector, articles, nil, cfg.MaxItemsPerSource, logger))
	}
	if len(sources) == 0 {
		logger.Warn("No sources configured; pipeline cycles will be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Detached work must outlive the run context so in-flight secondary
	// posts can finish during the drain window; Shutdown cancels the
	// group itself once the window closes.
	tasks := pipeline.NewTaskGroup(context.Background(), logger)
	translator := pipeline.NewTranslator(gen, cfg.TranslateModel, cfg.ReviewModel, publisher, notifier,
		cfg.PrimarySignature, cfg.SecondarySignature, logger)

	gate := approval.NewGate(articles, pendingPosts, publisher, translator, tasks, notifier, logger,
		decisions, publishFailures)

	orchestrator := pipeline.NewOrchestrator(sources, stages, articles, gate, publisher, notifier, logger,
		pipeline.Metrics{Cycles: cycles, Articles: articleCounts, StageDuration: stageDuration},
		cfg.PollInterval)

	listener := publish.NewListener(bot, gate, logger)

	go orchestrator.Start(ctx)
	go listener.Run(ctx)

	// Setup HTTP server with health and metrics endpoints
	router := server.SetupServiceRouter(logger, "herald", healthChecker, metricsCollector)

	srvConfig := server.DefaultConfig("herald", cfg.Port)
	if err := server.Start(srvConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server error")
	}

	// Stop the loop and drain detached translations before exit
	cancel()
	tasks.Shutdown(30 * time.Second)
}

package main

import (
	"context"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xaenox/calbot/internal/agent"
	"github.com/xaenox/calbot/internal/bot"
	"github.com/xaenox/calbot/internal/calendar"
	"github.com/xaenox/calbot/internal/geo"
	"github.com/xaenox/calbot/internal/llm"
	"github.com/xaenox/calbot/internal/memory"
	"github.com/xaenox/calbot/internal/metrics"
	"github.com/xaenox/calbot/internal/travel"
	"github.com/xaenox/calbot/internal/weather"
	"github.com/xaenox/calbot/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Pick up .env in development; the file is optional.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	ctx := context.Background()

	var m *metrics.Metrics
	if cfg.Metrics.Addr != "" {
		m = metrics.New()
		m.Serve(cfg.Metrics.Addr, logger)
	}

	var llmClient llm.Client = llm.NewOpenAIClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}, logger)
	llmClient = llm.WrapWithUserRateLimit(llmClient, rate.Limit(cfg.LLM.UserRate), cfg.LLM.UserBurst)

	source, err := calendar.FileTokenSource(ctx, cfg.Calendar.CredentialsFile, cfg.Calendar.TokenFile)
	if err != nil {
		logger.Fatal("Failed to load calendar credentials", zap.Error(err))
	}
	cal := calendar.NewService(calendar.Config{CalendarID: cfg.Calendar.CalendarID}, source, logger)

	// Refresh once at startup so the first message already has a location
	// and timezone to work with.
	location := geo.NewState(geo.Config{
		Static:          cfg.Location.Static,
		DefaultTimezone: cfg.Location.DefaultTimezone,
	}, logger)
	location.Refresh(ctx)

	// Weather and travel are optional: leave the interfaces nil when the
	// keys are absent so the agent skips those sections instead of calling
	// a client that can only fail.
	var weatherClient agent.Weather
	if cfg.Weather.APIKey != "" {
		weatherClient = weather.NewClient(weather.Config{APIKey: cfg.Weather.APIKey}, logger)
	}
	var travelClient agent.Travel
	if cfg.Maps.APIKey != "" {
		travelClient = travel.NewClient(travel.Config{APIKey: cfg.Maps.APIKey}, logger)
	}

	store := memory.NewStore(cfg.Memory.Limit)

	router := agent.New(agent.Deps{
		LLM:      llmClient,
		Calendar: cal,
		Memory:   store,
		Location: location,
		Weather:  weatherClient,
		Travel:   travelClient,
		Metrics:  m,
		Logger:   logger,
	})

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, router, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}

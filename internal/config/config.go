package config

import (
	"fmt"
	"strings"
	"time"

	"herald/pkg/config"
)

// Feed is one RSS/Atom source.
type Feed struct {
	Name string
	URL  string
}

// Site is one listing-page source scraped with a CSS link selector.
type Site struct {
	Name         string
	URL          string
	LinkSelector string
}

// Config stores environment configuration for Herald.
type Config struct {
	Port        string
	DatabaseURL string

	TelegramBotToken string
	AdminChannel     string
	PrimaryChannel   string
	SecondaryChannel string

	OpenRouterAPIKey string
	OpenRouterAPIURL string
	SummarizeModel   string
	RelevanceModel   string
	DedupModel       string
	ComposeModel     string
	TranslateModel   string
	ReviewModel      string

	ImageFinderURL string

	Feeds []Feed
	Sites []Site

	PollInterval      time.Duration
	MaxItemsPerSource int
	DedupWindowDays   int
	RecentCacheTTL    time.Duration

	ChannelTitle       string
	PrimarySignature   string
	SecondarySignature string
}

// LoadConfig loads the Herald configuration from environment variables.
func LoadConfig() Config {
	cfg := Config{
		Port:        config.GetEnv("PORT", "18080"),
		DatabaseURL: config.RequireEnv("DATABASE_URL"),

		TelegramBotToken: config.RequireEnv("TELEGRAM_BOT_TOKEN"),
		AdminChannel:     config.RequireEnv("ADMIN_CHANNEL_ID"),
		PrimaryChannel:   config.GetEnv("MAIN_CHANNEL_ID", "@herald_daily"),
		SecondaryChannel: config.GetEnv("RU_CHANNEL_ID", "@herald_daily_ru"),

		OpenRouterAPIKey: config.RequireEnv("OPENROUTER_API_KEY"),
		OpenRouterAPIURL: config.GetEnv("OPENROUTER_API_URL", "https://openrouter.ai/api/v1"),
		SummarizeModel:   config.GetEnv("SUMMARIZE_MODEL", "google/gemini-2.5-flash"),
		RelevanceModel:   config.GetEnv("RELEVANCE_MODEL", "openai/gpt-4.1-mini"),
		DedupModel:       config.GetEnv("DEDUP_MODEL", "google/gemini-2.5-flash"),
		ComposeModel:     config.GetEnv("COMPOSE_MODEL", "anthropic/claude-sonnet-4.5"),
		TranslateModel:   config.GetEnv("TRANSLATE_MODEL", "anthropic/claude-sonnet-4.5"),
		ReviewModel:      config.GetEnv("REVIEW_MODEL", "anthropic/claude-sonnet-4.5"),

		ImageFinderURL: config.GetEnv("IMAGE_FINDER_URL", ""),

		Feeds: ParseFeeds(config.GetEnv("RSS_FEEDS", defaultFeeds)),
		Sites: ParseSites(config.GetEnv("WEB_SOURCES", "")),

		PollInterval:      config.GetEnvDuration("POLL_INTERVAL", 10*time.Minute),
		MaxItemsPerSource: config.GetEnvInt("MAX_ITEMS_PER_SOURCE", 5),
		DedupWindowDays:   config.GetEnvInt("DEDUP_WINDOW_DAYS", 3),
		RecentCacheTTL:    config.GetEnvDuration("RECENT_CACHE_TTL", 5*time.Minute),

		ChannelTitle: config.GetEnv("CHANNEL_TITLE", "Herald Daily"),
	}

	cfg.PrimarySignature = config.GetEnv("PRIMARY_SIGNATURE", ChannelSignature(cfg.PrimaryChannel, cfg.ChannelTitle))
	cfg.SecondarySignature = config.GetEnv("SECONDARY_SIGNATURE", ChannelSignature(cfg.SecondaryChannel, cfg.ChannelTitle))
	return cfg
}

const defaultFeeds = "marktechpost|https://www.marktechpost.com/feed/," +
	"techcrunch|https://techcrunch.com/category/artificial-intelligence/feed/," +
	"theverge|https://www.theverge.com/rss/ai-artificial-intelligence/index.xml"

// ParseFeeds reads a comma-separated list of "name|url" entries.
// Malformed entries are dropped.
func ParseFeeds(raw string) []Feed {
	var feeds []Feed
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(entry), "|")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		feeds = append(feeds, Feed{Name: parts[0], URL: parts[1]})
	}
	return feeds
}

// ParseSites reads a comma-separated list of "name|url|selector"
// entries, e.g. "lab-blog|https://lab.test/news|article h2 a".
func ParseSites(raw string) []Site {
	var sites []Site
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(entry), "|")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			continue
		}
		sites = append(sites, Site{Name: parts[0], URL: parts[1], LinkSelector: parts[2]})
	}
	return sites
}

// ChannelSignature builds the default post footer for a channel. Only
// username channels get a link; numeric chat IDs have no public URL.
func ChannelSignature(channel, title string) string {
	username := strings.TrimPrefix(channel, "@")
	if username == "" || strings.HasPrefix(username, "-") {
		return ""
	}
	return fmt.Sprintf("\n\n<a href=\"https://t.me/%s\"><b>%s</b></a>", username, title)
}

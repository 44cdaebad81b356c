package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mikelady/commitcast/internal/bot"
	"github.com/mikelady/commitcast/internal/clients"
	"github.com/mikelady/commitcast/internal/config"
	"github.com/mikelady/commitcast/internal/jobs"
	"github.com/mikelady/commitcast/internal/orchestrator"
	"github.com/mikelady/commitcast/internal/services"
	"github.com/mikelady/commitcast/internal/session"
)

// newLogger builds the process logger from log.level and log.format
func newLogger(cfg *config.Config, out io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("%w: log.level %q", config.ErrInvalidConfig, cfg.Log.Level)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Log.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// usesGitLab reports whether any GitLab adapter is needed
func usesGitLab(cfg *config.Config) bool {
	if cfg.GitLab.Token != "" {
		return true
	}
	for _, repo := range cfg.Repos {
		if strings.HasPrefix(repo, services.GitLabPrefix) {
			return true
		}
	}
	return false
}

// buildCommitSource wires the GitHub adapter and, when configured, GitLab
func buildCommitSource(cfg *config.Config, logger zerolog.Logger) (*services.CommitSource, error) {
	github := clients.NewGitHubClient(cfg.GitHub.Token, cfg.GitHub.BaseURL)
	if !usesGitLab(cfg) {
		return services.NewCommitSource(github, nil, logger), nil
	}

	gitlab, err := clients.NewGitLabClient(cfg.GitLab.Token, cfg.GitLab.BaseURL)
	if err != nil {
		return nil, err
	}
	return services.NewCommitSource(github, gitlab, logger), nil
}

// buildChatClient picks the generative backend named by ai.provider
func buildChatClient(ctx context.Context, cfg *config.Config) (services.ChatClient, error) {
	if cfg.AI.Provider == "openai" {
		return clients.NewOpenAIClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model), nil
	}
	return clients.NewLangChainClient(ctx, clients.LangChainOptions{
		Provider:    cfg.AI.Provider,
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
	})
}

// buildSocialClient picks the publishing platform named by publish.platform
func buildSocialClient(cfg *config.Config) (services.SocialClient, error) {
	switch cfg.Publish.Platform {
	case services.PlatformTwitter:
		return clients.NewTwitterClient(cfg.Twitter.AccessToken, cfg.Twitter.BaseURL), nil
	case services.PlatformBluesky:
		return clients.NewBlueskyClient(cfg.Bluesky.Handle, cfg.Bluesky.AppPassword, cfg.Bluesky.PDSURL), nil
	default:
		return nil, fmt.Errorf("%w: unknown publish.platform %q", config.ErrInvalidConfig, cfg.Publish.Platform)
	}
}

// app is the fully wired pipeline
type app struct {
	source   *services.CommitSource
	store    *session.Store
	commands *bot.Commands
	watcher  *jobs.CommitWatcher
}

func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	source, err := buildCommitSource(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create commit source: %w", err)
	}

	chat, err := buildChatClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}

	social, err := buildSocialClient(cfg)
	if err != nil {
		return nil, err
	}

	summarizer := services.NewSummarizer(chat)
	composer := services.NewComposer(chat, cfg.Post.CharLimit, logger)
	orch := orchestrator.NewOrchestrator(summarizer, composer, cfg.Post.DefaultProject, logger)
	publisher := services.NewPublisher(social, cfg.Post.CharLimit)

	store := session.NewStore()
	commands := bot.NewCommands(store, source, orch, publisher, bot.Config{
		Repos:             cfg.Repos,
		ListCount:         cfg.Poll.CommitCount,
		CharLimit:         cfg.Post.CharLimit,
		MaxSummaryDisplay: cfg.Display.MaxSummaryLength,
	}, logger)

	a := &app{source: source, store: store, commands: commands}

	if cfg.Poll.Enabled {
		var notifier services.Notifier
		if len(cfg.Discord.Webhooks) > 0 {
			notifier = clients.NewDiscordWebhook(cfg.Discord.Webhooks)
		}
		a.watcher = jobs.NewCommitWatcher(store, source, orch, notifier, jobs.CommitWatcherConfig{
			Repos:             cfg.Repos,
			ChannelID:         cfg.Discord.ChannelID,
			Interval:          cfg.PollInterval(),
			WatchCount:        cfg.Poll.WatchCount,
			CharLimit:         cfg.Post.CharLimit,
			MaxSummaryDisplay: cfg.Display.MaxSummaryLength,
		}, logger)
	}

	return a, nil
}

// loadConfig reads the configuration and the logger it describes
func loadConfig(ctx context.Context, path string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(ctx, path)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mtgprep/mtgprep/internal/brief"
	"github.com/mtgprep/mtgprep/internal/collector"
	"github.com/mtgprep/mtgprep/internal/config"
	"github.com/mtgprep/mtgprep/internal/fetch"
	"github.com/mtgprep/mtgprep/internal/httpkit"
	"github.com/mtgprep/mtgprep/internal/hubspot"
	"github.com/mtgprep/mtgprep/internal/llm"
	"github.com/mtgprep/mtgprep/internal/reasoning"
	"github.com/mtgprep/mtgprep/internal/research"
	"github.com/mtgprep/mtgprep/internal/search"
	"github.com/mtgprep/mtgprep/internal/slack"
	"github.com/mtgprep/mtgprep/internal/tools"
	"github.com/mtgprep/mtgprep/internal/usage"
)

// app holds the constructed pipeline and whatever must be closed.
type app struct {
	service *brief.Service
	llm     llm.Client
	usage   *usage.Store // nil when no usage log was opened
}

// Close releases the usage store.
func (a *app) Close() error {
	if a.usage == nil {
		return nil
	}
	return a.usage.Close()
}

// newApp wires every component from cfg. An empty usagePath skips the
// usage log.
func newApp(ctx context.Context, cfg *config.Config, usagePath string, logger *slog.Logger) (*app, error) {
	slackClient := slack.NewClient(cfg.Slack.BaseURL, cfg.Slack.Token, nil, logger)
	coll := collector.New(slackClient, collector.Config{
		MaxPages:     cfg.Collector.MaxPages,
		MaxThreads:   cfg.Collector.MaxThreads,
		NameCacheTTL: cfg.Collector.NameCacheTTL(),
	}, logger)

	crm := hubspot.NewResolver(hubspot.NewClient(cfg.HubSpot.BaseURL, cfg.HubSpot.Token, nil, logger), logger)

	searchMgr := search.NewManager(cfg.Search.Default)
	if cfg.Search.Brave.Configured() {
		searchMgr.Register(search.NewBrave(cfg.Search.Brave.APIKey, cfg.Search.Brave.BaseURL, nil, logger))
	}
	if cfg.Search.SearXNG.Configured() {
		searchMgr.Register(search.NewSearXNG(cfg.Search.SearXNG.URL))
	}
	if !searchMgr.Configured() {
		logger.Warn("no search provider configured; web research will be empty")
	}
	fetcher := fetch.New(nil)
	aggregator := research.New(searchMgr, fetcher, logger)

	client, err := createLLMClient(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var registry *tools.Registry
	if cfg.Reasoning.Tools {
		registry = tools.NewRegistry()
		registry.RegisterSearch(searchMgr)
		registry.RegisterFetch(fetcher)
		registry.RegisterCRM(crm)
		logger.Info("model tools enabled", "tools", registry.Names())
	}

	gen := reasoning.New(client, registry, reasoning.Config{
		Model:           cfg.Reasoning.Model,
		FallbackModel:   cfg.Reasoning.FallbackModel,
		MaxOutputTokens: cfg.Reasoning.MaxOutputTokens,
		MaxToolTurns:    cfg.Reasoning.MaxToolTurns,
		Timeout:         cfg.Reasoning.Timeout(),
	}, logger)

	a := &app{llm: client}
	deps := brief.Deps{
		Collector: coll,
		CRM:       crm,
		Research:  aggregator,
		Generator: gen,
	}
	if usagePath != "" {
		store, err := usage.NewStore(usagePath)
		if err != nil {
			return nil, fmt.Errorf("open usage log: %w", err)
		}
		a.usage = store
		deps.Usage = store
		logger.Info("usage log opened", "path", usagePath)
	}

	a.service = brief.New(deps, brief.Config{
		LookbackDays:    cfg.Collector.LookbackDays,
		MaxMessages:     cfg.Collector.MaxMessages,
		CollectTimeout:  cfg.Collector.Timeout(),
		ChannelPrefixes: cfg.Slack.ChannelPrefixes,
		Effort:          cfg.Reasoning.Effort,
		Options: reasoning.Options{
			Structured: cfg.Reasoning.StructuredOutput,
			Critique:   cfg.Reasoning.Critique,
			Tools:      cfg.Reasoning.Tools,
		},
	}, logger)
	return a, nil
}

// providerFor picks the provider that serves model: claude-* models go
// to Anthropic, gemini-* to Gemini, models listed under ollama.models to
// Ollama, and everything else to OpenAI.
func providerFor(cfg *config.Config, model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "claude"):
		return "anthropic"
	case strings.HasPrefix(m, "gemini"):
		return "gemini"
	case slices.Contains(cfg.Ollama.Models, model):
		return "ollama"
	default:
		return "openai"
	}
}

// providerKey names the config key that enables each provider.
var providerKey = map[string]string{
	"openai":    "openai.api_key",
	"anthropic": "anthropic.api_key",
	"ollama":    "ollama.url",
	"gemini":    "gemini.api_key",
}

// createLLMClient builds a multi-provider client. The provider of the
// primary model is the fallback for unmapped names and must be
// configured.
func createLLMClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llm.Client, error) {
	providers := map[string]llm.Client{}
	if cfg.OpenAI.Configured() {
		providers["openai"] = llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, logger)
	}
	if cfg.Anthropic.Configured() {
		providers["anthropic"] = llm.NewAnthropicClient(cfg.Anthropic.APIKey, logger)
		logger.Info("Anthropic provider configured")
	}
	if cfg.Ollama.Configured() {
		providers["ollama"] = llm.NewOllamaClient(cfg.Ollama.URL, logger)
		logger.Info("Ollama provider configured", "url", cfg.Ollama.URL)
	}
	if cfg.Gemini.Configured() {
		gemini, err := llm.NewGeminiClient(ctx, cfg.Gemini.APIKey, "",
			httpkit.NewClient(httpkit.WithTimeout(0), httpkit.WithLogger(logger)), logger)
		if err != nil {
			return nil, err
		}
		providers["gemini"] = gemini
		logger.Info("Gemini provider configured")
	}

	primary := providerFor(cfg, cfg.Reasoning.Model)
	fallback, ok := providers[primary]
	if !ok {
		return nil, config.MissingError(providerKey[primary])
	}

	multi := llm.NewMultiClient(fallback)
	for name, c := range providers {
		multi.AddProvider(name, c)
	}
	for _, model := range []string{cfg.Reasoning.Model, cfg.Reasoning.FallbackModel} {
		if model != "" {
			multi.AddModel(model, providerFor(cfg, model))
		}
	}
	for _, model := range cfg.Ollama.Models {
		multi.AddModel(model, "ollama")
	}
	if fb := cfg.Reasoning.FallbackModel; fb != "" && !multi.HasModel(fb) {
		logger.Warn("fallback model has no configured provider", "model", fb, "provider", providerFor(cfg, fb))
	}

	logger.Info("LLM client initialized", "model", cfg.Reasoning.Model, "provider", primary)
	return multi, nil
}

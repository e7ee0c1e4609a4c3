package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mtgprep/mtgprep/internal/config"
)

func TestRun_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"-h"}, {"--help"}} {
		var stdout bytes.Buffer
		if err := run(context.Background(), &stdout, &stdout, args); err != nil {
			t.Fatalf("run(%v): %v", args, err)
		}
		if !strings.Contains(stdout.String(), "Usage: mtgprep") {
			t.Errorf("run(%v) output missing usage:\n%s", args, stdout.String())
		}
	}
}

func TestRun_Version(t *testing.T) {
	var stdout bytes.Buffer
	if err := run(context.Background(), &stdout, &stdout, []string{"version"}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout.String(), "mtgprep ") {
		t.Errorf("version output = %q", stdout.String())
	}

	stdout.Reset()
	if err := run(context.Background(), &stdout, &stdout, []string{"-o", "json", "version"}); err != nil {
		t.Fatal(err)
	}
	var info map[string]string
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		t.Fatalf("json version output: %v", err)
	}
	if info["version"] == "" {
		t.Errorf("version missing from %v", info)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"frobnicate"}, "unknown command"},
		{"unknown flag", []string{"-x"}, "unknown flag"},
		{"bad output", []string{"-o", "yaml", "version"}, "unknown output format"},
		{"brief without channel", []string{"brief"}, "usage: mtgprep brief"},
		{"research without company", []string{"research"}, "usage: mtgprep research"},
		{"missing config", []string{"-config", "/nonexistent/config.yaml", "channels"}, "config file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), &out, &out, tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("run(%v) error = %v, want containing %q", tt.args, err, tt.want)
			}
		})
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("reasoning:\n  effort: extreme\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := loadConfig(path); err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("loadConfig error = %v, want invalid config", err)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen:\n  port: 8088\nreasoning:\n  model: claude-sonnet-4\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, got, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != path || cfg.Listen.Port != 8088 || cfg.Reasoning.Model != "claude-sonnet-4" {
		t.Errorf("loaded %s: port=%d model=%q", got, cfg.Listen.Port, cfg.Reasoning.Model)
	}
}

func TestProviderFor(t *testing.T) {
	cfg := config.Default()
	cfg.Ollama.Models = []string{"llama3.1:8b"}

	tests := map[string]string{
		"o3":              "openai",
		"gpt-4.1":         "openai",
		"claude-sonnet-4": "anthropic",
		"Claude-Opus":     "anthropic",
		"gemini-2.5-pro":  "gemini",
		"llama3.1:8b":     "ollama",
		"llama3.1:70b":    "openai",
	}
	for model, want := range tests {
		if got := providerFor(cfg, model); got != want {
			t.Errorf("providerFor(%q) = %q, want %q", model, got, want)
		}
	}
}

func TestCreateLLMClient(t *testing.T) {
	logger := newLogger(&bytes.Buffer{}, 0, "text")

	cfg := config.Default()
	_, err := createLLMClient(context.Background(), cfg, logger)
	if !errors.Is(err, config.ErrNotConfigured) || !strings.Contains(err.Error(), "openai.api_key") {
		t.Errorf("openai model without key: error = %v, want openai.api_key not configured", err)
	}

	cfg.OpenAI.APIKey = "sk-test"
	if _, err := createLLMClient(context.Background(), cfg, logger); err != nil {
		t.Fatalf("openai default: %v", err)
	}

	cfg.Reasoning.Model = "claude-sonnet-4"
	_, err = createLLMClient(context.Background(), cfg, logger)
	if !errors.Is(err, config.ErrNotConfigured) {
		t.Errorf("anthropic model without key: error = %v, want ErrNotConfigured", err)
	}

	cfg.Anthropic.APIKey = "sk-ant-test"
	if _, err := createLLMClient(context.Background(), cfg, logger); err != nil {
		t.Errorf("anthropic model with key: %v", err)
	}
}

func TestNewApp_OpensUsageLog(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAI.APIKey = "sk-test"
	path := filepath.Join(t.TempDir(), "usage.db")

	a, err := newApp(context.Background(), cfg, path, newLogger(&bytes.Buffer{}, 0, "text"))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if a.usage == nil || a.service == nil {
		t.Fatalf("app = %+v", a)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("usage db not created: %v", err)
	}
}

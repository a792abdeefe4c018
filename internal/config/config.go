package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProviderConfig describes one LLM completion provider.
type ProviderConfig struct {
	URL         string
	Models      []string
	KeyRequired bool
	APIKey      string
}

// KeyConfigured reports whether a global credential is present for the provider.
func (p ProviderConfig) KeyConfigured() bool { return strings.TrimSpace(p.APIKey) != "" }

type Config struct {
	Port          string
	AllowedOrigin string
	LogMode       string

	// Session store backing: "memory", "redis" or "postgres".
	StoreBackend string
	RedisURL     string
	DatabaseURL  string

	// Max retained conversation turns; the message log caps at twice this.
	MaxHistoryTurns int

	// Single suspension point of the pipeline.
	LLMTimeout time.Duration

	CrisisHotline string

	PromptFile     string
	HTMLLineBreaks bool

	JobWorkers   int
	JobRetention time.Duration

	Providers       map[string]ProviderConfig
	DefaultProvider string
	DefaultModel    string

	SummaryProvider string
	SummaryModel    string
	SummaryPrompt   string
}

const defaultHotline = `- 希望24热线：400-161-9995
- 北京心理危机研究与干预中心：010-82951332
- 上海市精神卫生中心: 021-12320-5`

const defaultSummaryPrompt = "请根据对话记录，生成一段简洁的总结报告，包含用户议题、情绪状态、关键点和后续建议。\n对话记录如下：\n{conversation_history}"

func Load() Config {
	_ = godotenv.Load()

	localKey := os.Getenv("LOCAL_API_KEY")
	providers := map[string]ProviderConfig{
		"local": {
			URL:         getEnvDefault("LOCAL_API_URL", "http://localhost:11434/api/chat"),
			Models:      getEnvListDefault("LOCAL_MODELS", []string{"qwen2:latest", "llama3"}),
			KeyRequired: localKey != "",
			APIKey:      localKey,
		},
		"deepseek": {
			URL:         getEnvDefault("DEEPSEEK_API_URL", "https://api.deepseek.com/v1"),
			Models:      getEnvListDefault("DEEPSEEK_MODELS", []string{"deepseek-chat", "deepseek-coder"}),
			KeyRequired: true,
			APIKey:      os.Getenv("DEEPSEEK_API_KEY"),
		},
	}

	cfg := Config{
		Port:            getEnvDefault("PORT", "8080"),
		AllowedOrigin:   getEnvDefault("ALLOWED_ORIGIN", "*"),
		LogMode:         getEnvDefault("LOG_MODE", "dev"),
		StoreBackend:    getEnvDefault("STORE_BACKEND", "memory"),
		RedisURL:        getEnvDefault("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:     os.Getenv("DB_URL"),
		MaxHistoryTurns: getEnvIntDefault("MAX_HISTORY_TURNS", 10),
		LLMTimeout:      time.Duration(getEnvIntDefault("LLM_TIMEOUT_SECONDS", 120)) * time.Second,
		CrisisHotline:   getEnvDefault("CRISIS_HOTLINE_INFO", defaultHotline),
		PromptFile:      getEnvDefault("PROMPT_FILE", "prompts/counselor.yaml"),
		HTMLLineBreaks:  getEnvBoolDefault("HTML_LINE_BREAKS", true),
		JobWorkers:      getEnvIntDefault("JOB_WORKERS", 4),
		JobRetention:    time.Duration(getEnvIntDefault("JOB_RETENTION_SECONDS", 3600)) * time.Second,
		Providers:       providers,
		SummaryPrompt:   getEnvDefault("SUMMARY_PROMPT", defaultSummaryPrompt),
	}

	cfg.DefaultProvider, cfg.DefaultModel = pickDefaultProvider(providers)
	cfg.SummaryProvider, cfg.SummaryModel = pickSummaryProvider(cfg)
	return cfg
}

// pickDefaultProvider prefers the local endpoint, then any provider with models.
func pickDefaultProvider(providers map[string]ProviderConfig) (string, string) {
	if p, ok := providers["local"]; ok && len(p.Models) > 0 {
		return "local", p.Models[0]
	}
	for _, name := range sortedProviderNames(providers) {
		if p := providers[name]; len(p.Models) > 0 {
			return name, p.Models[0]
		}
	}
	return "", ""
}

// pickSummaryProvider prefers deepseek-chat when a key is configured,
// otherwise falls back to the default provider.
func pickSummaryProvider(cfg Config) (string, string) {
	if ds, ok := cfg.Providers["deepseek"]; ok && ds.KeyConfigured() {
		for _, m := range ds.Models {
			if m == "deepseek-chat" {
				return "deepseek", m
			}
		}
	}
	return cfg.DefaultProvider, cfg.DefaultModel
}

func sortedProviderNames(providers map[string]ProviderConfig) []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[j] < names[i] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	return names
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvListDefault(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			s := strings.TrimSpace(p)
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Provider names the upstream text-generation backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderArk    Provider = "ark"
)

// Sampling defaults shared by every backend.
const (
	DefaultTemperature = 0.9
	DefaultTopP        = 0.8
	DefaultTopK        = 40
	DefaultMaxTokens   = 2048

	defaultGeminiModel = "gemini-2.0-flash"

	DefaultSessionTTL = 24 * time.Hour
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Chat     ChatConfig
	Analysis AnalysisConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		AI:       ai,
		Chat:     chat,
		Analysis: loadAnalysisConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型及其采样参数配置。
type AIConfig struct {
	Provider     Provider
	GeminiAPIKey string
	GeminiModel  string
	// GeminiBaseURL overrides the Gemini endpoint, e.g. for a proxy.
	GeminiBaseURL string

	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string

	Temperature float64
	TopP        float64
	TopK        float64
	MaxTokens   int
	Locale      string
}

// Credential returns the credential of the selected provider, or "" when
// none is configured.
func (c AIConfig) Credential() string {
	switch c.Provider {
	case ProviderArk:
		if c.APIKey != "" {
			return c.APIKey
		}
		if c.AccessKey != "" && c.SecretKey != "" {
			return c.AccessKey
		}
		return ""
	default:
		return c.GeminiAPIKey
	}
}

// Enabled 表示所选供应商是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	if c.Credential() == "" {
		return false
	}
	if c.Provider == ProviderArk {
		return c.Model != ""
	}
	return true
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Provider != ProviderArk || !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + Model or an AK/SK pair")
	}

	temperature := float32(c.Temperature)
	topP := float32(c.TopP)
	maxTokens := c.MaxTokens

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		TopP:        &topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := Provider(strings.ToLower(getEnvOrDefault("AI_PROVIDER", string(ProviderGemini))))
	if provider != ProviderGemini && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	temperature, err := parseFloatEnvOrDefault("AI_TEMPERATURE", DefaultTemperature)
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseFloatEnvOrDefault("AI_TOP_P", DefaultTopP)
	if err != nil {
		return AIConfig{}, err
	}

	topK, err := parseFloatEnvOrDefault("AI_TOP_K", DefaultTopK)
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens := DefaultMaxTokens
	if override, err := parseOptionalIntEnv("AI_MAX_TOKENS"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		maxTokens = *override
	}

	geminiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if geminiKey == "" {
		geminiKey = strings.TrimSpace(os.Getenv("VITE_GEMINI_API_KEY"))
	}

	locale := strings.ToLower(getEnvOrDefault("PROMPT_LOCALE", "ja"))

	return AIConfig{
		Provider:      provider,
		GeminiAPIKey:  geminiKey,
		GeminiModel:   getEnvOrDefault("GEMINI_MODEL", defaultGeminiModel),
		GeminiBaseURL: strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")),
		APIKey:        strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:     strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:         strings.TrimSpace(os.Getenv("Model")),
		BaseURL:       getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:        getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:   temperature,
		TopP:          topP,
		TopK:          topK,
		MaxTokens:     maxTokens,
		Locale:        locale,
	}, nil
}

// ChatConfig controls the conversation transports and session lifetime.
// A zero SessionTTL keeps sessions until they are deleted.
type ChatConfig struct {
	RevealEnabled bool
	SessionTTL    time.Duration
}

func loadChatConfig() (ChatConfig, error) {
	reveal, err := parseBoolEnv("CHAT_REVEAL_ENABLED", true)
	if err != nil {
		return ChatConfig{}, err
	}

	ttl := DefaultSessionTTL
	if raw := strings.TrimSpace(os.Getenv("CHAT_SESSION_TTL")); raw != "" {
		ttl, err = time.ParseDuration(raw)
		if err != nil || ttl < 0 {
			return ChatConfig{}, fmt.Errorf("invalid CHAT_SESSION_TTL value %q", raw)
		}
	}
	return ChatConfig{RevealEnabled: reveal, SessionTTL: ttl}, nil
}

// AnalysisConfig locates the analysis slot store. An empty StorePath keeps
// results in memory.
type AnalysisConfig struct {
	StorePath string
}

func loadAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{StorePath: strings.TrimSpace(os.Getenv("ANALYSIS_STORE_PATH"))}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseFloatEnvOrDefault(key string, defaultValue float64) (float64, error) {
	val, err := parseOptionalFloatEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

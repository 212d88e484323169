package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where depanneo stores its own data
	DSN string
	// Driver is the database driver (sqlite)
	Driver string
	// Version is the current version of server
	Version string

	// LLM backends, in routing priority order.
	LLMOpenAIAPIKey    string // DEPANNEO_LLM_OPENAI_API_KEY
	LLMOpenAIBaseURL   string // DEPANNEO_LLM_OPENAI_BASE_URL
	LLMOpenAIModel     string // DEPANNEO_LLM_OPENAI_MODEL (default: gpt-4o-mini)
	LLMAnthropicAPIKey string // DEPANNEO_LLM_ANTHROPIC_API_KEY
	LLMAnthropicModel  string // DEPANNEO_LLM_ANTHROPIC_MODEL (default: claude-3-5-haiku-latest)

	// Dialog engine tuning.
	ConfidenceThreshold   float64       // DEPANNEO_CONFIDENCE_THRESHOLD (default: 0.70)
	ClarificationCap      int           // DEPANNEO_CLARIFICATION_CAP (default: 3)
	SessionInactivity     time.Duration // DEPANNEO_SESSION_INACTIVITY (default: 24h)
	HistoryTurns          int           // DEPANNEO_HISTORY_TURNS (default: 10)

	// Notification delivery.
	NotifyRetryBase    time.Duration // DEPANNEO_NOTIFY_RETRY_BASE (default: 30s)
	NotifyMaxRetries   int           // DEPANNEO_NOTIFY_MAX_RETRIES (default: 5)
	NotifyFallbackTopN int           // DEPANNEO_NOTIFY_FALLBACK_TOP_N (default: 3)
	ChatGatewayURL     string        // DEPANNEO_CHAT_GATEWAY_URL
	ChatGatewayToken   string        // DEPANNEO_CHAT_GATEWAY_TOKEN
	SMSGatewayURL      string        // DEPANNEO_SMS_GATEWAY_URL
	SMSGatewayToken    string        // DEPANNEO_SMS_GATEWAY_TOKEN
	SlackWebhookURL    string        // DEPANNEO_SLACK_WEBHOOK_URL (operator escalations)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// HasLLMBackend returns true if at least one language-model backend is configured.
// Without one the engine still runs, answering from the static fallback path.
func (p *Profile) HasLLMBackend() bool {
	return p.LLMOpenAIAPIKey != "" || p.LLMAnthropicAPIKey != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// FromEnv loads configuration from DEPANNEO_* environment variables.
func (p *Profile) FromEnv() {
	p.LLMOpenAIAPIKey = os.Getenv("DEPANNEO_LLM_OPENAI_API_KEY")
	p.LLMOpenAIBaseURL = getEnvOrDefault("DEPANNEO_LLM_OPENAI_BASE_URL", "https://api.openai.com/v1")
	p.LLMOpenAIModel = getEnvOrDefault("DEPANNEO_LLM_OPENAI_MODEL", "gpt-4o-mini")
	p.LLMAnthropicAPIKey = os.Getenv("DEPANNEO_LLM_ANTHROPIC_API_KEY")
	p.LLMAnthropicModel = getEnvOrDefault("DEPANNEO_LLM_ANTHROPIC_MODEL", "claude-3-5-haiku-latest")

	p.ConfidenceThreshold = getFloatEnv("DEPANNEO_CONFIDENCE_THRESHOLD", 0.70)
	p.ClarificationCap = getIntEnv("DEPANNEO_CLARIFICATION_CAP", 3)
	p.SessionInactivity = getDurationEnv("DEPANNEO_SESSION_INACTIVITY", 24*time.Hour)
	p.HistoryTurns = getIntEnv("DEPANNEO_HISTORY_TURNS", 10)

	p.NotifyRetryBase = getDurationEnv("DEPANNEO_NOTIFY_RETRY_BASE", 30*time.Second)
	p.NotifyMaxRetries = getIntEnv("DEPANNEO_NOTIFY_MAX_RETRIES", 5)
	p.NotifyFallbackTopN = getIntEnv("DEPANNEO_NOTIFY_FALLBACK_TOP_N", 3)
	p.ChatGatewayURL = os.Getenv("DEPANNEO_CHAT_GATEWAY_URL")
	p.ChatGatewayToken = os.Getenv("DEPANNEO_CHAT_GATEWAY_TOKEN")
	p.SMSGatewayURL = os.Getenv("DEPANNEO_SMS_GATEWAY_URL")
	p.SMSGatewayToken = os.Getenv("DEPANNEO_SMS_GATEWAY_TOKEN")
	p.SlackWebhookURL = os.Getenv("DEPANNEO_SLACK_WEBHOOK_URL")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver == "" {
		p.Driver = "sqlite"
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/depanneo"
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("depanneo_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if p.ConfidenceThreshold <= 0 || p.ConfidenceThreshold > 1 {
		p.ConfidenceThreshold = 0.70
	}
	if p.ClarificationCap <= 0 {
		p.ClarificationCap = 3
	}
	if p.NotifyMaxRetries <= 0 {
		p.NotifyMaxRetries = 5
	}

	return nil
}

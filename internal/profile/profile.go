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

// Profile is configuration to start the main server.
type Profile struct {
	// Reasoning backend configuration (OpenAI-compatible protocol).
	// All providers (openai, deepseek, ollama, ...) use the same config.
	ReasonProvider string // Provider identifier, informational only
	ReasonAPIKey   string // API key; empty disables the LLM backend entirely
	ReasonBaseURL  string // Base URL (optional, defaults to the OpenAI endpoint)
	ReasonModel    string // Model name
	ReasonTimeout  int    // Per-request timeout in seconds

	// Notification sink configuration.
	NotifyWebhookURL string  // Webhook endpoint for incident communications; empty logs locally
	NotifyRatePerSec float64 // Outbound notification rate limit

	// Engine tuning.
	Engine EngineConfig

	Mode        string
	Addr        string
	Port        int
	UNIXSock    string
	Data        string
	Driver      string
	DSN         string
	InstanceURL string
	Version     string
}

// EngineConfig holds orchestration tuning knobs. Defaults are applied by
// FromEnv and can be overridden with INCIDENT_* environment variables.
type EngineConfig struct {
	// Circuit breaker settings, shared by every dependency key.
	BreakerFailureThreshold int           // consecutive failures before Closed -> Open
	BreakerFailureRate      float64       // failure rate within the rolling window that also opens
	BreakerWindow           time.Duration // rolling window for the failure rate
	BreakerCooldown         time.Duration // Open -> HalfOpen delay

	// Consensus settings.
	AgreementThreshold float64 // fraction of total weight the majority action must carry
	OutlierThreshold   float64 // confidence distance from the weighted median that flags an outlier
	MaxRounds          int     // consensus rounds before escalation

	// Phase deadlines.
	DetectionTimeout     time.Duration
	FanOutTimeout        time.Duration // joint deadline for diagnosis + prediction
	ResolutionTimeout    time.Duration
	CommunicationTimeout time.Duration

	// Admission control across incidents.
	MaxConcurrentIncidents int64

	// Event store append retry budget.
	MaxAppendRetries int
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsReasoningEnabled returns true if an LLM backend is configured.
// Without it agents fall back to deterministic heuristics.
func (p *Profile) IsReasoningEnabled() bool {
	return p.ReasonAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvOrDefaultSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return time.Duration(intVal) * time.Second
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.ReasonProvider = getEnvOrDefault("INCIDENT_REASON_PROVIDER", "openai")
	p.ReasonAPIKey = getEnvOrDefault("INCIDENT_REASON_API_KEY", "")
	p.ReasonBaseURL = getEnvOrDefault("INCIDENT_REASON_BASE_URL", "")
	p.ReasonModel = getEnvOrDefault("INCIDENT_REASON_MODEL", "gpt-4o-mini")
	p.ReasonTimeout = getEnvOrDefaultInt("INCIDENT_REASON_TIMEOUT_SECONDS", 60)

	p.NotifyWebhookURL = getEnvOrDefault("INCIDENT_NOTIFY_WEBHOOK_URL", "")
	p.NotifyRatePerSec = getEnvOrDefaultFloat("INCIDENT_NOTIFY_RATE_PER_SEC", 5)

	p.Engine = EngineConfig{
		BreakerFailureThreshold: getEnvOrDefaultInt("INCIDENT_BREAKER_FAILURES", 5),
		BreakerFailureRate:      getEnvOrDefaultFloat("INCIDENT_BREAKER_FAILURE_RATE", 0.5),
		BreakerWindow:           getEnvOrDefaultSeconds("INCIDENT_BREAKER_WINDOW_SECONDS", 60*time.Second),
		BreakerCooldown:         getEnvOrDefaultSeconds("INCIDENT_BREAKER_COOLDOWN_SECONDS", 30*time.Second),
		AgreementThreshold:      getEnvOrDefaultFloat("INCIDENT_CONSENSUS_AGREEMENT", 2.0/3.0),
		OutlierThreshold:        getEnvOrDefaultFloat("INCIDENT_CONSENSUS_OUTLIER", 0.3),
		MaxRounds:               getEnvOrDefaultInt("INCIDENT_CONSENSUS_MAX_ROUNDS", 3),
		DetectionTimeout:        getEnvOrDefaultSeconds("INCIDENT_DETECTION_TIMEOUT_SECONDS", 30*time.Second),
		FanOutTimeout:           getEnvOrDefaultSeconds("INCIDENT_FANOUT_TIMEOUT_SECONDS", 45*time.Second),
		ResolutionTimeout:       getEnvOrDefaultSeconds("INCIDENT_RESOLUTION_TIMEOUT_SECONDS", 60*time.Second),
		CommunicationTimeout:    getEnvOrDefaultSeconds("INCIDENT_COMMUNICATION_TIMEOUT_SECONDS", 30*time.Second),
		MaxConcurrentIncidents:  int64(getEnvOrDefaultInt("INCIDENT_MAX_CONCURRENT", 32)),
		MaxAppendRetries:        getEnvOrDefaultInt("INCIDENT_APPEND_RETRIES", 5),
	}
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

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/incidentd"
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("incidentd_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn required for postgres driver")
	}

	if p.Engine.MaxRounds < 1 {
		p.Engine.MaxRounds = 1
	}
	if p.Engine.AgreementThreshold <= 0 || p.Engine.AgreementThreshold > 1 {
		return errors.Errorf("agreement threshold must be in (0,1], got %v", p.Engine.AgreementThreshold)
	}

	return nil
}

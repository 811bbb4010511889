package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all client settings, populated from environment variables.
type Config struct {
	APIURL     string
	APIVersion string

	CredentialType domain.CredentialType
	APIKey         string
	JWT            string
	ClientID       string
	ClientSecret   string
	TokenURL       string

	HTTPTimeout time.Duration
	RetryUnit   time.Duration
	MaxPages    int

	QueryFile  string
	OutputDir  string
	OutputName string

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	RedisAddr     string
	CheckpointKey string

	TimerCallbackMode  string
	TimerFailurePolicy string
	TimerReschedule    string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	httpTimeout, err := parsePositiveDuration("LIGHTNING_HTTP_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	retryUnit, err := parsePositiveDuration("LIGHTNING_RETRY_UNIT", "5s")
	if err != nil {
		return nil, err
	}
	maxPages, err := parseNonNegativeInt("LIGHTNING_MAX_PAGES", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIURL:         sharedcfg.EnvOrDefault("LIGHTNING_API_URL", "https://lightning.api.metraweather.com"),
		APIVersion:     sharedcfg.EnvOrDefault("LIGHTNING_API_VERSION", "v4"),
		CredentialType: domain.CredentialType(sharedcfg.EnvOrDefault("LIGHTNING_CREDENTIAL_TYPE", string(domain.CredentialAPIKey))),
		APIKey:         os.Getenv("LIGHTNING_API_KEY"),
		JWT:            os.Getenv("LIGHTNING_JWT"),
		ClientID:       os.Getenv("LIGHTNING_CLIENT_ID"),
		ClientSecret:   os.Getenv("LIGHTNING_CLIENT_SECRET"),
		TokenURL:       os.Getenv("LIGHTNING_TOKEN_URL"),

		HTTPTimeout: httpTimeout,
		RetryUnit:   retryUnit,
		MaxPages:    maxPages,

		QueryFile:  os.Getenv("QUERY_FILE"),
		OutputDir:  sharedcfg.EnvOrDefault("OUTPUT_DIR", "."),
		OutputName: sharedcfg.EnvOrDefault("OUTPUT_NAME", "{START_DATE}--{END_DATE}"),

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "lightning-strikes"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		CheckpointKey: sharedcfg.EnvOrDefault("CHECKPOINT_KEY", "lightning:stream:cursor"),

		TimerCallbackMode:  sharedcfg.EnvOrDefault("TIMER_CALLBACK_MODE", "async"),
		TimerFailurePolicy: sharedcfg.EnvOrDefault("TIMER_FAILURE_POLICY", "continue"),
		TimerReschedule:    sharedcfg.EnvOrDefault("TIMER_RESCHEDULE", "fixed-delay"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CredentialType {
	case domain.CredentialAPIKey, domain.CredentialJWT:
	case domain.CredentialClientCredentials:
		if c.ClientID == "" || c.ClientSecret == "" {
			return errors.New("LIGHTNING_CLIENT_ID and LIGHTNING_CLIENT_SECRET are required for clientCredentials")
		}
		if c.TokenURL == "" {
			return errors.New("LIGHTNING_TOKEN_URL is required for clientCredentials")
		}
	default:
		return fmt.Errorf("invalid LIGHTNING_CREDENTIAL_TYPE %q", c.CredentialType)
	}

	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	if err := oneOf("TIMER_CALLBACK_MODE", c.TimerCallbackMode, "async", "sync"); err != nil {
		return err
	}
	if err := oneOf("TIMER_FAILURE_POLICY", c.TimerFailurePolicy, "continue", "stop"); err != nil {
		return err
	}
	return oneOf("TIMER_RESCHEDULE", c.TimerReschedule, "fixed-delay", "aligned")
}

// Credentials returns the configured API credentials.
func (c *Config) Credentials() domain.Credentials {
	creds := domain.Credentials{Type: c.CredentialType}
	switch c.CredentialType {
	case domain.CredentialAPIKey:
		creds.Token = c.APIKey
	case domain.CredentialJWT:
		creds.Token = c.JWT
	case domain.CredentialClientCredentials:
		creds.ClientID = c.ClientID
		creds.ClientSecret = c.ClientSecret
	}
	return creds
}

func oneOf(key, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q: want one of %v", key, v, allowed)
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

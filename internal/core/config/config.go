package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the server will listen.
	ServerPort int `mapstructure:"SERVER_PORT" default:"8080"`

	// Evidence holds the evidence store configuration.
	Evidence EvidenceConfig `mapstructure:",squash"`

	// Redis holds the coordination store configuration.
	Redis RedisConfig `mapstructure:",squash"`

	// Vision holds the vision extraction API configuration.
	Vision VisionConfig `mapstructure:",squash"`

	// Capture holds the screenshot capture configuration.
	Capture CaptureConfig `mapstructure:",squash"`

	// Sync holds the sync orchestration configuration.
	Sync SyncConfig `mapstructure:",squash"`

	// Reconciliation holds the case-management collaborator configuration.
	Reconciliation ReconciliationConfig `mapstructure:",squash"`

	// Proxy holds the outbound proxy configuration for browser capture.
	Proxy ProxyConfig `mapstructure:",squash"`
}

// EvidenceConfig holds persistence settings for evidence records.
type EvidenceConfig struct {
	// DBPath is the path of the SQLite database file.
	DBPath string `mapstructure:"EVIDENCE_DB_PATH" default:"data/evidence.db"`
	// ScreenshotDir is the directory where screenshot blobs are written.
	ScreenshotDir string `mapstructure:"SCREENSHOT_DIR" default:"data/screenshots"`
}

// RedisConfig holds the Redis connection settings used for lease coordination.
type RedisConfig struct {
	// URL is the Redis connection URL, e.g. redis://localhost:6379/0.
	URL string `mapstructure:"REDIS_URL" required:"true"`
}

// VisionConfig holds the credentials for the vision extraction API.
type VisionConfig struct {
	// URL is the base URL of the vision extraction endpoint.
	URL string `mapstructure:"VISION_API_URL" required:"true"`
	// APIKey authenticates requests to the vision API.
	APIKey string `mapstructure:"VISION_API_KEY" required:"true"`
	// TimeoutSeconds bounds a single extraction call.
	TimeoutSeconds int `mapstructure:"VISION_TIMEOUT_SECONDS" default:"45"`
	// ConfidenceThreshold below which an extraction is flagged as low confidence.
	ConfidenceThreshold float64 `mapstructure:"VISION_CONFIDENCE_THRESHOLD" default:"0.6"`
}

// CaptureConfig holds the screenshot capture settings.
type CaptureConfig struct {
	// TimeoutSeconds bounds a single page capture, navigation included.
	TimeoutSeconds int `mapstructure:"CAPTURE_TIMEOUT_SECONDS" default:"60"`
}

// SyncConfig holds the retry and concurrency policy for sync attempts.
type SyncConfig struct {
	// MaxAttempts is the total number of attempts for one sync, first try included.
	MaxAttempts int `mapstructure:"SYNC_MAX_ATTEMPTS" default:"3"`
	// BackoffBaseMS is the base delay before the first retry, in milliseconds.
	BackoffBaseMS int `mapstructure:"SYNC_BACKOFF_BASE_MS" default:"2000"`
	// BackoffCapMS caps the delay between retries, in milliseconds.
	BackoffCapMS int `mapstructure:"SYNC_BACKOFF_CAP_MS" default:"30000"`
	// BatchConcurrency is the worker pool size for batch syncs.
	BatchConcurrency int `mapstructure:"SYNC_BATCH_CONCURRENCY" default:"4"`
	// LeaseTTLSeconds overrides the lease TTL. 0 derives it from the attempt budget.
	LeaseTTLSeconds int `mapstructure:"SYNC_LEASE_TTL_SECONDS" default:"0"`
	// CarrierTemplates adds extra carriers as comma-separated name=url-template pairs.
	CarrierTemplates string `mapstructure:"CARRIER_TEMPLATES"`
}

// ReconciliationConfig holds the case-management collaborator settings.
type ReconciliationConfig struct {
	// CaseManagementURL receives reconciliation events. Empty logs events locally.
	CaseManagementURL string `mapstructure:"CASE_MANAGEMENT_URL"`
	// TimeoutSeconds bounds a single event delivery.
	TimeoutSeconds int `mapstructure:"CASE_MANAGEMENT_TIMEOUT_SECONDS" default:"10"`
}

// ProxyConfig holds the outbound proxy settings for the capture browser.
type ProxyConfig struct {
	Enabled  bool   `mapstructure:"PROXY_ENABLED" default:"false"`
	Hostname string `mapstructure:"PROXY_HOSTNAME"`
	Port     int    `mapstructure:"PROXY_PORT"`
	Username string `mapstructure:"PROXY_USERNAME"`
	Password string `mapstructure:"PROXY_PASSWORD"`
}

// AttemptBudget returns the overall deadline for one attempt:
// capture timeout + extraction timeout + a fixed margin.
func (c *AppConfig) AttemptBudget() time.Duration {
	margin := 15 * time.Second
	return time.Duration(c.Capture.TimeoutSeconds)*time.Second +
		time.Duration(c.Vision.TimeoutSeconds)*time.Second +
		margin
}

// LeaseTTL returns the configured lease TTL, defaulting to 3x the attempt
// budget so a crashed worker's lease self-expires.
func (c *AppConfig) LeaseTTL() time.Duration {
	if c.Sync.LeaseTTLSeconds > 0 {
		return time.Duration(c.Sync.LeaseTTLSeconds) * time.Second
	}
	return 3 * c.AttemptBudget()
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// processTags iterates over the struct fields and sets default values in Viper.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		defaultValue := field.Tag.Get("default")

		if key != "" {
			v.BindEnv(key)
		}

		if key != "" && defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks if fields marked as required have non-zero values.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		required := field.Tag.Get("required")
		if required == "true" {
			value := val.Field(i)
			if isZero(value) {
				key := field.Tag.Get("mapstructure")
				return fmt.Errorf("missing required configuration: %s", key)
			}
		}
	}
	return nil
}

// isZero checks if a reflect.Value is the zero value for its type.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stockpilot/internal/validate"
)

// Config holds all application configuration.
type Config struct {
	// Brokerage API
	APIKey      string
	AppSecret   string
	CallbackURL string
	BaseURL     string
	AccountID   string

	// Credential storage
	TokenPath     string
	EncryptionKey string // hex-encoded 32-byte key for the token file

	// DCA
	DCAEnabled   bool
	DCAAmount    float64
	DCAFrequency string // daily, weekly, monthly
	DCASymbols   []string

	// DRIP
	DRIPEnabled bool

	// Rebalancing
	RebalanceEnabled   bool
	TargetAllocation   map[string]float64
	RebalanceThreshold float64

	// Opportunistic dip buying
	OpportunisticEnabled      bool
	OpportunisticDipThreshold float64
	OpportunisticBuyAmount    float64

	// Options overlays
	OptionsEnabled bool
	OptionsDTE     int
	OptionsOTM     float64

	// Execution
	SubmitParallelism int
	SubmitRatePerSec  float64

	// Database
	DBPath string

	// Logging
	LogLevel string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig(envFile string) (*Config, error) {
	// Load .env, but don't fail if it doesn't exist (allow pure env vars)
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{}
	var errs []string

	// Brokerage API
	cfg.APIKey = getEnv("BROKER_API_KEY", "")
	cfg.AppSecret = getEnv("BROKER_APP_SECRET", "")
	cfg.CallbackURL = getEnv("BROKER_CALLBACK_URL", "https://localhost:8182")
	cfg.BaseURL = getEnv("BROKER_BASE_URL", "https://api.schwabapi.com")
	cfg.AccountID = getEnv("BROKER_ACCOUNT_ID", "")

	if cfg.APIKey == "" {
		errs = append(errs, "BROKER_API_KEY must be set")
	}
	if cfg.AppSecret == "" {
		errs = append(errs, "BROKER_APP_SECRET must be set")
	}
	if cfg.AccountID == "" {
		errs = append(errs, "BROKER_ACCOUNT_ID must be set")
	}

	// Credential storage
	cfg.TokenPath = getEnv("BROKER_TOKEN_PATH", ".broker_tokens.enc")
	cfg.EncryptionKey = getEnv("TOKEN_ENCRYPTION_KEY", "")

	// DCA
	cfg.DCAEnabled = getEnvAsBool("DCA_ENABLED", false)
	var err error
	cfg.DCAAmount, err = getEnvAsFloatRequired("DCA_AMOUNT", 100.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DCA_AMOUNT: %v", err))
	}
	cfg.DCAFrequency = getEnv("DCA_FREQUENCY", "weekly")
	switch cfg.DCAFrequency {
	case "daily", "weekly", "monthly":
	default:
		errs = append(errs, "DCA_FREQUENCY must be daily, weekly or monthly")
	}
	rawSymbols := getEnv("DCA_SYMBOLS", "SPY,VOO")
	cfg.DCASymbols, err = validate.SymbolCSV(rawSymbols, validate.MinSymbols, validate.MaxSymbols)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DCA_SYMBOLS: %v", err))
	}

	// DRIP
	cfg.DRIPEnabled = getEnvAsBool("DRIP_ENABLED", false)

	// Rebalancing
	cfg.RebalanceEnabled = getEnvAsBool("REBALANCE_ENABLED", false)
	cfg.TargetAllocation, err = loadTargetAllocation()
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid target allocation: %v", err))
	}
	cfg.RebalanceThreshold, err = getEnvAsFloatRequired("REBALANCE_THRESHOLD", 0.05)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid REBALANCE_THRESHOLD: %v", err))
	} else if cfg.RebalanceThreshold <= 0 || cfg.RebalanceThreshold >= 1 {
		errs = append(errs, "REBALANCE_THRESHOLD must be between 0.0 and 1.0 (exclusive)")
	}

	// Opportunistic
	cfg.OpportunisticEnabled = getEnvAsBool("OPPORTUNISTIC_ENABLED", false)
	cfg.OpportunisticDipThreshold, err = getEnvAsFloatRequired("OPPORTUNISTIC_DIP_THRESHOLD", 0.03)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid OPPORTUNISTIC_DIP_THRESHOLD: %v", err))
	} else if cfg.OpportunisticDipThreshold <= 0 || cfg.OpportunisticDipThreshold >= 1 {
		errs = append(errs, "OPPORTUNISTIC_DIP_THRESHOLD must be between 0.0 and 1.0 (exclusive)")
	}
	cfg.OpportunisticBuyAmount, err = getEnvAsFloatRequired("OPPORTUNISTIC_BUY_AMOUNT", 100.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid OPPORTUNISTIC_BUY_AMOUNT: %v", err))
	}

	// Options
	cfg.OptionsEnabled = getEnvAsBool("OPTIONS_ENABLED", false)
	cfg.OptionsDTE = getEnvAsInt("OPTIONS_DAYS_TO_EXPIRY", 30)
	if cfg.OptionsDTE <= 0 {
		errs = append(errs, "OPTIONS_DAYS_TO_EXPIRY must be positive")
	}
	cfg.OptionsOTM = getEnvAsFloat("OPTIONS_OTM_PERCENTAGE", 0.05)
	if cfg.OptionsOTM <= 0 || cfg.OptionsOTM >= 1 {
		errs = append(errs, "OPTIONS_OTM_PERCENTAGE must be between 0.0 and 1.0 (exclusive)")
	}

	// Execution
	cfg.SubmitParallelism = getEnvAsInt("SUBMIT_PARALLELISM", 4)
	if cfg.SubmitParallelism <= 0 {
		errs = append(errs, "SUBMIT_PARALLELISM must be positive")
	}
	cfg.SubmitRatePerSec = getEnvAsFloat("SUBMIT_RATE_PER_SEC", 2.0)
	if cfg.SubmitRatePerSec <= 0 {
		errs = append(errs, "SUBMIT_RATE_PER_SEC must be positive")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/stockpilot.db")

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", "INFO")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// loadTargetAllocation reads the rebalance target from TARGET_ALLOCATION
// (inline JSON) or TARGET_ALLOCATION_FILE (YAML), falling back to a default
// four-fund split. The map is validated before it can reach the engine.
func loadTargetAllocation() (map[string]float64, error) {
	if raw := os.Getenv("TARGET_ALLOCATION"); raw != "" {
		if len(raw) > 10_000 {
			return nil, fmt.Errorf("TARGET_ALLOCATION too large (max 10KB)")
		}
		var alloc map[string]float64
		if err := json.Unmarshal([]byte(raw), &alloc); err != nil {
			return nil, fmt.Errorf("invalid JSON in TARGET_ALLOCATION: %w", err)
		}
		return validate.Allocation(alloc, validate.MaxAllocSize)
	}
	if path := os.Getenv("TARGET_ALLOCATION_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read allocation file %s: %w", path, err)
		}
		var alloc map[string]float64
		if err := yaml.Unmarshal(data, &alloc); err != nil {
			return nil, fmt.Errorf("invalid YAML in allocation file %s: %w", path, err)
		}
		return validate.Allocation(alloc, validate.MaxAllocSize)
	}
	return map[string]float64{
		"SPY": 0.40,
		"QQQ": 0.30,
		"IWM": 0.15,
		"AGG": 0.15,
	}, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

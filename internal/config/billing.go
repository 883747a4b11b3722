package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig holds the operational knobs of the billing run. It is
// hot-reloadable so batch size and schedule changes do not require a
// restart.
type BillingConfig struct {
	// CronSpec drives the periodic billing run.
	CronSpec string `mapstructure:"cronSpec"`
	// BatchSize caps the number of subscriptions claimed per run.
	BatchSize int `mapstructure:"batchSize"`
	// DefaultGenerateAfterSeconds applies when a plan has no grace
	// period of its own.
	DefaultGenerateAfterSeconds int `mapstructure:"defaultGenerateAfterSeconds"`
	// LockTTLSeconds bounds how long a per-subscription billing lock
	// may be held before it expires on its own.
	LockTTLSeconds int `mapstructure:"lockTTLSeconds"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		CronSpec:                    "*/30 * * * *",
		BatchSize:                   200,
		DefaultGenerateAfterSeconds: 0,
		LockTTLSeconds:              120,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/silver/config") // Volume-mounted config
	v.AddConfigPath("/etc/silver")            // System config
	v.AddConfigPath(".")                      // Current directory (dev mode)

	v.SetEnvPrefix("SILVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.cronSpec", defaults.CronSpec)
	v.SetDefault("billing.batchSize", defaults.BatchSize)
	v.SetDefault("billing.defaultGenerateAfterSeconds", defaults.DefaultGenerateAfterSeconds)
	v.SetDefault("billing.lockTTLSeconds", defaults.LockTTLSeconds)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed config with no file
// watching behind it. Used by tests and single-shot tooling.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.CronSpec == "" {
		return errors.New("billing.cronSpec cannot be empty")
	}
	if cfg.BatchSize <= 0 {
		return errors.New("billing.batchSize must be positive")
	}
	if cfg.DefaultGenerateAfterSeconds < 0 {
		return errors.New("billing.defaultGenerateAfterSeconds cannot be negative")
	}
	if cfg.LockTTLSeconds <= 0 {
		return errors.New("billing.lockTTLSeconds must be positive")
	}
	return nil
}

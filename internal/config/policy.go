package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PolicyConfig carries tunable command-policy knobs.
type PolicyConfig struct {
	// PriceChangeThresholdPercent is the absolute percentage above which a
	// price change on an active product needs explicit confirmation.
	PriceChangeThresholdPercent float64 `mapstructure:"priceChangeThresholdPercent"`

	// IdempotencyTTL is how long a recorded command result stays replayable.
	IdempotencyTTL time.Duration `mapstructure:"idempotencyTTL"`
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		PriceChangeThresholdPercent: 20.0,
		IdempotencyTTL:              24 * time.Hour,
	}
}

// PolicyConfigHolder exposes the current policy config with hot reload.
type PolicyConfigHolder struct {
	current atomic.Value // holds PolicyConfig
}

func NewPolicyConfigHolder() (*PolicyConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/catalog/config") // Volume-mounted config
	v.AddConfigPath("/etc/catalog")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicyConfig()
	v.SetDefault("policy.priceChangeThresholdPercent", defaults.PriceChangeThresholdPercent)
	v.SetDefault("policy.idempotencyTTL", defaults.IdempotencyTTL)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg PolicyConfig
	if err := v.UnmarshalKey("policy", &cfg); err != nil {
		return nil, err
	}
	if err := validatePolicyConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PolicyConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PolicyConfig
		if err := v.UnmarshalKey("policy", &updated); err != nil {
			log.Printf("[policy-config] reload failed: %v", err)
			return
		}
		if err := validatePolicyConfig(updated); err != nil {
			log.Printf("[policy-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[policy-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPolicyHolder builds a holder pinned to the given config. Tests use
// it to avoid touching the filesystem.
func NewStaticPolicyHolder(cfg PolicyConfig) *PolicyConfigHolder {
	holder := &PolicyConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PolicyConfigHolder) Get() PolicyConfig {
	return h.current.Load().(PolicyConfig)
}

func validatePolicyConfig(cfg PolicyConfig) error {
	if cfg.PriceChangeThresholdPercent <= 0 {
		return errors.New("policy.priceChangeThresholdPercent must be positive")
	}
	if cfg.IdempotencyTTL <= 0 {
		return errors.New("policy.idempotencyTTL must be positive")
	}
	return nil
}

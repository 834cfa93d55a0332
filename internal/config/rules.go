package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RulesConfig tunes the status validation rules.
type RulesConfig struct {
	IBANCurrencies   []string
	FiatCurrencies   []string
	CryptoCurrencies []string
	// BlockOnWarning makes warning-severity failures block a status change.
	BlockOnWarning bool
}

func DefaultRulesConfig() RulesConfig {
	return RulesConfig{
		IBANCurrencies:   []string{"EUR", "GBP"},
		FiatCurrencies:   []string{"EUR", "GBP", "USD", "CHF", "JPY"},
		CryptoCurrencies: []string{"USDS", "USDC", "DAI", "ETH"},
		BlockOnWarning:   true,
	}
}

type RulesHolder struct {
	current atomic.Value // holds RulesConfig
}

// NewStaticRulesHolder returns a holder that never reloads.
func NewStaticRulesHolder(cfg RulesConfig) *RulesHolder {
	h := &RulesHolder{}
	h.current.Store(normalizeRules(cfg))
	return h
}

// NewRulesHolder reads the rules file (INVOICE_RULES_FILE, else rules.yml in
// the usual config paths) and reloads it when it changes. Defaults apply when
// no file exists.
func NewRulesHolder(appCfg Config, log *zap.Logger) (*RulesHolder, error) {
	log = log.Named("config.rules")
	v := viper.New()
	if appCfg.RulesFile != "" {
		v.SetConfigFile(appCfg.RulesFile)
	} else {
		v.SetConfigName("rules")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/invoicedoc")
		v.AddConfigPath(".")
	}

	defaults := DefaultRulesConfig()
	v.SetDefault("rules.ibanCurrencies", defaults.IBANCurrencies)
	v.SetDefault("rules.fiatCurrencies", defaults.FiatCurrencies)
	v.SetDefault("rules.cryptoCurrencies", defaults.CryptoCurrencies)
	v.SetDefault("rules.blockOnWarning", defaults.BlockOnWarning)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read rules config: %w", err)
		}
		found = false
	}

	cfg, err := decodeRules(v)
	if err != nil {
		return nil, err
	}
	holder := NewStaticRulesHolder(cfg)
	if !found {
		log.Info("rules config not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeRules(v)
		if err != nil {
			log.Warn("invalid rules config ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(normalizeRules(updated))
		log.Info("rules config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *RulesHolder) Get() RulesConfig {
	return h.current.Load().(RulesConfig)
}

func decodeRules(v *viper.Viper) (RulesConfig, error) {
	cfg := RulesConfig{
		IBANCurrencies:   v.GetStringSlice("rules.ibanCurrencies"),
		FiatCurrencies:   v.GetStringSlice("rules.fiatCurrencies"),
		CryptoCurrencies: v.GetStringSlice("rules.cryptoCurrencies"),
		BlockOnWarning:   v.GetBool("rules.blockOnWarning"),
	}
	if err := validateRules(cfg); err != nil {
		return RulesConfig{}, err
	}
	return cfg, nil
}

func validateRules(cfg RulesConfig) error {
	if len(cfg.FiatCurrencies) == 0 && len(cfg.CryptoCurrencies) == 0 {
		return errors.New("rules: fiatCurrencies and cryptoCurrencies cannot both be empty")
	}
	return nil
}

func normalizeRules(cfg RulesConfig) RulesConfig {
	cfg.IBANCurrencies = upper(cfg.IBANCurrencies)
	cfg.FiatCurrencies = upper(cfg.FiatCurrencies)
	cfg.CryptoCurrencies = upper(cfg.CryptoCurrencies)
	return cfg
}

func upper(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

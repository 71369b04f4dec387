package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"petshop/money"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server" json:"-"`
	Database DatabaseConfig `mapstructure:"database" json:"-"`
	Auth     AuthConfig     `mapstructure:"auth" json:"-"`
	Payment  PaymentConfig  `mapstructure:"payment" json:"-"`
	Shop     ShopConfig     `mapstructure:"shop" json:"shop"`
	Log      LogConfig      `mapstructure:"log" json:"-"`
}

type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	Production bool   `mapstructure:"production"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type PaymentConfig struct {
	Provider      string `mapstructure:"provider"`
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	// AutoSucceed makes the fake gateway report every intent as paid.
	AutoSucceed bool `mapstructure:"auto_succeed"`
}

// ShopConfig holds the settings an admin may change at runtime.
type ShopConfig struct {
	FreeShippingThresholdCents int64  `mapstructure:"free_shipping_threshold_cents" json:"freeShippingThresholdCents"`
	ShippingFeeCents           int64  `mapstructure:"shipping_fee_cents" json:"shippingFeeCents"`
	DefaultLang                string `mapstructure:"default_lang" json:"defaultLang"`
	AnalyticsDays              int    `mapstructure:"analytics_days" json:"analyticsDays"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ShippingRule returns the shipping policy described by the shop settings.
func (s ShopConfig) ShippingRule() money.ShippingRule {
	return money.ShippingRule{
		FreeThresholdCents: s.FreeShippingThresholdCents,
		FeeCents:           s.ShippingFeeCents,
	}
}

// Validate checks settings submitted from the back office.
func (s ShopConfig) Validate() error {
	if s.FreeShippingThresholdCents < 0 {
		return errors.New("free shipping threshold must not be negative")
	}
	if s.ShippingFeeCents < 0 {
		return errors.New("shipping fee must not be negative")
	}
	if s.DefaultLang != "en" && s.DefaultLang != "zh" {
		return fmt.Errorf("unsupported default language %q", s.DefaultLang)
	}
	if s.AnalyticsDays < 1 || s.AnalyticsDays > 366 {
		return errors.New("analytics window must be between 1 and 366 days")
	}
	return nil
}

// DefaultJWTSecret is the placeholder secret shipped in the defaults.
const DefaultJWTSecret = "your-secret-key"

// ValidateProduction reports settings that are only acceptable in development.
// It is a no-op unless server.production is set.
func (c Config) ValidateProduction() error {
	if !c.Server.Production {
		return nil
	}
	var errs []error
	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == DefaultJWTSecret {
		errs = append(errs, errors.New("auth.jwt_secret must be set to a non-default value"))
	}
	switch c.Payment.Provider {
	case "", "fake":
		errs = append(errs, fmt.Errorf("payment.provider %q cannot take real payments", c.Payment.Provider))
	}
	if c.Payment.WebhookSecret == "" {
		errs = append(errs, errors.New("payment.webhook_secret is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("refusing to start in production: %w", errors.Join(errs...))
	}
	return nil
}

var (
	cfg      Config
	cfgPath  string
	mu       sync.RWMutex
	loadOnce sync.Once
)

const defaultConfigFile = "./petshop.yaml"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.production", false)
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "file:petshop.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	v.SetDefault("auth.jwt_secret", DefaultJWTSecret)
	v.SetDefault("auth.token_ttl", "168h")
	v.SetDefault("payment.provider", "fake")
	v.SetDefault("payment.secret_key", "")
	v.SetDefault("payment.webhook_secret", "")
	v.SetDefault("payment.auto_succeed", false)
	v.SetDefault("shop.free_shipping_threshold_cents", 10000)
	v.SetDefault("shop.shipping_fee_cents", 1000)
	v.SetDefault("shop.default_lang", "en")
	v.SetDefault("shop.analytics_days", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetEnvPrefix("PETSHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the built-in configuration with environment overrides.
func Default() Config {
	var c Config
	_ = newViper().Unmarshal(&c)
	return c
}

// LoadConfig reads the config file (path, $PETSHOP_CONFIG or ./petshop.yaml)
// and the PETSHOP_* environment. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if path == "" {
		path = os.Getenv("PETSHOP_CONFIG")
	}
	if path == "" {
		path = defaultConfigFile
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var tempCfg Config
	if err := v.Unmarshal(&tempCfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if tempCfg.Auth.TokenTTL <= 0 {
		tempCfg.Auth.TokenTTL = 7 * 24 * time.Hour
	}
	cfg = tempCfg
	cfgPath = path
	return cfg, nil
}

// SaveShopConfig validates and persists new shop settings, keeping every
// other key of the config file as it was.
func SaveShopConfig(shop ShopConfig) error {
	if err := shop.Validate(); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	path := cfgPath
	if path == "" {
		path = defaultConfigFile
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}
	v.Set("shop.free_shipping_threshold_cents", shop.FreeShippingThresholdCents)
	v.Set("shop.shipping_fee_cents", shop.ShippingFeeCents)
	v.Set("shop.default_lang", shop.DefaultLang)
	v.Set("shop.analytics_days", shop.AnalyticsDays)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	cfg.Shop = shop
	return nil
}

// GetConfig returns a copy of the loaded configuration. Before LoadConfig is
// called it returns the defaults.
func GetConfig() Config {
	loadOnce.Do(func() {
		mu.Lock()
		if cfg.Server.Addr == "" {
			cfg = Default()
		}
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// SetConfig replaces the active configuration. Used by commands that build
// the config from flags and by tests.
func SetConfig(c Config) {
	mu.Lock()
	defer mu.Unlock()
	cfg = c
}

// SetConfigPath sets the file SaveShopConfig writes to.
func SetConfigPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	cfgPath = path
}

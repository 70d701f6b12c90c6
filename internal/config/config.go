// Package config loads the server configuration from YAML with environment
// overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// ShippingSettings is the fee table consulted by the order engine.
type ShippingSettings struct {
	// HomeDeliveryFreeThreshold waives the home delivery fee at or above
	// this subtotal.
	HomeDeliveryFreeThreshold int `yaml:"home_delivery_free_threshold"`
	HomeDeliveryFee           int `yaml:"home_delivery_fee"`

	ConvenienceFreeThreshold int `yaml:"convenience_free_threshold"`
	ConvenienceFee           int `yaml:"convenience_fee"`

	ExpressFee int `yaml:"express_fee"`
	DefaultFee int `yaml:"default_fee"`
}

// KafkaSettings configures the optional broker publisher. Empty brokers
// disable it.
type KafkaSettings struct {
	Brokers     []string `yaml:"brokers"`
	TopicPrefix string   `yaml:"topic_prefix"`
}

// Config is the full server configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	// DataDir holds the JSON documents (prices.json, orders.json, ...).
	DataDir string `yaml:"data_dir"`
	// ExportDir receives the operator-facing price correction exports.
	ExportDir string `yaml:"export_dir"`

	// PostgresDSN, when set, moves order and movement persistence from the
	// JSON documents to Postgres.
	PostgresDSN string `yaml:"postgres_dsn"`

	Kafka KafkaSettings `yaml:"kafka"`

	// Catalog maps product ids to page_products slugs. Lookups of ids not
	// in this table fail instead of defaulting.
	Catalog map[string]string `yaml:"catalog"`

	LowStockThreshold int           `yaml:"low_stock_threshold"`
	PriceSyncInterval Duration      `yaml:"price_sync_interval"`
	SyncMaxRetries    uint          `yaml:"sync_max_retries"`

	Shipping ShippingSettings `yaml:"shipping"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		ListenAddr:        ":8080",
		DataDir:           "data",
		ExportDir:         "data/exports",
		LowStockThreshold: 10,
		PriceSyncInterval: Duration(30 * time.Second),
		SyncMaxRetries:    5,
		Shipping: ShippingSettings{
			HomeDeliveryFreeThreshold: 1500,
			HomeDeliveryFee:           100,
			ConvenienceFreeThreshold:  1000,
			ConvenienceFee:            60,
			ExpressFee:                120,
			DefaultFee:                100,
		},
	}
}

// Load reads the YAML config at path, applies environment overrides and
// validates the result. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.PostgresDSN = getEnv("DATABASE_URL", cfg.PostgresDSN)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// Validate fails fast on a malformed catalog table rather than letting an
// unknown product id silently default at request time.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.LowStockThreshold < 0 {
		return fmt.Errorf("low_stock_threshold must not be negative")
	}
	if c.PriceSyncInterval <= 0 {
		return fmt.Errorf("price_sync_interval must be positive")
	}
	seen := make(map[string]string, len(c.Catalog))
	for id, slug := range c.Catalog {
		if id == "" {
			return fmt.Errorf("catalog contains an empty product id")
		}
		if slug == "" {
			return fmt.Errorf("catalog entry %s has an empty slug", id)
		}
		if prev, dup := seen[slug]; dup {
			return fmt.Errorf("catalog slug %s is mapped by both %s and %s", slug, prev, id)
		}
		seen[slug] = id
	}
	return nil
}

// SlugFor resolves a product id to its page_products slug. Unknown ids are
// an error, never a silent default.
func (c Config) SlugFor(productID string) (string, error) {
	slug, ok := c.Catalog[productID]
	if !ok {
		return "", fmt.Errorf("unknown product id %q: not in catalog table", productID)
	}
	return slug, nil
}

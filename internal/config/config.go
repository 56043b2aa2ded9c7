package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const envPrefix = "LEDGER"

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"` // gin mode: debug, release or test
}

type StorageConfig struct {
	Driver      string `mapstructure:"driver"` // memory, postgres or sqlite
	PostgresDSN string `mapstructure:"postgres_dsn"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	SQLiteLog   bool   `mapstructure:"sqlite_log"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LedgerConfig holds the engine options and the default admin deduction rates.
// Rates are percentages; money values are kept as strings until parsed.
type LedgerConfig struct {
	StrictTransferDestination bool   `mapstructure:"strict_transfer_destination"`
	TaxRate                   string `mapstructure:"tax_rate"`
	FeeRate                   string `mapstructure:"fee_rate"`
	MinFee                    string `mapstructure:"min_fee"`
	MaxFee                    string `mapstructure:"max_fee"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
}

// Rates are the parsed deduction defaults.
type Rates struct {
	Tax    decimal.Decimal
	Fee    decimal.Decimal
	MinFee decimal.Decimal
	MaxFee decimal.Decimal
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.sqlite_path", "data/ledger.db")
	v.SetDefault("storage.sqlite_log", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("ledger.strict_transfer_destination", false)
	v.SetDefault("ledger.tax_rate", "0")
	v.SetDefault("ledger.fee_rate", "0")
	v.SetDefault("ledger.min_fee", "0")
	v.SetDefault("ledger.max_fee", "0")
	v.SetDefault("storage.postgres_dsn", "")
}

// Load reads .env (if present) into the environment, then the YAML config at path
// with LEDGER_* environment overrides, e.g. LEDGER_STORAGE_DRIVER=postgres. An empty
// path looks for an optional config.yaml in the working directory.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Kafka.Brokers = splitList(c.Kafka.Brokers)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the storage selection and that the rates parse.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: storage.postgres_dsn is required for the postgres driver")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return errors.New("config: storage.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}

	if _, err := c.Ledger.Rates(); err != nil {
		return err
	}
	return nil
}

func (l LedgerConfig) Rates() (Rates, error) {
	fields := []struct {
		key string
		raw string
		dst *decimal.Decimal
	}{
		{"ledger.tax_rate", l.TaxRate, new(decimal.Decimal)},
		{"ledger.fee_rate", l.FeeRate, new(decimal.Decimal)},
		{"ledger.min_fee", l.MinFee, new(decimal.Decimal)},
		{"ledger.max_fee", l.MaxFee, new(decimal.Decimal)},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(f.raw)
		if raw == "" {
			raw = "0"
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return Rates{}, fmt.Errorf("config: %s: %w", f.key, err)
		}
		if d.IsNegative() {
			return Rates{}, fmt.Errorf("config: %s cannot be negative", f.key)
		}
		*f.dst = d
	}
	return Rates{Tax: *fields[0].dst, Fee: *fields[1].dst, MinFee: *fields[2].dst, MaxFee: *fields[3].dst}, nil
}

// splitList accepts brokers either as a YAML list or as one comma separated value,
// which is how they arrive from the environment.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

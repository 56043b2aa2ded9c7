package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  mode: test\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":8080" || cfg.Server.Mode != "test" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.Driver != "memory" || len(cfg.Kafka.Brokers) != 0 {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Storage, cfg.Kafka)
	}
	rates, err := cfg.Ledger.Rates()
	if err != nil || !rates.Tax.IsZero() || !rates.MaxFee.IsZero() {
		t.Fatalf("unexpected rates %+v (%v)", rates, err)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: sqlite
  sqlite_path: /tmp/ledger.db
kafka:
  brokers: ["k1:9092"]
ledger:
  tax_rate: "2"
  fee_rate: "0.5"
  min_fee: "1.50"
  max_fee: "25.00"
`)
	t.Setenv("LEDGER_KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("LEDGER_LEDGER_STRICT_TRANSFER_DESTINATION", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.SQLitePath != "/tmp/ledger.db" {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "a:9092" || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("expected env brokers, got %v", cfg.Kafka.Brokers)
	}
	if !cfg.Ledger.StrictTransferDestination {
		t.Fatal("expected strict transfer destination from env")
	}

	rates, err := cfg.Ledger.Rates()
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	if !rates.Fee.Equal(decimal.RequireFromString("0.5")) || !rates.MinFee.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("unexpected rates: %+v", rates)
	}
}

func TestLoadRejectsBadSettings(t *testing.T) {
	cases := map[string]string{
		"unknown driver":   "storage:\n  driver: mongo\n",
		"postgres no dsn":  "storage:\n  driver: postgres\n",
		"bad rate":         "ledger:\n  tax_rate: abc\n",
		"negative min fee": "ledger:\n  min_fee: \"-1\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing explicit config file")
	}
}

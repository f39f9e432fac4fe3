package config

import (
	"os"
	"testing"
	"time"

	"github.com/1broseidon/sparkreport/pkg/models"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	file, err := os.CreateTemp(t.TempDir(), "sparkreport-config-*.yml")
	if err != nil {
		t.Fatalf("failed to create temp config file: %v", err)
	}

	if _, err := file.WriteString(content); err != nil {
		file.Close()
		t.Fatalf("failed to write temp config file: %v", err)
	}

	if err := file.Close(); err != nil {
		t.Fatalf("failed to close temp config file: %v", err)
	}

	return file.Name()
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	configYAML := `
models:
  - name: "users"
    reports:
      - name: "registrations"
        grouping: "week"
        limit: 12
        cumulate: true
        conditions:
          - column: "status"
            op: "eq"
            value: "active"
`

	path := writeTempConfig(t, configYAML)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Server.Port != "7979" {
		t.Fatalf("expected default server port 7979, got %s", cfg.Server.Port)
	}

	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Fatalf("expected default request timeout 30s, got %s", cfg.Server.RequestTimeout)
	}

	if cfg.Storage.Backend != "memory" {
		t.Fatalf("expected default storage backend memory, got %s", cfg.Storage.Backend)
	}

	if cfg.Reporting.DefaultLimit != 100 {
		t.Fatalf("expected default report limit 100, got %d", cfg.Reporting.DefaultLimit)
	}

	if cfg.Reporting.DefaultDateColumn != "created_at" {
		t.Fatalf("expected default date column created_at, got %s", cfg.Reporting.DefaultDateColumn)
	}

	if cfg.Reporting.DefaultGrouping != models.GroupingDay {
		t.Fatalf("expected default grouping day, got %s", cfg.Reporting.DefaultGrouping)
	}

	if len(cfg.Models) != 1 || len(cfg.Models[0].Reports) != 1 {
		t.Fatalf("expected 1 model with 1 report, got %+v", cfg.Models)
	}

	report := cfg.Models[0].Reports[0]
	if report.Grouping != models.GroupingWeek || report.Limit != 12 || !report.Cumulate {
		t.Fatalf("unexpected report definition: %+v", report)
	}

	if len(report.Conditions) != 1 {
		t.Fatalf("expected 1 condition, got %d", len(report.Conditions))
	}

	cond := report.Conditions[0]
	if cond.Column != "status" || cond.Op != models.OpEq || cond.Value != "active" {
		t.Fatalf("unexpected condition: %+v", cond)
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	configYAML := `
storage:
  backend: "memory"
`

	path := writeTempConfig(t, configYAML)

	t.Setenv("SPARKREPORT_SERVER_PORT", "9090")
	t.Setenv("SPARKREPORT_SERVER_HOST", "127.0.0.1")
	t.Setenv("SPARKREPORT_LOGGING_LEVEL", "debug")
	t.Setenv("SPARKREPORT_STORAGE_BACKEND", "sqlite")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("expected SPARKREPORT_SERVER_PORT override to be applied, got %s", cfg.Server.Port)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("expected SPARKREPORT_SERVER_HOST override to be applied, got %s", cfg.Server.Host)
	}

	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected SPARKREPORT_LOGGING_LEVEL override to be applied, got %s", cfg.Logging.Level)
	}

	if cfg.Storage.Backend != "sqlite" {
		t.Fatalf("expected SPARKREPORT_STORAGE_BACKEND override to be applied, got %s", cfg.Storage.Backend)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	invalidYAML := `
server:
  requestTimeout: "not-a-duration"
`

	path := writeTempConfig(t, invalidYAML)

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for invalid duration in YAML content")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/sparkreport.yml"); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestConfigValidateSuccess(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: "8080"},
		Storage: StorageConfig{Backend: "sqlite"},
		Models: []ModelConfig{
			{
				Name: "orders",
				Reports: []ReportDefinition{
					// sum without a value column is only rejected when the report runs
					{Name: "revenue", Aggregation: models.AggregationSum},
					{Name: "orders", Grouping: "fortnight"},
				},
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected configuration to validate, got error: %v", err)
	}

	counts := cfg.ReportCount()
	if counts["orders"] != 2 {
		t.Fatalf("expected 2 reports for orders, got %d", counts["orders"])
	}
}

func TestConfigValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{
			name: "missing port",
			cfg:  &Config{Storage: StorageConfig{Backend: "memory"}},
		},
		{
			name: "unknown backend",
			cfg:  &Config{Server: ServerConfig{Port: "7979"}, Storage: StorageConfig{Backend: "mongo"}},
		},
		{
			name: "negative default limit",
			cfg: &Config{
				Server:    ServerConfig{Port: "7979"},
				Storage:   StorageConfig{Backend: "memory"},
				Reporting: ReportingConfig{DefaultLimit: -1},
			},
		},
		{
			name: "duplicate model",
			cfg: &Config{
				Server:  ServerConfig{Port: "7979"},
				Storage: StorageConfig{Backend: "memory"},
				Models:  []ModelConfig{{Name: "users"}, {Name: "users"}},
			},
		},
		{
			name: "duplicate report",
			cfg: &Config{
				Server:  ServerConfig{Port: "7979"},
				Storage: StorageConfig{Backend: "memory"},
				Models: []ModelConfig{{
					Name:    "users",
					Reports: []ReportDefinition{{Name: "signups"}, {Name: "signups"}},
				}},
			},
		},
		{
			name: "report name not an identifier",
			cfg: &Config{
				Server:  ServerConfig{Port: "7979"},
				Storage: StorageConfig{Backend: "memory"},
				Models: []ModelConfig{{
					Name:    "users",
					Reports: []ReportDefinition{{Name: "sign-ups"}},
				}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
